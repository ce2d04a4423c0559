package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradworks/thesis-flow-api/internal/middleware"
	"github.com/gradworks/thesis-flow-api/internal/models"
	"github.com/gradworks/thesis-flow-api/internal/service"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
	"github.com/gradworks/thesis-flow-api/pkg/response"
)

// SigningHandler exposes the signing chain endpoints.
type SigningHandler struct {
	signing *service.SigningService
}

// NewSigningHandler constructs SigningHandler.
func NewSigningHandler(signing *service.SigningService) *SigningHandler {
	return &SigningHandler{signing: signing}
}

// UploadPartySigned godoc
// @Summary Upload the reviewing party's signed review document
// @Tags Signing
// @Accept multipart/form-data
// @Param id path string true "Thesis ID"
// @Param role path string true "Reviewing role" Enums(supervisor, consultant, reviewer)
// @Param file formData file true "Signed PDF"
// @Success 204
// @Router /theses/{id}/signatures/{role} [post]
func (h *SigningHandler) UploadPartySigned(c *gin.Context) {
	role, err := models.ParseReviewingRole(c.Param("role"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	file, err := openFormFile(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	if err := h.signing.UploadPartySigned(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), role, file); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadHodSigned godoc
// @Summary Upload the head of department's countersigned pair
// @Tags Signing
// @Accept multipart/form-data
// @Param id path string true "Thesis ID"
// @Param supervisorFile formData file true "HOD-signed supervisor-side PDF"
// @Param reviewerFile formData file true "HOD-signed reviewer-side PDF"
// @Success 204
// @Router /theses/{id}/signatures/hod [post]
func (h *SigningHandler) UploadHodSigned(c *gin.Context) {
	supervisorFile, reviewerFile, cleanup := openPairFiles(c)
	defer cleanup()
	if err := h.signing.UploadHodSigned(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), supervisorFile, reviewerFile); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadDeanSigned godoc
// @Summary Upload the dean's final countersigned pair
// @Tags Signing
// @Accept multipart/form-data
// @Param id path string true "Thesis ID"
// @Param supervisorFile formData file true "Dean-signed supervisor-side PDF"
// @Param reviewerFile formData file true "Dean-signed reviewer-side PDF"
// @Success 204
// @Router /theses/{id}/signatures/dean [post]
func (h *SigningHandler) UploadDeanSigned(c *gin.Context) {
	supervisorFile, reviewerFile, cleanup := openPairFiles(c)
	defer cleanup()
	if err := h.signing.UploadDeanSigned(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), supervisorFile, reviewerFile); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GetUnsigned godoc
// @Summary Download the system-generated review document for a role
// @Tags Signing
// @Produce application/pdf
// @Param id path string true "Thesis ID"
// @Param role path string true "Reviewing role" Enums(supervisor, consultant, reviewer)
// @Success 200 {file} binary
// @Router /theses/{id}/reviews/{role}/document [get]
func (h *SigningHandler) GetUnsigned(c *gin.Context) {
	role, err := models.ParseReviewingRole(c.Param("role"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	f, err := h.signing.GetUnsigned(c.Request.Context(), c.Param("id"), role)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="review_`+string(role)+`.pdf"`)
	c.Status(http.StatusOK)
	io.Copy(c.Writer, f)
}

// GetFinalSigned godoc
// @Summary Download the dean-countersigned document pair
// @Tags Signing
// @Produce multipart/mixed
// @Param id path string true "Thesis ID"
// @Success 200 {file} binary
// @Router /theses/{id}/signatures/final [get]
func (h *SigningHandler) GetFinalSigned(c *gin.Context) {
	pair, err := h.signing.GetFinalSigned(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer pair.Supervisor.Close()
	defer pair.Reviewer.Close()

	mw := multipart.NewWriter(c.Writer)
	c.Header("Content-Type", mw.FormDataContentType())
	c.Status(http.StatusOK)

	for _, part := range []struct {
		field string
		file  io.Reader
	}{
		{"supervisorFile", pair.Supervisor},
		{"reviewerFile", pair.Reviewer},
	} {
		w, err := mw.CreateFormFile(part.field, part.field+".pdf")
		if err != nil {
			return
		}
		if _, err := io.Copy(w, part.file); err != nil {
			return
		}
	}
	mw.Close()
}

func openFormFile(c *gin.Context, field string) (multipart.File, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing form file "+field)
	}
	f, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to open uploaded file")
	}
	return f, nil
}

// openPairFiles opens both pair uploads, leaving a slot nil when absent so the
// service can report the missing file by name.
func openPairFiles(c *gin.Context) (supervisorFile, reviewerFile io.Reader, cleanup func()) {
	var closers []io.Closer
	if header, err := c.FormFile("supervisorFile"); err == nil {
		if f, err := header.Open(); err == nil {
			supervisorFile = f
			closers = append(closers, f)
		}
	}
	if header, err := c.FormFile("reviewerFile"); err == nil {
		if f, err := header.Open(); err == nil {
			reviewerFile = f
			closers = append(closers, f)
		}
	}
	cleanup = func() {
		for _, cl := range closers {
			cl.Close()
		}
	}
	return supervisorFile, reviewerFile, cleanup
}
