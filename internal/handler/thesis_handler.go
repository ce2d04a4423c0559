package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradworks/thesis-flow-api/internal/dto"
	"github.com/gradworks/thesis-flow-api/internal/middleware"
	"github.com/gradworks/thesis-flow-api/internal/service"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
	"github.com/gradworks/thesis-flow-api/pkg/response"
)

// ThesisHandler exposes thesis lifecycle endpoints.
type ThesisHandler struct {
	theses     *service.ThesisService
	plagiarism *service.PlagiarismService
}

// NewThesisHandler constructs ThesisHandler.
func NewThesisHandler(theses *service.ThesisService, plagiarism *service.PlagiarismService) *ThesisHandler {
	return &ThesisHandler{theses: theses, plagiarism: plagiarism}
}

// Submit godoc
// @Summary Submit a thesis
// @Tags Theses
// @Accept json
// @Produce json
// @Param payload body dto.SubmitThesisRequest true "Submission"
// @Success 201 {object} response.Envelope
// @Router /theses [post]
func (h *ThesisHandler) Submit(c *gin.Context) {
	var req dto.SubmitThesisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	thesis, err := h.theses.Submit(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, thesis)
}

// CounterSign godoc
// @Summary Counter-sign the thesis submission
// @Tags Theses
// @Produce json
// @Param id path string true "Thesis ID"
// @Success 200 {object} response.Envelope
// @Router /theses/{id}/countersign [post]
func (h *ThesisHandler) CounterSign(c *gin.Context) {
	thesis, err := h.theses.CounterSign(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, thesis)
}

// Resubmit godoc
// @Summary Resubmit the thesis after a revision request
// @Tags Theses
// @Accept json
// @Produce json
// @Param id path string true "Thesis ID"
// @Param payload body dto.ResubmitThesisRequest true "Revised submission"
// @Success 200 {object} response.Envelope
// @Router /theses/{id}/resubmit [post]
func (h *ThesisHandler) Resubmit(c *gin.Context) {
	var req dto.ResubmitThesisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	thesis, err := h.theses.Resubmit(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, thesis)
}

// Delete godoc
// @Summary Delete the thesis with cascading cleanup
// @Tags Theses
// @Param id path string true "Thesis ID"
// @Success 204
// @Router /theses/{id} [delete]
func (h *ThesisHandler) Delete(c *gin.Context) {
	if err := h.theses.Delete(c.Request.Context(), middleware.ActorFrom(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Status godoc
// @Summary Get the thesis workflow status snapshot
// @Tags Theses
// @Produce json
// @Param id path string true "Thesis ID"
// @Success 200 {object} response.Envelope
// @Router /theses/{id}/status [get]
func (h *ThesisHandler) Status(c *gin.Context) {
	snapshot, err := h.theses.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot)
}

// RecordPlagiarism godoc
// @Summary Record an external plagiarism check result
// @Tags Theses
// @Accept json
// @Produce json
// @Param id path string true "Thesis ID"
// @Param payload body dto.RecordPlagiarismRequest true "Check result"
// @Success 200 {object} response.Envelope
// @Router /theses/{id}/plagiarism [post]
func (h *ThesisHandler) RecordPlagiarism(c *gin.Context) {
	var req dto.RecordPlagiarismRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	check, err := h.plagiarism.RecordResult(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check)
}

// GetPlagiarism godoc
// @Summary Get the stored plagiarism check result
// @Tags Theses
// @Produce json
// @Param id path string true "Thesis ID"
// @Success 200 {object} response.Envelope
// @Router /theses/{id}/plagiarism [get]
func (h *ThesisHandler) GetPlagiarism(c *gin.Context) {
	check, err := h.plagiarism.CheckLatest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check)
}
