package handler

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/gradworks/thesis-flow-api/internal/service"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
	"github.com/gradworks/thesis-flow-api/pkg/response"
)

// ExportHandler exposes review history export endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ExportHistory godoc
// @Summary Export the thesis review history
// @Tags Exports
// @Produce json
// @Param id path string true "Thesis ID"
// @Param format query string true "Export format" Enums(csv, pdf)
// @Success 200 {object} response.Envelope
// @Router /theses/{id}/history/export [get]
func (h *ExportHandler) ExportHistory(c *gin.Context) {
	result, err := h.exports.ExportHistory(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Download godoc
// @Summary Download an export by signed token
// @Tags Exports
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token query parameter is required"))
		return
	}
	f, err := h.exports.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	name := filepath.Base(f.Name())
	contentType := "application/octet-stream"
	switch filepath.Ext(name) {
	case ".csv":
		contentType = "text/csv"
	case ".pdf":
		contentType = "application/pdf"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Status(http.StatusOK)
	io.Copy(c.Writer, f)
}
