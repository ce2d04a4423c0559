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

// RequestHandler exposes supervisor request endpoints.
type RequestHandler struct {
	requests *service.RequestService
}

// NewRequestHandler constructs RequestHandler.
func NewRequestHandler(requests *service.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// Create godoc
// @Summary Offer to supervise a student
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateSupervisorRequest true "Request details"
// @Success 201 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	var req dto.CreateSupervisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	request, err := h.requests.Create(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Accept godoc
// @Summary Accept a supervision request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/accept [post]
func (h *RequestHandler) Accept(c *gin.Context) {
	request, err := h.requests.Accept(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request)
}

// Decline godoc
// @Summary Decline a supervision request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DeclineSupervisorRequest true "Decline reason"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/decline [post]
func (h *RequestHandler) Decline(c *gin.Context) {
	var req dto.DeclineSupervisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	request, err := h.requests.Decline(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request)
}
