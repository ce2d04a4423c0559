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

// TopicHandler exposes thesis topic endpoints.
type TopicHandler struct {
	topics *service.TopicService
}

// NewTopicHandler constructs TopicHandler.
func NewTopicHandler(topics *service.TopicService) *TopicHandler {
	return &TopicHandler{topics: topics}
}

// Propose godoc
// @Summary Propose or replace a thesis topic
// @Tags Topics
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.ProposeTopicRequest true "Topic"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/topic [post]
func (h *TopicHandler) Propose(c *gin.Context) {
	var req dto.ProposeTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	student, err := h.topics.Propose(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}

// Approve godoc
// @Summary Approve the student's proposed topic
// @Tags Topics
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/topic/approve [post]
func (h *TopicHandler) Approve(c *gin.Context) {
	student, err := h.topics.Approve(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}

// Respond godoc
// @Summary Accept or reject a supervisor-proposed topic
// @Tags Topics
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.TopicResponseRequest true "Response"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/topic/response [post]
func (h *TopicHandler) Respond(c *gin.Context) {
	var req dto.TopicResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	student, err := h.topics.Respond(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student)
}
