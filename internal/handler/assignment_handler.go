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

// AssignmentHandler exposes the team assignment endpoint.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// AssignTeam godoc
// @Summary Assign supervisor, consultant and/or reviewer to a student
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.AssignTeamRequest true "Role ids to assign"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/team [post]
func (h *AssignmentHandler) AssignTeam(c *gin.Context) {
	var req dto.AssignTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	result, err := h.assignments.AssignTeam(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
