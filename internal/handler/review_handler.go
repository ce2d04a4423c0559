package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradworks/thesis-flow-api/internal/dto"
	"github.com/gradworks/thesis-flow-api/internal/middleware"
	"github.com/gradworks/thesis-flow-api/internal/models"
	"github.com/gradworks/thesis-flow-api/internal/service"
	appErrors "github.com/gradworks/thesis-flow-api/pkg/errors"
	"github.com/gradworks/thesis-flow-api/pkg/response"
)

// ReviewHandler exposes role review endpoints.
type ReviewHandler struct {
	reviews *service.ReviewService
	metrics *service.MetricsService
}

// NewReviewHandler constructs ReviewHandler.
func NewReviewHandler(reviews *service.ReviewService, metrics *service.MetricsService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, metrics: metrics}
}

// Submit godoc
// @Summary Submit a role review for the current iteration
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Thesis ID"
// @Param role path string true "Reviewing role" Enums(supervisor, consultant, reviewer)
// @Param payload body dto.SubmitReviewRequest true "Review"
// @Success 200 {object} response.Envelope
// @Router /theses/{id}/reviews/{role} [post]
func (h *ReviewHandler) Submit(c *gin.Context) {
	role, err := models.ParseReviewingRole(c.Param("role"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	var req dto.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	result, err := h.reviews.SubmitRoleReview(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.CountReviewSubmission(string(role), string(result.ReviewStatus))
		h.metrics.CountStatusTransition(string(result.ThesisStatus))
	}
	response.JSON(c, http.StatusOK, result)
}

// ReReview godoc
// @Summary Retract the role's review in the current iteration
// @Tags Reviews
// @Param id path string true "Thesis ID"
// @Param role path string true "Reviewing role" Enums(supervisor, consultant, reviewer)
// @Success 204
// @Router /theses/{id}/reviews/{role}/rereview [post]
func (h *ReviewHandler) ReReview(c *gin.Context) {
	role, err := models.ParseReviewingRole(c.Param("role"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	if err := h.reviews.ReReview(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
