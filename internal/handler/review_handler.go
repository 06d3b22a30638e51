package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/service"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
	"github.com/grantos/grantos-api/pkg/response"
)

// ReviewHandler exposes review-comment endpoints.
type ReviewHandler struct {
	reviews *service.ReviewService
}

// NewReviewHandler constructs ReviewHandler.
func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// ContractReviews godoc
// @Summary Review state for one contract
// @Description Comments, derived statistics, the review summary and the decision outcome.
// @Tags Reviews
// @Produce json
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/reviews [get]
func (h *ReviewHandler) ContractReviews(c *gin.Context) {
	resp, err := h.reviews.ContractReviews(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// AddComment godoc
// @Summary Add a review comment
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param payload body dto.NewCommentPayload true "Comment payload"
// @Success 201 {object} response.Envelope
// @Router /contracts/{id}/reviews/comments [post]
func (h *ReviewHandler) AddComment(c *gin.Context) {
	var payload dto.NewCommentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	comment, err := h.reviews.AddComment(c.Request.Context(), c.Param("id"), payload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// ResolveComment godoc
// @Summary Resolve a review comment
// @Description Resolution happens at most once per comment.
// @Tags Reviews
// @Accept json
// @Produce json
// @Param commentId path string true "Comment ID"
// @Param payload body dto.ResolveCommentRequest true "Resolution payload"
// @Success 200 {object} response.Envelope
// @Router /reviews/comments/{commentId}/resolve [post]
func (h *ReviewHandler) ResolveComment(c *gin.Context) {
	var req dto.ResolveCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	comment, err := h.reviews.ResolveComment(c.Request.Context(), c.Param("commentId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comment, nil)
}
