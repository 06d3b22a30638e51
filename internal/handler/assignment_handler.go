package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grantos/grantos-api/internal/service"
	"github.com/grantos/grantos-api/pkg/response"
)

// AssignmentHandler exposes role-scoped contract views.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// MyDrafts godoc
// @Summary My draft contracts
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /contracts/my-drafts [get]
func (h *AssignmentHandler) MyDrafts(c *gin.Context) {
	drafts, err := h.assignments.MyDrafts(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drafts, nil)
}

// AssignedToMe godoc
// @Summary Contracts assigned to me
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /contracts/assigned-to-me [get]
func (h *AssignmentHandler) AssignedToMe(c *gin.Context) {
	contracts, err := h.assignments.AssignedToMe(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contracts, nil)
}

// AssignedByMe godoc
// @Summary Contracts I assigned to others
// @Description Includes assignment provenance; the payload is flagged degraded when provenance could not be resolved.
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /contracts/assigned-by-me [get]
func (h *AssignmentHandler) AssignedByMe(c *gin.Context) {
	resp, err := h.assignments.AssignedByMe(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"degraded": resp.Degraded}
	response.JSON(c, http.StatusOK, resp, nil, meta)
}
