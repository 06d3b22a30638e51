package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grantos/grantos-api/internal/middleware"
	"github.com/grantos/grantos-api/internal/service"
	"github.com/grantos/grantos-api/pkg/response"
)

// DashboardHandler exposes the role-shaped workflow summary.
type DashboardHandler struct {
	dashboards *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboards *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Summary godoc
// @Summary Workflow dashboard
// @Description Counts and totals scoped to the caller's role. Payloads are cached per user.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, fromCache, err := h.dashboards.Summary(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, fromCache)
	meta := map[string]interface{}{"cached": fromCache}
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
