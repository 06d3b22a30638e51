package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/service"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
	"github.com/grantos/grantos-api/pkg/response"
)

// ArchiveHandler exposes archival endpoints.
type ArchiveHandler struct {
	archive    *service.ArchiveService
	dashboards *service.DashboardService
}

// NewArchiveHandler constructs ArchiveHandler.
func NewArchiveHandler(archive *service.ArchiveService, dashboards *service.DashboardService) *ArchiveHandler {
	return &ArchiveHandler{archive: archive, dashboards: dashboards}
}

// Candidates godoc
// @Summary List archive-eligible contracts
// @Tags Archive
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /archive/candidates [get]
func (h *ArchiveHandler) Candidates(c *gin.Context) {
	candidates, err := h.archive.Candidates(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// Archive godoc
// @Summary Archive one contract
// @Tags Archive
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param payload body dto.ArchiveRequest true "Archive payload"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/archive [post]
func (h *ArchiveHandler) Archive(c *gin.Context) {
	var req dto.ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	contract, err := h.archive.Archive(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.dashboards != nil {
		h.dashboards.Invalidate(c.Request.Context())
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// BatchArchive godoc
// @Summary Archive several contracts
// @Description Each id is archived independently; failures never roll back successes.
// @Tags Archive
// @Accept json
// @Produce json
// @Param payload body dto.BatchArchiveRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /archive/batch [post]
func (h *ArchiveHandler) BatchArchive(c *gin.Context) {
	var req dto.BatchArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.archive.BatchArchive(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.dashboards != nil {
		h.dashboards.Invalidate(c.Request.Context())
	}
	response.JSON(c, http.StatusOK, result, nil)
}
