package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/models"
	"github.com/grantos/grantos-api/internal/service"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
	"github.com/grantos/grantos-api/pkg/response"
)

// ContractHandler exposes contract CRUD and workflow endpoints.
type ContractHandler struct {
	contracts  *service.ContractService
	workflow   *service.WorkflowService
	dashboards *service.DashboardService
}

// NewContractHandler constructs ContractHandler.
func NewContractHandler(contracts *service.ContractService, workflow *service.WorkflowService, dashboards *service.DashboardService) *ContractHandler {
	return &ContractHandler{contracts: contracts, workflow: workflow, dashboards: dashboards}
}

func parseContractQuery(c *gin.Context) dto.ContractQuery {
	var query dto.ContractQuery
	query.Search = strings.TrimSpace(c.Query("search"))
	for _, raw := range strings.Split(c.Query("status"), ",") {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			query.Status = append(query.Status, models.ContractStatus(raw))
		}
	}
	query.DateRange = models.DateRange(c.Query("dateRange"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		query.PageSize = size
	}
	return query
}

// List godoc
// @Summary List contracts
// @Tags Contracts
// @Produce json
// @Param search query string false "Search grant name, number, grantor, grantee"
// @Param status query string false "Comma-separated status filter"
// @Param dateRange query string false "all, last30, last90 or thisYear"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /contracts [get]
func (h *ContractHandler) List(c *gin.Context) {
	query := parseContractQuery(c)
	contracts, total, err := h.contracts.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, contracts, pagination)
}

// Get godoc
// @Summary Get contract detail
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract ID"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id} [get]
func (h *ContractHandler) Get(c *gin.Context) {
	contract, err := h.contracts.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contract, nil)
}

// Create godoc
// @Summary Create draft contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Param payload body dto.CreateContractRequest true "Contract payload"
// @Success 201 {object} response.Envelope
// @Router /contracts [post]
func (h *ContractHandler) Create(c *gin.Context) {
	var req dto.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	contract, err := h.contracts.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.Created(c, contract)
}

// Update godoc
// @Summary Update contract
// @Tags Contracts
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param payload body dto.UpdateContractRequest true "Partial update payload"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id} [patch]
func (h *ContractHandler) Update(c *gin.Context) {
	var req dto.UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	contract, err := h.contracts.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, contract, nil)
}

// Delete godoc
// @Summary Delete draft contract
// @Tags Contracts
// @Produce json
// @Param id path string true "Contract ID"
// @Success 204
// @Router /contracts/{id} [delete]
func (h *ContractHandler) Delete(c *gin.Context) {
	if err := h.contracts.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.NoContent(c)
}

// Publish godoc
// @Summary Publish a draft
// @Description Moves a draft to review or, when permitted, directly to approved.
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param payload body dto.PublishRequest true "Publish payload"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/publish [post]
func (h *ContractHandler) Publish(c *gin.Context) {
	var req dto.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	contract, err := h.workflow.Publish(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, contract, nil)
}

// SubmitReview godoc
// @Summary Submit program-manager review
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param payload body dto.SubmitReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/review [post]
func (h *ContractHandler) SubmitReview(c *gin.Context) {
	var req dto.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	contract, err := h.workflow.SubmitReview(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, contract, nil)
}

// Decide godoc
// @Summary Record director decision
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Contract ID"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /contracts/{id}/decision [post]
func (h *ContractHandler) Decide(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	contract, err := h.workflow.Decide(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, contract, nil)
}

func (h *ContractHandler) invalidateDashboards(c *gin.Context) {
	if h.dashboards != nil {
		h.dashboards.Invalidate(c.Request.Context())
	}
}
