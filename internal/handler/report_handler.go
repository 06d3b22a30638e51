package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/models"
	"github.com/grantos/grantos-api/internal/service"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
	"github.com/grantos/grantos-api/pkg/response"
)

// ReportHandler exposes report aggregation, synchronous CSV export and
// asynchronous report job endpoints.
type ReportHandler struct {
	reports  *service.ReportService
	exporter *service.ExportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService, exporter *service.ExportService) *ReportHandler {
	return &ReportHandler{reports: reports, exporter: exporter}
}

// ContractReport godoc
// @Summary Contract report with aggregates
// @Description Aggregates are computed over exactly the filtered result set.
// @Tags Reports
// @Produce json
// @Param search query string false "Search filter"
// @Param status query string false "Comma-separated status filter"
// @Param dateRange query string false "all, last30, last90 or thisYear"
// @Success 200 {object} response.Envelope
// @Router /reports/contracts [get]
func (h *ReportHandler) ContractReport(c *gin.Context) {
	report, err := h.exporter.ContractReport(c.Request.Context(), parseContractQuery(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportCSV godoc
// @Summary Synchronous CSV export
// @Tags Reports
// @Produce text/csv
// @Param search query string false "Search filter"
// @Param status query string false "Comma-separated status filter"
// @Param dateRange query string false "all, last30, last90 or thisYear"
// @Success 200 {file} file "CSV payload"
// @Router /reports/contracts/export [get]
func (h *ReportHandler) ExportCSV(c *gin.Context) {
	filename, payload, err := h.exporter.ExportContractsCSV(c.Request.Context(), parseContractQuery(c), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
}

// CreateJob godoc
// @Summary Queue an asynchronous report
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ReportRequest true "Report request"
// @Success 202 {object} response.Envelope
// @Router /reports/generate [post]
func (h *ReportHandler) CreateJob(c *gin.Context) {
	var req dto.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.reports.CreateJob(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// JobStatus godoc
// @Summary Report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/status [get]
func (h *ReportHandler) JobStatus(c *gin.Context) {
	status, err := h.reports.GetStatus(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished report
// @Description The token is a signed, expiring reference issued when the job finished.
// @Tags Reports
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file "Report payload"
// @Router /export/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	download, err := h.reports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	contentType := "application/octet-stream"
	if download.Format == models.ReportFormatCSV {
		contentType = "text/csv; charset=utf-8"
	} else if download.Format == models.ReportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, download.File); err != nil {
		_ = c.Error(err)
	}
}
