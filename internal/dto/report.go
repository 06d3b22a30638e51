package dto

import "github.com/grantos/grantos-api/internal/models"

// ReportRequest captures POST /reports/generate payload.
type ReportRequest struct {
	Type      models.ReportType       `json:"type"`
	Format    models.ReportFormat     `json:"format"`
	Search    string                  `json:"search,omitempty"`
	Status    []models.ContractStatus `json:"status,omitempty"`
	DateRange models.DateRange        `json:"dateRange,omitempty"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// ContractAggregates are recomputed from the filtered result set, never
// from unfiltered totals.
type ContractAggregates struct {
	Count              int     `json:"count"`
	TotalValue         float64 `json:"total_value"`
	AverageValue       float64 `json:"average_value"`
	ApprovedCount      int     `json:"approved_count"`
	PendingReviewCount int     `json:"pending_review_count"`
	DraftCount         int     `json:"draft_count"`
}

// ContractReportResponse bundles the filtered listing with aggregates.
type ContractReportResponse struct {
	Contracts  []models.Contract  `json:"contracts"`
	Aggregates ContractAggregates `json:"aggregates"`
}
