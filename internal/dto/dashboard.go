package dto

import "time"

// DashboardSummary is a role-shaped snapshot of workflow state. Which
// buckets are populated depends on the caller's role.
type DashboardSummary struct {
	StatusCounts     map[string]int `json:"status_counts"`
	TotalValue       float64        `json:"total_value"`
	MyDrafts         int            `json:"my_drafts"`
	AssignedToMe     int            `json:"assigned_to_me"`
	PendingReviews   int            `json:"pending_reviews"`
	PendingDecisions int            `json:"pending_decisions"`
	ArchiveEligible  int            `json:"archive_eligible"`
	GeneratedAt      time.Time      `json:"generated_at"`
}
