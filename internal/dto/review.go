package dto

import "github.com/grantos/grantos-api/internal/models"

// NewCommentPayload is one remark attached to a review submission.
type NewCommentPayload struct {
	Comment        string                 `json:"comment" validate:"required"`
	CommentType    string                 `json:"comment_type"`
	FlaggedRisk    bool                   `json:"flagged_risk"`
	FlaggedIssue   bool                   `json:"flagged_issue"`
	Recommendation *models.Recommendation `json:"recommendation,omitempty"`
}

// SubmitReviewRequest captures the program-manager review summary that
// moves a contract from under_review to reviewed.
type SubmitReviewRequest struct {
	Recommendation models.Recommendation `json:"recommendation" validate:"required,oneof=approve reject modify"`
	Summary        string                `json:"summary" validate:"required"`
	Comments       []NewCommentPayload   `json:"comments"`
}

// ResolveCommentRequest resolves one open review comment.
type ResolveCommentRequest struct {
	Response string `json:"response" validate:"required"`
}

// ContractReviewsResponse aggregates a contract's review state. The
// statistics are derived from the live comment list on every read.
type ContractReviewsResponse struct {
	Statistics    models.CommentStatistics `json:"statistics"`
	ReviewSummary *models.ReviewSummary    `json:"review_summary,omitempty"`
	Comments      []models.ReviewComment   `json:"comments"`
	Outcome       models.DecisionOutcome   `json:"outcome"`
}
