package models

import "time"

// CommentStatus captures the resolution lifecycle of a review comment.
type CommentStatus string

const (
	CommentStatusOpen     CommentStatus = "open"
	CommentStatusResolved CommentStatus = "resolved"
)

// ReviewComment is a single program-manager remark on a contract.
type ReviewComment struct {
	ID                 string          `db:"id" json:"id"`
	ContractID         string          `db:"contract_id" json:"contract_id"`
	UserID             string          `db:"user_id" json:"user_id"`
	UserName           string          `db:"user_name" json:"user_name"`
	UserRole           UserRole        `db:"user_role" json:"user_role"`
	Comment            string          `db:"comment" json:"comment"`
	CommentType        string          `db:"comment_type" json:"comment_type"`
	FlaggedRisk        bool            `db:"flagged_risk" json:"flagged_risk"`
	FlaggedIssue       bool            `db:"flagged_issue" json:"flagged_issue"`
	Recommendation     *Recommendation `db:"recommendation" json:"recommendation,omitempty"`
	Status             CommentStatus   `db:"status" json:"status"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	ResolvedAt         *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolutionResponse *string         `db:"resolution_response" json:"resolution_response,omitempty"`
}

// CommentStatistics are derived counts over a contract's live comment
// list. They are recomputed on every read, never stored.
type CommentStatistics struct {
	TotalComments int `json:"total_comments"`
	OpenComments  int `json:"open_comments"`
	RiskComments  int `json:"risk_comments"`
	IssueComments int `json:"issue_comments"`
}

// ComputeCommentStatistics derives statistics from the comment sequence.
func ComputeCommentStatistics(comments []ReviewComment) CommentStatistics {
	stats := CommentStatistics{TotalComments: len(comments)}
	for _, c := range comments {
		if c.Status == CommentStatusOpen {
			stats.OpenComments++
		}
		if c.FlaggedRisk {
			stats.RiskComments++
		}
		if c.FlaggedIssue {
			stats.IssueComments++
		}
	}
	return stats
}

// DecisionOutcome compares the program-manager recommendation with the
// director decision.
type DecisionOutcome string

const (
	OutcomeMatch    DecisionOutcome = "match"
	OutcomeMismatch DecisionOutcome = "mismatch"
	OutcomePending  DecisionOutcome = "pending"
)

// CompareDecision reconciles a recommendation with the final decision.
// The outcome is pending until a director has decided.
func CompareDecision(recommendation *Recommendation, decision *DecisionStatus) DecisionOutcome {
	if decision == nil {
		return OutcomePending
	}
	if recommendation == nil {
		return OutcomeMismatch
	}
	if string(*recommendation) == string(*decision) {
		return OutcomeMatch
	}
	return OutcomeMismatch
}
