package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/grantos/grantos-api/internal/models"
)

const reviewCommentColumns = `id, contract_id, user_id, user_name, user_role, comment, comment_type,
       flagged_risk, flagged_issue, recommendation, status, created_at, resolved_at, resolution_response`

// ReviewRepository persists program-manager review comments.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a batch of comments for one contract in a single
// transaction so a submission lands whole or not at all.
func (r *ReviewRepository) Create(ctx context.Context, comments []models.ReviewComment) error {
	if len(comments) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `INSERT INTO review_comments
	(id, contract_id, user_id, user_name, user_role, comment, comment_type,
	 flagged_risk, flagged_issue, recommendation, status, created_at)
	VALUES (:id, :contract_id, :user_id, :user_name, :user_role, :comment, :comment_type,
	 :flagged_risk, :flagged_issue, :recommendation, :status, :created_at)`
	for i := range comments {
		if comments[i].ID == "" {
			comments[i].ID = uuid.NewString()
		}
		if comments[i].Status == "" {
			comments[i].Status = models.CommentStatusOpen
		}
		if comments[i].CreatedAt.IsZero() {
			comments[i].CreatedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, query, comments[i]); err != nil {
			return fmt.Errorf("insert review comment: %w", err)
		}
	}
	return tx.Commit()
}

// ListByContract returns all comments on a contract, oldest first.
func (r *ReviewRepository) ListByContract(ctx context.Context, contractID string) ([]models.ReviewComment, error) {
	query := fmt.Sprintf("SELECT %s FROM review_comments WHERE contract_id = $1 ORDER BY created_at ASC", reviewCommentColumns)
	var comments []models.ReviewComment
	if err := r.db.SelectContext(ctx, &comments, query, contractID); err != nil {
		return nil, fmt.Errorf("list review comments: %w", err)
	}
	return comments, nil
}

// GetByID fetches one comment.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*models.ReviewComment, error) {
	query := fmt.Sprintf("SELECT %s FROM review_comments WHERE id = $1", reviewCommentColumns)
	var comment models.ReviewComment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		return nil, err
	}
	return &comment, nil
}

// Resolve marks an open comment resolved. The guard on status makes a
// second resolve attempt match zero rows, which surfaces as
// sql.ErrNoRows.
func (r *ReviewRepository) Resolve(ctx context.Context, id, response string, resolvedAt time.Time) error {
	const query = `UPDATE review_comments
	SET status = 'resolved', resolved_at = $2, resolution_response = $3
	WHERE id = $1 AND status = 'open'`
	result, err := r.db.ExecContext(ctx, query, id, resolvedAt, response)
	if err != nil {
		return fmt.Errorf("resolve review comment: %w", err)
	}
	return requireRow(result, "resolve review comment")
}

// CountOpenByContract returns the number of unresolved comments on a
// contract.
func (r *ReviewRepository) CountOpenByContract(ctx context.Context, contractID string) (int, error) {
	const query = `SELECT COUNT(*) FROM review_comments WHERE contract_id = $1 AND status = 'open'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, contractID); err != nil {
		return 0, fmt.Errorf("count open review comments: %w", err)
	}
	return count, nil
}
