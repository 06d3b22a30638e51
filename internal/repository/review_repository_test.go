package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/grantos/grantos-api/internal/models"
)

func TestReviewRepositoryCreateBatch(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO review_comments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO review_comments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	comments := []models.ReviewComment{
		{ContractID: "contract-1", UserID: "user-2", UserName: "Pat Reviewer", UserRole: models.RoleProgramManager, Comment: "budget line 4 unclear", FlaggedIssue: true},
		{ContractID: "contract-1", UserID: "user-2", UserName: "Pat Reviewer", UserRole: models.RoleProgramManager, Comment: "vendor not vetted", FlaggedRisk: true},
	}
	require.NoError(t, repo.Create(context.Background(), comments))
	require.NotEmpty(t, comments[0].ID)
	require.Equal(t, models.CommentStatusOpen, comments[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryCreateEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)
	require.NoError(t, repo.Create(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryListByContract(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "contract_id", "user_id", "user_name", "user_role", "comment", "comment_type",
		"flagged_risk", "flagged_issue", "recommendation", "status", "created_at", "resolved_at", "resolution_response",
	}).AddRow("comment-1", "contract-1", "user-2", "Pat Reviewer", "PROGRAM_MANAGER", "budget line 4 unclear", "general",
		false, true, nil, "open", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, contract_id, user_id")).
		WithArgs("contract-1").
		WillReturnRows(rows)

	comments, err := repo.ListByContract(context.Background(), "contract-1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Equal(t, models.CommentStatusOpen, comments[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryResolveGuard(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE review_comments")).
		WithArgs("comment-1", now, "fixed the budget line").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Resolve(context.Background(), "comment-1", "fixed the budget line", now))

	// Already resolved rows match nothing.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE review_comments")).
		WithArgs("comment-1", now, "fixed the budget line").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Resolve(context.Background(), "comment-1", "fixed the budget line", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
