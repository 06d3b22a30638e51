package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/grantos/grantos-api/internal/models"
)

func newContractRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func contractRows(id string, status models.ContractStatus, version int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "contract_number", "grant_name", "grantor", "grantee", "purpose", "notes", "filename",
		"total_amount", "uploaded_at", "start_date", "end_date", "last_edited_at", "status", "version", "created_by",
		"assigned_pm_users", "assigned_pgm_users", "assigned_director_users",
		"assigned_by_id", "assigned_by_name", "assigned_by_role", "assigned_at",
		"additional_documents", "agreement_metadata", "program_manager_review", "forwarded_at", "forwarded_by",
		"decision_status", "decision_comments", "approved_by", "approved_at", "risk_accepted", "business_sign_off", "contract_locked",
		"is_terminated", "archived_at", "archive_reason", "archive_notes",
	}).AddRow(
		id, nil, "Rural Health Grant", "State Health Dept", "Community Clinic", "", "", "grant.pdf",
		125000.0, now, nil, nil, nil, string(status), version, "user-1",
		`[]`, `[]`, `[]`,
		nil, nil, nil, nil,
		`[]`, nil, nil, nil, nil,
		nil, nil, nil, nil, false, false, false,
		false, nil, nil, nil,
	)
}

func TestContractRepositoryCreateForcesDraft(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewContractRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contracts")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	contract := &models.Contract{
		GrantName: "Rural Health Grant",
		Grantor:   "State Health Dept",
		Grantee:   "Community Clinic",
		Filename:  "grant.pdf",
		Status:    models.ContractStatusApproved,
		Version:   7,
		CreatedBy: "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), contract))
	require.NotEmpty(t, contract.ID)
	require.Equal(t, models.ContractStatusDraft, contract.Status)
	require.Equal(t, 1, contract.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewContractRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, contract_number, grant_name")).
		WithArgs("contract-1").
		WillReturnRows(contractRows("contract-1", models.ContractStatusDraft, 1))

	found, err := repo.GetByID(context.Background(), "contract-1")
	require.NoError(t, err)
	require.Equal(t, "contract-1", found.ID)
	require.Equal(t, models.ContractStatusDraft, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewContractRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, contract_number, grant_name")).
		WithArgs("under_review", "%health%").
		WillReturnRows(contractRows("contract-1", models.ContractStatusUnderReview, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM contracts")).
		WithArgs("under_review", "%health%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.ContractFilter{
		Status: []models.ContractStatus{models.ContractStatusUnderReview},
		Search: "Health",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryListAssignedToUsesRoleColumn(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewContractRepository(db)
	mock.ExpectQuery("assigned_pgm_users @>").
		WithArgs(`["user-2"]`).
		WillReturnRows(contractRows("contract-1", models.ContractStatusUnderReview, 1))

	list, err := repo.ListAssignedTo(context.Background(), "user-2", models.RoleProgramManager)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = repo.ListAssignedTo(context.Background(), "user-2", models.RoleSuperAdmin)
	require.Error(t, err)
}

func TestContractRepositoryUpdateDescriptiveVersionGuard(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewContractRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE contracts SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.UpdateDescriptive(context.Background(), "contract-1", 3, map[string]interface{}{
		"grant_name": "Renamed Grant",
		"notes":      nil,
	})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE contracts SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateDescriptive(context.Background(), "contract-1", 2, map[string]interface{}{
		"grant_name": "Renamed Grant",
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryUpdateDescriptiveRejectsUnknownColumn(t *testing.T) {
	db, _, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewContractRepository(db)
	err := repo.UpdateDescriptive(context.Background(), "contract-1", 1, map[string]interface{}{
		"status": "approved",
	})
	require.Error(t, err)
}

func TestContractRepositoryTransitionStatusGuard(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewContractRepository(db)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE contracts SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Transition(context.Background(), TransitionParams{
		ID:   "contract-1",
		From: models.ContractStatusDraft,
		To:   models.ContractStatusUnderReview,
		Set:  map[string]interface{}{"forwarded_at": now, "forwarded_by": "user-1"},
	})
	require.NoError(t, err)

	// Same move again matches nothing once the status changed.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE contracts SET status =")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Transition(context.Background(), TransitionParams{
		ID:   "contract-1",
		From: models.ContractStatusDraft,
		To:   models.ContractStatusUnderReview,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryDeleteOnlyDraftOwner(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewContractRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM contracts")).
		WithArgs("contract-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "contract-1", "user-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryAppendDocument(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()

	repo := NewContractRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("additional_documents ||")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AppendDocument(context.Background(), "contract-1", models.ContractDocument{
		ID:       "doc-1",
		Filename: "budget.xlsx",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDateRangeCutoff(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	cutoff, ok := dateRangeCutoff(models.DateRangeLast30, now)
	require.True(t, ok)
	require.Equal(t, now.AddDate(0, 0, -30), cutoff)

	cutoff, ok = dateRangeCutoff(models.DateRangeThisYear, now)
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), cutoff)

	_, ok = dateRangeCutoff(models.DateRangeAll, now)
	require.False(t, ok)

	_, ok = dateRangeCutoff("", now)
	require.False(t, ok)
}
