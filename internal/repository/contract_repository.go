package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/grantos/grantos-api/internal/models"
)

const contractColumns = `id, contract_number, grant_name, grantor, grantee, purpose, notes, filename,
       total_amount, uploaded_at, start_date, end_date, last_edited_at, status, version, created_by,
       assigned_pm_users, assigned_pgm_users, assigned_director_users,
       assigned_by_id, assigned_by_name, assigned_by_role, assigned_at,
       additional_documents, agreement_metadata, program_manager_review, forwarded_at, forwarded_by,
       decision_status, decision_comments, approved_by, approved_at, risk_accepted, business_sign_off, contract_locked,
       is_terminated, archived_at, archive_reason, archive_notes`

// updatableColumns whitelists the descriptive columns a partial update may
// touch. Anything else goes through a dedicated mutation method.
var updatableColumns = map[string]struct{}{
	"contract_number":    {},
	"grant_name":         {},
	"grantor":            {},
	"grantee":            {},
	"purpose":            {},
	"notes":              {},
	"filename":           {},
	"total_amount":       {},
	"start_date":         {},
	"end_date":           {},
	"agreement_metadata": {},
}

// ContractRepository persists contract workflow data.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository constructs the repository.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create inserts a new contract row. Status is forced to draft and
// version to 1 regardless of the caller's input.
func (r *ContractRepository) Create(ctx context.Context, contract *models.Contract) error {
	if contract.ID == "" {
		contract.ID = uuid.NewString()
	}
	contract.Status = models.ContractStatusDraft
	contract.Version = 1
	if contract.UploadedAt.IsZero() {
		contract.UploadedAt = time.Now().UTC()
	}
	if contract.AssignedPMUsers == nil {
		contract.AssignedPMUsers = models.UserIDSet{}
	}
	if contract.AssignedPGMUsers == nil {
		contract.AssignedPGMUsers = models.UserIDSet{}
	}
	if contract.AssignedDirectorUsers == nil {
		contract.AssignedDirectorUsers = models.UserIDSet{}
	}
	if contract.Documents == nil {
		contract.Documents = models.DocumentList{}
	}
	const query = `INSERT INTO contracts
	(id, contract_number, grant_name, grantor, grantee, purpose, notes, filename,
	 total_amount, uploaded_at, start_date, end_date, last_edited_at, status, version, created_by,
	 assigned_pm_users, assigned_pgm_users, assigned_director_users,
	 assigned_by_id, assigned_by_name, assigned_by_role, assigned_at,
	 additional_documents, agreement_metadata, program_manager_review, forwarded_at, forwarded_by,
	 decision_status, decision_comments, approved_by, approved_at, risk_accepted, business_sign_off, contract_locked,
	 is_terminated, archived_at, archive_reason, archive_notes)
	VALUES (:id, :contract_number, :grant_name, :grantor, :grantee, :purpose, :notes, :filename,
	 :total_amount, :uploaded_at, :start_date, :end_date, :last_edited_at, :status, :version, :created_by,
	 :assigned_pm_users, :assigned_pgm_users, :assigned_director_users,
	 :assigned_by_id, :assigned_by_name, :assigned_by_role, :assigned_at,
	 :additional_documents, :agreement_metadata, :program_manager_review, :forwarded_at, :forwarded_by,
	 :decision_status, :decision_comments, :approved_by, :approved_at, :risk_accepted, :business_sign_off, :contract_locked,
	 :is_terminated, :archived_at, :archive_reason, :archive_notes)`
	if _, err := r.db.NamedExecContext(ctx, query, contract); err != nil {
		return fmt.Errorf("create contract: %w", err)
	}
	return nil
}

// GetByID fetches a contract by identifier.
func (r *ContractRepository) GetByID(ctx context.Context, id string) (*models.Contract, error) {
	query := fmt.Sprintf("SELECT %s FROM contracts WHERE id = $1", contractColumns)
	var contract models.Contract
	if err := r.db.GetContext(ctx, &contract, query, id); err != nil {
		return nil, err
	}
	return &contract, nil
}

// List returns contracts matching the filter with a total count.
func (r *ContractRepository) List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, int, error) {
	conditions, args := buildContractConditions(filter)

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM contracts%s ORDER BY uploaded_at DESC LIMIT %d OFFSET %d",
		contractColumns, where, pageSize, offset)

	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list contracts: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM contracts" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count contracts: %w", err)
	}

	return contracts, total, nil
}

func buildContractConditions(filter models.ContractFilter) ([]string, []interface{}) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(filter.Search))+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(grant_name) LIKE $%d OR LOWER(COALESCE(contract_number, '')) LIKE $%d OR LOWER(grantor) LIKE $%d OR LOWER(grantee) LIKE $%d)",
			n, n, n, n))
	}
	if cutoff, ok := dateRangeCutoff(filter.DateRange, time.Now().UTC()); ok {
		args = append(args, cutoff)
		conditions = append(conditions, fmt.Sprintf("uploaded_at >= $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		column := assignmentColumn(filter.Role)
		if column != "" {
			member, _ := json.Marshal([]string{filter.AssignedTo})
			args = append(args, string(member))
			conditions = append(conditions, fmt.Sprintf("%s @> $%d::jsonb", column, len(args)))
		}
	}
	if filter.AssignedBy != "" {
		args = append(args, filter.AssignedBy)
		conditions = append(conditions, fmt.Sprintf("assigned_by_id = $%d", len(args)))
	}

	return conditions, args
}

func assignmentColumn(role models.UserRole) string {
	switch role {
	case models.RoleProjectManager:
		return "assigned_pm_users"
	case models.RoleProgramManager:
		return "assigned_pgm_users"
	case models.RoleDirector:
		return "assigned_director_users"
	default:
		return ""
	}
}

func dateRangeCutoff(r models.DateRange, now time.Time) (time.Time, bool) {
	switch r {
	case models.DateRangeLast30:
		return now.AddDate(0, 0, -30), true
	case models.DateRangeLast90:
		return now.AddDate(0, 0, -90), true
	case models.DateRangeThisYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), true
	default:
		return time.Time{}, false
	}
}

// UpdateDescriptive applies a partial descriptive-field update guarded by
// optimistic concurrency. The set map holds resolved column values (nil
// clears a column). Version is bumped and last_edited_at stamped. Zero
// matched rows surface as sql.ErrNoRows; callers distinguish NotFound
// from Conflict by re-reading.
func (r *ContractRepository) UpdateDescriptive(ctx context.Context, id string, expectedVersion int, set map[string]interface{}) error {
	if len(set) == 0 {
		return nil
	}

	columns := make([]string, 0, len(set))
	for column := range set {
		if _, ok := updatableColumns[column]; !ok {
			return fmt.Errorf("column %s is not updatable", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	setParts := make([]string, 0, len(set)+2)
	args := make([]interface{}, 0, len(set)+3)
	for _, column := range columns {
		args = append(args, set[column])
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	setParts = append(setParts, "version = version + 1")
	args = append(args, time.Now().UTC())
	setParts = append(setParts, fmt.Sprintf("last_edited_at = $%d", len(args)))

	args = append(args, id)
	idPos := len(args)
	args = append(args, expectedVersion)
	versionPos := len(args)

	query := fmt.Sprintf("UPDATE contracts SET %s WHERE id = $%d AND version = $%d",
		strings.Join(setParts, ", "), idPos, versionPos)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	return requireRow(result, "update contract")
}

// UpdateAssignmentParams groups an assignment mutation. Assignment
// changes never bump the contract version.
type UpdateAssignmentParams struct {
	ID             string
	PMUsers        models.UserIDSet
	PGMUsers       models.UserIDSet
	DirectorUsers  models.UserIDSet
	AssignedByID   string
	AssignedByName string
	AssignedByRole string
	AssignedAt     time.Time
}

// UpdateAssignments replaces the role-scoped assignment pools and records
// assigner provenance. Archived contracts are not assignable.
func (r *ContractRepository) UpdateAssignments(ctx context.Context, params UpdateAssignmentParams) error {
	const query = `UPDATE contracts SET
		assigned_pm_users = :assigned_pm_users,
		assigned_pgm_users = :assigned_pgm_users,
		assigned_director_users = :assigned_director_users,
		assigned_by_id = :assigned_by_id,
		assigned_by_name = :assigned_by_name,
		assigned_by_role = :assigned_by_role,
		assigned_at = :assigned_at
	WHERE id = :id AND status <> 'archived'`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                      params.ID,
		"assigned_pm_users":       params.PMUsers,
		"assigned_pgm_users":      params.PGMUsers,
		"assigned_director_users": params.DirectorUsers,
		"assigned_by_id":          params.AssignedByID,
		"assigned_by_name":        params.AssignedByName,
		"assigned_by_role":        params.AssignedByRole,
		"assigned_at":             params.AssignedAt,
	})
	if err != nil {
		return fmt.Errorf("update contract assignments: %w", err)
	}
	return requireRow(result, "update contract assignments")
}

// TransitionParams captures one status-graph move. The update only
// matches rows still in From, which makes repeated transitions fail with
// sql.ErrNoRows instead of silently re-applying.
type TransitionParams struct {
	ID   string
	From models.ContractStatus
	To   models.ContractStatus
	Set  map[string]interface{}
}

// Transition moves a contract along the status graph.
func (r *ContractRepository) Transition(ctx context.Context, params TransitionParams) error {
	setParts := []string{}
	args := []interface{}{}

	args = append(args, params.To)
	setParts = append(setParts, fmt.Sprintf("status = $%d", len(args)))

	columns := make([]string, 0, len(params.Set))
	for column := range params.Set {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		args = append(args, params.Set[column])
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	args = append(args, params.ID)
	idPos := len(args)
	args = append(args, params.From)
	fromPos := len(args)

	query := fmt.Sprintf("UPDATE contracts SET %s WHERE id = $%d AND status = $%d",
		strings.Join(setParts, ", "), idPos, fromPos)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition contract: %w", err)
	}
	return requireRow(result, "transition contract")
}

// AppendDocument appends one attachment to the contract's document list.
// Attachments are only accepted while the contract is in draft or under
// review.
func (r *ContractRepository) AppendDocument(ctx context.Context, id string, doc models.ContractDocument) error {
	payload, err := models.DocumentList{doc}.Value()
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	const query = `UPDATE contracts
	SET additional_documents = additional_documents || $2::jsonb
	WHERE id = $1 AND status IN ('draft', 'under_review')`
	result, err := r.db.ExecContext(ctx, query, id, payload)
	if err != nil {
		return fmt.Errorf("append contract document: %w", err)
	}
	return requireRow(result, "append contract document")
}

// Delete removes a draft contract owned by the caller.
func (r *ContractRepository) Delete(ctx context.Context, id, createdBy string) error {
	const query = `DELETE FROM contracts WHERE id = $1 AND status = 'draft' AND created_by = $2`
	result, err := r.db.ExecContext(ctx, query, id, createdBy)
	if err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	return requireRow(result, "delete contract")
}

// ListByCreator returns contracts created by the given user.
func (r *ContractRepository) ListByCreator(ctx context.Context, userID string) ([]models.Contract, error) {
	query := fmt.Sprintf("SELECT %s FROM contracts WHERE created_by = $1 ORDER BY uploaded_at DESC", contractColumns)
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, userID); err != nil {
		return nil, fmt.Errorf("list contracts by creator: %w", err)
	}
	return contracts, nil
}

// ListAssignedTo returns contracts whose role-scoped pool contains the
// user.
func (r *ContractRepository) ListAssignedTo(ctx context.Context, userID string, role models.UserRole) ([]models.Contract, error) {
	column := assignmentColumn(role)
	if column == "" {
		return nil, fmt.Errorf("role %s has no assignment pool", role)
	}
	member, _ := json.Marshal([]string{userID})
	query := fmt.Sprintf("SELECT %s FROM contracts WHERE %s @> $1::jsonb ORDER BY uploaded_at DESC", contractColumns, column)
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, string(member)); err != nil {
		return nil, fmt.Errorf("list contracts assigned to user: %w", err)
	}
	return contracts, nil
}

// ListAssignedBy returns contracts whose most recent assignment was made
// by the given user.
func (r *ContractRepository) ListAssignedBy(ctx context.Context, userID string) ([]models.Contract, error) {
	query := fmt.Sprintf("SELECT %s FROM contracts WHERE assigned_by_id = $1 ORDER BY assigned_at DESC", contractColumns)
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, userID); err != nil {
		return nil, fmt.Errorf("list contracts assigned by user: %w", err)
	}
	return contracts, nil
}

// ListArchiveEligible returns approved contracts whose term has elapsed
// or that were terminated, plus rejected contracts (always archivable).
func (r *ContractRepository) ListArchiveEligible(ctx context.Context, today time.Time) ([]models.Contract, error) {
	query := fmt.Sprintf(`SELECT %s FROM contracts
	WHERE (status = 'approved' AND (is_terminated = TRUE OR (end_date IS NOT NULL AND end_date < $1)))
	   OR status = 'rejected'
	ORDER BY end_date ASC NULLS LAST`, contractColumns)
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, today); err != nil {
		return nil, fmt.Errorf("list archive eligible contracts: %w", err)
	}
	return contracts, nil
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
