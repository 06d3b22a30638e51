package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/models"
	"github.com/grantos/grantos-api/internal/repository"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type contractStore interface {
	Create(ctx context.Context, contract *models.Contract) error
	GetByID(ctx context.Context, id string) (*models.Contract, error)
	List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, int, error)
	UpdateDescriptive(ctx context.Context, id string, expectedVersion int, set map[string]interface{}) error
	UpdateAssignments(ctx context.Context, params repository.UpdateAssignmentParams) error
	Delete(ctx context.Context, id, createdBy string) error
}

// ContractService manages contract records through the drafting stage.
type ContractService struct {
	repo   contractStore
	audit  auditLogger
	logger *zap.Logger
}

// NewContractService constructs the service.
func NewContractService(repo contractStore, audit auditLogger, logger *zap.Logger) *ContractService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractService{repo: repo, audit: audit, logger: logger}
}

// Create stores a new draft contract owned by the actor.
func (s *ContractService) Create(ctx context.Context, req dto.CreateContractRequest, actor *models.JWTClaims) (*models.Contract, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(req.GrantName) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grant_name is required")
	}
	startDate, err := optionalDateValue(req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be an RFC 3339 timestamp or YYYY-MM-DD date")
	}
	endDate, err := optionalDateValue(req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be an RFC 3339 timestamp or YYYY-MM-DD date")
	}
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}
	if req.TotalAmount != nil && *req.TotalAmount < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "total_amount must not be negative")
	}

	contract := &models.Contract{
		GrantName:   strings.TrimSpace(req.GrantName),
		Grantor:     strings.TrimSpace(req.Grantor),
		Grantee:     strings.TrimSpace(req.Grantee),
		Purpose:     req.Purpose,
		Notes:       req.Notes,
		Filename:    req.Filename,
		TotalAmount: req.TotalAmount,
		StartDate:   startDate,
		EndDate:     endDate,
		CreatedBy:   actor.UserID,
	}
	if number := strings.TrimSpace(req.ContractNumber); number != "" {
		contract.ContractNumber = &number
	}
	if err := s.repo.Create(ctx, contract); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create contract")
	}
	s.emitAudit(ctx, actor, models.AuditActionContractCreate, contract.ID, contract)
	return contract, nil
}

// Get returns a contract visible to the actor. Superadmins and directors
// see everything; other roles see what they created or are assigned to.
func (s *ContractService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Contract, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	contract, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canViewContract(contract, actor) {
		return nil, appErrors.ErrForbidden
	}
	return contract, nil
}

// List returns contracts matching the query, scoped to the actor's
// visibility.
func (s *ContractService) List(ctx context.Context, query dto.ContractQuery, actor *models.JWTClaims) ([]models.Contract, int, error) {
	if actor == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	filter := models.ContractFilter{
		Status:    query.Status,
		Search:    query.Search,
		DateRange: query.DateRange,
		CreatedBy: query.CreatedBy,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleDirector:
		if query.AssignedTo != "" {
			filter.AssignedTo = query.AssignedTo
			filter.Role = models.RoleProjectManager
		}
	case models.RoleProgramManager:
		filter.AssignedTo = actor.UserID
		filter.Role = models.RoleProgramManager
	default:
		filter.CreatedBy = actor.UserID
	}
	contracts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contracts")
	}
	return contracts, total, nil
}

// Update applies a partial update. Absent fields are untouched, present
// but empty fields clear the stored value. Descriptive changes require
// the caller's version to match and bump it by one; assignment changes
// never touch the version.
func (s *ContractService) Update(ctx context.Context, id string, req dto.UpdateContractRequest, actor *models.JWTClaims) (*models.Contract, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	contract, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.HasDescriptiveChanges() {
		if err := s.applyDescriptive(ctx, contract, req, actor); err != nil {
			return nil, err
		}
	}
	if req.AssignedUsers != nil {
		if err := s.applyAssignments(ctx, contract, *req.AssignedUsers, actor); err != nil {
			return nil, err
		}
	}
	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor, models.AuditActionContractUpdate, id, updated)
	return updated, nil
}

func (s *ContractService) applyDescriptive(ctx context.Context, contract *models.Contract, req dto.UpdateContractRequest, actor *models.JWTClaims) error {
	if contract.CreatedBy != actor.UserID && actor.Role != models.RoleSuperAdmin {
		return appErrors.ErrForbidden
	}
	if contract.Status != models.ContractStatusDraft {
		return appErrors.ErrContractLocked
	}
	if contract.ContractLocked {
		return appErrors.ErrContractLocked
	}
	if req.Version != contract.Version {
		return appErrors.Clone(appErrors.ErrConflict, "contract was modified by someone else, reload and retry")
	}

	set := map[string]interface{}{}
	applyString(set, "grant_name", req.GrantName)
	applyString(set, "contract_number", req.ContractNumber)
	applyString(set, "grantor", req.Grantor)
	applyString(set, "grantee", req.Grantee)
	applyString(set, "purpose", req.Purpose)
	applyString(set, "notes", req.Notes)
	if req.TotalAmount.Set {
		if req.TotalAmount.Valid {
			if req.TotalAmount.Value < 0 {
				return appErrors.Clone(appErrors.ErrValidation, "total_amount must not be negative")
			}
			set["total_amount"] = req.TotalAmount.Value
		} else {
			set["total_amount"] = nil
		}
	}
	applyDate(set, "start_date", req.StartDate)
	applyDate(set, "end_date", req.EndDate)
	if req.AgreementMetadata != nil {
		merged := mergeAgreementMetadata(contract.AgreementMetadata, *req.AgreementMetadata)
		set["agreement_metadata"] = merged
	}
	if len(set) == 0 {
		return nil
	}

	if err := s.repo.UpdateDescriptive(ctx, contract.ID, req.Version, set); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "contract was modified by someone else, reload and retry")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contract")
	}
	return nil
}

func (s *ContractService) applyAssignments(ctx context.Context, contract *models.Contract, payload dto.AssignedUsersPayload, actor *models.JWTClaims) error {
	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleDirector, models.RoleProgramManager:
	default:
		return appErrors.ErrForbidden
	}
	if contract.Status == models.ContractStatusArchived {
		return appErrors.ErrContractLocked
	}
	now := time.Now().UTC()
	err := s.repo.UpdateAssignments(ctx, repository.UpdateAssignmentParams{
		ID:             contract.ID,
		PMUsers:        normalizeIDs(payload.PMUsers),
		PGMUsers:       normalizeIDs(payload.PGMUsers),
		DirectorUsers:  normalizeIDs(payload.DirectorUsers),
		AssignedByID:   actor.UserID,
		AssignedByName: actor.FullName,
		AssignedByRole: string(actor.Role),
		AssignedAt:     now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrContractLocked
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contract assignments")
	}
	s.emitAudit(ctx, actor, models.AuditActionAssignmentChange, contract.ID, payload)
	return nil
}

// Delete removes a draft contract owned by the actor.
func (s *ContractService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	contract, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if contract.CreatedBy != actor.UserID && actor.Role != models.RoleSuperAdmin {
		return appErrors.ErrForbidden
	}
	if contract.Status != models.ContractStatusDraft {
		return appErrors.ErrContractLocked
	}
	if err := s.repo.Delete(ctx, id, contract.CreatedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrContractLocked
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete contract")
	}
	s.emitAudit(ctx, actor, models.AuditActionContractDelete, id, nil)
	return nil
}

func (s *ContractService) load(ctx context.Context, id string) (*models.Contract, error) {
	contract, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	return contract, nil
}

func (s *ContractService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, contractID string, payload interface{}) {
	if s.audit == nil {
		return
	}
	var newValues []byte
	if payload != nil {
		newValues, _ = json.Marshal(payload)
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "contract",
		ResourceID: &contractID,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "contract-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func canViewContract(contract *models.Contract, actor *models.JWTClaims) bool {
	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleDirector:
		return true
	}
	if contract.CreatedBy == actor.UserID {
		return true
	}
	return contract.AssignedSet(actor.Role).Contains(actor.UserID)
}

func applyString(set map[string]interface{}, column string, value dto.OptionalString) {
	if !value.Set {
		return
	}
	set[column] = strings.TrimSpace(value.Value)
}

func applyDate(set map[string]interface{}, column string, value dto.OptionalDate) {
	if !value.Set {
		return
	}
	if value.Valid {
		set[column] = value.Value
	} else {
		set[column] = nil
	}
}

func normalizeIDs(ids []string) models.UserIDSet {
	result := make(models.UserIDSet, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func mergeAgreementMetadata(current *models.AgreementMetadata, payload dto.AgreementMetadataPayload) models.AgreementMetadata {
	merged := models.AgreementMetadata{}
	if current != nil {
		merged = *current
	}
	if payload.AgreementType.Set {
		merged.AgreementType = strings.TrimSpace(payload.AgreementType.Value)
	}
	if payload.Jurisdiction.Set {
		merged.Jurisdiction = strings.TrimSpace(payload.Jurisdiction.Value)
	}
	if payload.GoverningLaw.Set {
		merged.GoverningLaw = strings.TrimSpace(payload.GoverningLaw.Value)
	}
	if payload.SpecialConditions.Set {
		merged.SpecialConditions = strings.TrimSpace(payload.SpecialConditions.Value)
	}
	merged.EffectiveDate = mergeDate(merged.EffectiveDate, payload.EffectiveDate)
	merged.RenewalDate = mergeDate(merged.RenewalDate, payload.RenewalDate)
	merged.TerminationDate = mergeDate(merged.TerminationDate, payload.TerminationDate)
	return merged
}

func mergeDate(current *time.Time, value dto.OptionalDate) *time.Time {
	if !value.Set {
		return current
	}
	if !value.Valid {
		return nil
	}
	v := value.Value
	return &v
}

func optionalDateValue(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := dto.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
