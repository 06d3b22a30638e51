package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/models"
	"github.com/grantos/grantos-api/internal/repository"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
)

type archiveContractStore interface {
	GetByID(ctx context.Context, id string) (*models.Contract, error)
	Transition(ctx context.Context, params repository.TransitionParams) error
	ListArchiveEligible(ctx context.Context, today time.Time) ([]models.Contract, error)
}

// ArchiveService selects and archives contracts whose lifecycle ended.
// Approved contracts become eligible once terminated or past their end
// date; rejected contracts are always eligible.
type ArchiveService struct {
	contracts archiveContractStore
	audit     auditLogger
	logger    *zap.Logger
	now       func() time.Time
}

// NewArchiveService constructs the service.
func NewArchiveService(contracts archiveContractStore, audit auditLogger, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{
		contracts: contracts,
		audit:     audit,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Candidates lists archive-eligible contracts with derived past-due
// state, ordered by how long they have been over term.
func (s *ArchiveService) Candidates(ctx context.Context, actor *models.JWTClaims) ([]dto.ArchiveCandidate, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleSuperAdmin && actor.Role != models.RoleDirector {
		return nil, appErrors.ErrForbidden
	}
	now := s.now()
	contracts, err := s.contracts.ListArchiveEligible(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archive candidates")
	}
	candidates := make([]dto.ArchiveCandidate, 0, len(contracts))
	for _, contract := range contracts {
		candidates = append(candidates, dto.ArchiveCandidate{
			Contract:    contract,
			IsPastDue:   contract.IsPastDue(now),
			DaysPastDue: contract.DaysPastDue(now),
		})
	}
	return candidates, nil
}

// Archive moves one eligible contract into the archived terminal state.
func (s *ArchiveService) Archive(ctx context.Context, id string, req dto.ArchiveRequest, actor *models.JWTClaims) (*models.Contract, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleSuperAdmin && actor.Role != models.RoleDirector {
		return nil, appErrors.ErrForbidden
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}

	contract, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	if !s.eligible(contract) {
		return nil, appErrors.InvalidTransition(string(contract.Status), string(models.ContractStatusArchived))
	}

	now := s.now()
	set := map[string]interface{}{
		"archived_at":    now,
		"archive_reason": strings.TrimSpace(req.Reason),
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		set["archive_notes"] = notes
	}
	err = s.contracts.Transition(ctx, repository.TransitionParams{
		ID:   contract.ID,
		From: contract.Status,
		To:   models.ContractStatusArchived,
		Set:  set,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.InvalidTransition(string(contract.Status), string(models.ContractStatusArchived))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive contract")
	}
	s.emitAudit(ctx, actor, contract.ID)
	archived, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload contract")
	}
	return archived, nil
}

// BatchArchive archives each id independently. One failure never aborts
// the rest; the result reports per-id errors.
func (s *ArchiveService) BatchArchive(ctx context.Context, req dto.BatchArchiveRequest, actor *models.JWTClaims) (*dto.BatchArchiveResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if len(req.IDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ids is required")
	}
	result := &dto.BatchArchiveResult{Failed: []dto.BatchArchiveFailure{}}
	single := dto.ArchiveRequest{Reason: req.Reason, Notes: req.Notes}
	for _, id := range req.IDs {
		if _, err := s.Archive(ctx, id, single, actor); err != nil {
			result.Failed = append(result.Failed, dto.BatchArchiveFailure{
				ID:    id,
				Error: appErrors.FromError(err).Message,
			})
			continue
		}
		result.Archived++
	}
	return result, nil
}

func (s *ArchiveService) eligible(contract *models.Contract) bool {
	switch contract.Status {
	case models.ContractStatusRejected:
		return true
	case models.ContractStatusApproved:
		return contract.IsTerminated || contract.IsPastDue(s.now())
	default:
		return false
	}
}

func (s *ArchiveService) emitAudit(ctx context.Context, actor *models.JWTClaims, contractID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionContractArchive,
		Resource:   "contract",
		ResourceID: &contractID,
		IPAddress:  "system",
		UserAgent:  "archive-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
