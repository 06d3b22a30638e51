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

// allowedTransitions is the workflow status graph. The draft to approved
// edge is the direct-publish shortcut and is additionally gated by
// configuration.
var allowedTransitions = map[models.ContractStatus][]models.ContractStatus{
	models.ContractStatusDraft:       {models.ContractStatusUnderReview, models.ContractStatusApproved},
	models.ContractStatusUnderReview: {models.ContractStatusReviewed},
	models.ContractStatusReviewed:    {models.ContractStatusApproved, models.ContractStatusRejected},
	models.ContractStatusApproved:    {models.ContractStatusArchived},
	models.ContractStatusRejected:    {models.ContractStatusArchived},
}

// CanTransition reports whether the status graph permits the move.
func CanTransition(from, to models.ContractStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type workflowContractStore interface {
	GetByID(ctx context.Context, id string) (*models.Contract, error)
	Transition(ctx context.Context, params repository.TransitionParams) error
}

type workflowReviewStore interface {
	Create(ctx context.Context, comments []models.ReviewComment) error
	CountOpenByContract(ctx context.Context, contractID string) (int, error)
}

type transitionObserver interface {
	ObserveContractTransition(from, to models.ContractStatus)
}

// WorkflowConfig tunes workflow policy.
type WorkflowConfig struct {
	AllowDirectPublish bool
}

// WorkflowService drives contracts through the approval state machine.
// Every move is guarded twice: validated against the loaded contract,
// then re-checked by the status-guarded update so concurrent requests
// cannot double-apply a transition.
type WorkflowService struct {
	contracts workflowContractStore
	reviews   workflowReviewStore
	audit     auditLogger
	metrics   transitionObserver
	logger    *zap.Logger
	cfg       WorkflowConfig
}

// NewWorkflowService constructs the service. metrics may be nil.
func NewWorkflowService(contracts workflowContractStore, reviews workflowReviewStore, audit auditLogger, metrics transitionObserver, cfg WorkflowConfig, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		contracts: contracts,
		reviews:   reviews,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Publish moves a draft out of the drafting stage, either into review or
// straight to approved when direct publishing is enabled. Exactly one of
// the two flags must be set.
func (s *WorkflowService) Publish(ctx context.Context, id string, req dto.PublishRequest, actor *models.JWTClaims) (*models.Contract, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if req.PublishToReview == req.PublishDirectly {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of publish_to_review and publish_directly must be set")
	}

	contract, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if contract.CreatedBy != actor.UserID && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.ErrForbidden
	}
	if contract.Status != models.ContractStatusDraft {
		return nil, appErrors.InvalidTransition(string(contract.Status), string(models.ContractStatusUnderReview))
	}
	// The name can be cleared by a later edit, so Create's check is not
	// enough; an unnamed draft must not leave drafting.
	if strings.TrimSpace(contract.GrantName) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grant_name must be set before publishing")
	}

	now := time.Now().UTC()
	if req.PublishDirectly {
		if !s.cfg.AllowDirectPublish {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "direct publishing is disabled")
		}
		set := map[string]interface{}{
			"approved_by": actor.UserID,
			"approved_at": now,
		}
		if req.Notes != "" {
			set["notes"] = req.Notes
		}
		if err := s.transition(ctx, contract, models.ContractStatusApproved, set); err != nil {
			return nil, err
		}
		s.emitContractAudit(ctx, actor, models.AuditActionContractPublish, contract.ID, nil)
		return s.load(ctx, id)
	}

	set := map[string]interface{}{
		"forwarded_at": now,
		"forwarded_by": actor.UserID,
	}
	if req.Notes != "" {
		set["notes"] = req.Notes
	}
	if err := s.transition(ctx, contract, models.ContractStatusUnderReview, set); err != nil {
		return nil, err
	}
	s.emitContractAudit(ctx, actor, models.AuditActionContractPublish, contract.ID, nil)
	return s.load(ctx, id)
}

// SubmitReview records the program-manager review and moves the contract
// from under_review to reviewed. Comments land in the same submission.
func (s *WorkflowService) SubmitReview(ctx context.Context, id string, req dto.SubmitReviewRequest, actor *models.JWTClaims) (*models.Contract, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	contract, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleSuperAdmin {
		if actor.Role != models.RoleProgramManager || !contract.AssignedPGMUsers.Contains(actor.UserID) {
			return nil, appErrors.ErrForbidden
		}
	}
	if contract.Status != models.ContractStatusUnderReview {
		return nil, appErrors.InvalidTransition(string(contract.Status), string(models.ContractStatusReviewed))
	}

	now := time.Now().UTC()
	comments := make([]models.ReviewComment, 0, len(req.Comments))
	for _, payload := range req.Comments {
		comments = append(comments, models.ReviewComment{
			ContractID:     contract.ID,
			UserID:         actor.UserID,
			UserName:       actor.FullName,
			UserRole:       actor.Role,
			Comment:        payload.Comment,
			CommentType:    payload.CommentType,
			FlaggedRisk:    payload.FlaggedRisk,
			FlaggedIssue:   payload.FlaggedIssue,
			Recommendation: payload.Recommendation,
			Status:         models.CommentStatusOpen,
			CreatedAt:      now,
		})
	}
	if err := s.reviews.Create(ctx, comments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store review comments")
	}

	summary := models.ReviewSummary{
		Recommendation: req.Recommendation,
		Summary:        req.Summary,
		ReviewedBy:     actor.UserID,
		ReviewerName:   actor.FullName,
		ReviewedAt:     now,
	}
	set := map[string]interface{}{
		"program_manager_review": summary,
	}
	if err := s.transition(ctx, contract, models.ContractStatusReviewed, set); err != nil {
		return nil, err
	}
	s.emitContractAudit(ctx, actor, models.AuditActionReviewSubmit, contract.ID, nil)
	return s.load(ctx, id)
}

// Decide records the director decision on a reviewed contract. Approve
// lands in approved, reject in rejected; rejected is terminal apart from
// archival. A second decision finds the contract already out of reviewed
// and fails as an invalid transition.
func (s *WorkflowService) Decide(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*models.Contract, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if req.Decision != models.DecisionApprove && req.Decision != models.DecisionReject {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be approve or reject")
	}
	if strings.TrimSpace(req.Comments) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision comments are required")
	}

	contract, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleSuperAdmin {
		if actor.Role != models.RoleDirector || !contract.AssignedDirectorUsers.Contains(actor.UserID) {
			return nil, appErrors.ErrForbidden
		}
	}
	if contract.Status != models.ContractStatusReviewed {
		return nil, appErrors.InvalidTransition(string(contract.Status), string(models.ContractStatusApproved))
	}

	now := time.Now().UTC()
	target := models.ContractStatusApproved
	if req.Decision == models.DecisionReject {
		target = models.ContractStatusRejected
	}
	set := map[string]interface{}{
		"decision_status":   req.Decision,
		"decision_comments": req.Comments,
		"risk_accepted":     req.RiskAccepted,
		"business_sign_off": req.BusinessSignOff,
		"contract_locked":   req.LockContract,
	}
	if target == models.ContractStatusApproved {
		set["approved_by"] = actor.UserID
		set["approved_at"] = now
	}
	if err := s.transition(ctx, contract, target, set); err != nil {
		return nil, err
	}
	s.emitContractAudit(ctx, actor, models.AuditActionDirectorDecision, contract.ID, nil)
	return s.load(ctx, id)
}

func (s *WorkflowService) transition(ctx context.Context, contract *models.Contract, to models.ContractStatus, set map[string]interface{}) error {
	if !CanTransition(contract.Status, to) {
		return appErrors.InvalidTransition(string(contract.Status), string(to))
	}
	err := s.contracts.Transition(ctx, repository.TransitionParams{
		ID:   contract.ID,
		From: contract.Status,
		To:   to,
		Set:  set,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Someone else moved the contract first.
			return appErrors.InvalidTransition(string(contract.Status), string(to))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition contract")
	}
	if s.metrics != nil {
		s.metrics.ObserveContractTransition(contract.Status, to)
	}
	s.logger.Info("contract transitioned",
		zap.String("contract_id", contract.ID),
		zap.String("from", string(contract.Status)),
		zap.String("to", string(to)))
	return nil
}

func (s *WorkflowService) load(ctx context.Context, id string) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	return contract, nil
}

func (s *WorkflowService) emitContractAudit(ctx context.Context, actor *models.JWTClaims, action, contractID string, newValues []byte) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "contract",
		ResourceID: &contractID,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "workflow-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
