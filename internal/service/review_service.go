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
	appErrors "github.com/grantos/grantos-api/pkg/errors"
)

type reviewStore interface {
	Create(ctx context.Context, comments []models.ReviewComment) error
	ListByContract(ctx context.Context, contractID string) ([]models.ReviewComment, error)
	GetByID(ctx context.Context, id string) (*models.ReviewComment, error)
	Resolve(ctx context.Context, id, response string, resolvedAt time.Time) error
}

type reviewContractReader interface {
	GetByID(ctx context.Context, id string) (*models.Contract, error)
}

// ReviewService aggregates a contract's review state and handles comment
// resolution. Comment statistics are always derived from the live list,
// never stored copies.
type ReviewService struct {
	reviews   reviewStore
	contracts reviewContractReader
	audit     auditLogger
	logger    *zap.Logger
}

// NewReviewService constructs the service.
func NewReviewService(reviews reviewStore, contracts reviewContractReader, audit auditLogger, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{reviews: reviews, contracts: contracts, audit: audit, logger: logger}
}

// ContractReviews returns the full review picture for one contract:
// comments, derived statistics, the review summary if submitted, and the
// recommendation-versus-decision outcome.
func (s *ReviewService) ContractReviews(ctx context.Context, contractID string, actor *models.JWTClaims) (*dto.ContractReviewsResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	if !canViewContract(contract, actor) {
		return nil, appErrors.ErrForbidden
	}

	comments, err := s.reviews.ListByContract(ctx, contractID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list review comments")
	}

	var recommendation *models.Recommendation
	if contract.ProgramManagerReview != nil {
		recommendation = &contract.ProgramManagerReview.Recommendation
	}
	resp := &dto.ContractReviewsResponse{
		Statistics:    models.ComputeCommentStatistics(comments),
		ReviewSummary: contract.ProgramManagerReview,
		Comments:      comments,
		Outcome:       models.CompareDecision(recommendation, contract.DecisionStatus),
	}
	return resp, nil
}

// AddComment attaches a standalone comment to a contract under review.
func (s *ReviewService) AddComment(ctx context.Context, contractID string, payload dto.NewCommentPayload, actor *models.JWTClaims) (*models.ReviewComment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(payload.Comment) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment is required")
	}
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	if actor.Role != models.RoleSuperAdmin {
		if actor.Role != models.RoleProgramManager || !contract.AssignedPGMUsers.Contains(actor.UserID) {
			return nil, appErrors.ErrForbidden
		}
	}
	if contract.Status != models.ContractStatusUnderReview {
		return nil, appErrors.ErrContractLocked
	}

	comment := models.ReviewComment{
		ContractID:     contractID,
		UserID:         actor.UserID,
		UserName:       actor.FullName,
		UserRole:       actor.Role,
		Comment:        strings.TrimSpace(payload.Comment),
		CommentType:    payload.CommentType,
		FlaggedRisk:    payload.FlaggedRisk,
		FlaggedIssue:   payload.FlaggedIssue,
		Recommendation: payload.Recommendation,
		Status:         models.CommentStatusOpen,
		CreatedAt:      time.Now().UTC(),
	}
	batch := []models.ReviewComment{comment}
	if err := s.reviews.Create(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store review comment")
	}
	return &batch[0], nil
}

// ResolveComment marks an open comment resolved with the responder's
// answer. Resolution happens at most once per comment.
func (s *ReviewService) ResolveComment(ctx context.Context, commentID string, req dto.ResolveCommentRequest, actor *models.JWTClaims) (*models.ReviewComment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(req.Response) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "response is required")
	}
	comment, err := s.reviews.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review comment")
	}
	contract, err := s.contracts.GetByID(ctx, comment.ContractID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	if contract.CreatedBy != actor.UserID && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.ErrForbidden
	}
	if comment.Status == models.CommentStatusResolved {
		return nil, appErrors.ErrAlreadyResolved
	}

	now := time.Now().UTC()
	response := strings.TrimSpace(req.Response)
	if err := s.reviews.Resolve(ctx, commentID, response, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAlreadyResolved
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve review comment")
	}

	comment.Status = models.CommentStatusResolved
	comment.ResolvedAt = &now
	comment.ResolutionResponse = &response
	s.emitAudit(ctx, actor, comment)
	return comment, nil
}

func (s *ReviewService) emitAudit(ctx context.Context, actor *models.JWTClaims, comment *models.ReviewComment) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCommentResolve,
		Resource:   "review_comment",
		ResourceID: &comment.ID,
		IPAddress:  "system",
		UserAgent:  "review-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
