package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/models"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
)

type dashboardContractStore interface {
	List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, int, error)
	ListByCreator(ctx context.Context, userID string) ([]models.Contract, error)
	ListAssignedTo(ctx context.Context, userID string, role models.UserRole) ([]models.Contract, error)
	ListArchiveEligible(ctx context.Context, today time.Time) ([]models.Contract, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes role-shaped workflow summaries. Payloads are
// cached per user because the underlying counts are assignment-scoped.
type DashboardService struct {
	contracts dashboardContractStore
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
	cfg       DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(contracts dashboardContractStore, cache *CacheService, cfg DashboardServiceConfig, logger *zap.Logger) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		contracts: contracts,
		cache:     cache,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		cfg:       cfg,
	}
}

// Summary builds (or serves from cache) the actor's dashboard. The
// second return value reports whether the payload came from cache.
func (s *DashboardService) Summary(ctx context.Context, actor *models.JWTClaims) (*dto.DashboardSummary, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	cacheKey := fmt.Sprintf("dashboard:%s:%s", actor.Role, actor.UserID)
	if s.cache.Enabled() {
		var cached dto.DashboardSummary
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	summary, err := s.build(ctx, actor)
	if err != nil {
		return nil, false, err
	}
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard payload", zap.Error(err))
		}
	}
	return summary, false, nil
}

// Invalidate drops cached dashboards. Called after workflow mutations.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *DashboardService) build(ctx context.Context, actor *models.JWTClaims) (*dto.DashboardSummary, error) {
	summary := &dto.DashboardSummary{
		StatusCounts: map[string]int{},
		GeneratedAt:  s.now(),
	}

	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleDirector:
		all, _, err := s.contracts.List(ctx, models.ContractFilter{})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
		}
		for _, contract := range all {
			summary.StatusCounts[string(contract.Status)]++
			if contract.TotalAmount != nil {
				summary.TotalValue += *contract.TotalAmount
			}
			if contract.Status == models.ContractStatusReviewed {
				summary.PendingDecisions++
			}
		}
		eligible, err := s.contracts.ListArchiveEligible(ctx, s.now())
		if err != nil {
			s.logger.Warn("failed to count archive-eligible contracts", zap.Error(err))
		} else {
			summary.ArchiveEligible = len(eligible)
		}
		if actor.Role == models.RoleDirector {
			assigned, err := s.contracts.ListAssignedTo(ctx, actor.UserID, models.RoleDirector)
			if err == nil {
				summary.AssignedToMe = len(assigned)
			}
		}

	case models.RoleProgramManager:
		assigned, err := s.contracts.ListAssignedTo(ctx, actor.UserID, models.RoleProgramManager)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
		}
		summary.AssignedToMe = len(assigned)
		for _, contract := range assigned {
			summary.StatusCounts[string(contract.Status)]++
			if contract.Status == models.ContractStatusUnderReview {
				summary.PendingReviews++
			}
		}

	default:
		created, err := s.contracts.ListByCreator(ctx, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
		}
		for _, contract := range created {
			summary.StatusCounts[string(contract.Status)]++
			if contract.TotalAmount != nil {
				summary.TotalValue += *contract.TotalAmount
			}
			if contract.Status == models.ContractStatusDraft {
				summary.MyDrafts++
			}
		}
		assigned, err := s.contracts.ListAssignedTo(ctx, actor.UserID, models.RoleProjectManager)
		if err == nil {
			summary.AssignedToMe = len(assigned)
		}
	}
	return summary, nil
}
