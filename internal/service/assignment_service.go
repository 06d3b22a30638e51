package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/models"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
)

type assignmentContractStore interface {
	List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, int, error)
	ListByCreator(ctx context.Context, userID string) ([]models.Contract, error)
	ListAssignedTo(ctx context.Context, userID string, role models.UserRole) ([]models.Contract, error)
	ListAssignedBy(ctx context.Context, userID string) ([]models.Contract, error)
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AssignmentService resolves role-scoped contract views: my drafts, work
// assigned to me, and work I assigned to others.
type AssignmentService struct {
	contracts assignmentContractStore
	users     userDirectory
	logger    *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(contracts assignmentContractStore, users userDirectory, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{contracts: contracts, users: users, logger: logger}
}

// MyDrafts returns the actor's own contracts still in drafting.
func (s *AssignmentService) MyDrafts(ctx context.Context, actor *models.JWTClaims) ([]models.Contract, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	contracts, err := s.contracts.ListByCreator(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list drafts")
	}
	drafts := contracts[:0]
	for _, contract := range contracts {
		if contract.Status == models.ContractStatusDraft {
			drafts = append(drafts, contract)
		}
	}
	return drafts, nil
}

// AssignedToMe returns contracts in the actor's role-scoped assignment
// pool. Superadmins have no pool and see everything instead.
func (s *AssignmentService) AssignedToMe(ctx context.Context, actor *models.JWTClaims) ([]models.Contract, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleSuperAdmin {
		contracts, _, err := s.contracts.List(ctx, models.ContractFilter{})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contracts")
		}
		return contracts, nil
	}
	contracts, err := s.contracts.ListAssignedTo(ctx, actor.UserID, actor.Role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assigned contracts")
	}
	return contracts, nil
}

// AssignedByMe returns contracts the actor assigned to others, decorated
// with assignment provenance and aggregate counts. When the provenance
// query fails the resolver falls back to a full scan filtered locally;
// the response is flagged degraded and unknown assigner fields render
// as "Unknown".
func (s *AssignmentService) AssignedByMe(ctx context.Context, actor *models.JWTClaims) (*dto.AssignedByMeResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	degraded := false
	contracts, err := s.contracts.ListAssignedBy(ctx, actor.UserID)
	if err != nil {
		s.logger.Warn("assigned-by query failed, falling back to full scan",
			zap.String("user_id", actor.UserID), zap.Error(err))
		degraded = true
		all, _, listErr := s.contracts.List(ctx, models.ContractFilter{})
		if listErr != nil {
			return nil, appErrors.Wrap(listErr, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "assignment data unavailable")
		}
		contracts = contracts[:0]
		for _, contract := range all {
			if contract.AssignedByID != nil && *contract.AssignedByID == actor.UserID {
				contracts = append(contracts, contract)
			}
		}
	}

	resp := &dto.AssignedByMeResponse{
		Contracts: make([]dto.AssignedContract, 0, len(contracts)),
		Degraded:  degraded,
	}
	nameCache := make(map[string]string)
	for _, contract := range contracts {
		entry := dto.AssignedContract{
			Contract:         contract,
			AssignedByName:   "Unknown",
			AssignedByRole:   "Unknown",
			AssignedAt:       contract.AssignedAt,
			AllAssignedUsers: s.assignedUserTags(ctx, &contract, nameCache),
		}
		if contract.AssignedByID != nil {
			entry.AssignedByID = *contract.AssignedByID
		}
		if contract.AssignedByName != nil && *contract.AssignedByName != "" {
			entry.AssignedByName = *contract.AssignedByName
		}
		if contract.AssignedByRole != nil && *contract.AssignedByRole != "" {
			entry.AssignedByRole = *contract.AssignedByRole
		}
		resp.Counts.TotalPMs += len(contract.AssignedPMUsers)
		resp.Counts.TotalPGMs += len(contract.AssignedPGMUsers)
		resp.Counts.TotalDirectors += len(contract.AssignedDirectorUsers)
		resp.Contracts = append(resp.Contracts, entry)
	}
	return resp, nil
}

func (s *AssignmentService) assignedUserTags(ctx context.Context, contract *models.Contract, nameCache map[string]string) []dto.AssignedUserTag {
	tags := make([]dto.AssignedUserTag, 0,
		len(contract.AssignedPMUsers)+len(contract.AssignedPGMUsers)+len(contract.AssignedDirectorUsers))
	appendRole := func(ids models.UserIDSet, role models.UserRole) {
		for _, id := range ids {
			tags = append(tags, dto.AssignedUserTag{
				ID:   id,
				Name: s.resolveName(ctx, id, nameCache),
				Role: role,
			})
		}
	}
	appendRole(contract.AssignedPMUsers, models.RoleProjectManager)
	appendRole(contract.AssignedPGMUsers, models.RoleProgramManager)
	appendRole(contract.AssignedDirectorUsers, models.RoleDirector)
	return tags
}

// resolveName is best effort; a missing directory entry degrades to
// "Unknown" rather than failing the listing.
func (s *AssignmentService) resolveName(ctx context.Context, userID string, cache map[string]string) string {
	if name, ok := cache[userID]; ok {
		return name
	}
	name := "Unknown"
	if s.users != nil {
		if user, err := s.users.FindByID(ctx, userID); err == nil && user.FullName != "" {
			name = user.FullName
		}
	}
	cache[userID] = name
	return name
}
