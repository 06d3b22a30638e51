package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/models"
	"github.com/grantos/grantos-api/internal/repository"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
)

// contractStoreStub is a shared in-memory contract store used across the
// service tests in this package.
type contractStoreStub struct {
	contracts    map[string]*models.Contract
	nextID       int
	failListedBy bool
	failList     bool
}

func newContractStoreStub() *contractStoreStub {
	return &contractStoreStub{contracts: make(map[string]*models.Contract)}
}

func (s *contractStoreStub) Create(ctx context.Context, contract *models.Contract) error {
	if contract.ID == "" {
		s.nextID++
		contract.ID = fmt.Sprintf("contract-%d", s.nextID)
	}
	contract.Status = models.ContractStatusDraft
	contract.Version = 1
	if contract.UploadedAt.IsZero() {
		contract.UploadedAt = time.Now().UTC()
	}
	clone := *contract
	s.contracts[contract.ID] = &clone
	return nil
}

func (s *contractStoreStub) GetByID(ctx context.Context, id string) (*models.Contract, error) {
	contract, ok := s.contracts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *contract
	return &clone, nil
}

func (s *contractStoreStub) List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, int, error) {
	if s.failList {
		return nil, 0, errors.New("contract listing unavailable")
	}
	result := make([]models.Contract, 0, len(s.contracts))
	for _, contract := range s.contracts {
		if len(filter.Status) > 0 {
			match := false
			for _, status := range filter.Status {
				if contract.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		if filter.CreatedBy != "" && contract.CreatedBy != filter.CreatedBy {
			continue
		}
		result = append(result, *contract)
	}
	return result, len(result), nil
}

func (s *contractStoreStub) UpdateDescriptive(ctx context.Context, id string, expectedVersion int, set map[string]interface{}) error {
	contract, ok := s.contracts[id]
	if !ok || contract.Version != expectedVersion {
		return sql.ErrNoRows
	}
	if v, ok := set["grant_name"]; ok {
		contract.GrantName = v.(string)
	}
	if v, ok := set["notes"]; ok {
		if v == nil {
			contract.Notes = ""
		} else {
			contract.Notes = v.(string)
		}
	}
	if v, ok := set["total_amount"]; ok {
		if v == nil {
			contract.TotalAmount = nil
		} else {
			amount := v.(float64)
			contract.TotalAmount = &amount
		}
	}
	if v, ok := set["end_date"]; ok {
		if v == nil {
			contract.EndDate = nil
		} else {
			end := v.(time.Time)
			contract.EndDate = &end
		}
	}
	contract.Version++
	now := time.Now().UTC()
	contract.LastEditedAt = &now
	return nil
}

func (s *contractStoreStub) UpdateAssignments(ctx context.Context, params repository.UpdateAssignmentParams) error {
	contract, ok := s.contracts[params.ID]
	if !ok || contract.Status == models.ContractStatusArchived {
		return sql.ErrNoRows
	}
	contract.AssignedPMUsers = params.PMUsers
	contract.AssignedPGMUsers = params.PGMUsers
	contract.AssignedDirectorUsers = params.DirectorUsers
	contract.AssignedByID = &params.AssignedByID
	contract.AssignedByName = &params.AssignedByName
	contract.AssignedByRole = &params.AssignedByRole
	contract.AssignedAt = &params.AssignedAt
	return nil
}

func (s *contractStoreStub) Transition(ctx context.Context, params repository.TransitionParams) error {
	contract, ok := s.contracts[params.ID]
	if !ok || contract.Status != params.From {
		return sql.ErrNoRows
	}
	contract.Status = params.To
	for column, value := range params.Set {
		switch column {
		case "approved_by":
			v := value.(string)
			contract.ApprovedBy = &v
		case "approved_at":
			v := value.(time.Time)
			contract.ApprovedAt = &v
		case "forwarded_by":
			v := value.(string)
			contract.ForwardedBy = &v
		case "forwarded_at":
			v := value.(time.Time)
			contract.ForwardedAt = &v
		case "program_manager_review":
			v := value.(models.ReviewSummary)
			contract.ProgramManagerReview = &v
		case "decision_status":
			v := value.(models.DecisionStatus)
			contract.DecisionStatus = &v
		case "decision_comments":
			v := value.(string)
			contract.DecisionComments = &v
		case "risk_accepted":
			contract.RiskAccepted = value.(bool)
		case "business_sign_off":
			contract.BusinessSignOff = value.(bool)
		case "contract_locked":
			contract.ContractLocked = value.(bool)
		case "archived_at":
			v := value.(time.Time)
			contract.ArchivedAt = &v
		case "archive_reason":
			v := value.(string)
			contract.ArchiveReason = &v
		case "archive_notes":
			v := value.(string)
			contract.ArchiveNotes = &v
		case "notes":
			contract.Notes = value.(string)
		}
	}
	return nil
}

func (s *contractStoreStub) AppendDocument(ctx context.Context, id string, doc models.ContractDocument) error {
	contract, ok := s.contracts[id]
	if !ok {
		return sql.ErrNoRows
	}
	if contract.Status != models.ContractStatusDraft && contract.Status != models.ContractStatusUnderReview {
		return sql.ErrNoRows
	}
	contract.Documents = append(contract.Documents, doc)
	return nil
}

func (s *contractStoreStub) Delete(ctx context.Context, id, createdBy string) error {
	contract, ok := s.contracts[id]
	if !ok || contract.Status != models.ContractStatusDraft || contract.CreatedBy != createdBy {
		return sql.ErrNoRows
	}
	delete(s.contracts, id)
	return nil
}

func (s *contractStoreStub) ListByCreator(ctx context.Context, userID string) ([]models.Contract, error) {
	var result []models.Contract
	for _, contract := range s.contracts {
		if contract.CreatedBy == userID {
			result = append(result, *contract)
		}
	}
	return result, nil
}

func (s *contractStoreStub) ListAssignedTo(ctx context.Context, userID string, role models.UserRole) ([]models.Contract, error) {
	var result []models.Contract
	for _, contract := range s.contracts {
		if contract.AssignedSet(role).Contains(userID) {
			result = append(result, *contract)
		}
	}
	return result, nil
}

func (s *contractStoreStub) ListAssignedBy(ctx context.Context, userID string) ([]models.Contract, error) {
	if s.failListedBy {
		return nil, errors.New("assignment index unavailable")
	}
	var result []models.Contract
	for _, contract := range s.contracts {
		if contract.AssignedByID != nil && *contract.AssignedByID == userID {
			result = append(result, *contract)
		}
	}
	return result, nil
}

func (s *contractStoreStub) ListArchiveEligible(ctx context.Context, today time.Time) ([]models.Contract, error) {
	var result []models.Contract
	for _, contract := range s.contracts {
		pastDue := contract.EndDate != nil && today.After(*contract.EndDate)
		if contract.Status == models.ContractStatusRejected ||
			(contract.Status == models.ContractStatusApproved && (contract.IsTerminated || pastDue)) {
			result = append(result, *contract)
		}
	}
	return result, nil
}

type reviewStoreStub struct {
	comments map[string]*models.ReviewComment
	nextID   int
}

func newReviewStoreStub() *reviewStoreStub {
	return &reviewStoreStub{comments: make(map[string]*models.ReviewComment)}
}

func (s *reviewStoreStub) Create(ctx context.Context, comments []models.ReviewComment) error {
	for i := range comments {
		if comments[i].ID == "" {
			s.nextID++
			comments[i].ID = fmt.Sprintf("comment-%d", s.nextID)
		}
		if comments[i].Status == "" {
			comments[i].Status = models.CommentStatusOpen
		}
		clone := comments[i]
		s.comments[clone.ID] = &clone
	}
	return nil
}

func (s *reviewStoreStub) ListByContract(ctx context.Context, contractID string) ([]models.ReviewComment, error) {
	var result []models.ReviewComment
	for _, comment := range s.comments {
		if comment.ContractID == contractID {
			result = append(result, *comment)
		}
	}
	return result, nil
}

func (s *reviewStoreStub) GetByID(ctx context.Context, id string) (*models.ReviewComment, error) {
	comment, ok := s.comments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *comment
	return &clone, nil
}

func (s *reviewStoreStub) Resolve(ctx context.Context, id, response string, resolvedAt time.Time) error {
	comment, ok := s.comments[id]
	if !ok || comment.Status != models.CommentStatusOpen {
		return sql.ErrNoRows
	}
	comment.Status = models.CommentStatusResolved
	comment.ResolvedAt = &resolvedAt
	comment.ResolutionResponse = &response
	return nil
}

func (s *reviewStoreStub) CountOpenByContract(ctx context.Context, contractID string) (int, error) {
	count := 0
	for _, comment := range s.comments {
		if comment.ContractID == contractID && comment.Status == models.CommentStatusOpen {
			count++
		}
	}
	return count, nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func claimsFor(userID string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: role, FullName: "Test " + userID}
}

func seedDraft(store *contractStoreStub, createdBy string) *models.Contract {
	contract := &models.Contract{
		GrantName: "Rural Health Grant",
		Grantor:   "State Health Dept",
		Grantee:   "Community Clinic",
		CreatedBy: createdBy,
	}
	_ = store.Create(context.Background(), contract)
	return store.contracts[contract.ID]
}

func newWorkflow(store *contractStoreStub, reviews *reviewStoreStub, directPublish bool) *WorkflowService {
	return NewWorkflowService(store, reviews, &auditStub{}, nil, WorkflowConfig{AllowDirectPublish: directPublish}, nil)
}

type transitionObserverStub struct {
	moves [][2]models.ContractStatus
}

func (o *transitionObserverStub) ObserveContractTransition(from, to models.ContractStatus) {
	o.moves = append(o.moves, [2]models.ContractStatus{from, to})
}

func TestWorkflowReportsTransitions(t *testing.T) {
	store := newContractStoreStub()
	contract := seedDraft(store, "pm-1")
	observer := &transitionObserverStub{}
	svc := NewWorkflowService(store, newReviewStoreStub(), &auditStub{}, observer, WorkflowConfig{}, nil)

	_, err := svc.Publish(context.Background(), contract.ID, dto.PublishRequest{PublishToReview: true}, claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)
	require.Equal(t, [][2]models.ContractStatus{{models.ContractStatusDraft, models.ContractStatusUnderReview}}, observer.moves)
}

func TestWorkflowPublishRequiresExactlyOneFlag(t *testing.T) {
	store := newContractStoreStub()
	contract := seedDraft(store, "pm-1")
	svc := newWorkflow(store, newReviewStoreStub(), true)
	actor := claimsFor("pm-1", models.RoleProjectManager)

	_, err := svc.Publish(context.Background(), contract.ID, dto.PublishRequest{}, actor)
	require.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	_, err = svc.Publish(context.Background(), contract.ID, dto.PublishRequest{PublishToReview: true, PublishDirectly: true}, actor)
	require.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestWorkflowPublishToReview(t *testing.T) {
	store := newContractStoreStub()
	contract := seedDraft(store, "pm-1")
	store.contracts[contract.ID].AssignedPGMUsers = models.UserIDSet{"pgm-1"}
	svc := newWorkflow(store, newReviewStoreStub(), true)
	actor := claimsFor("pm-1", models.RoleProjectManager)

	updated, err := svc.Publish(context.Background(), contract.ID, dto.PublishRequest{PublishToReview: true}, actor)
	require.NoError(t, err)
	require.Equal(t, models.ContractStatusUnderReview, updated.Status)
	require.NotNil(t, updated.ForwardedAt)
	require.Equal(t, "pm-1", *updated.ForwardedBy)

	// Publishing again fails: the contract already left draft.
	_, err = svc.Publish(context.Background(), contract.ID, dto.PublishRequest{PublishToReview: true}, actor)
	require.Equal(t, "INVALID_TRANSITION", appErrors.FromError(err).Code)
}

func TestWorkflowPublishWithoutReviewersSucceeds(t *testing.T) {
	// Assignments stay mutable after publishing, so an empty reviewer
	// pool does not block the move into review.
	store := newContractStoreStub()
	contract := seedDraft(store, "pm-1")
	svc := newWorkflow(store, newReviewStoreStub(), true)

	updated, err := svc.Publish(context.Background(), contract.ID, dto.PublishRequest{PublishToReview: true}, claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)
	require.Equal(t, models.ContractStatusUnderReview, updated.Status)
}

func TestWorkflowPublishRequiresGrantName(t *testing.T) {
	store := newContractStoreStub()
	contract := seedDraft(store, "pm-1")
	store.contracts[contract.ID].GrantName = "  "
	svc := newWorkflow(store, newReviewStoreStub(), true)
	actor := claimsFor("pm-1", models.RoleProjectManager)

	_, err := svc.Publish(context.Background(), contract.ID, dto.PublishRequest{PublishToReview: true}, actor)
	require.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	_, err = svc.Publish(context.Background(), contract.ID, dto.PublishRequest{PublishDirectly: true}, actor)
	require.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
	require.Equal(t, models.ContractStatusDraft, store.contracts[contract.ID].Status)
}

func TestWorkflowDirectPublishPolicy(t *testing.T) {
	store := newContractStoreStub()
	contract := seedDraft(store, "pm-1")
	actor := claimsFor("pm-1", models.RoleProjectManager)

	blocked := newWorkflow(store, newReviewStoreStub(), false)
	_, err := blocked.Publish(context.Background(), contract.ID, dto.PublishRequest{PublishDirectly: true}, actor)
	require.Equal(t, "FORBIDDEN", appErrors.FromError(err).Code)

	allowed := newWorkflow(store, newReviewStoreStub(), true)
	updated, err := allowed.Publish(context.Background(), contract.ID, dto.PublishRequest{PublishDirectly: true}, actor)
	require.NoError(t, err)
	require.Equal(t, models.ContractStatusApproved, updated.Status)
	require.Equal(t, "pm-1", *updated.ApprovedBy)
}

func TestWorkflowSubmitReview(t *testing.T) {
	store := newContractStoreStub()
	reviews := newReviewStoreStub()
	contract := seedDraft(store, "pm-1")
	stored := store.contracts[contract.ID]
	stored.Status = models.ContractStatusUnderReview
	stored.AssignedPGMUsers = models.UserIDSet{"pgm-1"}

	svc := newWorkflow(store, reviews, true)
	req := dto.SubmitReviewRequest{
		Recommendation: models.RecommendationApprove,
		Summary:        "budget is sound",
		Comments: []dto.NewCommentPayload{
			{Comment: "check vendor list", FlaggedIssue: true},
		},
	}
	updated, err := svc.SubmitReview(context.Background(), contract.ID, req, claimsFor("pgm-1", models.RoleProgramManager))
	require.NoError(t, err)
	require.Equal(t, models.ContractStatusReviewed, updated.Status)
	require.NotNil(t, updated.ProgramManagerReview)
	require.Equal(t, models.RecommendationApprove, updated.ProgramManagerReview.Recommendation)
	require.Len(t, reviews.comments, 1)

	// A second submission is rejected outright.
	_, err = svc.SubmitReview(context.Background(), contract.ID, req, claimsFor("pgm-1", models.RoleProgramManager))
	require.Equal(t, "INVALID_TRANSITION", appErrors.FromError(err).Code)
}

func TestWorkflowSubmitReviewUnassignedForbidden(t *testing.T) {
	store := newContractStoreStub()
	contract := seedDraft(store, "pm-1")
	store.contracts[contract.ID].Status = models.ContractStatusUnderReview

	svc := newWorkflow(store, newReviewStoreStub(), true)
	_, err := svc.SubmitReview(context.Background(), contract.ID, dto.SubmitReviewRequest{
		Recommendation: models.RecommendationApprove,
		Summary:        "ok",
	}, claimsFor("pgm-9", models.RoleProgramManager))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestWorkflowDecideApproveAndRejectPaths(t *testing.T) {
	store := newContractStoreStub()
	contract := seedDraft(store, "pm-1")
	stored := store.contracts[contract.ID]
	stored.Status = models.ContractStatusReviewed
	stored.AssignedDirectorUsers = models.UserIDSet{"dir-1"}

	svc := newWorkflow(store, newReviewStoreStub(), true)
	updated, err := svc.Decide(context.Background(), contract.ID, dto.DecisionRequest{
		Decision:     models.DecisionApprove,
		Comments:     "approved as presented",
		LockContract: true,
	}, claimsFor("dir-1", models.RoleDirector))
	require.NoError(t, err)
	require.Equal(t, models.ContractStatusApproved, updated.Status)
	require.True(t, updated.ContractLocked)
	require.Equal(t, "dir-1", *updated.ApprovedBy)
	require.Equal(t, models.DecisionApprove, *updated.DecisionStatus)

	// A second decision finds the contract already approved.
	_, err = svc.Decide(context.Background(), contract.ID, dto.DecisionRequest{
		Decision: models.DecisionReject,
		Comments: "changed my mind",
	}, claimsFor("dir-1", models.RoleDirector))
	require.Equal(t, "INVALID_TRANSITION", appErrors.FromError(err).Code)
}

func TestWorkflowDecideRequiresComments(t *testing.T) {
	store := newContractStoreStub()
	contract := seedDraft(store, "pm-1")
	stored := store.contracts[contract.ID]
	stored.Status = models.ContractStatusReviewed
	stored.AssignedDirectorUsers = models.UserIDSet{"dir-1"}

	svc := newWorkflow(store, newReviewStoreStub(), true)
	_, err := svc.Decide(context.Background(), contract.ID, dto.DecisionRequest{
		Decision: models.DecisionApprove,
		Comments: "   ",
	}, claimsFor("dir-1", models.RoleDirector))
	require.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
	require.Equal(t, models.ContractStatusReviewed, stored.Status)
}

func TestWorkflowDecideRejectIsTerminal(t *testing.T) {
	store := newContractStoreStub()
	contract := seedDraft(store, "pm-1")
	stored := store.contracts[contract.ID]
	stored.Status = models.ContractStatusReviewed
	stored.AssignedDirectorUsers = models.UserIDSet{"dir-1"}

	svc := newWorkflow(store, newReviewStoreStub(), true)
	updated, err := svc.Decide(context.Background(), contract.ID, dto.DecisionRequest{
		Decision: models.DecisionReject,
		Comments: "budget overruns",
	}, claimsFor("dir-1", models.RoleDirector))
	require.NoError(t, err)
	require.Equal(t, models.ContractStatusRejected, updated.Status)
	require.Nil(t, updated.ApprovedBy)

	require.False(t, CanTransition(models.ContractStatusRejected, models.ContractStatusUnderReview))
	require.False(t, CanTransition(models.ContractStatusRejected, models.ContractStatusApproved))
	require.True(t, CanTransition(models.ContractStatusRejected, models.ContractStatusArchived))
}

func TestWorkflowTransitionGraph(t *testing.T) {
	require.True(t, CanTransition(models.ContractStatusDraft, models.ContractStatusUnderReview))
	require.True(t, CanTransition(models.ContractStatusDraft, models.ContractStatusApproved))
	require.True(t, CanTransition(models.ContractStatusUnderReview, models.ContractStatusReviewed))
	require.True(t, CanTransition(models.ContractStatusReviewed, models.ContractStatusRejected))
	require.False(t, CanTransition(models.ContractStatusDraft, models.ContractStatusReviewed))
	require.False(t, CanTransition(models.ContractStatusUnderReview, models.ContractStatusApproved))
	require.False(t, CanTransition(models.ContractStatusArchived, models.ContractStatusDraft))
	require.False(t, CanTransition(models.ContractStatusApproved, models.ContractStatusDraft))
}
