package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/models"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
)

func newReviewSvc(store *contractStoreStub, reviews *reviewStoreStub) *ReviewService {
	return NewReviewService(reviews, store, &auditStub{}, nil)
}

func TestReviewStatisticsAreDerived(t *testing.T) {
	store := newContractStoreStub()
	reviews := newReviewStoreStub()
	contract := seedDraft(store, "pm-1")
	store.contracts[contract.ID].AssignedPGMUsers = models.UserIDSet{"pgm-1"}

	require.NoError(t, reviews.Create(context.Background(), []models.ReviewComment{
		{ContractID: contract.ID, UserID: "pgm-1", Comment: "a", FlaggedRisk: true},
		{ContractID: contract.ID, UserID: "pgm-1", Comment: "b", FlaggedIssue: true},
		{ContractID: contract.ID, UserID: "pgm-1", Comment: "c", FlaggedRisk: true, FlaggedIssue: true},
	}))

	svc := newReviewSvc(store, reviews)
	resp, err := svc.ContractReviews(context.Background(), contract.ID, claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)
	require.Equal(t, 3, resp.Statistics.TotalComments)
	require.Equal(t, 3, resp.Statistics.OpenComments)
	require.Equal(t, 2, resp.Statistics.RiskComments)
	require.Equal(t, 2, resp.Statistics.IssueComments)
	require.Equal(t, models.OutcomePending, resp.Outcome)

	// Resolving a comment shifts the derived counts on the next read.
	var commentID string
	for id := range reviews.comments {
		commentID = id
		break
	}
	_, err = svc.ResolveComment(context.Background(), commentID, dto.ResolveCommentRequest{Response: "handled"}, claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)

	resp, err = svc.ContractReviews(context.Background(), contract.ID, claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)
	require.Equal(t, 3, resp.Statistics.TotalComments)
	require.Equal(t, 2, resp.Statistics.OpenComments)
}

func TestReviewOutcomeComparison(t *testing.T) {
	approve := models.RecommendationApprove
	reject := models.RecommendationReject
	decApprove := models.DecisionApprove
	decReject := models.DecisionReject

	require.Equal(t, models.OutcomePending, models.CompareDecision(&approve, nil))
	require.Equal(t, models.OutcomePending, models.CompareDecision(nil, nil))
	require.Equal(t, models.OutcomeMatch, models.CompareDecision(&approve, &decApprove))
	require.Equal(t, models.OutcomeMatch, models.CompareDecision(&reject, &decReject))
	require.Equal(t, models.OutcomeMismatch, models.CompareDecision(&approve, &decReject))
	require.Equal(t, models.OutcomeMismatch, models.CompareDecision(nil, &decApprove))
}

func TestReviewOutcomeFromContractState(t *testing.T) {
	store := newContractStoreStub()
	reviews := newReviewStoreStub()
	contract := seedDraft(store, "pm-1")
	stored := store.contracts[contract.ID]
	stored.ProgramManagerReview = &models.ReviewSummary{Recommendation: models.RecommendationApprove}
	decision := models.DecisionReject
	stored.DecisionStatus = &decision

	svc := newReviewSvc(store, reviews)
	resp, err := svc.ContractReviews(context.Background(), contract.ID, claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)
	require.Equal(t, models.OutcomeMismatch, resp.Outcome)
	require.NotNil(t, resp.ReviewSummary)
}

func TestResolveCommentExactlyOnce(t *testing.T) {
	store := newContractStoreStub()
	reviews := newReviewStoreStub()
	contract := seedDraft(store, "pm-1")

	require.NoError(t, reviews.Create(context.Background(), []models.ReviewComment{
		{ContractID: contract.ID, UserID: "pgm-1", Comment: "needs fixing"},
	}))
	var commentID string
	for id := range reviews.comments {
		commentID = id
	}

	svc := newReviewSvc(store, reviews)
	resolved, err := svc.ResolveComment(context.Background(), commentID, dto.ResolveCommentRequest{Response: "fixed"}, claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)
	require.Equal(t, models.CommentStatusResolved, resolved.Status)
	require.Equal(t, "fixed", *resolved.ResolutionResponse)

	_, err = svc.ResolveComment(context.Background(), commentID, dto.ResolveCommentRequest{Response: "fixed again"}, claimsFor("pm-1", models.RoleProjectManager))
	require.Equal(t, "ALREADY_RESOLVED", appErrors.FromError(err).Code)
}

func TestResolveCommentOnlyOwnerOrAdmin(t *testing.T) {
	store := newContractStoreStub()
	reviews := newReviewStoreStub()
	contract := seedDraft(store, "pm-1")
	require.NoError(t, reviews.Create(context.Background(), []models.ReviewComment{
		{ContractID: contract.ID, UserID: "pgm-1", Comment: "open point"},
	}))
	var commentID string
	for id := range reviews.comments {
		commentID = id
	}

	svc := newReviewSvc(store, reviews)
	_, err := svc.ResolveComment(context.Background(), commentID, dto.ResolveCommentRequest{Response: "mine now"}, claimsFor("pm-9", models.RoleProjectManager))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.ResolveComment(context.Background(), commentID, dto.ResolveCommentRequest{Response: "admin override"}, claimsFor("root", models.RoleSuperAdmin))
	require.NoError(t, err)
}

func TestAddCommentRequiresUnderReview(t *testing.T) {
	store := newContractStoreStub()
	reviews := newReviewStoreStub()
	contract := seedDraft(store, "pm-1")
	store.contracts[contract.ID].AssignedPGMUsers = models.UserIDSet{"pgm-1"}

	svc := newReviewSvc(store, reviews)
	_, err := svc.AddComment(context.Background(), contract.ID, dto.NewCommentPayload{Comment: "too early"}, claimsFor("pgm-1", models.RoleProgramManager))
	require.Equal(t, "CONTRACT_LOCKED", appErrors.FromError(err).Code)

	store.contracts[contract.ID].Status = models.ContractStatusUnderReview
	comment, err := svc.AddComment(context.Background(), contract.ID, dto.NewCommentPayload{Comment: "now it works", FlaggedRisk: true}, claimsFor("pgm-1", models.RoleProgramManager))
	require.NoError(t, err)
	require.Equal(t, models.CommentStatusOpen, comment.Status)
	require.NotEmpty(t, comment.ID)
}
