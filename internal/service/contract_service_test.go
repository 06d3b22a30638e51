package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grantos/grantos-api/internal/dto"
	"github.com/grantos/grantos-api/internal/models"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
)

func newContractSvc(store *contractStoreStub) *ContractService {
	return NewContractService(store, &auditStub{}, nil)
}

func TestContractServiceCreateStartsAsDraft(t *testing.T) {
	store := newContractStoreStub()
	svc := newContractSvc(store)

	amount := 125000.0
	contract, err := svc.Create(context.Background(), dto.CreateContractRequest{
		GrantName:   "Rural Health Grant",
		Grantor:     "State Health Dept",
		Grantee:     "Community Clinic",
		TotalAmount: &amount,
		StartDate:   "2025-01-01",
		EndDate:     "2025-12-31",
	}, claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)
	require.Equal(t, models.ContractStatusDraft, contract.Status)
	require.Equal(t, 1, contract.Version)
	require.Equal(t, "pm-1", contract.CreatedBy)
	require.NotNil(t, contract.StartDate)
}

func TestContractServiceCreateValidation(t *testing.T) {
	svc := newContractSvc(newContractStoreStub())
	actor := claimsFor("pm-1", models.RoleProjectManager)

	_, err := svc.Create(context.Background(), dto.CreateContractRequest{}, actor)
	require.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateContractRequest{
		GrantName: "Grant",
		StartDate: "2025-12-31",
		EndDate:   "2025-01-01",
	}, actor)
	require.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)

	negative := -5.0
	_, err = svc.Create(context.Background(), dto.CreateContractRequest{
		GrantName:   "Grant",
		TotalAmount: &negative,
	}, actor)
	require.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestContractServiceUpdateThreeWaySemantics(t *testing.T) {
	store := newContractStoreStub()
	svc := newContractSvc(store)
	contract := seedDraft(store, "pm-1")
	amount := 1000.0
	store.contracts[contract.ID].TotalAmount = &amount
	store.contracts[contract.ID].Notes = "initial notes"
	actor := claimsFor("pm-1", models.RoleProjectManager)

	// Absent fields stay untouched, present-but-null clears.
	var req dto.UpdateContractRequest
	require.NoError(t, json.Unmarshal([]byte(`{"version":1,"grant_name":"Renamed Grant","total_amount":null}`), &req))
	updated, err := svc.Update(context.Background(), contract.ID, req, actor)
	require.NoError(t, err)
	require.Equal(t, "Renamed Grant", updated.GrantName)
	require.Nil(t, updated.TotalAmount)
	require.Equal(t, "initial notes", updated.Notes)
	require.Equal(t, 2, updated.Version)
}

func TestContractServiceUpdateStaleVersionConflicts(t *testing.T) {
	store := newContractStoreStub()
	svc := newContractSvc(store)
	contract := seedDraft(store, "pm-1")
	store.contracts[contract.ID].Version = 3
	actor := claimsFor("pm-1", models.RoleProjectManager)

	var req dto.UpdateContractRequest
	require.NoError(t, json.Unmarshal([]byte(`{"version":2,"grant_name":"Too Late"}`), &req))
	_, err := svc.Update(context.Background(), contract.ID, req, actor)
	require.Equal(t, "CONFLICT", appErrors.FromError(err).Code)
}

func TestContractServiceAssignmentOnlyUpdateKeepsVersion(t *testing.T) {
	store := newContractStoreStub()
	svc := newContractSvc(store)
	contract := seedDraft(store, "pm-1")
	director := claimsFor("dir-1", models.RoleDirector)

	req := dto.UpdateContractRequest{
		Version: 1,
		AssignedUsers: &dto.AssignedUsersPayload{
			PMUsers:       []string{"pm-1", "pm-1", " "},
			PGMUsers:      []string{"pgm-1"},
			DirectorUsers: []string{"dir-1"},
		},
	}
	updated, err := svc.Update(context.Background(), contract.ID, req, director)
	require.NoError(t, err)
	require.Equal(t, 1, updated.Version)
	require.Equal(t, models.UserIDSet{"pm-1"}, updated.AssignedPMUsers)
	require.Equal(t, "dir-1", *updated.AssignedByID)
	require.Equal(t, string(models.RoleDirector), *updated.AssignedByRole)
}

func TestContractServiceUpdateLockedOutsideDraft(t *testing.T) {
	store := newContractStoreStub()
	svc := newContractSvc(store)
	contract := seedDraft(store, "pm-1")
	store.contracts[contract.ID].Status = models.ContractStatusApproved
	actor := claimsFor("pm-1", models.RoleProjectManager)

	var req dto.UpdateContractRequest
	require.NoError(t, json.Unmarshal([]byte(`{"version":1,"grant_name":"Nope"}`), &req))
	_, err := svc.Update(context.Background(), contract.ID, req, actor)
	require.Equal(t, "CONTRACT_LOCKED", appErrors.FromError(err).Code)
}

func TestContractServiceDeleteRules(t *testing.T) {
	store := newContractStoreStub()
	svc := newContractSvc(store)
	contract := seedDraft(store, "pm-1")

	err := svc.Delete(context.Background(), contract.ID, claimsFor("pm-2", models.RoleProjectManager))
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	store.contracts[contract.ID].Status = models.ContractStatusUnderReview
	err = svc.Delete(context.Background(), contract.ID, claimsFor("pm-1", models.RoleProjectManager))
	require.Equal(t, "CONTRACT_LOCKED", appErrors.FromError(err).Code)

	store.contracts[contract.ID].Status = models.ContractStatusDraft
	require.NoError(t, svc.Delete(context.Background(), contract.ID, claimsFor("pm-1", models.RoleProjectManager)))
	_, err = svc.Get(context.Background(), contract.ID, claimsFor("pm-1", models.RoleProjectManager))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestContractServiceVisibility(t *testing.T) {
	store := newContractStoreStub()
	svc := newContractSvc(store)
	contract := seedDraft(store, "pm-1")
	store.contracts[contract.ID].AssignedPGMUsers = models.UserIDSet{"pgm-1"}

	_, err := svc.Get(context.Background(), contract.ID, claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), contract.ID, claimsFor("pgm-1", models.RoleProgramManager))
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), contract.ID, claimsFor("dir-1", models.RoleDirector))
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), contract.ID, claimsFor("pm-9", models.RoleProjectManager))
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}
