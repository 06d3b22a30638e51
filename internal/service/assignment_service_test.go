package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grantos/grantos-api/internal/models"
	appErrors "github.com/grantos/grantos-api/pkg/errors"
)

type userDirectoryStub struct {
	names map[string]string
}

func (s *userDirectoryStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	name, ok := s.names[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.User{ID: id, FullName: name}, nil
}

func seedAssigned(store *contractStoreStub, createdBy, assignedBy string) *models.Contract {
	contract := seedDraft(store, createdBy)
	stored := store.contracts[contract.ID]
	now := time.Now().UTC()
	stored.AssignedPMUsers = models.UserIDSet{"pm-2"}
	stored.AssignedPGMUsers = models.UserIDSet{"pgm-1", "pgm-2"}
	stored.AssignedDirectorUsers = models.UserIDSet{"dir-1"}
	stored.AssignedByID = &assignedBy
	name := "Dana Ops"
	role := string(models.RoleSuperAdmin)
	stored.AssignedByName = &name
	stored.AssignedByRole = &role
	stored.AssignedAt = &now
	return stored
}

func TestMyDraftsFiltersNonDrafts(t *testing.T) {
	store := newContractStoreStub()
	seedDraft(store, "pm-1")
	approved := seedDraft(store, "pm-1")
	store.contracts[approved.ID].Status = models.ContractStatusApproved
	seedDraft(store, "pm-other")

	svc := NewAssignmentService(store, nil, nil)
	drafts, err := svc.MyDrafts(context.Background(), claimsFor("pm-1", models.RoleProjectManager))
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, models.ContractStatusDraft, drafts[0].Status)
	require.Equal(t, "pm-1", drafts[0].CreatedBy)
}

func TestAssignedToMeUsesRolePool(t *testing.T) {
	store := newContractStoreStub()
	seedAssigned(store, "pm-1", "admin-1")
	seedDraft(store, "pm-1")

	svc := NewAssignmentService(store, nil, nil)

	assigned, err := svc.AssignedToMe(context.Background(), claimsFor("pgm-1", models.RoleProgramManager))
	require.NoError(t, err)
	require.Len(t, assigned, 1)

	assigned, err = svc.AssignedToMe(context.Background(), claimsFor("pgm-9", models.RoleProgramManager))
	require.NoError(t, err)
	require.Empty(t, assigned)

	// Superadmins have no assignment pool; they see everything.
	assigned, err = svc.AssignedToMe(context.Background(), claimsFor("root", models.RoleSuperAdmin))
	require.NoError(t, err)
	require.Len(t, assigned, 2)
}

func TestAssignedByMeCountsAndTags(t *testing.T) {
	store := newContractStoreStub()
	seedAssigned(store, "pm-1", "admin-1")
	seedAssigned(store, "pm-1", "admin-other")

	users := &userDirectoryStub{names: map[string]string{
		"pgm-1": "Grace Reviewer",
		"dir-1": "Dirk Signer",
	}}
	svc := NewAssignmentService(store, users, nil)
	resp, err := svc.AssignedByMe(context.Background(), claimsFor("admin-1", models.RoleSuperAdmin))
	require.NoError(t, err)
	require.False(t, resp.Degraded)
	require.Len(t, resp.Contracts, 1)
	require.Equal(t, 1, resp.Counts.TotalPMs)
	require.Equal(t, 2, resp.Counts.TotalPGMs)
	require.Equal(t, 1, resp.Counts.TotalDirectors)

	entry := resp.Contracts[0]
	require.Equal(t, "admin-1", entry.AssignedByID)
	require.Equal(t, "Dana Ops", entry.AssignedByName)
	require.Len(t, entry.AllAssignedUsers, 4)

	byID := make(map[string]string)
	for _, tag := range entry.AllAssignedUsers {
		byID[tag.ID] = tag.Name
	}
	require.Equal(t, "Grace Reviewer", byID["pgm-1"])
	require.Equal(t, "Dirk Signer", byID["dir-1"])
	require.Equal(t, "Unknown", byID["pm-2"])
}

func TestAssignedByMeDegradedFallback(t *testing.T) {
	store := newContractStoreStub()
	seedAssigned(store, "pm-1", "admin-1")
	missing := seedAssigned(store, "pm-1", "admin-1")
	stored := store.contracts[missing.ID]
	stored.AssignedByName = nil
	stored.AssignedByRole = nil
	store.failListedBy = true

	svc := NewAssignmentService(store, nil, nil)
	resp, err := svc.AssignedByMe(context.Background(), claimsFor("admin-1", models.RoleSuperAdmin))
	require.NoError(t, err)
	require.True(t, resp.Degraded)
	require.Len(t, resp.Contracts, 2)
	for _, entry := range resp.Contracts {
		require.Equal(t, "admin-1", entry.AssignedByID)
		if entry.Contract.ID == missing.ID {
			require.Equal(t, "Unknown", entry.AssignedByName)
			require.Equal(t, "Unknown", entry.AssignedByRole)
		}
	}
}

func TestAssignedByMeUnavailableWhenFullScanFails(t *testing.T) {
	store := newContractStoreStub()
	store.failListedBy = true
	store.failList = true

	svc := NewAssignmentService(store, nil, nil)
	_, err := svc.AssignedByMe(context.Background(), claimsFor("admin-1", models.RoleSuperAdmin))
	require.Equal(t, "UPSTREAM_UNAVAILABLE", appErrors.FromError(err).Code)
}
