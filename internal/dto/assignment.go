package dto

import (
	"time"

	"github.com/grantos/grantos-api/internal/models"
)

// AssignedUserTag is one role-tagged entry in an assignment breakdown.
type AssignedUserTag struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Role models.UserRole `json:"role"`
}

// AssignedContract decorates a contract with assignment provenance for
// "assigned by me" views. Assigner display fields degrade to "Unknown"
// when the resolver falls back to a local scan.
type AssignedContract struct {
	Contract         models.Contract   `json:"contract"`
	AssignedByID     string            `json:"assigned_by_id,omitempty"`
	AssignedByName   string            `json:"assigned_by_name"`
	AssignedByRole   string            `json:"assigned_by_role"`
	AssignedAt       *time.Time        `json:"assigned_at,omitempty"`
	AllAssignedUsers []AssignedUserTag `json:"all_assigned_users"`
}

// AssignmentCounts aggregates assignments across a result set.
type AssignmentCounts struct {
	TotalPMs       int `json:"total_pms"`
	TotalPGMs      int `json:"total_pgms"`
	TotalDirectors int `json:"total_directors"`
}

// AssignedByMeResponse is the "assigned by me" listing with aggregate
// counts and a degraded flag when provenance could not be resolved.
type AssignedByMeResponse struct {
	Contracts []AssignedContract `json:"contracts"`
	Counts    AssignmentCounts   `json:"counts"`
	Degraded  bool               `json:"degraded"`
}
