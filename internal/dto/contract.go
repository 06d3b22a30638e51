package dto

import (
	"github.com/grantos/grantos-api/internal/models"
)

// CreateContractRequest captures POST /contracts payloads.
type CreateContractRequest struct {
	GrantName      string   `json:"grant_name" validate:"required"`
	ContractNumber string   `json:"contract_number"`
	Grantor        string   `json:"grantor"`
	Grantee        string   `json:"grantee"`
	Purpose        string   `json:"purpose"`
	Notes          string   `json:"notes"`
	Filename       string   `json:"filename"`
	TotalAmount    *float64 `json:"total_amount,omitempty" validate:"omitempty,gte=0"`
	StartDate      string   `json:"start_date,omitempty"`
	EndDate        string   `json:"end_date,omitempty"`
}

// AssignedUsersPayload carries the three role-scoped assignment pools.
type AssignedUsersPayload struct {
	PMUsers       []string `json:"pm_users"`
	PGMUsers      []string `json:"pgm_users"`
	DirectorUsers []string `json:"director_users"`
}

// AgreementMetadataPayload mirrors the nested agreement metadata object.
type AgreementMetadataPayload struct {
	AgreementType     OptionalString `json:"agreement_type"`
	EffectiveDate     OptionalDate   `json:"effective_date"`
	RenewalDate       OptionalDate   `json:"renewal_date"`
	TerminationDate   OptionalDate   `json:"termination_date"`
	Jurisdiction      OptionalString `json:"jurisdiction"`
	GoverningLaw      OptionalString `json:"governing_law"`
	SpecialConditions OptionalString `json:"special_conditions"`
}

// UpdateContractRequest captures PATCH /contracts/:id payloads. Absent
// fields are untouched; present-but-empty fields clear the stored value.
// Version is the version the caller last read (optimistic concurrency).
type UpdateContractRequest struct {
	Version int `json:"version" validate:"required,gte=1"`

	GrantName      OptionalString `json:"grant_name"`
	ContractNumber OptionalString `json:"contract_number"`
	Grantor        OptionalString `json:"grantor"`
	Grantee        OptionalString `json:"grantee"`
	Purpose        OptionalString `json:"purpose"`
	Notes          OptionalString `json:"notes"`
	TotalAmount    OptionalFloat  `json:"total_amount"`
	StartDate      OptionalDate   `json:"start_date"`
	EndDate        OptionalDate   `json:"end_date"`

	AgreementMetadata *AgreementMetadataPayload `json:"agreement_metadata,omitempty"`
	AssignedUsers     *AssignedUsersPayload     `json:"assigned_users,omitempty"`
}

// HasDescriptiveChanges reports whether the request touches fields that
// bump the contract version. Assignment-only updates never do.
func (r UpdateContractRequest) HasDescriptiveChanges() bool {
	return r.GrantName.Set || r.ContractNumber.Set || r.Grantor.Set ||
		r.Grantee.Set || r.Purpose.Set || r.Notes.Set ||
		r.TotalAmount.Set || r.StartDate.Set || r.EndDate.Set ||
		r.AgreementMetadata != nil
}

// ContractQuery captures GET /contracts query parameters.
type ContractQuery struct {
	Search     string
	Status     []models.ContractStatus
	DateRange  models.DateRange
	CreatedBy  string
	AssignedTo string
	Page       int
	PageSize   int
}

// PublishRequest moves a draft out of the drafting stage. Exactly one of
// the two publish flags must be set.
type PublishRequest struct {
	Notes           string `json:"notes"`
	PublishToReview bool   `json:"publish_to_review"`
	PublishDirectly bool   `json:"publish_directly"`
}

// DecisionRequest captures the director final-approval payload.
type DecisionRequest struct {
	Decision        models.DecisionStatus `json:"decision" validate:"required,oneof=approve reject"`
	Comments        string                `json:"comments" validate:"required"`
	LockContract    bool                  `json:"lock_contract"`
	RiskAccepted    bool                  `json:"risk_accepted"`
	BusinessSignOff bool                  `json:"business_sign_off"`
}

// ArchiveRequest captures single-contract archival payloads.
type ArchiveRequest struct {
	Reason string `json:"reason" validate:"required"`
	Notes  string `json:"notes"`
}

// BatchArchiveRequest archives several contracts independently.
type BatchArchiveRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1"`
	Reason string   `json:"reason" validate:"required"`
	Notes  string   `json:"notes"`
}

// BatchArchiveFailure reports one failed id within a batch.
type BatchArchiveFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchArchiveResult summarises a batch archive run. The batch never
// rolls back: archived counts successes, failed lists the rest per id.
type BatchArchiveResult struct {
	Archived int                   `json:"archived"`
	Failed   []BatchArchiveFailure `json:"failed"`
}

// ArchiveCandidate pairs a contract with its derived past-due state.
type ArchiveCandidate struct {
	Contract    models.Contract `json:"contract"`
	IsPastDue   bool            `json:"is_past_due"`
	DaysPastDue *int            `json:"days_past_due"`
}
