package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ContractStatus captures workflow states for the approval lifecycle.
type ContractStatus string

const (
	ContractStatusDraft       ContractStatus = "draft"
	ContractStatusUnderReview ContractStatus = "under_review"
	ContractStatusReviewed    ContractStatus = "reviewed"
	ContractStatusApproved    ContractStatus = "approved"
	ContractStatusRejected    ContractStatus = "rejected"
	ContractStatusArchived    ContractStatus = "archived"
)

// DateRange enumerates supported upload-date windows for listing queries.
type DateRange string

const (
	DateRangeAll      DateRange = "all"
	DateRangeLast30   DateRange = "last30"
	DateRangeLast90   DateRange = "last90"
	DateRangeThisYear DateRange = "thisYear"
)

// UserIDSet stores a role-scoped pool of assigned user ids.
//
// Persisted as a JSONB array. Scan additionally accepts comma-delimited
// strings so legacy rows written by the old backend deserialize correctly;
// consumers only ever see a set of ids.
type UserIDSet []string

// Contains reports whether the set holds the given user id.
func (s UserIDSet) Contains(userID string) bool {
	for _, id := range s {
		if id == userID {
			return true
		}
	}
	return false
}

// Value marshals the set to a JSON array for persistence.
func (s UserIDSet) Value() (driver.Value, error) {
	if s == nil {
		s = UserIDSet{}
	}
	data, err := json.Marshal([]string(s))
	if err != nil {
		return nil, fmt.Errorf("marshal user id set: %w", err)
	}
	return data, nil
}

// Scan decodes either a JSON array or a delimited string into the set.
func (s *UserIDSet) Scan(value interface{}) error {
	if value == nil {
		*s = UserIDSet{}
		return nil
	}
	var raw string
	switch v := value.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("unsupported type %T for UserIDSet", value)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		*s = UserIDSet{}
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return fmt.Errorf("unmarshal user id set: %w", err)
		}
		*s = dedupe(ids)
		return nil
	}
	*s = dedupe(strings.Split(raw, ","))
	return nil
}

func dedupe(ids []string) UserIDSet {
	seen := make(map[string]struct{}, len(ids))
	result := make(UserIDSet, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// ContractDocument describes one attachment appended to a contract.
type ContractDocument struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"size_bytes"`
	MimeType    string    `json:"mime_type"`
	Description string    `json:"description,omitempty"`
	StoragePath string    `json:"-"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// DocumentList is the append-only attachment sequence persisted as JSONB.
type DocumentList []ContractDocument

// Value marshals the list for persistence.
func (d DocumentList) Value() (driver.Value, error) {
	if d == nil {
		d = DocumentList{}
	}
	type storedDocument struct {
		ContractDocument
		StoragePath string `json:"storage_path"`
	}
	stored := make([]storedDocument, len(d))
	for i, doc := range d {
		stored[i] = storedDocument{ContractDocument: doc, StoragePath: doc.StoragePath}
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal document list: %w", err)
	}
	return data, nil
}

// Scan unmarshals the JSONB payload into the list.
func (d *DocumentList) Scan(value interface{}) error {
	if value == nil {
		*d = DocumentList{}
		return nil
	}
	data, err := rawBytes(value, "DocumentList")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*d = DocumentList{}
		return nil
	}
	var stored []struct {
		ContractDocument
		StoragePath string `json:"storage_path"`
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("unmarshal document list: %w", err)
	}
	result := make(DocumentList, len(stored))
	for i, doc := range stored {
		result[i] = doc.ContractDocument
		result[i].StoragePath = doc.StoragePath
	}
	*d = result
	return nil
}

// AgreementMetadata holds optional agreement detail captured during drafting.
type AgreementMetadata struct {
	AgreementType     string     `json:"agreement_type,omitempty"`
	EffectiveDate     *time.Time `json:"effective_date,omitempty"`
	RenewalDate       *time.Time `json:"renewal_date,omitempty"`
	TerminationDate   *time.Time `json:"termination_date,omitempty"`
	Jurisdiction      string     `json:"jurisdiction,omitempty"`
	GoverningLaw      string     `json:"governing_law,omitempty"`
	SpecialConditions string     `json:"special_conditions,omitempty"`
}

// Value marshals agreement metadata to JSONB.
func (m AgreementMetadata) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal agreement metadata: %w", err)
	}
	return data, nil
}

// Scan decodes JSONB agreement metadata.
func (m *AgreementMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = AgreementMetadata{}
		return nil
	}
	data, err := rawBytes(value, "AgreementMetadata")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*m = AgreementMetadata{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal agreement metadata: %w", err)
	}
	return nil
}

// Recommendation enumerates program-manager review outcomes.
type Recommendation string

const (
	RecommendationApprove Recommendation = "approve"
	RecommendationReject  Recommendation = "reject"
	RecommendationModify  Recommendation = "modify"
)

// ReviewSummary is the program-manager review captured at the
// under_review to reviewed transition, persisted as JSONB.
type ReviewSummary struct {
	Recommendation Recommendation `json:"recommendation"`
	Summary        string         `json:"summary"`
	ReviewedBy     string         `json:"reviewed_by"`
	ReviewerName   string         `json:"reviewer_name,omitempty"`
	ReviewedAt     time.Time      `json:"reviewed_at"`
}

// Value marshals the review summary to JSONB.
func (r ReviewSummary) Value() (driver.Value, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal review summary: %w", err)
	}
	return data, nil
}

// Scan decodes a JSONB review summary.
func (r *ReviewSummary) Scan(value interface{}) error {
	if value == nil {
		*r = ReviewSummary{}
		return nil
	}
	data, err := rawBytes(value, "ReviewSummary")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*r = ReviewSummary{}
		return nil
	}
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("unmarshal review summary: %w", err)
	}
	return nil
}

// DecisionStatus enumerates director decision values.
type DecisionStatus string

const (
	DecisionApprove DecisionStatus = "approve"
	DecisionReject  DecisionStatus = "reject"
)

// Contract is the central grant/contract entity.
type Contract struct {
	ID             string  `db:"id" json:"id"`
	ContractNumber *string `db:"contract_number" json:"contract_number,omitempty"`
	GrantName      string  `db:"grant_name" json:"grant_name"`
	Grantor        string  `db:"grantor" json:"grantor"`
	Grantee        string  `db:"grantee" json:"grantee"`
	Purpose        string  `db:"purpose" json:"purpose"`
	Notes          string  `db:"notes" json:"notes"`
	Filename       string  `db:"filename" json:"filename"`

	// TotalAmount is nil when unknown; aggregates treat nil as zero.
	TotalAmount *float64 `db:"total_amount" json:"total_amount,omitempty"`

	UploadedAt   time.Time  `db:"uploaded_at" json:"uploaded_at"`
	StartDate    *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	LastEditedAt *time.Time `db:"last_edited_at" json:"last_edited_at,omitempty"`

	Status    ContractStatus `db:"status" json:"status"`
	Version   int            `db:"version" json:"version"`
	CreatedBy string         `db:"created_by" json:"created_by"`

	AssignedPMUsers       UserIDSet `db:"assigned_pm_users" json:"assigned_pm_users"`
	AssignedPGMUsers      UserIDSet `db:"assigned_pgm_users" json:"assigned_pgm_users"`
	AssignedDirectorUsers UserIDSet `db:"assigned_director_users" json:"assigned_director_users"`
	AssignedByID          *string   `db:"assigned_by_id" json:"assigned_by_id,omitempty"`
	AssignedByName        *string   `db:"assigned_by_name" json:"assigned_by_name,omitempty"`
	AssignedByRole        *string   `db:"assigned_by_role" json:"assigned_by_role,omitempty"`
	AssignedAt            *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`

	Documents DocumentList `db:"additional_documents" json:"additional_documents"`

	AgreementMetadata *AgreementMetadata `db:"agreement_metadata" json:"agreement_metadata,omitempty"`

	ProgramManagerReview *ReviewSummary `db:"program_manager_review" json:"program_manager_review,omitempty"`
	ForwardedAt          *time.Time     `db:"forwarded_at" json:"forwarded_at,omitempty"`
	ForwardedBy          *string        `db:"forwarded_by" json:"forwarded_by,omitempty"`

	DecisionStatus   *DecisionStatus `db:"decision_status" json:"director_decision_status,omitempty"`
	DecisionComments *string         `db:"decision_comments" json:"director_decision_comments,omitempty"`
	ApprovedBy       *string         `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	RiskAccepted     bool            `db:"risk_accepted" json:"risk_accepted"`
	BusinessSignOff  bool            `db:"business_sign_off" json:"business_sign_off"`
	ContractLocked   bool            `db:"contract_locked" json:"contract_locked"`

	IsTerminated  bool       `db:"is_terminated" json:"is_terminated"`
	ArchivedAt    *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	ArchiveReason *string    `db:"archive_reason" json:"archive_reason,omitempty"`
	ArchiveNotes  *string    `db:"archive_notes" json:"archive_notes,omitempty"`
}

// IsPastDue reports whether the contract term has elapsed. Archived
// contracts are never past due.
func (c *Contract) IsPastDue(now time.Time) bool {
	if c.EndDate == nil || c.Status == ContractStatusArchived {
		return false
	}
	return truncateDay(now).After(truncateDay(*c.EndDate))
}

// DaysPastDue returns whole days elapsed since end_date, or nil when the
// term has not ended.
func (c *Contract) DaysPastDue(now time.Time) *int {
	if !c.IsPastDue(now) {
		return nil
	}
	days := int(truncateDay(now).Sub(truncateDay(*c.EndDate)).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// AssignedSet returns the assignment pool matching the given role, or nil
// for roles without an assignment concept.
func (c *Contract) AssignedSet(role UserRole) UserIDSet {
	switch role {
	case RoleProgramManager:
		return c.AssignedPGMUsers
	case RoleDirector:
		return c.AssignedDirectorUsers
	case RoleProjectManager:
		return c.AssignedPMUsers
	default:
		return nil
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func rawBytes(value interface{}, typeName string) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T for %s", value, typeName)
	}
}

// ContractFilter constrains contract listing queries. All conditions are
// conjunctive; zero values mean "no constraint".
type ContractFilter struct {
	Status     []ContractStatus
	Search     string
	DateRange  DateRange
	CreatedBy  string
	AssignedTo string
	Role       UserRole
	AssignedBy string
	Page       int
	PageSize   int
}
