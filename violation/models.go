package violation

import "time"

// Status is the lifecycle state of a violation.
type Status string

const (
	StatusOpen                Status = "OPEN"
	StatusVerificationPending Status = "VERIFICATION_PENDING"
	StatusClosedInvalid       Status = "CLOSED_INVALID"
	StatusClosedMetCompliance Status = "CLOSED_MET_COMPLIANCE"
)

// IsValid returns true if the status is a recognized value.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusVerificationPending, StatusClosedInvalid, StatusClosedMetCompliance:
		return true
	}
	return false
}

// IsClosed reports the two terminal CLOSED_* statuses.
func (s Status) IsClosed() bool {
	return s == StatusClosedInvalid || s == StatusClosedMetCompliance
}

// Violation mirrors the violations table. ComplyByDate is set iff Status is
// OPEN.
type Violation struct {
	ID                string
	CaseID            string
	ConfigViolationID string
	DispositionID     *string
	Status            Status
	ComplyByDate      *time.Time
	Entity            map[string]any
	ClosedAt          *time.Time
	ClosedBy          *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Input is a violation as submitted with an inspection. ID is empty for new
// violations.
type Input struct {
	ID                string         `json:"id" validate:"omitempty,uuid"`
	ConfigViolationID string         `json:"configViolationId" validate:"omitempty,uuid"`
	Status            Status         `json:"status" validate:"required,oneof=OPEN VERIFICATION_PENDING CLOSED_INVALID CLOSED_MET_COMPLIANCE"`
	DispositionID     *string        `json:"dispositionId" validate:"omitempty,uuid"`
	ComplyByDate      *time.Time     `json:"complyByDate"`
	Entity            map[string]any `json:"entity"`
}

// ComplyByChange records a moved deadline on an existing violation.
type ComplyByChange struct {
	ViolationID string
	Previous    *time.Time
	Current     *time.Time
}

// Diff is the audited outcome of a reconciliation.
type Diff struct {
	Before          []Violation
	After           []Violation
	Inserted        []Violation
	Updated         []Violation
	Deleted         []string
	ComplyByChanges []ComplyByChange
}

// ReopenRequest flips closed violations back to OPEN.
type ReopenRequest struct {
	ViolationIDs []string  `json:"violationIds" validate:"required,min=1,dive,uuid"`
	ComplyByDate time.Time `json:"complyByDate" validate:"required"`
}

// AllClosed reports whether every violation in list is CLOSED_*. An empty
// list is not considered closed.
func AllClosed(list []Violation) bool {
	if len(list) == 0 {
		return false
	}
	for _, v := range list {
		if !v.Status.IsClosed() {
			return false
		}
	}
	return true
}
