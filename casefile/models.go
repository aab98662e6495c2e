package casefile

import (
	"time"

	"caseflow/inspection"
	"caseflow/notice"
	"caseflow/violation"
)

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Case mirrors the cases table columns touched by the workflow.
type Case struct {
	ID             string
	AgencyID       string
	Status         Status
	AbatementStage string
	AssigneeID     *string
	ReopenedAt     *time.Time
	ClosedAt       *time.Time
	ClosedBy       *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Detail is the case as returned to callers after a workflow step.
type Detail struct {
	Case        Case
	Violations  []violation.Violation
	Inspections []inspection.Inspection
	Notices     []notice.Notice
}

// AssigneeRequest reassigns a case.
type AssigneeRequest struct {
	AssigneeID string `json:"assigneeId" validate:"required,uuid"`
}
