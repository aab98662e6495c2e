package inspection

import "time"

// Status represents the lifecycle of an inspection. COMPLETED is terminal.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
)

// Inspection mirrors the inspections table.
type Inspection struct {
	ID                       string
	CaseID                   string
	PlannedDate              time.Time
	ActualDate               *time.Time
	AssigneeID               string
	Status                   Status
	IsVerificationInspection bool
	NoticeID                 *string
	NoteID                   *string
	ClosedAt                 *time.Time
	ClosedBy                 *string
	CreatedBy                *string
	CreatedAt                time.Time
}

// Request schedules or reschedules an inspection.
type Request struct {
	PlannedDate time.Time `json:"plannedDate" validate:"required"`
	AssigneeID  string    `json:"assigneeId" validate:"required,uuid"`
}

// CreateParams enumerates the columns written for a new inspection.
type CreateParams struct {
	CaseID                   string
	PlannedDate              time.Time
	AssigneeID               string
	IsVerificationInspection bool
	CreatedBy                string
}
