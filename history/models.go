package history

import (
	"caseflow/inspection"
	"caseflow/notice"
	"caseflow/violation"
)

// Action names a case summary event.
type Action string

const (
	ActionInspectionPerformed Action = "INSPECTION_PERFORMED"
	ActionComplyByModified    Action = "COMPLY_BY_DATES_MODIFIED"
	ActionCaseClosed          Action = "CASE_CLOSED"
	ActionCaseReopened        Action = "CASE_REOPENED"
	ActionAssigneeChanged     Action = "CASE_ASSIGNEE_CHANGED"
)

const (
	TopicInspectionPerformed = "case.inspection_performed"
	TopicComplyByModified    = "case.comply_by_modified"
	TopicCaseSummary         = "case.summary"
)

// PerformInspectionEntry captures everything one performed inspection changed.
type PerformInspectionEntry struct {
	AgencyID       string
	CaseID         string
	ActorID        string
	InspectionID   string
	Before         []violation.Violation
	After          []violation.Violation
	NextInspection *inspection.Inspection
	Notice         *notice.Notice
	AbatementStage string
	CaseClosed     bool
}

// Entry is a stored case_history row.
type Entry struct {
	ID      int64
	CaseID  string
	Action  Action
	ActorID *string
	Payload map[string]any
}
