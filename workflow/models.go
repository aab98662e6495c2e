package workflow

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"caseflow/attachment"
	"caseflow/casefile"
	"caseflow/contact"
	"caseflow/db"
	"caseflow/disposition"
	"caseflow/history"
	"caseflow/inspection"
	"caseflow/note"
	"caseflow/notice"
	"caseflow/violation"
)

// Messages returned as InvalidRequestError.
const (
	MsgInspectionCompleted       = "Invalid Request. Inspection is already completed"
	MsgCaseClosed                = "Invalid Request. Case is closed"
	MsgCaseNotClosed             = "Invalid Request. Only a closed case can be reopened"
	MsgNoViolations              = "Invalid Request. At least one violation is required"
	MsgDuplicateViolation        = "Invalid Request. Duplicate violation ids"
	MsgViolationFieldsMismatch   = "Invalid Request. Violation Status, Disposition and Comply By Date are inconsistent"
	MsgNewViolationsNotAllowed   = "Invalid Request. New violations can only be added during a verification inspection"
	MsgStatusDispositionMismatch = "Invalid Request. Violation Status and Disposition Type doesn't match"
	MsgNoticeIssuedInPast        = "Invalid Request. Notice issued date should not be the past date"
	MsgAllClosed                 = "All Violations are closed. Can not schedule next inspection or issue notice"
	MsgSomeOpen                  = "Some Violations are open. You need to schedule next inspection"
	MsgNoContact                 = "Invalid Request. There should be atleast one contact attached to case"
	MsgReopenUnknownViolation    = "Invalid Request. Violation does not belong to case"
)

// PerformInspectionRequest is what an inspector submits when completing the
// case's current inspection.
type PerformInspectionRequest struct {
	ExistingViolations  []violation.Input   `json:"existingViolations" validate:"dive"`
	NewViolations       []violation.Input   `json:"newViolations" validate:"dive"`
	RemovedViolationIDs []string            `json:"removedViolationIds" validate:"dive,uuid"`
	ScheduledInspection *inspection.Request `json:"scheduledInspection"`
	Notice              *notice.Request     `json:"notice"`
	Attachments         []attachment.File   `json:"attachments" validate:"dive"`
	Note                *string             `json:"note" validate:"omitempty,min=1"`
	CaseAssigneeID      *string             `json:"caseAssigneeId" validate:"omitempty,uuid"`
}

// ReopenCaseRequest reopens a closed case for another round of inspection.
type ReopenCaseRequest struct {
	Violations          violation.ReopenRequest `json:"violations"`
	ScheduledInspection inspection.Request      `json:"scheduledInspection"`
	Note                *string                 `json:"note" validate:"omitempty,min=1"`
}

// Pool is the connection pool: reads before the transaction, then Begin.
type Pool interface {
	db.Querier
	db.TxBeginner
}

type CaseStore interface {
	Get(ctx context.Context, q db.Querier, agencyID, caseID string) (casefile.Case, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, agencyID, caseID string) (casefile.Case, error)
	Close(ctx context.Context, tx pgx.Tx, caseID, userID string) (casefile.Case, error)
	Reopen(ctx context.Context, tx pgx.Tx, caseID, stage string) (casefile.Case, error)
}

type DetailLoader interface {
	Load(ctx context.Context, agencyID, caseID string) (casefile.Detail, error)
}

type ViolationLedger interface {
	ListByCase(ctx context.Context, q db.Querier, caseID string) ([]violation.Violation, error)
	UpsertAndDelete(ctx context.Context, tx pgx.Tx, caseID, userID string, existing, incoming []violation.Input, removedIDs []string) (violation.Diff, error)
	UpdateViolationStatus(ctx context.Context, tx pgx.Tx, req violation.ReopenRequest, violations []violation.Violation) ([]violation.Violation, error)
}

type DispositionCatalog interface {
	GetByIDs(ctx context.Context, agencyID string, ids []string) ([]disposition.Disposition, error)
}

type InspectionScheduler interface {
	ValidateInspectionRequest(ctx context.Context, agencyID string, req inspection.Request) error
	Get(ctx context.Context, q db.Querier, caseID, id string) (inspection.Inspection, error)
	Create(ctx context.Context, tx pgx.Tx, agencyID, caseID, userID string, req inspection.Request, verification bool) (inspection.Inspection, error)
	CloseCurrentInspection(ctx context.Context, tx pgx.Tx, insp inspection.Inspection, userID string) (inspection.Inspection, error)
}

type StageDeriver interface {
	GetClosedAbatementStage(ctx context.Context, agencyID string, violations []violation.Violation) (string, error)
	GetOpenAbatementStage(ctx context.Context, q db.Querier, agencyID, caseID string) (string, error)
	SetAbatementStage(ctx context.Context, tx pgx.Tx, agencyID, caseID, label string) error
}

type ContactLister interface {
	GetAll(ctx context.Context, agencyID, caseID string) ([]contact.Contact, error)
}

type AttachmentCreator interface {
	Create(ctx context.Context, tx pgx.Tx, agencyID, caseID, userID string, files []attachment.File) ([]attachment.Attachment, error)
}

type NoteWriter interface {
	Create(ctx context.Context, tx pgx.Tx, agencyID, caseID, userID, content string) (note.Note, error)
}

type NoticeIssuer interface {
	Create(ctx context.Context, tx pgx.Tx, agencyID, caseID, inspectionID, userID string, req notice.Request) (notice.Notice, error)
}

type HistoryWriter interface {
	CreatePerformInspectionHistory(ctx context.Context, tx pgx.Tx, e history.PerformInspectionEntry) error
	CreateModifiedDatesHistory(ctx context.Context, tx pgx.Tx, agencyID, caseID, userID string, changes []violation.ComplyByChange) error
	CreateCaseSummaryHistory(ctx context.Context, tx pgx.Tx, action history.Action, agencyID, userID, caseID string, details map[string]any) error
}

type CaseAssigner interface {
	EditCaseAssignee(ctx context.Context, tx pgx.Tx, agencyID, caseID, userID string, req casefile.AssigneeRequest) (casefile.Case, error)
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Pool        Pool
	Cases       CaseStore
	Details     DetailLoader
	Violations  ViolationLedger
	Catalog     DispositionCatalog
	Scheduler   InspectionScheduler
	Stages      StageDeriver
	Contacts    ContactLister
	Attachments AttachmentCreator
	Notes       NoteWriter
	Notices     NoticeIssuer
	History     HistoryWriter
	Assigner    CaseAssigner
	Metrics     *Metrics
	Location    *time.Location
}
