// Package workflow performs inspections on code-enforcement cases and commits
// every resulting change in one transaction.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"caseflow/abatement"
	"caseflow/apperr"
	"caseflow/casefile"
	"caseflow/disposition"
	"caseflow/history"
	"caseflow/inspection"
	"caseflow/notice"
	"caseflow/violation"
)

// Orchestrator runs the perform-inspection workflow over the case stores.
type Orchestrator struct {
	pool        Pool
	cases       CaseStore
	details     DetailLoader
	violations  ViolationLedger
	catalog     DispositionCatalog
	scheduler   InspectionScheduler
	stages      StageDeriver
	contacts    ContactLister
	attachments AttachmentCreator
	notes       NoteWriter
	notices     NoticeIssuer
	history     HistoryWriter
	assigner    CaseAssigner

	validate *validator.Validate
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
	loc      *time.Location
}

// New builds an Orchestrator from deps, defaulting metrics and location.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		pool:        deps.Pool,
		cases:       deps.Cases,
		details:     deps.Details,
		violations:  deps.Violations,
		catalog:     deps.Catalog,
		scheduler:   deps.Scheduler,
		stages:      deps.Stages,
		contacts:    deps.Contacts,
		attachments: deps.Attachments,
		notes:       deps.Notes,
		notices:     deps.Notices,
		history:     deps.History,
		assigner:    deps.Assigner,
		validate:    newValidator(),
		metrics:     deps.Metrics,
		logger:      zap.NewNop(),
		now:         time.Now,
		loc:         deps.Location,
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	if o.loc == nil {
		o.loc = time.UTC
	}
	return o
}

func (o *Orchestrator) WithLogger(logger *zap.Logger) *Orchestrator {
	if logger != nil {
		o.logger = logger
	}
	return o
}

func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// PerformInspection completes the case's current inspection. Validation runs
// before the transaction opens; once it is open any failure rolls back every
// write made by the call.
func (o *Orchestrator) PerformInspection(ctx context.Context, agencyID, caseID, inspectionID, actingUserID string, req PerformInspectionRequest) (detail casefile.Detail, err error) {
	start := time.Now()
	var stage string
	defer func() {
		o.metrics.observePerform(start, err)
		o.logResult("perform inspection", err,
			zap.String("agency_id", agencyID),
			zap.String("case_id", caseID),
			zap.String("inspection_id", inspectionID),
			zap.String("stage", stage),
		)
	}()

	if err := checkShape(o.validate, req); err != nil {
		return casefile.Detail{}, err
	}

	// Scope to the caller's agency before looking at the inspection.
	c, err := o.cases.Get(ctx, o.pool, agencyID, caseID)
	if err != nil {
		return casefile.Detail{}, caseLookupError(err)
	}

	current, err := o.scheduler.Get(ctx, o.pool, caseID, inspectionID)
	if err != nil {
		return casefile.Detail{}, err
	}
	if current.Status != inspection.StatusScheduled {
		return casefile.Detail{}, apperr.InvalidRequest(MsgInspectionCompleted)
	}
	if c.Status == casefile.StatusClosed {
		return casefile.Detail{}, apperr.InvalidRequest(MsgCaseClosed)
	}

	if err := validateRequest(req, current); err != nil {
		return casefile.Detail{}, err
	}

	dispositions, err := validateDispositions(ctx, o.catalog, agencyID, append(append([]violation.Input{}, req.ExistingViolations...), req.NewViolations...))
	if err != nil {
		return casefile.Detail{}, err
	}

	if err := validateNotice(req.Notice, o.now(), o.loc); err != nil {
		return casefile.Detail{}, err
	}

	stored, err := o.violations.ListByCase(ctx, o.pool, caseID)
	if err != nil {
		return casefile.Detail{}, apperr.Internal(err)
	}
	plan, err := violation.Reconcile(stored, req.ExistingViolations, req.NewViolations, req.RemovedViolationIDs, caseID, actingUserID, o.now())
	if err != nil {
		return casefile.Detail{}, err
	}
	if err := validateClosure(req, violation.AllClosed(violation.Project(stored, plan))); err != nil {
		return casefile.Detail{}, err
	}

	if req.ScheduledInspection != nil {
		if err := o.scheduler.ValidateInspectionRequest(ctx, agencyID, *req.ScheduledInspection); err != nil {
			return casefile.Detail{}, err
		}
	}

	contacts, err := o.contacts.GetAll(ctx, agencyID, caseID)
	if err != nil {
		return casefile.Detail{}, apperr.Internal(err)
	}
	if len(contacts) == 0 {
		return casefile.Detail{}, apperr.InvalidRequest(MsgNoContact)
	}

	stage, err = o.performTx(ctx, agencyID, caseID, actingUserID, current, req, dispositions)
	if err != nil {
		return casefile.Detail{}, err
	}

	return o.details.Load(ctx, agencyID, caseID)
}

func (o *Orchestrator) performTx(ctx context.Context, agencyID, caseID, userID string, current inspection.Inspection, req PerformInspectionRequest, dispositions map[string]disposition.Disposition) (string, error) {
	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return "", apperr.Internal(err)
	}
	defer tx.Rollback(ctx)

	c, err := o.cases.GetForUpdate(ctx, tx, agencyID, caseID)
	if err != nil {
		return "", caseLookupError(err)
	}
	if c.Status == casefile.StatusClosed {
		return "", apperr.InvalidRequest(MsgCaseClosed)
	}

	diff, err := o.violations.UpsertAndDelete(ctx, tx, caseID, userID, req.ExistingViolations, req.NewViolations, req.RemovedViolationIDs)
	if err != nil {
		return "", apperr.FromPersistence(err)
	}
	allClosed := violation.AllClosed(diff.After)
	if err := validateClosure(req, allClosed); err != nil {
		return "", err
	}

	if len(req.Attachments) > 0 {
		if _, err := o.attachments.Create(ctx, tx, agencyID, caseID, userID, req.Attachments); err != nil {
			return "", apperr.FromPersistence(err)
		}
	}

	if req.Note != nil {
		n, err := o.notes.Create(ctx, tx, agencyID, caseID, userID, *req.Note)
		if err != nil {
			return "", apperr.FromPersistence(err)
		}
		current.NoteID = &n.ID
	}

	closed, err := o.scheduler.CloseCurrentInspection(ctx, tx, current, userID)
	if err != nil {
		return "", err
	}

	var next *inspection.Inspection
	if req.ScheduledInspection != nil {
		verification := !allClosed && current.IsVerificationInspection
		created, err := o.scheduler.Create(ctx, tx, agencyID, caseID, userID, *req.ScheduledInspection, verification)
		if err != nil {
			return "", apperr.FromPersistence(err)
		}
		next = &created
	}

	var issued *notice.Notice
	if req.Notice != nil {
		n, err := o.notices.Create(ctx, tx, agencyID, caseID, closed.ID, userID, *req.Notice)
		if err != nil {
			return "", apperr.FromPersistence(err)
		}
		issued = &n
	}

	stage, err := o.candidateStage(ctx, tx, agencyID, caseID, diff, allClosed, dispositions)
	if err != nil {
		return "", err
	}
	if err := o.stages.SetAbatementStage(ctx, tx, agencyID, caseID, stage); err != nil {
		return "", err
	}

	if req.CaseAssigneeID != nil {
		if _, err := o.assigner.EditCaseAssignee(ctx, tx, agencyID, caseID, userID, casefile.AssigneeRequest{AssigneeID: *req.CaseAssigneeID}); err != nil {
			return "", apperr.FromPersistence(err)
		}
	}

	if allClosed {
		if _, err := o.cases.Close(ctx, tx, caseID, userID); err != nil {
			return "", apperr.FromPersistence(err)
		}
		if err := o.history.CreateCaseSummaryHistory(ctx, tx, history.ActionCaseClosed, agencyID, userID, caseID, map[string]any{
			"inspection_id":   closed.ID,
			"abatement_stage": stage,
		}); err != nil {
			return "", apperr.FromPersistence(err)
		}
	}

	if err := o.history.CreateModifiedDatesHistory(ctx, tx, agencyID, caseID, userID, diff.ComplyByChanges); err != nil {
		return "", apperr.FromPersistence(err)
	}
	if err := o.history.CreatePerformInspectionHistory(ctx, tx, history.PerformInspectionEntry{
		AgencyID:       agencyID,
		CaseID:         caseID,
		ActorID:        userID,
		InspectionID:   closed.ID,
		Before:         diff.Before,
		After:          diff.After,
		NextInspection: next,
		Notice:         issued,
		AbatementStage: stage,
		CaseClosed:     allClosed,
	}); err != nil {
		return "", apperr.FromPersistence(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", apperr.FromPersistence(err)
	}
	return stage, nil
}

// candidateStage picks the stage to store: the closed-stage rule when nothing
// is left open, Forced when this call closed a violation by enforcement, and
// the notice timeline otherwise.
func (o *Orchestrator) candidateStage(ctx context.Context, tx pgx.Tx, agencyID, caseID string, diff violation.Diff, allClosed bool, dispositions map[string]disposition.Disposition) (string, error) {
	if allClosed {
		return o.stages.GetClosedAbatementStage(ctx, agencyID, diff.After)
	}
	if closedForcedNow(diff.Before, diff.After, dispositions) {
		return abatement.StageForced, nil
	}
	return o.stages.GetOpenAbatementStage(ctx, tx, agencyID, caseID)
}

// ReopenCase reopens a closed case: the listed violations return to OPEN with
// a new comply-by date, the stage resets to Reopened and a verification
// inspection is scheduled.
func (o *Orchestrator) ReopenCase(ctx context.Context, agencyID, caseID, actingUserID string, req ReopenCaseRequest) (detail casefile.Detail, err error) {
	defer func() {
		o.metrics.observeReopen(err)
		o.logResult("reopen case", err, zap.String("agency_id", agencyID), zap.String("case_id", caseID))
	}()

	if err := checkShape(o.validate, req); err != nil {
		return casefile.Detail{}, err
	}
	if inspection.IsPastDay(req.Violations.ComplyByDate, o.now(), o.loc) {
		return casefile.Detail{}, apperr.InvalidRequest("Invalid Request. Comply by date should not be the past date")
	}
	if err := o.scheduler.ValidateInspectionRequest(ctx, agencyID, req.ScheduledInspection); err != nil {
		return casefile.Detail{}, err
	}

	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return casefile.Detail{}, apperr.Internal(err)
	}
	defer tx.Rollback(ctx)

	c, err := o.cases.GetForUpdate(ctx, tx, agencyID, caseID)
	if err != nil {
		return casefile.Detail{}, caseLookupError(err)
	}
	if c.Status != casefile.StatusClosed {
		return casefile.Detail{}, apperr.InvalidRequest(MsgCaseNotClosed)
	}

	stored, err := o.violations.ListByCase(ctx, tx, caseID)
	if err != nil {
		return casefile.Detail{}, apperr.Internal(err)
	}
	targets, err := selectViolations(stored, req.Violations.ViolationIDs)
	if err != nil {
		return casefile.Detail{}, err
	}

	if _, err := o.violations.UpdateViolationStatus(ctx, tx, req.Violations, targets); err != nil {
		return casefile.Detail{}, apperr.FromPersistence(err)
	}
	if _, err := o.cases.Reopen(ctx, tx, caseID, abatement.StageReopened); err != nil {
		if errors.Is(err, casefile.ErrNotFound) {
			return casefile.Detail{}, apperr.Conflict("Case was reopened by another request", err)
		}
		return casefile.Detail{}, apperr.FromPersistence(err)
	}

	next, err := o.scheduler.Create(ctx, tx, agencyID, caseID, actingUserID, req.ScheduledInspection, true)
	if err != nil {
		return casefile.Detail{}, apperr.FromPersistence(err)
	}

	details := map[string]any{
		"violation_ids":      req.Violations.ViolationIDs,
		"comply_by_date":     req.Violations.ComplyByDate.Format(time.DateOnly),
		"next_inspection_id": next.ID,
	}
	if req.Note != nil {
		n, err := o.notes.Create(ctx, tx, agencyID, caseID, actingUserID, *req.Note)
		if err != nil {
			return casefile.Detail{}, apperr.FromPersistence(err)
		}
		details["note_id"] = n.ID
	}
	if err := o.history.CreateCaseSummaryHistory(ctx, tx, history.ActionCaseReopened, agencyID, actingUserID, caseID, details); err != nil {
		return casefile.Detail{}, apperr.FromPersistence(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return casefile.Detail{}, apperr.FromPersistence(err)
	}
	return o.details.Load(ctx, agencyID, caseID)
}

func selectViolations(stored []violation.Violation, ids []string) ([]violation.Violation, error) {
	byID := make(map[string]violation.Violation, len(stored))
	for _, v := range stored {
		byID[v.ID] = v
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]violation.Violation, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, apperr.InvalidRequest(MsgDuplicateViolation)
		}
		seen[id] = struct{}{}
		v, ok := byID[id]
		if !ok {
			return nil, apperr.InvalidRequest(MsgReopenUnknownViolation)
		}
		out = append(out, v)
	}
	return out, nil
}

func caseLookupError(err error) error {
	if errors.Is(err, casefile.ErrNotFound) {
		return apperr.MissingEntity("Case not found")
	}
	return apperr.FromPersistence(err)
}

func (o *Orchestrator) logResult(op string, err error, fields ...zap.Field) {
	if err == nil {
		o.logger.Info(op, append(fields, zap.String("outcome", "success"))...)
		return
	}
	fields = append(fields, zap.String("outcome", outcome(err)))
	if apperr.KindOf(err) == apperr.KindInternal || apperr.KindOf(err) == 0 {
		o.logger.Error(op, append(fields, zap.Error(err))...)
		return
	}
	o.logger.Info(op, append(fields, zap.String("reason", apperr.PublicMessage(err)))...)
}
