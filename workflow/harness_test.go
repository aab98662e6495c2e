package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"caseflow/abatement"
	"caseflow/attachment"
	"caseflow/casefile"
	"caseflow/contact"
	"caseflow/db"
	"caseflow/disposition"
	"caseflow/history"
	"caseflow/inspection"
	"caseflow/note"
	"caseflow/notice"
	"caseflow/user"
	"caseflow/violation"
)

const (
	agencyID = "a0000000-0000-4000-8000-000000000001"
	caseID   = "c0000000-0000-4000-8000-000000000001"
	inspID   = "10000000-0000-4000-8000-000000000001"

	v1 = "b0000000-0000-4000-8000-000000000001"
	v2 = "b0000000-0000-4000-8000-000000000002"

	cfgViolation = "b1000000-0000-4000-8000-000000000001"

	dispVoluntary = "d0000000-0000-4000-8000-000000000001"
	dispForced    = "d0000000-0000-4000-8000-000000000002"
	dispInvalid   = "d0000000-0000-4000-8000-000000000003"

	inspector = "e0000000-0000-4000-8000-000000000001"
	reviewer  = "e0000000-0000-4000-8000-000000000002"
	stranger  = "e0000000-0000-4000-8000-000000000009"

	tmplWarning = "f0000000-0000-4000-8000-000000000001"
	tmplFinal   = "f0000000-0000-4000-8000-000000000002"
)

var now = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func strPtr(s string) *string { return &s }

// memState is everything the workflow can write. Rollback restores a clone.
type memState struct {
	cases       map[string]casefile.Case
	violations  []violation.Violation
	inspections []inspection.Inspection
	notices     []notice.Notice
	notes       []note.Note
	attachments []attachment.Attachment
	history     []history.Action
}

func (s *memState) clone() *memState {
	c := &memState{cases: make(map[string]casefile.Case, len(s.cases))}
	for k, v := range s.cases {
		c.cases[k] = v
	}
	c.violations = append([]violation.Violation(nil), s.violations...)
	c.inspections = append([]inspection.Inspection(nil), s.inspections...)
	c.notices = append([]notice.Notice(nil), s.notices...)
	c.notes = append([]note.Note(nil), s.notes...)
	c.attachments = append([]attachment.Attachment(nil), s.attachments...)
	c.history = append([]history.Action(nil), s.history...)
	return c
}

type fakeDB struct {
	state     *memState
	failOn    string
	clock     time.Time
	begins    int
	commits   int
	rollbacks int
}

func (f *fakeDB) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeDB) fail(step string) error {
	if f.failOn != step {
		return nil
	}
	if step == "assign" {
		return &pgconn.PgError{Code: "23503", Message: "injected"}
	}
	return fmt.Errorf("injected failure at %s", step)
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	f.begins++
	return &fakeTx{db: f, snapshot: f.state.clone()}, nil
}

func (f *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

type fakeTx struct {
	db       *fakeDB
	snapshot *memState
	done     bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (t *fakeTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.rollbacks++
	t.db.state = t.snapshot
	return nil
}

func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (t *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (t *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (t *fakeTx) Conn() *pgx.Conn {
	return nil
}

// memCases backs both casefile.Repository and abatement.Repository.
type memCases struct{ db *fakeDB }

func (m memCases) Get(_ context.Context, _ db.Querier, agency, id string) (casefile.Case, error) {
	c, ok := m.db.state.cases[id]
	if !ok || c.AgencyID != agency {
		return casefile.Case{}, casefile.ErrNotFound
	}
	return c, nil
}

func (m memCases) GetForUpdate(ctx context.Context, _ pgx.Tx, agency, id string) (casefile.Case, error) {
	return m.Get(ctx, nil, agency, id)
}

func (m memCases) Close(_ context.Context, _ pgx.Tx, id, userID string) (casefile.Case, error) {
	if err := m.db.fail("close_case"); err != nil {
		return casefile.Case{}, err
	}
	c := m.db.state.cases[id]
	at := m.db.tick()
	c.Status = casefile.StatusClosed
	c.ClosedAt = &at
	c.ClosedBy = &userID
	m.db.state.cases[id] = c
	return c, nil
}

func (m memCases) Reopen(_ context.Context, _ pgx.Tx, id, stage string) (casefile.Case, error) {
	c, ok := m.db.state.cases[id]
	if !ok || c.Status != casefile.StatusClosed {
		return casefile.Case{}, casefile.ErrNotFound
	}
	at := m.db.tick()
	c.Status = casefile.StatusOpen
	c.ReopenedAt = &at
	c.ClosedAt = nil
	c.ClosedBy = nil
	c.AbatementStage = stage
	m.db.state.cases[id] = c
	return c, nil
}

func (m memCases) UpdateAssignee(_ context.Context, _ pgx.Tx, id, assigneeID string) (casefile.Case, error) {
	if err := m.db.fail("assign"); err != nil {
		return casefile.Case{}, err
	}
	c := m.db.state.cases[id]
	c.AssigneeID = &assigneeID
	m.db.state.cases[id] = c
	return c, nil
}

func (m memCases) GetState(_ context.Context, _ db.Querier, agency, id string) (abatement.State, error) {
	c, ok := m.db.state.cases[id]
	if !ok || c.AgencyID != agency {
		return abatement.State{}, abatement.ErrCaseNotFound
	}
	return abatement.State{CaseID: c.ID, Status: string(c.Status), Stage: c.AbatementStage, ReopenedAt: c.ReopenedAt}, nil
}

func (m memCases) ListNoticeTimeline(_ context.Context, _ db.Querier, id string) ([]abatement.NoticeEntry, error) {
	var out []abatement.NoticeEntry
	for _, insp := range m.db.state.inspections {
		if insp.CaseID != id {
			continue
		}
		for _, n := range m.db.state.notices {
			if n.InspectionID == insp.ID {
				out = append(out, abatement.NoticeEntry{
					InspectionID:        insp.ID,
					InspectionCreatedAt: insp.CreatedAt,
					NoticeID:            n.ID,
					Label:               n.Label,
					NoticeCreatedAt:     n.CreatedAt,
				})
			}
		}
	}
	return out, nil
}

func (m memCases) WriteStage(_ context.Context, _ pgx.Tx, _, id, stage string) error {
	if err := m.db.fail("stage"); err != nil {
		return err
	}
	c := m.db.state.cases[id]
	c.AbatementStage = stage
	m.db.state.cases[id] = c
	return nil
}

type memViolations struct{ db *fakeDB }

func (m memViolations) ListByCase(_ context.Context, _ db.Querier, id string) ([]violation.Violation, error) {
	out := []violation.Violation{}
	for _, v := range m.db.state.violations {
		if v.CaseID == id {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m memViolations) Insert(_ context.Context, _ pgx.Tx, v violation.Violation) (violation.Violation, error) {
	if err := m.db.fail("violations"); err != nil {
		return violation.Violation{}, err
	}
	v.CreatedAt = m.db.tick()
	v.UpdatedAt = v.CreatedAt
	m.db.state.violations = append(m.db.state.violations, v)
	return v, nil
}

func (m memViolations) Update(_ context.Context, _ pgx.Tx, v violation.Violation) (violation.Violation, error) {
	if err := m.db.fail("violations"); err != nil {
		return violation.Violation{}, err
	}
	for i := range m.db.state.violations {
		if m.db.state.violations[i].ID == v.ID {
			v.UpdatedAt = m.db.tick()
			m.db.state.violations[i] = v
			return v, nil
		}
	}
	return violation.Violation{}, violation.ErrNotFound
}

func (m memViolations) Delete(_ context.Context, _ pgx.Tx, _ string, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.db.state.violations[:0:0]
	for _, v := range m.db.state.violations {
		if !drop[v.ID] {
			kept = append(kept, v)
		}
	}
	m.db.state.violations = kept
	return nil
}

type memInspections struct{ db *fakeDB }

func (m memInspections) Insert(_ context.Context, _ pgx.Tx, p inspection.CreateParams) (inspection.Inspection, error) {
	if err := m.db.fail("schedule"); err != nil {
		return inspection.Inspection{}, err
	}
	for _, insp := range m.db.state.inspections {
		if insp.CaseID == p.CaseID && insp.Status == inspection.StatusScheduled {
			return inspection.Inspection{}, &pgconn.PgError{Code: "23505"}
		}
	}
	createdBy := p.CreatedBy
	insp := inspection.Inspection{
		ID:                       uuid.NewString(),
		CaseID:                   p.CaseID,
		PlannedDate:              p.PlannedDate,
		AssigneeID:               p.AssigneeID,
		Status:                   inspection.StatusScheduled,
		IsVerificationInspection: p.IsVerificationInspection,
		CreatedBy:                &createdBy,
		CreatedAt:                m.db.tick(),
	}
	m.db.state.inspections = append(m.db.state.inspections, insp)
	return insp, nil
}

func (m memInspections) Get(_ context.Context, _ db.Querier, caseID, id string) (inspection.Inspection, error) {
	for _, insp := range m.db.state.inspections {
		if insp.CaseID == caseID && insp.ID == id {
			return insp, nil
		}
	}
	return inspection.Inspection{}, inspection.ErrNotFound
}

func (m memInspections) ListByCase(_ context.Context, _ db.Querier, caseID string) ([]inspection.Inspection, error) {
	out := []inspection.Inspection{}
	for _, insp := range m.db.state.inspections {
		if insp.CaseID == caseID {
			out = append(out, insp)
		}
	}
	return out, nil
}

func (m memInspections) GetScheduled(_ context.Context, _ db.Querier, caseID string) (inspection.Inspection, error) {
	for _, insp := range m.db.state.inspections {
		if insp.CaseID == caseID && insp.Status == inspection.StatusScheduled {
			return insp, nil
		}
	}
	return inspection.Inspection{}, inspection.ErrNotFound
}

func (m memInspections) Complete(_ context.Context, _ pgx.Tx, insp inspection.Inspection, userID string, actual time.Time) (inspection.Inspection, error) {
	if err := m.db.fail("close"); err != nil {
		return inspection.Inspection{}, err
	}
	for i, cur := range m.db.state.inspections {
		if cur.ID != insp.ID {
			continue
		}
		if cur.Status != inspection.StatusScheduled {
			return inspection.Inspection{}, inspection.ErrNotScheduled
		}
		at := m.db.tick()
		cur.Status = inspection.StatusCompleted
		cur.ActualDate = &actual
		cur.ClosedAt = &at
		cur.ClosedBy = &userID
		cur.NoteID = insp.NoteID
		m.db.state.inspections[i] = cur
		return cur, nil
	}
	return inspection.Inspection{}, inspection.ErrNotScheduled
}

func (m memInspections) UpdateSchedule(_ context.Context, _ pgx.Tx, _, _ string, _ inspection.Request) (inspection.Inspection, error) {
	return inspection.Inspection{}, inspection.ErrNotScheduled
}

type memDispositions struct {
	db   *fakeDB
	rows map[string]disposition.Disposition
}

func (m memDispositions) ListActiveByIDs(_ context.Context, _ db.Querier, _ string, ids []string) ([]disposition.Disposition, error) {
	if err := m.db.fail("disposition"); err != nil {
		return nil, err
	}
	var out []disposition.Disposition
	for _, id := range ids {
		if d, ok := m.rows[id]; ok && d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m memDispositions) ListByIDs(_ context.Context, _ db.Querier, _ string, ids []string) ([]disposition.Disposition, error) {
	if err := m.db.fail("disposition"); err != nil {
		return nil, err
	}
	var out []disposition.Disposition
	for _, id := range ids {
		if d, ok := m.rows[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m memDispositions) GetActiveForced(_ context.Context, _ db.Querier, _ string) (disposition.Disposition, error) {
	return m.rows[dispForced], nil
}

type memNotices struct {
	db        *fakeDB
	templates map[string]notice.Template
}

func (m memNotices) GetTemplate(_ context.Context, _ db.Querier, _, id string) (notice.Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return notice.Template{}, notice.ErrTemplateNotFound
	}
	return t, nil
}

func (m memNotices) Insert(_ context.Context, _ pgx.Tx, n notice.Notice, _ string) (notice.Notice, error) {
	if err := m.db.fail("notice"); err != nil {
		return notice.Notice{}, err
	}
	n.ID = uuid.NewString()
	n.CreatedAt = m.db.tick()
	m.db.state.notices = append(m.db.state.notices, n)
	for i := range m.db.state.inspections {
		if m.db.state.inspections[i].ID == n.InspectionID {
			m.db.state.inspections[i].NoticeID = &n.ID
		}
	}
	return n, nil
}

func (m memNotices) ListByCase(_ context.Context, _ db.Querier, caseID string) ([]notice.Notice, error) {
	out := []notice.Notice{}
	for _, n := range m.db.state.notices {
		if n.CaseID == caseID {
			out = append(out, n)
		}
	}
	return out, nil
}

type memUsers struct{ known map[string]bool }

func (m memUsers) GetByID(_ context.Context, _ db.Querier, agency, id string) (user.User, error) {
	if !m.known[id] {
		return user.User{}, user.ErrUserNotFound
	}
	return user.User{ID: id, AgencyID: agency, IsActive: true}, nil
}

func (m memUsers) Exists(_ context.Context, _ db.Querier, _, id string) (bool, error) {
	return m.known[id], nil
}

type memHistory struct{ db *fakeDB }

func (m memHistory) CreatePerformInspectionHistory(_ context.Context, _ pgx.Tx, _ history.PerformInspectionEntry) error {
	if err := m.db.fail("history"); err != nil {
		return err
	}
	m.db.state.history = append(m.db.state.history, history.ActionInspectionPerformed)
	return nil
}

func (m memHistory) CreateModifiedDatesHistory(_ context.Context, _ pgx.Tx, _, _, _ string, changes []violation.ComplyByChange) error {
	if len(changes) == 0 {
		return nil
	}
	m.db.state.history = append(m.db.state.history, history.ActionComplyByModified)
	return nil
}

func (m memHistory) CreateCaseSummaryHistory(_ context.Context, _ pgx.Tx, action history.Action, _, _, _ string, _ map[string]any) error {
	m.db.state.history = append(m.db.state.history, action)
	return nil
}

type memContacts struct {
	byCase map[string][]contact.Contact
}

func (m memContacts) GetAll(_ context.Context, _, id string) ([]contact.Contact, error) {
	return m.byCase[id], nil
}

type memAttachments struct{ db *fakeDB }

func (m memAttachments) Create(_ context.Context, _ pgx.Tx, _, id, userID string, files []attachment.File) ([]attachment.Attachment, error) {
	if err := m.db.fail("attachments"); err != nil {
		return nil, err
	}
	out := make([]attachment.Attachment, 0, len(files))
	for _, f := range files {
		a := attachment.Attachment{ID: uuid.NewString(), CaseID: id, File: f, CreatedBy: userID, CreatedAt: m.db.tick()}
		out = append(out, a)
	}
	m.db.state.attachments = append(m.db.state.attachments, out...)
	return out, nil
}

type memNotes struct{ db *fakeDB }

func (m memNotes) Create(_ context.Context, _ pgx.Tx, _, id, userID, content string) (note.Note, error) {
	if err := m.db.fail("note"); err != nil {
		return note.Note{}, err
	}
	at := m.db.tick()
	n := note.Note{ID: uuid.NewString(), CaseID: id, Content: content, CreatedBy: userID, CreatedAt: at, UpdatedAt: at}
	m.db.state.notes = append(m.db.state.notes, n)
	return n, nil
}

type harness struct {
	db           *fakeDB
	contacts     memContacts
	dispositions map[string]disposition.Disposition
	orch         *Orchestrator
}

func compliant(kind disposition.CompliantType) *disposition.CompliantType {
	return &kind
}

// newHarness seeds one OPEN case with two OPEN violations and a scheduled
// inspection. verification sets the inspection's kind.
func newHarness(verification bool) *harness {
	state := &memState{cases: map[string]casefile.Case{
		caseID: {ID: caseID, AgencyID: agencyID, Status: casefile.StatusOpen, AbatementStage: abatement.StageNoNotice, CreatedAt: now},
	}}
	state.violations = []violation.Violation{
		{ID: v1, CaseID: caseID, ConfigViolationID: cfgViolation, Status: violation.StatusOpen, ComplyByDate: day(2026, 3, 10)},
		{ID: v2, CaseID: caseID, ConfigViolationID: cfgViolation, Status: violation.StatusOpen, ComplyByDate: day(2026, 3, 10)},
	}
	state.inspections = []inspection.Inspection{
		{ID: inspID, CaseID: caseID, PlannedDate: *day(2026, 3, 2), AssigneeID: inspector, Status: inspection.StatusScheduled, IsVerificationInspection: verification, CreatedAt: now.Add(-time.Hour)},
	}

	fdb := &fakeDB{state: state, clock: now}
	users := memUsers{known: map[string]bool{inspector: true, reviewer: true}}
	cases := memCases{db: fdb}
	violations := memViolations{db: fdb}
	inspections := memInspections{db: fdb}
	notices := memNotices{db: fdb, templates: map[string]notice.Template{
		tmplWarning: {ID: tmplWarning, AgencyID: agencyID, Label: "Verbal Warning", Body: "warning"},
		tmplFinal:   {ID: tmplFinal, AgencyID: agencyID, Label: "Final Notice", Body: "final"},
	}}
	hist := memHistory{db: fdb}
	contacts := memContacts{byCase: map[string][]contact.Contact{
		caseID: {{ID: "ct1", CaseID: caseID, Name: "Owner"}},
	}}

	dispositions := map[string]disposition.Disposition{
		dispVoluntary: {ID: dispVoluntary, AgencyID: agencyID, Label: "Owner fixed", Type: disposition.TypeCompliant, CompliantType: compliant(disposition.CompliantVoluntary), IsActive: true},
		dispForced:    {ID: dispForced, AgencyID: agencyID, Label: "City abated", Type: disposition.TypeCompliant, CompliantType: compliant(disposition.CompliantForced), IsActive: true},
		dispInvalid:   {ID: dispInvalid, AgencyID: agencyID, Label: "Not a violation", Type: disposition.TypeInvalid, IsActive: true},
	}
	catalog := disposition.NewCatalog(nil, memDispositions{db: fdb, rows: dispositions})
	clock := func() time.Time { return now }

	orch := New(Deps{
		Pool:        fdb,
		Cases:       cases,
		Details:     casefile.NewLoader(nil, cases, violations, inspections, notices),
		Violations:  violation.NewLedger(violations).WithClock(clock),
		Catalog:     catalog,
		Scheduler:   inspection.NewScheduler(nil, inspections, users).WithClock(clock),
		Stages:      abatement.NewDeriver(nil, cases, catalog),
		Contacts:    contacts,
		Attachments: memAttachments{db: fdb},
		Notes:       memNotes{db: fdb},
		Notices:     notice.NewService(notices, nil),
		History:     hist,
		Assigner:    casefile.NewAssigner(cases, users, hist),
	}).WithClock(clock)

	return &harness{db: fdb, contacts: contacts, dispositions: dispositions, orch: orch}
}

// deactivate retires a disposition the way an agency admin would.
func (h *harness) deactivate(id string) {
	d := h.dispositions[id]
	d.IsActive = false
	h.dispositions[id] = d
}

func (h *harness) caseRow() casefile.Case {
	return h.db.state.cases[caseID]
}

func (h *harness) violation(id string) violation.Violation {
	for _, v := range h.db.state.violations {
		if v.ID == id {
			return v
		}
	}
	return violation.Violation{}
}

func (h *harness) inspection(id string) inspection.Inspection {
	for _, insp := range h.db.state.inspections {
		if insp.ID == id {
			return insp
		}
	}
	return inspection.Inspection{}
}

func (h *harness) scheduled() (inspection.Inspection, bool) {
	for _, insp := range h.db.state.inspections {
		if insp.Status == inspection.StatusScheduled {
			return insp, true
		}
	}
	return inspection.Inspection{}, false
}
