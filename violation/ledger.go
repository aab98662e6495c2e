package violation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"caseflow/apperr"
	"caseflow/db"
)

// Ledger applies violation changes for a case inside the caller's transaction.
type Ledger struct {
	repo        Repository
	idGenerator func() string
	now         func() time.Time
}

func NewLedger(repo Repository) *Ledger {
	if repo == nil {
		repo = NewRepository()
	}
	return &Ledger{
		repo:        repo,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) WithIDGenerator(gen func() string) *Ledger {
	l.idGenerator = gen
	return l
}

// ListByCase returns the case's violations in creation order.
func (l *Ledger) ListByCase(ctx context.Context, q db.Querier, caseID string) ([]Violation, error) {
	return l.repo.ListByCase(ctx, q, caseID)
}

// UpsertAndDelete reconciles the case's stored violations against the request:
// entries of existing are updated in place, entries of incoming are inserted,
// and removedIDs are hard-deleted. Ids in existing and removedIDs must be
// unique and owned by the case.
func (l *Ledger) UpsertAndDelete(ctx context.Context, tx pgx.Tx, caseID, userID string, existing, incoming []Input, removedIDs []string) (Diff, error) {
	before, err := l.repo.ListByCase(ctx, tx, caseID)
	if err != nil {
		return Diff{}, err
	}

	plan, err := Reconcile(before, existing, incoming, removedIDs, caseID, userID, l.now())
	if err != nil {
		return Diff{}, err
	}

	diff := Diff{
		Before:          before,
		Deleted:         plan.Deleted,
		ComplyByChanges: plan.ComplyByChanges,
	}

	for _, v := range plan.Updates {
		updated, err := l.repo.Update(ctx, tx, v)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Diff{}, apperr.Conflict("Violation was modified concurrently", err)
			}
			return Diff{}, err
		}
		diff.Updated = append(diff.Updated, updated)
	}

	for _, v := range plan.Inserts {
		v.ID = l.idGenerator()
		inserted, err := l.repo.Insert(ctx, tx, v)
		if err != nil {
			return Diff{}, err
		}
		diff.Inserted = append(diff.Inserted, inserted)
	}

	if err := l.repo.Delete(ctx, tx, caseID, plan.Deleted); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Diff{}, apperr.Conflict("Violation was removed concurrently", err)
		}
		return Diff{}, err
	}

	after, err := l.repo.ListByCase(ctx, tx, caseID)
	if err != nil {
		return Diff{}, err
	}
	diff.After = after
	return diff, nil
}

// UpdateViolationStatus flips violations back to OPEN for a reopened case,
// clearing their disposition and closing stamps.
func (l *Ledger) UpdateViolationStatus(ctx context.Context, tx pgx.Tx, req ReopenRequest, violations []Violation) ([]Violation, error) {
	if req.ComplyByDate.IsZero() {
		return nil, apperr.InvalidRequest("Comply by date is required to reopen violations")
	}
	complyBy := req.ComplyByDate

	out := make([]Violation, 0, len(violations))
	for _, v := range violations {
		v.Status = StatusOpen
		v.DispositionID = nil
		v.ComplyByDate = &complyBy
		v.ClosedAt = nil
		v.ClosedBy = nil

		updated, err := l.repo.Update(ctx, tx, v)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, apperr.Conflict("Violation was modified concurrently", err)
			}
			return nil, err
		}
		out = append(out, updated)
	}
	return out, nil
}

// Plan is the pure outcome of Reconcile, ready to be written.
type Plan struct {
	Updates         []Violation
	Inserts         []Violation
	Deleted         []string
	ComplyByChanges []ComplyByChange
}

// Reconcile computes the writes needed to move current to the requested state
// without touching storage.
func Reconcile(current []Violation, existing, incoming []Input, removedIDs []string, caseID, userID string, now time.Time) (Plan, error) {
	byID := make(map[string]Violation, len(current))
	for _, v := range current {
		byID[v.ID] = v
	}

	var plan Plan
	seen := make(map[string]struct{}, len(existing)+len(removedIDs))

	for _, in := range existing {
		if in.ID == "" {
			return Plan{}, apperr.InvalidRequest("Existing violation is missing its id")
		}
		if _, dup := seen[in.ID]; dup {
			return Plan{}, apperr.InvalidRequestf("Duplicate violation id %s", in.ID)
		}
		seen[in.ID] = struct{}{}

		cur, ok := byID[in.ID]
		if !ok {
			return Plan{}, apperr.InvalidRequestf("Violation %s does not belong to case", in.ID)
		}

		next := apply(cur, in, userID, now)
		plan.Updates = append(plan.Updates, next)
		if !sameDate(cur.ComplyByDate, next.ComplyByDate) && cur.Status == StatusOpen && next.Status == StatusOpen {
			plan.ComplyByChanges = append(plan.ComplyByChanges, ComplyByChange{
				ViolationID: cur.ID,
				Previous:    cur.ComplyByDate,
				Current:     next.ComplyByDate,
			})
		}
	}

	for _, id := range removedIDs {
		if _, dup := seen[id]; dup {
			return Plan{}, apperr.InvalidRequestf("Duplicate violation id %s", id)
		}
		seen[id] = struct{}{}
		if _, ok := byID[id]; !ok {
			return Plan{}, apperr.InvalidRequestf("Violation %s does not belong to case", id)
		}
		plan.Deleted = append(plan.Deleted, id)
	}

	for _, in := range incoming {
		if in.ID != "" {
			return Plan{}, apperr.InvalidRequest("New violation must not carry an id")
		}
		if in.ConfigViolationID == "" {
			return Plan{}, apperr.InvalidRequest("New violation is missing its configured violation")
		}
		plan.Inserts = append(plan.Inserts, apply(Violation{CaseID: caseID}, in, userID, now))
	}

	return plan, nil
}

// Project returns the violation set that would exist after plan is applied,
// with inserts given placeholder ids.
func Project(current []Violation, plan Plan) []Violation {
	deleted := make(map[string]struct{}, len(plan.Deleted))
	for _, id := range plan.Deleted {
		deleted[id] = struct{}{}
	}
	updated := make(map[string]Violation, len(plan.Updates))
	for _, v := range plan.Updates {
		updated[v.ID] = v
	}

	out := make([]Violation, 0, len(current)+len(plan.Inserts))
	for _, v := range current {
		if _, gone := deleted[v.ID]; gone {
			continue
		}
		if u, ok := updated[v.ID]; ok {
			v = u
		}
		out = append(out, v)
	}
	return append(out, plan.Inserts...)
}

func apply(cur Violation, in Input, userID string, now time.Time) Violation {
	next := cur
	if in.ConfigViolationID != "" {
		next.ConfigViolationID = in.ConfigViolationID
	}
	if in.Entity != nil {
		next.Entity = in.Entity
	}
	next.Status = in.Status
	next.DispositionID = in.DispositionID

	if in.Status == StatusOpen {
		next.ComplyByDate = in.ComplyByDate
	} else {
		next.ComplyByDate = nil
	}

	switch {
	case in.Status.IsClosed() && (!cur.Status.IsClosed() || cur.Status != in.Status || cur.ClosedAt == nil):
		closedAt := now
		closedBy := userID
		next.ClosedAt = &closedAt
		next.ClosedBy = &closedBy
	case !in.Status.IsClosed():
		next.ClosedAt = nil
		next.ClosedBy = nil
	}
	return next
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
