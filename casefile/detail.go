package casefile

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"caseflow/apperr"
	"caseflow/db"
	"caseflow/inspection"
	"caseflow/notice"
	"caseflow/violation"
)

type violationLister interface {
	ListByCase(ctx context.Context, q db.Querier, caseID string) ([]violation.Violation, error)
}

type inspectionLister interface {
	ListByCase(ctx context.Context, q db.Querier, caseID string) ([]inspection.Inspection, error)
}

type noticeLister interface {
	ListByCase(ctx context.Context, q db.Querier, caseID string) ([]notice.Notice, error)
}

// Loader reads a case together with its violations, inspections and notices.
type Loader struct {
	pool        db.Querier
	cases       Repository
	violations  violationLister
	inspections inspectionLister
	notices     noticeLister
}

func NewLoader(pool db.Querier, cases Repository, violations violationLister, inspections inspectionLister, notices noticeLister) *Loader {
	if cases == nil {
		cases = NewRepository()
	}
	if violations == nil {
		violations = violation.NewRepository()
	}
	if inspections == nil {
		inspections = inspection.NewRepository()
	}
	if notices == nil {
		notices = notice.NewRepository()
	}
	return &Loader{
		pool:        pool,
		cases:       cases,
		violations:  violations,
		inspections: inspections,
		notices:     notices,
	}
}

// Load reads the four parts concurrently from the pool.
func (l *Loader) Load(ctx context.Context, agencyID, caseID string) (Detail, error) {
	var d Detail
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c, err := l.cases.Get(gctx, l.pool, agencyID, caseID)
		if err != nil {
			return err
		}
		d.Case = c
		return nil
	})
	g.Go(func() error {
		list, err := l.violations.ListByCase(gctx, l.pool, caseID)
		d.Violations = list
		return err
	})
	g.Go(func() error {
		list, err := l.inspections.ListByCase(gctx, l.pool, caseID)
		d.Inspections = list
		return err
	})
	g.Go(func() error {
		list, err := l.notices.ListByCase(gctx, l.pool, caseID)
		d.Notices = list
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Detail{}, apperr.MissingEntity("Case not found")
		}
		return Detail{}, apperr.Internal(err)
	}
	return d, nil
}
