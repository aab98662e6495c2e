package inspection

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"caseflow/apperr"
	"caseflow/db"
	"caseflow/user"
)

const (
	MsgAssigneeMissing  = "Assignee does not exist."
	MsgPlannedDatePast  = "Planned date should not be the past date"
	msgNotFound         = "Inspection not found"
	msgNoCurrent        = "Case has no scheduled inspection"
	msgAlreadyCompleted = "Inspection is already completed"
	msgCloseConflict    = "Inspection was completed by another request"
	msgOneScheduled     = "Case already has a scheduled inspection"
)

// Scheduler tracks scheduled and completed inspections for cases.
type Scheduler struct {
	pool  db.Querier
	repo  Repository
	users user.Directory
	now   func() time.Time
	loc   *time.Location
}

func NewScheduler(pool db.Querier, repo Repository, users user.Directory) *Scheduler {
	if repo == nil {
		repo = NewRepository()
	}
	if users == nil {
		users = user.NewDirectory()
	}
	return &Scheduler{
		pool:  pool,
		repo:  repo,
		users: users,
		now:   time.Now,
		loc:   time.UTC,
	}
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// WithLocation sets the agency time zone that defines "today".
func (s *Scheduler) WithLocation(loc *time.Location) *Scheduler {
	if loc != nil {
		s.loc = loc
	}
	return s
}

// ValidateInspectionRequest rejects unknown assignees and planned dates before
// the current agency day.
func (s *Scheduler) ValidateInspectionRequest(ctx context.Context, agencyID string, req Request) error {
	ok, err := s.users.Exists(ctx, s.pool, agencyID, req.AssigneeID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.InvalidRequest(MsgAssigneeMissing)
	}
	if IsPastDay(req.PlannedDate, s.now(), s.loc) {
		return apperr.InvalidRequest(MsgPlannedDatePast)
	}
	return nil
}

// Create validates req and schedules a new inspection inside tx.
func (s *Scheduler) Create(ctx context.Context, tx pgx.Tx, agencyID, caseID, userID string, req Request, verification bool) (Inspection, error) {
	if err := s.ValidateInspectionRequest(ctx, agencyID, req); err != nil {
		return Inspection{}, err
	}
	insp, err := s.repo.Insert(ctx, tx, CreateParams{
		CaseID:                   caseID,
		PlannedDate:              req.PlannedDate,
		AssigneeID:               req.AssigneeID,
		IsVerificationInspection: verification,
		CreatedBy:                userID,
	})
	if err != nil {
		if apperr.KindOf(apperr.FromPersistence(err)) == apperr.KindDBConflict {
			return Inspection{}, apperr.Conflict(msgOneScheduled, err)
		}
		return Inspection{}, apperr.Internal(err)
	}
	return insp, nil
}

// Get loads one inspection of the case.
func (s *Scheduler) Get(ctx context.Context, q db.Querier, caseID, id string) (Inspection, error) {
	if q == nil {
		q = s.pool
	}
	insp, err := s.repo.Get(ctx, q, caseID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Inspection{}, apperr.MissingEntity(msgNotFound)
		}
		return Inspection{}, apperr.Internal(err)
	}
	return insp, nil
}

// GetAll lists the case's inspections in creation order.
func (s *Scheduler) GetAll(ctx context.Context, q db.Querier, caseID string) ([]Inspection, error) {
	if q == nil {
		q = s.pool
	}
	list, err := s.repo.ListByCase(ctx, q, caseID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return list, nil
}

// GetInstance returns the case's current, not yet completed, inspection.
func (s *Scheduler) GetInstance(ctx context.Context, q db.Querier, caseID string) (Inspection, error) {
	if q == nil {
		q = s.pool
	}
	insp, err := s.repo.GetScheduled(ctx, q, caseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Inspection{}, apperr.MissingEntity(msgNoCurrent)
		}
		return Inspection{}, apperr.Internal(err)
	}
	return insp, nil
}

// Edit reschedules or reassigns a SCHEDULED inspection.
func (s *Scheduler) Edit(ctx context.Context, tx pgx.Tx, agencyID, caseID, id string, req Request) (Inspection, error) {
	if err := s.ValidateInspectionRequest(ctx, agencyID, req); err != nil {
		return Inspection{}, err
	}
	insp, err := s.repo.UpdateSchedule(ctx, tx, caseID, id, req)
	if err != nil {
		if errors.Is(err, ErrNotScheduled) {
			return Inspection{}, apperr.InvalidRequest(msgAlreadyCompleted)
		}
		return Inspection{}, apperr.FromPersistence(err)
	}
	return insp, nil
}

// CloseCurrentInspection marks insp COMPLETED on behalf of userID. A
// foreign-key failure or a lost race is a DBConflictError; any other
// persistence failure is an InternalServerError.
func (s *Scheduler) CloseCurrentInspection(ctx context.Context, tx pgx.Tx, insp Inspection, userID string) (Inspection, error) {
	closed, err := s.repo.Complete(ctx, tx, insp, userID, s.today())
	if err != nil {
		switch {
		case errors.Is(err, ErrNotScheduled):
			return Inspection{}, apperr.Conflict(msgCloseConflict, err)
		case apperr.IsForeignKeyViolation(err):
			return Inspection{}, apperr.Conflict("Inspection references a missing record", err)
		default:
			return Inspection{}, apperr.Internal(err)
		}
	}
	return closed, nil
}

func (s *Scheduler) today() time.Time {
	y, m, d := s.now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsPastDay reports whether the calendar day of t is strictly before the
// calendar day of now in loc. t is read as a calendar date in its own zone.
func IsPastDay(t, now time.Time, loc *time.Location) bool {
	ty, tm, td := t.Date()
	ny, nm, nd := now.In(loc).Date()
	day := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return day.Before(today)
}
