package abatement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"caseflow/apperr"
	"caseflow/db"
	"caseflow/disposition"
	"caseflow/violation"
)

// Stage labels that are not configured notice labels.
const (
	StageForced    = "Forced"
	StageVoluntary = "Voluntary"
	StageInvalid   = "Invalid"
	StageReopened  = "Reopened"
	StageNoNotice  = "No Notice"
)

const (
	msgCaseNotFound = "Case not found"
	caseClosed      = "CLOSED"
)

// DispositionSource resolves the dispositions stored violations were closed
// under, active or not.
type DispositionSource interface {
	GetReferenced(ctx context.Context, agencyID string, ids []string) ([]disposition.Disposition, error)
}

// Deriver computes and stores a case's abatement stage.
type Deriver struct {
	pool         db.Querier
	repo         Repository
	dispositions DispositionSource
}

func NewDeriver(pool db.Querier, repo Repository, dispositions DispositionSource) *Deriver {
	if repo == nil {
		repo = NewRepository()
	}
	return &Deriver{pool: pool, repo: repo, dispositions: dispositions}
}

// GetClosedAbatementStage classifies a fully closing violation set.
func (d *Deriver) GetClosedAbatementStage(ctx context.Context, agencyID string, violations []violation.Violation) (string, error) {
	ids := make([]string, 0, len(violations))
	for _, v := range violations {
		if v.Status == violation.StatusClosedMetCompliance && v.DispositionID != nil {
			ids = append(ids, *v.DispositionID)
		}
	}
	if len(ids) == 0 {
		return StageInvalid, nil
	}

	list, err := d.dispositions.GetReferenced(ctx, agencyID, ids)
	if err != nil {
		return "", err
	}
	return ClosedStage(violations, disposition.ByID(list)), nil
}

// GetOpenAbatementStage derives the stage of a case that still has open work.
// q may be the caller's transaction so that notices written in it are seen.
func (d *Deriver) GetOpenAbatementStage(ctx context.Context, q db.Querier, agencyID, caseID string) (string, error) {
	if q == nil {
		q = d.pool
	}
	state, err := d.repo.GetState(ctx, q, agencyID, caseID)
	if err != nil {
		return "", d.translate(err)
	}
	if state.Stage == StageForced {
		return StageForced, nil
	}

	timeline, err := d.repo.ListNoticeTimeline(ctx, q, caseID)
	if err != nil {
		return "", apperr.Internal(err)
	}
	return OpenStage(state.Stage, state.ReopenedAt, timeline), nil
}

// SetAbatementStage writes label unless the stored stage is already Forced.
func (d *Deriver) SetAbatementStage(ctx context.Context, tx pgx.Tx, agencyID, caseID, label string) error {
	state, err := d.repo.GetState(ctx, tx, agencyID, caseID)
	if err != nil {
		return d.translate(err)
	}
	if state.Stage == StageForced {
		return nil
	}
	if err := d.repo.WriteStage(ctx, tx, agencyID, caseID, label); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// PreviewStage reports the stage a case would show now without writing it.
// Closed cases report their stored stage.
func (d *Deriver) PreviewStage(ctx context.Context, agencyID, caseID string) (string, error) {
	state, err := d.repo.GetState(ctx, d.pool, agencyID, caseID)
	if err != nil {
		return "", d.translate(err)
	}
	if state.Status == caseClosed {
		return state.Stage, nil
	}
	return d.GetOpenAbatementStage(ctx, d.pool, agencyID, caseID)
}

func (d *Deriver) translate(err error) error {
	if errors.Is(err, ErrCaseNotFound) {
		return apperr.MissingEntity(msgCaseNotFound)
	}
	return apperr.Internal(err)
}

// ClosedStage applies the closed-stage rule. Only violations actually closed
// CLOSED_MET_COMPLIANCE count, whatever their disposition says.
func ClosedStage(violations []violation.Violation, dispositions map[string]disposition.Disposition) string {
	compliant := 0
	for _, v := range violations {
		if v.Status != violation.StatusClosedMetCompliance {
			continue
		}
		compliant++
		if v.DispositionID == nil {
			continue
		}
		if disp, ok := dispositions[*v.DispositionID]; ok && disp.IsForced() {
			return StageForced
		}
	}
	if compliant == 0 {
		return StageInvalid
	}
	return StageVoluntary
}

// OpenStage applies the open-stage rule to a notice timeline ordered by
// inspection creation.
func OpenStage(current string, reopenedAt *time.Time, timeline []NoticeEntry) string {
	if current == StageForced {
		return StageForced
	}
	if len(timeline) == 0 {
		if reopenedAt != nil {
			return StageReopened
		}
		return StageNoNotice
	}

	if reopenedAt == nil {
		earliest := timeline[0]
		for _, e := range timeline[1:] {
			if e.NoticeCreatedAt.Before(earliest.NoticeCreatedAt) {
				earliest = e
			}
		}
		return earliest.Label
	}

	var latest *NoticeEntry
	for i := range timeline {
		e := &timeline[i]
		if e.NoticeCreatedAt.Before(*reopenedAt) {
			continue
		}
		if latest == nil || !e.NoticeCreatedAt.Before(latest.NoticeCreatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return StageReopened
	}
	return latest.Label
}
