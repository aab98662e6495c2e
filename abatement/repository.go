package abatement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"caseflow/db"
)

var ErrCaseNotFound = errors.New("abatement: case not found")

// State is the slice of a case the stage rules read.
type State struct {
	CaseID     string
	Status     string
	Stage      string
	ReopenedAt *time.Time
}

// NoticeEntry is one issued notice on the case's inspection timeline.
type NoticeEntry struct {
	InspectionID        string
	InspectionCreatedAt time.Time
	NoticeID            string
	Label               string
	NoticeCreatedAt     time.Time
}

type Repository interface {
	GetState(ctx context.Context, q db.Querier, agencyID, caseID string) (State, error)
	ListNoticeTimeline(ctx context.Context, q db.Querier, caseID string) ([]NoticeEntry, error)
	WriteStage(ctx context.Context, tx pgx.Tx, agencyID, caseID, stage string) error
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

func (r *PGRepository) GetState(ctx context.Context, q db.Querier, agencyID, caseID string) (State, error) {
	var s State
	err := q.QueryRow(ctx,
		`SELECT id, status, abatement_stage, reopened_at FROM cases WHERE id = $1 AND agency_id = $2`,
		caseID, agencyID,
	).Scan(&s.CaseID, &s.Status, &s.Stage, &s.ReopenedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{}, ErrCaseNotFound
		}
		return State{}, fmt.Errorf("abatement: get state: %w", err)
	}
	return s, nil
}

// ListNoticeTimeline returns inspections that carry a notice, ordered by
// inspection creation.
func (r *PGRepository) ListNoticeTimeline(ctx context.Context, q db.Querier, caseID string) ([]NoticeEntry, error) {
	const query = `
		SELECT i.id, i.created_at, n.id, cn.label, n.created_at
		FROM inspections i
		JOIN notices n ON n.inspection_id = i.id
		JOIN config_notices cn ON cn.id = n.config_notice_id
		WHERE i.case_id = $1
		ORDER BY i.created_at, n.created_at, n.id
	`

	rows, err := q.Query(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("abatement: list notices: %w", err)
	}
	defer rows.Close()

	out := make([]NoticeEntry, 0, 4)
	for rows.Next() {
		var e NoticeEntry
		if err := rows.Scan(&e.InspectionID, &e.InspectionCreatedAt, &e.NoticeID, &e.Label, &e.NoticeCreatedAt); err != nil {
			return nil, fmt.Errorf("abatement: scan notice: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("abatement: iterate notices: %w", err)
	}
	return out, nil
}

func (r *PGRepository) WriteStage(ctx context.Context, tx pgx.Tx, agencyID, caseID, stage string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE cases SET abatement_stage = $3, updated_at = get_tx_timestamp() WHERE id = $1 AND agency_id = $2`,
		caseID, agencyID, stage,
	)
	if err != nil {
		return fmt.Errorf("abatement: write stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCaseNotFound
	}
	return nil
}
