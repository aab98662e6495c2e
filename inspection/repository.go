package inspection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"caseflow/db"
)

var (
	ErrNotFound = errors.New("inspection: not found")
	// ErrNotScheduled signals a write against an inspection that is no longer
	// SCHEDULED, typically because a competing call completed it first.
	ErrNotScheduled = errors.New("inspection: not scheduled")
)

type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, params CreateParams) (Inspection, error)
	Get(ctx context.Context, q db.Querier, caseID, id string) (Inspection, error)
	ListByCase(ctx context.Context, q db.Querier, caseID string) ([]Inspection, error)
	GetScheduled(ctx context.Context, q db.Querier, caseID string) (Inspection, error)
	Complete(ctx context.Context, tx pgx.Tx, insp Inspection, userID string, actualDate time.Time) (Inspection, error)
	UpdateSchedule(ctx context.Context, tx pgx.Tx, caseID, id string, req Request) (Inspection, error)
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

const inspectionColumns = `id, case_id, planned_date, actual_date, assignee_id, status, is_verification_inspection, notice_id, note_id, closed_at, closed_by, created_by, created_at`

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, params CreateParams) (Inspection, error) {
	query := `
		INSERT INTO inspections (case_id, planned_date, assignee_id, status, is_verification_inspection, created_by)
		VALUES ($1, $2, $3, 'SCHEDULED', $4, NULLIF($5, '')::uuid)
		RETURNING ` + inspectionColumns

	insp, err := scanInspection(tx.QueryRow(ctx, query,
		params.CaseID,
		params.PlannedDate,
		params.AssigneeID,
		params.IsVerificationInspection,
		params.CreatedBy,
	))
	if err != nil {
		return Inspection{}, fmt.Errorf("inspection: insert: %w", err)
	}
	return insp, nil
}

func (r *PGRepository) Get(ctx context.Context, q db.Querier, caseID, id string) (Inspection, error) {
	insp, err := scanInspection(q.QueryRow(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id = $1 AND case_id = $2`, id, caseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Inspection{}, ErrNotFound
		}
		return Inspection{}, fmt.Errorf("inspection: get: %w", err)
	}
	return insp, nil
}

func (r *PGRepository) ListByCase(ctx context.Context, q db.Querier, caseID string) ([]Inspection, error) {
	rows, err := q.Query(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE case_id = $1 ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("inspection: list: %w", err)
	}
	defer rows.Close()

	out := make([]Inspection, 0, 4)
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("inspection: scan: %w", err)
		}
		out = append(out, insp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inspection: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) GetScheduled(ctx context.Context, q db.Querier, caseID string) (Inspection, error) {
	insp, err := scanInspection(q.QueryRow(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE case_id = $1 AND status = 'SCHEDULED'`, caseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Inspection{}, ErrNotFound
		}
		return Inspection{}, fmt.Errorf("inspection: get scheduled: %w", err)
	}
	return insp, nil
}

// Complete moves a SCHEDULED inspection to COMPLETED. Rows that are no longer
// SCHEDULED are left untouched and reported as ErrNotScheduled.
func (r *PGRepository) Complete(ctx context.Context, tx pgx.Tx, insp Inspection, userID string, actualDate time.Time) (Inspection, error) {
	query := `
		UPDATE inspections
		SET status = 'COMPLETED',
		    actual_date = $3,
		    note_id = $4,
		    closed_at = get_tx_timestamp(),
		    closed_by = $5
		WHERE id = $1 AND case_id = $2 AND status = 'SCHEDULED'
		RETURNING ` + inspectionColumns

	out, err := scanInspection(tx.QueryRow(ctx, query, insp.ID, insp.CaseID, actualDate, insp.NoteID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Inspection{}, ErrNotScheduled
		}
		return Inspection{}, fmt.Errorf("inspection: complete: %w", err)
	}
	return out, nil
}

func (r *PGRepository) UpdateSchedule(ctx context.Context, tx pgx.Tx, caseID, id string, req Request) (Inspection, error) {
	query := `
		UPDATE inspections
		SET planned_date = $3,
		    assignee_id = $4
		WHERE id = $1 AND case_id = $2 AND status = 'SCHEDULED'
		RETURNING ` + inspectionColumns

	out, err := scanInspection(tx.QueryRow(ctx, query, id, caseID, req.PlannedDate, req.AssigneeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Inspection{}, ErrNotScheduled
		}
		return Inspection{}, fmt.Errorf("inspection: update schedule: %w", err)
	}
	return out, nil
}

func scanInspection(row pgx.Row) (Inspection, error) {
	var insp Inspection
	err := row.Scan(
		&insp.ID,
		&insp.CaseID,
		&insp.PlannedDate,
		&insp.ActualDate,
		&insp.AssigneeID,
		&insp.Status,
		&insp.IsVerificationInspection,
		&insp.NoticeID,
		&insp.NoteID,
		&insp.ClosedAt,
		&insp.ClosedBy,
		&insp.CreatedBy,
		&insp.CreatedAt,
	)
	return insp, err
}
