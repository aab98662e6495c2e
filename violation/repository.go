package violation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"caseflow/db"
)

var (
	ErrNotFound = errors.New("violation: not found")
)

type Repository interface {
	ListByCase(ctx context.Context, q db.Querier, caseID string) ([]Violation, error)
	Insert(ctx context.Context, tx pgx.Tx, v Violation) (Violation, error)
	Update(ctx context.Context, tx pgx.Tx, v Violation) (Violation, error)
	Delete(ctx context.Context, tx pgx.Tx, caseID string, ids []string) error
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

const violationColumns = `id, case_id, config_violation_id, disposition_id, status, comply_by_date, entity, closed_at, closed_by, created_at, updated_at`

func (r *PGRepository) ListByCase(ctx context.Context, q db.Querier, caseID string) ([]Violation, error) {
	rows, err := q.Query(ctx, `SELECT `+violationColumns+` FROM violations WHERE case_id = $1 ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("violation: list by case: %w", err)
	}
	defer rows.Close()

	out := make([]Violation, 0, 8)
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, fmt.Errorf("violation: scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("violation: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, v Violation) (Violation, error) {
	query := `
		INSERT INTO violations (id, case_id, config_violation_id, disposition_id, status, comply_by_date, entity, closed_at, closed_by)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + violationColumns

	out, err := scanViolation(tx.QueryRow(ctx, query,
		v.ID,
		v.CaseID,
		v.ConfigViolationID,
		v.DispositionID,
		v.Status,
		v.ComplyByDate,
		entityOrEmpty(v.Entity),
		v.ClosedAt,
		v.ClosedBy,
	))
	if err != nil {
		return Violation{}, fmt.Errorf("violation: insert: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, v Violation) (Violation, error) {
	query := `
		UPDATE violations
		SET config_violation_id = $3,
		    disposition_id = $4,
		    status = $5,
		    comply_by_date = $6,
		    entity = $7,
		    closed_at = $8,
		    closed_by = $9,
		    updated_at = get_tx_timestamp()
		WHERE id = $1 AND case_id = $2
		RETURNING ` + violationColumns

	out, err := scanViolation(tx.QueryRow(ctx, query,
		v.ID,
		v.CaseID,
		v.ConfigViolationID,
		v.DispositionID,
		v.Status,
		v.ComplyByDate,
		entityOrEmpty(v.Entity),
		v.ClosedAt,
		v.ClosedBy,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Violation{}, ErrNotFound
		}
		return Violation{}, fmt.Errorf("violation: update: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, caseID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tag, err := tx.Exec(ctx, `DELETE FROM violations WHERE case_id = $1 AND id = ANY($2::uuid[])`, caseID, ids)
	if err != nil {
		return fmt.Errorf("violation: delete: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return ErrNotFound
	}
	return nil
}

func scanViolation(row pgx.Row) (Violation, error) {
	var v Violation
	err := row.Scan(
		&v.ID,
		&v.CaseID,
		&v.ConfigViolationID,
		&v.DispositionID,
		&v.Status,
		&v.ComplyByDate,
		&v.Entity,
		&v.ClosedAt,
		&v.ClosedBy,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	return v, err
}

func entityOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
