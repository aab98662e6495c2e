package casefile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"caseflow/db"
)

var (
	ErrNotFound = errors.New("casefile: not found")
)

type Repository interface {
	Get(ctx context.Context, q db.Querier, agencyID, caseID string) (Case, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, agencyID, caseID string) (Case, error)
	Close(ctx context.Context, tx pgx.Tx, caseID, userID string) (Case, error)
	Reopen(ctx context.Context, tx pgx.Tx, caseID, stage string) (Case, error)
	UpdateAssignee(ctx context.Context, tx pgx.Tx, caseID, assigneeID string) (Case, error)
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

const caseColumns = `id, agency_id, status, abatement_stage, assignee_id, reopened_at, closed_at, closed_by, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, q db.Querier, agencyID, caseID string) (Case, error) {
	c, err := scanCase(q.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1 AND agency_id = $2`, caseID, agencyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("casefile: get: %w", err)
	}
	return c, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, agencyID, caseID string) (Case, error) {
	c, err := scanCase(tx.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1 AND agency_id = $2 FOR UPDATE`, caseID, agencyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("casefile: get for update: %w", err)
	}
	return c, nil
}

func (r *PGRepository) Close(ctx context.Context, tx pgx.Tx, caseID, userID string) (Case, error) {
	query := `
		UPDATE cases
		SET status = 'CLOSED',
		    closed_at = get_tx_timestamp(),
		    closed_by = $2,
		    updated_at = get_tx_timestamp()
		WHERE id = $1
		RETURNING ` + caseColumns

	c, err := scanCase(tx.QueryRow(ctx, query, caseID, userID))
	if err != nil {
		return Case{}, fmt.Errorf("casefile: close: %w", err)
	}
	return c, nil
}

func (r *PGRepository) Reopen(ctx context.Context, tx pgx.Tx, caseID, stage string) (Case, error) {
	query := `
		UPDATE cases
		SET status = 'OPEN',
		    reopened_at = get_tx_timestamp(),
		    closed_at = NULL,
		    closed_by = NULL,
		    abatement_stage = $2,
		    updated_at = get_tx_timestamp()
		WHERE id = $1 AND status = 'CLOSED'
		RETURNING ` + caseColumns

	c, err := scanCase(tx.QueryRow(ctx, query, caseID, stage))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("casefile: reopen: %w", err)
	}
	return c, nil
}

func (r *PGRepository) UpdateAssignee(ctx context.Context, tx pgx.Tx, caseID, assigneeID string) (Case, error) {
	query := `
		UPDATE cases
		SET assignee_id = $2,
		    updated_at = get_tx_timestamp()
		WHERE id = $1
		RETURNING ` + caseColumns

	c, err := scanCase(tx.QueryRow(ctx, query, caseID, assigneeID))
	if err != nil {
		return Case{}, fmt.Errorf("casefile: update assignee: %w", err)
	}
	return c, nil
}

func scanCase(row pgx.Row) (Case, error) {
	var c Case
	err := row.Scan(
		&c.ID,
		&c.AgencyID,
		&c.Status,
		&c.AbatementStage,
		&c.AssigneeID,
		&c.ReopenedAt,
		&c.ClosedAt,
		&c.ClosedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
