package disposition

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"caseflow/db"
)

var (
	// ErrNotFound is returned when no matching disposition row exists.
	ErrNotFound = errors.New("disposition: not found")
)

type Repository interface {
	ListActiveByIDs(ctx context.Context, q db.Querier, agencyID string, ids []string) ([]Disposition, error)
	ListByIDs(ctx context.Context, q db.Querier, agencyID string, ids []string) ([]Disposition, error)
	GetActiveForced(ctx context.Context, q db.Querier, agencyID string) (Disposition, error)
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

func (r *PGRepository) ListActiveByIDs(ctx context.Context, q db.Querier, agencyID string, ids []string) ([]Disposition, error) {
	const query = `
		SELECT id, agency_id, label, disposition_type, compliant_disposition_type, is_active
		FROM dispositions
		WHERE agency_id = $1 AND id = ANY($2::uuid[]) AND is_active
		ORDER BY label
	`
	return listDispositions(ctx, q, query, agencyID, ids)
}

// ListByIDs loads dispositions whether or not they are still active. Closed
// violations keep pointing at the disposition they were closed under.
func (r *PGRepository) ListByIDs(ctx context.Context, q db.Querier, agencyID string, ids []string) ([]Disposition, error) {
	const query = `
		SELECT id, agency_id, label, disposition_type, compliant_disposition_type, is_active
		FROM dispositions
		WHERE agency_id = $1 AND id = ANY($2::uuid[])
		ORDER BY label
	`
	return listDispositions(ctx, q, query, agencyID, ids)
}

func listDispositions(ctx context.Context, q db.Querier, query, agencyID string, ids []string) ([]Disposition, error) {
	rows, err := q.Query(ctx, query, agencyID, ids)
	if err != nil {
		return nil, fmt.Errorf("disposition: list by ids: %w", err)
	}
	defer rows.Close()

	out := make([]Disposition, 0, len(ids))
	for rows.Next() {
		d, err := scanDisposition(rows)
		if err != nil {
			return nil, fmt.Errorf("disposition: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("disposition: iterate: %w", err)
	}
	return out, nil
}

func (r *PGRepository) GetActiveForced(ctx context.Context, q db.Querier, agencyID string) (Disposition, error) {
	const query = `
		SELECT id, agency_id, label, disposition_type, compliant_disposition_type, is_active
		FROM dispositions
		WHERE agency_id = $1
		  AND disposition_type = 'COMPLIANT_DISPOSITION'
		  AND compliant_disposition_type = 'FORCED'
		  AND is_active
		ORDER BY created_at
		LIMIT 1
	`

	d, err := scanDisposition(q.QueryRow(ctx, query, agencyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Disposition{}, ErrNotFound
		}
		return Disposition{}, fmt.Errorf("disposition: get forced: %w", err)
	}
	return d, nil
}

func scanDisposition(row pgx.Row) (Disposition, error) {
	var d Disposition
	err := row.Scan(
		&d.ID,
		&d.AgencyID,
		&d.Label,
		&d.Type,
		&d.CompliantType,
		&d.IsActive,
	)
	return d, err
}
