package contact

import (
	"context"
	"fmt"
	"time"

	"caseflow/db"
)

// Contact is a person attached to a case (owner, tenant, complainant).
type Contact struct {
	ID        string
	CaseID    string
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
}

type Repository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

// GetAll lists the case's contacts. agencyID scopes the lookup to the case's
// agency.
func (r *Repository) GetAll(ctx context.Context, agencyID, caseID string) ([]Contact, error) {
	const query = `
		SELECT ct.id, ct.case_id, ct.name, ct.email, ct.phone, ct.created_at
		FROM contacts ct
		JOIN cases c ON c.id = ct.case_id
		WHERE ct.case_id = $1 AND c.agency_id = $2
		ORDER BY ct.created_at
	`

	rows, err := r.pool.Query(ctx, query, caseID, agencyID)
	if err != nil {
		return nil, fmt.Errorf("contact: list: %w", err)
	}
	defer rows.Close()

	out := make([]Contact, 0, 4)
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.CaseID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("contact: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contact: iterate: %w", err)
	}
	return out, nil
}
