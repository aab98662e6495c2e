package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"caseflow/db"
)

var (
	// ErrUserNotFound signals that the user does not exist in the agency.
	ErrUserNotFound = errors.New("user: not found")
)

// Directory answers who may be assigned work inside an agency.
type Directory interface {
	GetByID(ctx context.Context, q db.Querier, agencyID, userID string) (User, error)
	Exists(ctx context.Context, q db.Querier, agencyID, userID string) (bool, error)
}

// PGDirectory implements Directory backed by PostgreSQL.
type PGDirectory struct{}

func NewDirectory() *PGDirectory {
	return &PGDirectory{}
}

// GetByID retrieves an active user of the agency.
func (d *PGDirectory) GetByID(ctx context.Context, q db.Querier, agencyID, userID string) (User, error) {
	const selectSQL = `
		SELECT id, agency_id, email, full_name, is_active, created_at
		FROM users
		WHERE id = $1 AND agency_id = $2 AND is_active
	`

	u, err := scanUser(q.QueryRow(ctx, selectSQL, userID, agencyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("user: get by id: %w", err)
	}
	return u, nil
}

// Exists reports whether userID resolves to an active user of the agency.
func (d *PGDirectory) Exists(ctx context.Context, q db.Querier, agencyID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var ok bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND agency_id = $2 AND is_active)`, userID, agencyID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("user: exists: %w", err)
	}
	return ok, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.AgencyID,
		&u.Email,
		&u.FullName,
		&u.IsActive,
		&u.CreatedAt,
	)
	return u, err
}
