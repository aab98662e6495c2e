package note

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound  = errors.New("note: not found")
	ErrForbidden = errors.New("note: forbidden")
)

type Note struct {
	ID        string
	CaseID    string
	Content   string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Create(ctx context.Context, tx pgx.Tx, agencyID, caseID, userID, content string) (Note, error) {
	const query = `
		INSERT INTO notes (case_id, content, created_by)
		SELECT c.id, $3, $4
		FROM cases c
		WHERE c.id = $1 AND c.agency_id = $2
		RETURNING id, case_id, content, created_by, created_at, updated_at
	`

	n, err := scanNote(tx.QueryRow(ctx, query, caseID, agencyID, content, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Note{}, ErrForbidden
		}
		return Note{}, fmt.Errorf("note: create: %w", err)
	}
	return n, nil
}

// Edit replaces the note's content. Only the author may edit.
func (r *Repository) Edit(ctx context.Context, tx pgx.Tx, agencyID, caseID, noteID, userID, content string) (Note, error) {
	const query = `
		UPDATE notes n
		SET content = $4,
		    updated_at = get_tx_timestamp()
		FROM cases c
		WHERE n.id = $1
		  AND n.case_id = c.id
		  AND c.id = $2
		  AND c.agency_id = $3
		  AND n.created_by = $5
		RETURNING n.id, n.case_id, n.content, n.created_by, n.created_at, n.updated_at
	`

	n, err := scanNote(tx.QueryRow(ctx, query, noteID, caseID, agencyID, content, userID))
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Note{}, fmt.Errorf("note: edit: %w", err)
	}
	return Note{}, r.classifyMiss(ctx, tx, caseID, noteID)
}

func (r *Repository) Delete(ctx context.Context, tx pgx.Tx, agencyID, caseID, noteID, userID string) error {
	const query = `
		DELETE FROM notes n
		USING cases c
		WHERE n.id = $1
		  AND n.case_id = c.id
		  AND c.id = $2
		  AND c.agency_id = $3
		  AND n.created_by = $4
	`

	tag, err := tx.Exec(ctx, query, noteID, caseID, agencyID, userID)
	if err != nil {
		return fmt.Errorf("note: delete: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return r.classifyMiss(ctx, tx, caseID, noteID)
}

func (r *Repository) classifyMiss(ctx context.Context, tx pgx.Tx, caseID, noteID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM notes WHERE id = $1 AND case_id = $2)`, noteID, caseID).Scan(&exists); err != nil {
		return fmt.Errorf("note: check existence: %w", err)
	}
	if exists {
		return ErrForbidden
	}
	return ErrNotFound
}

func scanNote(row pgx.Row) (Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.CaseID, &n.Content, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}
