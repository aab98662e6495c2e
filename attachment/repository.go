package attachment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// File describes an already-stored upload. Only its metadata is recorded.
type File struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	StorageKey  string `json:"storageKey" validate:"required"`
	SizeBytes   int64  `json:"sizeBytes" validate:"gte=0"`
}

type Attachment struct {
	ID        string
	CaseID    string
	File      File
	CreatedBy string
	CreatedAt time.Time
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Create records files against the case inside tx.
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, agencyID, caseID, userID string, files []File) ([]Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}

	const insertSQL = `
		INSERT INTO attachments (case_id, file_name, content_type, storage_key, size_bytes, created_by)
		SELECT c.id, $3, $4, $5, $6, $7
		FROM cases c
		WHERE c.id = $1 AND c.agency_id = $2
		RETURNING id, created_at
	`

	out := make([]Attachment, 0, len(files))
	for _, f := range files {
		a := Attachment{CaseID: caseID, File: f, CreatedBy: userID}
		if err := tx.QueryRow(ctx, insertSQL, caseID, agencyID, f.FileName, f.ContentType, f.StorageKey, f.SizeBytes, userID).
			Scan(&a.ID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("attachment: insert %s: %w", f.FileName, err)
		}
		out = append(out, a)
	}
	return out, nil
}
