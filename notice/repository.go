package notice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"caseflow/db"
)

var (
	ErrTemplateNotFound = errors.New("notice: template not found")
)

type Repository interface {
	GetTemplate(ctx context.Context, q db.Querier, agencyID, configNoticeID string) (Template, error)
	Insert(ctx context.Context, tx pgx.Tx, n Notice, userID string) (Notice, error)
	ListByCase(ctx context.Context, q db.Querier, caseID string) ([]Notice, error)
}

type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

func (r *PGRepository) GetTemplate(ctx context.Context, q db.Querier, agencyID, configNoticeID string) (Template, error) {
	var t Template
	err := q.QueryRow(ctx, `SELECT id, agency_id, label, template FROM config_notices WHERE id = $1 AND agency_id = $2`, configNoticeID, agencyID).
		Scan(&t.ID, &t.AgencyID, &t.Label, &t.Body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, ErrTemplateNotFound
		}
		return Template{}, fmt.Errorf("notice: get template: %w", err)
	}
	return t, nil
}

// Insert writes the notice and links it to its inspection.
func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, n Notice, userID string) (Notice, error) {
	const insertSQL = `
		INSERT INTO notices (case_id, inspection_id, config_notice_id, issued_at, notice_content, certified_mail_number, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	if err := tx.QueryRow(ctx, insertSQL,
		n.CaseID,
		n.InspectionID,
		n.ConfigNoticeID,
		n.IssuedAt,
		n.NoticeContent,
		n.CertifiedMailNumber,
		userID,
	).Scan(&n.ID, &n.CreatedAt); err != nil {
		return Notice{}, fmt.Errorf("notice: insert: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE inspections SET notice_id = $1 WHERE id = $2 AND case_id = $3`, n.ID, n.InspectionID, n.CaseID); err != nil {
		return Notice{}, fmt.Errorf("notice: link inspection: %w", err)
	}
	return n, nil
}

func (r *PGRepository) ListByCase(ctx context.Context, q db.Querier, caseID string) ([]Notice, error) {
	const query = `
		SELECT n.id, n.case_id, n.inspection_id, n.config_notice_id, cn.label, n.issued_at, n.notice_content, n.certified_mail_number, n.created_at
		FROM notices n
		JOIN config_notices cn ON cn.id = n.config_notice_id
		WHERE n.case_id = $1
		ORDER BY n.created_at, n.id
	`
	rows, err := q.Query(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("notice: list: %w", err)
	}
	defer rows.Close()

	out := make([]Notice, 0, 4)
	for rows.Next() {
		var n Notice
		if err := rows.Scan(&n.ID, &n.CaseID, &n.InspectionID, &n.ConfigNoticeID, &n.Label, &n.IssuedAt, &n.NoticeContent, &n.CertifiedMailNumber, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notice: scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notice: iterate: %w", err)
	}
	return out, nil
}
