package notice

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"caseflow/apperr"
)

// MergeFieldResolver renders a notice body from its template and case data.
// Rendering itself lives outside this module.
type MergeFieldResolver interface {
	Resolve(ctx context.Context, tx pgx.Tx, agencyID, caseID string, tmpl Template) (string, error)
}

// RawTemplate is a MergeFieldResolver that stores the template unrendered.
type RawTemplate struct{}

func (RawTemplate) Resolve(_ context.Context, _ pgx.Tx, _, _ string, tmpl Template) (string, error) {
	return tmpl.Body, nil
}

type Service struct {
	repo     Repository
	resolver MergeFieldResolver
}

func NewService(repo Repository, resolver MergeFieldResolver) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	if resolver == nil {
		resolver = RawTemplate{}
	}
	return &Service{repo: repo, resolver: resolver}
}

// Create issues a notice against a closed inspection inside tx.
func (s *Service) Create(ctx context.Context, tx pgx.Tx, agencyID, caseID, inspectionID, userID string, req Request) (Notice, error) {
	tmpl, err := s.repo.GetTemplate(ctx, tx, agencyID, req.ConfigNoticeID)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return Notice{}, apperr.InvalidRequest("Notice template does not exist")
		}
		return Notice{}, err
	}

	content, err := s.resolver.Resolve(ctx, tx, agencyID, caseID, tmpl)
	if err != nil {
		return Notice{}, err
	}

	n, err := s.repo.Insert(ctx, tx, Notice{
		CaseID:              caseID,
		InspectionID:        inspectionID,
		ConfigNoticeID:      tmpl.ID,
		Label:               tmpl.Label,
		IssuedAt:            req.IssuedAt,
		NoticeContent:       content,
		CertifiedMailNumber: req.CertifiedMailNumber,
	}, userID)
	if err != nil {
		return Notice{}, err
	}
	return n, nil
}
