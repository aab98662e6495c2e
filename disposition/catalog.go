package disposition

import (
	"context"
	"errors"
	"fmt"

	"caseflow/apperr"
	"caseflow/db"
)

const msgInvalidDispositions = "Some or all dispositions are either inactive or invalid"

// Catalog resolves agency dispositions for the workflow.
type Catalog struct {
	pool db.Querier
	repo Repository
}

func NewCatalog(pool db.Querier, repo Repository) *Catalog {
	if repo == nil {
		repo = NewRepository()
	}
	return &Catalog{pool: pool, repo: repo}
}

// GetByIDs returns the active dispositions for ids. Every distinct id must
// resolve, otherwise the request is rejected.
func (c *Catalog) GetByIDs(ctx context.Context, agencyID string, ids []string) ([]Disposition, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return []Disposition{}, nil
	}

	found, err := c.repo.ListActiveByIDs(ctx, c.pool, agencyID, unique)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(found) != len(unique) {
		return nil, apperr.InvalidRequest(msgInvalidDispositions)
	}
	return found, nil
}

// GetReferenced loads the dispositions that stored violations point at,
// including ones the agency has since deactivated.
func (c *Catalog) GetReferenced(ctx context.Context, agencyID string, ids []string) ([]Disposition, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return []Disposition{}, nil
	}
	found, err := c.repo.ListByIDs(ctx, c.pool, agencyID, unique)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return found, nil
}

// GetForcedDisposition returns the agency's active forced-compliance disposition.
func (c *Catalog) GetForcedDisposition(ctx context.Context, agencyID string) (Disposition, error) {
	d, err := c.repo.GetActiveForced(ctx, c.pool, agencyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Disposition{}, apperr.MissingEntity(fmt.Sprintf("No forced disposition configured for agency %s", agencyID))
		}
		return Disposition{}, apperr.Internal(err)
	}
	return d, nil
}

// ByID indexes dispositions for lookups during validation.
func ByID(list []Disposition) map[string]Disposition {
	out := make(map[string]Disposition, len(list))
	for _, d := range list {
		out[d.ID] = d
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
