package disposition

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"caseflow/apperr"
	"caseflow/db"
	"caseflow/violation"
)

func compliant(ct CompliantType) *CompliantType { return &ct }

func TestGetByIDs(t *testing.T) {
	repo := &fakeRepo{rows: map[string]Disposition{
		"d1":      {ID: "d1", Type: TypeInvalid, IsActive: true},
		"d2":      {ID: "d2", Type: TypeCompliant, CompliantType: compliant(CompliantVoluntary), IsActive: true},
		"retired": {ID: "retired", Type: TypeInvalid},
	}}
	c := NewCatalog(nil, repo)
	ctx := context.Background()

	got, err := c.GetByIDs(ctx, "a1", []string{"d1", "d2", "d1", ""})
	if err != nil {
		t.Fatalf("get by ids: unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 dispositions got %d", len(got))
	}
	if !reflect.DeepEqual(repo.lastIDs, []string{"d1", "d2"}) {
		t.Fatalf("expected deduplicated ids [d1 d2] got %v", repo.lastIDs)
	}

	if _, err := c.GetByIDs(ctx, "a1", []string{"d1", "missing"}); !errors.Is(err, apperr.InvalidRequest(msgInvalidDispositions)) {
		t.Fatalf("expected invalid dispositions error for unknown id, got %v", err)
	}
	if _, err := c.GetByIDs(ctx, "a1", []string{"d1", "retired"}); !errors.Is(err, apperr.InvalidRequest(msgInvalidDispositions)) {
		t.Fatalf("expected invalid dispositions error for deactivated id, got %v", err)
	}

	calls := repo.calls
	got, err = c.GetByIDs(ctx, "a1", nil)
	if err != nil {
		t.Fatalf("empty input: unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no dispositions got %v", got)
	}
	if repo.calls != calls {
		t.Fatal("expected empty input to skip the query")
	}

	repo.err = errors.New("conn refused")
	if _, err := c.GetByIDs(ctx, "a1", []string{"d1"}); apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestGetReferenced(t *testing.T) {
	repo := &fakeRepo{rows: map[string]Disposition{
		"d1":      {ID: "d1", Type: TypeInvalid, IsActive: true},
		"retired": {ID: "retired", Type: TypeCompliant, CompliantType: compliant(CompliantForced)},
	}}
	c := NewCatalog(nil, repo)
	ctx := context.Background()

	got, err := c.GetReferenced(ctx, "a1", []string{"retired", "d1", "retired", ""})
	if err != nil {
		t.Fatalf("get referenced: unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 dispositions got %d", len(got))
	}
	if !reflect.DeepEqual(repo.lastIDs, []string{"retired", "d1"}) {
		t.Fatalf("expected deduplicated ids [retired d1] got %v", repo.lastIDs)
	}
	if !got[0].IsForced() || got[0].IsActive {
		t.Fatalf("expected the deactivated forced disposition first, got %+v", got[0])
	}

	calls := repo.calls
	if got, err := c.GetReferenced(ctx, "a1", nil); err != nil || len(got) != 0 {
		t.Fatalf("expected empty result for no ids, got %v, %v", got, err)
	}
	if repo.calls != calls {
		t.Fatal("expected empty input to skip the query")
	}

	repo.err = errors.New("conn refused")
	if _, err := c.GetReferenced(ctx, "a1", []string{"d1"}); !errors.Is(err, apperr.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestGetForcedDisposition(t *testing.T) {
	forced := Disposition{ID: "f1", Type: TypeCompliant, CompliantType: compliant(CompliantForced), IsActive: true}
	c := NewCatalog(nil, &fakeRepo{forced: &forced})

	got, err := c.GetForcedDisposition(context.Background(), "a1")
	if err != nil {
		t.Fatalf("get forced: unexpected error: %v", err)
	}
	if !got.IsForced() {
		t.Fatalf("expected a forced disposition got %+v", got)
	}

	if _, err := NewCatalog(nil, &fakeRepo{}).GetForcedDisposition(context.Background(), "a1"); !errors.Is(err, apperr.ErrDBMissingEntity) {
		t.Fatalf("expected ErrDBMissingEntity, got %v", err)
	}
}

func TestAllowsStatus(t *testing.T) {
	invalid := Disposition{Type: TypeInvalid}
	voluntary := Disposition{Type: TypeCompliant, CompliantType: compliant(CompliantVoluntary)}

	tests := []struct {
		name string
		d    Disposition
		s    violation.Status
		want bool
	}{
		{"invalid closes invalid", invalid, violation.StatusClosedInvalid, true},
		{"invalid cannot meet compliance", invalid, violation.StatusClosedMetCompliance, false},
		{"compliant meets compliance", voluntary, violation.StatusClosedMetCompliance, true},
		{"compliant cannot stay open", voluntary, violation.StatusOpen, false},
	}
	for _, tt := range tests {
		if got := tt.d.AllowsStatus(tt.s); got != tt.want {
			t.Errorf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}

	if voluntary.IsForced() {
		t.Error("expected voluntary disposition not to be forced")
	}
	if (Disposition{Type: TypeInvalid, CompliantType: compliant(CompliantForced)}).IsForced() {
		t.Error("expected invalid disposition not to be forced")
	}
}

type fakeRepo struct {
	rows    map[string]Disposition
	forced  *Disposition
	err     error
	calls   int
	lastIDs []string
}

func (f *fakeRepo) ListActiveByIDs(ctx context.Context, q db.Querier, agencyID string, ids []string) ([]Disposition, error) {
	all, err := f.ListByIDs(ctx, q, agencyID, ids)
	if err != nil {
		return nil, err
	}
	out := []Disposition{}
	for _, d := range all {
		if d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByIDs(_ context.Context, _ db.Querier, _ string, ids []string) ([]Disposition, error) {
	f.calls++
	f.lastIDs = ids
	if f.err != nil {
		return nil, f.err
	}
	out := []Disposition{}
	for _, id := range ids {
		if d, ok := f.rows[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetActiveForced(_ context.Context, _ db.Querier, _ string) (Disposition, error) {
	if f.forced == nil {
		return Disposition{}, ErrNotFound
	}
	return *f.forced, nil
}
