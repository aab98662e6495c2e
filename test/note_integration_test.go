package test

import (
	"errors"
	"testing"

	"caseflow/note"
)

func TestNotes_OnlyAuthorMayChange(t *testing.T) {
	ctx, pool, _, seed := integrationPool(t)
	f := seed()
	repo := note.NewRepository()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tx.Rollback(ctx)

	n, err := repo.Create(ctx, tx, f.AgencyID, f.CaseID, f.Inspector, "Gate was locked")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.CreatedBy != f.Inspector {
		t.Errorf("expected created by %v got %v", f.Inspector, n.CreatedBy)
	}

	edited, err := repo.Edit(ctx, tx, f.AgencyID, f.CaseID, n.ID, f.Inspector, "Gate was locked; left a card")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edited.Content != "Gate was locked; left a card" {
		t.Errorf("expected content %v got %v", "Gate was locked; left a card", edited.Content)
	}

	_, err = repo.Edit(ctx, tx, f.AgencyID, f.CaseID, n.ID, f.Supervisor, "overwritten")
	if !errors.Is(err, note.ErrForbidden) {
		t.Errorf("expected %v, got %v", note.ErrForbidden, err)
	}

	err = repo.Delete(ctx, tx, f.AgencyID, f.CaseID, n.ID, f.Supervisor)
	if !errors.Is(err, note.ErrForbidden) {
		t.Errorf("expected %v, got %v", note.ErrForbidden, err)
	}

	if err := repo.Delete(ctx, tx, f.AgencyID, f.CaseID, n.ID, f.Inspector); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = repo.Delete(ctx, tx, f.AgencyID, f.CaseID, n.ID, f.Inspector)
	if !errors.Is(err, note.ErrNotFound) {
		t.Errorf("expected %v, got %v", note.ErrNotFound, err)
	}
}
