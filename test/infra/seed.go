package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/inspection"
	"caseflow/notice"
	"caseflow/violation"
	"caseflow/workflow"
)

// Fixture is one open case with two OPEN violations and a SCHEDULED
// inspection assigned to Inspector.
type Fixture struct {
	AgencyID     string
	Inspector    string
	Supervisor   string
	CaseID       string
	InspectionID string
	Violations   []string

	Voluntary   string
	Forced      string
	Invalid     string
	NoticeID    string
	NoticeLabel string
}

// Seed inserts a fresh agency's worth of rows. Every call uses new ids so
// fixtures never collide.
func Seed(ctx context.Context, pool *pgxpool.Pool) (Fixture, error) {
	f := Fixture{AgencyID: uuid.NewString(), NoticeLabel: "Notice of Violation"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return Fixture{}, err
	}
	defer tx.Rollback(ctx)

	insertUser := `INSERT INTO users (agency_id, email, full_name) VALUES ($1, $2, $3) RETURNING id`
	if err := tx.QueryRow(ctx, insertUser, f.AgencyID, fmt.Sprintf("inspector-%s@example.com", uuid.NewString()), "Field Inspector").Scan(&f.Inspector); err != nil {
		return Fixture{}, fmt.Errorf("seed inspector: %w", err)
	}
	if err := tx.QueryRow(ctx, insertUser, f.AgencyID, fmt.Sprintf("supervisor-%s@example.com", uuid.NewString()), "Case Supervisor").Scan(&f.Supervisor); err != nil {
		return Fixture{}, fmt.Errorf("seed supervisor: %w", err)
	}

	if err := tx.QueryRow(ctx, `INSERT INTO cases (agency_id, assignee_id) VALUES ($1, $2) RETURNING id`, f.AgencyID, f.Supervisor).Scan(&f.CaseID); err != nil {
		return Fixture{}, fmt.Errorf("seed case: %w", err)
	}

	insertDisposition := `
INSERT INTO dispositions (agency_id, label, disposition_type, compliant_disposition_type)
VALUES ($1, $2, $3, $4) RETURNING id`
	dispositions := []struct {
		dst       *string
		label     string
		kind      string
		compliant *string
	}{
		{&f.Voluntary, "Owner corrected", "COMPLIANT_DISPOSITION", strPtr("VOLUNTARY")},
		{&f.Forced, "Abated by city", "COMPLIANT_DISPOSITION", strPtr("FORCED")},
		{&f.Invalid, "No violation found", "INVALID_DISPOSITION", nil},
	}
	for _, d := range dispositions {
		if err := tx.QueryRow(ctx, insertDisposition, f.AgencyID, d.label, d.kind, d.compliant).Scan(d.dst); err != nil {
			return Fixture{}, fmt.Errorf("seed disposition %q: %w", d.label, err)
		}
	}

	if err := tx.QueryRow(ctx, `INSERT INTO config_notices (agency_id, label, template) VALUES ($1, $2, 'Correct by the comply-by date.') RETURNING id`, f.AgencyID, f.NoticeLabel).Scan(&f.NoticeID); err != nil {
		return Fixture{}, fmt.Errorf("seed notice template: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO contacts (case_id, name, email) VALUES ($1, 'Property Owner', 'owner@example.com')`, f.CaseID); err != nil {
		return Fixture{}, fmt.Errorf("seed contact: %w", err)
	}

	for i := 0; i < 2; i++ {
		var id string
		err := tx.QueryRow(ctx, `
INSERT INTO violations (case_id, config_violation_id, status, comply_by_date)
VALUES ($1, $2, 'OPEN', current_date + 14) RETURNING id`, f.CaseID, uuid.NewString()).Scan(&id)
		if err != nil {
			return Fixture{}, fmt.Errorf("seed violation: %w", err)
		}
		f.Violations = append(f.Violations, id)
	}

	if err := tx.QueryRow(ctx, `
INSERT INTO inspections (case_id, planned_date, assignee_id, created_by)
VALUES ($1, current_date, $2, $3) RETURNING id`, f.CaseID, f.Inspector, f.Supervisor).Scan(&f.InspectionID); err != nil {
		return Fixture{}, fmt.Errorf("seed inspection: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Fixture{}, err
	}
	return f, nil
}

// FollowUpRequest keeps every violation open, issues a notice and schedules
// the next inspection a week out.
func (f Fixture) FollowUpRequest(now time.Time) workflow.PerformInspectionRequest {
	complyBy := dateOf(now.AddDate(0, 0, 21))
	existing := make([]violation.Input, 0, len(f.Violations))
	for _, id := range f.Violations {
		existing = append(existing, violation.Input{ID: id, Status: violation.StatusOpen, ComplyByDate: &complyBy})
	}
	return workflow.PerformInspectionRequest{
		ExistingViolations:  existing,
		ScheduledInspection: &inspection.Request{PlannedDate: dateOf(now.AddDate(0, 0, 7)), AssigneeID: f.Inspector},
		Notice:              &notice.Request{ConfigNoticeID: f.NoticeID, IssuedAt: now},
	}
}

// CloseAllRequest closes every violation with dispositionID under status.
func (f Fixture) CloseAllRequest(status violation.Status, dispositionID string) workflow.PerformInspectionRequest {
	existing := make([]violation.Input, 0, len(f.Violations))
	for _, id := range f.Violations {
		existing = append(existing, violation.Input{ID: id, Status: status, DispositionID: strPtr(dispositionID)})
	}
	return workflow.PerformInspectionRequest{ExistingViolations: existing}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }
