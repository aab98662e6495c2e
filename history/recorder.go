package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"caseflow/db"
	"caseflow/violation"
)

// Recorder is the write-only audit sink. Every entry is paired with an outbox
// message written in the same transaction.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) CreatePerformInspectionHistory(ctx context.Context, tx pgx.Tx, e PerformInspectionEntry) error {
	payload := map[string]any{
		"inspection_id":     e.InspectionID,
		"violations_before": snapshot(e.Before),
		"violations_after":  snapshot(e.After),
		"abatement_stage":   e.AbatementStage,
		"case_closed":       e.CaseClosed,
	}
	if e.NextInspection != nil {
		payload["next_inspection"] = map[string]any{
			"id":                         e.NextInspection.ID,
			"planned_date":               e.NextInspection.PlannedDate.Format(time.DateOnly),
			"assignee_id":                e.NextInspection.AssigneeID,
			"is_verification_inspection": e.NextInspection.IsVerificationInspection,
		}
	}
	if e.Notice != nil {
		payload["notice"] = map[string]any{
			"id":               e.Notice.ID,
			"config_notice_id": e.Notice.ConfigNoticeID,
			"label":            e.Notice.Label,
			"issued_at":        e.Notice.IssuedAt.UTC(),
		}
	}

	if err := insertHistory(ctx, tx, e.AgencyID, e.CaseID, ActionInspectionPerformed, e.ActorID, payload); err != nil {
		return err
	}
	return enqueueOutbox(ctx, tx, TopicInspectionPerformed, map[string]any{
		"agency_id":       e.AgencyID,
		"case_id":         e.CaseID,
		"inspection_id":   e.InspectionID,
		"abatement_stage": e.AbatementStage,
		"case_closed":     e.CaseClosed,
	})
}

func (r *Recorder) CreateModifiedDatesHistory(ctx context.Context, tx pgx.Tx, agencyID, caseID, userID string, changes []violation.ComplyByChange) error {
	if len(changes) == 0 {
		return nil
	}
	items := make([]map[string]any, 0, len(changes))
	for _, c := range changes {
		items = append(items, map[string]any{
			"violation_id": c.ViolationID,
			"previous":     formatDate(c.Previous),
			"current":      formatDate(c.Current),
		})
	}
	payload := map[string]any{"changes": items}

	if err := insertHistory(ctx, tx, agencyID, caseID, ActionComplyByModified, userID, payload); err != nil {
		return err
	}
	return enqueueOutbox(ctx, tx, TopicComplyByModified, map[string]any{
		"agency_id": agencyID,
		"case_id":   caseID,
		"count":     len(changes),
	})
}

func (r *Recorder) CreateCaseSummaryHistory(ctx context.Context, tx pgx.Tx, action Action, agencyID, userID, caseID string, details map[string]any) error {
	if details == nil {
		details = make(map[string]any, 1)
	}
	if err := insertHistory(ctx, tx, agencyID, caseID, action, userID, details); err != nil {
		return err
	}
	return enqueueOutbox(ctx, tx, TopicCaseSummary, map[string]any{
		"agency_id": agencyID,
		"case_id":   caseID,
		"action":    action,
	})
}

// ListByCase returns the case's history, oldest first.
func (r *Recorder) ListByCase(ctx context.Context, q db.Querier, caseID string) ([]Entry, error) {
	rows, err := q.Query(ctx, `SELECT id, case_id, action, actor_id, payload FROM case_history WHERE case_id = $1 ORDER BY id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, 8)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Action, &e.ActorID, &e.Payload); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate: %w", err)
	}
	return out, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, agencyID, caseID string, action Action, actorID string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("history: marshal payload: %w", err)
	}
	var actor any
	if actorID != "" {
		actor = actorID
	}
	const q = `
INSERT INTO case_history (case_id, agency_id, action, actor_id, payload)
VALUES ($1, $2, $3, $4::uuid, $5::jsonb)
`
	if _, err := tx.Exec(ctx, q, caseID, agencyID, string(action), actor, body); err != nil {
		return fmt.Errorf("history: insert %s: %w", action, err)
	}
	return nil
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("history: marshal outbox payload: %w", err)
	}
	const q = `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`
	if _, err := tx.Exec(ctx, q, topic, body); err != nil {
		return fmt.Errorf("history: enqueue outbox: %w", err)
	}
	return nil
}

func snapshot(list []violation.Violation) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		item := map[string]any{
			"id":                  v.ID,
			"config_violation_id": v.ConfigViolationID,
			"status":              v.Status,
			"comply_by_date":      formatDate(v.ComplyByDate),
		}
		if v.DispositionID != nil {
			item["disposition_id"] = *v.DispositionID
		}
		out = append(out, item)
	}
	return out
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}
