package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the queries that must stay empty however requests interleave.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_scheduled_inspection",
			SQL: `SELECT case_id, COUNT(*) FROM inspections
                  WHERE status = 'SCHEDULED'
                  GROUP BY case_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_comply_by_iff_open",
			SQL: `SELECT id, status, comply_by_date FROM violations
                  WHERE (status = 'OPEN') <> (comply_by_date IS NOT NULL)`,
		},
		{
			Name: "O3_closed_case_has_no_open_violation",
			SQL: `SELECT c.id, v.id, v.status FROM cases c
                  JOIN violations v ON v.case_id = c.id
                  WHERE c.status = 'CLOSED'
                    AND v.status IN ('OPEN', 'VERIFICATION_PENDING')`,
		},
		{
			Name: "O4_open_case_has_next_inspection",
			SQL: `SELECT c.id FROM cases c
                  WHERE c.status = 'OPEN'
                    AND NOT EXISTS (SELECT 1 FROM inspections i
                                    WHERE i.case_id = c.id AND i.status = 'SCHEDULED')`,
		},
		{
			Name: "O5_one_history_row_per_completed_inspection",
			SQL: `SELECT i.id, COUNT(h.id) FROM inspections i
                  LEFT JOIN case_history h
                         ON h.case_id = i.case_id
                        AND h.action = 'INSPECTION_PERFORMED'
                        AND h.payload->>'inspection_id' = i.id::text
                  WHERE i.status = 'COMPLETED'
                  GROUP BY i.id HAVING COUNT(h.id) <> 1`,
		},
		{
			Name: "O6_notice_linked_to_completed_inspection",
			SQL: `SELECT n.id FROM notices n
                  JOIN inspections i ON i.id = n.inspection_id
                  WHERE i.status <> 'COMPLETED' OR i.notice_id IS DISTINCT FROM n.id`,
		},
		{
			Name: "O7_history_has_outbox_message",
			SQL: `SELECT h.id FROM case_history h
                  WHERE h.action = 'INSPECTION_PERFORMED'
                    AND NOT EXISTS (SELECT 1 FROM outbox o
                                    WHERE o.topic = 'case.inspection_performed'
                                      AND o.payload->>'inspection_id' = h.payload->>'inspection_id')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
