package migrations

import (
	"context"
	"fmt"

	"caseflow/db"
)

// Apply executes every embedded migration in order. The SQL is idempotent.
func Apply(ctx context.Context, q db.Querier) ([]string, error) {
	names, err := Files()
	if err != nil {
		return nil, fmt.Errorf("migrations: list: %w", err)
	}
	for _, name := range names {
		sql, err := Read(name)
		if err != nil {
			return nil, fmt.Errorf("migrations: read %s: %w", name, err)
		}
		if _, err := q.Exec(ctx, sql); err != nil {
			return nil, fmt.Errorf("migrations: apply %s: %w", name, err)
		}
	}
	return names, nil
}
