package actors

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/abatement"
	"caseflow/apperr"
	"caseflow/test/infra"
	"caseflow/workflow"
)

// Tally counts workflow outcomes by error kind. Kind zero is success.
type Tally struct {
	mu     sync.Mutex
	counts map[apperr.Kind]int
}

func NewTally() *Tally {
	return &Tally{counts: make(map[apperr.Kind]int)}
}

func (t *Tally) Add(err error) {
	var k apperr.Kind
	if err != nil {
		k = apperr.KindOf(err)
	}
	t.mu.Lock()
	t.counts[k]++
	t.mu.Unlock()
}

func (t *Tally) Count(k apperr.Kind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[k]
}

func (t *Tally) Successes() int {
	return t.Count(0)
}

// Inspector repeatedly performs whatever inspection is currently scheduled on
// the fixture's case, racing the other inspectors for it. The case stays open
// so the loop always has a next inspection to fight over.
func Inspector(ctx context.Context, pool *pgxpool.Pool, orch *workflow.Orchestrator, f infra.Fixture, tally *Tally, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var inspectionID string
		err := pool.QueryRow(ctx, `SELECT id FROM inspections WHERE case_id = $1 AND status = 'SCHEDULED'`, f.CaseID).Scan(&inspectionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			// chaos may have cut this connection
			time.Sleep(20 * time.Millisecond)
			continue
		}
		_, err = orch.PerformInspection(ctx, f.AgencyID, f.CaseID, inspectionID, f.Inspector, f.FollowUpRequest(time.Now()))
		if ctx.Err() != nil {
			return nil
		}
		tally.Add(err)
		time.Sleep(time.Duration(5+rand.Intn(20)) * time.Millisecond)
	}
}

// StageReader previews the abatement stage while inspections land. Only
// internal failures caused by terminated backends are tolerated.
func StageReader(ctx context.Context, stages *abatement.Deriver, f infra.Fixture, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := stages.PreviewStage(ctx, f.AgencyID, f.CaseID)
		if err != nil && apperr.KindOf(err) != apperr.KindInternal && ctx.Err() == nil {
			return err
		}
		time.Sleep(time.Duration(20+rand.Intn(30)) * time.Millisecond)
	}
}

// OutboxWorker drains pending outbox messages with SKIP LOCKED and marks them
// processed, occasionally failing one to leave it for a retry.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		rows, err := tx.Query(ctx, `SELECT id FROM outbox WHERE status = 'pending' ORDER BY created_at FOR UPDATE SKIP LOCKED LIMIT 10`)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ids := make([]string, 0, 10)
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err == nil {
				ids = append(ids, id)
			}
		}
		rows.Close()
		for _, id := range ids {
			if rand.Intn(10) == 0 {
				_, _ = tx.Exec(ctx, `UPDATE outbox SET attempts = attempts + 1 WHERE id = $1`, id)
				continue
			}
			_, _ = tx.Exec(ctx, `UPDATE outbox SET status = 'processed', attempts = attempts + 1 WHERE id = $1`, id)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}
