package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"caseflow/abatement"
	"caseflow/attachment"
	"caseflow/casefile"
	"caseflow/contact"
	"caseflow/disposition"
	"caseflow/history"
	"caseflow/inspection"
	"caseflow/note"
	"caseflow/notice"
	"caseflow/user"
	"caseflow/violation"
	"caseflow/workflow"
)

// Harness owns a migrated database for integration and stress tests.
type Harness struct {
	container *PGContainer
	pool      *pgxpool.Pool
	teardown  func(context.Context) error
	dsn       string
}

// NewHarness boots Postgres (or reuses CASEFLOW_TEST_DSN / overrideDSN) and
// applies the embedded migrations. A shared database gets an isolated schema.
func NewHarness(ctx context.Context, overrideDSN string) (*Harness, error) {
	c, dsn, err := StartPostgres16(ctx, overrideDSN)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	pool, teardown, err := ApplyMigrations(ctx, dsn, c.Shared())
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Harness{container: c, pool: pool, teardown: teardown, dsn: dsn}, nil
}

func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

func (h *Harness) DSN() string {
	return h.dsn
}

// Close drops the isolated schema, if any, and stops the container.
func (h *Harness) Close(ctx context.Context) error {
	if h.pool != nil {
		h.pool.Close()
	}
	var errs []string
	if h.teardown != nil {
		if err := h.teardown(ctx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := h.container.Terminate(ctx); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("harness close: %s", strings.Join(errs, "; "))
	}
	return nil
}

var resetTables = []string{
	"outbox",
	"case_history",
	"attachments",
	"contacts",
	"notices",
	"inspections",
	"notes",
	"violations",
	"config_notices",
	"dispositions",
	"cases",
	"users",
}

// Reset truncates every caseflow table.
func (h *Harness) Reset(ctx context.Context) error {
	_, err := h.pool.Exec(ctx, "TRUNCATE "+strings.Join(resetTables, ", ")+" RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("reset tables: %w", err)
	}
	return nil
}

// Services is the production object graph over a test pool.
type Services struct {
	Orchestrator *workflow.Orchestrator
	Stages       *abatement.Deriver
	Registry     *prometheus.Registry
}

// NewServices wires the workflow the same way the CLI does. A nil logger is
// replaced with a no-op logger.
func NewServices(pool *pgxpool.Pool, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	users := user.NewDirectory()
	recorder := history.NewRecorder()
	catalog := disposition.NewCatalog(pool, nil)
	stages := abatement.NewDeriver(pool, nil, catalog)

	orch := workflow.New(workflow.Deps{
		Pool:        pool,
		Cases:       casefile.NewRepository(),
		Details:     casefile.NewLoader(pool, nil, nil, nil, nil),
		Violations:  violation.NewLedger(nil),
		Catalog:     catalog,
		Scheduler:   inspection.NewScheduler(pool, nil, users),
		Stages:      stages,
		Contacts:    contact.NewRepository(pool),
		Attachments: attachment.NewRepository(),
		Notes:       note.NewRepository(),
		Notices:     notice.NewService(nil, nil),
		History:     recorder,
		Assigner:    casefile.NewAssigner(nil, users, recorder),
		Metrics:     workflow.NewMetrics(reg),
	}).WithLogger(logger)

	return &Services{Orchestrator: orch, Stages: stages, Registry: reg}
}
