package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/abatement"
	"caseflow/attachment"
	"caseflow/casefile"
	"caseflow/contact"
	"caseflow/db"
	"caseflow/disposition"
	"caseflow/history"
	"caseflow/inspection"
	"caseflow/note"
	"caseflow/notice"
	"caseflow/user"
	"caseflow/violation"
	"caseflow/workflow"
)

type services struct {
	pool   *pgxpool.Pool
	orch   *workflow.Orchestrator
	stages *abatement.Deriver
}

func openPool(ctx context.Context, rt *appEnv) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, rt.cfg.Database.URL, db.PoolOptions{
		MaxConns:        rt.cfg.Database.MaxConns,
		MaxConnIdleTime: rt.cfg.Database.MaxConnIdleTime,
		MaxConnLifetime: rt.cfg.Database.MaxConnLifetime,
	})
}

func buildServices(ctx context.Context, rt *appEnv) (*services, error) {
	loc, err := rt.cfg.Agency.Location()
	if err != nil {
		return nil, err
	}
	pool, err := openPool(ctx, rt)
	if err != nil {
		return nil, err
	}

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
		Scheduler:   inspection.NewScheduler(pool, nil, users).WithLocation(loc),
		Stages:      stages,
		Contacts:    contact.NewRepository(pool),
		Attachments: attachment.NewRepository(),
		Notes:       note.NewRepository(),
		Notices:     notice.NewService(nil, nil),
		History:     recorder,
		Assigner:    casefile.NewAssigner(nil, users, recorder),
		Metrics:     workflow.NewMetrics(rt.registry),
		Location:    loc,
	}).WithLogger(rt.logger)

	return &services{pool: pool, orch: orch, stages: stages}, nil
}
