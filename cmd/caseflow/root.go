package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"caseflow/apperr"
	"caseflow/config"
	"caseflow/logging"
)

type appKey struct{}

// appEnv is what every subcommand shares once configuration is loaded.
type appEnv struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "caseflow",
		Short:        "Code-enforcement case workflow",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			rt := &appEnv{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, rt))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (env: CASEFLOW_*)")

	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newPerformInspectionCmd())
	cmd.AddCommand(newReopenCaseCmd())
	cmd.AddCommand(newStageCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	return cmd
}

func envFrom(ctx context.Context) *appEnv {
	rt, _ := ctx.Value(appKey{}).(*appEnv)
	return rt
}

// serveMetrics exposes the registry while fn runs when metrics.addr is set.
func serveMetrics(rt *appEnv, fn func() error) error {
	if rt.cfg.Metrics.Addr == "" {
		return fn()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: rt.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server", zap.Error(err))
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	return fn()
}

// userError hides internal causes from command output.
func userError(err error) error {
	if err == nil {
		return nil
	}
	kind := apperr.KindOf(err)
	if kind == 0 {
		return err
	}
	return fmt.Errorf("%s: %s", kind, apperr.PublicMessage(err))
}
