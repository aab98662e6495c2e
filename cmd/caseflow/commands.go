package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"caseflow/migrations"
	"caseflow/workflow"
)

type caseFlags struct {
	agencyID string
	caseID   string
	userID   string
}

func (f *caseFlags) bind(cmd *cobra.Command, withUser bool) {
	cmd.Flags().StringVar(&f.agencyID, "agency", "", "Agency id")
	cmd.Flags().StringVar(&f.caseID, "case", "", "Case id")
	_ = cmd.MarkFlagRequired("agency")
	_ = cmd.MarkFlagRequired("case")
	if withUser {
		cmd.Flags().StringVar(&f.userID, "user", "", "Acting user id")
		_ = cmd.MarkFlagRequired("user")
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := envFrom(cmd.Context())
			pool, err := openPool(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := migrations.Apply(cmd.Context(), pool)
			if err != nil {
				return err
			}
			rt.logger.Info("migrations applied", zap.Strings("files", applied))
			return nil
		},
	}
}

func newPerformInspectionCmd() *cobra.Command {
	var (
		flags        caseFlags
		inspectionID string
		requestPath  string
	)

	cmd := &cobra.Command{
		Use:   "perform-inspection",
		Short: "Complete a case's scheduled inspection from a JSON request",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req workflow.PerformInspectionRequest
			if err := decodeRequestFile(requestPath, cmd.InOrStdin(), &req); err != nil {
				return err
			}

			rt := envFrom(cmd.Context())
			svc, err := buildServices(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer svc.pool.Close()

			return serveMetrics(rt, func() error {
				detail, err := svc.orch.PerformInspection(cmd.Context(), flags.agencyID, flags.caseID, inspectionID, flags.userID, req)
				if err != nil {
					return userError(err)
				}
				return writeJSON(cmd.OutOrStdout(), detail)
			})
		},
	}

	flags.bind(cmd, true)
	cmd.Flags().StringVar(&inspectionID, "inspection", "", "Inspection id to perform")
	cmd.Flags().StringVar(&requestPath, "request", "-", "Path to the JSON request, - for stdin")
	_ = cmd.MarkFlagRequired("inspection")
	return cmd
}

func newReopenCaseCmd() *cobra.Command {
	var (
		flags       caseFlags
		requestPath string
	)

	cmd := &cobra.Command{
		Use:   "reopen-case",
		Short: "Reopen a closed case from a JSON request",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req workflow.ReopenCaseRequest
			if err := decodeRequestFile(requestPath, cmd.InOrStdin(), &req); err != nil {
				return err
			}

			rt := envFrom(cmd.Context())
			svc, err := buildServices(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer svc.pool.Close()

			return serveMetrics(rt, func() error {
				detail, err := svc.orch.ReopenCase(cmd.Context(), flags.agencyID, flags.caseID, flags.userID, req)
				if err != nil {
					return userError(err)
				}
				return writeJSON(cmd.OutOrStdout(), detail)
			})
		},
	}

	flags.bind(cmd, true)
	cmd.Flags().StringVar(&requestPath, "request", "-", "Path to the JSON request, - for stdin")
	return cmd
}

func newStageCmd() *cobra.Command {
	var flags caseFlags

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Print the abatement stage a case would show now",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := envFrom(cmd.Context())
			svc, err := buildServices(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer svc.pool.Close()

			stage, err := svc.stages.PreviewStage(cmd.Context(), flags.agencyID, flags.caseID)
			if err != nil {
				return userError(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), stage)
			return nil
		},
	}

	flags.bind(cmd, false)
	return cmd
}

func decodeRequestFile(path string, stdin io.Reader, into any) error {
	r := stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
