package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/converge-sh/converge/internal/dispatch"
	"github.com/converge-sh/converge/internal/engine"
	"github.com/converge-sh/converge/internal/fsprobe"
	"github.com/converge-sh/converge/internal/store"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Database  string
	Templates string

	// RunIDs allows overriding the run ID source (for testing).
	RunIDs engine.RunIDSource
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <playbook>",
		Short: "Show what apply would change, without changing it",
		Long: `Evaluate a playbook against the live filesystem without mutating it.

Every assertion probes the untouched filesystem, so a later assertion
never sees the would-be effect of an earlier one. The report marks each
assertion changed (apply would act) or ok, and lists the handlers apply
would notify. Nothing is dispatched.

Pending changes are not an error: plan exits 0 unless a probe fails.
With --db (or CONVERGE_DB), the plan run is recorded for history.

Example:
  converge plan site.yml
  converge plan --templates ./templates site.yml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run history (or CONVERGE_DB)")
	cmd.Flags().StringVar(&opts.Templates, "templates", "", "template directory (or CONVERGE_TEMPLATES; default: playbook's directory)")

	return cmd
}

func runPlan(opts *PlanOptions, path string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := LoadEnv(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read environment", err)
	}
	database := opts.Database
	if database == "" {
		database = env.Database
	}

	run, verrs, err := preparePlaybook(path, opts.Templates, env)
	if err != nil {
		return outputPrepareError(formatter, path, err)
	}
	if len(verrs) > 0 {
		return outputValidationErrors(formatter, path, verrs)
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Source{}
	}

	// Plan never dispatches; Discard satisfies the invoke dependency.
	eng := engine.New(fsprobe.OS{}, dispatch.Discard, engine.WithRunIDs(runIDs))
	report, runErr := eng.Plan(ctx, run.assertions)

	if database != "" {
		st, err := store.Open(database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		rec := store.NewRunRecord(run.name, run.hash, report, runErr)
		if recErr := st.RecordRun(ctx, rec); recErr != nil {
			slog.Error("failed to record run", "run_id", report.RunID, "error", recErr)
		}
	}

	failed := 0
	if runErr != nil {
		failed = 1
	}
	return outputRunReports(formatter, []RunReport{NewRunReport(run.name, report, runErr)}, failed)
}
