package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/converge-sh/converge/internal/dispatch"
	"github.com/converge-sh/converge/internal/engine"
	"github.com/converge-sh/converge/internal/fsprobe"
	"github.com/converge-sh/converge/internal/render"
	"github.com/converge-sh/converge/internal/store"
	"github.com/converge-sh/converge/internal/task"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Database  string
	Templates string

	// RunIDs allows overriding the run ID source (for testing).
	// If nil, defaults to UUIDv7Source.
	RunIDs engine.RunIDSource
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <playbook>...",
		Short: "Converge the filesystem on playbook targets",
		Long: `Converge the local filesystem on the state the playbooks declare.

Every playbook is parsed, validated, and fully rendered before anything
runs, so a broken playbook means no playbook mutates the filesystem.
Playbooks then run concurrently, each as its own run: assertions in
declaration order, minimal writes, handlers notified at most once after
the last assertion.

With --db (or CONVERGE_DB), every run is recorded for converge history.

Example:
  converge apply site.yml
  converge apply --db /var/lib/converge/runs.db web.yml cache.yml
  converge apply --templates ./templates site.yml --verbose`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run history (or CONVERGE_DB)")
	cmd.Flags().StringVar(&opts.Templates, "templates", "", "template directory (or CONVERGE_TEMPLATES; default: playbook's directory)")

	return cmd
}

func runApply(opts *ApplyOptions, paths []string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	env, err := LoadEnv(parentCtx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read environment", err)
	}
	database := opts.Database
	if database == "" {
		database = env.Database
	}

	// Compile every playbook before the first probe. A playbook that fails
	// to parse or render must not leave a sibling half applied.
	runs := make([]*playbookRun, len(paths))
	for i, path := range paths {
		run, verrs, err := preparePlaybook(path, opts.Templates, env)
		if err != nil {
			return outputPrepareError(formatter, path, err)
		}
		if len(verrs) > 0 {
			return outputValidationErrors(formatter, path, verrs)
		}
		runs[i] = run
	}

	var st *store.Store
	if database != "" {
		slog.Info("opening run history", "path", database)
		st, err = store.Open(database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	// Setup signal handling for graceful shutdown. Cancellation is checked
	// between assertions, never mid-mutation.
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Source{}
	}

	// Playbooks are independent: one failed run must not cancel a sibling,
	// so run errors land in the report rather than the group.
	var g errgroup.Group
	for _, run := range runs {
		g.Go(func() error {
			eng := engine.New(fsprobe.OS{}, run.registry.Exec(), engine.WithRunIDs(runIDs))
			run.report, run.err = eng.Run(ctx, run.assertions)
			return nil
		})
	}
	_ = g.Wait()

	// Reports print and record in argument order regardless of which run
	// finished first.
	failed := 0
	reports := make([]RunReport, 0, len(runs))
	for _, run := range runs {
		if run.err != nil {
			failed++
		}
		reports = append(reports, NewRunReport(run.name, run.report, run.err))
		if st != nil {
			rec := store.NewRunRecord(run.name, run.hash, run.report, run.err)
			if recErr := st.RecordRun(ctx, rec); recErr != nil {
				slog.Error("failed to record run", "run_id", run.report.RunID, "error", recErr)
			}
		}
	}

	return outputRunReports(formatter, reports, failed)
}

// playbookRun carries one playbook through compile, run, and report.
type playbookRun struct {
	name       string
	hash       string
	assertions []engine.Assertion
	registry   *dispatch.Registry
	report     *engine.Report
	err        error
}

// preparePlaybook loads, validates, and compiles one playbook file. The
// template directory resolves flag first, then CONVERGE_TEMPLATES, then the
// playbook's own directory.
func preparePlaybook(path, templatesFlag string, env Env) (*playbookRun, []task.ValidationError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	pb, verrs := task.Parse(data)
	if len(verrs) > 0 {
		return nil, verrs, nil
	}

	dir := templatesFlag
	if dir == "" {
		dir = env.Templates
	}
	if dir == "" {
		dir = filepath.Dir(path)
	}

	assertions, err := task.Compile(pb, render.Dir(dir))
	if err != nil {
		return nil, nil, err
	}

	registry, err := task.Registry(pb)
	if err != nil {
		return nil, nil, err
	}

	name := pb.Name
	if name == "" {
		name = filepath.Base(path)
	}

	return &playbookRun{
		name:       name,
		hash:       task.Fingerprint(data),
		assertions: assertions,
		registry:   registry,
	}, nil, nil
}

// outputPrepareError maps a load or compile failure to the right exit code:
// unreadable files are command errors, render failures are run failures.
func outputPrepareError(formatter *OutputFormatter, path string, err error) error {
	if engine.IsRenderFailure(err) {
		_ = formatter.Error(string(engine.ErrCodeRenderFailure), fmt.Sprintf("%s: %v", path, err), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("compiling %s failed", path))
	}
	_ = formatter.Error(task.ErrCodeGeneric, fmt.Sprintf("%s: %v", path, err), nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", path), err)
}
