package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/converge-sh/converge/internal/store"
)

// HistoryOptions holds flags for the history commands.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewHistoryCommand creates the history command and its show subcommand.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Long: `List runs recorded by apply and plan, newest first.

Reads the run history database written with --db. Use history show to
see one run in full, including its per-assertion changes and handler
dispatches.

Example:
  converge history --db /var/lib/converge/runs.db
  converge history -n 5
  converge history show 0198c0de-7c6c-7a30-b45e-bd1e2c9a1d8f`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(opts, cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite run history (or CONVERGE_DB)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", store.DefaultListLimit, "maximum number of runs to list")

	cmd.AddCommand(newHistoryShowCommand(opts))

	return cmd
}

func newHistoryShowCommand(opts *HistoryOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show one recorded run in full",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(opts, args[0], cmd)
		},
	}
}

func runHistoryList(opts *HistoryOptions, cmd *cobra.Command) error {
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

	st, err := openHistory(ctx, opts.Database)
	if err != nil {
		return err
	}
	defer closeHistory(st)

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	formatter.VerboseLog("Found %d run(s)", len(runs))

	if formatter.Format == "json" {
		return formatter.Success(runs)
	}
	return outputHistoryText(formatter.Writer, runs)
}

func runHistoryShow(opts *HistoryOptions, runID string, cmd *cobra.Command) error {
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

	st, err := openHistory(ctx, opts.Database)
	if err != nil {
		return err
	}
	defer closeHistory(st)

	detail, err := st.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
		}
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(detail)
	}
	return outputRunDetailText(formatter.Writer, detail)
}

// openHistory resolves the database path (flag first, then CONVERGE_DB) and
// opens it. History never creates a database: a missing path is a command
// error, not an empty listing.
func openHistory(ctx context.Context, database string) (*store.Store, error) {
	if database == "" {
		env, err := LoadEnv(ctx)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read environment", err)
		}
		database = env.Database
	}
	if database == "" {
		return nil, NewExitError(ExitCommandError, "no run history database: pass --db or set CONVERGE_DB")
	}
	if _, err := os.Stat(database); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", database), err)
	}

	st, err := store.Open(database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeHistory(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// outputHistoryText prints one line per run.
func outputHistoryText(w io.Writer, runs []store.RunSummary) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-5s  %-6s  %7s  %6s  %s\n",
		"RUN", "PLAYBOOK", "MODE", "STATUS", "CHANGED", "FAILED", "STARTED")
	for _, run := range runs {
		fmt.Fprintf(w, "%-36s  %-20s  %-5s  %-6s  %7d  %6d  %s\n",
			run.ID,
			truncate(run.Playbook, 20),
			run.Mode,
			run.Status,
			run.Changed,
			run.Failed,
			run.Started.UTC().Format(time.RFC3339),
		)
	}
	return nil
}

// outputRunDetailText prints one run in full.
func outputRunDetailText(w io.Writer, detail *store.RunDetail) error {
	glyph := "✓"
	if detail.Status != store.StatusOK {
		glyph = "✗"
	}
	fmt.Fprintf(w, "%s run %s (%s)\n", glyph, detail.ID, detail.Mode)
	fmt.Fprintf(w, "  playbook: %s (%s)\n", detail.Playbook, detail.PlaybookHash)
	fmt.Fprintf(w, "  started:  %s\n", detail.Started.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "  finished: %s\n", detail.Finished.UTC().Format(time.RFC3339Nano))
	if detail.Error != "" {
		fmt.Fprintf(w, "  error:    %s\n", detail.Error)
	}

	if len(detail.Changes) > 0 {
		fmt.Fprintln(w, "  changes:")
		for _, c := range detail.Changes {
			fmt.Fprintf(w, "    [%d] %-7s %-12s %s\n", c.Seq, changeWord(c.Changed), c.Kind, c.Path)
		}
	}

	if len(detail.Dispatches) > 0 {
		fmt.Fprintln(w, "  dispatches:")
		for _, d := range detail.Dispatches {
			if d.OK {
				fmt.Fprintf(w, "    ok     %s\n", d.Handler)
			} else {
				fmt.Fprintf(w, "    failed %s: %s\n", d.Handler, d.Error)
			}
		}
	}
	return nil
}

// truncate shortens s for fixed-width table output.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
