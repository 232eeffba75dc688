package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/converge-sh/converge/internal/dispatch"
	"github.com/converge-sh/converge/internal/fsprobe"
)

// RunIDSource generates unique run identifiers.
// Implemented by UUIDv7Source (production) and testutil.SeqSource (tests).
type RunIDSource interface {
	NewRunID() string
}

// Engine converges an ordered assertion list against one filesystem and
// dispatches the collected handlers through one invoke function.
//
// Engine itself holds no per-run state: the queue and change records live in
// the run, so a single Engine value may serve sequential or concurrent runs.
// Within one run, evaluation is strictly single-threaded in declaration
// order.
//
// INVARIANTS:
//   - The assertions slice order never changes once a run starts
//   - State is probed fresh per assertion, never cached across assertions
//   - Handlers are dispatched only after the last assertion completes
type Engine struct {
	fs     fsprobe.Filesystem
	invoke dispatch.Func
	runIDs RunIDSource
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunIDs overrides the run-ID source. Tests use a deterministic source
// so golden traces are stable.
func WithRunIDs(src RunIDSource) Option {
	return func(e *Engine) {
		e.runIDs = src
	}
}

// New creates an Engine that probes and mutates through fs and delivers
// handler notifications through invoke. Run IDs default to UUIDv7, which is
// time-sortable across runs.
func New(fs fsprobe.Filesystem, invoke dispatch.Func, opts ...Option) *Engine {
	e := &Engine{
		fs:     fs,
		invoke: invoke,
		runIDs: UUIDv7Source{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run converges the assertions in declaration order, applying mutations and
// dispatching collected handlers once at the end.
//
// The returned Report is non-nil even on error. On a probe or mutation
// failure the run aborts at the failing assertion: the report covers the
// assertions that completed, mutations already applied stay applied (each is
// independently atomic, there is no rollback), and nothing is dispatched.
// Handler failures do not abort dispatch of the remaining handlers; they are
// aggregated into the returned error after all outcomes are recorded.
//
// Cancellation is cooperative: ctx is checked between assertions and passed
// to handler commands, but a mutation in flight is never interrupted.
func (e *Engine) Run(ctx context.Context, assertions []Assertion) (*Report, error) {
	return e.converge(ctx, assertions, ModeApply)
}

// Plan evaluates the assertions without mutating anything. Changed flags in
// the report mean "an apply would change this"; Handlers lists the handlers
// that apply would notify. Nothing is dispatched.
//
// Plan probes the untouched filesystem for every assertion, so a later
// assertion does not observe the would-be effect of an earlier one.
func (e *Engine) Plan(ctx context.Context, assertions []Assertion) (*Report, error) {
	return e.converge(ctx, assertions, ModePlan)
}

func (e *Engine) converge(ctx context.Context, assertions []Assertion, mode Mode) (*Report, error) {
	report := &Report{
		RunID:   e.runIDs.NewRunID(),
		Mode:    mode,
		Started: time.Now(),
	}

	// All assertions are validated before the first probe so a malformed
	// list can never half-apply.
	for i, a := range assertions {
		if err := a.Validate(); err != nil {
			report.Finished = time.Now()
			return report, fmt.Errorf("assertion %d: %w", i, err)
		}
	}

	slog.Debug("run starting",
		"run_id", report.RunID,
		"mode", mode,
		"assertions", len(assertions),
	)

	queue := newHandlerQueue()
	for i, a := range assertions {
		// Cooperative cancellation checkpoint. Never fires mid-mutation.
		if err := ctx.Err(); err != nil {
			report.Finished = time.Now()
			return report, fmt.Errorf("run %s cancelled before assertion %d: %w", report.RunID, i, err)
		}

		changed, err := e.evaluate(a, mode)
		if err != nil {
			slog.Error("assertion failed",
				"run_id", report.RunID,
				"index", i,
				"path", a.Path,
				"kind", a.Kind,
				"error", err,
			)
			report.Finished = time.Now()
			return report, err
		}

		report.Changes = append(report.Changes, ChangeRecord{
			Index:   i,
			Path:    a.Path,
			Kind:    a.Kind,
			Changed: changed,
		})

		if changed {
			slog.Debug("assertion changed state",
				"run_id", report.RunID,
				"index", i,
				"path", a.Path,
				"kind", a.Kind,
			)
			for _, name := range a.Notify {
				if queue.Add(name) {
					slog.Debug("handler queued",
						"run_id", report.RunID,
						"handler", dispatch.CanonicalName(name),
						"trigger", a.Path,
					)
				}
			}
		}
	}

	report.Handlers = queue.Drain()

	if mode == ModePlan {
		report.Finished = time.Now()
		slog.Debug("plan complete",
			"run_id", report.RunID,
			"changed", report.ChangedCount(),
			"would_notify", len(report.Handlers),
		)
		return report, nil
	}

	report.Dispatches = dispatch.Run(ctx, report.Handlers, e.invoke)
	report.Finished = time.Now()

	var errs []error
	for _, outcome := range report.Dispatches {
		if outcome.Err != nil {
			errs = append(errs, NewHandlerFailure(outcome.Handler, outcome.Err))
		}
	}

	slog.Info("run complete",
		"run_id", report.RunID,
		"assertions", len(report.Changes),
		"changed", report.ChangedCount(),
		"dispatched", len(report.Dispatches),
		"failed_dispatches", len(errs),
	)

	if len(errs) > 0 {
		return report, errors.Join(errs...)
	}
	return report, nil
}
