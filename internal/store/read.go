package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by GetRun when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit bounds ListRuns when the caller passes limit <= 0.
const DefaultListLimit = 20

// RunSummary is one row of the history listing.
type RunSummary struct {
	ID           string    `json:"id"`
	Playbook     string    `json:"playbook"`
	PlaybookHash string    `json:"playbook_hash"`
	Mode         string    `json:"mode"`
	Status       string    `json:"status"`
	Changed      int       `json:"changed"`
	Failed       int       `json:"failed"`
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
}

// RunDetail is a full run: the summary plus its ordered change and dispatch
// rows and the run error, if any.
type RunDetail struct {
	RunSummary
	Error      string        `json:"error,omitempty"`
	Changes    []ChangeRow   `json:"changes"`
	Dispatches []DispatchRow `json:"dispatches"`
}

// ListRuns returns the most recent runs, newest first. Ties on started_at
// break by id descending, which for UUIDv7 ids is also newest first.
//
// Returns an empty slice (not nil) when the store has no runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, playbook, playbook_hash, mode, status, changed, failed, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		sum, err := scanRunSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if runs == nil {
		runs = []RunSummary{}
	}

	return runs, nil
}

// GetRun retrieves one run with its full change and dispatch detail.
// Returns ErrNotFound if no run has the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	var (
		detail            RunDetail
		started, finished string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, playbook, playbook_hash, mode, status, error, changed, failed, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id).Scan(
		&detail.ID, &detail.Playbook, &detail.PlaybookHash, &detail.Mode,
		&detail.Status, &detail.Error, &detail.Changed, &detail.Failed,
		&started, &finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	if detail.Started, err = parseStoredTime(started); err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	if detail.Finished, err = parseStoredTime(finished); err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	if detail.Changes, err = s.readChanges(ctx, id); err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	if detail.Dispatches, err = s.readDispatches(ctx, id); err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	return &detail, nil
}

// readChanges returns a run's change rows in declaration order.
func (s *Store) readChanges(ctx context.Context, runID string) ([]ChangeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, path, kind, changed
		FROM changes
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var changes []ChangeRow
	for rows.Next() {
		var c ChangeRow
		if err := rows.Scan(&c.Seq, &c.Path, &c.Kind, &c.Changed); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}

	if changes == nil {
		changes = []ChangeRow{}
	}

	return changes, nil
}

// readDispatches returns a run's dispatch rows in dispatch order.
func (s *Store) readDispatches(ctx context.Context, runID string) ([]DispatchRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, handler, ok, error
		FROM dispatches
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	var dispatches []DispatchRow
	for rows.Next() {
		var d DispatchRow
		if err := rows.Scan(&d.Seq, &d.Handler, &d.OK, &d.Error); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		dispatches = append(dispatches, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}

	if dispatches == nil {
		dispatches = []DispatchRow{}
	}

	return dispatches, nil
}

// scanRunSummary scans a runs row into a RunSummary.
func scanRunSummary(rows *sql.Rows) (RunSummary, error) {
	var (
		sum               RunSummary
		started, finished string
	)
	if err := rows.Scan(
		&sum.ID, &sum.Playbook, &sum.PlaybookHash, &sum.Mode, &sum.Status,
		&sum.Changed, &sum.Failed, &started, &finished,
	); err != nil {
		return RunSummary{}, fmt.Errorf("scan run: %w", err)
	}

	var err error
	if sum.Started, err = parseStoredTime(started); err != nil {
		return RunSummary{}, err
	}
	if sum.Finished, err = parseStoredTime(finished); err != nil {
		return RunSummary{}, err
	}

	return sum, nil
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}
