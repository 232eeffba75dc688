package store

import (
	"context"
	"fmt"
	"time"

	"github.com/converge-sh/converge/internal/engine"
)

// Run statuses as stored in the runs table.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// timeFormat is how timestamps are stored: RFC 3339 with nanoseconds, UTC.
// Lexicographic order of stored values matches time order.
const timeFormat = time.RFC3339Nano

// RunRecord is one run as persisted: the engine report plus the playbook
// identity the engine itself does not know.
type RunRecord struct {
	ID           string
	Playbook     string
	PlaybookHash string
	Mode         string
	Status       string
	Error        string
	Changed      int
	Failed       int
	Started      time.Time
	Finished     time.Time
	Changes      []ChangeRow
	Dispatches   []DispatchRow
}

// ChangeRow is one assertion's change record. Seq is the assertion index in
// declaration order.
type ChangeRow struct {
	Seq     int    `json:"seq"`
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Changed bool   `json:"changed"`
}

// DispatchRow is one handler invocation's outcome. Seq is the dispatch order.
type DispatchRow struct {
	Seq     int    `json:"seq"`
	Handler string `json:"handler"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// NewRunRecord builds a RunRecord from an engine report.
//
// runErr is the error returned by engine.Run alongside the report; a non-nil
// runErr marks the record failed and its message is preserved. The report may
// be partial (aborted run) - whatever it covers is what gets recorded.
func NewRunRecord(playbook, playbookHash string, report *engine.Report, runErr error) RunRecord {
	rec := RunRecord{
		ID:           report.RunID,
		Playbook:     playbook,
		PlaybookHash: playbookHash,
		Mode:         string(report.Mode),
		Status:       StatusOK,
		Changed:      report.ChangedCount(),
		Failed:       report.FailedDispatches(),
		Started:      report.Started,
		Finished:     report.Finished,
		Changes:      make([]ChangeRow, 0, len(report.Changes)),
		Dispatches:   make([]DispatchRow, 0, len(report.Dispatches)),
	}

	if runErr != nil {
		rec.Status = StatusFailed
		rec.Error = runErr.Error()
	}

	for _, c := range report.Changes {
		rec.Changes = append(rec.Changes, ChangeRow{
			Seq:     c.Index,
			Path:    c.Path,
			Kind:    string(c.Kind),
			Changed: c.Changed,
		})
	}

	for i, d := range report.Dispatches {
		row := DispatchRow{
			Seq:     i,
			Handler: d.Handler,
			OK:      d.OK(),
		}
		if d.Err != nil {
			row.Error = d.Err.Error()
		}
		rec.Dispatches = append(rec.Dispatches, row)
	}

	return rec
}

// RecordRun persists a run record in a single transaction.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency - recording the same run
// twice is a silent no-op, and a run row never exists without its change and
// dispatch rows.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, playbook, playbook_hash, mode, status, error, changed, failed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Playbook,
		rec.PlaybookHash,
		rec.Mode,
		rec.Status,
		rec.Error,
		rec.Changed,
		rec.Failed,
		rec.Started.UTC().Format(timeFormat),
		rec.Finished.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("record run: insert run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Run already recorded; its detail rows were written in the same
		// transaction back then, so there is nothing left to do.
		return tx.Commit()
	}

	for _, c := range rec.Changes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO changes (run_id, seq, path, kind, changed)
			VALUES (?, ?, ?, ?, ?)
		`, rec.ID, c.Seq, c.Path, c.Kind, c.Changed); err != nil {
			return fmt.Errorf("record run: insert change %d: %w", c.Seq, err)
		}
	}

	for _, d := range rec.Dispatches {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dispatches (run_id, seq, handler, ok, error)
			VALUES (?, ?, ?, ?, ?)
		`, rec.ID, d.Seq, d.Handler, d.OK, d.Error); err != nil {
			return fmt.Errorf("record run: insert dispatch %d: %w", d.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}

	return nil
}
