package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge-sh/converge/internal/store"
)

func execHistory(t *testing.T, rootOpts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// seedHistory creates a run history database and records recs into it.
func seedHistory(t *testing.T, recs ...store.RunRecord) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()

	for _, rec := range recs {
		require.NoError(t, st.RecordRun(context.Background(), rec))
	}
	return dbPath
}

func historyRecord(id string, started time.Time) store.RunRecord {
	return store.RunRecord{
		ID:           id,
		Playbook:     "web",
		PlaybookHash: "deadbeef",
		Mode:         "apply",
		Status:       store.StatusOK,
		Changed:      1,
		Started:      started,
		Finished:     started.Add(40 * time.Millisecond),
		Changes: []store.ChangeRow{
			{Seq: 0, Path: "/etc/web/web.conf", Kind: "file_content", Changed: true},
			{Seq: 1, Path: "/etc/web/legacy.conf", Kind: "absent", Changed: false},
		},
		Dispatches: []store.DispatchRow{
			{Seq: 0, Handler: "reload web", OK: true},
		},
	}
}

func TestHistoryEmptyDatabase(t *testing.T) {
	dbPath := seedHistory(t)

	output, err := execHistory(t, &RootOptions{Format: "text"}, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, output, "No runs recorded.")
}

func TestHistoryListsRunsNewestFirst(t *testing.T) {
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	dbPath := seedHistory(t,
		historyRecord("run-older", base),
		historyRecord("run-newer", base.Add(time.Minute)),
	)

	output, err := execHistory(t, &RootOptions{Format: "text"}, "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, output, "RUN")
	assert.Contains(t, output, "PLAYBOOK")
	assert.Contains(t, output, "STARTED")
	assert.Contains(t, output, "2026-08-25T10:00:00Z")

	newerAt := strings.Index(output, "run-newer")
	olderAt := strings.Index(output, "run-older")
	require.NotEqual(t, -1, newerAt)
	require.NotEqual(t, -1, olderAt)
	assert.Less(t, newerAt, olderAt)
}

func TestHistoryLimit(t *testing.T) {
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	dbPath := seedHistory(t,
		historyRecord("run-first", base),
		historyRecord("run-second", base.Add(time.Minute)),
		historyRecord("run-third", base.Add(2*time.Minute)),
	)

	output, err := execHistory(t, &RootOptions{Format: "text"}, "--db", dbPath, "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, output, "run-third")
	assert.NotContains(t, output, "run-second")
	assert.NotContains(t, output, "run-first")
}

func TestHistoryTruncatesLongPlaybookNames(t *testing.T) {
	rec := historyRecord("run-long", time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))
	rec.Playbook = "a-playbook-name-well-past-the-column"
	dbPath := seedHistory(t, rec)

	output, err := execHistory(t, &RootOptions{Format: "text"}, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, output, "a-playbook-name-w...")
}

func TestHistoryJSON(t *testing.T) {
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	dbPath := seedHistory(t,
		historyRecord("run-a", base),
		historyRecord("run-b", base.Add(time.Minute)),
	)

	output, err := execHistory(t, &RootOptions{Format: "json"}, "--db", dbPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)

	runs, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, runs, 2)
}

func TestHistoryShowRun(t *testing.T) {
	rec := historyRecord("run-detail", time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))
	dbPath := seedHistory(t, rec)

	output, err := execHistory(t, &RootOptions{Format: "text"}, "show", "run-detail", "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, output, "✓ run run-detail (apply)")
	assert.Contains(t, output, "playbook: web (deadbeef)")
	assert.Contains(t, output, "started:  2026-08-25T10:00:00Z")
	assert.Contains(t, output, "changes:")
	assert.Contains(t, output, "changed file_content /etc/web/web.conf")
	assert.Contains(t, output, "absent")
	assert.Contains(t, output, "dispatches:")
	assert.Contains(t, output, "ok     reload web")
}

func TestHistoryShowFailedRun(t *testing.T) {
	rec := historyRecord("run-failed", time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC))
	rec.Status = store.StatusFailed
	rec.Error = "IO_FAILURE: filesystem operation failed (path=/etc/web/web.conf)"
	rec.Dispatches = []store.DispatchRow{
		{Seq: 0, Handler: "reload web", OK: false, Error: "exit status 1"},
	}
	dbPath := seedHistory(t, rec)

	output, err := execHistory(t, &RootOptions{Format: "text"}, "show", "run-failed", "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, output, "✗ run run-failed (apply)")
	assert.Contains(t, output, "error:    IO_FAILURE")
	assert.Contains(t, output, "failed reload web: exit status 1")
}

func TestHistoryShowNotFound(t *testing.T) {
	dbPath := seedHistory(t)

	_, err := execHistory(t, &RootOptions{Format: "text"}, "show", "no-such-run", "--db", dbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: no-such-run")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistoryNoDatabaseConfigured(t *testing.T) {
	t.Setenv("CONVERGE_DB", "")

	_, err := execHistory(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run history database")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistoryDatabaseFileMissing(t *testing.T) {
	_, err := execHistory(t, &RootOptions{Format: "text"}, "--db", "/nonexistent/runs.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found: /nonexistent/runs.db")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistoryDatabaseFromEnv(t *testing.T) {
	dbPath := seedHistory(t, historyRecord("run-env", time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)))
	t.Setenv("CONVERGE_DB", dbPath)

	output, err := execHistory(t, &RootOptions{Format: "text"})
	require.NoError(t, err)
	assert.Contains(t, output, "run-env")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 20))
	assert.Equal(t, "exactly-twenty-chars", truncate("exactly-twenty-chars", 20))
	assert.Equal(t, "cut-here-and-stop...", truncate("cut-here-and-stop-right-there", 20))
	assert.Equal(t, "abc", truncate("abcdef", 3))
}
