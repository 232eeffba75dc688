package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a store backed by a temp-dir database.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testRunRecord creates a run record with one changed assertion and one
// successful dispatch. started controls ordering in listing tests.
func testRunRecord(id string, started time.Time) RunRecord {
	return RunRecord{
		ID:           id,
		Playbook:     "site.yml",
		PlaybookHash: "sha256:feedface",
		Mode:         "apply",
		Status:       StatusOK,
		Changed:      1,
		Failed:       0,
		Started:      started,
		Finished:     started.Add(50 * time.Millisecond),
		Changes: []ChangeRow{
			{Seq: 0, Path: "/etc/app.conf", Kind: "file_content", Changed: true},
			{Seq: 1, Path: "/etc/app.bak", Kind: "absent", Changed: false},
		},
		Dispatches: []DispatchRow{
			{Seq: 0, Handler: "reload app", OK: true},
		},
	}
}
