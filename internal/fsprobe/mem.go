package fsprobe

import (
	"crypto/sha256"
	"io/fs"
	"sync"
)

type memEntry struct {
	typ     PathType
	content []byte
	target  string
	mode    fs.FileMode
}

// OpCounts tallies how many times each Filesystem operation ran. Engine tests
// use it to show that an unchanged assertion costs exactly one probe and no
// mutations.
type OpCounts struct {
	Stats   int
	Reads   int
	Writes  int
	Removes int
}

// Mem is an in-memory Filesystem for tests and the conformance harness. It
// is a flat path map, not a tree: parent directories are neither required nor
// created, and removal policy is left entirely to the engine.
//
// Use NewMem, then the Seed* methods to set up preexisting state.
type Mem struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	fail    map[string]error
	ops     OpCounts
}

// NewMem returns an empty in-memory filesystem.
func NewMem() *Mem {
	return &Mem{
		entries: make(map[string]*memEntry),
		fail:    make(map[string]error),
	}
}

// SeedFile places a regular file at path.
func (m *Mem) SeedFile(path string, content []byte, mode fs.FileMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[path] = &memEntry{typ: TypeFile, content: append([]byte(nil), content...), mode: mode}
}

// SeedDir places a directory at path.
func (m *Mem) SeedDir(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[path] = &memEntry{typ: TypeDir}
}

// SeedSymlink places a symbolic link at path.
func (m *Mem) SeedSymlink(path, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[path] = &memEntry{typ: TypeSymlink, target: target}
}

// SeedIrregular places a non-file, non-directory, non-symlink entry at path,
// standing in for device nodes and sockets.
func (m *Mem) SeedIrregular(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[path] = &memEntry{typ: TypeIrregular}
}

// FailPath makes every subsequent operation touching path return err,
// simulating an I/O fault on that entry.
func (m *Mem) FailPath(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[path] = err
}

// Ops returns a snapshot of the operation counters.
func (m *Mem) Ops() OpCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ops
}

// Mode reports the mode a file was last written or seeded with.
func (m *Mem) Mode(path string) (fs.FileMode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[path]
	if !ok || e.typ != TypeFile {
		return 0, false
	}
	return e.mode, true
}

// Stat implements Filesystem.
func (m *Mem) Stat(path string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops.Stats++
	if err := m.fail[path]; err != nil {
		return State{}, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	e, ok := m.entries[path]
	if !ok {
		return State{}, nil
	}
	st := State{Exists: true, Type: e.typ}
	if e.typ == TypeFile {
		st.Size = int64(len(e.content))
		st.SHA256 = sha256.Sum256(e.content)
	}
	return st, nil
}

// ReadFile implements Filesystem.
func (m *Mem) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops.Reads++
	if err := m.fail[path]; err != nil {
		return nil, &fs.PathError{Op: "read", Path: path, Err: err}
	}
	e, ok := m.entries[path]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	if e.typ != TypeFile {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrInvalid}
	}
	return append([]byte(nil), e.content...), nil
}

// WriteFile implements Filesystem. Like a rename-over-target, it replaces
// whatever entry is present; guarding directories and symlinks is the
// engine's job, not the filesystem's.
func (m *Mem) WriteFile(path string, data []byte, mode fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops.Writes++
	if err := m.fail[path]; err != nil {
		return &fs.PathError{Op: "write", Path: path, Err: err}
	}
	m.entries[path] = &memEntry{typ: TypeFile, content: append([]byte(nil), data...), mode: mode}
	return nil
}

// Remove implements Filesystem.
func (m *Mem) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops.Removes++
	if err := m.fail[path]; err != nil {
		return &fs.PathError{Op: "remove", Path: path, Err: err}
	}
	if _, ok := m.entries[path]; !ok {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	delete(m.entries, path)
	return nil
}
