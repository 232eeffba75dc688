// Package fsprobe abstracts the filesystem surface the convergence engine
// touches: probing current state and applying the two mutations the engine is
// allowed to make (atomic full-content writes and single-path removals).
//
// The engine never reaches for the os package directly. Everything goes
// through the Filesystem capability so that tests and the conformance harness
// can substitute an in-memory implementation and the engine stays a pure
// function of (assertions, probe results).
package fsprobe

import "io/fs"

// PathType classifies what a probed path currently is.
type PathType int

const (
	// TypeNone means the path does not exist.
	TypeNone PathType = iota
	// TypeFile is a regular file.
	TypeFile
	// TypeDir is a directory.
	TypeDir
	// TypeSymlink is a symbolic link (the link itself, not its target).
	TypeSymlink
	// TypeIrregular is anything else: device node, socket, FIFO.
	TypeIrregular
)

// String returns the lowercase name used in logs and error messages.
func (t PathType) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeFile:
		return "file"
	case TypeDir:
		return "directory"
	case TypeSymlink:
		return "symlink"
	case TypeIrregular:
		return "irregular"
	default:
		return "unknown"
	}
}

// State is the result of probing one path. It is recomputed fresh for every
// assertion: an earlier assertion may have mutated a path a later one
// inspects, so nothing is cached across evaluations.
type State struct {
	// Exists reports whether anything is present at the path.
	Exists bool
	// Type classifies the entry. TypeNone iff Exists is false.
	Type PathType
	// Size is the entry size in bytes (regular files only).
	Size int64
	// SHA256 is the content digest. Only populated for regular files;
	// zero otherwise.
	SHA256 [32]byte
}

// Filesystem is the probe-and-mutate capability consumed by the engine.
//
// Stat uses link semantics (a symlink is reported as a symlink, never
// followed). Stat on a missing path returns a zero State and a nil error;
// errors are reserved for genuine I/O failures.
//
// WriteFile must be atomic: a concurrent reader observes either the prior
// content or the full new content, never a torn write.
type Filesystem interface {
	Stat(path string) (State, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, mode fs.FileMode) error
	Remove(path string) error
}
