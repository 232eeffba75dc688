package engine

import (
	"crypto/sha256"
	"fmt"

	"github.com/converge-sh/converge/internal/fsprobe"
)

// evaluate probes one assertion's path and applies the minimal mutation that
// makes the assertion hold. It returns whether anything changed (or, in plan
// mode, whether anything would change).
//
// The probe is always fresh. A run never carries probe results between
// assertions: assertion N may have mutated the path assertion N+1 inspects.
func (e *Engine) evaluate(a Assertion, mode Mode) (bool, error) {
	state, err := e.fs.Stat(a.Path)
	if err != nil {
		return false, NewIOFailure(a.Path, err)
	}

	switch a.Kind {
	case KindAbsent:
		return e.evaluateAbsent(a, state, mode)
	case KindFileContent:
		return e.evaluateFileContent(a, state, mode)
	default:
		// Validate catches this before any probe; kept as a guard.
		return false, fmt.Errorf("unknown assertion kind %q", a.Kind)
	}
}

// evaluateAbsent removes whatever non-directory entry occupies the path.
// A directory is refused: recursive deletion is a different, more dangerous
// operation than this assertion claims.
func (e *Engine) evaluateAbsent(a Assertion, state fsprobe.State, mode Mode) (bool, error) {
	if !state.Exists {
		return false, nil
	}
	if state.Type == fsprobe.TypeDir {
		return false, NewUnsupportedPathType(a.Path, state.Type, a.Kind)
	}
	if mode == ModePlan {
		return true, nil
	}
	if err := e.fs.Remove(a.Path); err != nil {
		return false, NewIOFailure(a.Path, err)
	}
	return true, nil
}

// evaluateFileContent writes the asserted content unless a regular file with
// an identical content hash is already present. Anything other than a
// missing path or a regular file is refused: overwriting a directory is
// impossible and silently replacing a symlink would guess at intent.
func (e *Engine) evaluateFileContent(a Assertion, state fsprobe.State, mode Mode) (bool, error) {
	if state.Exists && state.Type != fsprobe.TypeFile {
		return false, NewUnsupportedPathType(a.Path, state.Type, a.Kind)
	}
	if state.Exists && state.SHA256 == sha256.Sum256(a.Content) {
		return false, nil
	}
	if mode == ModePlan {
		return true, nil
	}
	if err := e.fs.WriteFile(a.Path, a.Content, a.Mode); err != nil {
		return false, NewIOFailure(a.Path, err)
	}
	return true, nil
}
