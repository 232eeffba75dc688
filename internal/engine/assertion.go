package engine

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// AssertionKind discriminates what an assertion claims about its path.
type AssertionKind string

const (
	// KindAbsent asserts that nothing exists at the path.
	KindAbsent AssertionKind = "absent"
	// KindFileContent asserts that a regular file with exactly the given
	// content exists at the path.
	KindFileContent AssertionKind = "file_content"
)

// Assertion is one desired-state claim about a filesystem path. Assertions
// are immutable once a run starts; compilation resolves all templates before
// the engine sees them, so evaluation never renders anything.
type Assertion struct {
	// Kind selects the claim.
	Kind AssertionKind

	// Path is the absolute target path.
	Path string

	// Content is the full desired file content. Non-nil iff Kind is
	// KindFileContent; empty files use a non-nil zero-length slice.
	Content []byte

	// Mode is applied when the file is written. Ignored for KindAbsent.
	// A content match never triggers a mode fixup; change detection is by
	// content hash alone.
	Mode fs.FileMode

	// Notify lists handler names to enqueue when this assertion changes
	// something. Order within one assertion is preserved on first insertion.
	Notify []string
}

// Validate checks the structural invariants an assertion must satisfy before
// a run. Compilation establishes these; Validate guards direct engine users.
func (a Assertion) Validate() error {
	if a.Path == "" {
		return fmt.Errorf("assertion path must not be empty")
	}
	if !filepath.IsAbs(a.Path) {
		return fmt.Errorf("assertion path %q must be absolute", a.Path)
	}
	switch a.Kind {
	case KindAbsent:
		if a.Content != nil {
			return fmt.Errorf("absent assertion for %q must not carry content", a.Path)
		}
	case KindFileContent:
		if a.Content == nil {
			return fmt.Errorf("file content assertion for %q must carry content (use empty, not nil)", a.Path)
		}
		if a.Mode == 0 {
			return fmt.Errorf("file content assertion for %q must carry a file mode", a.Path)
		}
	default:
		return fmt.Errorf("unknown assertion kind %q", a.Kind)
	}
	for _, name := range a.Notify {
		if name == "" {
			return fmt.Errorf("assertion for %q has an empty notify name", a.Path)
		}
	}
	return nil
}
