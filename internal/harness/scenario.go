package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance test: a playbook, the filesystem it runs
// against, and assertions over the resulting runs and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Playbook is the inline playbook document. It is re-encoded and fed
	// through the real playbook parser, so scenarios exercise the same
	// validation path as converge apply.
	Playbook yaml.Node `yaml:"playbook"`

	// Templates maps template IDs to inline template source.
	Templates map[string]string `yaml:"templates,omitempty"`

	// Filesystem seeds the in-memory filesystem before the first run.
	// Keys are absolute paths.
	Filesystem map[string]FileSeed `yaml:"filesystem,omitempty"`

	// FailPaths injects an I/O fault: every operation touching the path
	// fails with the given message.
	FailPaths map[string]string `yaml:"fail_paths,omitempty"`

	// Runs is how many times the playbook is applied. Defaults to 1.
	// Convergence scenarios use 2 to show the second run is a no-op.
	Runs int `yaml:"runs,omitempty"`

	// FailHandlers makes the named handlers fail with the given message.
	FailHandlers map[string]string `yaml:"fail_handlers,omitempty"`

	// CompileError, when set, declares that the playbook must fail to
	// parse or compile with this code (a validation code like E101 or a
	// run error code like RENDER_FAILURE). No runs execute; file
	// assertions still check that the seeded filesystem was not touched.
	CompileError string `yaml:"compile_error,omitempty"`

	// Assertions validate the recorded runs and the final filesystem.
	Assertions []Assertion `yaml:"assertions"`
}

// FileSeed describes one preexisting filesystem entry. Exactly one of
// Content, Dir, Symlink, or Irregular must be set.
type FileSeed struct {
	// Content seeds a regular file. An empty string is a valid empty file,
	// which is why this is a pointer.
	Content *string `yaml:"content,omitempty"`

	// Dir seeds a directory.
	Dir bool `yaml:"dir,omitempty"`

	// Symlink seeds a symbolic link to the given target.
	Symlink string `yaml:"symlink,omitempty"`

	// Irregular seeds a non-file, non-directory entry (device node, socket).
	Irregular bool `yaml:"irregular,omitempty"`

	// Mode is the octal mode string for Content seeds. Defaults to 0644.
	Mode string `yaml:"mode,omitempty"`
}

// Assertion validates one aspect of a scenario execution.
type Assertion struct {
	// Type selects the assertion:
	// - "changed": one run's change record for a path
	// - "dispatch_order": a run's full dispatch sequence
	// - "dispatch_count": total dispatches of a handler across all runs
	// - "file_content": final file content
	// - "file_absent": nothing exists at the path
	// - "run_error": a run failed with the given code
	Type string `yaml:"type"`

	// Run is the 1-based run number (used by changed, dispatch_order,
	// run_error). Defaults to 1.
	Run int `yaml:"run,omitempty"`

	// Path is the filesystem path (used by changed, file_content,
	// file_absent).
	Path string `yaml:"path,omitempty"`

	// Changed is the expected change flag (used by changed). A pointer so
	// that asserting "did not change" is explicit, not a missing field.
	Changed *bool `yaml:"changed,omitempty"`

	// Handlers is the expected dispatch sequence (used by dispatch_order).
	// An empty list asserts the run dispatched nothing.
	Handlers []string `yaml:"handlers,omitempty"`

	// Handler names a handler (used by dispatch_count).
	Handler string `yaml:"handler,omitempty"`

	// Count is the expected dispatch total (used by dispatch_count).
	// A pointer so that asserting zero dispatches is explicit.
	Count *int `yaml:"count,omitempty"`

	// Content is the expected file content (used by file_content).
	Content string `yaml:"content,omitempty"`

	// Code is the expected error code (used by run_error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertChanged       = "changed"
	AssertDispatchOrder = "dispatch_order"
	AssertDispatchCount = "dispatch_count"
	AssertFileContent   = "file_content"
	AssertFileAbsent    = "file_absent"
	AssertRunError      = "run_error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation (catches
// typos like "assertion:" vs "assertions:").
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if scenario.Runs == 0 {
		scenario.Runs = 1
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Playbook.IsZero() {
		return fmt.Errorf("playbook is required")
	}

	if s.Runs < 0 {
		return fmt.Errorf("runs must be non-negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for path, seed := range s.Filesystem {
		if err := validateSeed(&seed); err != nil {
			return fmt.Errorf("filesystem[%s]: %w", path, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, s); err != nil {
			return err
		}
	}

	return nil
}

// validateSeed checks that a filesystem seed declares exactly one entry kind.
func validateSeed(seed *FileSeed) error {
	kinds := 0
	if seed.Content != nil {
		kinds++
	}
	if seed.Dir {
		kinds++
	}
	if seed.Symlink != "" {
		kinds++
	}
	if seed.Irregular {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("exactly one of content, dir, symlink, irregular is required")
	}
	if seed.Mode != "" && seed.Content == nil {
		return fmt.Errorf("mode is only valid for content seeds")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, s *Scenario) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	// A scenario that expects a compile failure never runs, so run-scoped
	// assertions can only ever fail.
	runScoped := a.Type == AssertChanged || a.Type == AssertDispatchOrder ||
		a.Type == AssertDispatchCount || a.Type == AssertRunError
	if s.CompileError != "" && runScoped {
		return fmt.Errorf("assertions[%d]: %s assertion cannot be combined with compile_error", index, a.Type)
	}

	switch a.Type {
	case AssertChanged:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for changed", index)
		}
		if a.Changed == nil {
			return fmt.Errorf("assertions[%d]: changed is required for changed", index)
		}
	case AssertDispatchOrder:
		if a.Handlers == nil {
			return fmt.Errorf("assertions[%d]: handlers list is required for dispatch_order (use [] for none)", index)
		}
	case AssertDispatchCount:
		if a.Handler == "" {
			return fmt.Errorf("assertions[%d]: handler is required for dispatch_count", index)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for dispatch_count", index)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for dispatch_count", index)
		}
	case AssertFileContent:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for file_content", index)
		}
	case AssertFileAbsent:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for file_absent", index)
		}
	case AssertRunError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for run_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
