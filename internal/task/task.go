// Package task defines the declarative playbook model: an ordered list of
// file-state tasks, the handlers they may notify, and the validation and
// compilation steps that turn a playbook into engine assertions.
//
// Loading is a strict pipeline: structural validation against an embedded
// CUE schema (unknown fields and wrong shapes are rejected with positions),
// semantic validation of cross-field rules (collecting every error, not just
// the first), then compilation, which resolves all templates before the
// engine sees a single assertion.
package task

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// State selects what a task asserts about its path.
type State string

const (
	// StateTemplate asserts a file whose content is a rendered template.
	StateTemplate State = "template"
	// StateAbsent asserts that nothing exists at the path.
	StateAbsent State = "absent"
)

// Playbook is one declarative input document.
type Playbook struct {
	// Name labels the playbook in logs and run history.
	Name string `yaml:"name,omitempty"`

	// Vars are available to every task's templates. Task-level vars
	// shadow these.
	Vars map[string]any `yaml:"vars,omitempty"`

	// Tasks are evaluated strictly in declaration order.
	Tasks []Task `yaml:"tasks"`

	// Handlers define the commands behind notify names.
	Handlers []Handler `yaml:"handlers,omitempty"`
}

// Task is one desired-state claim.
type Task struct {
	Name string `yaml:"name"`

	// Path is the absolute target path. It may itself be a template;
	// it is rendered with the task's effective vars at compile time.
	Path string `yaml:"path"`

	State State `yaml:"state"`

	// Template names the content template for StateTemplate tasks.
	Template string `yaml:"template,omitempty"`

	// Mode is the octal file mode string ("0644"). Applied when the file
	// is written; defaults to 0644.
	Mode string `yaml:"mode,omitempty"`

	// Vars shadow the playbook vars for this task's templates.
	Vars map[string]any `yaml:"vars,omitempty"`

	// Notify lists handler names to run if this task changed something.
	Notify []string `yaml:"notify,omitempty"`
}

// Handler binds a notify name to a command.
type Handler struct {
	Name    string   `yaml:"name"`
	Command []string `yaml:"command"`
}

// Parse validates data structurally and semantically and decodes it into a
// Playbook. All validation errors are collected; the playbook is returned
// only when the list is empty.
func Parse(data []byte) (*Playbook, []ValidationError) {
	if errs := validateStructure(data); len(errs) > 0 {
		return nil, errs
	}

	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		// The schema pass accepts only well-formed documents, so this
		// is effectively unreachable; kept as a guard.
		return nil, []ValidationError{{
			Field:   "playbook",
			Message: fmt.Sprintf("decoding playbook: %v", err),
			Code:    ErrCodeGeneric,
		}}
	}

	if errs := validateSemantics(&pb); len(errs) > 0 {
		return nil, errs
	}
	return &pb, nil
}

// Load reads and parses a playbook file.
func Load(path string) (*Playbook, []ValidationError) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []ValidationError{{
			Field:   "playbook",
			Message: fmt.Sprintf("reading %s: %v", path, err),
			Code:    ErrCodeGeneric,
		}}
	}
	return Parse(data)
}
