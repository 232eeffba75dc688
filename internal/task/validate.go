package task

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/converge-sh/converge/internal/dispatch"
)

// Validation error codes.
const (
	// General errors (E00x)
	ErrCodeGeneric = "E001" // unreadable input, decode failure
	ErrCodeSchema  = "E002" // structural schema violation

	// Task errors (E101-E109)
	ErrCodeMissingTemplate   = "E101" // state=template requires template
	ErrCodeTemplateForbidden = "E102" // state=absent forbids template
	ErrCodeUnknownNotify     = "E104" // notify names no defined handler
	ErrCodePathNotAbsolute   = "E105" // non-templated path must be absolute
	ErrCodeModeForbidden     = "E106" // state=absent forbids mode

	// Handler errors (E110-E119)
	ErrCodeDuplicateHandler = "E110" // two handlers share a canonical name
)

// ValidationError represents one playbook validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

//go:embed schema.cue
var schemaSource string

// playbookSchema compiles the embedded schema once. The schema ships inside
// the binary, so a compile failure is a build defect, surfaced as E002 on
// every validation rather than a panic.
var playbookSchema = sync.OnceValues(func() (cue.Value, error) {
	v := cuecontext.New().CompileString(schemaSource)
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compiling playbook schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Playbook"))
	if err := def.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("looking up #Playbook: %w", err)
	}
	return def, nil
})

// validateStructure checks raw playbook YAML against the embedded CUE
// schema. Definitions are closed, so unknown fields fail here with the
// offending position. All schema errors are collected.
func validateStructure(data []byte) []ValidationError {
	schema, err := playbookSchema()
	if err != nil {
		return []ValidationError{{
			Field:   "schema",
			Message: err.Error(),
			Code:    ErrCodeSchema,
		}}
	}

	if err := cueyaml.Validate(data, schema); err != nil {
		var errs []ValidationError
		for _, e := range cueerrors.Errors(err) {
			format, args := e.Msg()
			ve := ValidationError{
				Field:   strings.Join(e.Path(), "."),
				Message: fmt.Sprintf(format, args...),
				Code:    ErrCodeSchema,
			}
			if pos := e.Position(); pos.IsValid() {
				ve.Line = pos.Line()
			}
			errs = append(errs, ve)
		}
		return errs
	}
	return nil
}

// validateSemantics checks cross-field rules the structural schema cannot
// express. Returns all errors found (does not fail-fast).
func validateSemantics(pb *Playbook) []ValidationError {
	var errs []ValidationError

	// Handler names are compared canonically so two spellings of the same
	// name cannot define two handlers that dedup as one at dispatch.
	handlers := make(map[string]struct{}, len(pb.Handlers))
	for i, h := range pb.Handlers {
		canon := dispatch.CanonicalName(h.Name)
		if _, dup := handlers[canon]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("handlers[%d].name", i),
				Message: fmt.Sprintf("duplicate handler name: %q", h.Name),
				Code:    ErrCodeDuplicateHandler,
			})
		}
		handlers[canon] = struct{}{}
	}

	for i, t := range pb.Tasks {
		switch t.State {
		case StateTemplate:
			if t.Template == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("tasks[%d].template", i),
					Message: fmt.Sprintf("task %q with state %q requires a template", t.Name, StateTemplate),
					Code:    ErrCodeMissingTemplate,
				})
			}
		case StateAbsent:
			if t.Template != "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("tasks[%d].template", i),
					Message: fmt.Sprintf("task %q with state %q must not name a template", t.Name, StateAbsent),
					Code:    ErrCodeTemplateForbidden,
				})
			}
			if t.Mode != "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("tasks[%d].mode", i),
					Message: fmt.Sprintf("task %q with state %q must not set a mode", t.Name, StateAbsent),
					Code:    ErrCodeModeForbidden,
				})
			}
		}

		// Templated paths are checked after rendering, at compile time.
		if !strings.Contains(t.Path, "{{") && !strings.HasPrefix(t.Path, "/") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tasks[%d].path", i),
				Message: fmt.Sprintf("path %q must be absolute", t.Path),
				Code:    ErrCodePathNotAbsolute,
			})
		}

		for j, name := range t.Notify {
			if _, ok := handlers[dispatch.CanonicalName(name)]; !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("tasks[%d].notify[%d]", i, j),
					Message: fmt.Sprintf("notify target %q names no defined handler", name),
					Code:    ErrCodeUnknownNotify,
				})
			}
		}
	}

	return errs
}
