package task

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/converge-sh/converge/internal/dispatch"
	"github.com/converge-sh/converge/internal/engine"
	"github.com/converge-sh/converge/internal/render"
)

// DefaultMode is applied to written files when a task sets no mode.
const DefaultMode fs.FileMode = 0o644

// Compile resolves a validated playbook into engine assertions.
//
// Every template is rendered here, paths included, before the engine sees
// anything: a render failure therefore aborts before the first mutation, and
// evaluation itself never renders. Assertions come back in task declaration
// order with notify names canonicalized.
func Compile(pb *Playbook, renderer render.Renderer) ([]engine.Assertion, error) {
	assertions := make([]engine.Assertion, 0, len(pb.Tasks))
	for i, t := range pb.Tasks {
		vars := effectiveVars(pb.Vars, t.Vars)

		pathID := fmt.Sprintf("tasks[%d].path", i)
		path, err := render.String(pathID, t.Path, vars)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", t.Name, engine.NewRenderFailure(pathID, err))
		}
		path = filepath.Clean(path)
		if !filepath.IsAbs(path) {
			return nil, fmt.Errorf("task %q: rendered path %q is not absolute", t.Name, path)
		}

		switch t.State {
		case StateAbsent:
			assertions = append(assertions, engine.Assertion{
				Kind:   engine.KindAbsent,
				Path:   path,
				Notify: canonicalNotify(t.Notify),
			})

		case StateTemplate:
			content, err := renderer.Render(t.Template, vars)
			if err != nil {
				return nil, fmt.Errorf("task %q: %w", t.Name, engine.NewRenderFailure(t.Template, err))
			}
			if content == nil {
				content = []byte{}
			}
			mode, err := parseMode(t.Mode)
			if err != nil {
				return nil, fmt.Errorf("task %q: %w", t.Name, err)
			}
			assertions = append(assertions, engine.Assertion{
				Kind:    engine.KindFileContent,
				Path:    path,
				Content: content,
				Mode:    mode,
				Notify:  canonicalNotify(t.Notify),
			})

		default:
			// Validation rejects unknown states; kept as a guard.
			return nil, fmt.Errorf("task %q: unknown state %q", t.Name, t.State)
		}
	}
	return assertions, nil
}

// Registry builds the dispatch registry for a validated playbook's handlers.
func Registry(pb *Playbook) (*dispatch.Registry, error) {
	r := dispatch.NewRegistry()
	for i, h := range pb.Handlers {
		if err := r.Register(h.Name, h.Command); err != nil {
			return nil, fmt.Errorf("handlers[%d]: %w", i, err)
		}
	}
	return r, nil
}

func canonicalNotify(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	canon := make([]string, len(names))
	for i, name := range names {
		canon[i] = dispatch.CanonicalName(name)
	}
	return canon
}

func parseMode(s string) (fs.FileMode, error) {
	if s == "" {
		return DefaultMode, nil
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file mode %q: %w", s, err)
	}
	return fs.FileMode(n) & fs.ModePerm, nil
}

// effectiveVars merges playbook vars with task vars, task winning. Neither
// input map is mutated.
func effectiveVars(global, local map[string]any) map[string]any {
	merged := make(map[string]any, len(global)+len(local))
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range local {
		merged[k] = v
	}
	return merged
}
