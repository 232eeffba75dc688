// Package render resolves templates to concrete bytes before a run starts.
// Rendering is deterministic for fixed inputs and fails on any unresolved
// variable, so a bad template can never half-apply: compilation stops before
// the first mutation.
package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Renderer resolves a template ID and a variable set to final content.
type Renderer interface {
	Render(id string, vars map[string]any) ([]byte, error)
}

// Dir is a Renderer over a directory of template files. The template ID is
// the file name relative to the directory; IDs that escape the directory are
// rejected.
type Dir string

// Render implements Renderer.
func (d Dir) Render(id string, vars map[string]any) ([]byte, error) {
	if !filepath.IsLocal(id) {
		return nil, fmt.Errorf("template %q: id must stay inside the template directory", id)
	}
	src, err := os.ReadFile(filepath.Join(string(d), id))
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", id, err)
	}
	return execute(id, string(src), vars)
}

// Map is an in-memory Renderer keyed by template ID. Tests and the
// conformance harness use it to carry template sources inline.
type Map map[string]string

// Render implements Renderer.
func (m Map) Render(id string, vars map[string]any) ([]byte, error) {
	src, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("template %q: not found", id)
	}
	return execute(id, src, vars)
}

// String renders an inline template source, used for templated task paths.
// The name only labels error messages.
func String(name, src string, vars map[string]any) (string, error) {
	out, err := execute(name, src, vars)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func execute(name, src string, vars map[string]any) ([]byte, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}
