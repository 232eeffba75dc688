package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_RendersTemplateFile(t *testing.T) {
	dir := t.TempDir()
	src := "server_name {{.server_name}};\nlisten {{.port}};\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.conf.tmpl"), []byte(src), 0o644))

	out, err := Dir(dir).Render("site.conf.tmpl", map[string]any{
		"server_name": "example.org",
		"port":        443,
	})
	require.NoError(t, err)
	assert.Equal(t, "server_name example.org;\nlisten 443;\n", string(out))
}

func TestDir_MissingVariableFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.conf.tmpl"), []byte("{{.absent}}"), 0o644))

	_, err := Dir(dir).Render("site.conf.tmpl", map[string]any{"present": 1})
	require.Error(t, err)
	assert.ErrorContains(t, err, "absent")
}

func TestDir_UnknownTemplate(t *testing.T) {
	_, err := Dir(t.TempDir()).Render("nope.tmpl", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, `"nope.tmpl"`)
}

func TestDir_RejectsEscapingID(t *testing.T) {
	for _, id := range []string{"../etc/passwd", "/etc/passwd", ".."} {
		_, err := Dir(t.TempDir()).Render(id, nil)
		assert.Error(t, err, "id %q must be rejected", id)
	}
}

func TestMap_Render(t *testing.T) {
	m := Map{"greeting.tmpl": "hello {{.name}}\n"}

	out, err := m.Render("greeting.tmpl", map[string]any{"name": "ops"})
	require.NoError(t, err)
	assert.Equal(t, "hello ops\n", string(out))

	_, err = m.Render("other.tmpl", nil)
	assert.Error(t, err)
}

func TestString_PathTemplate(t *testing.T) {
	got, err := String("task[0].path", "/etc/nginx/sites-available/{{.site}}", map[string]any{"site": "blog"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/nginx/sites-available/blog", got)
}

func TestString_ParseErrorMentionsName(t *testing.T) {
	_, err := String("task[3].path", "{{.unclosed", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "task[3].path")
}

func TestRender_DeterministicForFixedInputs(t *testing.T) {
	m := Map{"t": "{{.a}}-{{.b}}"}
	vars := map[string]any{"a": "x", "b": "y"}

	first, err := m.Render("t", vars)
	require.NoError(t, err)
	second, err := m.Render("t", vars)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
