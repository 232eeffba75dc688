package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioYAML wraps an assertions block into a minimal valid scenario.
func scenarioYAML(assertionYAML string) string {
	return `
name: test
description: Test scenario
playbook:
  tasks:
    - name: write
      path: /etc/demo.conf
      state: template
      template: demo.tmpl
templates:
  demo.tmpl: "demo\n"
assertions:
` + assertionYAML
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "test.yaml")

	content := `
name: test_scenario
description: "Scenario for loader validation"
playbook:
  name: demo
  tasks:
    - name: write file
      path: /etc/demo.conf
      state: template
      template: demo.tmpl
      notify:
        - reload demo
  handlers:
    - name: reload demo
      command: [systemctl, reload, demo]
templates:
  demo.tmpl: "demo\n"
filesystem:
  /etc/old.conf:
    content: "old\n"
runs: 2
assertions:
  - type: changed
    run: 1
    path: /etc/demo.conf
    changed: true
  - type: file_content
    path: /etc/demo.conf
    content: "demo\n"
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Scenario for loader validation", scenario.Description)
	assert.False(t, scenario.Playbook.IsZero())
	assert.Equal(t, "demo\n", scenario.Templates["demo.tmpl"])
	assert.Equal(t, 2, scenario.Runs)
	assert.Len(t, scenario.Assertions, 2)

	seed, ok := scenario.Filesystem["/etc/old.conf"]
	require.True(t, ok)
	require.NotNil(t, seed.Content)
	assert.Equal(t, "old\n", *seed.Content)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_MalformedYAML(t *testing.T) {
	_, err := ParseScenario([]byte("name: test\nunclosed: [bracket"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_UnknownFieldsRejected(t *testing.T) {
	// Typos must be rejected, not silently ignored.
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "typo_assertion_singular",
			yaml: `
name: test
description: Test typo
playbook:
  tasks: []
assertion:
  - type: file_absent
    path: /etc/x
assertions:
  - type: file_absent
    path: /etc/x
`,
			wantErr: "field assertion not found",
		},
		{
			name: "typo_in_assertion",
			yaml: scenarioYAML(`
  - type: file_absent
    pth: /etc/x
`),
			wantErr: "field pth not found",
		},
		{
			name: "unknown_top_level_field",
			yaml: `
name: test
description: Test typo
playbook:
  tasks: []
repeat: 2
assertions:
  - type: file_absent
    path: /etc/x
`,
			wantErr: "field repeat not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_MissingName(t *testing.T) {
	content := `
description: Missing name
playbook:
  tasks: []
assertions:
  - type: file_absent
    path: /etc/x
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestParseScenario_MissingDescription(t *testing.T) {
	content := `
name: test
playbook:
  tasks: []
assertions:
  - type: file_absent
    path: /etc/x
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")
}

func TestParseScenario_MissingPlaybook(t *testing.T) {
	content := `
name: test
description: Test
assertions:
  - type: file_absent
    path: /etc/x
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "playbook is required")
}

func TestParseScenario_MissingAssertions(t *testing.T) {
	content := `
name: test
description: Test
playbook:
  tasks: []
assertions: []
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertions list is required")
}

func TestParseScenario_RunsDefault(t *testing.T) {
	scenario, err := ParseScenario([]byte(scenarioYAML(`
  - type: file_absent
    path: /etc/x
`)))
	require.NoError(t, err)
	assert.Equal(t, 1, scenario.Runs)
}

func TestParseScenario_NegativeRunsRejected(t *testing.T) {
	content := `
name: test
description: Test
playbook:
  tasks: []
runs: -1
assertions:
  - type: file_absent
    path: /etc/x
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runs must be non-negative")
}

func TestParseScenario_AssertionTypes(t *testing.T) {
	tests := []struct {
		name          string
		assertionYAML string
		wantErr       string
	}{
		{
			name: "changed_valid",
			assertionYAML: `
  - type: changed
    path: /etc/demo.conf
    changed: true
`,
			wantErr: "",
		},
		{
			name: "changed_false_valid",
			assertionYAML: `
  - type: changed
    path: /etc/demo.conf
    changed: false
`,
			wantErr: "",
		},
		{
			name: "changed_missing_path",
			assertionYAML: `
  - type: changed
    changed: true
`,
			wantErr: "path is required for changed",
		},
		{
			name: "changed_missing_flag",
			assertionYAML: `
  - type: changed
    path: /etc/demo.conf
`,
			wantErr: "changed is required for changed",
		},
		{
			name: "dispatch_order_valid",
			assertionYAML: `
  - type: dispatch_order
    handlers:
      - reload demo
`,
			wantErr: "",
		},
		{
			name: "dispatch_order_empty_valid",
			assertionYAML: `
  - type: dispatch_order
    handlers: []
`,
			wantErr: "",
		},
		{
			name: "dispatch_order_missing_handlers",
			assertionYAML: `
  - type: dispatch_order
    run: 1
`,
			wantErr: "handlers list is required for dispatch_order",
		},
		{
			name: "dispatch_count_valid",
			assertionYAML: `
  - type: dispatch_count
    handler: reload demo
    count: 1
`,
			wantErr: "",
		},
		{
			name: "dispatch_count_zero_valid",
			assertionYAML: `
  - type: dispatch_count
    handler: reload demo
    count: 0
`,
			wantErr: "",
		},
		{
			name: "dispatch_count_missing_handler",
			assertionYAML: `
  - type: dispatch_count
    count: 1
`,
			wantErr: "handler is required for dispatch_count",
		},
		{
			name: "dispatch_count_missing_count",
			assertionYAML: `
  - type: dispatch_count
    handler: reload demo
`,
			wantErr: "count is required for dispatch_count",
		},
		{
			name: "dispatch_count_negative",
			assertionYAML: `
  - type: dispatch_count
    handler: reload demo
    count: -1
`,
			wantErr: "count must be non-negative",
		},
		{
			name: "file_content_valid",
			assertionYAML: `
  - type: file_content
    path: /etc/demo.conf
    content: "demo\n"
`,
			wantErr: "",
		},
		{
			name: "file_content_missing_path",
			assertionYAML: `
  - type: file_content
    content: "demo\n"
`,
			wantErr: "path is required for file_content",
		},
		{
			name: "file_absent_valid",
			assertionYAML: `
  - type: file_absent
    path: /etc/demo.conf
`,
			wantErr: "",
		},
		{
			name: "file_absent_missing_path",
			assertionYAML: `
  - type: file_absent
`,
			wantErr: "path is required for file_absent",
		},
		{
			name: "run_error_valid",
			assertionYAML: `
  - type: run_error
    code: IO_FAILURE
`,
			wantErr: "",
		},
		{
			name: "run_error_missing_code",
			assertionYAML: `
  - type: run_error
`,
			wantErr: "code is required for run_error",
		},
		{
			name: "unknown_type",
			assertionYAML: `
  - type: mode_equals
    path: /etc/demo.conf
`,
			wantErr: "unknown assertion type",
		},
		{
			name: "missing_type",
			assertionYAML: `
  - path: /etc/demo.conf
`,
			wantErr: "type is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(scenarioYAML(tt.assertionYAML)))
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseScenario_SeedValidation(t *testing.T) {
	tests := []struct {
		name     string
		seedYAML string
		wantErr  string
	}{
		{
			name:     "content_valid",
			seedYAML: `{content: "x\n"}`,
			wantErr:  "",
		},
		{
			name:     "empty_content_valid",
			seedYAML: `{content: ""}`,
			wantErr:  "",
		},
		{
			name:     "content_with_mode_valid",
			seedYAML: `{content: "x\n", mode: "0600"}`,
			wantErr:  "",
		},
		{
			name:     "dir_valid",
			seedYAML: `{dir: true}`,
			wantErr:  "",
		},
		{
			name:     "symlink_valid",
			seedYAML: `{symlink: /etc/target}`,
			wantErr:  "",
		},
		{
			name:     "irregular_valid",
			seedYAML: `{irregular: true}`,
			wantErr:  "",
		},
		{
			name:     "no_kind",
			seedYAML: `{}`,
			wantErr:  "exactly one of content, dir, symlink, irregular",
		},
		{
			name:     "two_kinds",
			seedYAML: `{content: "x\n", dir: true}`,
			wantErr:  "exactly one of content, dir, symlink, irregular",
		},
		{
			name:     "mode_on_dir",
			seedYAML: `{dir: true, mode: "0755"}`,
			wantErr:  "mode is only valid for content seeds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `
name: test
description: Test
playbook:
  tasks: []
filesystem:
  /etc/seeded: ` + tt.seedYAML + `
assertions:
  - type: file_absent
    path: /etc/x
`
			_, err := ParseScenario([]byte(content))
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseScenario_CompileErrorForbidsRunAssertions(t *testing.T) {
	for _, typ := range []string{AssertChanged, AssertDispatchOrder, AssertDispatchCount, AssertRunError} {
		t.Run(typ, func(t *testing.T) {
			content := `
name: test
description: Test
playbook:
  tasks: []
compile_error: E101
assertions:
  - type: ` + typ + `
    run: 1
    path: /etc/x
    changed: true
    handlers: []
    handler: h
    count: 0
    code: IO_FAILURE
`
			_, err := ParseScenario([]byte(content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "cannot be combined with compile_error")
		})
	}
}

func TestParseScenario_CompileErrorAllowsFileAssertions(t *testing.T) {
	content := `
name: test
description: Test
playbook:
  tasks: []
compile_error: E101
assertions:
  - type: file_content
    path: /etc/x
    content: "x\n"
  - type: file_absent
    path: /etc/y
`
	scenario, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, "E101", scenario.CompileError)
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "changed", AssertChanged)
	assert.Equal(t, "dispatch_order", AssertDispatchOrder)
	assert.Equal(t, "dispatch_count", AssertDispatchCount)
	assert.Equal(t, "file_content", AssertFileContent)
	assert.Equal(t, "file_absent", AssertFileAbsent)
	assert.Equal(t, "run_error", AssertRunError)
}
