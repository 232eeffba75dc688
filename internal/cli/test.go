package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/converge-sh/converge/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden trace files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult aggregates scenario outcomes for a whole directory.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// scenarioDetail carries the text-mode lines shown with a scenario's
// pass/fail marker. The note is appended to a pass line; the lines are
// printed indented under a fail line.
type scenarioDetail struct {
	note  string
	lines []string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run convergence scenarios",
		Long: `Run scenario files against an in-memory filesystem.

Each scenario declares a playbook, seeded filesystem state, and
assertions over runs, dispatches, and final file state. Runs execute
with deterministic run IDs, so traces can be compared byte for byte
against golden files under <scenarios-dir>/golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  converge test ./scenarios
  converge test ./scenarios --filter "handler-*"
  converge test ./scenarios --update
  converge test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden trace files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to find scenarios: %w", err)
	}

	text := opts.Format != "json"
	w := cmd.OutOrStdout()

	if len(files) == 0 {
		if text {
			fmt.Fprintln(w, "No scenarios found.")
			return nil
		}
		return writeTestResponse(w, TestResult{Scenarios: []ScenarioResult{}})
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr, detail := runScenario(file, opts.Update)
		if text {
			printScenario(w, sr, detail)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if text {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		if result.Failed == 0 {
			fmt.Fprintln(w, "✓ All scenarios passed")
		}
	} else if err := writeTestResponse(w, result); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles finds all YAML scenario files in a directory. Golden
// files live under a golden/ subdirectory with a .golden extension, so the
// walk never picks them up.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario executes one scenario file and decides its outcome. Text
// detail is returned rather than printed so the caller controls format.
func runScenario(file string, update bool) (ScenarioResult, scenarioDetail) {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return scenarioFailure(filepath.Base(file), "failed to load scenario: %v", err),
			detailLine("Load error: %v", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return scenarioFailure(scenario.Name, "execution failed: %v", err),
			detailLine("Execution error: %v", err)
	}

	trace := harness.Trace(scenario, result)
	golden := goldenFilePath(file)

	if update {
		if err := writeGolden(golden, trace); err != nil {
			return scenarioFailure(scenario.Name, "failed to update golden file: %v", err),
				detailLine("Golden update error: %v", err)
		}
		return ScenarioResult{Name: scenario.Name, Pass: true}, scenarioDetail{note: "(golden updated)"}
	}

	switch want, err := os.ReadFile(golden); {
	case os.IsNotExist(err):
		// No golden file recorded yet. Assertions alone decide.
	case err != nil:
		return scenarioFailure(scenario.Name, "golden comparison failed: %v", err),
			detailLine("Golden comparison error: %v", err)
	case !bytes.Equal(want, trace):
		return scenarioFailure(scenario.Name, "trace does not match golden file"),
			detailLine("Golden file mismatch (run with --update to regenerate)")
	}

	if !result.Pass {
		return ScenarioResult{Name: scenario.Name, Pass: false, Errors: result.Errors},
			scenarioDetail{lines: result.Errors}
	}
	return ScenarioResult{Name: scenario.Name, Pass: true}, scenarioDetail{}
}

func scenarioFailure(name, format string, args ...any) ScenarioResult {
	return ScenarioResult{
		Name:   name,
		Pass:   false,
		Errors: []string{fmt.Sprintf(format, args...)},
	}
}

func detailLine(format string, args ...any) scenarioDetail {
	return scenarioDetail{lines: []string{fmt.Sprintf(format, args...)}}
}

func printScenario(w io.Writer, sr ScenarioResult, d scenarioDetail) {
	if sr.Pass {
		if d.note != "" {
			fmt.Fprintf(w, "✓ %s %s\n", sr.Name, d.note)
			return
		}
		fmt.Fprintf(w, "✓ %s\n", sr.Name)
		return
	}

	fmt.Fprintf(w, "✗ %s\n", sr.Name)
	for _, line := range d.lines {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

// goldenFilePath maps a scenario file to its golden trace file, which
// lives under golden/ next to the scenario.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// writeGolden records a trace as the golden file, creating the golden
// directory on first use.
func writeGolden(path string, trace []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	if err := os.WriteFile(path, trace, 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}

func writeTestResponse(w io.Writer, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(response)
}
