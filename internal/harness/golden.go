package harness

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Trace renders a result as a stable, line-oriented text trace for golden
// comparison. Every field that feeds the trace is deterministic under Run:
// sequential run IDs, declaration-order change records, first-seen handler
// order. Timestamps never appear.
func Trace(scenario *Scenario, result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", scenario.Name)

	if result.CompileErr != "" {
		code := result.CompileErrCode
		if code == "" {
			code = "UNCODED"
		}
		fmt.Fprintf(&buf, "compile error [%s]: %s\n", code, flatten(result.CompileErr))
		return buf.Bytes()
	}

	for i, rt := range result.Runs {
		fmt.Fprintf(&buf, "run %d id=%s mode=%s\n", i+1, rt.RunID, rt.Mode)
		for _, rec := range rt.Changes {
			fmt.Fprintf(&buf, "  [%d] %s %s changed=%t\n", rec.Index, rec.Kind, rec.Path, rec.Changed)
		}
		if len(rt.Handlers) > 0 {
			fmt.Fprintf(&buf, "  queue: %s\n", strings.Join(rt.Handlers, ", "))
		} else {
			fmt.Fprintf(&buf, "  queue: (empty)\n")
		}
		for _, dt := range rt.Dispatches {
			if dt.OK {
				fmt.Fprintf(&buf, "  dispatch %s ok\n", dt.Handler)
			} else {
				fmt.Fprintf(&buf, "  dispatch %s FAILED: %s\n", dt.Handler, flatten(dt.Error))
			}
		}
		if rt.Err != "" {
			fmt.Fprintf(&buf, "  error: %s\n", flatten(rt.Err))
		}
	}

	return buf.Bytes()
}

// flatten keeps the trace one line per event. Joined handler errors carry
// newlines.
func flatten(s string) string {
	return strings.ReplaceAll(s, "\n", "; ")
}

// RunWithGolden executes a scenario and compares its trace against the golden
// file testdata/golden/<name>.golden. Run tests with -update to rewrite the
// golden files from current behavior.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Trace(scenario, result))

	return result, nil
}
