package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/converge-sh/converge/internal/dispatch"
	"github.com/converge-sh/converge/internal/fsprobe"
)

// AssertionError describes one failed assertion with expected and actual
// values, formatted for scenario output.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s\n  expected: %s\n  actual:   %s",
		e.Type, e.Expected, e.Actual)
}

// AssertionContext carries the state assertions inspect beyond the run
// traces themselves.
type AssertionContext struct {
	// FS is the scenario's filesystem after the final run.
	FS *fsprobe.Mem
}

// EvaluateAssertions checks every assertion against the result and returns
// one failure message per assertion that did not hold. An empty slice means
// all assertions passed.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertChanged:
			err = assertChanged(result, &a)
		case AssertDispatchOrder:
			err = assertDispatchOrder(result, &a)
		case AssertDispatchCount:
			err = assertDispatchCount(result, &a)
		case AssertFileContent:
			err = assertFileContent(actx, &a)
		case AssertFileAbsent:
			err = assertFileAbsent(actx, &a)
		case AssertRunError:
			err = assertRunError(result, &a)
		default:
			// Unreachable for loaded scenarios; LoadScenario rejects
			// unknown types.
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// runTrace resolves a 1-based run reference. Run 0 (the YAML zero value)
// means run 1, so single-run scenarios can omit the field.
func runTrace(result *Result, run int) (*RunTrace, int, error) {
	if run == 0 {
		run = 1
	}
	if run < 1 || run > len(result.Runs) {
		return nil, run, fmt.Errorf("assertion references run %d, scenario executed %d run(s)",
			run, len(result.Runs))
	}
	return &result.Runs[run-1], run, nil
}

// assertChanged checks one run's change record for a path.
func assertChanged(result *Result, a *Assertion) error {
	rt, run, err := runTrace(result, a.Run)
	if err != nil {
		return err
	}
	for _, rec := range rt.Changes {
		if rec.Path != a.Path {
			continue
		}
		if rec.Changed == *a.Changed {
			return nil
		}
		return &AssertionError{
			Type:     AssertChanged,
			Expected: fmt.Sprintf("%s changed=%t in run %d", a.Path, *a.Changed, run),
			Actual:   fmt.Sprintf("%s changed=%t", a.Path, rec.Changed),
		}
	}
	return &AssertionError{
		Type:     AssertChanged,
		Expected: fmt.Sprintf("%s changed=%t in run %d", a.Path, *a.Changed, run),
		Actual:   fmt.Sprintf("run %d recorded no assertion for %s", run, a.Path),
	}
}

// assertDispatchOrder checks a run's exact dispatch sequence. Names are
// compared canonically, so scenarios may spell handler names in any
// normalization form.
func assertDispatchOrder(result *Result, a *Assertion) error {
	rt, run, err := runTrace(result, a.Run)
	if err != nil {
		return err
	}
	expected := make([]string, len(a.Handlers))
	for i, name := range a.Handlers {
		expected[i] = dispatch.CanonicalName(name)
	}
	actual := make([]string, len(rt.Dispatches))
	for i, dt := range rt.Dispatches {
		actual[i] = dispatch.CanonicalName(dt.Handler)
	}
	if slices.Equal(expected, actual) {
		return nil
	}
	return &AssertionError{
		Type:     AssertDispatchOrder,
		Expected: fmt.Sprintf("run %d dispatches [%s]", run, strings.Join(expected, ", ")),
		Actual:   fmt.Sprintf("run %d dispatched [%s]", run, strings.Join(actual, ", ")),
	}
}

// assertDispatchCount checks how many times a handler was dispatched across
// every run in the scenario.
func assertDispatchCount(result *Result, a *Assertion) error {
	canon := dispatch.CanonicalName(a.Handler)
	count := 0
	for _, rt := range result.Runs {
		for _, dt := range rt.Dispatches {
			if dispatch.CanonicalName(dt.Handler) == canon {
				count++
			}
		}
	}
	if count == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertDispatchCount,
		Expected: fmt.Sprintf("%s dispatched %d time(s) across all runs", a.Handler, *a.Count),
		Actual:   fmt.Sprintf("%s dispatched %d time(s)", a.Handler, count),
	}
}

// assertFileContent checks a file's final content.
func assertFileContent(actx *AssertionContext, a *Assertion) error {
	data, err := actx.FS.ReadFile(a.Path)
	if err != nil {
		return &AssertionError{
			Type:     AssertFileContent,
			Expected: fmt.Sprintf("%s contains %q", a.Path, a.Content),
			Actual:   fmt.Sprintf("read failed: %v", err),
		}
	}
	if string(data) == a.Content {
		return nil
	}
	return &AssertionError{
		Type:     AssertFileContent,
		Expected: fmt.Sprintf("%s contains %q", a.Path, a.Content),
		Actual:   fmt.Sprintf("%s contains %q", a.Path, string(data)),
	}
}

// assertFileAbsent checks that nothing exists at a path.
func assertFileAbsent(actx *AssertionContext, a *Assertion) error {
	st, err := actx.FS.Stat(a.Path)
	if err != nil {
		return &AssertionError{
			Type:     AssertFileAbsent,
			Expected: fmt.Sprintf("nothing at %s", a.Path),
			Actual:   fmt.Sprintf("stat failed: %v", err),
		}
	}
	if !st.Exists {
		return nil
	}
	return &AssertionError{
		Type:     AssertFileAbsent,
		Expected: fmt.Sprintf("nothing at %s", a.Path),
		Actual:   fmt.Sprintf("%s exists as a %s", a.Path, st.Type),
	}
}

// assertRunError checks that a run failed with the given error code.
func assertRunError(result *Result, a *Assertion) error {
	rt, run, err := runTrace(result, a.Run)
	if err != nil {
		return err
	}
	if rt.ErrCode == a.Code {
		return nil
	}
	actual := "run succeeded"
	switch {
	case rt.Err != "" && rt.ErrCode == "":
		actual = fmt.Sprintf("uncoded error: %s", rt.Err)
	case rt.Err != "":
		actual = fmt.Sprintf("code %s: %s", rt.ErrCode, rt.Err)
	}
	return &AssertionError{
		Type:     AssertRunError,
		Expected: fmt.Sprintf("run %d fails with code %s", run, a.Code),
		Actual:   actual,
	}
}
