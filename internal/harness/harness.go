package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/converge-sh/converge/internal/dispatch"
	"github.com/converge-sh/converge/internal/engine"
	"github.com/converge-sh/converge/internal/fsprobe"
	"github.com/converge-sh/converge/internal/render"
	"github.com/converge-sh/converge/internal/task"
	"github.com/converge-sh/converge/internal/testutil"
)

// Run executes a scenario and evaluates its assertions.
//
// The scenario gets a fresh in-memory filesystem, a recording dispatcher, and
// sequential run IDs (run-0001, run-0002, ...), so the same scenario always
// produces the same Result and the same golden trace.
//
// An error return means the scenario itself is broken (a handler named in
// fail_handlers that the playbook never defines, an unencodable playbook).
// Everything the scenario is designed to observe, compile failures and failed
// runs included, lands in the Result instead.
func Run(scenario *Scenario) (*Result, error) {
	result := NewResult()

	mem := fsprobe.NewMem()
	if err := seedFilesystem(mem, scenario); err != nil {
		return nil, err
	}

	// Re-encode the inline playbook and push it through the real parser so
	// scenarios exercise the same validation path as converge apply.
	data, err := yaml.Marshal(&scenario.Playbook)
	if err != nil {
		return nil, fmt.Errorf("encoding playbook: %w", err)
	}
	pb, verrs := task.Parse(data)
	if len(verrs) > 0 {
		finishCompileFailure(scenario, mem, result, verrs[0].Code, verrs[0].Error())
		return result, nil
	}

	assertions, err := task.Compile(pb, render.Map(scenario.Templates))
	if err != nil {
		finishCompileFailure(scenario, mem, result, runErrorCode(err), err.Error())
		return result, nil
	}

	registry, err := task.Registry(pb)
	if err != nil {
		return nil, fmt.Errorf("building handler registry: %w", err)
	}

	if scenario.CompileError != "" {
		result.AddError(fmt.Sprintf(
			"expected compile failure with code %s, but the playbook compiled",
			scenario.CompileError))
		for _, msg := range EvaluateAssertions(result, scenario.Assertions, &AssertionContext{FS: mem}) {
			result.AddError(msg)
		}
		return result, nil
	}

	recorder := dispatch.NewRecorder()
	for name, msg := range scenario.FailHandlers {
		canon := dispatch.CanonicalName(name)
		if _, ok := registry.Lookup(canon); !ok {
			return nil, fmt.Errorf("fail_handlers[%s]: playbook defines no such handler", name)
		}
		recorder.FailWith(canon, errors.New(msg))
	}

	eng := engine.New(mem, recorder.Func(), engine.WithRunIDs(testutil.NewSeqSource("run")))
	for i := 0; i < scenario.Runs; i++ {
		report, runErr := eng.Run(context.Background(), assertions)
		result.Runs = append(result.Runs, newRunTrace(report, runErr))
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, &AssertionContext{FS: mem}) {
		result.AddError(msg)
	}
	return result, nil
}

// seedFilesystem populates the in-memory filesystem from the scenario's
// filesystem and fail_paths sections.
func seedFilesystem(mem *fsprobe.Mem, scenario *Scenario) error {
	for path, seed := range scenario.Filesystem {
		switch {
		case seed.Content != nil:
			mode, err := seedMode(seed.Mode)
			if err != nil {
				return fmt.Errorf("filesystem[%s]: %w", path, err)
			}
			mem.SeedFile(path, []byte(*seed.Content), mode)
		case seed.Dir:
			mem.SeedDir(path)
		case seed.Symlink != "":
			mem.SeedSymlink(path, seed.Symlink)
		case seed.Irregular:
			mem.SeedIrregular(path)
		}
	}
	for path, msg := range scenario.FailPaths {
		mem.FailPath(path, errors.New(msg))
	}
	return nil
}

func seedMode(s string) (fs.FileMode, error) {
	if s == "" {
		return 0o644, nil
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file mode %q: %w", s, err)
	}
	return fs.FileMode(n) & fs.ModePerm, nil
}

// finishCompileFailure records a parse or compile failure and checks it
// against the scenario's declared expectation. File assertions still run:
// a compile failure must leave the seeded filesystem untouched, and
// scenarios assert exactly that.
func finishCompileFailure(scenario *Scenario, mem *fsprobe.Mem, result *Result, code, msg string) {
	result.CompileErr = msg
	result.CompileErrCode = code

	switch {
	case scenario.CompileError == "":
		result.AddError(fmt.Sprintf("unexpected compile failure: %s", msg))
	case scenario.CompileError != code:
		result.AddError(fmt.Sprintf(
			"expected compile failure code %s, got %s: %s",
			scenario.CompileError, code, msg))
	}

	for _, failure := range EvaluateAssertions(result, scenario.Assertions, &AssertionContext{FS: mem}) {
		result.AddError(failure)
	}
}
