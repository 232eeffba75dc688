package harness

import (
	"errors"

	"github.com/converge-sh/converge/internal/engine"
)

// Result captures everything a scenario execution produced: the per-run
// traces, any compile failure, and the assertion failures.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Runs holds one trace per executed run, in order.
	Runs []RunTrace `json:"runs"`

	// CompileErr is the compile failure message, when the playbook never
	// reached execution.
	CompileErr string `json:"compile_err,omitempty"`

	// CompileErrCode is the failure's code (a validation code like E101,
	// or RENDER_FAILURE).
	CompileErrCode string `json:"compile_err_code,omitempty"`

	// Errors lists each failed assertion.
	Errors []string `json:"errors"`
}

// RunTrace records what one run did.
type RunTrace struct {
	RunID      string                `json:"run_id"`
	Mode       string                `json:"mode"`
	Changes    []engine.ChangeRecord `json:"changes"`
	Handlers   []string              `json:"handlers"`
	Dispatches []DispatchTrace       `json:"dispatches"`
	Err        string                `json:"err,omitempty"`
	ErrCode    string                `json:"err_code,omitempty"`
}

// DispatchTrace records one handler dispatch.
type DispatchTrace struct {
	Handler string `json:"handler"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// NewResult creates an empty passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Runs:   []RunTrace{},
		Errors: []string{},
	}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}

// newRunTrace converts an engine report and its error into a trace.
func newRunTrace(report *engine.Report, runErr error) RunTrace {
	rt := RunTrace{
		RunID:      report.RunID,
		Mode:       string(report.Mode),
		Changes:    report.Changes,
		Handlers:   report.Handlers,
		Dispatches: []DispatchTrace{},
	}
	if rt.Changes == nil {
		rt.Changes = []engine.ChangeRecord{}
	}
	if rt.Handlers == nil {
		rt.Handlers = []string{}
	}
	for _, outcome := range report.Dispatches {
		dt := DispatchTrace{Handler: outcome.Handler, OK: outcome.OK()}
		if outcome.Err != nil {
			dt.Error = outcome.Err.Error()
		}
		rt.Dispatches = append(rt.Dispatches, dt)
	}
	if runErr != nil {
		rt.Err = runErr.Error()
		rt.ErrCode = runErrorCode(runErr)
	}
	return rt
}

// runErrorCode extracts the run error code, or "" for uncoded errors.
func runErrorCode(err error) string {
	var re *engine.RunError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ""
}
