package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/converge-sh/converge/internal/engine"
	"github.com/converge-sh/converge/internal/store"
)

// RunReport is the output shape of a single playbook run, shared by apply
// and plan. It flattens engine.Report into something marshalable: dispatch
// outcomes carry bare errors, so they are rewritten as strings here.
type RunReport struct {
	Playbook   string                `json:"playbook"`
	RunID      string                `json:"run_id"`
	Mode       string                `json:"mode"`
	Status     string                `json:"status"`
	ErrorCode  string                `json:"error_code,omitempty"`
	Error      string                `json:"error,omitempty"`
	Changes    []engine.ChangeRecord `json:"changes"`
	Handlers   []string              `json:"handlers"`
	Dispatches []DispatchReport      `json:"dispatches,omitempty"`
	Changed    int                   `json:"changed"`
	Failed     int                   `json:"failed"`
	Started    time.Time             `json:"started"`
	Finished   time.Time             `json:"finished"`
}

// DispatchReport is one handler invocation outcome.
type DispatchReport struct {
	Handler string `json:"handler"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// NewRunReport builds the output view of a run. The report is non-nil even
// when runErr is set; a partial report still shows which paths mutated.
func NewRunReport(playbook string, report *engine.Report, runErr error) RunReport {
	r := RunReport{
		Playbook: playbook,
		RunID:    report.RunID,
		Mode:     string(report.Mode),
		Status:   store.StatusOK,
		Changes:  report.Changes,
		Handlers: report.Handlers,
		Changed:  report.ChangedCount(),
		Failed:   report.FailedDispatches(),
		Started:  report.Started,
		Finished: report.Finished,
	}
	if r.Changes == nil {
		r.Changes = []engine.ChangeRecord{}
	}
	if r.Handlers == nil {
		r.Handlers = []string{}
	}
	for _, d := range report.Dispatches {
		dr := DispatchReport{Handler: d.Handler, OK: d.OK()}
		if d.Err != nil {
			dr.Error = d.Err.Error()
		}
		r.Dispatches = append(r.Dispatches, dr)
	}
	if runErr != nil {
		r.Status = store.StatusFailed
		r.Error = runErr.Error()
		var re *engine.RunError
		if errors.As(runErr, &re) {
			r.ErrorCode = string(re.Code)
		}
	}
	return r
}

// WriteText renders the report for humans. The layout is stable so runs can
// be eyeballed side by side:
//
//	✓ site.yml (run 0198..., apply)
//	  [0] changed file_content /etc/nginx/nginx.conf
//	  [1] ok      absent       /etc/nginx/conf.d/default.conf
//	  dispatch: restart nginx ok
//	  1 of 2 changed
func (r RunReport) WriteText(w io.Writer) {
	glyph := "✓"
	if r.Status != store.StatusOK {
		glyph = "✗"
	}
	fmt.Fprintf(w, "%s %s (run %s, %s)\n", glyph, r.Playbook, r.RunID, r.Mode)

	for _, c := range r.Changes {
		fmt.Fprintf(w, "  [%d] %-7s %-12s %s\n", c.Index, changeWord(c.Changed), c.Kind, c.Path)
	}

	switch {
	case r.Mode == string(engine.ModePlan) && len(r.Handlers) > 0:
		fmt.Fprintf(w, "  would notify: %s\n", strings.Join(r.Handlers, ", "))
	case len(r.Dispatches) > 0:
		for _, d := range r.Dispatches {
			if d.OK {
				fmt.Fprintf(w, "  dispatch: %s ok\n", d.Handler)
			} else {
				fmt.Fprintf(w, "  dispatch: %s FAILED: %s\n", d.Handler, d.Error)
			}
		}
	}

	if r.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Error)
	}

	if r.Mode == string(engine.ModePlan) {
		fmt.Fprintf(w, "  %d of %d would change\n", r.Changed, len(r.Changes))
	} else {
		fmt.Fprintf(w, "  %d of %d changed\n", r.Changed, len(r.Changes))
	}
}

func changeWord(changed bool) string {
	if changed {
		return "changed"
	}
	return "ok"
}

// outputRunReports prints run reports in playbook argument order and derives
// the exit code from the number of failed runs.
func outputRunReports(formatter *OutputFormatter, reports []RunReport, failed int) error {
	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: reports}
		if failed > 0 {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    firstErrorCode(reports),
				Message: fmt.Sprintf("%d run(s) failed", failed),
			}
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		if failed > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) failed", failed))
		}
		return nil
	}

	for _, report := range reports {
		report.WriteText(formatter.Writer)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) failed", failed))
	}
	return nil
}

// firstErrorCode returns the error code of the first failed run, so the JSON
// envelope points at something concrete.
func firstErrorCode(reports []RunReport) string {
	for _, r := range reports {
		if r.ErrorCode != "" {
			return r.ErrorCode
		}
	}
	return "E_RUN_FAILED"
}
