package engine

import (
	"time"

	"github.com/converge-sh/converge/internal/dispatch"
)

// Mode distinguishes a mutating run from a dry run.
type Mode string

const (
	// ModeApply evaluates assertions and applies mutations.
	ModeApply Mode = "apply"
	// ModePlan evaluates assertions but mutates nothing and dispatches
	// nothing; the report shows what an apply would do.
	ModePlan Mode = "plan"
)

// ChangeRecord is the per-assertion line of the audit trail, in declaration
// order. Changed is false when the filesystem already satisfied the
// assertion.
type ChangeRecord struct {
	Index   int           `json:"index"`
	Path    string        `json:"path"`
	Kind    AssertionKind `json:"kind"`
	Changed bool          `json:"changed"`
}

// Report is the externally visible result of a run: what each assertion did,
// which handlers were collected, and how each dispatch went. A report is
// returned even when the run fails partway, so callers can always tell which
// paths were already mutated.
type Report struct {
	// RunID is the unique, time-sortable identifier of this run.
	RunID string `json:"run_id"`

	// Mode records whether mutations were applied or only planned.
	Mode Mode `json:"mode"`

	// Changes holds one record per completed assertion, declaration order.
	// On an aborted run it covers only the assertions that finished.
	Changes []ChangeRecord `json:"changes"`

	// Handlers lists the distinct handler names collected during the run,
	// in first-seen order. In plan mode these are the handlers that would
	// be notified.
	Handlers []string `json:"handlers"`

	// Dispatches holds one outcome per invoked handler, in dispatch order.
	// Always empty in plan mode.
	Dispatches []dispatch.Outcome `json:"-"`

	// Started and Finished bound the run in wall-clock time.
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// ChangedCount returns how many assertions mutated something.
func (r *Report) ChangedCount() int {
	n := 0
	for _, c := range r.Changes {
		if c.Changed {
			n++
		}
	}
	return n
}

// FailedDispatches returns how many handler invocations failed.
func (r *Report) FailedDispatches() int {
	n := 0
	for _, d := range r.Dispatches {
		if !d.OK() {
			n++
		}
	}
	return n
}
