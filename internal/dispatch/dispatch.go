// Package dispatch delivers deferred handler notifications after a
// convergence run. Dispatch is at most once per handler name, in first-seen
// order, and a failing handler never prevents the remaining handlers from
// running; every outcome is reported.
package dispatch

import "context"

// Func invokes a single named handler.
type Func func(ctx context.Context, name string) error

// Outcome is the result of one handler invocation.
type Outcome struct {
	Handler string
	Err     error
}

// OK reports whether the invocation succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Run invokes each name at most once, in the order given, and returns one
// Outcome per invocation. Names are compared in canonical form, so a caller
// that somehow passes the same handler twice still gets a single invocation.
// A failed invocation is recorded and the remaining handlers still run.
func Run(ctx context.Context, names []string, invoke Func) []Outcome {
	seen := make(map[string]struct{}, len(names))
	outcomes := make([]Outcome, 0, len(names))
	for _, name := range names {
		canon := CanonicalName(name)
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}
		outcomes = append(outcomes, Outcome{Handler: name, Err: invoke(ctx, name)})
	}
	return outcomes
}

// Discard is a Func that accepts every invocation and does nothing. Plan mode
// and tests that only care about queue contents use it.
func Discard(context.Context, string) error { return nil }
