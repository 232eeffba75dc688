package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxOutputInError caps how much captured command output a handler failure
// carries. Restart scripts can be chatty; the report only needs the tail.
const maxOutputInError = 512

// CanonicalName normalizes a handler name for identity comparison. Names are
// NFC normalized at every identity boundary so that notify entries and
// handler definitions written in different Unicode forms still refer to the
// same handler.
func CanonicalName(name string) string {
	return norm.NFC.String(name)
}

// Registry maps canonical handler names to the commands that implement them.
type Registry struct {
	commands map[string][]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string][]string)}
}

// Register adds a named handler command. The name is stored canonically;
// registering two names that normalize to the same canonical form is an
// error, as is an empty name or command.
func (r *Registry) Register(name string, command []string) error {
	canon := CanonicalName(name)
	if canon == "" {
		return fmt.Errorf("handler name must not be empty")
	}
	if len(command) == 0 {
		return fmt.Errorf("handler %q: command must not be empty", name)
	}
	if _, exists := r.commands[canon]; exists {
		return fmt.Errorf("handler %q: already registered", name)
	}
	r.commands[canon] = append([]string(nil), command...)
	return nil
}

// Lookup returns the command registered under name, if any.
func (r *Registry) Lookup(name string) ([]string, bool) {
	cmd, ok := r.commands[CanonicalName(name)]
	return cmd, ok
}

// Names returns the canonical names of all registered handlers, unordered.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}

// Exec returns a Func that runs the registered command for each handler name
// via os/exec. The process inherits ctx, so cancelling the run kills an
// in-flight handler. A failure carries the command's trailing output.
func (r *Registry) Exec() Func {
	return func(ctx context.Context, name string) error {
		argv, ok := r.Lookup(name)
		if !ok {
			return fmt.Errorf("no handler registered for %q", name)
		}
		out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
		if err != nil {
			if msg := tail(out); msg != "" {
				return fmt.Errorf("command %q: %w: %s", argv[0], err, msg)
			}
			return fmt.Errorf("command %q: %w", argv[0], err)
		}
		return nil
	}
}

func tail(out []byte) string {
	msg := strings.TrimSpace(string(out))
	if len(msg) > maxOutputInError {
		msg = "..." + msg[len(msg)-maxOutputInError:]
	}
	return msg
}
