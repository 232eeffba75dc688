// Command converge applies declarative playbooks of file state to the local
// host: probe, minimally mutate, then notify handlers of what changed.
package main

import (
	"fmt"
	"os"

	"github.com/converge-sh/converge/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands print their own diagnostics; anything still attached to
		// the error here is cobra's (unknown flags, bad arguments).
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
