package cli

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Env carries environment-variable defaults for command flags. An explicit
// flag always wins; these only fill in values the user did not pass.
type Env struct {
	// Database is the run history database path (CONVERGE_DB).
	Database string `env:"CONVERGE_DB"`

	// Templates is the template directory (CONVERGE_TEMPLATES). When unset,
	// templates resolve relative to the playbook's own directory.
	Templates string `env:"CONVERGE_TEMPLATES"`
}

// LoadEnv reads converge's environment variables.
func LoadEnv(ctx context.Context) (Env, error) {
	var env Env
	if err := envconfig.Process(ctx, &env); err != nil {
		return Env{}, fmt.Errorf("read environment: %w", err)
	}
	return env, nil
}
