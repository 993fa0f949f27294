package inspect

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config configures the inspector server. Values come from the environment
// so dev tooling can enable the inspector without code changes.
type Config struct {
	// Addr is the listen address.
	Addr string `env:"SCOPESHARE_INSPECT_ADDR" envDefault:"127.0.0.1:6360"`

	// AllowAnyOrigin disables WebSocket origin checking. On by default:
	// the inspector is a dev tool bound to localhost.
	AllowAnyOrigin bool `env:"SCOPESHARE_INSPECT_ANY_ORIGIN" envDefault:"true"`

	// TracerName names the tracer used for request spans.
	TracerName string `env:"SCOPESHARE_INSPECT_TRACER" envDefault:"scopeshare-inspect"`
}

// ConfigFromEnv parses the inspector configuration from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse inspector config: %w", err)
	}
	return cfg, nil
}
