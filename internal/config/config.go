package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the gateway's runtime settings, all sourced from the
// environment.
type Config struct {
	Addr string `env:"SH_ADDR" envDefault:":8080"`

	// Per-connection outbound queue length. When a queue is full the frame
	// is dropped for that recipient, never queued against the others.
	SendBuffer int `env:"SH_SEND_BUFFER" envDefault:"256"`

	// Maximum inbound frame size in bytes.
	ReadLimitBytes int64 `env:"SH_READ_LIMIT_BYTES" envDefault:"1048576"`

	ShutdownTimeout time.Duration `env:"SH_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
