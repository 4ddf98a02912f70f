// Package config loads the runtime's configuration, the same two-tier way
// the teacher does: scalar settings through envconfig tags, and settings
// that need clamp-and-default validation through a hand-rolled layer.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the scalar settings envconfig can validate on its own.
type Config struct {
	// HTTP status surface (internal/statusapi)
	Port         string        `envconfig:"PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`

	// Metrics history (internal/metricsrecorder)
	PostgresURL string `envconfig:"POSTGRES_URL" required:"true"`

	// Rate-limited demo service (internal/services/ratelimited)
	RedisURL string `envconfig:"REDIS_URL" required:"true"`

	// Ingress demo service (internal/services/ingress)
	NATSURL       string `envconfig:"NATS_URL" required:"true"`
	IngressSubject string `envconfig:"INGRESS_SUBJECT" default:"runtime.ingress"`

	// Observability
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads Config from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
