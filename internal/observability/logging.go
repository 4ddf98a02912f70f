// Package observability builds the zap bootstrap logger cmd/runtimehost uses
// before the core is up, and the Prometheus/OTel instruments the scheduler's
// metrics are mirrored into once it's running.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the JSON production logger, every line tagged with the
// "runtime_host" component field so multi-process deployments (several
// runtimehost binaries, one per worker-pool shard) can be told apart in
// aggregated log search.
func NewLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	// Parse log level
	parsedLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		parsedLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(parsedLevel)

	// JSON encoder for structured logs
	config.Encoding = "json"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build(zap.Fields(zap.String("component", "runtime_host")))
	if err != nil {
		return nil, err
	}

	return logger, nil
}

func NewDevelopmentLogger() *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, _ := config.Build(zap.Fields(zap.String("component", "runtime_host")))
	return logger
}

// GetLoggerFromEnv builds the bootstrap logger at level, falling back to the
// colorized development logger when GO_ENV=development (local `go run` of
// cmd/runtimehost) or when the production logger fails to build. A level
// that fails to parse yields the production logger at info level.
func GetLoggerFromEnv(level string) *zap.Logger {
	if os.Getenv("GO_ENV") == "development" {
		return NewDevelopmentLogger()
	}

	logger, err := NewLogger(level)
	if err != nil {
		// Fallback to development logger
		return NewDevelopmentLogger()
	}

	return logger
}
