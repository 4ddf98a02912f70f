package config

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
)

// RuntimeConfig holds the core scheduler/worker settings spec §6 describes:
// maxWorkers, per-service period defaults, and the worker's own tick/
// error-threshold knobs. These need clamp-to-default validation envconfig's
// struct tags can't express (e.g. "clamp to NumCPU if non-positive"), so —
// like the teacher's GetWorkerConfig — they're read with plain os.Getenv
// and strconv, defaulted and clamped by hand.
type RuntimeConfig struct {
	MaxWorkers      int
	TickPeriodMs    int
	ErrorThreshold  int
	DefaultPeriodMs int
	InboxCapacity   int
}

// GetRuntimeConfig reads RuntimeConfig from the environment, clamping every
// field to a sane default per spec §6/§7's "Configuration invalid"
// handling: a set but unparsable or non-positive value is logged by envInt
// and replaced, never left at a value that would break an invariant.
// MAX_WORKERS above runtime.NumCPU() is clamped to runtime.NumCPU().
func GetRuntimeConfig() RuntimeConfig {
	maxWorkers := runtime.NumCPU()
	if v := envInt("MAX_WORKERS"); v > 0 && v < maxWorkers {
		maxWorkers = v
	}

	tickPeriodMs := 50
	if v := envInt("TICK_PERIOD_MS"); v > 0 {
		tickPeriodMs = v
	}

	errorThreshold := 3
	if v := envInt("ERROR_THRESHOLD"); v > 0 {
		errorThreshold = v
	}

	defaultPeriodMs := 10
	if v := envInt("DEFAULT_PERIOD_MS"); v > 0 {
		defaultPeriodMs = v
	}

	inboxCapacity := 256
	if v := envInt("INBOX_CAPACITY"); v > 0 {
		inboxCapacity = v
	}

	return RuntimeConfig{
		MaxWorkers:      maxWorkers,
		TickPeriodMs:    tickPeriodMs,
		ErrorThreshold:  errorThreshold,
		DefaultPeriodMs: defaultPeriodMs,
		InboxCapacity:   inboxCapacity,
	}
}

func envInt(name string) int {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		slog.Warn("ignoring invalid runtime setting, using default", "name", name, "value", raw)
		return 0
	}
	return v
}
