// Package metricsrecorder persists periodic snapshots of every scheduler
// metric to Postgres, giving the runtime a queryable history beyond the
// in-memory Snapshot spec §4.3 defines. Grounded on the teacher's
// internal/billing package for its "read, mutate, write back under one
// transaction" shape, here simplified to straight inserts since history
// rows are never updated once written.
package metricsrecorder

import (
	"context"
	"log/slog"
	"time"

	"svcrunner/internal/persistence"
	"svcrunner/internal/runtime/metrics"
	"svcrunner/internal/runtime/scheduler"
)

// Recorder polls a Scheduler on its own ticker and appends one row per
// service per poll to the metrics_snapshots table.
type Recorder struct {
	db        *persistence.PostgresDB
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
	interval  time.Duration

	stop chan struct{}
	done chan struct{}
}

// New builds a Recorder. interval <= 0 is replaced by a 10 second default.
func New(db *persistence.PostgresDB, sched *scheduler.Scheduler, interval time.Duration, logger *slog.Logger) *Recorder {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		db:        db,
		scheduler: sched,
		logger:    logger,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the polling goroutine. Call Stop to end it.
func (r *Recorder) Start() {
	go r.run()
}

// Stop requests the polling goroutine to exit and waits for it to do so.
func (r *Recorder) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.recordOnce()
		}
	}
}

func (r *Recorder) recordOnce() {
	snapshot := r.scheduler.AllMetrics()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for name, snap := range snapshot {
		if err := r.insert(ctx, name, snap); err != nil {
			r.logger.Error("metricsrecorder: insert failed", "service", name, "error", err)
		}
	}
}

func (r *Recorder) insert(ctx context.Context, name string, snap metrics.Snapshot) error {
	const q = `
		INSERT INTO metrics_snapshots
			(service_name, step_count, total_step_nanos, min_step_nanos, max_step_nanos, error_count, consecutive_errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, q,
		name, snap.StepCount, snap.TotalStepNanos, snap.MinStepNanos, snap.MaxStepNanos, snap.ErrorCount, snap.ConsecutiveErrors)
	return err
}
