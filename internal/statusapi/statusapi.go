// Package statusapi exposes the scheduler's status log and metrics over a
// small Fiber HTTP surface, the programmatic equivalent of spec.md §1's
// out-of-scope graphical debug window. Grounded on the teacher's
// internal/api/routes.go: same fiber.App, same manual Prometheus text
// exposition on /metrics (no promhttp dependency, matching the teacher's own
// choice not to pull one in).
package statusapi

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"svcrunner/internal/persistence"
	"svcrunner/internal/runtime/scheduler"
)

// New builds a fiber.App exposing /healthz, /status, and /metrics against
// sched. redis is optional; when non-nil /healthz also checks it, since the
// ratelimited demo service's token buckets live there.
func New(sched *scheduler.Scheduler, redis *persistence.RedisClient, logger *slog.Logger) *fiber.App {
	if logger == nil {
		logger = slog.Default()
	}
	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if redis != nil {
			if err := redis.HealthCheck(c.Context()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "unhealthy",
					"redis":  err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"worker_count": sched.WorkerCount(),
			"services":     sched.StatusLog(),
		})
	})

	app.Get("/snapshot", func(c *fiber.Ctx) error {
		return c.JSON(sched.Snapshot())
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricFamilies, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("error gathering metrics")
		}

		c.Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		for _, mf := range metricFamilies {
			name := mf.GetName()
			for _, m := range mf.GetMetric() {
				switch {
				case m.GetCounter() != nil:
					c.WriteString(fmt.Sprintf("# TYPE %s counter\n%s %g\n", name, name, m.GetCounter().GetValue()))
				case m.GetGauge() != nil:
					c.WriteString(fmt.Sprintf("# TYPE %s gauge\n%s %g\n", name, name, m.GetGauge().GetValue()))
				case m.GetHistogram() != nil:
					h := m.GetHistogram()
					c.WriteString(fmt.Sprintf("# TYPE %s histogram\n%s_count %d\n%s_sum %g\n",
						name, name, h.GetSampleCount(), name, h.GetSampleSum()))
				}
			}
		}
		return nil
	})

	return app
}
