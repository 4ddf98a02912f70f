// Package scheduler implements the façade described in spec §4.4: it owns
// the fixed worker pool, places services (pinned or least-loaded), routes
// messages by logical name, sweeps completed services, and aggregates
// metrics and status across workers.
//
// Placement is grounded on the teacher's internal/worker/pool.go
// selectOptimalWorker: that method picks the WorkerInstance with the
// smallest atomic "active" counter to hand a single message to. Here the
// same "scan, keep the minimum, break ties by lowest index" shape picks the
// Worker with the fewest assigned *services* to hand a whole service to.
// pool.go's work-stealing fallback (tryWorkStealing) is deliberately not
// carried over — spec.md is explicit that placement is size-based only,
// decided once at registration, with no later rebalancing.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"svcrunner/internal/runtime/inbox"
	"svcrunner/internal/runtime/metrics"
	"svcrunner/internal/runtime/service"
	"svcrunner/internal/runtime/worker"
)

// NoPreference is the "let the Scheduler pick" sentinel for Register's
// preferredWorker argument.
const NoPreference = -1

// ErrDuplicateName is returned by Register when the logical name is already
// in use. Resolved Open Question: reject, don't silently overwrite (see
// SPEC_FULL.md §4.1).
var ErrDuplicateName = errors.New("scheduler: duplicate service name")

// ErrNotFound is returned by Get when no service is registered under a name.
var ErrNotFound = errors.New("scheduler: service not found")

// Scheduler owns the worker pool and the name->service directory.
type Scheduler struct {
	logger  *slog.Logger
	workers []*worker.Worker

	mu            sync.RWMutex
	servicesByName map[string]placed
	statusLog     map[string]string
}

type placed struct {
	svc      service.Service
	workerID int
}

// New creates exactly maxWorkers idle workers. maxWorkers must be >= 1.
func New(maxWorkers int, logger *slog.Logger) *Scheduler {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		logger:         logger,
		workers:        make([]*worker.Worker, maxWorkers),
		servicesByName: make(map[string]placed),
		statusLog:      make(map[string]string),
	}
	for i := range s.workers {
		s.workers[i] = worker.New(i, logger)
	}
	return s
}

// WorkerCount returns the fixed size of the worker pool.
func (s *Scheduler) WorkerCount() int { return len(s.workers) }

// Worker exposes one pool member for configuration (tick period, error
// threshold) by the external driver. Returns nil if idx is out of range.
func (s *Scheduler) Worker(idx int) *worker.Worker {
	if idx < 0 || idx >= len(s.workers) {
		return nil
	}
	return s.workers[idx]
}

// Register places svc per spec §4.4: a valid preferredWorker index pins it,
// NoPreference (-1) picks the least-loaded worker (ties broken by lowest
// index), and any other out-of-range positive value logs a warning and
// falls back to least-loaded. Duplicate names are rejected.
func (s *Scheduler) Register(svc service.Service, preferredWorker int) error {
	s.mu.Lock()
	if _, exists := s.servicesByName[svc.Name()]; exists {
		s.mu.Unlock()
		s.logger.Warn("rejecting duplicate service name", "name", svc.Name())
		return fmt.Errorf("%w: %s", ErrDuplicateName, svc.Name())
	}
	s.mu.Unlock()

	idx := s.resolvePlacement(preferredWorker)
	s.workers[idx].AddService(svc)

	s.mu.Lock()
	s.servicesByName[svc.Name()] = placed{svc: svc, workerID: idx}
	s.mu.Unlock()

	s.refreshStatusFor(idx)
	return nil
}

func (s *Scheduler) resolvePlacement(preferredWorker int) int {
	if preferredWorker >= 0 && preferredWorker < len(s.workers) {
		return preferredWorker
	}
	if preferredWorker != NoPreference {
		s.logger.Warn("preferred worker out of range, falling back to least-loaded", "preferred", preferredWorker)
	}
	return s.leastLoaded()
}

// leastLoaded mirrors pool.go's selectOptimalWorker: scan every worker,
// keep the one with the smallest load, and because index order is stable,
// an earlier equal-load worker is never displaced by a later one.
func (s *Scheduler) leastLoaded() int {
	best := 0
	bestLoad := s.workers[0].Count()
	for i := 1; i < len(s.workers); i++ {
		if load := s.workers[i].Count(); load < bestLoad {
			best = i
			bestLoad = load
		}
	}
	return best
}

// StartAll starts every worker that is not yet running. Workers already
// running are left alone with a warning logged.
func (s *Scheduler) StartAll() {
	for _, w := range s.workers {
		if w.Running() {
			s.logger.Warn("startAll: worker already running", "worker_id", w.ID())
			continue
		}
		w.Start()
	}
}

// StopAll requests every worker to stop and joins them all.
func (s *Scheduler) StopAll() {
	for _, w := range s.workers {
		w.StopWorker()
	}
	for _, w := range s.workers {
		w.Join()
	}
}

// Send routes msg to the service registered under name. It returns false,
// logging, if msg is nil, name is empty, the target doesn't exist, or the
// target's inbox is full — spec §4.4/§7's routing-failure and inbox-full
// error kinds, both surfaced only as a bool.
func (s *Scheduler) Send(name string, msg inbox.Message) bool {
	if msg == nil {
		s.logger.Warn("send: nil message", "target", name)
		return false
	}
	if name == "" {
		s.logger.Warn("send: empty target name")
		return false
	}

	s.mu.RLock()
	p, ok := s.servicesByName[name]
	s.mu.RUnlock()
	if !ok {
		s.logger.Warn("send: unknown target", "target", name)
		return false
	}

	if ok := p.svc.Inbox().Offer(msg); !ok {
		s.logger.Warn("send: inbox full, message dropped", "target", name)
		return false
	}
	return true
}

// Get returns the service registered under name, or ErrNotFound.
func (s *Scheduler) Get(name string) (service.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.servicesByName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return p.svc, nil
}

// ReapCompleted sweeps every worker for services whose IsComplete returns
// true, removes them (Stop+Cleanup via Worker.RemoveService), drops them
// from the directory, and rebuilds the status log. Safe to call
// repeatedly; a second sweep after a service is already gone is a no-op.
func (s *Scheduler) ReapCompleted() {
	for _, w := range s.workers {
		for _, svc := range w.SnapshotServices() {
			if !svc.IsComplete() {
				continue
			}
			w.RemoveService(svc)
			s.mu.Lock()
			delete(s.servicesByName, svc.Name())
			s.mu.Unlock()
		}
	}
	s.rebuildStatusLog()
}

// AllMetrics aggregates every worker's metrics, keyed by service name.
// Collisions (the same name on two workers) are not expected given the
// placement contract, but if they occur, last-write-wins — the scan order
// here is simply worker index order.
func (s *Scheduler) AllMetrics() map[string]metrics.Snapshot {
	out := make(map[string]metrics.Snapshot)
	for _, w := range s.workers {
		for name, snap := range w.SnapshotMetrics() {
			out[name] = snap
		}
	}
	return out
}

// StatusLog returns "«worker-id» manages N services: [...]" per worker,
// omitting empty workers. Read-only informational surface.
func (s *Scheduler) StatusLog() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.statusLog))
	for k, v := range s.statusLog {
		out[k] = v
	}
	return out
}

func (s *Scheduler) refreshStatusFor(workerID int) {
	s.rebuildStatusLog()
	_ = workerID // rebuilding the whole log is cheap at this scale and simpler to keep correct
}

func (s *Scheduler) rebuildStatusLog() {
	next := make(map[string]string)
	for _, w := range s.workers {
		names := make([]string, 0)
		for _, svc := range w.SnapshotServices() {
			names = append(names, svc.Name())
		}
		if len(names) == 0 {
			continue
		}
		key := fmt.Sprintf("worker-%d", w.ID())
		next[key] = fmt.Sprintf("%s manages %d services: %v", key, len(names), names)
	}
	s.mu.Lock()
	s.statusLog = next
	s.mu.Unlock()
}

// RuntimeSnapshot is a point-in-time debug view of the whole scheduler —
// the programmatic equivalent of the graphical debug window spec.md §1
// scopes out of the core. Suitable backing data for a status HTTP route or
// an actual debug window built outside the core.
type RuntimeSnapshot struct {
	WorkerCount int
	Workers     []WorkerSnapshot
}

// WorkerSnapshot is one Worker's contribution to a RuntimeSnapshot.
type WorkerSnapshot struct {
	ID       int
	Services []string
	Metrics  map[string]metrics.Snapshot
}

// Snapshot assembles a RuntimeSnapshot across all workers.
func (s *Scheduler) Snapshot() RuntimeSnapshot {
	out := RuntimeSnapshot{WorkerCount: len(s.workers)}
	for _, w := range s.workers {
		names := make([]string, 0)
		for _, svc := range w.SnapshotServices() {
			names = append(names, svc.Name())
		}
		out.Workers = append(out.Workers, WorkerSnapshot{
			ID:       w.ID(),
			Services: names,
			Metrics:  w.SnapshotMetrics(),
		})
	}
	return out
}
