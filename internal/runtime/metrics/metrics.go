// Package metrics implements the per-(service,worker) counters spec §4.5
// describes: step count, total/min/max step duration, error count, and
// consecutive errors. Mutation happens only on the owning worker's
// goroutine; reads may happen from any goroutine and always see a
// consistent snapshot.
package metrics

import "sync"

// Snapshot is a read-only, consistent copy of a Metrics record at one
// instant. minStepNanos is reported as 0 until the first sample lands.
type Snapshot struct {
	StepCount         int64
	TotalStepNanos    int64
	MinStepNanos      int64
	MaxStepNanos      int64
	ErrorCount        int64
	ConsecutiveErrors int64
}

// Metrics is deliberately guarded by a single coarse mutex rather than a
// handful of atomics: min/max can't be updated atomically in the standard
// library, and spec §4.5/§9 call contention here "expected to be
// negligible" — one lock per record, following the teacher's
// transactional-guard pattern in internal/billing/billing.go, is sufficient.
type Metrics struct {
	mu  sync.Mutex
	set bool // whether minStepNanos has a real sample yet
	s   Snapshot
}

// New returns a zeroed Metrics record.
func New() *Metrics {
	return &Metrics{}
}

// RecordStep records a successful work-step duration and resets
// consecutiveErrors to 0, per spec's "consecutive-error reset" invariant.
func (m *Metrics) RecordStep(nanos int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.s.StepCount++
	m.s.TotalStepNanos += nanos
	if !m.set || nanos < m.s.MinStepNanos {
		m.s.MinStepNanos = nanos
		m.set = true
	}
	if nanos > m.s.MaxStepNanos {
		m.s.MaxStepNanos = nanos
	}
	m.s.ConsecutiveErrors = 0
}

// RecordError records a failed work-step invocation.
func (m *Metrics) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.s.ErrorCount++
	m.s.ConsecutiveErrors++
}

// ConsecutiveErrors returns the current consecutive-error count, used by
// the Worker to decide whether a service has crossed the quarantine
// threshold.
func (m *Metrics) ConsecutiveErrors() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.ConsecutiveErrors
}

// Snapshot returns a consistent copy of the record.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}

// Reset zeroes the record. Exposed for completeness (spec §4.5); the core
// never calls it on its own — re-enabling a quarantined service requires a
// fresh registration (see SPEC_FULL.md's Open Questions), which gets a
// fresh Metrics record rather than a reset one.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = Snapshot{}
	m.set = false
}
