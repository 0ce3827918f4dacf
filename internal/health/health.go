// Package health tracks request outcomes and the shutdown flag that together decide the
// status reported by /health.
package health

import (
	"sync"
	"sync/atomic"
	"time"
)

// Status values reported by Monitor.Status, in precedence order.
const (
	StatusShuttingDown = "shutting-down"
	StatusDegraded     = "degraded"
	StatusHealthy      = "healthy"
)

// retention bounds how long outcomes are kept; windows longer than this see only retained data.
const retention = 5 * time.Minute

// Tracker keeps sliding windows of outcome timestamps.
type Tracker struct {
	mu           sync.Mutex
	successTimes []time.Time
	errorTimes   []time.Time
	deniedTimes  []time.Time
	now          func() time.Time
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// RecordSuccess records a request that completed without an upstream or storage fault.
func (t *Tracker) RecordSuccess() { t.record(&t.successTimes) }

// RecordError records a request that failed on the upstream or storage side.
func (t *Tracker) RecordError() { t.record(&t.errorTimes) }

// RecordDenied records a rate-limit denial (429).
func (t *Tracker) RecordDenied() { t.record(&t.deniedTimes) }

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// ErrorRate returns (errorCount, totalCount) within the window.
// Denials are excluded from both counts.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errCount := countSince(t.errorTimes, cutoff)
	return errCount, errCount + countSince(t.successTimes, cutoff)
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.deniedTimes, t.now().Add(-window))
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
	prune(&t.deniedTimes)
}

// Monitor combines the shutdown flag with the error rate of a Tracker.
type Monitor struct {
	tracker         *Tracker
	shuttingDown    atomic.Bool
	window          time.Duration
	degradedPercent float64
}

// NewMonitor reports degraded when more than degradedPercent of the requests in window
// failed. A non-positive percentage disables degraded detection.
func NewMonitor(tracker *Tracker, window time.Duration, degradedPercent float64) *Monitor {
	return &Monitor{tracker: tracker, window: window, degradedPercent: degradedPercent}
}

// Tracker returns the outcome tracker the monitor reads.
func (m *Monitor) Tracker() *Tracker { return m.tracker }

// Window returns the error-rate window.
func (m *Monitor) Window() time.Duration { return m.window }

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT is received.
func (m *Monitor) SetShuttingDown(v bool) { m.shuttingDown.Store(v) }

// IsShuttingDown reports whether the process is draining.
func (m *Monitor) IsShuttingDown() bool { return m.shuttingDown.Load() }

// Status returns StatusShuttingDown, StatusDegraded or StatusHealthy, in that precedence.
func (m *Monitor) Status() string {
	if m.IsShuttingDown() {
		return StatusShuttingDown
	}
	if m.degradedPercent > 0 {
		errs, total := m.tracker.ErrorRate(m.window)
		if total > 0 && float64(errs)*100/float64(total) > m.degradedPercent {
			return StatusDegraded
		}
	}
	return StatusHealthy
}
