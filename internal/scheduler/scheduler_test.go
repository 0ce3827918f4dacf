package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingWarmer struct {
	mu        sync.Mutex
	calls     int
	locations []string
	err       error
}

func (w *countingWarmer) Warm(ctx context.Context, locations []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.locations = locations
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("run context has no deadline")
	}
	return w.err
}

func (w *countingWarmer) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestScheduler_RunsPeriodically(t *testing.T) {
	warmer := &countingWarmer{}
	s := New(warmer, []string{"Paris", "London"}, 20*time.Millisecond, time.Second, zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return warmer.Calls() >= 2 })

	warmer.mu.Lock()
	defer warmer.mu.Unlock()
	if len(warmer.locations) != 2 || warmer.locations[0] != "Paris" {
		t.Errorf("locations = %v, want [Paris London]", warmer.locations)
	}
}

func TestScheduler_StopHaltsRuns(t *testing.T) {
	warmer := &countingWarmer{}
	s := New(warmer, []string{"Paris"}, 20*time.Millisecond, time.Second, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, func() bool { return warmer.Calls() >= 1 })
	s.Stop()

	after := warmer.Calls()
	time.Sleep(100 * time.Millisecond)
	if got := warmer.Calls(); got > after+1 {
		t.Errorf("calls grew from %d to %d after Stop", after, got)
	}
}

func TestScheduler_LogsFailedRuns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	warmer := &countingWarmer{err: errors.New("upstream down")}
	s := New(warmer, []string{"Paris"}, 20*time.Millisecond, time.Second, zap.New(core))
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return logs.FilterMessage("scheduled warming failed").Len() >= 1 })
}

func TestScheduler_NothingToSchedule(t *testing.T) {
	tests := []struct {
		name      string
		locations []string
		interval  time.Duration
	}{
		{"no locations", nil, time.Minute},
		{"zero interval", []string{"Paris"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			warmer := &countingWarmer{}
			s := New(warmer, tc.locations, tc.interval, 0, nil)
			if err := s.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			defer s.Stop()
			time.Sleep(30 * time.Millisecond)
			if warmer.Calls() != 0 {
				t.Errorf("calls = %d, want 0", warmer.Calls())
			}
		})
	}
}
