package service

import (
	"strings"
	"sync"
)

// stampedeTracker counts cold fetches in flight per location. It only observes; requests
// are never blocked or merged.
type stampedeTracker struct {
	mu       sync.Mutex
	inFlight map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{inFlight: make(map[string]int)}
}

// RecordMiss registers a cold fetch for key and returns how many are now in flight.
// Pair every call with RecordHit.
func (st *stampedeTracker) RecordMiss(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.inFlight[key]++
	return st.inFlight[key]
}

// RecordHit marks one cold fetch for key as finished.
func (st *stampedeTracker) RecordHit(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.inFlight[key] <= 1 {
		delete(st.inFlight, key)
		return
	}
	st.inFlight[key]--
}

// normalizeLocation folds case and surrounding space so "Paris" and " paris" share a key.
func normalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}
