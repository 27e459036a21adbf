// Package race resolves which reporter delivered an event key first.
//
// A Tracker keeps the first arrival of every key it has seen. The first
// caller to reach the tracker's critical section for a key wins that key;
// later callers are told who won and by how much. Records are never
// corrected after the fact: if an event stamped earlier reaches the tracker
// later (scheduler or network jitter between the stamp and Observe), the
// earlier writer still wins and the late caller gets a zero delta with
// Verdict.Reordered set.
package race

import (
	"sync"
	"time"
)

// ArrivalRecord is the earliest known arrival of a key.
type ArrivalRecord struct {
	Reporter string
	At       time.Time
}

// Verdict is the outcome of racing one arrival against the stored record.
type Verdict struct {
	// First is true for exactly one Observe call per key.
	First bool
	// Winner and Delta are set when First is false.
	Winner string
	Delta  time.Duration
	// Reordered marks a losing arrival stamped before the stored winner.
	Reordered bool
}

// Tracker is safe for concurrent use.
type Tracker[K comparable] struct {
	mu      sync.Mutex
	records map[K]ArrivalRecord
}

// NewTracker creates an empty tracker.
func NewTracker[K comparable]() *Tracker[K] {
	return &Tracker[K]{
		records: make(map[K]ArrivalRecord),
	}
}

// Observe records that reporter saw key at the given instant. The instant
// should come from time.Now so that Sub uses the monotonic clock reading.
func (t *Tracker[K]) Observe(key K, reporter string, at time.Time) Verdict {
	t.mu.Lock()
	first, ok := t.records[key]
	if !ok {
		t.records[key] = ArrivalRecord{Reporter: reporter, At: at}
	}
	t.mu.Unlock()

	if !ok {
		return Verdict{First: true}
	}

	v := Verdict{Winner: first.Reporter, Delta: at.Sub(first.At)}
	if v.Delta < 0 {
		v.Delta = 0
		v.Reordered = true
	}
	return v
}

// Lookup returns the stored record for key.
func (t *Tracker[K]) Lookup(key K) (ArrivalRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[key]
	return r, ok
}

// Len returns the number of keys seen.
func (t *Tracker[K]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.records)
}

// Evict drops records whose first arrival is before the horizon and returns
// how many were removed. An evicted key that arrives again starts a new race.
func (t *Tracker[K]) Evict(before time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int
	for k, r := range t.records {
		if r.At.Before(before) {
			delete(t.records, k)
			n++
		}
	}
	return n
}
