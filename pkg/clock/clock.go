package clock

import (
	"sync"
	"time"
)

// Clock supplies the current wall-clock time in UTC. Readings carry no
// monotonic component; a stepped system clock can move them backwards.
type Clock interface {
	Now() time.Time
}

// Precision is the resolution of persisted timestamps (Postgres TIMESTAMPTZ).
const Precision = time.Microsecond

// System reads the wall clock, truncated to Precision.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time {
	return time.Now().UTC().Truncate(Precision)
}

// Fixed always reports the same instant.
type Fixed time.Time

// Now implements Clock.
func (f Fixed) Now() time.Time {
	return time.Time(f).UTC()
}

// Manual is a settable clock for tests and tooling.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual builds a Manual clock starting at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

// Now implements Clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward. Negative durations are ignored so the
// clock never goes backwards.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.now = m.now.Add(d)
	}
	return m.now
}

// Set moves the clock to t when t is not before the current reading.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t = t.UTC()
	if t.After(m.now) {
		m.now = t
	}
}
