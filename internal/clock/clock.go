package clock

import (
	"sync"
	"time"
)

// Clock supplies the time readings used for last-seen bookkeeping and expiry.
// The wall clock implementation relies on the monotonic reading embedded in
// time.Time, so Sub-based age checks are immune to wall clock adjustments.
type Clock interface {
	Now() time.Time
}

// Wall is the production clock backed by time.Now.
type Wall struct{}

func (Wall) Now() time.Time {
	return time.Now()
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a Fake clock starting at an arbitrary fixed instant.
func NewFake() *Fake {
	return &Fake{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
