package clock

import "time"

// Clock abstracts wall-clock time. Session expiry, roll timestamps and
// the escrow sweep cutoff all read through it so tests can control time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time in UTC
func (c *RealClock) Now() time.Time {
	return time.Now().UTC()
}
