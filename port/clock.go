package port

import "time"

// TimeoutClock measures one receive wait phase.
//
// It is re-armed at the start of every wait phase and polled by the receive
// loop. Once expired it stays expired until re-armed.
type TimeoutClock struct {
	now     func() time.Time
	start   time.Time
	timeout time.Duration
}

// NewTimeoutClock creates a disarmed clock reading time from now.
func NewTimeoutClock(now func() time.Time) *TimeoutClock {
	if now == nil {
		now = time.Now
	}

	return &TimeoutClock{now: now}
}

// Arm starts a new wait phase lasting d.
func (c *TimeoutClock) Arm(d time.Duration) {
	c.start = c.now()
	c.timeout = d
}

// Elapsed returns the time since the clock was last armed. If the time source
// went backwards the phase restarts from the current instant.
func (c *TimeoutClock) Elapsed() time.Duration {
	now := c.now()
	elapsed := now.Sub(c.start)
	if elapsed < 0 {
		c.start = now
		return 0
	}

	return elapsed
}

// Expired reports whether the armed duration has passed.
func (c *TimeoutClock) Expired() bool {
	if c.Elapsed() > c.timeout {
		c.timeout = 0
		return true
	}

	return false
}

// Timeout returns the currently armed duration.
func (c *TimeoutClock) Timeout() time.Duration {
	return c.timeout
}
