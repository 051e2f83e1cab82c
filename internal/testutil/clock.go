package testutil

import "time"

// FixedClock always returns the same time, making stage output deterministic.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
