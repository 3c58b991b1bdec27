package workflow

import "time"

// Clock abstracts wall-clock time so offer-expiry guards are testable.
// There are no timers anywhere in the core: expiry is a pure function of
// Now() compared against a stored field, evaluated lazily on read/write.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
