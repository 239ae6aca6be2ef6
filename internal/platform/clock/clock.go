// Package clock provides an injectable time source so workflow
// transition timestamps are deterministic under test.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Func adapts a function to the Clock interface.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// System is the wall clock.
var System Clock = Func(time.Now)

// Fixed returns a Clock frozen at t.
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}
