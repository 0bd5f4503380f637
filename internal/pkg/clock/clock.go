package clock

import "time"

// Clocker is the single source of wall-clock time for the service. Code that
// needs the current time takes a Clocker so tests can pin it.
type Clocker interface {
	Now() time.Time
}

// TimeClocker reads time from the operating system.
type TimeClocker struct{}

// New returns the production clock.
func New() *TimeClocker {
	return &TimeClocker{}
}

// Now reports the current system time.
func (*TimeClocker) Now() time.Time { return time.Now() }
