// Package clock abstracts wall-clock time behind the Clocker interface.
//
// Code expiry, resend cooldowns and attempt windows all hang off the current
// time, so the use cases never call time.Now directly; they read the injected
// Clocker, and tests substitute a frozen one.
package clock
