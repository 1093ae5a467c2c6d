// Package status reports connectivity transitions and recovery outcomes to
// the user. Every transition and every recovery attempt produces a line.
package status

// Reporter receives connectivity and recovery events. Calls happen
// synchronously on the loop goroutine.
type Reporter interface {
	Listening()
	Transition(disconnected bool)
	RecoveryStarted()
	RecoverySucceeded()
	RecoveryFailed(err error)
}

// Multi forwards each event to every reporter in order.
type Multi []Reporter

// Listening forwards to every reporter.
func (m Multi) Listening() {
	for _, r := range m {
		r.Listening()
	}
}

// Transition forwards to every reporter.
func (m Multi) Transition(disconnected bool) {
	for _, r := range m {
		r.Transition(disconnected)
	}
}

// RecoveryStarted forwards to every reporter.
func (m Multi) RecoveryStarted() {
	for _, r := range m {
		r.RecoveryStarted()
	}
}

// RecoverySucceeded forwards to every reporter.
func (m Multi) RecoverySucceeded() {
	for _, r := range m {
		r.RecoverySucceeded()
	}
}

// RecoveryFailed forwards to every reporter.
func (m Multi) RecoveryFailed(err error) {
	for _, r := range m {
		r.RecoveryFailed(err)
	}
}
