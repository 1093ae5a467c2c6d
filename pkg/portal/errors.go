package portal

import (
	"errors"
	"fmt"
)

// DiagnosticLimit caps the error text carried by a RecoveryError.
const DiagnosticLimit = 100

// ErrRecovery matches every *RecoveryError via errors.Is.
var ErrRecovery = errors.New("portal recovery failed")

// Step names a stage of the login flow.
type Step string

const (
	StepProfile    Step = "profile"
	StepLaunch     Step = "launch"
	StepNavigate   Step = "navigate"
	StepIdentifier Step = "identifier"
	StepSecret     Step = "secret"
	StepSubmit     Step = "submit"
	StepSettle     Step = "settle"
)

// RecoveryError reports the login step that did not complete in time.
type RecoveryError struct {
	Step Step
	Err  error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("recovery failed at %s: %s", e.Step, Truncate(e.Err.Error(), DiagnosticLimit))
}

func (e *RecoveryError) Unwrap() error {
	return e.Err
}

func (e *RecoveryError) Is(target error) bool {
	return target == ErrRecovery
}

// Truncate shortens s to at most limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
