// services/errors.go
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrSendQuotaExceeded means a rule's lifetime or daily ceiling blocked
	// a reservation. Not a failure; the rule simply stops for now.
	ErrSendQuotaExceeded = errors.New("send quota exceeded")

	// ErrDuplicateAttempt means an open attempt already exists for the
	// (rule, customer) pair. The existing row is authoritative.
	ErrDuplicateAttempt = errors.New("open contact attempt already exists")

	// ErrAttemptNotOpen means a transition was requested on an attempt that
	// already left the queued/pending states.
	ErrAttemptNotOpen = errors.New("contact attempt is not open")
)

// ConfigurationError rejects inconsistent rule definitions at admin-write
// time, before they can ever reach scheduling.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid rule configuration: %s %s", e.Field, e.Reason)
}
