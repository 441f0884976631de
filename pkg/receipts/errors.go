package receipts

import (
	"errors"
	"fmt"
)

var (
	// ErrStopRule marks an unrecoverable integrity failure. Only a top-level
	// driver may convert it into a failed unit of work.
	ErrStopRule = errors.New("stoprule")
	// ErrSinkWrite wraps any failure to append a receipt to its sink.
	ErrSinkWrite = errors.New("receipt sink write failed")
	// ErrHashMismatch is wrapped by the hash-mismatch StopRule.
	ErrHashMismatch = errors.New("payload hash mismatch")
	// ErrUnverifiedClaim is wrapped by the unverified-claim StopRule.
	ErrUnverifiedClaim = errors.New("unverified claim")
	// ErrInvalidPayload is returned when a payload cannot be canonicalised.
	ErrInvalidPayload = errors.New("invalid receipt payload")
)

// StopRuleError is the fatal signal raised after a StopRule anomaly has
// been recorded.
type StopRuleError struct {
	Metric  string
	Message string
	Anomaly *Receipt
	cause   error
}

func (e *StopRuleError) Error() string {
	return fmt.Sprintf("stoprule %s: %s", e.Metric, e.Message)
}

// Unwrap exposes ErrStopRule and the specific cause to errors.Is.
func (e *StopRuleError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrStopRule}
	}
	return []error{ErrStopRule, e.cause}
}

// IsStopRule reports whether err carries a StopRule signal.
func IsStopRule(err error) bool {
	return errors.Is(err, ErrStopRule)
}
