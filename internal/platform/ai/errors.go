package ai

import "fmt"

// Interpretation failure kinds.
const (
	KindAuth        = "auth"
	KindTimeout     = "timeout"
	KindRateLimited = "rate_limited"
	KindMalformed   = "malformed"
	KindUpstream    = "upstream"
)

// InterpretationError is returned when the model cannot produce a usable
// interpretation. Kind tells callers whether the failure was credential,
// capacity, deadline, contract, or upstream related.
type InterpretationError struct {
	Kind  string
	Cause error
}

func (e *InterpretationError) Error() string {
	return fmt.Sprintf("ai interpretation failed (%s): %v", e.Kind, e.Cause)
}

func (e *InterpretationError) Unwrap() error {
	return e.Cause
}

func newError(kind string, cause error) *InterpretationError {
	return &InterpretationError{Kind: kind, Cause: cause}
}
