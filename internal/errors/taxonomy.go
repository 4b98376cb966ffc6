package errors

import (
	"errors"
	"fmt"
)

// ModelInvocationError marks a failed provider call. Round 0 is the initial
// draft, which is fatal to the request; refinement rounds (1+) fall back to
// the last accepted draft instead.
type ModelInvocationError struct {
	Err   error
	Round int
}

func (e *ModelInvocationError) Error() string {
	if e.Round == 0 {
		return fmt.Sprintf("model invocation failed: %v", e.Err)
	}
	return fmt.Sprintf("model invocation failed on refinement round %d: %v", e.Round, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}

// NewModelInvocationError wraps a provider failure with the round it occurred in.
func NewModelInvocationError(round int, err error) *ModelInvocationError {
	return &ModelInvocationError{Err: err, Round: round}
}

// IsModelInvocation reports whether err is (or wraps) a provider call failure.
func IsModelInvocation(err error) bool {
	var invErr *ModelInvocationError
	return errors.As(err, &invErr)
}

// NewRetrievalDegraded records a similarity search that failed or timed out.
// The pipeline recovers with an empty candidate list; the value exists for logs
// and degradation accounting, never to abort a request.
func NewRetrievalDegraded(collection string, cause error) *DegradedError {
	return &DegradedError{
		Err:     cause,
		Message: fmt.Sprintf("retrieval degraded: %s search unavailable, continuing with empty candidates", collection),
	}
}

// NewPlanningFallback records that the planner dropped to the static keyword
// table. The plan is still produced with lowered confidence.
func NewPlanningFallback(cause error) *DegradedError {
	return &DegradedError{
		Err:     cause,
		Message: "planning fallback: intent-only tool approval from keyword table",
	}
}

// NewSupervisorWrite records a dropped supervisor write. Observability only;
// must never fail the request that triggered it.
func NewSupervisorWrite(cause error) *DegradedError {
	return &DegradedError{
		Err:     cause,
		Message: "supervisor write dropped",
	}
}
