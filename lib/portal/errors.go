package portal

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned (wrapped with the step) when the caller's context
// was cancelled mid lookup. It is never a *NavigationError.
var ErrCancelled = errors.New("lookup cancelled")

// NavigationError means a required page interaction did not complete within
// its bounded wait: network stall, layout change, missing element.
type NavigationError struct {
	Step string
	Err  error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed at %s: %v", e.Step, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// ExtractionError is a result row that was present but could not be parsed.
// It is attached to the result, the row is omitted.
type ExtractionError struct {
	Row    int
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

type cancelledError struct {
	step string
	err  error
}

func (e cancelledError) Error() string {
	return fmt.Sprintf("cancelled at %s: %v", e.step, e.err)
}

func (e cancelledError) Is(target error) bool {
	return target == ErrCancelled
}

func (e cancelledError) Unwrap() error {
	return e.err
}

const (
	unavailableMessage = "could not retrieve data — check date range or try again"
	cancelledMessage   = "lookup was cancelled"
)

// UserMessage is what a caller should show a person for an aborted lookup.
// A date outside the published window looks the same as an outage from here,
// so navigation failures all share one message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrCancelled) {
		return cancelledMessage
	}
	return unavailableMessage
}
