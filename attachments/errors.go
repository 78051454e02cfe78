package attachments

import "fmt"

// OperationInFlightError is an error used to encode when an upload or
// deletion is triggered while one is already outstanding; the triggering
// control should have been disabled
type OperationInFlightError struct {
	Action string
}

// NewOperationInFlightError constructs a new OperationInFlightError
func NewOperationInFlightError(action string) *OperationInFlightError {
	return &OperationInFlightError{
		Action: action,
	}
}

func (e *OperationInFlightError) Error() string {
	return fmt.Sprintf("cannot %s: a previous %s is still in flight", e.Action, e.Action)
}
