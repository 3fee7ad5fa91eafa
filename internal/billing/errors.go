package billing

import (
	"errors"
	"fmt"
)

// ErrNoReading marks a meter that has no reading recorded for the requested
// period. Batch runs skip these meters instead of failing them.
var ErrNoReading = errors.New("no reading recorded for period")

// DataAccessError indicates a failure reading from or writing to the backing
// store. A catalog fetch failure is fatal for a billing run.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access (%s): %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// ValidationError rejects malformed input, such as negative amounts entered
// manually or a bad band configuration. The edit is rejected without mutating
// stored state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// CompositionError wraps a failure while composing a single bill.
type CompositionError struct {
	MeterID string
	Period  string
	Err     error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose bill for meter %s period %s: %v", e.MeterID, e.Period, e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }
