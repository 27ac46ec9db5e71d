package vitals

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// ErrSchema indicates malformed input: a required field is missing or
	// cannot be parsed into the vitals data model.
	ErrSchema = errors.New("schema violation")

	// ErrInsufficientData indicates too few rows for a statistical
	// operation (covariance estimation, k-NN scoring, a t-test).
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// ErrRangeViolation indicates a record broke a clinical invariant after
	// constraint enforcement ran. Should be unreachable; raised defensively
	// because reaching it means a logic defect, not bad input.
	ErrRangeViolation = errors.New("range invariant violated after enforcement")
)

// NewSchemaError builds a schema error naming the offending field
func NewSchemaError(field, format string, args ...interface{}) error {
	return fmt.Errorf("%w: field %s: %s", ErrSchema, field, fmt.Sprintf(format, args...))
}

// NewInsufficientDataError reports which operation lacked rows and how many it had
func NewInsufficientDataError(operation string, have, need int) error {
	return fmt.Errorf("%w: %s requires %d rows, have %d", ErrInsufficientData, operation, need, have)
}

// NewRangeViolationError identifies the record and field that broke an invariant
func NewRangeViolationError(subjectID string, visit Visit, field string, value float64) error {
	return fmt.Errorf("%w: subject %s visit %s field %s value %g", ErrRangeViolation, subjectID, visit, field, value)
}

// IsSchemaError reports whether err is a schema violation
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrSchema)
}

// IsInsufficientDataError reports whether err indicates too few rows
func IsInsufficientDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}
