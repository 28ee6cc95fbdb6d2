package assumption

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them through errors.Is so callers
// can branch on the class without caring about the details.
var (
	ErrInvalidHorizon    = errors.New("invalid horizon")
	ErrInvalidInputValue = errors.New("invalid input value")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrUnknownSeries     = errors.New("unknown series")
	ErrUnknownStream     = errors.New("unknown stream")
)

// HorizonError reports a horizon that cannot be resolved into periods.
type HorizonError struct {
	Value int
	Mode  PeriodMode
}

func (e *HorizonError) Error() string {
	if !e.Mode.Valid() {
		return fmt.Sprintf("invalid horizon: unknown period mode %q", string(e.Mode))
	}
	return fmt.Sprintf("invalid horizon: %d (must be a positive integer)", e.Value)
}

func (e *HorizonError) Is(target error) bool { return target == ErrInvalidHorizon }

// InvalidInputError names the payload field that held a non-finite number.
type InvalidInputError struct {
	Field string
	Value float64
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input value for %s: %v", e.Field, e.Value)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInputValue }

// IndexError reports a write outside the currently resolved bucket or month range.
type IndexError struct {
	Target string // series key or stream id
	Index  int
	Len    int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range for %s (len %d)", e.Index, e.Target, e.Len)
}

func (e *IndexError) Is(target error) bool { return target == ErrIndexOutOfRange }

// FieldOf returns the offending field name when err is an InvalidInputError.
func FieldOf(err error) (string, bool) {
	var inv *InvalidInputError
	if errors.As(err, &inv) {
		return inv.Field, true
	}
	return "", false
}
