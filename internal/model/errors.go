package model

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds surfaced by the engine. Wrapped errors carry the bar, field or
// parameter involved; match them with errors.Is.
var (
	ErrInsufficientData   = errors.New("insufficient data")
	ErrMissingField       = errors.New("missing field")
	ErrInvalidSeries      = errors.New("invalid series")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrConfiguration      = errors.New("configuration error")
)

// FieldError reports a structural problem with one input bar.
type FieldError struct {
	Symbol string
	Index  int // -1 when the whole series is affected
	TS     time.Time
	Field  string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: series %q: %s", e.Err, e.Symbol, e.Field)
	}
	return fmt.Sprintf("%s: series %q bar %d (%s): %s",
		e.Err, e.Symbol, e.Index, e.TS.Format("2006-01-02"), e.Field)
}

func (e *FieldError) Unwrap() error { return e.Err }

// InvariantError reports an event that is out of phase with the position.
type InvariantError struct {
	Index    int
	TS       time.Time
	Action   Action
	Position PositionState
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s event at index %d (%s) while %s",
		ErrInvariantViolation, e.Action, e.Index, e.TS.Format("2006-01-02"), e.Position)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// ConfigError reports a rejected configuration parameter.
type ConfigError struct {
	Param string
	Value any
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrConfiguration, e.Param, e.Value, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }
