package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrProviderFailure  = errors.New("provider failure")
	ErrMalformedSeries  = errors.New("malformed bar series")
	ErrNoData           = errors.New("no bars available")
)

type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d bars, need at least %d", e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

type ParameterError struct {
	Name   string
	Value  any
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Name, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

// ProviderError marks a failure to obtain a usable series for Symbol.
// errors.Is matches both ErrProviderFailure and the wrapped cause.
type ProviderError struct {
	Symbol string
	Err    error
}

func NewProviderError(symbol string, err error) error {
	return &ProviderError{Symbol: symbol, Err: err}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider failure for %s: %v", e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() []error { return []error{ErrProviderFailure, e.Err} }
