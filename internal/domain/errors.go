package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionActive is returned when a new generation is started while a
	// live session is still in the store.
	ErrSessionActive = errors.New("a generation session is already in flight")
	// ErrNoSession is returned by operations that need a stored session when
	// none exists.
	ErrNoSession = errors.New("no generation session in flight")
)

// TransportError wraps a network-level failure where no usable response was
// received. During polling it is absorbed as transient; during initiation it
// is terminal.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerFailure is a terminal failure reported by the service, either as an
// explicit failed job status or as a non-2xx non-credit response.
type ServerFailure struct {
	StatusCode int
	Message    string
}

func (e *ServerFailure) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("server failure (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server failure: %s", e.Message)
}

// CreditError is a terminal billing failure. It carries enough structure for
// a caller to render a purchase-credits path without re-parsing error text.
type CreditError struct {
	Required            int
	Available           int
	Shortfall           int
	PercentageAvailable int
}

func (e *CreditError) Error() string {
	return fmt.Sprintf("insufficient credits: %d required, %d available (short %d)",
		e.Required, e.Available, e.Shortfall)
}

// TimeoutError indicates the wall-clock budget for a session was exhausted
// without a terminal status from the service.
type TimeoutError struct{}

func (e *TimeoutError) Error() string {
	return "generation timed out before the service reported a terminal status"
}
