package player

import (
	"errors"
	"strings"
)

var (
	// ErrUnsupportedTiming is returned for SMPTE timed data.
	ErrUnsupportedTiming = errors.New("unsupported timing mode")
	// ErrZeroTicks is returned when ticks per quarter note is not positive.
	ErrZeroTicks = errors.New("zero ticks per quarter note")
	// ErrNegativeDelta is returned when player is advanced back in time.
	ErrNegativeDelta = errors.New("negative time delta")
)

// sendErrors wraps errors that might occur when multiple receivers
// are failing.
type sendErrors []error

func (e sendErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Unwrap allows errors.Is to match any of collected errors.
func (e sendErrors) Unwrap() []error {
	return e
}

// ret returns untyped nil if error list is empty.
func (e sendErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
