package display

import "errors"

// ErrPlatformUnavailable is wrapped by Submit errors when the platform
// refused to create the toast's window or timer.
var ErrPlatformUnavailable = errors.New("platform unavailable")

// DisplayError represents a display-related error.
type DisplayError struct {
	Message string
	Cause   error
}

func (e *DisplayError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *DisplayError) Unwrap() error {
	return e.Cause
}
