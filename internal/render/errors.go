package render

import "errors"

// ErrDegraded is matched by every *DegradedError.
var ErrDegraded = errors.New("render degraded")

// DegradedError reports that a frame was drawn with a fallback for part
// of the content. The frame returned with it is still complete.
type DegradedError struct {
	Message string
	Cause   error
}

func (e *DegradedError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *DegradedError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrDegraded) match any degraded render.
func (e *DegradedError) Is(target error) bool {
	return target == ErrDegraded
}
