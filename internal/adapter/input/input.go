// Package input decodes notification requests from external sources.
package input

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/retrotoast/internal/model"
)

// Op is the kind of request carried by a Command.
type Op string

const (
	// OpNotify shows a new toast. It is the default when op is omitted.
	OpNotify Op = "notify"
	// OpClose retires the toast with the given id.
	OpClose Op = "close"
	// OpCloseAll retires every live toast.
	OpCloseAll Op = "close_all"
)

// Command is one decoded request.
type Command struct {
	Op Op
	// Ref is an opaque caller token echoed back in events.
	Ref string
	// ID names the toast for OpClose.
	ID model.ID
	// Notification is set for OpNotify. IconPath is resolved by the caller.
	Notification model.Notification
	IconPath     string
}

// AdapterError represents a request that could not be decoded.
type AdapterError struct {
	Source  string
	Line    int
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	msg := fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Message)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// sanitizeString replaces control characters other than newline and tab.
func sanitizeString(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\t' {
			result.WriteRune(' ')
		} else {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
