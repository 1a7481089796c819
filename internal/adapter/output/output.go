// Package output formats toast lifecycle events for the command line.
package output

import (
	"io"
	"time"

	"github.com/jmylchreest/retrotoast/internal/model"
)

// Kind names a lifecycle event.
type Kind string

const (
	KindShown  Kind = "shown"
	KindClosed Kind = "closed"
	KindError  Kind = "error"
)

// Event is one line of output.
type Event struct {
	Kind   Kind      `json:"event"`
	ID     model.ID  `json:"id,omitempty"`
	Ref    string    `json:"ref,omitempty"`
	Title  string    `json:"title,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
	// Shown is when the toast appeared; set on closed events.
	Shown time.Time `json:"shown,omitzero"`
}

// Formatter writes events.
type Formatter interface {
	Format(w io.Writer, e Event) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatJSON  FormatType = "json"
	FormatPlain FormatType = "plain"
)

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter()
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter()
	}
}
