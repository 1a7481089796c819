package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// PlainFormatter writes human-readable event lines.
type PlainFormatter struct{}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter() *PlainFormatter {
	return &PlainFormatter{}
}

// Format writes a single line describing the event.
func (f *PlainFormatter) Format(w io.Writer, e Event) error {
	var sb strings.Builder

	sb.WriteString(e.Time.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(string(e.Kind))

	if e.ID != "" {
		sb.WriteString(" " + string(e.ID))
	}
	if e.Ref != "" {
		sb.WriteString(fmt.Sprintf(" [%s]", e.Ref))
	}

	switch e.Kind {
	case KindShown:
		if e.Title != "" {
			sb.WriteString(fmt.Sprintf(" %q", e.Title))
		}
	case KindClosed:
		sb.WriteString(" (" + e.Reason)
		if !e.Shown.IsZero() {
			sb.WriteString(", open " + strings.TrimSpace(humanize.RelTime(e.Shown, e.Time, "", "")))
		}
		sb.WriteString(")")
	case KindError:
		sb.WriteString(": " + e.Error)
	}

	sb.WriteString("\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
