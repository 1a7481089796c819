package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes one compact JSON object per event.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes the event followed by a newline.
func (f *JSONFormatter) Format(w io.Writer, e Event) error {
	return json.NewEncoder(w).Encode(e)
}
