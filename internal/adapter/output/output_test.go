package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)

func TestPlainFormatter(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		expected string
	}{
		{
			name:     "shown",
			event:    Event{Kind: KindShown, ID: "01HV", Ref: "r1", Title: "Build", Time: at},
			expected: "12:00:05 shown 01HV [r1] \"Build\"\n",
		},
		{
			name:     "closed",
			event:    Event{Kind: KindClosed, ID: "01HV", Reason: "expired", Time: at, Shown: at.Add(-5 * time.Second)},
			expected: "12:00:05 closed 01HV (expired, open 5 seconds)\n",
		},
		{
			name:     "closed without shown time",
			event:    Event{Kind: KindClosed, ID: "01HV", Reason: "dismissed", Time: at},
			expected: "12:00:05 closed 01HV (dismissed)\n",
		},
		{
			name:     "error",
			event:    Event{Kind: KindError, Ref: "r2", Error: "platform unavailable", Time: at},
			expected: "12:00:05 error [r2]: platform unavailable\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewFormatter(FormatPlain).Format(&buf, tt.event))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(FormatJSON)
	require.NoError(t, f.Format(&buf, Event{Kind: KindShown, ID: "01HV", Ref: "r1", Time: at}))
	require.NoError(t, f.Format(&buf, Event{Kind: KindClosed, ID: "01HV", Reason: "expired", Time: at, Shown: at}))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "shown", first["event"])
	assert.Equal(t, "r1", first["ref"])
	assert.NotContains(t, first, "shown")
	assert.NotContains(t, first, "reason")

	var second Event
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, KindClosed, second.Kind)
	assert.Equal(t, "expired", second.Reason)
	assert.True(t, second.Shown.Equal(at))
}
