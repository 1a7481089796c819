package audio

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/generators"
)

const chimeSampleRate = beep.SampleRate(44100)

// chimeNotes is the built-in notification sound: a rising fifth.
var chimeNotes = []struct {
	freq float64
	dur  time.Duration
}{
	{659.25, 90 * time.Millisecond}, // E5
	{987.77, 160 * time.Millisecond}, // B5
}

// Chime renders the built-in notification sound into a buffer.
func Chime() (*beep.Buffer, error) {
	sr := chimeSampleRate
	parts := make([]beep.Streamer, 0, 2*len(chimeNotes))

	for _, note := range chimeNotes {
		tone, err := generators.SineTone(sr, note.freq)
		if err != nil {
			return nil, fmt.Errorf("failed to generate chime tone: %w", err)
		}
		parts = append(parts,
			&effects.Gain{Streamer: beep.Take(sr.N(note.dur), tone), Gain: -0.7},
			beep.Silence(sr.N(20*time.Millisecond)),
		)
	}

	buffer := beep.NewBuffer(beep.Format{SampleRate: sr, NumChannels: 2, Precision: 2})
	buffer.Append(beep.Seq(parts...))
	return buffer, nil
}
