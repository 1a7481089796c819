package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// ErrUnsupportedFormat is returned for sound files that are not WAV, OGG or MP3.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Sink receives a fully prepared stream. The default sink initialises the
// speaker on first use and hands the stream to it.
type Sink interface {
	Init(sr beep.SampleRate) error
	Play(s beep.Streamer)
	Close()
}

type speakerSink struct{}

func (speakerSink) Init(sr beep.SampleRate) error {
	return speaker.Init(sr, sr.N(100*time.Millisecond))
}

func (speakerSink) Play(s beep.Streamer) { speaker.Play(s) }

func (speakerSink) Close() { speaker.Close() }

// Player decodes sound files and plays them through a Sink.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger
	sink   Sink

	// Linear volume, 0.0 to 1.0
	volume float64

	initialized bool
	sampleRate  beep.SampleRate

	cache map[string]*cachedSound
	chime *beep.Buffer
}

// cachedSound holds a decoded sound and the file's mtime when it was decoded.
type cachedSound struct {
	buffer  *beep.Buffer
	modTime time.Time
}

// NewPlayer creates a player that outputs to the system speaker.
func NewPlayer(logger *slog.Logger) *Player {
	return NewPlayerWithSink(speakerSink{}, logger)
}

// NewPlayerWithSink creates a player that outputs to sink.
func NewPlayerWithSink(sink Sink, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}

	return &Player{
		logger:     logger,
		sink:       sink,
		volume:     1.0,
		sampleRate: chimeSampleRate,
		cache:      make(map[string]*cachedSound),
	}
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = min(max(volume, 0), 1)
}

// Volume returns the current volume.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Play plays a sound file. Decoded files are cached and re-read when the
// file on disk changes.
func (p *Player) Play(path string) error {
	buffer, err := p.Load(path)
	if err != nil {
		return err
	}
	return p.playBuffer(buffer)
}

// PlayChime plays the built-in two-tone chime.
func (p *Player) PlayChime() error {
	p.mu.Lock()
	if p.chime == nil {
		chime, err := Chime()
		if err != nil {
			p.mu.Unlock()
			return err
		}
		p.chime = chime
	}
	chime := p.chime
	p.mu.Unlock()

	return p.playBuffer(chime)
}

// Load decodes path into the cache and returns the buffer.
func (p *Player) Load(path string) (*beep.Buffer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat sound file: %w", err)
	}

	p.mu.Lock()
	cached, ok := p.cache[path]
	p.mu.Unlock()
	if ok && cached.modTime.Equal(info.ModTime()) {
		return cached.buffer, nil
	}
	if ok {
		p.logger.Debug("sound file changed, reloading", "path", path)
	}

	buffer, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[path] = &cachedSound{buffer: buffer, modTime: info.ModTime()}
	p.mu.Unlock()

	return buffer, nil
}

// Cached reports whether path has a decoded buffer in the cache.
func (p *Player) Cached(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cache[path]
	return ok
}

// ClearCache drops every decoded sound.
func (p *Player) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]*cachedSound)
}

// Close stops all playback and releases resources.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		p.sink.Close()
		p.initialized = false
	}
	p.cache = make(map[string]*cachedSound)
}

func decodeFile(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode sound: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	return buffer, nil
}

func (p *Player) ensureInitialized() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := p.sink.Init(p.sampleRate); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	p.initialized = true
	p.logger.Debug("speaker initialized", "sample_rate", p.sampleRate)
	return nil
}

func (p *Player) playBuffer(buffer *beep.Buffer) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}

	p.mu.Lock()
	volume := p.volume
	sampleRate := p.sampleRate
	p.mu.Unlock()

	var streamer beep.Streamer = buffer.Streamer(0, buffer.Len())
	if buffer.Format().SampleRate != sampleRate {
		streamer = beep.Resample(4, buffer.Format().SampleRate, sampleRate, streamer)
	}

	if volume < 1.0 {
		streamer = &effects.Volume{
			Streamer: streamer,
			Base:     10,
			Volume:   volumeToDecibels(volume) / 20,
			Silent:   volume == 0,
		}
	}

	p.sink.Play(streamer)
	return nil
}

// volumeToDecibels converts a linear volume (0-1) to decibels.
// 0.5 is about -6dB.
func volumeToDecibels(volume float64) float64 {
	if volume <= 0 {
		return -100
	}
	return 20 * math.Log10(volume)
}
