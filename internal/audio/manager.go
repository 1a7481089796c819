package audio

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/jmylchreest/retrotoast/internal/config"
)

// backend is the subset of Player the manager drives.
type backend interface {
	Play(path string) error
	PlayChime() error
	SetVolume(volume float64)
	Close()
}

// Manager queues notification sounds and plays them off the caller's
// goroutine. It satisfies display.SoundPlayer.
type Manager struct {
	mu     sync.RWMutex
	logger *slog.Logger
	player backend
	config *config.Config

	// Called when the speaker cannot be used at all
	bell func() error

	queue   chan string
	done    chan struct{}
	running bool
}

// NewManager creates an audio manager backed by the system speaker.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return newManager(cfg, NewPlayer(logger), logger)
}

func newManager(cfg *config.Config, player backend, logger *slog.Logger) *Manager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	m := &Manager{
		logger: logger,
		player: player,
		config: cfg,
		bell: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
	}
	player.SetVolume(float64(cfg.Audio.Volume) / 100.0)
	return m
}

// Start runs the playback loop until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.queue = make(chan string, 8)
	m.done = make(chan struct{})
	queue, done := m.queue, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case path, ok := <-queue:
				if !ok {
					return
				}
				m.playNow(path)
			}
		}
	}()

	m.logger.Debug("audio manager started")
}

// Stop ends the playback loop and releases the speaker.
func (m *Manager) Stop() {
	m.mu.Lock()
	running := m.running
	if running {
		m.running = false
		close(m.queue)
	}
	done := m.done
	m.mu.Unlock()

	if running {
		<-done
	}
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}

// Play queues a sound. An empty path selects the configured sound, or the
// built-in chime when none is configured. Play never blocks; when the queue
// is full the sound is dropped.
func (m *Manager) Play(path string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.config.Audio.Enabled {
		return
	}
	if !m.running {
		m.logger.Debug("audio manager not started, dropping sound")
		return
	}

	select {
	case m.queue <- path:
	default:
		m.logger.Debug("sound queue full, dropping sound", "path", path)
	}
}

func (m *Manager) playNow(path string) {
	if path == "" {
		m.mu.RLock()
		path = m.config.SoundPath()
		m.mu.RUnlock()
	} else {
		path = config.ExpandPath(path)
	}

	var err error
	if path == "" {
		err = m.player.PlayChime()
	} else if err = m.player.Play(path); err != nil {
		m.logger.Warn("failed to play sound, using chime", "path", path, "error", err)
		err = m.player.PlayChime()
	}
	if err == nil {
		return
	}

	m.logger.Debug("speaker unavailable, ringing bell", "error", err)
	if err := m.bell(); err != nil {
		m.logger.Warn("failed to ring bell", "error", err)
	}
}

// UpdateConfig applies a reloaded configuration.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	m.player.SetVolume(float64(cfg.Audio.Volume) / 100.0)
	m.logger.Debug("audio manager config updated", "enabled", cfg.Audio.Enabled, "volume", cfg.Audio.Volume)
}
