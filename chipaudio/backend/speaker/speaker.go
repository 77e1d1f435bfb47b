//go:build !headless

package speaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gopxl/beep/v2"

	"github.com/valerio/go-chipaudio/chipaudio/audio"
	"github.com/valerio/go-chipaudio/chipaudio/backend"
)

// bufferSize is the device buffer length requested from oto.
const bufferSize = 50 * time.Millisecond

// pollInterval is how often Run checks for the end of playback.
const pollInterval = 20 * time.Millisecond

// Backend plays through the system audio device. oto allows a single
// context per process, so only one Backend may be initialized.
type Backend struct {
	config backend.Config

	ctx    *oto.Context
	player *oto.Player

	mu   sync.Mutex
	ctrl *beep.Ctrl
}

var (
	_ backend.Backend = (*Backend)(nil)
	_ backend.Pauser  = (*Backend)(nil)
)

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Init(config backend.Config) error {
	b.config = backend.Normalize(config)
	if b.config.Rate <= 0 {
		return fmt.Errorf("speaker: device rate must be set")
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   b.config.Rate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return fmt.Errorf("speaker: opening audio device: %w", err)
	}
	<-ready
	b.ctx = ctx

	slog.Info("Audio device ready", "rate", b.config.Rate, "buffer", bufferSize)
	return nil
}

// Run plays p, resampled to the device rate, until ctx is cancelled, the
// duration elapses or Config.Done reports true.
func (b *Backend) Run(ctx context.Context, p audio.Provider) error {
	if b.ctx == nil {
		return fmt.Errorf("speaker: not initialized")
	}

	b.mu.Lock()
	b.ctrl = &beep.Ctrl{Streamer: audio.WithGain(audio.Resampled(p, b.config.Rate), b.config.Gain)}
	b.mu.Unlock()

	b.player = b.ctx.NewPlayer(audio.NewPCMReader(beep.StreamerFunc(b.stream)))
	b.player.Play()
	defer b.player.Close()

	var deadline <-chan time.Time
	if b.config.Duration > 0 {
		t := time.NewTimer(b.config.Duration)
		defer t.Stop()
		deadline = t.C
	}
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			slog.Debug("Playback duration reached", "duration", b.config.Duration)
			b.quit()
			return nil
		case <-poll.C:
			if b.config.Done != nil && b.config.Done() {
				slog.Info("Playback finished")
				b.quit()
				return nil
			}
			if err := b.player.Err(); err != nil {
				return fmt.Errorf("speaker: playback: %w", err)
			}
		}
	}
}

// stream serializes the device pull against pause toggles.
func (b *Backend) stream(samples [][2]float64) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctrl.Stream(samples)
}

func (b *Backend) SetPaused(paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctrl != nil {
		b.ctrl.Paused = paused
	}
}

func (b *Backend) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctrl != nil && b.ctrl.Paused
}

func (b *Backend) quit() {
	if b.config.Callbacks.OnQuit != nil {
		b.config.Callbacks.OnQuit()
	}
}

func (b *Backend) Cleanup() error {
	if b.ctx != nil {
		slog.Info("Closing audio device")
		if err := b.ctx.Suspend(); err != nil {
			return fmt.Errorf("speaker: suspending device: %w", err)
		}
	}
	return nil
}
