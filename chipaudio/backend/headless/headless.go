package headless

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/valerio/go-chipaudio/chipaudio/audio"
	"github.com/valerio/go-chipaudio/chipaudio/backend"
	"github.com/valerio/go-chipaudio/chipaudio/timing"
)

// DefaultMaxDuration bounds a render that has no duration of its own.
const DefaultMaxDuration = 10 * time.Minute

// progressInterval is how often, in output seconds, progress is logged.
const progressInterval = 10

// pacePeriod is the chunk length streamed per limiter tick.
const pacePeriod = 20 * time.Millisecond

// Backend renders to a WAV file instead of a device.
type Backend struct {
	config backend.Config
	path   string
	frames int

	realtime bool
	limiter  timing.Limiter
}

var _ backend.Backend = (*Backend)(nil)

func New(path string) *Backend {
	return &Backend{path: path}
}

// WithRealtime paces rendering to wall-clock time, so a file written from a
// live script takes as long as the audio it holds.
func (h *Backend) WithRealtime() *Backend {
	h.realtime = true
	return h
}

func (h *Backend) Init(config backend.Config) error {
	if h.path == "" {
		return fmt.Errorf("headless: no output path")
	}
	h.config = backend.Normalize(config)
	if h.config.Duration <= 0 {
		h.config.Duration = DefaultMaxDuration
	}

	slog.Info("Running headless mode",
		"out", h.path,
		"max_duration", h.config.Duration,
		"gain", h.config.Gain,
		"realtime", h.realtime)
	return nil
}

// Run renders until the duration is reached, Config.Done reports true or
// ctx is cancelled, then finalizes the file.
func (h *Backend) Run(ctx context.Context, p audio.Provider) error {
	f, err := os.Create(h.path)
	if err != nil {
		return fmt.Errorf("headless: creating output: %w", err)
	}
	defer f.Close()

	rate := p.SampleRate()
	limiter := h.pacer()
	limiter.Reset()

	done := h.config.Done
	s := audio.Until(audio.WithGain(audio.NewStreamer(p), h.config.Gain), func() bool {
		return ctx.Err() != nil || (done != nil && done())
	})
	s = beep.Take(h.config.Frames(rate), h.progress(s, rate, limiter))

	if err := audio.EncodeWAV(f, s, audio.Format(p)); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("headless: closing output: %w", err)
	}

	slog.Info("Headless render completed", "frames", h.frames, "length", timing.FramesToDuration(h.frames, rate), "out", h.path)
	if h.config.Callbacks.OnQuit != nil {
		h.config.Callbacks.OnQuit()
	}
	return ctx.Err()
}

// Frames returns the number of frames rendered by the last Run.
func (h *Backend) Frames() int {
	return h.frames
}

// pacer returns the limiter gating each chunk. Offline renders never block.
func (h *Backend) pacer() timing.Limiter {
	switch {
	case h.limiter != nil:
		return h.limiter
	case h.realtime:
		t := timing.NewTickerLimiter(pacePeriod)
		h.limiter = t
		return t
	default:
		return timing.NewNoOpLimiter()
	}
}

func (h *Backend) progress(s beep.Streamer, rate int, limiter timing.Limiter) beep.Streamer {
	h.frames = 0
	next := progressInterval * rate
	chunk := timing.DurationToFrames(pacePeriod, rate)
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if chunk > 0 && len(samples) > chunk {
			samples = samples[:chunk]
		}
		limiter.Wait()
		n, ok := s.Stream(samples)
		h.frames += n
		if h.frames >= next {
			slog.Debug("Render progress", "seconds", h.frames/rate)
			next += progressInterval * rate
		}
		return n, ok
	})
}

func (h *Backend) Cleanup() error {
	if t, ok := h.limiter.(*timing.TickerLimiter); ok {
		t.Stop()
	}
	return nil
}
