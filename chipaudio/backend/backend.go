package backend

import (
	"context"
	"errors"
	"time"

	"github.com/valerio/go-chipaudio/chipaudio/audio"
	"github.com/valerio/go-chipaudio/chipaudio/timing"
)

// Backend plays or records the output of a Provider.
type Backend interface {
	// Init configures the backend. It must be called before Run.
	Init(config Config) error

	// Run pulls audio from p until ctx is cancelled, the configured
	// duration has elapsed or Config.Done reports true.
	Run(ctx context.Context, p audio.Provider) error

	// Cleanup releases resources when shutting down.
	Cleanup() error
}

// ErrUnavailable is returned by backends compiled out of the binary.
var ErrUnavailable = errors.New("backend not available in this build")

// Config holds configuration for backends
type Config struct {
	Title string
	// Duration bounds playback. Zero plays until stopped.
	Duration time.Duration
	// Gain is a linear output scale. Zero means 1.
	Gain float64
	// Rate is the device rate. Zero uses the provider's rate.
	Rate int
	// Done, when set, is polled to end playback early, e.g. at song end.
	Done func() bool
	// Status, when set, supplies a one-line position readout for monitors.
	Status func() string

	Callbacks Callbacks
}

// Callbacks allows backends to communicate with the driver.
type Callbacks struct {
	// OnQuit is called when the backend stops on its own (key press,
	// end of song).
	OnQuit func()
}

// Pauser is implemented by backends that can hold playback.
type Pauser interface {
	SetPaused(paused bool)
	Paused() bool
}

// Normalize fills in config defaults.
func Normalize(c Config) Config {
	if c.Gain == 0 {
		c.Gain = 1
	}
	return c
}

// Frames returns the frame budget for rate, 0 meaning unbounded.
func (c Config) Frames(rate int) int {
	return timing.DurationToFrames(c.Duration, rate)
}
