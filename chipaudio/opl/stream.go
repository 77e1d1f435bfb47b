package opl

import (
	"log/slog"
	"sync"
)

// TimerFunc is called at the stream's callback rate with the stream lock
// held. It may write registers through c but must not call back into the
// Stream.
type TimerFunc func(c *Chip)

// StreamConfig describes the stream's output format.
type StreamConfig struct {
	Rate   int
	Clock  int
	Stereo bool
}

// DefaultCallbackFreq is the driver timer rate used when Start gets zero.
const DefaultCallbackFreq = 250

// fixed point shift of the samples-per-tick accumulator
const tickShift = 16

// Stream wraps a Chip with the locking and the timer callback a driver
// expects from an emulated card: the callback runs at a fixed wall-clock
// rate regardless of the output rate.
type Stream struct {
	mu sync.Mutex

	chip    *Chip
	stereo  bool
	running bool

	callback       TimerFunc
	baseFreq       int
	samplesPerTick uint32
	nextTick       uint32

	mono []int16
}

// NewStream creates a stopped stream over a fresh chip.
func NewStream(cfg StreamConfig) *Stream {
	return &Stream{
		chip:   NewChip(cfg.Clock, cfg.Rate),
		stereo: cfg.Stereo,
	}
}

// Start installs fn as the timer callback at hz calls per second and
// enables generation. fn may be nil for a free-running chip.
func (s *Stream) Start(fn TimerFunc, hz int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hz <= 0 {
		hz = DefaultCallbackFreq
	}
	s.callback = fn
	s.baseFreq = hz
	s.samplesPerTick = uint32((uint64(s.chip.rate) << tickShift) / uint64(hz))
	s.nextTick = 0
	s.running = true

	slog.Debug("opl stream started", "callback_hz", hz, "rate", s.chip.rate)
}

// Stop disables the callback and makes Generate return silence.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.callback = nil
}

// IsRunning reports whether the stream is generating.
func (s *Stream) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CallbackFreq returns the timer callback rate in Hz.
func (s *Stream) CallbackFreq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseFreq
}

// SampleRate returns the output rate in Hz.
func (s *Stream) SampleRate() int { return s.chip.rate }

// Channels returns 2 when the mono chip output is duplicated to stereo.
func (s *Stream) Channels() int {
	if s.stereo {
		return 2
	}
	return 1
}

// Do runs fn with exclusive access to the chip.
func (s *Stream) Do(fn func(c *Chip)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.chip)
}

// Write forwards a port write to the chip.
func (s *Stream) Write(port int, val byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chip.Write(port, val)
}

// Read forwards a port read to the chip.
func (s *Stream) Read(port int) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chip.Read(port)
}

// WriteReg writes a register directly.
func (s *Stream) WriteReg(reg, val int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chip.WriteReg(reg, val)
}

// Generate fills buf, interleaving timer callbacks, and returns len(buf).
// Stereo output is interleaved L/R.
func (s *Stream) Generate(buf []int16) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		clear(buf)
		return len(buf)
	}

	channels := 1
	if s.stereo {
		channels = 2
	}
	frames := len(buf) / channels
	out := buf

	if s.callback == nil {
		s.render(out, frames)
		return len(buf)
	}

	for frames > 0 {
		step := min(frames, int(s.nextTick>>tickShift))
		s.render(out, step)
		s.nextTick -= uint32(step) << tickShift

		if s.nextTick>>tickShift == 0 {
			s.callback(s.chip)
			s.nextTick += s.samplesPerTick
		}

		out = out[step*channels:]
		frames -= step
	}

	return len(buf)
}

func (s *Stream) render(out []int16, frames int) {
	if frames == 0 {
		return
	}
	if !s.stereo {
		s.chip.Generate(out[:frames])
		return
	}

	if cap(s.mono) < frames {
		s.mono = make([]int16, frames)
	}
	mono := s.mono[:frames]
	s.chip.Generate(mono)
	for i, v := range mono {
		out[2*i] = v
		out[2*i+1] = v
	}
}
