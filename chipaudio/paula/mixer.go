// Package paula emulates the four DMA sound channels of the Amiga custom
// chip and the analog filter stage behind them.
// Reference: http://amigadev.elowar.com/read/ADCD_2.1/Hardware_Manual_guide/node00DE.html
package paula

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/valerio/go-chipaudio/chipaudio/frac"
)

// Interrupter is the driving component (a tracker or script player) that
// updates voice state between chunks of generated samples.
// Interrupt runs on the audio thread with the mixer lock held, so it must
// only touch the mixer through v and must not block.
type Interrupter interface {
	Interrupt(v *Voices)
}

// InterruptFunc adapts a plain function to Interrupter.
type InterruptFunc func(v *Voices)

// Interrupt calls f(v).
func (f InterruptFunc) Interrupt(v *Voices) { f(v) }

// Config describes the output format and chip timing.
type Config struct {
	Stereo bool
	// Rate is the output sample rate in Hz. Defaults to 44100.
	Rate int
	// InterruptFreq is the number of output frames between interrupts.
	// Zero means once every Rate frames.
	InterruptFreq int
	FilterMode    FilterMode
	// PeriodScaleDivisor scales periods for formats with non-standard
	// period units. Zero means 1.
	PeriodScaleDivisor int
	// Clock is the period countdown clock in Hz. Zero means PAL.
	Clock int
}

const defaultRate = 44100

// voice is the state of one DMA channel. data and dataRepeat are borrowed:
// the caller owns the sample memory and must keep it alive while it plays.
type voice struct {
	data         []int8
	dataRepeat   []int8
	length       int
	lengthRepeat int
	period       int
	volume       int
	panning      uint8
	offset       frac.Cursor
	dmaCount     int

	// Debug
	muted bool
}

// VoiceState is a copy of one channel's registers and playback cursor.
type VoiceState struct {
	Length       int
	LengthRepeat int
	Period       int
	Volume       int
	Panning      uint8
	Position     int
	DMACount     int
	HasData      bool
}

// VoiceStatus is the monitoring view of a channel.
type VoiceStatus struct {
	Active   bool
	Muted    bool
	Period   int
	Volume   int
	Position int
	Length   int
}

// Voices is the unlocked view of the mixer state handed to an Interrupter.
// Every method assumes the mixer lock is already held.
type Voices struct {
	ch [NumVoices]voice
	m  *Mixer
}

// Mixer resamples the four channels to the output rate and mixes them.
type Mixer struct {
	mu sync.Mutex

	stereo  bool
	rate    int
	divisor int
	clock   int
	playing bool

	intFreq int // frames between interrupts
	curInt  int // frames left until the next interrupt

	filter  *Filter
	voices  Voices
	handler Interrupter
}

// New creates a stopped mixer. handler may be nil.
func New(cfg Config, handler Interrupter) *Mixer {
	if cfg.Rate <= 0 {
		cfg.Rate = defaultRate
	}
	if cfg.PeriodScaleDivisor <= 0 {
		cfg.PeriodScaleDivisor = 1
	}
	if cfg.Clock <= 0 {
		cfg.Clock = PALPaulaClock
	}

	m := &Mixer{
		stereo:  cfg.Stereo,
		rate:    cfg.Rate,
		divisor: cfg.PeriodScaleDivisor,
		clock:   cfg.Clock,
		filter:  NewFilter(cfg.FilterMode, cfg.Rate),
		handler: handler,
	}
	m.voices.m = m
	m.intFreq = cfg.InterruptFreq
	if m.intFreq <= 0 {
		m.intFreq = cfg.Rate
	}
	m.voices.clearAll()

	slog.Debug("paula mixer created",
		"rate", cfg.Rate,
		"stereo", cfg.Stereo,
		"interrupt_freq", m.intFreq,
		"filter", cfg.FilterMode.String(),
		"clock", cfg.Clock)
	return m
}

// SampleRate returns the output rate in Hz.
func (m *Mixer) SampleRate() int { return m.rate }

// Channels returns 2 for interleaved stereo output, 1 for mono.
func (m *Mixer) Channels() int {
	if m.stereo {
		return 2
	}
	return 1
}

// SetVoice loads a channel in one go. volume is clamped to 0x40 while mixing.
func (m *Mixer) SetVoice(i int, data []int8, length int, dataRepeat []int8, lengthRepeat, period, volume int, panning uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices.SetVoice(i, data, length, dataRepeat, lengthRepeat, period, volume, panning)
}

// ClearVoice silences a channel and restores its default panning.
func (m *Mixer) ClearVoice(i int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices.ClearVoice(i)
}

// ClearVoices clears all four channels.
func (m *Mixer) ClearVoices() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices.clearAll()
}

// Do runs fn with the mixer lock held, for drivers that update voices from
// outside the interrupt.
func (m *Mixer) Do(fn func(v *Voices)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.voices)
}

// StartPlay enables sample generation.
func (m *Mixer) StartPlay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = true
}

// StopPlay makes Generate return silence without touching voice state.
func (m *Mixer) StopPlay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
}

// IsPlaying reports whether Generate is producing sound.
func (m *Mixer) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// SetLEDFilter engages or bypasses the LED filter stages.
func (m *Mixer) SetLEDFilter(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter.SetLED(on)
}

// LEDFilter reports whether the LED stages are engaged.
func (m *Mixer) LEDFilter() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter.LED()
}

// Reset clears the voices, the filter memory and the interrupt countdown.
func (m *Mixer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices.clearAll()
	m.filter.Reset()
	m.curInt = 0
}

// Generate fills buf with mixed output and returns len(buf). Stereo output
// is interleaved L/R, so len(buf) should be even.
func (m *Mixer) Generate(buf []int16) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(buf)
	if !m.playing {
		return len(buf)
	}

	channels := 1
	if m.stereo {
		channels = 2
	}
	frames := len(buf) / channels
	out := buf

	for frames > 0 {
		if m.curInt == 0 {
			if m.handler != nil {
				m.handler.Interrupt(&m.voices)
			}
			if !m.playing {
				break
			}
			// a rate set by the handler applies from this period on
			m.curInt = m.intFreq
		}

		chunk := min(frames, m.curInt)
		for i := range m.voices.ch {
			m.mixVoice(out[:chunk*channels], i)
		}

		out = out[chunk*channels:]
		m.curInt -= chunk
		frames -= chunk
	}

	return len(buf)
}

// mixVoice adds one channel's contribution to out, following the repeat
// segment as many times as needed.
func (m *Mixer) mixVoice(out []int16, i int) {
	ch := &m.voices.ch[i]
	if ch.data == nil || ch.period <= 0 {
		return
	}

	rate := frac.FromRatio(uint64(m.clock), uint64(m.rate)*uint64(m.divisor)*uint64(ch.period))
	volume := min(max(ch.volume, 0), maxVolume)

	// A player may push the cursor past the end in its interrupt, in which
	// case nothing is mixed here and the wrap below takes over.
	out = m.mixSegment(out, i, ch, rate, volume)

	if ch.offset.Int >= ch.length {
		// Rebase before switching segments so the old length is used.
		ch.offset.Rebase(ch.length)
		ch.dmaCount++
		ch.data = ch.dataRepeat
		ch.length = ch.lengthRepeat
	}

	if len(out) == 0 || ch.length <= minLoopLength {
		return
	}
	for len(out) > 0 {
		out = m.mixSegment(out, i, ch, rate, volume)
		if ch.offset.Int >= ch.length {
			ch.offset.Rebase(ch.length)
			ch.dmaCount++
		}
	}
}

// mixSegment mixes until out is full or the cursor leaves the segment and
// returns the unfilled remainder of out.
func (m *Mixer) mixSegment(out []int16, i int, ch *voice, rate frac.Frac, volume int) []int16 {
	for len(out) > 0 && ch.offset.Int < ch.length {
		sample := int32(ch.data[ch.offset.Int]) * int32(volume)
		filtered := int32(m.filter.Apply(sample, i))

		if !ch.muted {
			if m.stereo {
				pan := int32(ch.panning)
				out[0] += int16((filtered * (255 - pan)) >> 13)
				out[1] += int16((filtered * pan) >> 13)
			} else {
				out[0] += int16(filtered >> 6)
			}
		}
		if m.stereo {
			out = out[2:]
		} else {
			out = out[1:]
		}

		ch.offset.Step(rate)
	}
	return out
}

// Status returns a snapshot of every channel for monitoring.
func (m *Mixer) Status() []VoiceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := make([]VoiceStatus, NumVoices)
	for i, ch := range m.voices.ch {
		status[i] = VoiceStatus{
			Active:   m.playing && ch.data != nil && ch.period > 0,
			Muted:    ch.muted,
			Period:   ch.period,
			Volume:   min(max(ch.volume, 0), maxVolume),
			Position: ch.offset.Int,
			Length:   ch.length,
		}
	}
	return status
}

// MuteVoice mutes or unmutes a channel. A muted channel keeps advancing.
func (m *Mixer) MuteVoice(i int, muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	checkVoice(i)
	m.voices.ch[i].muted = muted
}

// ToggleVoice toggles the mute state of a channel.
func (m *Mixer) ToggleVoice(i int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	checkVoice(i)
	m.voices.ch[i].muted = !m.voices.ch[i].muted
}

// SoloVoice mutes all channels except i.
func (m *Mixer) SoloVoice(i int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	checkVoice(i)
	for j := range m.voices.ch {
		m.voices.ch[j].muted = j != i
	}
}

// UnmuteAll unmutes all channels.
func (m *Mixer) UnmuteAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for j := range m.voices.ch {
		m.voices.ch[j].muted = false
	}
}

func checkVoice(i int) {
	if i < 0 || i >= NumVoices {
		panic(fmt.Sprintf("paula: voice index %d out of range", i))
	}
}
