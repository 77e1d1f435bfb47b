package paula

import (
	"fmt"
	"math"
)

// FilterMode selects the analog output stage being modelled.
type FilterMode int

const (
	// FilterNone disables filtering.
	FilterNone FilterMode = iota
	// FilterA500 is the two stage RC low-pass plus the switchable LED filter.
	FilterA500
	// FilterA1200 has no fixed RC stage; only the LED filter colours the output.
	FilterA1200
)

func (m FilterMode) String() string {
	switch m {
	case FilterNone:
		return "none"
	case FilterA500:
		return "a500"
	case FilterA1200:
		return "a1200"
	default:
		return fmt.Sprintf("FilterMode(%d)", int(m))
	}
}

// ParseFilterMode accepts the names returned by String.
func ParseFilterMode(s string) (FilterMode, error) {
	switch s {
	case "none", "":
		return FilterNone, nil
	case "a500", "a":
		return FilterA500, nil
	case "a1200", "b":
		return FilterA1200, nil
	}
	return FilterNone, fmt.Errorf("unknown filter mode %q", s)
}

// Cutoff frequencies, in Hz, of the modelled stages.
const (
	cutoffRC    = 6200.0
	cutoffRC2   = 20000.0
	cutoffLED   = 7000.0
	numStages   = 5
	denormFlush = 1e-20
)

// Filter is the per-voice cascade of first-order low-pass stages.
// Stage state persists across calls and is only cleared by Reset.
type Filter struct {
	mode  FilterMode
	led   bool
	a0    [3]float64
	stage [NumVoices][numStages]float64
}

// NewFilter computes the stage coefficients for the given output rate.
func NewFilter(mode FilterMode, rate int) *Filter {
	f := &Filter{mode: mode}
	f.a0[0] = coefficient(cutoffRC, float64(rate))
	f.a0[1] = coefficient(cutoffRC2, float64(rate))
	f.a0[2] = coefficient(cutoffLED, float64(rate))
	return f
}

// coefficient returns the one-pole smoothing factor for a bilinear-transformed
// RC stage. Cutoffs at or above Nyquist pass the input through unchanged.
func coefficient(cutoff, rate float64) float64 {
	if cutoff >= rate/2 {
		return 1
	}
	omega := 2 * math.Pi * cutoff / rate
	omega = math.Tan(omega/2) * 2
	return 1 / (1 + 1/omega)
}

// Mode returns the active topology.
func (f *Filter) Mode() FilterMode { return f.mode }

// SetLED engages or bypasses the LED stages.
func (f *Filter) SetLED(on bool) { f.led = on }

// LED reports whether the LED stages are engaged.
func (f *Filter) LED() bool { return f.led }

// Coefficients returns a0 for the 6200 Hz, 20000 Hz and 7000 Hz stages.
func (f *Filter) Coefficients() [3]float64 { return f.a0 }

// Reset clears the accumulated state of every stage.
func (f *Filter) Reset() {
	f.stage = [NumVoices][numStages]float64{}
}

// Apply runs one input sample of the given voice through the cascade.
func (f *Filter) Apply(input int32, voice int) int16 {
	if f.mode == FilterNone {
		return clamp16(float64(input))
	}

	s := &f.stage[voice]
	in := float64(input)

	switch f.mode {
	case FilterA500:
		s[0] = step(s[0], in, f.a0[0])
		s[1] = step(s[1], s[0], f.a0[1])
		out := s[1]

		led := f.a0[2]
		s[2] = step(s[2], out, led)
		s[3] = step(s[3], s[2], led)
		s[4] = step(s[4], s[3], led)
		if f.led {
			out = s[4]
		}
		return clamp16(out)

	case FilterA1200:
		// the LED cascade always runs so toggling it does not start from
		// stale state
		led := f.a0[2]
		s[0] = step(s[0], in, led)
		s[1] = step(s[1], s[0], led)
		s[2] = step(s[2], s[1], led)
		if f.led {
			return clamp16(s[2])
		}
		return clamp16(in)
	}

	return clamp16(in)
}

// step is y[n] = a0*x[n] + (1-a0)*y[n-1], with tiny values flushed to zero.
func step(prev, in, a0 float64) float64 {
	y := a0*in + (1-a0)*prev
	if y < denormFlush && y > -denormFlush {
		return 0
	}
	return y
}

func clamp16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
