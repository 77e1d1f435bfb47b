package audio

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/wav"
)

// resampleQuality is the beep interpolation quality used for rate changes.
const resampleQuality = 4

// WithGain scales s by a linear factor. 1 leaves it untouched and 0 or less
// silences it.
func WithGain(s beep.Streamer, gain float64) beep.Streamer {
	if gain == 1 {
		return s
	}
	return &effects.Volume{
		Streamer: s,
		Base:     2,
		Volume:   math.Log2(max(gain, math.SmallestNonzeroFloat64)),
		Silent:   gain <= 0,
	}
}

// Resampled returns the provider's output converted to rate. The provider's
// own rate passes through unchanged.
func Resampled(p Provider, rate int) beep.Streamer {
	s := NewStreamer(p)
	if rate <= 0 || rate == p.SampleRate() {
		return s
	}
	return beep.Resample(resampleQuality, beep.SampleRate(p.SampleRate()), beep.SampleRate(rate), s)
}

// WriteWAV renders frames frames of p, scaled by gain, as a 16-bit stereo
// WAV file.
func WriteWAV(w io.WriteSeeker, p Provider, frames int, gain float64) error {
	if frames < 0 {
		return fmt.Errorf("audio: negative frame count %d", frames)
	}
	s := beep.Take(frames, WithGain(NewStreamer(p), gain))
	slog.Debug("rendering wav", "frames", frames, "rate", p.SampleRate(), "gain", gain)
	return EncodeWAV(w, s, Format(p))
}

// EncodeWAV drains s into w.
func EncodeWAV(w io.WriteSeeker, s beep.Streamer, format beep.Format) error {
	if err := wav.Encode(w, s, format); err != nil {
		return fmt.Errorf("audio: encoding wav: %w", err)
	}
	return nil
}

// Until ends s once done reports true. It is checked once per chunk.
func Until(s beep.Streamer, done func() bool) beep.Streamer {
	if done == nil {
		return s
	}
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if done() {
			return 0, false
		}
		return s.Stream(samples)
	})
}
