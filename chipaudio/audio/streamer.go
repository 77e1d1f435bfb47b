package audio

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/gopxl/beep/v2"
)

// Streamer pulls frames from a Provider as a beep.Streamer. Mono providers
// are duplicated to both sides. It never ends on its own; bound it with
// beep.Take.
type Streamer struct {
	p        Provider
	channels int
	buf      []int16
}

var _ beep.Streamer = (*Streamer)(nil)

func NewStreamer(p Provider) *Streamer {
	return &Streamer{p: p, channels: max(p.Channels(), 1)}
}

// Format is the beep format matching the provider's rate.
func (s *Streamer) Format() beep.Format {
	return Format(s.p)
}

// Format returns the stereo 16-bit beep format at the provider's rate.
func Format(p Provider) beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(p.SampleRate()),
		NumChannels: 2,
		Precision:   2,
	}
}

func (s *Streamer) Stream(samples [][2]float64) (int, bool) {
	n := len(samples) * s.channels
	if cap(s.buf) < n {
		s.buf = make([]int16, n)
	}
	buf := s.buf[:n]
	s.p.Generate(buf)

	for i := range samples {
		if s.channels == 1 {
			v := float64(buf[i]) / 32768
			samples[i] = [2]float64{v, v}
			continue
		}
		samples[i][0] = float64(buf[i*s.channels]) / 32768
		samples[i][1] = float64(buf[i*s.channels+1]) / 32768
	}
	return len(samples), true
}

func (s *Streamer) Err() error { return nil }

// PCMReader renders a beep.Streamer as signed 16-bit little endian stereo,
// the byte layout an oto player reads.
type PCMReader struct {
	s   beep.Streamer
	buf [][2]float64
}

func NewPCMReader(s beep.Streamer) *PCMReader {
	return &PCMReader{s: s}
}

// Read fills p with whole frames. It returns io.EOF once the streamer is
// drained, or the streamer's error.
func (r *PCMReader) Read(p []byte) (int, error) {
	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < frames {
		r.buf = make([][2]float64, frames)
	}
	buf := r.buf[:frames]

	n, ok := r.s.Stream(buf)
	for i, f := range buf[:n] {
		binary.LittleEndian.PutUint16(p[i*4:], uint16(toInt16(f[0])))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(toInt16(f[1])))
	}
	if !ok && n == 0 {
		if err := r.s.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	return n * 4, nil
}

func toInt16(v float64) int16 {
	v = math.Round(v * 32767)
	return int16(min(max(v, math.MinInt16), math.MaxInt16))
}
