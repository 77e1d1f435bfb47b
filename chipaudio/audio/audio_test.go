package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-chipaudio/chipaudio/adlib"
	"github.com/valerio/go-chipaudio/chipaudio/paula"
)

// constProvider emits a fixed value on every channel.
type constProvider struct {
	value    int16
	rate     int
	channels int
	calls    int
}

func (c *constProvider) Generate(buf []int16) int {
	c.calls++
	for i := range buf {
		buf[i] = c.value
	}
	return len(buf)
}

func (c *constProvider) SampleRate() int { return c.rate }
func (c *constProvider) Channels() int   { return c.channels }

// rampProvider emits an increasing value so channel order is visible.
type rampProvider struct{ n int16 }

func (r *rampProvider) Generate(buf []int16) int {
	for i := range buf {
		buf[i] = r.n
		r.n++
	}
	return len(buf)
}

func (r *rampProvider) SampleRate() int { return 8000 }
func (r *rampProvider) Channels() int   { return 2 }

func TestStreamer(t *testing.T) {
	t.Run("mono is duplicated", func(t *testing.T) {
		s := NewStreamer(&constProvider{value: 16384, rate: 22050, channels: 1})
		samples := make([][2]float64, 4)

		n, ok := s.Stream(samples)
		assert.Equal(t, 4, n)
		assert.True(t, ok)
		for _, f := range samples {
			assert.Equal(t, [2]float64{0.5, 0.5}, f)
		}
		assert.NoError(t, s.Err())
	})

	t.Run("stereo keeps left and right", func(t *testing.T) {
		s := NewStreamer(&rampProvider{})
		samples := make([][2]float64, 3)
		s.Stream(samples)

		for i, f := range samples {
			assert.Equal(t, float64(2*i)/32768, f[0])
			assert.Equal(t, float64(2*i+1)/32768, f[1])
		}
	})

	t.Run("format", func(t *testing.T) {
		f := NewStreamer(&constProvider{rate: 22050, channels: 1}).Format()
		assert.Equal(t, beep.SampleRate(22050), f.SampleRate)
		assert.Equal(t, 2, f.NumChannels)
		assert.Equal(t, 2, f.Precision)
	})
}

func TestPCMReader(t *testing.T) {
	p := &constProvider{value: -16384, rate: 8000, channels: 1}
	r := NewPCMReader(NewStreamer(p))

	buf := make([]byte, 10)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n, "only whole frames")

	for i := 0; i < 4; i++ {
		assert.Equal(t, int16(-16384), int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}

	n, err = r.Read(buf[:3])
	assert.Zero(t, n)
	assert.NoError(t, err)
}

func TestPCMReaderEOF(t *testing.T) {
	s := beep.Take(3, NewStreamer(&constProvider{rate: 8000, channels: 2}))
	data, err := io.ReadAll(NewPCMReader(s))
	require.NoError(t, err)
	assert.Len(t, data, 12)
}

func TestToInt16(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2, 32767},
		{-2, -32768},
		{0.5, 16384},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toInt16(tt.in), "in=%v", tt.in)
	}
}

func TestWithGain(t *testing.T) {
	tests := []struct {
		name string
		gain float64
		want float64
	}{
		{"unity", 1, 0.25},
		{"double", 2, 0.5},
		{"half", 0.5, 0.125},
		{"silent", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := WithGain(NewStreamer(&constProvider{value: 8192, rate: 8000, channels: 1}), tt.gain)
			samples := make([][2]float64, 2)
			s.Stream(samples)
			assert.InDelta(t, tt.want, samples[0][0], 1e-9)
			assert.InDelta(t, tt.want, samples[1][1], 1e-9)
		})
	}
}

func TestResampled(t *testing.T) {
	p := &constProvider{value: 8192, rate: 8000, channels: 1}

	_, same := Resampled(p, 8000).(*Streamer)
	assert.True(t, same, "matching rate is not resampled")

	s := Resampled(p, 16000)
	samples := make([][2]float64, 512)
	n, ok := s.Stream(samples)
	require.True(t, ok)
	assert.Equal(t, 512, n)
	// a constant signal survives interpolation away from the edges
	assert.InDelta(t, 0.25, samples[256][0], 1e-3)
}

func TestWriteWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	p := &constProvider{value: 1000, rate: 11025, channels: 1}
	require.NoError(t, WriteWAV(f, p, 1000, 1))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))

	s, format, err := wav.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, beep.SampleRate(11025), format.SampleRate)
	assert.Equal(t, 2, format.NumChannels)
	assert.Equal(t, 1000, s.Len())

	samples := make([][2]float64, 10)
	n, _ := s.Stream(samples)
	require.Equal(t, 10, n)
	assert.InDelta(t, 1000.0/32768, samples[5][0], 1e-4)
}

func TestWriteWAVNegative(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "x.wav"))
	require.NoError(t, err)
	defer f.Close()

	assert.Error(t, WriteWAV(f, &constProvider{rate: 8000, channels: 1}, -1, 1))
}

func TestPaulaChannels(t *testing.T) {
	m := paula.New(paula.Config{Rate: 8000}, nil)
	pc := PaulaChannels{m}

	data := make([]int8, 64)
	m.SetVoice(2, data, len(data), nil, 0, 428, 40, 0)
	m.StartPlay()

	st := pc.ChannelStatus()
	require.Len(t, st, paula.NumVoices)
	assert.True(t, st[2].Active)
	assert.Equal(t, 40, st[2].Level)
	assert.Contains(t, st[2].Detail, "428")
	assert.Equal(t, "-", st[0].Detail)

	pc.ToggleChannel(2)
	assert.True(t, pc.ChannelStatus()[2].Muted)

	pc.SoloChannel(1)
	st = pc.ChannelStatus()
	assert.False(t, st[1].Muted)
	assert.True(t, st[2].Muted)

	pc.UnmuteAll()
	for _, s := range pc.ChannelStatus() {
		assert.False(t, s.Muted)
	}
}

func TestUntil(t *testing.T) {
	stop := false
	s := Until(NewStreamer(&constProvider{rate: 8000, channels: 1}), func() bool { return stop })
	samples := make([][2]float64, 16)

	n, ok := s.Stream(samples)
	assert.Equal(t, 16, n)
	assert.True(t, ok)

	stop = true
	n, ok = s.Stream(samples)
	assert.Zero(t, n)
	assert.False(t, ok)

	plain := NewStreamer(&constProvider{rate: 8000, channels: 1})
	assert.Same(t, plain, Until(plain, nil))
}

func TestAdLibChannels(t *testing.T) {
	p := adlib.New(adlib.Config{Rate: 8000})
	defer p.Close()
	a := AdLibChannels{p}

	p.NoteOn(0, 60, 100)
	p.ControlChange(0, 64, 127)
	p.NoteOn(1, 64, 100)
	p.NoteOff(0, 60)

	active := 0
	var details []string
	for _, st := range a.ChannelStatus() {
		if st.Active {
			active++
			details = append(details, st.Detail)
		} else {
			assert.Equal(t, "-", st.Detail)
			assert.Zero(t, st.Level)
		}
	}
	assert.Equal(t, 2, active)
	assert.Contains(t, details, "part  0  note  60  held")
	assert.Contains(t, details, "part  1  note  64")
}
