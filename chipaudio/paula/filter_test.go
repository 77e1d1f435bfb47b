package paula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoefficientBoundary(t *testing.T) {
	tests := []struct {
		name   string
		cutoff float64
		rate   float64
		unity  bool
	}{
		{"exactly nyquist", 6200, 12400, true},
		{"above nyquist", 20000, 22050, true},
		{"below nyquist", 6200, 44100, false},
		{"led at 48k", 7000, 48000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a0 := coefficient(tt.cutoff, tt.rate)
			if tt.unity {
				assert.Equal(t, 1.0, a0)
			} else {
				assert.Greater(t, a0, 0.0)
				assert.Less(t, a0, 1.0)
			}
		})
	}
}

func TestFilterPassthroughAtNyquist(t *testing.T) {
	f := NewFilter(FilterA500, 12400)
	assert.Equal(t, [3]float64{1, 1, 1}, f.Coefficients())

	f.SetLED(true)
	for _, in := range []int32{1234, -8128, 0, 8128, 1} {
		assert.Equal(t, int16(in), f.Apply(in, 2))
	}
}

func TestFilterModes(t *testing.T) {
	t.Run("none is passthrough and clamps", func(t *testing.T) {
		f := NewFilter(FilterNone, 44100)
		assert.Equal(t, int16(-300), f.Apply(-300, 0))
		assert.Equal(t, int16(32767), f.Apply(40000, 0))
		assert.Equal(t, int16(-32768), f.Apply(-40000, 0))
	})

	t.Run("a500 smooths a step", func(t *testing.T) {
		f := NewFilter(FilterA500, 44100)
		first := f.Apply(8000, 0)
		second := f.Apply(8000, 0)
		assert.Greater(t, first, int16(0))
		assert.Less(t, first, int16(8000))
		assert.Greater(t, second, first)
	})

	t.Run("a500 led adds attenuation", func(t *testing.T) {
		plain := NewFilter(FilterA500, 44100)
		led := NewFilter(FilterA500, 44100)
		led.SetLED(true)
		assert.Less(t, led.Apply(8000, 0), plain.Apply(8000, 0))
	})

	t.Run("a1200 without led is raw", func(t *testing.T) {
		f := NewFilter(FilterA1200, 44100)
		assert.Equal(t, int16(8000), f.Apply(8000, 1))
		f.SetLED(true)
		assert.Less(t, f.Apply(8000, 1), int16(8000))
	})

	t.Run("voices are independent", func(t *testing.T) {
		f := NewFilter(FilterA500, 44100)
		f.Apply(8000, 0)
		f.Apply(8000, 0)
		fresh := NewFilter(FilterA500, 44100)
		assert.Equal(t, fresh.Apply(8000, 3), f.Apply(8000, 3))
	})
}

func TestFilterFirstSampleUsesEachStage(t *testing.T) {
	const x = 8000.0

	t.Run("a500 rc stages", func(t *testing.T) {
		f := NewFilter(FilterA500, 44100)
		a0 := f.Coefficients()
		require.NotEqual(t, a0[0], a0[1])

		want := a0[0] * a0[1] * x
		assert.InDelta(t, want, float64(f.Apply(x, 0)), 1)
	})

	t.Run("a500 with led", func(t *testing.T) {
		f := NewFilter(FilterA500, 44100)
		f.SetLED(true)
		a0 := f.Coefficients()

		want := a0[0] * a0[1] * a0[2] * a0[2] * a0[2] * x
		assert.InDelta(t, want, float64(f.Apply(x, 0)), 1)
	})

	t.Run("a1200 with led", func(t *testing.T) {
		f := NewFilter(FilterA1200, 44100)
		f.SetLED(true)
		a0 := f.Coefficients()

		want := a0[2] * a0[2] * a0[2] * x
		assert.InDelta(t, want, float64(f.Apply(x, 0)), 1)
	})
}

func TestA1200LEDStagesRunWhileBypassed(t *testing.T) {
	always := NewFilter(FilterA1200, 44100)
	always.SetLED(true)
	toggled := NewFilter(FilterA1200, 44100)

	input := []int32{8000, -4000, 12000, 300, -9000, 7000, 0, 2500}
	for _, in := range input {
		always.Apply(in, 1)
		assert.Equal(t, int16(in), toggled.Apply(in, 1), "bypassed led returns the raw input")
	}

	toggled.SetLED(true)
	for _, in := range []int32{5000, 5000, -5000} {
		assert.Equal(t, always.Apply(in, 1), toggled.Apply(in, 1))
	}
}

func TestFilterStatePersistsUntilReset(t *testing.T) {
	f := NewFilter(FilterA500, 44100)
	f.Apply(8000, 0)
	f.Apply(8000, 0)

	decaying := f.Apply(0, 0)
	assert.Greater(t, decaying, int16(0))

	f.Reset()
	assert.Equal(t, int16(0), f.Apply(0, 0))
}

func TestParseFilterMode(t *testing.T) {
	for _, mode := range []FilterMode{FilterNone, FilterA500, FilterA1200} {
		parsed, err := ParseFilterMode(mode.String())
		assert.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}
	_, err := ParseFilterMode("a3000")
	assert.Error(t, err)
}
