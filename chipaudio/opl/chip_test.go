package opl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitClock and unitRate make one output sample equal one chip sample.
const (
	unitClock = 3600000
	unitRate  = 50000
)

func newUnitChip() *Chip {
	return NewChip(unitClock, unitRate)
}

func tick(c *Chip, n int) {
	buf := make([]int16, n)
	c.Generate(buf)
}

// setupCarrier programs channel 0 as a single audible carrier.
func setupCarrier(c *Chip, char, adsr, slrr int) {
	car := OperatorOffset(0, 1)
	mod := OperatorOffset(0, 0)
	c.WriteReg(0x20+mod, 0x01)
	c.WriteReg(0x40+mod, 0x3F) // modulator silent
	c.WriteReg(0x20+car, char)
	c.WriteReg(0x40+car, 0x00)
	c.WriteReg(0x60+car, adsr)
	c.WriteReg(0x80+car, slrr)
	c.WriteReg(0xC0, 0x00)
	c.WriteReg(0xA0, 0x41)
}

func TestTables(t *testing.T) {
	initTables()

	assert.Equal(t, int32(4084), tlTab[0])
	assert.Equal(t, int32(-4084), tlTab[1])
	assert.Equal(t, tlTab[0]>>1, tlTab[2*tlResLen])

	for i := 0; i < sinLen; i++ {
		if i < sinLen/2 {
			assert.Zero(t, sinTab[i]&1, "positive half %d", i)
			assert.Equal(t, sinTab[i], sinTab[sinLen+i], "half-sine %d", i)
		} else {
			assert.Equal(t, uint32(1), sinTab[i]&1, "negative half %d", i)
			assert.Equal(t, uint32(tlTabLen), sinTab[sinLen+i], "half-sine %d", i)
		}
	}
	assert.Equal(t, sinTab[0], sinTab[2*sinLen+sinLen/2])
	assert.Equal(t, uint32(tlTabLen), sinTab[3*sinLen+sinLen/4])

	assert.Equal(t, uint8(0), lfoAMTab[0])
	assert.Equal(t, uint8(26), lfoAMTab[107])
	assert.Equal(t, uint8(1), lfoAMTab[lfoAMTabElements-1])

	assert.Equal(t, []int8{7, 3, 0, -3, -7, -3, 0, 3}, lfoPMTab[7*16+8:7*16+16])
	assert.Equal(t, []int8{0, 0, 0, 0, 0, 0, 0, 0}, lfoPMTab[0:8])

	assert.Equal(t, uint8(egRowInfinite*rateSteps), egRateSelect[0])
	assert.Equal(t, uint8(12), egRateShift[16])
	assert.Equal(t, uint8(0), egRateShift[16+12*4+3+1])
	assert.Equal(t, uint8(12*rateSteps), egRateSelect[len(egRateSelect)-1])

	assert.Equal(t, uint32(21.0/kslStep), kslTab[7*16+15])
	assert.Equal(t, uint32(3.0/kslStep), kslTab[1*16+15])
	assert.Zero(t, kslTab[15])
}

func TestOperatorOffset(t *testing.T) {
	tests := []struct {
		ch, op, want int
	}{
		{0, 0, 0x00}, {0, 1, 0x03},
		{2, 0, 0x02}, {2, 1, 0x05},
		{3, 0, 0x08}, {5, 1, 0x0D},
		{6, 0, 0x10}, {8, 1, 0x15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OperatorOffset(tt.ch, tt.op), "ch %d op %d", tt.ch, tt.op)
		s := slotArray[tt.want]
		assert.Equal(t, tt.ch*2+tt.op, s)
	}
}

func TestRegisterDecode(t *testing.T) {
	c := newUnitChip()

	t.Run("total level lands on the addressed operator", func(t *testing.T) {
		for ch := 0; ch < NumChannels; ch++ {
			for op := 0; op < 2; op++ {
				level := (ch*2 + op + 1) & 0x3F
				c.WriteReg(0x40+OperatorOffset(ch, op), level)
				assert.Equal(t, level<<2, c.Operator(ch, op).TotalLevel)
			}
		}
	})

	t.Run("unused operator offsets are ignored", func(t *testing.T) {
		assert.NotPanics(t, func() {
			c.WriteReg(0x26, 0xFF)
			c.WriteReg(0x47, 0xFF)
			c.WriteReg(0xF8, 0xFF)
			c.WriteReg(0xA9, 0xFF)
			c.WriteReg(0xCF, 0xFF)
		})
	})

	t.Run("multiplier scales the phase step", func(t *testing.T) {
		c.WriteReg(0x20, 0x0F) // modulator x15
		c.WriteReg(0x23, 0x01) // carrier x1
		c.WriteReg(0xA0, 0x80)
		c.WriteReg(0xB0, 0x12) // block 4, fnum 0x280

		block, fnum := c.ChannelFrequency(0)
		assert.Equal(t, 4, block)
		assert.Equal(t, 0x280, fnum)

		mod := c.Operator(0, 0)
		car := c.Operator(0, 1)
		require.NotZero(t, car.Step)
		assert.Equal(t, car.Step*15, mod.Step)
	})

	t.Run("sustain level", func(t *testing.T) {
		c.WriteReg(0x83, 0xF0)
		assert.Equal(t, 31*16, c.Operator(0, 1).SustainLvl)
		c.WriteReg(0x83, 0x30)
		assert.Equal(t, 3*16, c.Operator(0, 1).SustainLvl)
	})

	t.Run("wave select needs the enable bit", func(t *testing.T) {
		c.WriteReg(0x01, 0x00)
		c.WriteReg(0xE0, 0x02)
		assert.Equal(t, 0, c.Operator(0, 0).WaveTable)

		c.WriteReg(0x01, 0x20)
		c.WriteReg(0xE0, 0x02)
		assert.Equal(t, 2, c.Operator(0, 0).WaveTable)
	})

	t.Run("ports latch the address", func(t *testing.T) {
		c.Write(0, 0x55)
		c.Write(1, 0x2A)
		assert.Equal(t, byte(0x2A), c.ReadReg(0x55))
		assert.Equal(t, byte(0xFF), c.Read(1))
	})
}

func TestKeyOnOff(t *testing.T) {
	c := newUnitChip()
	setupCarrier(c, 0x21, 0xF4, 0x44)

	c.WriteReg(0xB0, 0x31)
	for op := 0; op < 2; op++ {
		s := c.Operator(0, op)
		assert.True(t, s.KeyOn)
		assert.Equal(t, EnvAttack, s.State)
	}

	tick(c, 100)
	assert.NotEqual(t, EnvAttack, c.Operator(0, 1).State, "rate 15 attack is instant")

	c.WriteReg(0xB0, 0x11)
	for op := 0; op < 2; op++ {
		s := c.Operator(0, op)
		assert.False(t, s.KeyOn)
		assert.Equal(t, EnvRelease, s.State)
	}

	// Writing key off again does not disturb the release.
	c.WriteReg(0xB0, 0x11)
	assert.Equal(t, EnvRelease, c.Operator(0, 1).State)
}

func TestEnvelopeMonotonic(t *testing.T) {
	c := newUnitChip()
	// sustained tone, AR 8 DR 4, SL 4 RR 12
	setupCarrier(c, 0x21, 0x84, 0x4C)
	c.WriteReg(0xB0, 0x31)

	prev := c.Operator(0, 1)
	require.Equal(t, EnvAttack, prev.State)
	require.Equal(t, maxAttIndex, prev.Attenuation)

	// Attack: attenuation never rises.
	for i := 0; i < 200000 && prev.State == EnvAttack; i++ {
		tick(c, 1)
		cur := c.Operator(0, 1)
		if cur.State == EnvAttack {
			assert.LessOrEqual(t, cur.Attenuation, prev.Attenuation)
		}
		prev = cur
	}
	require.Equal(t, EnvDecay, prev.State)
	assert.Equal(t, minAttIndex, prev.Attenuation)

	// Decay: attenuation never falls, stops at the sustain level.
	for i := 0; i < 200000 && prev.State == EnvDecay; i++ {
		tick(c, 1)
		cur := c.Operator(0, 1)
		assert.GreaterOrEqual(t, cur.Attenuation, prev.Attenuation)
		prev = cur
	}
	require.Equal(t, EnvSustain, prev.State)
	assert.Equal(t, 4*16, prev.Attenuation)

	// Sustain holds for longer than the slowest rate period.
	held := prev.Attenuation
	for i := 0; i < 40000; i++ {
		tick(c, 1)
		cur := c.Operator(0, 1)
		require.Equal(t, EnvSustain, cur.State)
		require.Equal(t, held, cur.Attenuation)
	}

	// Release: attenuation never falls and ends at the ceiling.
	c.WriteReg(0xB0, 0x11)
	prev = c.Operator(0, 1)
	for i := 0; i < 200000 && prev.State == EnvRelease; i++ {
		tick(c, 1)
		cur := c.Operator(0, 1)
		assert.GreaterOrEqual(t, cur.Attenuation, prev.Attenuation)
		prev = cur
	}
	assert.Equal(t, EnvOff, prev.State)
	assert.Equal(t, maxAttIndex, prev.Attenuation)
}

func TestPercussiveSustainKeepsReleasing(t *testing.T) {
	c := newUnitChip()
	// EG-TYP clear, instant attack, fast decay to SL 1, RR 12
	setupCarrier(c, 0x01, 0xFF, 0x1C)
	c.WriteReg(0xB0, 0x31)

	for i := 0; i < 200000 && c.Operator(0, 1).State != EnvSustain; i++ {
		tick(c, 1)
	}
	require.Equal(t, EnvSustain, c.Operator(0, 1).State)

	tick(c, 20000)
	s := c.Operator(0, 1)
	assert.Equal(t, EnvSustain, s.State, "percussive tones stay in sustain")
	assert.Equal(t, maxAttIndex, s.Attenuation)

	// Switching to sustained mode mid-note freezes the level in place.
	c2 := newUnitChip()
	setupCarrier(c2, 0x01, 0xFF, 0x1C)
	c2.WriteReg(0xB0, 0x31)
	for i := 0; i < 200000 && c2.Operator(0, 1).State != EnvSustain; i++ {
		tick(c2, 1)
	}
	tick(c2, 300)
	c2.WriteReg(0x23, 0x21)
	frozen := c2.Operator(0, 1).Attenuation
	tick(c2, 5000)
	assert.Equal(t, frozen, c2.Operator(0, 1).Attenuation)
	assert.Equal(t, EnvSustain, c2.Operator(0, 1).State)
}

func TestToneOutput(t *testing.T) {
	c := NewChip(DefaultClock, 44100)
	setupCarrier(c, 0x21, 0xF0, 0x0F)
	c.WriteReg(0xB0, 0x31)

	buf := make([]int16, 4096)
	c.Generate(buf)

	var pos, neg bool
	for _, v := range buf {
		if v > 1000 {
			pos = true
		}
		if v < -1000 {
			neg = true
		}
		assert.LessOrEqual(t, v, int16(4084))
		assert.GreaterOrEqual(t, v, int16(-4084))
	}
	assert.True(t, pos)
	assert.True(t, neg)

	c.Reset()
	c.Generate(buf)
	assert.Equal(t, make([]int16, len(buf)), buf)
}

func TestNoiseShiftRegister(t *testing.T) {
	c := newUnitChip()
	require.Equal(t, uint32(1), c.noiseRNG)

	tick(c, 1)
	assert.Equal(t, uint32(0x400181), c.noiseRNG)

	tick(c, 1)
	assert.Equal(t, uint32(0x400181^0x800302)>>1, c.noiseRNG)
}

func TestRhythmKeys(t *testing.T) {
	c := newUnitChip()

	tests := []struct {
		name    string
		value   int
		keyedOn [][2]int
	}{
		{"bass drum", 0x30, [][2]int{{6, 0}, {6, 1}}},
		{"high hat", 0x21, [][2]int{{7, 0}}},
		{"snare", 0x28, [][2]int{{7, 1}}},
		{"tom", 0x24, [][2]int{{8, 0}}},
		{"top cymbal", 0x22, [][2]int{{8, 1}}},
		{"everything", 0x3F, [][2]int{{6, 0}, {6, 1}, {7, 0}, {7, 1}, {8, 0}, {8, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.WriteReg(0xBD, 0x00)
			c.WriteReg(0xBD, tt.value)
			assert.True(t, c.RhythmMode())

			on := map[[2]int]bool{}
			for _, k := range tt.keyedOn {
				on[k] = true
			}
			for ch := 6; ch <= 8; ch++ {
				for op := 0; op < 2; op++ {
					s := c.Operator(ch, op)
					assert.Equal(t, on[[2]int{ch, op}], s.KeyOn, "ch %d op %d", ch, op)
					if on[[2]int{ch, op}] {
						assert.Equal(t, EnvAttack, s.State)
					}
				}
			}
		})
	}

	t.Run("leaving rhythm mode releases", func(t *testing.T) {
		c.WriteReg(0xBD, 0x3F)
		c.WriteReg(0xBD, 0x00)
		assert.False(t, c.RhythmMode())
		for ch := 6; ch <= 8; ch++ {
			assert.Equal(t, EnvRelease, c.Operator(ch, 1).State)
		}
	})

	t.Run("channel key survives rhythm key off", func(t *testing.T) {
		c.WriteReg(0xB6, 0x20)
		c.WriteReg(0xBD, 0x30)
		c.WriteReg(0xBD, 0x20)
		assert.True(t, c.Operator(6, 0).KeyOn)
		assert.NotEqual(t, EnvRelease, c.Operator(6, 0).State)
	})
}

func TestRhythmOutput(t *testing.T) {
	c := NewChip(DefaultClock, 44100)
	for ch := 6; ch <= 8; ch++ {
		for op := 0; op < 2; op++ {
			off := OperatorOffset(ch, op)
			c.WriteReg(0x20+off, 0x01)
			c.WriteReg(0x40+off, 0x00)
			c.WriteReg(0x60+off, 0xF4)
			c.WriteReg(0x80+off, 0x04)
		}
		c.WriteReg(0xA0+ch, 0x50)
		c.WriteReg(0xB0+ch, 0x09)
	}
	c.WriteReg(0xBD, 0x3F)

	buf := make([]int16, 2048)
	c.Generate(buf)

	nonzero := 0
	for _, v := range buf {
		if v != 0 {
			nonzero++
		}
	}
	assert.Greater(t, nonzero, len(buf)/2)
}

func TestTimers(t *testing.T) {
	c := newUnitChip()

	// Timer 1: 4 units of 80us, one chip sample each at this clock.
	c.WriteReg(0x02, 0xFF)
	c.WriteReg(0x04, 0x01)
	tick(c, 3)
	assert.Zero(t, c.Read(0)&StatusTimer1)
	tick(c, 1)
	assert.Equal(t, byte(StatusIRQ|StatusTimer1), c.Read(0))

	c.WriteReg(0x04, 0x80)
	assert.Zero(t, c.Read(0))

	// Timer 2 with timer 1 masked.
	c.WriteReg(0x03, 0xFF)
	c.WriteReg(0x04, 0x42)
	tick(c, 16)
	assert.Equal(t, byte(StatusIRQ|StatusTimer2), c.Read(0))

	c.WriteReg(0x04, 0x00)
	c.WriteReg(0x04, 0x80)
	tick(c, 64)
	assert.Zero(t, c.Read(0), "stopped timers do not fire")
}

func TestOperatorPanics(t *testing.T) {
	c := newUnitChip()
	assert.Panics(t, func() { c.Operator(9, 0) })
	assert.Panics(t, func() { c.Operator(0, 2) })
	assert.Panics(t, func() { c.ChannelFrequency(-1) })
}
