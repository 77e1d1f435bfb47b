package adlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-chipaudio/chipaudio/opl"
)

func TestRandomNr(t *testing.T) {
	p := &Player{randSeed: 1}

	expected := []int{0xB8, 0x5C, 0x2E, 0x17, 0xB3}
	for i, want := range expected {
		assert.Equal(t, want, p.randomNr(256), "draw %d", i)
	}

	p.randSeed = 1
	assert.Equal(t, 0xB8*10>>8, p.randomNr(10))
}

func TestRampSegments(t *testing.T) {
	tests := []struct {
		name       string
		loop       bool
		results    []int
		values     []int
		lastActive int
	}{
		{
			name:       "one shot",
			results:    []int{rampChanged, rampChanged, 0, 0},
			values:     []int{21, 0, 0, 0},
			lastActive: 0,
		},
		{
			name:       "looping",
			loop:       true,
			results:    []int{rampChanged, rampChanged, 0, rampLooped},
			values:     []int{21, 0, 0, 0},
			lastActive: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Player{randSeed: 1}
			r := &ramp{unk3: 31, maxValue: 63, modWheel: 31, loop: tt.loop}
			target := &rampTarget{}

			// single tick segments: up to +10/31 of the range, back to zero
			p.rampInit(r, &Extra{B: 0, C: 31 + 10, D: 0, E: 31, F: 0, G: 0, H: 31})
			assert.Equal(t, 1, r.active)

			for i := range tt.results {
				assert.Equal(t, tt.results[i], p.rampTick(r, target), "tick %d", i)
				assert.Equal(t, tt.values[i], target.modifyVal, "tick %d", i)
			}
			assert.Equal(t, tt.lastActive, r.active)
		})
	}
}

func TestRampLifetime(t *testing.T) {
	p := &Player{randSeed: 1}
	r := &ramp{unk3: 31, maxValue: 63, modWheel: 31, loop: true}
	target := &rampTarget{}

	// lifetime of one unit is 63 counts, gone after four ticks
	p.rampInit(r, &Extra{A: 1, B: 40, C: 31 + 10, D: 40, E: 31, G: 40, H: 31})
	for i := 0; i < 3; i++ {
		p.rampTick(r, target)
		assert.NotZero(t, r.active)
	}
	assert.Zero(t, p.rampTick(r, target))
	assert.Zero(t, r.active)
}

func TestRampSpreadsRemainder(t *testing.T) {
	p := &Player{randSeed: 1}
	r := &ramp{unk3: 31, maxValue: 63, modWheel: 31}
	target := &rampTarget{}

	// duration class 40 is numStepsTable[volumeLookup[40][31]] ticks
	p.rampInit(r, &Extra{B: 40, C: 31 + 10, D: 0, E: 31, G: 0, H: 31})
	steps := r.numSteps
	assert.Equal(t, numStepsTable[min(volumeLookup[40][31], 31)], steps)

	for i := 0; i < steps; i++ {
		p.rampTick(r, target)
	}
	assert.Equal(t, 21, target.modifyVal, "segment ends exactly on its target")
	assert.Equal(t, 2, r.active)
}

func TestModWheelScalesLinkedRamp(t *testing.T) {
	p := newTestPlayer(t, false)

	p.ProgramChange(0, 40) // strings carry a wheel linked vibrato
	p.ControlChange(0, 1, 100)
	p.NoteOn(0, 60, 100)

	v := &p.voices[1]
	assert.Equal(t, 1, v.rampA.active)
	assert.True(t, v.targetA.modLinked)
	assert.Equal(t, 25, v.rampA.modWheel)

	p.ControlChange(0, 1, 20)
	assert.Equal(t, 5, v.rampA.modWheel)
}

func TestLegacyRampStartsFromCurrentValue(t *testing.T) {
	p := &Player{randSeed: 1, legacy: true}
	r := &ramp{unk3: 31, maxValue: 63, modWheel: 31, startValue: 40}
	target := &rampTarget{}

	p.rampInit(r, &Extra{C: 31 + 10, E: 31, H: 31})
	assert.Equal(t, 40, r.curVal)
	assert.Zero(t, r.startValue)

	// the first target is absolute, so the ramp falls from 40 to 21
	assert.Equal(t, rampChanged, p.rampTick(r, target))
	assert.Equal(t, lookupVolume(63, 10), target.modifyVal)
}

// pulse moves one tick up by 10/31 of the range, one tick back, then holds
// for two ticks.
var pulse = Extra{C: 31 + 10, E: 31, H: 31}

func rampInstrument(flagsA, flagsB byte) Instrument {
	return Instrument{
		ModChar:  0x01,
		ModLevel: 0x10,
		CarChar:  0x02,
		CarLevel: 0x20,
		FlagsA:   flagsA,
		ExtraA:   pulse,
		FlagsB:   flagsB,
		ExtraB:   pulse,
	}
}

// playRamped loads in as a custom patch on part 0 and plays one note.
func playRamped(t *testing.T, legacy bool, in Instrument) (*Player, *voice) {
	t.Helper()
	p := newTestPlayer(t, legacy)
	p.SysExCustomInstrument(0, TagInstrument, in.Bytes())
	p.NoteOn(0, 60, 1)

	for i := range p.voices {
		if p.voices[i].part != nil {
			return p, &p.voices[i]
		}
	}
	require.FailNow(t, "no voice allocated")
	return nil, nil
}

// runTimer drives the card timer until n ramp ticks have run.
func runTimer(p *Player, n int) {
	p.stream.Do(func(c *opl.Chip) {
		for n > 0 {
			before := p.timerCounter
			p.onTimer(c)
			if p.timerCounter < before {
				n--
			}
		}
	})
}

func TestRampDrivesTargets(t *testing.T) {
	level := func(p *Player, reg int) int { return int(readReg(p, reg) & 0x3F) }

	t.Run("carrier level", func(t *testing.T) {
		p, v := playRamped(t, false, rampInstrument(0x80|0x03, 0))
		reg := 0x40 + operator2Offsets[v.channel]
		assert.Equal(t, 63-scaledVolume(32, 127), level(p, reg))

		runTimer(p, 1)
		peak := 32 + lookupVolume(63, 10)
		assert.Equal(t, peak, v.vol2)
		assert.Equal(t, 63-scaledVolume(peak, 127), level(p, reg))

		runTimer(p, 1)
		assert.Equal(t, 32, v.vol2)
		assert.Equal(t, 63-scaledVolume(32, 127), level(p, reg))
	})

	t.Run("modulator level", func(t *testing.T) {
		p, v := playRamped(t, false, rampInstrument(0x80|0x08, 0))
		reg := 0x40 + operator1Offsets[v.channel]
		assert.Equal(t, 63-16, level(p, reg))

		runTimer(p, 1)
		assert.Equal(t, 63-(16+lookupVolume(63, 10)), level(p, reg))
	})

	t.Run("register field", func(t *testing.T) {
		// low nibble 4 is the carrier frequency multiple
		p, v := playRamped(t, false, rampInstrument(0x80|0x04, 0))
		reg := 0x20 + operator2Offsets[v.channel]
		assert.Equal(t, byte(0x02), readReg(p, reg)&0x0F)

		runTimer(p, 1)
		assert.Equal(t, byte(2+lookupVolume(15, 10)), readReg(p, reg)&0x0F)

		runTimer(p, 1)
		assert.Equal(t, byte(0x02), readReg(p, reg)&0x0F)
	})

	t.Run("modulation wheel of the other ramp", func(t *testing.T) {
		p, v := playRamped(t, false, rampInstrument(0x80|0x03, 0x80|0x0D))
		assert.Zero(t, v.rampA.modWheel)

		runTimer(p, 1)
		assert.Equal(t, lookupVolume(0x3E, 10), v.rampA.modWheel)
	})

	t.Run("duration scale of the other ramp", func(t *testing.T) {
		p, v := playRamped(t, false, rampInstrument(0x80|0x03, 0x80|0x0E))
		assert.Zero(t, v.rampA.unk3)

		runTimer(p, 1)
		assert.Equal(t, lookupVolume(0x1F, 10), v.rampA.unk3)
	})

	t.Run("legacy level is absolute", func(t *testing.T) {
		p, v := playRamped(t, true, rampInstrument(0x80|0x03, 0))
		assert.Equal(t, 0x3F-0x20, v.rampA.curVal)

		runTimer(p, 1)
		assert.Equal(t, lookupVolume(63, 10), v.vol2)
	})
}

func TestRampLoopRetrigger(t *testing.T) {
	tests := []struct {
		name      string
		flags     byte
		restarted bool
	}{
		{name: "loop only", flags: 0x80 | 0x20 | 0x04},
		{name: "loop and retrigger", flags: 0x80 | 0x20 | 0x10 | 0x04, restarted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, v := playRamped(t, false, rampInstrument(tt.flags, 0))

			var phase uint32
			p.stream.Do(func(c *opl.Chip) {
				c.Generate(make([]int16, 64))
				phase = c.Operator(v.channel, 1).Phase
			})
			require.NotZero(t, phase)

			// the fourth tick ends the last segment and loops
			runTimer(p, 3)
			assert.Equal(t, 4, v.rampA.active)
			runTimer(p, 1)
			assert.Equal(t, 1, v.rampA.active)

			var op opl.OperatorState
			p.stream.Do(func(c *opl.Chip) { op = c.Operator(v.channel, 1) })
			assert.True(t, op.KeyOn)
			if tt.restarted {
				assert.Zero(t, op.Phase)
			} else {
				assert.Equal(t, phase, op.Phase)
			}
		})
	}
}
