package opl

// Generate renders len(buf) mono samples.
func (c *Chip) Generate(buf []int16) {
	rhythm := c.RhythmMode()

	for i := range buf {
		c.output = 0
		c.advanceLFO()

		for ch := 0; ch < 6; ch++ {
			c.calcChannel(&c.ch[ch])
		}
		if rhythm {
			c.calcRhythm()
		} else {
			c.calcChannel(&c.ch[6])
			c.calcChannel(&c.ch[7])
			c.calcChannel(&c.ch[8])
		}

		out := c.output
		if out > maxOut {
			out = maxOut
		} else if out < minOut {
			out = minOut
		}
		buf[i] = int16(out)

		c.advance()
		c.advanceTimers()
	}
}

func (c *Chip) advanceLFO() {
	c.lfoAMCnt += c.lfoAMInc
	if c.lfoAMCnt >= lfoAMTabElements<<lfoShift {
		c.lfoAMCnt -= lfoAMTabElements << lfoShift
	}

	tmp := uint32(lfoAMTab[c.lfoAMCnt>>lfoShift])
	if c.lfoAMDepth {
		c.lfoAM = tmp
	} else {
		c.lfoAM = tmp >> 2
	}

	c.lfoPMCnt += c.lfoPMInc
	c.lfoPM = ((c.lfoPMCnt >> lfoShift) & 7) | uint32(c.lfoPMDepthRange)
}

// calcChannel runs both operators of a melodic channel.
func (c *Chip) calcChannel(ch *channel) {
	c.phaseMod = 0

	mod := &ch.op[0]
	env := mod.envelope(c.lfoAM)
	out := mod.out[0] + mod.out[1]
	mod.out[0] = mod.out[1]
	if mod.con {
		c.output += mod.out[0]
	} else {
		c.phaseMod = mod.out[0]
	}
	mod.out[1] = 0
	if env < envQuiet {
		if mod.fb == 0 {
			out = 0
		}
		mod.out[1] = opCalc1(mod.cnt, env, out<<mod.fb, mod.waveTable)
	}

	car := &ch.op[1]
	env = car.envelope(c.lfoAM)
	if env < envQuiet {
		c.output += opCalc(car.cnt, env, c.phaseMod, car.waveTable)
	}
}

// calcRhythm renders the five percussion voices of channels 6, 7 and 8.
// The phase formulas reproduce the chip's wiring bit for bit.
func (c *Chip) calcRhythm() {
	noise := c.noiseRNG & 1

	// Bass drum: channel 6 as a normal channel with doubled output. With
	// CON set the modulator output is dropped.
	bd := &c.ch[bassDrumChannel]
	mod := &bd.op[0]
	env := mod.envelope(c.lfoAM)
	out := mod.out[0] + mod.out[1]
	mod.out[0] = mod.out[1]
	c.phaseMod = 0
	if !mod.con {
		c.phaseMod = mod.out[0]
	}
	mod.out[1] = 0
	if env < envQuiet {
		if mod.fb == 0 {
			out = 0
		}
		mod.out[1] = opCalc1(mod.cnt, env, out<<mod.fb, mod.waveTable)
	}
	car := &bd.op[1]
	env = car.envelope(c.lfoAM)
	if env < envQuiet {
		c.output += opCalc(car.cnt, env, c.phaseMod, car.waveTable) * 2
	}

	hh := &c.ch[hihatSnareChannel].op[0]
	sd := &c.ch[hihatSnareChannel].op[1]
	tom := &c.ch[tomCymbalChannel].op[0]
	cym := &c.ch[tomCymbalChannel].op[1]

	// The high hat and top cymbal share a phase built from bits of the
	// high hat (channel 7 op 0) and top cymbal (channel 8 op 1) counters.
	hhPhase := hh.cnt >> freqShift
	bit7 := (hhPhase >> 7) & 1
	bit3 := (hhPhase >> 3) & 1
	bit2 := (hhPhase >> 2) & 1
	res1 := (bit2^bit7)|bit3 != 0

	cymPhase := cym.cnt >> freqShift
	bit5e := (cymPhase >> 5) & 1
	bit3e := (cymPhase >> 3) & 1
	res2 := bit3e^bit5e != 0

	// High hat
	env = hh.envelope(c.lfoAM)
	if env < envQuiet {
		phase := uint32(0xd0)
		if res1 || res2 {
			phase = 0x200 | (0xd0 >> 2)
		}
		if phase&0x200 != 0 {
			if noise != 0 {
				phase = 0x200 | 0xd0
			}
		} else if noise != 0 {
			phase = 0xd0 >> 2
		}
		c.output += opCalc(phase<<freqShift, env, 0, hh.waveTable) * 2
	}

	// Snare drum
	env = sd.envelope(c.lfoAM)
	if env < envQuiet {
		phase := uint32(0x100)
		if (hhPhase>>8)&1 != 0 {
			phase = 0x200
		}
		if noise != 0 {
			phase ^= 0x100
		}
		c.output += opCalc(phase<<freqShift, env, 0, sd.waveTable) * 2
	}

	// Tom tom
	env = tom.envelope(c.lfoAM)
	if env < envQuiet {
		c.output += opCalc(tom.cnt, env, 0, tom.waveTable) * 2
	}

	// Top cymbal
	env = cym.envelope(c.lfoAM)
	if env < envQuiet {
		phase := uint32(0x100)
		if res1 || res2 {
			phase = 0x300
		}
		c.output += opCalc(phase<<freqShift, env, 0, cym.waveTable) * 2
	}
}

// advance steps the envelope generators, phase counters and noise
// generator by one output sample.
func (c *Chip) advance() {
	c.egTimer += c.egTimerAdd
	for c.egTimer >= c.egTimerOverflow {
		c.egTimer -= c.egTimerOverflow
		c.egCnt++

		for i := range c.ch {
			c.ch[i].op[0].advanceEnvelope(c.egCnt)
			c.ch[i].op[1].advanceEnvelope(c.egCnt)
		}
	}

	for i := range c.ch {
		ch := &c.ch[i]
		for j := range ch.op {
			op := &ch.op[j]
			if !op.vib {
				op.cnt += op.incr
				continue
			}

			fnumLFO := (ch.blockFnum & 0x0380) >> 7
			offset := int32(lfoPMTab[c.lfoPM+16*fnumLFO])
			if offset == 0 {
				op.cnt += op.incr
				continue
			}
			blockFnum := uint32(int32(ch.blockFnum) + offset)
			block := (blockFnum & 0x1c00) >> 10
			op.cnt += (c.fnTab[blockFnum&0x03ff] >> (7 - block)) * op.mul
		}
	}

	// The noise generator is a 23-bit shift register clocked at the chip's
	// sample rate, with taps at bits 0, 14, 15 and 22.
	c.noiseP += c.noiseF
	n := c.noiseP >> freqShift
	c.noiseP &= freqMask
	for ; n > 0; n-- {
		if c.noiseRNG&1 != 0 {
			c.noiseRNG ^= 0x800302
		}
		c.noiseRNG >>= 1
	}
}

// advanceTimers runs the two interval timers for one output sample. A timer
// unit is 72 master clock cycles, so an overflow happens after
// len*72/clock seconds.
func (c *Chip) advanceTimers() {
	for i := range c.timerOn {
		if !c.timerOn[i] || c.timerLen[i] == 0 {
			continue
		}
		c.timerAcc[i] += uint64(c.clock)
		period := c.timerLen[i] * 72 * uint64(c.rate)
		for c.timerAcc[i] >= period {
			c.timerAcc[i] -= period
			if i == 0 {
				c.statusSet(StatusTimer1)
			} else {
				c.statusSet(StatusTimer2)
			}
		}
	}
}
