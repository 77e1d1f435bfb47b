package opl

// operator is one sine generator with its envelope.
type operator struct {
	ar  uint32 // attack rate: ar<<2
	dr  uint32 // decay rate: dr<<2
	rr  uint32 // release rate: rr<<2
	kSR uint8  // key scale rate shift: 0 or 2
	ksl uint8  // key scale level shift
	ksr uint8  // key scale rate: kcode>>kSR
	mul uint32 // multiple: mulTab[ML]

	// Phase generator
	cnt  uint32 // frequency counter
	incr uint32 // frequency counter step
	fb   uint8  // feedback shift value
	con  bool   // connection (first operator of a channel only)
	out  [2]int32

	// Envelope generator
	egType bool // percussive (false) or sustained (true)
	state  EnvState
	tl     uint32 // total level: TL << 2
	tll    int32  // adjusted total level: tl + kslBase>>ksl
	volume int32  // envelope counter
	sl     uint32 // sustain level: slTab[SL]

	egShAR, egSelAR uint8
	egShDR, egSelDR uint8
	egShRR, egSelRR uint8

	key uint8 // key-on sources, 0 when off

	// LFO
	amMask uint32
	vib    bool

	waveTable uint32 // offset of the waveform in sinTab
}

// keyOn starts the attack when the operator goes from no key source to one.
func (op *operator) keyOn(source uint8) {
	if op.key == 0 {
		op.cnt = 0
		op.state = EnvAttack
	}
	op.key |= source
}

// keyOff drops a key source and releases once none remain.
func (op *operator) keyOff(source uint8) {
	if op.key == 0 {
		return
	}
	op.key &^= source
	if op.key == 0 && op.state > EnvRelease {
		op.state = EnvRelease
	}
}

// update refreshes the phase step and the rate selections for a new
// channel frequency or key scale.
func (op *operator) update(ch *channel) {
	op.incr = ch.fc * op.mul
	ksr := ch.kcode >> op.kSR
	if op.ksr == ksr {
		return
	}
	op.ksr = ksr
	op.setAttack()
	op.egShDR = egRateShift[op.dr+uint32(op.ksr)]
	op.egSelDR = egRateSelect[op.dr+uint32(op.ksr)]
	op.egShRR = egRateShift[op.rr+uint32(op.ksr)]
	op.egSelRR = egRateSelect[op.rr+uint32(op.ksr)]
}

func (op *operator) setAttack() {
	if op.ar+uint32(op.ksr) < 16+62 {
		op.egShAR = egRateShift[op.ar+uint32(op.ksr)]
		op.egSelAR = egRateSelect[op.ar+uint32(op.ksr)]
	} else {
		op.egShAR = 0
		op.egSelAR = egRowAttackMax * rateSteps
	}
}

// rateCode expands a 4-bit rate into the table index base.
func rateCode(v uint8) uint32 {
	if v == 0 {
		return 0
	}
	return 16 + uint32(v)<<2
}

// advanceEnvelope runs one envelope generator step at counter value egCnt.
func (op *operator) advanceEnvelope(egCnt uint32) {
	switch op.state {
	case EnvAttack:
		if egCnt&((1<<op.egShAR)-1) == 0 {
			inc := int32(egInc[uint32(op.egSelAR)+((egCnt>>op.egShAR)&7)])
			op.volume += (^op.volume * inc) >> 3
			if op.volume <= minAttIndex {
				op.volume = minAttIndex
				op.state = EnvDecay
			}
		}

	case EnvDecay:
		if egCnt&((1<<op.egShDR)-1) == 0 {
			op.volume += int32(egInc[uint32(op.egSelDR)+((egCnt>>op.egShDR)&7)])
			if uint32(op.volume) >= op.sl {
				op.state = EnvSustain
			}
		}

	case EnvSustain:
		// A sustained tone holds here until key off. A percussive one
		// keeps releasing while the key is down.
		if op.egType {
			break
		}
		if egCnt&((1<<op.egShRR)-1) == 0 {
			op.volume += int32(egInc[uint32(op.egSelRR)+((egCnt>>op.egShRR)&7)])
			if op.volume >= maxAttIndex {
				op.volume = maxAttIndex
			}
		}

	case EnvRelease:
		if egCnt&((1<<op.egShRR)-1) == 0 {
			op.volume += int32(egInc[uint32(op.egSelRR)+((egCnt>>op.egShRR)&7)])
			if op.volume >= maxAttIndex {
				op.volume = maxAttIndex
				op.state = EnvOff
			}
		}
	}
}

// envelope returns the operator's total attenuation including tremolo.
func (op *operator) envelope(lfoAM uint32) uint32 {
	return uint32(op.tll) + uint32(op.volume) + (lfoAM & op.amMask)
}

// opCalc looks up the output for a phase modulated by pm in whole sine steps.
func opCalc(phase uint32, env uint32, pm int32, waveTable uint32) int32 {
	idx := uint32(int32((phase&^freqMask)+uint32(pm<<16))>>freqShift) & sinMask
	p := (env << 4) + sinTab[waveTable+idx]
	if p >= tlTabLen {
		return 0
	}
	return tlTab[p]
}

// opCalc1 is opCalc with pm already in phase counter units (feedback path).
func opCalc1(phase uint32, env uint32, pm int32, waveTable uint32) int32 {
	idx := uint32(int32((phase&^freqMask)+uint32(pm))>>freqShift) & sinMask
	p := (env << 4) + sinTab[waveTable+idx]
	if p >= tlTabLen {
		return 0
	}
	return tlTab[p]
}
