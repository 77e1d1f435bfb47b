package adlib

// ramp is a four segment piecewise-linear modulation generator. Segment 1,
// 2 and 4 move toward a target; segment 3 holds. Durations and targets may
// be randomized.
type ramp struct {
	active     int // current segment 1-4, 0 when idle
	curVal     int
	count      int // remaining lifetime in ticks*17, 0 forever
	maxValue   int
	startValue int
	loop       bool
	tableA     [4]byte // segment durations
	tableB     [4]byte // segment targets

	unk3         int // duration scale, 31 is unity
	modWheel     int // output scale, 31 is unity
	modWheelLast int

	speedLoMax     int
	numSteps       int
	speedHi        int
	direction      int
	speedLo        int
	speedLoCounter int
}

// rampTarget binds a ramp to the parameter it drives.
type rampTarget struct {
	modifyVal int
	param     int
	modLinked bool // follows the part's modulation wheel (flag 0x40)
	retrigger bool // restarts the note each loop (flag 0x10)
	other     *ramp
}

// Result bits of ramp.tick.
const (
	rampChanged = 1 << 0
	rampLooped  = 1 << 1
)

// rampTickDecrement is subtracted from counts and durations each tick;
// both are stored premultiplied by 63.
const rampTickDecrement = 17

// rampInit loads an Extra definition and starts segment 1. The legacy
// driver starts the ramp from the parameter's current value and treats the
// segment targets as absolute.
func (p *Player) rampInit(r *ramp, e *Extra) {
	r.active = 1
	if p.legacy {
		r.curVal = r.startValue
		r.startValue = 0
	} else {
		r.curVal = 0
	}
	r.modWheelLast = 31
	r.count = int(e.A) * 63
	r.tableA = [4]byte{e.B, e.D, e.F, e.G}
	r.tableB = [4]byte{e.C, e.E, 0, e.H}
	p.rampSetup(r)
}

// rampSetup computes the step sizes of the current segment.
func (p *Player) rampSetup(r *ramp) {
	seg := r.active - 1

	t := r.tableA[seg]
	steps := numStepsTable[min(volumeLookup[min(int(t&0x7F), 63)][clampInt(r.unk3, 0, 31)], len(numStepsTable)-1)]
	if t&0x80 != 0 {
		steps = p.randomNr(steps)
	}
	if steps == 0 {
		steps = 1
	}
	r.numSteps = steps
	r.speedLoMax = steps

	delta := 0
	if seg != 2 {
		limit := r.maxValue
		start := r.startValue
		t = r.tableB[seg]
		d := lookupVolume(limit, int(t&0x7F)-31)
		if t&0x80 != 0 {
			d = p.randomNr(d)
		}
		switch {
		case d+start > limit:
			delta = limit - start
		case d+start < 0:
			delta = -start
		default:
			delta = d
		}
		delta -= r.curVal
	}

	r.speedHi = delta / steps
	if delta < 0 {
		delta = -delta
		r.direction = -1
	} else {
		r.direction = 1
	}
	r.speedLo = delta % steps
	r.speedLoCounter = 0
}

// rampTick advances the ramp by one tick and reports whether the output
// changed and whether a loop restarted.
func (p *Player) rampTick(r *ramp, target *rampTarget) int {
	result := 0

	if r.count != 0 {
		r.count -= rampTickDecrement
		if r.count <= 0 {
			r.active = 0
			return 0
		}
	}

	v := r.curVal + r.speedHi
	r.speedLoCounter += r.speedLo
	if r.speedLoCounter >= r.speedLoMax {
		r.speedLoCounter -= r.speedLoMax
		v += r.direction
	}

	if r.curVal != v || r.modWheel != r.modWheelLast {
		r.curVal = v
		r.modWheelLast = r.modWheel
		v = lookupVolume(v, r.modWheelLast)
		if v != target.modifyVal {
			target.modifyVal = v
			result = rampChanged
		}
	}

	r.numSteps--
	if r.numSteps == 0 {
		r.active++
		if r.active > 4 {
			if r.loop {
				r.active = 1
				result |= rampLooped
				p.rampSetup(r)
			} else {
				r.active = 0
			}
		} else {
			p.rampSetup(r)
		}
	}

	return result
}

// randomNr returns a pseudo-random value in [0, a) from an 8-bit LFSR.
func (p *Player) randomNr(a int) int {
	if p.randSeed&1 != 0 {
		p.randSeed >>= 1
		p.randSeed ^= 0xB8
	} else {
		p.randSeed >>= 1
	}
	return int(p.randSeed) * a >> 8
}

// startRamp binds a ramp to its target per the instrument flags and starts
// it. The low nibble of flags selects the parameter.
func (p *Player) startRamp(v *voice, r *ramp, target *rampTarget, flags byte, e *Extra) {
	part := v.part
	target.modifyVal = 0
	target.modLinked = flags&0x40 != 0
	r.loop = flags&0x20 != 0
	target.retrigger = flags&0x10 != 0
	target.param = paramTable1[flags&0x0F]
	r.maxValue = maxValTable[flags&0x0F]
	r.unk3 = 31
	if target.modLinked {
		r.modWheel = part.modWheel >> 2
	} else {
		r.modWheel = 31
	}

	switch target.param {
	case paramCarrierLevel:
		r.startValue = v.vol2
	case paramModulatorLevel:
		r.startValue = v.vol1
	case paramModWheel:
		r.startValue = 31
		target.other.modWheel = 0
	case paramRampScale:
		r.startValue = 0
		target.other.unk3 = 0
	default:
		r.startValue = p.getParam(v.channel, target.param)
	}

	p.rampInit(r, e)
}

// stepRamp runs one tick of a voice ramp and applies its output.
func (p *Player) stepRamp(v *voice, r *ramp, target *rampTarget) {
	code := p.rampTick(r, target)

	if code&rampChanged != 0 {
		switch target.param {
		case paramCarrierLevel:
			v.vol2 = clampInt(r.startValue+target.modifyVal, 0, 63)
			p.setParam(v.channel, paramCarrierLevel, scaledVolume(v.vol2, v.part.volume))
		case paramModulatorLevel:
			v.vol1 = clampInt(r.startValue+target.modifyVal, 0, 63)
			if v.twoChan {
				p.setParam(v.channel, paramModulatorLevel, scaledVolume(v.vol1, v.part.volume))
			} else {
				p.setParam(v.channel, paramModulatorLevel, v.vol1)
			}
		case paramModWheel:
			target.other.modWheel = target.modifyVal
		case paramRampScale:
			target.other.unk3 = target.modifyVal
		default:
			p.setParam(v.channel, target.param, r.startValue+target.modifyVal)
		}
	}

	if code&rampLooped != 0 && target.retrigger {
		p.retrigger(v.channel)
	}
}
