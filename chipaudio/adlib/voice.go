package adlib

import "github.com/valerio/go-chipaudio/chipaudio/bit"

// Register helpers. All of these run with the stream lock held.

func (p *Player) write(reg, val int) {
	p.chip.WriteReg(reg, val&0xFF)
}

func (p *Player) reg(reg int) byte {
	return p.chip.ReadReg(reg)
}

// setupChannel loads a patch into channel ch with the given output
// loudness of each operator.
func (p *Player) setupChannel(ch int, in *Instrument, vol1, vol2 int) {
	port := operator1Offsets[ch]
	p.write(port+0x20, int(in.ModChar))
	p.write(port+0x40, int(in.ModLevel|0x3F)-vol1)
	p.write(port+0x60, int(^in.ModAD))
	p.write(port+0x80, int(^in.ModSR))
	p.write(port+0xE0, int(in.ModWave))

	port = operator2Offsets[ch]
	p.write(port+0x20, int(in.CarChar))
	p.write(port+0x40, int(in.CarLevel|0x3F)-vol2)
	p.write(port+0x60, int(^in.CarAD))
	p.write(port+0x80, int(^in.CarSR))
	p.write(port+0xE0, int(in.CarWave))

	p.write(0xC0+ch, int(in.Feedback))
}

// noteOnEx starts a fresh note; note is in semitones and mod in 1/128
// semitone steps. Any ramp pitch offset is cleared.
func (p *Player) noteOnEx(ch, note, mod int) {
	code := note<<7 + mod
	p.curNote[ch] = code
	p.pitchOffset[ch] = 0
	p.playNote(ch, code)
}

// renote changes the pitch of a sounding note, keeping the ramp offset.
func (p *Player) renote(ch, note, mod int) {
	code := note<<7 + mod
	p.curNote[ch] = code
	p.playNote(ch, p.pitchOffset[ch]+code)
}

// playNote converts a pitch code (semitone<<7 | fraction) to block and
// fnum and keys the channel on. While the channel is already sounding the
// block is kept where the fnum range allows it, so glides do not click.
func (p *Player) playNote(ch, code int) {
	note := (code >> 7) - noteBase
	if note < 0 || note >= 128 {
		note = 0
	}

	oct := min(note/12, 7)
	notex := note%12 + 3

	old := p.reg(0xB0 + ch)
	if old&0x20 != 0 {
		oldOct := int(old>>2) & 7
		switch {
		case oct > oldOct && notex < 6:
			notex += 12
			oct--
		case oct < oldOct && notex > 11:
			notex -= 12
			oct++
		}
	}

	fnum := noteFrequencies[notex*8+(code>>4)&7]
	p.write(0xA0+ch, fnum)
	p.write(0xB0+ch, oct<<2|0x20|fnum>>8)
}

func (p *Player) keyOff(ch int) {
	p.write(0xB0+ch, int(p.reg(0xB0+ch)&^0x20))
}

// retrigger restarts the envelopes of a sounding channel.
func (p *Player) retrigger(ch int) {
	b := p.reg(0xB0 + ch)
	p.write(0xB0+ch, int(b&^0x20))
	p.write(0xB0+ch, int(b|0x20))
}

// paramLocation resolves a ramp parameter to its register and field.
func paramLocation(ch, param int) (int, setParam, bool) {
	switch {
	case param <= 12:
		sp := setParamTable[param]
		return operator2Offsets[ch] + sp.base, sp, true
	case param <= 25:
		sp := setParamTable[param-13]
		return operator1Offsets[ch] + sp.base, sp, true
	case param <= 27:
		sp := setParamTable[param-13]
		return ch + sp.base, sp, true
	default:
		return 0, setParam{}, false
	}
}

// setParam writes one operator or channel field. Params 28 and 29 are
// fine and coarse pitch offsets applied on top of the current note.
func (p *Player) setParam(ch, param, value int) {
	switch param {
	case paramPitchFine, paramPitchCoarse:
		if param == paramPitchFine {
			value -= 15
		} else {
			value -= 383
		}
		value <<= 4
		p.pitchOffset[ch] = value
		p.playNote(ch, p.curNote[ch]+value)
		return
	}

	reg, sp, ok := paramLocation(ch, param)
	if !ok {
		return
	}
	if sp.inversion != 0 {
		value = sp.inversion - value
	}
	p.write(reg, int(bit.InsertBits(p.reg(reg), uint8(value), sp.mask, sp.shift)))
}

// getParam reads back a field in the same units setParam takes.
func (p *Player) getParam(ch, param int) int {
	switch param {
	case paramPitchFine:
		return 0xF
	case paramPitchCoarse:
		return 0x17F
	}

	reg, sp, ok := paramLocation(ch, param)
	if !ok {
		return 0
	}
	value := int(p.reg(reg)>>sp.shift) & int(sp.mask)
	if sp.inversion != 0 {
		value = sp.inversion - value
	}
	return value
}
