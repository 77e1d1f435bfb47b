// Package opl emulates the Yamaha YM3812 (OPL2) FM synthesizer found on
// AdLib and Sound Blaster cards.
// Reference: https://www.fit.vutbr.cz/~arnost/opl/opl3.html
package opl

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-chipaudio/chipaudio/bit"
)

// channel is a pair of operators plus the frequency they share.
type channel struct {
	op        [2]operator
	blockFnum uint32 // block<<10 | fnum
	fc        uint32 // phase step for multiple 1
	kslBase   uint32
	kcode     uint8
}

// slotArray maps the low five bits of an operator register to a slot index
// (channel*2 + operator), -1 for unused offsets.
var slotArray = [32]int{
	0, 2, 4, 1, 3, 5, -1, -1,
	6, 8, 10, 7, 9, 11, -1, -1,
	12, 14, 16, 13, 15, 17, -1, -1,
	-1, -1, -1, -1, -1, -1, -1, -1,
}

// OperatorOffset returns the register offset of a channel's operator:
// op 0 is the modulator, op 1 the carrier.
func OperatorOffset(ch, op int) int {
	return (ch/3)*8 + ch%3 + op*3
}

// Chip is a YM3812 core. It is not safe for concurrent use; Stream
// serializes access to it.
type Chip struct {
	ch [NumChannels]channel

	regs    [256]byte
	address uint8

	egCnt           uint32
	egTimer         uint32
	egTimerAdd      uint32
	egTimerOverflow uint32

	rhythm uint8 // rhythm mode and key bits from 0xBD

	fnTab [1024]uint32

	lfoAMDepth      bool
	lfoPMDepthRange uint8
	lfoAMCnt        uint32
	lfoAMInc        uint32
	lfoPMCnt        uint32
	lfoPMInc        uint32
	lfoAM           uint32
	lfoPM           uint32

	noiseRNG uint32
	noiseP   uint32
	noiseF   uint32

	waveSel bool
	mode    uint8 // CSM and note select from register 0x08

	// Timers count in clock cycles scaled by the output rate.
	timerLen   [2]uint64
	timerAcc   [2]uint64
	timerOn    [2]bool
	status     uint8
	statusMask uint8

	phaseMod int32
	output   int32

	clock int
	rate  int
}

// NewChip creates a chip running at clock Hz that produces rate samples per
// second, and resets it.
func NewChip(clock, rate int) *Chip {
	initTables()

	if clock <= 0 {
		clock = DefaultClock
	}
	if rate <= 0 {
		rate = DefaultRate
	}

	c := &Chip{clock: clock, rate: rate}
	c.initRates()
	c.Reset()

	slog.Debug("opl chip created", "clock", clock, "rate", rate)
	return c
}

// initRates derives the frequency table and counter steps from the ratio
// of the chip's sample clock (clock/72) to the output rate.
func (c *Chip) initRates() {
	freqBase := float64(c.clock) / 72.0 / float64(c.rate)

	for i := range c.fnTab {
		c.fnTab[i] = uint32(float64(i) * 64 * freqBase * (1 << (freqShift - 10)))
	}

	c.lfoAMInc = uint32((1.0 / 64.0) * (1 << lfoShift) * freqBase)
	c.lfoPMInc = uint32((1.0 / 1024.0) * (1 << lfoShift) * freqBase)
	c.noiseF = uint32((1 << freqShift) * freqBase)
	c.egTimerAdd = uint32((1 << egShift) * freqBase)
	c.egTimerOverflow = 1 << egShift
}

// SampleRate returns the output rate in Hz.
func (c *Chip) SampleRate() int { return c.rate }

// Reset returns the chip to its power-on state.
func (c *Chip) Reset() {
	c.egTimer = 0
	c.egCnt = 0
	c.noiseRNG = 1
	c.mode = 0
	c.statusReset(0x7f)

	c.WriteReg(0x01, 0)
	c.WriteReg(0x02, 0)
	c.WriteReg(0x03, 0)
	c.WriteReg(0x04, 0)
	for r := 0xff; r >= 0x20; r-- {
		c.WriteReg(r, 0)
	}

	for i := range c.ch {
		for j := range c.ch[i].op {
			c.ch[i].op[j].volume = maxAttIndex
			c.ch[i].op[j].state = EnvOff
		}
	}
	c.timerAcc = [2]uint64{}
}

// Write is the two-port interface: even ports latch a register address,
// odd ports write data to the latched register.
func (c *Chip) Write(port int, val byte) {
	if port&1 == 0 {
		c.address = val
		return
	}
	c.WriteReg(int(c.address), int(val))
}

// Read returns the status register on even ports and 0xFF on odd ports.
func (c *Chip) Read(port int) byte {
	if port&1 == 0 {
		return c.status & (c.statusMask | StatusIRQ)
	}
	return 0xff
}

// ReadReg returns the last value written to a register.
func (c *Chip) ReadReg(reg int) byte {
	return c.regs[reg&0xff]
}

// Status returns the raw status register.
func (c *Chip) Status() byte {
	return c.status
}

func (c *Chip) statusSet(flag uint8) {
	c.status |= flag
	if c.status&StatusIRQ == 0 && c.status&c.statusMask != 0 {
		c.status |= StatusIRQ
	}
}

func (c *Chip) statusReset(flag uint8) {
	c.status &^= flag
	if c.status&StatusIRQ != 0 && c.status&c.statusMask == 0 {
		c.status &^= StatusIRQ
	}
}

func (c *Chip) slot(reg int) (*channel, *operator, bool) {
	s := slotArray[reg&0x1f]
	if s < 0 {
		return nil, nil, false
	}
	ch := &c.ch[s/2]
	return ch, &ch.op[s&1], true
}

// WriteReg writes val to register reg.
func (c *Chip) WriteReg(reg, val int) {
	r := reg & 0xff
	v := uint8(val)
	c.regs[r] = v

	switch r & 0xe0 {
	case 0x00:
		c.writeControl(r, v)

	case 0x20:
		ch, op, ok := c.slot(r)
		if !ok {
			return
		}
		op.mul = mulTab[v&0x0f]
		op.kSR = 2
		if bit.IsSet(4, v) {
			op.kSR = 0
		}
		op.egType = bit.IsSet(5, v)
		op.vib = bit.IsSet(6, v)
		op.amMask = 0
		if bit.IsSet(7, v) {
			op.amMask = ^uint32(0)
		}
		op.update(ch)

	case 0x40:
		ch, op, ok := c.slot(r)
		if !ok {
			return
		}
		ksl := bit.ExtractBits(v, 7, 6)
		op.ksl = 31
		if ksl != 0 {
			op.ksl = 3 - ksl
		}
		op.tl = uint32(v&0x3f) << (envBits - 1 - 7)
		op.tll = int32(op.tl + (ch.kslBase >> op.ksl))

	case 0x60:
		_, op, ok := c.slot(r)
		if !ok {
			return
		}
		op.ar = rateCode(bit.HighNibble(v))
		op.setAttack()
		op.dr = rateCode(bit.LowNibble(v))
		op.egShDR = egRateShift[op.dr+uint32(op.ksr)]
		op.egSelDR = egRateSelect[op.dr+uint32(op.ksr)]

	case 0x80:
		_, op, ok := c.slot(r)
		if !ok {
			return
		}
		op.sl = slTab[bit.HighNibble(v)]
		op.rr = rateCode(bit.LowNibble(v))
		op.egShRR = egRateShift[op.rr+uint32(op.ksr)]
		op.egSelRR = egRateSelect[op.rr+uint32(op.ksr)]

	case 0xa0:
		if r == 0xbd {
			c.writeRhythm(v)
			return
		}
		c.writeFrequency(r, v)

	case 0xc0:
		if r&0x0f > 8 {
			return
		}
		op := &c.ch[r&0x0f].op[0]
		fb := bit.ExtractBits(v, 3, 1)
		op.fb = 0
		if fb != 0 {
			op.fb = fb + 7
		}
		op.con = bit.IsSet(0, v)

	case 0xe0:
		_, op, ok := c.slot(r)
		if !ok {
			return
		}
		if c.waveSel {
			op.waveTable = uint32(v&0x03) * sinLen
		}
	}
}

func (c *Chip) writeControl(r int, v uint8) {
	switch r & 0x1f {
	case 0x01:
		c.waveSel = bit.IsSet(5, v)
	case 0x02:
		c.timerLen[0] = uint64(256-int(v)) * 4
	case 0x03:
		c.timerLen[1] = uint64(256-int(v)) * 16
	case 0x04:
		if bit.IsSet(7, v) {
			// IRQ reset leaves the timers alone
			c.statusReset(0x7f - 0x08)
			return
		}
		c.statusReset(v & (0x78 - 0x08))
		c.statusMask = ^v & 0x78
		for i := 0; i < 2; i++ {
			on := bit.IsSet(uint8(i), v)
			if on && !c.timerOn[i] {
				c.timerAcc[i] = 0
			}
			c.timerOn[i] = on
		}
	case 0x08:
		c.mode = v
	default:
		slog.Debug("opl: unhandled control register", "reg", fmt.Sprintf("0x%02X", r), "value", v)
	}
}

func (c *Chip) writeFrequency(r int, v uint8) {
	if r&0x0f > 8 {
		return
	}
	ch := &c.ch[r&0x0f]

	var blockFnum uint32
	if r&0x10 == 0 {
		// a0-a8: fnum low byte
		blockFnum = (ch.blockFnum & 0x1f00) | uint32(v)
	} else {
		// b0-b8: key on, block, fnum high bits
		blockFnum = uint32(v&0x1f)<<8 | (ch.blockFnum & 0xff)
		if bit.IsSet(5, v) {
			ch.op[0].keyOn(keyNormal)
			ch.op[1].keyOn(keyNormal)
		} else {
			ch.op[0].keyOff(keyNormal)
			ch.op[1].keyOff(keyNormal)
		}
	}

	if ch.blockFnum == blockFnum {
		return
	}
	block := uint8(blockFnum >> 10)
	ch.blockFnum = blockFnum
	ch.kslBase = kslTab[blockFnum>>6]
	ch.fc = c.fnTab[blockFnum&0x03ff] >> (7 - block)

	// key scale: block plus fnum bit 9, or bit 8 with note select
	ch.kcode = uint8((blockFnum & 0x1c00) >> 9)
	if bit.IsSet(6, c.mode) {
		ch.kcode |= uint8((blockFnum & 0x100) >> 8)
	} else {
		ch.kcode |= uint8((blockFnum & 0x200) >> 9)
	}

	for i := range ch.op {
		op := &ch.op[i]
		op.tll = int32(op.tl + (ch.kslBase >> op.ksl))
		op.update(ch)
	}
}

func (c *Chip) writeRhythm(v uint8) {
	c.lfoAMDepth = bit.IsSet(7, v)
	c.lfoPMDepthRange = 0
	if bit.IsSet(6, v) {
		c.lfoPMDepthRange = 8
	}
	c.rhythm = v & 0x3f

	bd := &c.ch[bassDrumChannel]
	hs := &c.ch[hihatSnareChannel]
	tc := &c.ch[tomCymbalChannel]

	if !bit.IsSet(5, c.rhythm) {
		for _, ch := range []*channel{bd, hs, tc} {
			ch.op[0].keyOff(keyRhythm)
			ch.op[1].keyOff(keyRhythm)
		}
		return
	}

	rhythmKey(&bd.op[0], bit.IsSet(4, v))
	rhythmKey(&bd.op[1], bit.IsSet(4, v))
	rhythmKey(&hs.op[0], bit.IsSet(0, v)) // high hat
	rhythmKey(&hs.op[1], bit.IsSet(3, v)) // snare
	rhythmKey(&tc.op[0], bit.IsSet(2, v)) // tom
	rhythmKey(&tc.op[1], bit.IsSet(1, v)) // top cymbal
}

func rhythmKey(op *operator, on bool) {
	if on {
		op.keyOn(keyRhythm)
	} else {
		op.keyOff(keyRhythm)
	}
}

// RhythmMode reports whether register 0xBD has the rhythm section enabled.
func (c *Chip) RhythmMode() bool {
	return bit.IsSet(5, c.rhythm)
}

// OperatorState is a snapshot of one operator.
type OperatorState struct {
	State       EnvState
	Attenuation int
	KeyOn       bool
	Phase       uint32
	Step        uint32
	TotalLevel  int
	SustainLvl  int
	WaveTable   int
}

// Operator returns the state of operator op (0 modulator, 1 carrier) of
// channel ch.
func (c *Chip) Operator(ch, op int) OperatorState {
	if ch < 0 || ch >= NumChannels || op < 0 || op > 1 {
		panic(fmt.Sprintf("opl: operator %d/%d out of range", ch, op))
	}
	o := &c.ch[ch].op[op]
	return OperatorState{
		State:       o.state,
		Attenuation: int(o.volume),
		KeyOn:       o.key != 0,
		Phase:       o.cnt,
		Step:        o.incr,
		TotalLevel:  int(o.tl),
		SustainLvl:  int(o.sl),
		WaveTable:   int(o.waveTable / sinLen),
	}
}

// ChannelFrequency returns the block and fnum last written to a channel.
func (c *Chip) ChannelFrequency(ch int) (block, fnum int) {
	if ch < 0 || ch >= NumChannels {
		panic(fmt.Sprintf("opl: channel %d out of range", ch))
	}
	bf := c.ch[ch].blockFnum
	return int(bf >> 10), int(bf & 0x3ff)
}
