// Package adlib plays a 16 part MIDI-like stream on an emulated AdLib card,
// allocating the nine OPL2 channels between parts by priority.
package adlib

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"

	"github.com/valerio/go-chipaudio/chipaudio/opl"
)

const (
	numChannels = opl.NumChannels

	// NumParts is the number of MIDI channels.
	NumParts = 16
	// PercussionPart is the GM drum channel.
	PercussionPart = 9

	// callbackFreq is the rate of the card timer driving durations and ramps.
	callbackFreq = 250

	// Ramps tick timerIncrease/timerThreshold times per card timer tick.
	timerIncrease  = 0xD69
	timerThreshold = 0x411B
)

// SysEx tags of the custom instrument messages.
var (
	TagInstrument = binary.BigEndian.Uint32([]byte("ADL "))
	TagPercussion = binary.BigEndian.Uint32([]byte("ADLP"))
)

// Config selects the output format and driver variant.
type Config struct {
	Rate   int
	Stereo bool
	// Legacy is the early driver variant: no voice stealing and
	// instrument levels stored as attenuation.
	Legacy bool
}

type part struct {
	index           int
	instr           Instrument
	pitchBend       int // -8192..8191
	pitchBendFactor int
	transpose       int
	volume          int
	detune          int
	modWheel        int
	pedal           bool
	program         int
	priority        int
	voices          []*voice // newest first
}

type voice struct {
	part         *part
	channel      int
	note         int
	twoChan      bool
	vol1, vol2   int
	duration     int
	waitForPedal bool

	rampA, rampB     ramp
	targetA, targetB rampTarget
}

// VoiceStatus describes one FM channel.
type VoiceStatus struct {
	Channel int
	Active  bool
	Part    int
	Note    int
	// Held is true while the note waits for the sustain pedal.
	Held bool
}

// Player maps MIDI messages onto the OPL2 channels. All methods are safe
// for concurrent use; they serialize on the stream lock.
type Player struct {
	stream *opl.Stream
	chip   *opl.Chip // only touched with the stream lock held
	legacy bool

	parts  [NumParts]part
	voices [numChannels]voice

	voiceIndex   int
	randSeed     uint8
	timerCounter int

	curNote     [numChannels]int
	pitchOffset [numChannels]int

	customPerc  [128]*Instrument
	customNotes [128]int
}

// New creates a player with its own emulated card and starts the card
// timer.
func New(cfg Config) *Player {
	p := &Player{
		stream:   opl.NewStream(opl.StreamConfig{Rate: cfg.Rate, Stereo: cfg.Stereo}),
		legacy:   cfg.Legacy,
		randSeed: 1,
	}

	for i := range p.parts {
		p.parts[i] = newPart(i)
	}
	for i := range p.voices {
		v := &p.voices[i]
		v.channel = i
		v.targetA.other = &v.rampB
		v.targetB.other = &v.rampA
	}

	p.stream.Do(func(c *opl.Chip) {
		p.chip = c
		p.write(0x01, 0x20) // enable wave select
		p.write(0x08, 0x40) // note select
		p.write(0xBD, 0x00) // melodic mode
	})
	p.stream.Start(p.onTimer, callbackFreq)

	slog.Debug("adlib player started", "rate", p.stream.SampleRate(), "legacy", cfg.Legacy)
	return p
}

func newPart(i int) part {
	pt := part{
		index:           i,
		pitchBendFactor: 2,
		volume:          127,
		priority:        127,
		instr:           melodicInstruments[0],
	}
	if i == PercussionPart {
		pt.priority = 0
	}
	return pt
}

// Generate fills buf with card output and returns len(buf).
func (p *Player) Generate(buf []int16) int { return p.stream.Generate(buf) }

// SampleRate returns the output rate in Hz.
func (p *Player) SampleRate() int { return p.stream.SampleRate() }

// Channels returns the number of interleaved output channels.
func (p *Player) Channels() int { return p.stream.Channels() }

// Close stops the card; Generate returns silence afterwards.
func (p *Player) Close() { p.stream.Stop() }

// do runs fn with the stream lock held.
func (p *Player) do(fn func()) {
	p.stream.Do(func(*opl.Chip) { fn() })
}

func (p *Player) part(i int) *part {
	if i < 0 || i >= NumParts {
		panic(fmt.Sprintf("adlib: part %d out of range", i))
	}
	return &p.parts[i]
}

// NoteOn starts a note. A velocity of zero is a note off.
func (p *Player) NoteOn(partIdx, note, velocity int) {
	pt := p.part(partIdx)
	p.do(func() {
		if velocity == 0 {
			p.noteOff(pt, note&0x7F)
			return
		}
		p.noteOn(pt, note&0x7F, velocity&0x7F)
	})
}

// NoteOff releases the part's voices playing note, or marks them to be
// released when the sustain pedal goes up.
func (p *Player) NoteOff(partIdx, note int) {
	pt := p.part(partIdx)
	p.do(func() { p.noteOff(pt, note&0x7F) })
}

// ControlChange applies a controller. Unsupported controllers are ignored.
func (p *Player) ControlChange(partIdx, control, value int) {
	pt := p.part(partIdx)
	p.do(func() { p.controlChange(pt, control, value&0x7F) })
}

// ProgramChange selects one of the built-in melodic patches.
func (p *Player) ProgramChange(partIdx, program int) {
	pt := p.part(partIdx)
	p.do(func() { p.programChange(pt, program) })
}

// PitchBend sets the 14-bit pitch wheel position, 0x2000 is centered.
func (p *Player) PitchBend(partIdx, value int) {
	pt := p.part(partIdx)
	p.do(func() { p.pitchBend(pt, (value&0x3FFF)-0x2000) })
}

// Send decodes a packed short MIDI message: status in the low byte, then
// the two data bytes.
func (p *Player) Send(msg uint32) {
	status := byte(msg)
	d1 := int(msg>>8) & 0x7F
	d2 := int(msg>>16) & 0x7F
	ch := int(status & 0x0F)

	switch status & 0xF0 {
	case 0x80:
		p.NoteOff(ch, d1)
	case 0x90:
		p.NoteOn(ch, d1, d2)
	case 0xB0:
		p.ControlChange(ch, d1, d2)
	case 0xC0:
		p.ProgramChange(ch, d1)
	case 0xE0:
		p.PitchBend(ch, d1|d2<<7)
	default:
		slog.Debug("adlib: ignoring midi message", "status", fmt.Sprintf("0x%02X", status))
	}
}

// SysExCustomInstrument installs a custom patch. TagInstrument replaces a
// melodic part's instrument with the 30 byte payload. TagPercussion maps
// one drum key: payload is key, output note, then 11 register bytes.
func (p *Player) SysExCustomInstrument(partIdx int, tag uint32, payload []byte) {
	pt := p.part(partIdx)
	p.do(func() {
		switch {
		case tag == TagInstrument && pt.index != PercussionPart:
			in, err := ParseInstrument(payload)
			if err != nil {
				slog.Warn("adlib: custom instrument", "part", pt.index, "error", err)
			}
			pt.instr = in

		case tag == TagPercussion && pt.index == PercussionPart:
			if len(payload) < 2 {
				slog.Warn("adlib: short percussion sysex", "len", len(payload))
				return
			}
			in, ok := percussionInstrument(payload[2:])
			if !ok {
				return
			}
			key := int(payload[0] & 0x7F)
			p.customNotes[key] = int(payload[1] & 0x7F)
			p.customPerc[key] = &in

		default:
			slog.Debug("adlib: ignoring custom instrument", "part", pt.index, "tag", fmt.Sprintf("0x%08X", tag))
		}
	})
}

// Voices returns the state of the nine channels.
func (p *Player) Voices() []VoiceStatus {
	out := make([]VoiceStatus, numChannels)
	p.do(func() {
		for i := range p.voices {
			v := &p.voices[i]
			out[i] = VoiceStatus{Channel: i, Part: -1}
			if v.part != nil {
				out[i] = VoiceStatus{
					Channel: i,
					Active:  true,
					Part:    v.part.index,
					Note:    v.note,
					Held:    v.waitForPedal,
				}
			}
		}
	})
	return out
}

func (p *Player) noteOn(pt *part, note, velocity int) {
	instr := &pt.instr

	if pt.index == PercussionPart {
		if custom := p.customPerc[note]; custom != nil {
			instr = custom
			note = p.customNotes[note]
		} else {
			key := gmPercussionMap[note]
			if key == noPercussion {
				slog.Debug("adlib: no instrument for percussion key", "key", note)
				return
			}
			instr = &percussionInstruments[key]
		}
	}

	v := p.allocateVoice(pt.priority)
	if v == nil {
		slog.Debug("adlib: no free voice, note dropped", "part", pt.index, "note", note)
		return
	}
	p.linkVoice(pt, v)
	p.keyOn(v, instr, note, velocity)
}

func (p *Player) noteOff(pt *part, note int) {
	if pt.index == PercussionPart && p.customPerc[note] != nil {
		note = p.customNotes[note]
	}

	for _, v := range slices.Clone(pt.voices) {
		if v.note != note {
			continue
		}
		if pt.pedal {
			v.waitForPedal = true
		} else {
			p.releaseVoice(v)
		}
	}
}

// allocateVoice finds a channel, scanning round-robin from the last one
// handed out. Without a free channel it steals the oldest voice of the
// lowest priority part not above pri, unless running the legacy driver.
func (p *Player) allocateVoice(pri int) *voice {
	var best *voice

	for i := 0; i < numChannels; i++ {
		p.voiceIndex++
		if p.voiceIndex >= numChannels {
			p.voiceIndex = 0
		}
		v := &p.voices[p.voiceIndex]
		if v.part == nil {
			return v
		}
		if v.isOldest() && v.part.priority <= pri {
			pri = v.part.priority
			best = v
		}
	}

	if p.legacy {
		return nil
	}
	if best != nil {
		slog.Debug("adlib: stealing voice", "channel", best.channel, "part", best.part.index, "note", best.note)
		p.releaseVoice(best)
	}
	return best
}

func (v *voice) isOldest() bool {
	vs := v.part.voices
	return len(vs) > 0 && vs[len(vs)-1] == v
}

func (p *Player) linkVoice(pt *part, v *voice) {
	v.part = pt
	pt.voices = slices.Insert(pt.voices, 0, v)
}

// releaseVoice keys the channel off and frees it. The envelope keeps
// releasing on the chip.
func (p *Player) releaseVoice(v *voice) {
	p.keyOff(v.channel)

	pt := v.part
	if i := slices.Index(pt.voices, v); i >= 0 {
		pt.voices = slices.Delete(pt.voices, i, i+1)
	}
	v.part = nil
	v.rampA.active = 0
	v.rampB.active = 0
}

func (p *Player) keyOn(v *voice, instr *Instrument, note, velocity int) {
	pt := v.part

	v.twoChan = instr.twoChan()
	v.note = note
	v.waitForPedal = false
	v.duration = int(instr.Duration) * 63

	var vol1, vol2 int
	if p.legacy {
		vol1 = 0x3F - int(instr.ModLevel&0x3F)
		vol2 = 0x3F - int(instr.CarLevel&0x3F)
	} else {
		vol1 = int(instr.ModLevel&0x3F) + velocity*(int(instr.ModWave>>3)+1)/64
		vol2 = int(instr.CarLevel&0x3F) + velocity*(int(instr.CarWave>>3)+1)/64
	}
	v.vol1 = min(vol1, 0x3F)
	v.vol2 = min(vol2, 0x3F)

	vol1 = v.vol1
	vol2 = scaledVolume(v.vol2, pt.volume)
	if v.twoChan {
		vol1 = scaledVolume(v.vol1, pt.volume)
	}

	p.setupChannel(v.channel, instr, vol1, vol2)
	p.noteOnEx(v.channel, pt.transpose+note, pt.detune+(pt.pitchBend*pt.pitchBendFactor>>6))

	if instr.FlagsA&0x80 != 0 {
		p.startRamp(v, &v.rampA, &v.targetA, instr.FlagsA, &instr.ExtraA)
	} else {
		v.rampA.active = 0
	}
	if instr.FlagsB&0x80 != 0 {
		p.startRamp(v, &v.rampB, &v.targetB, instr.FlagsB, &instr.ExtraB)
	} else {
		v.rampB.active = 0
	}
}

func (p *Player) controlChange(pt *part, control, value int) {
	switch control {
	case 1:
		p.modulationWheel(pt, value)
	case 7:
		p.setVolume(pt, value)
	case 10:
		slog.Debug("adlib: panning not supported", "part", pt.index, "value", value)
	case 16:
		pt.pitchBendFactor = value
		p.retune(pt)
	case 17:
		pt.detune = value
		p.retune(pt)
	case 18:
		pt.priority = value
	case 64:
		p.sustain(pt, value > 0)
	case 121:
		p.modulationWheel(pt, 0)
		pt.pitchBendFactor = 0
		pt.detune = 0
		p.retune(pt)
		p.sustain(pt, false)
	case 123:
		for len(pt.voices) > 0 {
			p.releaseVoice(pt.voices[0])
		}
	default:
		slog.Debug("adlib: unsupported controller", "part", pt.index, "control", control, "value", value)
	}
}

func (p *Player) modulationWheel(pt *part, value int) {
	pt.modWheel = value
	for _, v := range pt.voices {
		if v.rampA.active != 0 && v.targetA.modLinked {
			v.rampA.modWheel = value >> 2
		}
		if v.rampB.active != 0 && v.targetB.modLinked {
			v.rampB.modWheel = value >> 2
		}
	}
}

func (p *Player) setVolume(pt *part, value int) {
	pt.volume = value
	for _, v := range pt.voices {
		p.setParam(v.channel, paramCarrierLevel, scaledVolume(v.vol2, pt.volume))
		if v.twoChan {
			p.setParam(v.channel, paramModulatorLevel, scaledVolume(v.vol1, pt.volume))
		}
	}
}

func (p *Player) sustain(pt *part, down bool) {
	pt.pedal = down
	if down {
		return
	}
	for _, v := range slices.Clone(pt.voices) {
		if v.waitForPedal {
			p.releaseVoice(v)
		}
	}
}

func (p *Player) pitchBend(pt *part, bend int) {
	if pt.index == PercussionPart {
		return
	}
	pt.pitchBend = bend
	p.retune(pt)
}

// retune replays the part's voices after a pitch parameter changed.
func (p *Player) retune(pt *part) {
	for _, v := range pt.voices {
		p.renote(v.channel, v.note+pt.transpose, pt.pitchBend*pt.pitchBendFactor>>6+pt.detune)
	}
}

func (p *Player) programChange(pt *part, program int) {
	if program < 0 || program > 127 {
		return
	}
	if pt.index == PercussionPart {
		slog.Debug("adlib: program change on percussion part ignored", "program", program)
		return
	}
	pt.program = program
	pt.instr = melodicInstruments[program>>3]
}

// onTimer is the card timer callback.
func (p *Player) onTimer(*opl.Chip) {
	p.timerCounter += timerIncrease
	for p.timerCounter >= timerThreshold {
		p.timerCounter -= timerThreshold
		p.tickVoices()
	}
}

// tickVoices counts down note durations and runs the ramps.
func (p *Player) tickVoices() {
	for i := range p.voices {
		v := &p.voices[i]
		if v.part == nil {
			continue
		}
		if v.duration != 0 {
			v.duration -= rampTickDecrement
			if v.duration <= 0 {
				p.releaseVoice(v)
				continue
			}
		}
		if v.rampA.active != 0 {
			p.stepRamp(v, &v.rampA, &v.targetA)
		}
		if v.rampB.active != 0 {
			p.stepRamp(v, &v.rampB, &v.targetB)
		}
	}
}
