package modplayer

import (
	"log/slog"

	"github.com/valerio/go-chipaudio/chipaudio/paula"
)

// playRow decodes the current row and triggers its notes.
func (p *Player) playRow(v *paula.Voices) {
	pattern := p.song.Patterns[p.song.Orders[p.order]]
	row := pattern[p.row*bytesPerRow : (p.row+1)*bytesPerRow]

	for i := range p.channels {
		ch := &p.channels[i]
		sampNum, period, effect, param := decodeNote(row[i*bytesPerChannel : (i+1)*bytesPerChannel])
		ch.effect, ch.param = effect, param

		if sampNum > 0 && sampNum <= numSamples {
			s := &p.song.Samples[sampNum-1]
			ch.sample = sampNum - 1
			ch.volume = s.Volume
			ch.fineTune = s.FineTune
		}

		if period > 0 {
			tuned := tune(period, ch.fineTune)
			if effect == effectPortaToNote {
				ch.portaTarget = tuned
			} else {
				ch.note = noteIndex(period)
				ch.period = tuned
				offset := 0
				if effect == effectSampleOffset {
					offset = int(param) << 8
				}
				p.trigger(v, i, offset)
			}
		}

		p.rowEffect(v, ch)

		if ch.sample >= 0 {
			v.SetPeriod(i, ch.period)
			v.SetVolume(i, ch.volume)
		}
	}
}

// trigger starts the channel's sample from offset bytes in.
func (p *Player) trigger(v *paula.Voices, i, offset int) {
	ch := &p.channels[i]
	if ch.sample < 0 {
		return
	}
	s := &p.song.Samples[ch.sample]
	if len(s.Data) == 0 {
		v.ClearVoice(i)
		return
	}

	var repeat []int8
	if s.looped() {
		repeat = s.loop()
	}
	pan := v.Voice(i).Panning

	switch {
	case offset == 0:
		v.SetVoice(i, s.Data, len(s.Data), repeat, len(repeat), ch.period, ch.volume, pan)
	case offset < len(s.Data):
		v.SetVoice(i, s.Data, len(s.Data), repeat, len(repeat), ch.period, ch.volume, pan)
		v.SetData(i, s.Data, len(s.Data), repeat, len(repeat), offset)
	case repeat != nil:
		v.SetVoice(i, repeat, len(repeat), repeat, len(repeat), ch.period, ch.volume, pan)
	default:
		v.ClearVoice(i)
	}
}

// rowEffect applies the effects that act on the first tick of a row.
func (p *Player) rowEffect(v *paula.Voices, ch *channel) {
	param := ch.param
	switch ch.effect {
	case effectPortaToNote:
		if param > 0 {
			ch.portaSpeed = int(param)
		}
	case effectSetVolume:
		ch.volume = min(int(param), maxVolume)
	case effectPositionJump:
		if !p.jump {
			p.jumpRow = 0
		}
		p.jump = true
		p.jumpOrder = int(param)
	case effectPatternBreak:
		row := int(param>>4)*10 + int(param&0x0F)
		if row >= rowsPerPattern {
			row = 0
		}
		if !p.jump {
			p.jumpOrder = p.order + 1
		}
		p.jump = true
		p.jumpRow = row
	case effectExtended:
		switch param >> 4 {
		case extFineVolUp:
			ch.volume = min(ch.volume+int(param&0x0F), maxVolume)
		case extFineVolDown:
			ch.volume = max(ch.volume-int(param&0x0F), 0)
		case extNoteCut:
			if param&0x0F == 0 {
				ch.volume = 0
			}
		default:
			slog.Debug("modplayer: unsupported extended effect", "param", param)
		}
	case effectSetSpeedTempo:
		switch {
		case param == 0:
			slog.Debug("modplayer: ignoring speed 0")
		case param < 0x20:
			p.speed = int(param)
		default:
			p.setTempo(v, int(param))
		}
	}
}

// channelTick applies the effects that run on the remaining ticks.
func (p *Player) channelTick(v *paula.Voices, i int) {
	ch := &p.channels[i]
	if ch.sample < 0 {
		return
	}
	param := int(ch.param)
	period := ch.period

	switch ch.effect {
	case effectArpeggio:
		if param == 0 {
			return
		}
		step := 0
		switch p.tick % 3 {
		case 1:
			step = param >> 4
		case 2:
			step = param & 0x0F
		}
		period = tune(periodTable[min(ch.note+step, len(periodTable)-1)], ch.fineTune)
	case effectPortaUp:
		ch.period = max(ch.period-param, minPeriod)
		period = ch.period
	case effectPortaDown:
		ch.period = min(ch.period+param, maxPeriod)
		period = ch.period
	case effectPortaToNote:
		ch.portaToNote()
		period = ch.period
	case effectVolumeSlide:
		ch.volumeSlide()
	case effectExtended:
		if param>>4 == extNoteCut && p.tick == param&0x0F {
			ch.volume = 0
		}
	}

	v.SetPeriod(i, period)
	v.SetVolume(i, ch.volume)
}

func (c *channel) portaToNote() {
	if c.portaTarget == 0 {
		return
	}
	if c.period < c.portaTarget {
		c.period = min(c.period+c.portaSpeed, c.portaTarget)
	} else if c.period > c.portaTarget {
		c.period = max(c.period-c.portaSpeed, c.portaTarget)
	}
}

func (c *channel) volumeSlide() {
	if up := int(c.param >> 4); up > 0 {
		c.volume = min(c.volume+up, maxVolume)
	} else {
		c.volume = max(c.volume-int(c.param&0x0F), 0)
	}
}

func tune(period, fineTune int) int {
	return period * fineTuning[fineTune&0x0F] >> 12
}

// noteIndex finds the periodTable entry closest to period.
func noteIndex(period int) int {
	best, bestDiff := 0, 1<<30
	for i, pt := range periodTable {
		d := pt - period
		if d < 0 {
			d = -d
		}
		if d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}
