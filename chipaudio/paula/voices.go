package paula

import (
	"github.com/valerio/go-chipaudio/chipaudio/frac"
)

// SetVoice loads every register of a channel and rewinds its cursor.
// Lengths are in samples and are capped to the slices they describe.
func (v *Voices) SetVoice(i int, data []int8, length int, dataRepeat []int8, lengthRepeat, period, volume int, panning uint8) {
	checkVoice(i)
	ch := &v.ch[i]
	ch.data = data
	ch.length = capLength(data, length)
	ch.dataRepeat = dataRepeat
	ch.lengthRepeat = capLength(dataRepeat, lengthRepeat)
	ch.period = period
	ch.volume = volume
	ch.panning = panning
	ch.offset.Reset()
}

// SetData replaces the sample pointers of a channel and positions its cursor
// at offset, keeping period, volume and panning.
func (v *Voices) SetData(i int, data []int8, length int, dataRepeat []int8, lengthRepeat, offset int) {
	checkVoice(i)
	ch := &v.ch[i]
	ch.data = data
	ch.length = capLength(data, length)
	ch.dataRepeat = dataRepeat
	ch.lengthRepeat = capLength(dataRepeat, lengthRepeat)
	ch.offset = frac.Cursor{Int: offset}
}

// SetSampleStart latches the segment the channel switches to on its next wrap.
func (v *Voices) SetSampleStart(i int, data []int8) {
	checkVoice(i)
	v.ch[i].dataRepeat = data
	v.ch[i].lengthRepeat = capLength(data, v.ch[i].lengthRepeat)
}

// SetSampleLen latches the length used after the next wrap.
func (v *Voices) SetSampleLen(i int, length int) {
	checkVoice(i)
	v.ch[i].lengthRepeat = capLength(v.ch[i].dataRepeat, length)
}

// SetPeriod sets the channel period. Zero pauses the channel.
func (v *Voices) SetPeriod(i int, period int) {
	checkVoice(i)
	v.ch[i].period = period
}

// SetVolume sets the channel volume (0-0x40 is meaningful).
func (v *Voices) SetVolume(i int, volume int) {
	checkVoice(i)
	v.ch[i].volume = volume
}

// SetPanning sets the stereo position, 0 left to 255 right.
func (v *Voices) SetPanning(i int, panning uint8) {
	checkVoice(i)
	v.ch[i].panning = panning
}

// DMACount returns how many times the channel has wrapped a segment.
func (v *Voices) DMACount(i int) int {
	checkVoice(i)
	return v.ch[i].dmaCount
}

// SetDMACount overwrites the wrap counter.
func (v *Voices) SetDMACount(i int, count int) {
	checkVoice(i)
	v.ch[i].dmaCount = count
}

// Voice returns a copy of a channel's state.
func (v *Voices) Voice(i int) VoiceState {
	checkVoice(i)
	ch := &v.ch[i]
	return VoiceState{
		Length:       ch.length,
		LengthRepeat: ch.lengthRepeat,
		Period:       ch.period,
		Volume:       ch.volume,
		Panning:      ch.panning,
		Position:     ch.offset.Int,
		DMACount:     ch.dmaCount,
		HasData:      ch.data != nil,
	}
}

// ClearVoice zeroes a channel, restoring its hardware panning.
func (v *Voices) ClearVoice(i int) {
	checkVoice(i)
	muted := v.ch[i].muted
	v.ch[i] = voice{panning: defaultPanning(i), muted: muted}
}

func (v *Voices) clearAll() {
	for i := range v.ch {
		v.ClearVoice(i)
	}
}

// SetInterruptFreq sets the number of output frames between interrupts.
// The current countdown is left alone.
func (v *Voices) SetInterruptFreq(frames int) {
	if frames <= 0 {
		frames = v.m.rate
	}
	v.m.intFreq = frames
}

// SetInterruptFreqUnscaled sets the interrupt rate from a CIA timer value,
// as module players do for tempo.
func (v *Voices) SetInterruptFreqUnscaled(timerValue int) {
	v.SetInterruptFreq(int(uint64(timerValue) * uint64(v.m.rate) / PALCIAClock))
}

// InterruptFreq returns the number of output frames between interrupts.
func (v *Voices) InterruptFreq() int { return v.m.intFreq }

// SampleRate returns the mixer output rate.
func (v *Voices) SampleRate() int { return v.m.rate }

// StopPlay stops generation; the rest of the current buffer stays silent.
func (v *Voices) StopPlay() { v.m.playing = false }

// SetLEDFilter engages or bypasses the LED filter from inside an interrupt.
func (v *Voices) SetLEDFilter(on bool) { v.m.filter.SetLED(on) }

func capLength(data []int8, length int) int {
	if length < 0 {
		return 0
	}
	if length > len(data) {
		return len(data)
	}
	return length
}
