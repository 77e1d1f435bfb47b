package main

import (
	"sort"
	"sync/atomic"

	"github.com/valerio/go-chipaudio/chipaudio/adlib"
	"github.com/valerio/go-chipaudio/chipaudio/audio"
)

// event is a MIDI channel message due at an output frame.
type event struct {
	frame int
	msg   uint32
}

func noteOn(frame, ch, note, vel int) event {
	return event{frame, uint32(0x90|ch) | uint32(note)<<8 | uint32(vel)<<16}
}

func noteOff(frame, ch, note int) event {
	return event{frame, uint32(0x80|ch) | uint32(note)<<8}
}

func program(frame, ch, prog int) event {
	return event{frame, uint32(0xC0|ch) | uint32(prog)<<8}
}

func control(frame, ch, cc, value int) event {
	return event{frame, uint32(0xB0|ch) | uint32(cc)<<8 | uint32(value)<<16}
}

// sequencer feeds timed messages to an AdLib player, splitting each
// Generate call at event boundaries.
type sequencer struct {
	player   *adlib.Player
	events   []event
	next     int
	frame    int
	end      int
	channels int
	done     atomic.Bool
}

var _ audio.Provider = (*sequencer)(nil)

// releaseTail is how many seconds the sequencer keeps running after the
// last event so notes can decay.
const releaseTail = 2

func newSequencer(p *adlib.Player, events []event) *sequencer {
	sort.SliceStable(events, func(i, j int) bool { return events[i].frame < events[j].frame })
	end := p.SampleRate() * releaseTail
	if len(events) > 0 {
		end += events[len(events)-1].frame
	}
	return &sequencer{player: p, events: events, end: end, channels: p.Channels()}
}

func (s *sequencer) Generate(buf []int16) int {
	out := buf
	frames := len(buf) / s.channels
	for frames > 0 {
		for s.next < len(s.events) && s.events[s.next].frame <= s.frame {
			s.player.Send(s.events[s.next].msg)
			s.next++
		}

		step := frames
		if s.next < len(s.events) {
			step = min(step, s.events[s.next].frame-s.frame)
		}
		s.player.Generate(out[:step*s.channels])
		out = out[step*s.channels:]
		frames -= step
		s.frame += step
	}
	if s.frame >= s.end {
		s.done.Store(true)
	}
	return len(buf)
}

func (s *sequencer) SampleRate() int { return s.player.SampleRate() }
func (s *sequencer) Channels() int   { return s.channels }

// Done reports whether every event has played and the tail has elapsed.
func (s *sequencer) Done() bool { return s.done.Load() }

// demoSong is a two bar phrase: a melody on part 0, a held chord on part 1
// and a drum pattern on the percussion part. step is one eighth note in
// frames.
func demoSong(melodyProgram, step int) []event {
	melody := []int{60, 64, 67, 72, 71, 67, 64, 62, 60, 62, 64, 65, 67, 69, 71, 72}
	events := []event{
		program(0, 0, melodyProgram),
		program(0, 1, 48), // strings
		control(0, 1, 7, 90),
	}

	for i, n := range melody {
		events = append(events,
			noteOn(i*step, 0, n, 100),
			noteOff(i*step+step*3/4, 0, n))
	}

	for bar := 0; bar < 2; bar++ {
		at := bar * 8 * step
		root := []int{48, 53}[bar]
		for _, n := range []int{root, root + 4, root + 7} {
			events = append(events,
				noteOn(at, 1, n, 70),
				noteOff(at+8*step-step/4, 1, n))
		}
	}

	for i := 0; i < 16; i++ {
		drum := 42 // closed hi-hat
		switch i % 4 {
		case 0:
			drum = 36 // kick
		case 2:
			drum = 38 // snare
		}
		events = append(events,
			noteOn(i*step, adlib.PercussionPart, drum, 110),
			noteOff(i*step+step/2, adlib.PercussionPart, drum))
	}
	return events
}
