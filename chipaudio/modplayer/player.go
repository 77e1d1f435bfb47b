package modplayer

import (
	"log/slog"
	"sync/atomic"

	"github.com/valerio/go-chipaudio/chipaudio/paula"
)

const (
	defaultSpeed = 6
	defaultTempo = 125

	// ciaTempoTimer is the CIA timer value for one tick at tempo 1.
	ciaTempoTimer = paula.PALCIAClock * 5 / 2

	minPeriod = 113
	maxPeriod = 856
	maxVolume = 64

	effectArpeggio      = 0x0
	effectPortaUp       = 0x1
	effectPortaDown     = 0x2
	effectPortaToNote   = 0x3
	effectSampleOffset  = 0x9
	effectVolumeSlide   = 0xA
	effectPositionJump  = 0xB
	effectSetVolume     = 0xC
	effectPatternBreak  = 0xD
	effectExtended      = 0xE
	effectSetSpeedTempo = 0xF

	extFineVolUp   = 0xA
	extFineVolDown = 0xB
	extNoteCut     = 0xC
)

var (
	// periodTable holds the untuned periods of octaves 1 to 3.
	periodTable = [36]int{
		856, 808, 762, 720, 678, 640, 604, 570, 538, 508, 480, 453,
		428, 404, 381, 360, 339, 320, 302, 285, 269, 254, 240, 226,
		214, 202, 190, 180, 170, 160, 151, 143, 135, 127, 120, 113,
	}

	// fineTuning scales a period by finetune -8..7 (index 0..15), in .12
	// fixed point.
	fineTuning = [16]int{
		4340, 4308, 4277, 4247, 4216, 4186, 4156, 4126,
		4096, 4067, 4037, 4008, 3979, 3951, 3922, 3894,
	}
)

// Config tunes playback.
type Config struct {
	// Loop restarts the song instead of stopping at its end.
	Loop bool
}

type channel struct {
	sample   int // -1 when none
	note     int // periodTable index of the last note
	period   int
	volume   int
	fineTune int

	portaTarget int
	portaSpeed  int

	effect byte
	param  byte
}

// Player sequences a Song. Interrupt must run under the mixer lock, which
// the mixer guarantees; Done and Position may be called from any
// goroutine.
type Player struct {
	song *Song
	loop bool

	speed int
	tick  int
	order int
	row   int

	tempoSet bool

	jump      bool
	jumpOrder int
	jumpRow   int
	visited   [128]bool

	channels [numChannels]channel

	done     atomic.Bool
	position atomic.Uint32
}

var _ paula.Interrupter = (*Player)(nil)

// New creates a player positioned at the start of song.
func New(song *Song, cfg Config) *Player {
	p := &Player{song: song, loop: cfg.Loop}
	p.reset()
	return p
}

func (p *Player) reset() {
	p.speed = defaultSpeed
	p.tick = 0
	p.order = 0
	p.row = 0
	p.tempoSet = false
	p.jump = false
	p.visited = [128]bool{}
	p.visited[0] = true
	for i := range p.channels {
		p.channels[i] = channel{sample: -1, fineTune: 8}
	}
	p.publish()
}

// Done reports whether the song has ended.
func (p *Player) Done() bool { return p.done.Load() }

// Position returns the order, its pattern and the row being played.
func (p *Player) Position() (order, pattern, row int) {
	v := p.position.Load()
	order = int(v >> 8)
	row = int(v & 0xFF)
	return order, int(p.song.Orders[order]), row
}

func (p *Player) publish() {
	p.position.Store(uint32(p.order)<<8 | uint32(p.row))
}

// Interrupt runs one sequencer tick.
func (p *Player) Interrupt(v *paula.Voices) {
	if p.done.Load() {
		v.StopPlay()
		return
	}

	if !p.tempoSet {
		p.setTempo(v, defaultTempo)
	}

	if p.tick == 0 {
		p.playRow(v)
	} else {
		for i := range p.channels {
			p.channelTick(v, i)
		}
	}

	p.tick++
	if p.tick >= p.speed {
		p.tick = 0
		p.nextRow()
	}
}

// setTempo programs the interrupt rate: tempo 125 is 50 ticks a second.
func (p *Player) setTempo(v *paula.Voices, tempo int) {
	v.SetInterruptFreqUnscaled(ciaTempoTimer / tempo)
	p.tempoSet = true
}

func (p *Player) nextRow() {
	entered := p.jump
	if p.jump {
		p.order, p.row = p.jumpOrder, p.jumpRow
		p.jump = false
	} else {
		p.row++
		if p.row >= rowsPerPattern {
			p.row = 0
			p.order++
			entered = true
		}
	}

	// entering an order a second time means the song jumped back
	if p.order >= len(p.song.Orders) || entered && p.visited[p.order] {
		p.finish()
		return
	}
	p.visited[p.order] = true
	p.publish()
}

func (p *Player) finish() {
	if p.loop {
		slog.Debug("module looped")
		p.reset()
		return
	}
	slog.Debug("module finished")
	p.done.Store(true)
}
