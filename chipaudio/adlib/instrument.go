package adlib

import (
	"fmt"
	"log/slog"
)

// InstrumentSize is the length of a serialized Instrument.
const InstrumentSize = 30

// Extra is one modulation ramp definition: a is the lifetime in ticks/63
// (0 forever), b d f g are the four segment durations and c e h the
// segment targets. Bit 7 of each byte asks for a random variation.
type Extra struct {
	A, B, C, D, E, F, G, H byte
}

// Instrument is a two-operator FM patch in the driver's byte format.
// Levels hold loudness (0x3F loudest) rather than attenuation, and the
// attack/decay and sustain/release bytes are stored inverted. The top five
// bits of each wave byte give the velocity sensitivity.
type Instrument struct {
	ModChar  byte
	ModLevel byte
	ModAD    byte
	ModSR    byte
	ModWave  byte
	CarChar  byte
	CarLevel byte
	CarAD    byte
	CarSR    byte
	CarWave  byte
	// Feedback is written to register 0xC0. Bit 7 marks the modulator as
	// audible (additive synthesis), so it follows the volume too.
	Feedback byte
	FlagsA   byte
	ExtraA   Extra
	FlagsB   byte
	ExtraB   Extra
	// Duration auto-releases the note after Duration*63 ticks/17.
	Duration byte
}

// ParseInstrument decodes the 30 byte format. Short input yields a
// partially filled instrument and an error.
func ParseInstrument(b []byte) (Instrument, error) {
	var buf [InstrumentSize]byte
	n := copy(buf[:], b)

	in := Instrument{
		ModChar:  buf[0],
		ModLevel: buf[1],
		ModAD:    buf[2],
		ModSR:    buf[3],
		ModWave:  buf[4],
		CarChar:  buf[5],
		CarLevel: buf[6],
		CarAD:    buf[7],
		CarSR:    buf[8],
		CarWave:  buf[9],
		Feedback: buf[10],
		FlagsA:   buf[11],
		ExtraA:   extraFrom(buf[12:20]),
		FlagsB:   buf[20],
		ExtraB:   extraFrom(buf[21:29]),
		Duration: buf[29],
	}
	if n < InstrumentSize {
		return in, fmt.Errorf("adlib: instrument truncated at %d of %d bytes", n, InstrumentSize)
	}
	return in, nil
}

func extraFrom(b []byte) Extra {
	return Extra{b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7]}
}

// Bytes encodes the instrument in the 30 byte format.
func (in Instrument) Bytes() []byte {
	a, b := in.ExtraA, in.ExtraB
	return []byte{
		in.ModChar, in.ModLevel, in.ModAD, in.ModSR, in.ModWave,
		in.CarChar, in.CarLevel, in.CarAD, in.CarSR, in.CarWave,
		in.Feedback,
		in.FlagsA, a.A, a.B, a.C, a.D, a.E, a.F, a.G, a.H,
		in.FlagsB, b.A, b.B, b.C, b.D, b.E, b.F, b.G, b.H,
		in.Duration,
	}
}

// twoChan reports whether both operators are heard.
func (in *Instrument) twoChan() bool {
	return in.Feedback&0x80 != 0
}

// percussionInstrument decodes the 13 byte 'ADLP' payload body: the eleven
// register bytes with no ramps and no duration.
func percussionInstrument(b []byte) (Instrument, bool) {
	if len(b) < 11 {
		slog.Warn("adlib: short percussion instrument", "len", len(b))
		return Instrument{}, false
	}
	return Instrument{
		ModChar:  b[0],
		ModLevel: b[1],
		ModAD:    b[2],
		ModSR:    b[3],
		ModWave:  b[4],
		CarChar:  b[5],
		CarLevel: b[6],
		CarAD:    b[7],
		CarSR:    b[8],
		CarWave:  b[9],
		Feedback: b[10],
	}, true
}

// op describes one operator in hardware terms: characteristic (AM, VIB,
// EG-TYP, KSR, MULT), key scale level, attenuation, rates, waveform and
// velocity sensitivity.
type op struct {
	char         byte
	ksl, tl      byte
	ar, dr       byte
	sl, rr       byte
	wave, velSen byte
}

// patch builds an Instrument from hardware values. fb is the feedback
// amount and additive selects CON=1 with both operators heard.
func patch(mod, car op, fb byte, additive bool) Instrument {
	feedback := (fb & 7) << 1
	if additive {
		feedback |= 0x81
	}
	return Instrument{
		ModChar:  mod.char,
		ModLevel: mod.ksl<<6 | (0x3F - mod.tl&0x3F),
		ModAD:    ^(mod.ar<<4 | mod.dr&0x0F),
		ModSR:    ^(mod.sl<<4 | mod.rr&0x0F),
		ModWave:  mod.velSen<<3 | mod.wave&3,
		CarChar:  car.char,
		CarLevel: car.ksl<<6 | (0x3F - car.tl&0x3F),
		CarAD:    ^(car.ar<<4 | car.dr&0x0F),
		CarSR:    ^(car.sl<<4 | car.rr&0x0F),
		CarWave:  car.velSen<<3 | car.wave&3,
		Feedback: feedback,
	}
}
