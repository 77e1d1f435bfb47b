package adlib

// noPercussion marks GM drum keys with no instrument.
const noPercussion = 0xFF

// withRampA attaches a modulation ramp to a patch.
func withRampA(in Instrument, flags byte, e Extra) Instrument {
	in.FlagsA = flags | 0x80
	in.ExtraA = e
	return in
}

// withDuration makes a patch release itself.
func withDuration(in Instrument, d byte) Instrument {
	in.Duration = d
	return in
}

// Ramp flag fields: bit 6 links to the modulation wheel, bit 5 loops and
// bit 4 retriggers on loop. The low nibble indexes paramTable1.
const (
	rampModLinked = 0x40
	rampLoop      = 0x20
	rampRetrigger = 0x10

	rampPitchCoarse = 0x00
	rampPitchFine   = 0x01
	rampFeedback    = 0x02
	rampModulator   = 0x08
)

// vibrato is a looping fine pitch wobble scaled by the modulation wheel.
var vibrato = Extra{A: 0, B: 20, C: 31 + 4, D: 20, E: 31 - 4, F: 0, G: 20, H: 31}

// melodicInstruments holds one patch per General MIDI family; a program
// change selects melodicInstruments[program>>3].
var melodicInstruments = [16]Instrument{
	// piano
	patch(
		op{char: 0x01, ksl: 1, tl: 0x10, ar: 15, dr: 3, sl: 4, rr: 4, velSen: 4},
		op{char: 0x01, ksl: 0, tl: 0x00, ar: 15, dr: 2, sl: 5, rr: 5, velSen: 6},
		3, false),
	// chromatic percussion
	patch(
		op{char: 0x07, tl: 0x14, ar: 15, dr: 6, sl: 8, rr: 5, velSen: 2},
		op{char: 0x01, tl: 0x00, ar: 15, dr: 4, sl: 7, rr: 5, velSen: 6},
		2, false),
	// organ
	patch(
		op{char: 0x21, tl: 0x04, ar: 14, dr: 0, sl: 0, rr: 7, velSen: 1},
		op{char: 0x22, tl: 0x04, ar: 14, dr: 0, sl: 0, rr: 7, velSen: 2},
		0, true),
	// guitar
	patch(
		op{char: 0x03, ksl: 1, tl: 0x12, ar: 15, dr: 4, sl: 6, rr: 3, wave: 1, velSen: 3},
		op{char: 0x01, tl: 0x00, ar: 15, dr: 3, sl: 8, rr: 4, velSen: 6},
		5, false),
	// bass
	patch(
		op{char: 0x00, tl: 0x0C, ar: 15, dr: 5, sl: 4, rr: 6, velSen: 2},
		op{char: 0x01, tl: 0x00, ar: 15, dr: 3, sl: 5, rr: 6, velSen: 5},
		6, false),
	// strings
	withRampA(patch(
		op{char: 0x61, tl: 0x18, ar: 7, dr: 2, sl: 2, rr: 5, velSen: 1},
		op{char: 0x61, tl: 0x00, ar: 6, dr: 1, sl: 1, rr: 5, velSen: 4},
		4, false), rampPitchFine|rampModLinked|rampLoop, vibrato),
	// ensemble
	patch(
		op{char: 0x21, tl: 0x1A, ar: 6, dr: 1, sl: 1, rr: 6, velSen: 1},
		op{char: 0x61, tl: 0x02, ar: 6, dr: 1, sl: 1, rr: 6, velSen: 4},
		3, false),
	// brass
	withRampA(patch(
		op{char: 0x21, tl: 0x16, ar: 9, dr: 2, sl: 1, rr: 6, velSen: 2},
		op{char: 0x21, tl: 0x00, ar: 8, dr: 1, sl: 1, rr: 6, velSen: 5},
		6, false), rampModulator, Extra{B: 30, C: 31 + 10, D: 40, E: 31 + 4, G: 20, H: 31}),
	// reed
	patch(
		op{char: 0x31, tl: 0x1C, ar: 9, dr: 3, sl: 2, rr: 6, wave: 2, velSen: 2},
		op{char: 0x21, tl: 0x00, ar: 8, dr: 1, sl: 1, rr: 6, velSen: 5},
		5, false),
	// pipe
	withRampA(patch(
		op{char: 0xE1, tl: 0x24, ar: 8, dr: 1, sl: 1, rr: 6, velSen: 1},
		op{char: 0x61, tl: 0x00, ar: 7, dr: 1, sl: 1, rr: 6, velSen: 4},
		1, false), rampPitchFine|rampModLinked|rampLoop, vibrato),
	// synth lead
	patch(
		op{char: 0x22, tl: 0x0E, ar: 15, dr: 2, sl: 2, rr: 5, wave: 2, velSen: 2},
		op{char: 0x21, tl: 0x00, ar: 15, dr: 1, sl: 1, rr: 5, velSen: 5},
		7, false),
	// synth pad
	withRampA(patch(
		op{char: 0xA1, tl: 0x1E, ar: 4, dr: 1, sl: 2, rr: 3, velSen: 1},
		op{char: 0x61, tl: 0x00, ar: 3, dr: 1, sl: 1, rr: 3, velSen: 3},
		3, false), rampFeedback|rampLoop, Extra{B: 60, C: 31 + 15, D: 60, E: 31 - 15, G: 60, H: 31}),
	// synth effects
	patch(
		op{char: 0xE2, tl: 0x10, ar: 10, dr: 4, sl: 3, rr: 4, wave: 3, velSen: 2},
		op{char: 0x61, tl: 0x00, ar: 9, dr: 2, sl: 2, rr: 4, velSen: 4},
		6, false),
	// ethnic
	patch(
		op{char: 0x05, tl: 0x12, ar: 15, dr: 5, sl: 6, rr: 4, velSen: 3},
		op{char: 0x01, tl: 0x00, ar: 15, dr: 4, sl: 7, rr: 4, velSen: 6},
		4, false),
	// percussive
	withDuration(patch(
		op{char: 0x01, tl: 0x08, ar: 15, dr: 8, sl: 15, rr: 8, velSen: 3},
		op{char: 0x01, tl: 0x00, ar: 15, dr: 6, sl: 15, rr: 7, velSen: 6},
		5, false), 8),
	// sound effects
	withRampA(patch(
		op{char: 0x0F, tl: 0x00, ar: 15, dr: 1, sl: 1, rr: 2, wave: 1, velSen: 1},
		op{char: 0x01, tl: 0x00, ar: 12, dr: 1, sl: 1, rr: 2, velSen: 4},
		7, false), rampPitchCoarse|rampLoop|rampRetrigger, Extra{B: 10, C: 31 + 20, D: 10, E: 31 - 20, G: 10, H: 31}),
}

// drum builds a short decaying percussion patch.
func drum(modChar, carChar, tl, dr, rr, wave, fb byte, additive bool) Instrument {
	return patch(
		op{char: modChar, tl: tl, ar: 15, dr: dr, sl: 15, rr: rr, wave: wave, velSen: 3},
		op{char: carChar, tl: 0x00, ar: 15, dr: dr, sl: 15, rr: rr, velSen: 6},
		fb, additive)
}

// percussionInstruments are the drum patches addressed by gmPercussionMap.
var percussionInstruments = [39]Instrument{
	// 0 bass drum
	withRampA(drum(0x00, 0x00, 0x08, 7, 7, 0, 6, false), rampPitchCoarse, Extra{B: 4, C: 31 - 4, D: 1, E: 31 - 4, G: 1, H: 31 - 4}),
	drum(0x0F, 0x00, 0x00, 8, 8, 0, 7, false),  // 1 side stick
	drum(0x0F, 0x01, 0x00, 7, 7, 0, 7, true),   // 2 snare
	drum(0x0E, 0x02, 0x06, 8, 8, 3, 7, true),   // 3 hand clap
	drum(0x01, 0x00, 0x0A, 6, 6, 0, 5, false),  // 4 low floor tom
	drum(0x0E, 0x0F, 0x00, 10, 10, 2, 7, true), // 5 closed hi-hat
	drum(0x01, 0x00, 0x0A, 6, 6, 0, 5, false),  // 6 high floor tom
	drum(0x01, 0x00, 0x0A, 6, 6, 0, 5, false),  // 7 low tom
	drum(0x0E, 0x0F, 0x00, 4, 4, 2, 7, true),   // 8 open hi-hat
	drum(0x01, 0x00, 0x0A, 6, 6, 0, 5, false),  // 9 low-mid tom
	drum(0x01, 0x00, 0x0A, 6, 6, 0, 5, false),  // 10 hi-mid tom
	drum(0x0E, 0x0E, 0x00, 2, 3, 2, 7, true),   // 11 crash cymbal
	drum(0x01, 0x00, 0x0A, 6, 6, 0, 5, false),  // 12 high tom
	drum(0x0E, 0x0C, 0x02, 3, 4, 1, 7, true),   // 13 ride cymbal
	drum(0x0E, 0x0D, 0x00, 2, 3, 2, 7, true),   // 14 chinese cymbal
	drum(0x0E, 0x0C, 0x00, 4, 5, 1, 6, true),   // 15 ride bell
	drum(0x0F, 0x0E, 0x04, 5, 5, 2, 7, true),   // 16 tambourine
	drum(0x0E, 0x0E, 0x00, 3, 4, 2, 7, true),   // 17 splash cymbal
	drum(0x07, 0x03, 0x06, 7, 7, 1, 4, false),  // 18 cowbell
	drum(0x0F, 0x0F, 0x02, 4, 4, 3, 7, true),   // 19 vibraslap
	drum(0x02, 0x01, 0x0C, 7, 7, 0, 4, false),  // 20 high bongo
	drum(0x02, 0x01, 0x0C, 7, 7, 0, 4, false),  // 21 low bongo
	drum(0x02, 0x01, 0x08, 8, 8, 0, 5, false),  // 22 mute high conga
	drum(0x02, 0x01, 0x0C, 6, 6, 0, 4, false),  // 23 open high conga
	drum(0x02, 0x01, 0x0C, 6, 6, 0, 4, false),  // 24 low conga
	drum(0x04, 0x01, 0x0A, 6, 6, 0, 3, false),  // 25 high timbale
	drum(0x04, 0x01, 0x0A, 6, 6, 0, 3, false),  // 26 low timbale
	drum(0x06, 0x05, 0x10, 6, 6, 0, 2, false),  // 27 high agogo
	drum(0x06, 0x05, 0x10, 6, 6, 0, 2, false),  // 28 low agogo
	drum(0x0F, 0x0F, 0x00, 9, 9, 3, 7, true),   // 29 cabasa
	drum(0x0F, 0x0F, 0x00, 8, 8, 3, 7, true),   // 30 maracas
	drum(0x08, 0x08, 0x14, 4, 5, 0, 1, false),  // 31 short whistle
	drum(0x08, 0x08, 0x14, 3, 3, 0, 1, false),  // 32 long whistle
	drum(0x0F, 0x0E, 0x04, 9, 9, 2, 7, true),   // 33 short guiro
	drum(0x0F, 0x0E, 0x04, 6, 6, 2, 7, true),   // 34 long guiro
	drum(0x07, 0x07, 0x10, 9, 9, 0, 2, false),  // 35 claves
	drum(0x05, 0x03, 0x12, 8, 8, 0, 3, false),  // 36 wood block
	drum(0x01, 0x00, 0x0E, 8, 8, 0, 4, false),  // 37 cuica
	drum(0x07, 0x0B, 0x10, 3, 3, 0, 2, false),  // 38 triangle
}

// gmPercussionMap maps GM drum keys 35-81 onto percussionInstruments.
var gmPercussionMap = func() [128]byte {
	var m [128]byte
	for i := range m {
		m[i] = noPercussion
	}
	keys := map[byte][]int{
		0: {35, 36}, 1: {37}, 2: {38, 40}, 3: {39}, 4: {41}, 5: {42, 44},
		6: {43}, 7: {45}, 8: {46}, 9: {47}, 10: {48}, 11: {49, 57},
		12: {50}, 13: {51, 59}, 14: {52}, 15: {53}, 16: {54}, 17: {55},
		18: {56}, 19: {58}, 20: {60}, 21: {61}, 22: {62}, 23: {63},
		24: {64}, 25: {65}, 26: {66}, 27: {67}, 28: {68}, 29: {69},
		30: {70}, 31: {71}, 32: {72}, 33: {73}, 34: {74}, 35: {75},
		36: {76, 77}, 37: {78, 79}, 38: {80, 81},
	}
	for inst, ks := range keys {
		for _, k := range ks {
			m[k] = inst
		}
	}
	return m
}()
