package adlib

import "math"

// Register offsets of each channel's modulator and carrier.
var (
	operator1Offsets = [numChannels]int{0, 1, 2, 8, 9, 10, 16, 17, 18}
	operator2Offsets = [numChannels]int{3, 4, 5, 11, 12, 13, 19, 20, 21}
)

// volumeTable turns a 6-bit loudness into the hardware level curve.
var volumeTable = [64]byte{
	0, 4, 7, 11, 13, 16, 18, 20,
	22, 24, 26, 27, 29, 30, 31, 33,
	34, 35, 36, 37, 38, 39, 40, 41,
	42, 43, 44, 44, 45, 46, 47, 47,
	48, 49, 49, 50, 51, 51, 52, 53,
	53, 54, 54, 55, 55, 56, 56, 57,
	57, 58, 58, 59, 59, 60, 60, 60,
	61, 61, 62, 62, 62, 63, 63, 63,
}

// numStepsTable is the length, in ramp ticks, of each duration class.
var numStepsTable = [32]int{
	1, 2, 4, 5, 6, 7, 8, 9,
	10, 12, 14, 16, 18, 21, 24, 30,
	36, 50, 64, 82, 100, 136, 160, 192,
	240, 276, 340, 460, 600, 860, 1200, 1600,
}

// paramTable1 maps the low nibble of a ramp's flags to the parameter it
// drives; maxValTable is that parameter's range.
var (
	paramTable1 = [16]int{29, 28, 27, 0, 3, 4, 7, 8, 13, 16, 17, 20, 21, 30, 31, 0}
	maxValTable = [16]int{0x2FF, 0x1F, 0x07, 0x3F, 0x0F, 0x0F, 0x0F, 0x03, 0x3F, 0x0F, 0x0F, 0x0F, 0x03, 0x3E, 0x1F, 0}
)

// Ramp parameters outside the register map.
const (
	paramCarrierLevel   = 0
	paramModulatorLevel = 13
	paramPitchFine      = 28
	paramPitchCoarse    = 29
	paramModWheel       = 30
	paramRampScale      = 31
)

// setParam locates an operator or channel field: register base, bit shift,
// field mask and, when nonzero, the value the field is stored inverted from.
type setParam struct {
	base      int
	shift     uint8
	mask      uint8
	inversion int
}

// setParamTable covers params 0-12 (carrier; 13-25 hit the modulator with
// the same layout) and 13-14 (channel, reached through params 26-27).
var setParamTable = [15]setParam{
	{0x40, 0, 0x3F, 63}, // level
	{0xE0, 2, 0x00, 0},  // unused
	{0x40, 6, 0x03, 0},  // key scale level
	{0x20, 0, 0x0F, 0},  // frequency multiple
	{0x60, 4, 0x0F, 15}, // attack rate
	{0x60, 0, 0x0F, 15}, // decay rate
	{0x80, 4, 0x0F, 15}, // sustain level
	{0x80, 0, 0x0F, 15}, // release rate
	{0xE0, 0, 0x03, 0},  // waveform
	{0x20, 7, 0x01, 0},  // amplitude modulation
	{0x20, 6, 0x01, 0},  // vibrato
	{0x20, 5, 0x01, 0},  // envelope type
	{0x20, 4, 0x01, 0},  // key scale rate
	{0xC0, 0, 0x01, 0},  // connection
	{0xC0, 1, 0x07, 0},  // feedback
}

// volumeLookup[a][b] scales a by (b+1)/32, with b=0 giving zero.
var volumeLookup [64][32]int

// noteFrequencies holds fnums for notex 0-17 (3 is C) in eighths of a
// semitone, within one block.
var noteFrequencies [18 * 8]int

const (
	// fnumC is the fnum of middle C in block 4 at the 49716 Hz chip rate.
	fnumC = 345
	// noteBase is the MIDI note of notex 0 in block 0.
	noteBase = 12
)

func init() {
	for i := 0; i < 64; i++ {
		sum := i
		for j := 0; j < 32; j++ {
			volumeLookup[i][j] = sum >> 5
			sum += i
		}
		volumeLookup[i][0] = 0
	}

	for i := range noteFrequencies {
		semis := float64(i-3*8) / 8
		noteFrequencies[i] = int(math.Round(fnumC * math.Pow(2, semis/12)))
	}
}

// lookupVolume scales a by b/31, with b in -31..31 selecting direction.
func lookupVolume(a, b int) int {
	if b == 0 {
		return 0
	}
	if b == 31 {
		return a
	}
	if a < -63 || a > 63 {
		return b * (a + 1) >> 5
	}

	b = clampInt(b, -31, 31)
	switch {
	case b < 0 && a < 0:
		return volumeLookup[-a][-b]
	case b < 0:
		return -volumeLookup[a][-b]
	case a < 0:
		return -volumeLookup[-a][b]
	default:
		return volumeLookup[a][b]
	}
}

// scaledVolume applies a part volume to a 6-bit loudness.
func scaledVolume(vol, partVolume int) int {
	return int(volumeTable[volumeLookup[clampInt(vol, 0, 63)][partVolume>>2]])
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
