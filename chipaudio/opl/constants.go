package opl

// Fixed-point layout of the phase, envelope and LFO counters.
const (
	freqShift = 16
	freqMask  = (1 << freqShift) - 1
	egShift   = 16
	lfoShift  = 24
)

// Envelope and waveform table geometry.
const (
	envBits     = 10
	envLen      = 1 << envBits
	envStep     = 128.0 / envLen
	maxAttIndex = envLen - 1
	minAttIndex = 0

	sinBits = 10
	sinLen  = 1 << sinBits
	sinMask = sinLen - 1

	tlResLen = 256
	// 12 octaves of attenuation, positive and negative entries.
	tlTabLen = 12 * 2 * tlResLen
	// Attenuation at which an operator no longer produces output.
	envQuiet = tlTabLen >> 4

	rateSteps = 8

	lfoAMTabElements = 210

	maxOut = 32767
	minOut = -32768
)

// Chip geometry.
const (
	// NumChannels is the number of two-operator FM channels.
	NumChannels = 9
	numSlots    = NumChannels * 2

	// DefaultClock is the YM3812 master clock on an AdLib card.
	DefaultClock = 3579545
	// DefaultRate is the output rate used when none is configured.
	DefaultRate = 44100
)

// Rhythm section channels.
const (
	bassDrumChannel   = 6
	hihatSnareChannel = 7
	tomCymbalChannel  = 8
)

// Key-on sources: a channel's B0 key bit and the rhythm register.
const (
	keyNormal uint8 = 1
	keyRhythm uint8 = 2
)

// Status register bits.
const (
	StatusIRQ    = 0x80
	StatusTimer1 = 0x40
	StatusTimer2 = 0x20
)

// EnvState is the phase of an operator's envelope generator.
type EnvState uint8

const (
	EnvOff EnvState = iota
	EnvRelease
	EnvSustain
	EnvDecay
	EnvAttack
)

func (s EnvState) String() string {
	switch s {
	case EnvOff:
		return "off"
	case EnvRelease:
		return "release"
	case EnvSustain:
		return "sustain"
	case EnvDecay:
		return "decay"
	case EnvAttack:
		return "attack"
	}
	return "unknown"
}
