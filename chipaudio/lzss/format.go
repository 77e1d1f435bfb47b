// Package lzss decodes the 4 KiB sliding window LZSS variants found in
// old game resource files, and encodes them for tooling.
package lzss

const (
	windowSize = 4096
	windowMask = windowSize - 1

	minMatch = 2
	maxMatch = 0x0F + minMatch

	// DefaultStart is where the first decoded byte lands in the window.
	DefaultStart = windowSize - 18
	// DefaultFill is the initial window content.
	DefaultFill = 0x20
)

// FlagOrder selects which bit of a flag byte describes the first unit.
type FlagOrder uint8

const (
	LSBFirst FlagOrder = iota
	MSBFirst
)

func (o FlagOrder) String() string {
	if o == MSBFirst {
		return "msb"
	}
	return "lsb"
}

// Format describes one variant. A back reference is two bytes: the low
// eight bits of the window position, then a byte holding the remaining
// four position bits and the match length minus two in its nibbles.
type Format struct {
	FlagOrder FlagOrder
	// LiteralFlag is the flag bit value (0 or 1) marking a literal byte.
	LiteralFlag uint8
	// LengthInHighNibble puts the length in the high nibble of the second
	// reference byte and the position bits in the low one.
	LengthInHighNibble bool
	Fill               byte
	Start              int
}

var (
	// Okumura is the classic LZSS.C layout.
	Okumura = Format{
		FlagOrder:   LSBFirst,
		LiteralFlag: 1,
		Fill:        DefaultFill,
		Start:       DefaultStart,
	}

	// MSBFirstFormat reads flags from the top bit down and stores the
	// length in the high nibble.
	MSBFirstFormat = Format{
		FlagOrder:          MSBFirst,
		LiteralFlag:        1,
		LengthInHighNibble: true,
		Fill:               DefaultFill,
		Start:              DefaultStart,
	}
)

// ParseFormat returns a preset by name.
func ParseFormat(name string) (Format, bool) {
	switch name {
	case "", "okumura", "lsb":
		return Okumura, true
	case "msb":
		return MSBFirstFormat, true
	}
	return Format{}, false
}

// isLiteral reports whether unit i of a flag byte is a literal.
func (f Format) isLiteral(flags byte, i int) bool {
	var b byte
	if f.FlagOrder == MSBFirst {
		b = flags >> (7 - i) & 1
	} else {
		b = flags >> i & 1
	}
	return b == f.LiteralFlag&1
}

// flagBit returns the flag byte contribution of unit i.
func (f Format) flagBit(i int, literal bool) byte {
	set := literal == (f.LiteralFlag&1 == 1)
	if !set {
		return 0
	}
	if f.FlagOrder == MSBFirst {
		return 0x80 >> i
	}
	return 1 << i
}

func (f Format) decodeRef(b0, b1 byte) (pos, length int) {
	if f.LengthInHighNibble {
		return int(b0) | int(b1&0x0F)<<8, int(b1>>4) + minMatch
	}
	return int(b0) | int(b1&0xF0)<<4, int(b1&0x0F) + minMatch
}

func (f Format) encodeRef(pos, length int) (byte, byte) {
	n := byte(length - minMatch)
	hi := byte(pos >> 8 & 0x0F)
	if f.LengthInHighNibble {
		return byte(pos), n<<4 | hi
	}
	return byte(pos), hi<<4 | n
}

func (f Format) newWindow() *[windowSize]byte {
	var w [windowSize]byte
	if f.Fill != 0 {
		for i := range w {
			w[i] = f.Fill
		}
	}
	return &w
}
