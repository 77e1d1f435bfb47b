// Package bit has the register field helpers shared by the chip cores.
package bit

// IsSet reports whether the bit at index is 1.
func IsSet(index, value uint8) bool {
	return (value>>index)&1 == 1
}

// LowNibble returns bits 3-0 of a byte.
func LowNibble(value uint8) uint8 {
	return value & 0x0F
}

// HighNibble returns bits 7-4 of a byte, shifted down.
func HighNibble(value uint8) uint8 {
	return value >> 4
}

// ExtractBits extracts bits highBit down to lowBit, inclusive.
// ExtractBits(0b11010110, 6, 4) is 0b101.
func ExtractBits(value uint8, highBit, lowBit uint8) uint8 {
	width := highBit - lowBit + 1
	mask := uint8(1<<width - 1)
	return (value >> lowBit) & mask
}

// InsertBits replaces the field (mask << shift) of value with field.
// Bits of field outside mask are discarded.
func InsertBits(value, field, mask, shift uint8) uint8 {
	return (value &^ (mask << shift)) | ((field & mask) << shift)
}
