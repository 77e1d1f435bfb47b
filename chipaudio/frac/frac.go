// Package frac implements the 16.16 fixed-point arithmetic used to step a
// chip-native sample cursor at an arbitrary host output rate.
package frac

import "math"

const (
	// Bits is the number of fractional bits.
	Bits = 16
	// One is 1.0 in fixed point.
	One Frac = 1 << Bits
	// LoMask selects the fractional part.
	LoMask Frac = One - 1
)

// Frac is an unsigned 16.16 fixed-point number.
type Frac uint32

// FromInt converts an integer to fixed point.
func FromInt(i int) Frac {
	return Frac(i) << Bits
}

// FromFloat converts a float to fixed point, truncating below 1/65536.
func FromFloat(f float64) Frac {
	if f <= 0 {
		return 0
	}
	return Frac(f * float64(One))
}

// FromRatio returns num/den in fixed point without going through floats.
// A zero denominator yields zero.
func FromRatio(num, den uint64) Frac {
	if den == 0 {
		return 0
	}
	v := (num << Bits) / den
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return Frac(v)
}

// Int returns the integer part.
func (f Frac) Int() int {
	return int(f >> Bits)
}

// Rem returns the fractional part.
func (f Frac) Rem() Frac {
	return f & LoMask
}

// Float converts back to a float.
func (f Frac) Float() float64 {
	return float64(f) / float64(One)
}

// Cursor is a playback position made of a whole sample index and a
// fractional remainder. The remainder is always kept below One.
type Cursor struct {
	Int int
	Rem Frac
}

// Step advances the cursor by rate.
func (c *Cursor) Step(rate Frac) {
	c.Rem += rate
	if c.Rem >= One {
		c.Int += c.Rem.Int()
		c.Rem &= LoMask
	}
}

// Rebase subtracts n whole samples, keeping the fractional phase intact.
func (c *Cursor) Rebase(n int) {
	c.Int -= n
}

// Reset moves the cursor back to sample 0 with no remainder.
func (c *Cursor) Reset() {
	c.Int = 0
	c.Rem = 0
}
