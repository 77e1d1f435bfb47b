package opl

import (
	"math"
	"sync"
)

// Tables shared by every chip instance. They depend on nothing but the
// hardware, so they are built once on first use.
var (
	tablesOnce sync.Once

	// tlTab maps a log attenuation index to a signed linear level.
	tlTab [tlTabLen]int32
	// sinTab holds the four waveforms as log-sin indices into tlTab, with
	// the sign in bit 0.
	sinTab [4 * sinLen]uint32
	// kslTab is the key scale level attenuation by block and fnum high bits.
	kslTab [8 * 16]uint32
	// lfoPMTab is the vibrato fnum offset by fnum bits 7-9, depth and step.
	lfoPMTab [8 * 16]int8
	// lfoAMTab is the tremolo triangle.
	lfoAMTab [lfoAMTabElements]uint8
	// egRateSelect and egRateShift expand a rate code plus key scaling into
	// an egInc row and a counter shift.
	egRateSelect [16 + 64 + 16]uint8
	egRateShift  [16 + 64 + 16]uint8
)

// mulTab is the frequency multiplier, doubled so 0.5 is representable.
var mulTab = [16]uint32{1, 2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 20, 24, 24, 30, 30}

// slTab converts the 4-bit sustain level to attenuation; 15 means -93 dB.
var slTab = [16]uint32{
	0 * 16, 1 * 16, 2 * 16, 3 * 16, 4 * 16, 5 * 16, 6 * 16, 7 * 16,
	8 * 16, 9 * 16, 10 * 16, 11 * 16, 12 * 16, 13 * 16, 14 * 16, 31 * 16,
}

// egInc is the per-step envelope increment, eight cycles per row.
var egInc = [15 * rateSteps]uint8{
	0, 1, 0, 1, 0, 1, 0, 1, // rates 00..12 0
	0, 1, 0, 1, 1, 1, 0, 1, // rates 00..12 1
	0, 1, 1, 1, 0, 1, 1, 1, // rates 00..12 2
	0, 1, 1, 1, 1, 1, 1, 1, // rates 00..12 3

	1, 1, 1, 1, 1, 1, 1, 1, // rate 13 0
	1, 1, 1, 2, 1, 1, 1, 2, // rate 13 1
	1, 2, 1, 2, 1, 2, 1, 2, // rate 13 2
	1, 2, 2, 2, 1, 2, 2, 2, // rate 13 3

	2, 2, 2, 2, 2, 2, 2, 2, // rate 14 0
	2, 2, 2, 4, 2, 2, 2, 4, // rate 14 1
	2, 4, 2, 4, 2, 4, 2, 4, // rate 14 2
	2, 4, 4, 4, 2, 4, 4, 4, // rate 14 3

	4, 4, 4, 4, 4, 4, 4, 4, // rate 15
	8, 8, 8, 8, 8, 8, 8, 8, // rate 15 attack
	0, 0, 0, 0, 0, 0, 0, 0, // infinite
}

// kslOctave7 is the key scale level, in dB, of the top octave.
var kslOctave7 = [16]float64{
	0.000, 9.000, 12.000, 13.875, 15.000, 16.125, 16.875, 17.625,
	18.000, 18.750, 19.125, 19.500, 19.875, 20.250, 20.625, 21.000,
}

const (
	// egRowAttackMax is the egInc row of the fastest attack.
	egRowAttackMax = 13
	// egRowInfinite is the egInc row that never moves.
	egRowInfinite = 14
	// kslStep is the dB value of one attenuation step at 10 bits.
	kslStep = 0.1875 / 2
)

func initTables() {
	tablesOnce.Do(func() {
		buildTL()
		buildSin()
		buildKSL()
		buildLFO()
		buildRates()
	})
}

func buildTL() {
	for x := 0; x < tlResLen; x++ {
		m := float64(1<<16) / math.Pow(2, float64(x+1)*(envStep/4.0)/8.0)
		m = math.Floor(m)

		// 16 bits here, rounded to 12 bits and stored shifted up by one
		n := int32(m)
		n >>= 4
		if n&1 != 0 {
			n = (n >> 1) + 1
		} else {
			n >>= 1
		}
		n <<= 1

		tlTab[x*2] = n
		tlTab[x*2+1] = -n
		for i := 1; i < 12; i++ {
			tlTab[x*2+i*2*tlResLen] = tlTab[x*2] >> i
			tlTab[x*2+1+i*2*tlResLen] = -tlTab[x*2+i*2*tlResLen]
		}
	}
}

func buildSin() {
	for i := 0; i < sinLen; i++ {
		// non-standard sine: the hardware samples at odd half steps
		m := math.Sin(float64(i*2+1) * math.Pi / sinLen)

		var o float64
		if m > 0 {
			o = 8 * math.Log(1.0/m) / math.Log(2)
		} else {
			o = 8 * math.Log(-1.0/m) / math.Log(2)
		}
		o /= envStep / 4

		n := int32(2 * o)
		if n&1 != 0 {
			n = (n >> 1) + 1
		} else {
			n >>= 1
		}

		sign := uint32(0)
		if m < 0 {
			sign = 1
		}
		sinTab[i] = uint32(n)*2 + sign
	}

	for i := 0; i < sinLen; i++ {
		// half-sine: negative half silenced
		if i&(1<<(sinBits-1)) != 0 {
			sinTab[1*sinLen+i] = tlTabLen
		} else {
			sinTab[1*sinLen+i] = sinTab[i]
		}

		// abs-sine
		sinTab[2*sinLen+i] = sinTab[i&(sinMask>>1)]

		// pulse-sine: first quarter of each half
		if i&(1<<(sinBits-2)) != 0 {
			sinTab[3*sinLen+i] = tlTabLen
		} else {
			sinTab[3*sinLen+i] = sinTab[i&(sinMask>>2)]
		}
	}
}

func buildKSL() {
	for oct := 0; oct < 8; oct++ {
		for i := 0; i < 16; i++ {
			db := kslOctave7[i] - 3*float64(7-oct)
			if db < 0 || i == 0 {
				db = 0
			}
			kslTab[oct*16+i] = uint32(db / kslStep)
		}
	}
}

func buildLFO() {
	// Vibrato: for fnum bits 7-9 value f, depth 0 swings by f>>1 and
	// depth 1 by f, over the 8 step pattern +x, +x/2, 0, -x/2, -x, -x/2, 0, +x/2.
	for f := 0; f < 8; f++ {
		for depth := 0; depth < 2; depth++ {
			x := int8(f >> 1)
			if depth == 1 {
				x = int8(f)
			}
			half := x >> 1
			row := [8]int8{x, half, 0, -half, -x, -half, 0, half}
			copy(lfoPMTab[f*16+depth*8:], row[:])
		}
	}

	// Tremolo: 7 zeros, up to 26, back down to 1.
	idx := 0
	for i := 0; i < 7; i++ {
		lfoAMTab[idx] = 0
		idx++
	}
	for v := 1; v <= 25; v++ {
		for i := 0; i < 4; i++ {
			lfoAMTab[idx] = uint8(v)
			idx++
		}
	}
	for i := 0; i < 3; i++ {
		lfoAMTab[idx] = 26
		idx++
	}
	for v := 25; v >= 1; v-- {
		for i := 0; i < 4; i++ {
			lfoAMTab[idx] = uint8(v)
			idx++
		}
	}
}

func buildRates() {
	idx := 0
	put := func(row, shift uint8) {
		egRateSelect[idx] = row * rateSteps
		egRateShift[idx] = shift
		idx++
	}

	// 16 infinite time rates
	for i := 0; i < 16; i++ {
		put(egRowInfinite, 0)
	}
	// rates 00-12
	for rate := 0; rate <= 12; rate++ {
		for row := uint8(0); row < 4; row++ {
			put(row, uint8(12-rate))
		}
	}
	// rates 13 and 14
	for row := uint8(4); row < 12; row++ {
		put(row, 0)
	}
	// rate 15
	for i := 0; i < 4; i++ {
		put(12, 0)
	}
	// 16 dummy rates (same as 15 3)
	for i := 0; i < 16; i++ {
		put(12, 0)
	}
}
