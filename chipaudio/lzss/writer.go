package lzss

// Compress encodes src greedily, taking the longest match of at least
// three bytes at each position. The decoder reproduces src exactly,
// including matches that overlap the bytes they produce.
func Compress(src []byte, f Format) []byte {
	e := encoder{
		format: f,
		window: f.newWindow(),
		pos:    f.Start & windowMask,
		out:    make([]byte, 0, len(src)+len(src)/8+1),
	}

	for i := 0; i < len(src); {
		pos, length := e.longestMatch(src, i)
		if length < minMatch+1 {
			e.literal(src[i])
			i++
			continue
		}
		e.reference(pos, length, src[i:i+length])
		i += length
	}

	// A short final group keeps its unused flag bits clear. The decoder
	// stops at the end of input whatever they say.
	return e.out
}

type encoder struct {
	format Format
	window *[windowSize]byte
	pos    int

	out      []byte
	flagAt   int
	units    int
	inFlight bool
}

// longestMatch searches the whole window. The byte a reference reads at
// step k is either window content or, once the copy has caught up with
// the write position, a byte it wrote itself.
func (e *encoder) longestMatch(src []byte, i int) (bestPos, bestLen int) {
	limit := min(maxMatch, len(src)-i)
	if limit < minMatch {
		return 0, 0
	}

	for o := 0; o < windowSize; o++ {
		if e.window[o] != src[i] {
			continue
		}
		k := 1
		for ; k < limit; k++ {
			var b byte
			if d := (o + k - e.pos) & windowMask; d < k {
				b = src[i+d]
			} else {
				b = e.window[(o+k)&windowMask]
			}
			if b != src[i+k] {
				break
			}
		}
		if k > bestLen {
			bestPos, bestLen = o, k
			if k == limit {
				break
			}
		}
	}
	return bestPos, bestLen
}

func (e *encoder) startUnit(literal bool) {
	if !e.inFlight {
		e.flagAt = len(e.out)
		e.out = append(e.out, 0)
		e.units = 0
		e.inFlight = true
	}
	e.out[e.flagAt] |= e.format.flagBit(e.units, literal)
	e.units++
}

func (e *encoder) endUnit() {
	if e.units == 8 {
		e.inFlight = false
	}
}

func (e *encoder) literal(b byte) {
	e.startUnit(true)
	e.out = append(e.out, b)
	e.put(b)
	e.endUnit()
}

func (e *encoder) reference(pos, length int, data []byte) {
	e.startUnit(false)
	b0, b1 := e.format.encodeRef(pos, length)
	e.out = append(e.out, b0, b1)
	for _, b := range data {
		e.put(b)
	}
	e.endUnit()
}

func (e *encoder) put(b byte) {
	e.window[e.pos] = b
	e.pos = (e.pos + 1) & windowMask
}
