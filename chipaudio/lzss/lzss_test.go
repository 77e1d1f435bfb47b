package lzss

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompressKnownStreams(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		input    []byte
		expected string
	}{
		{
			name:     "okumura overlapping reference",
			format:   Okumura,
			input:    []byte{0x03, 'A', 'B', 0xEE, 0xF2},
			expected: "ABABAB",
		},
		{
			name:     "msb first overlapping reference",
			format:   MSBFirstFormat,
			input:    []byte{0xC0, 'A', 'B', 0xEE, 0x2F},
			expected: "ABABAB",
		},
		{
			name:     "reference into the fill",
			format:   Okumura,
			input:    []byte{0x00, 0x00, 0x01},
			expected: "   ",
		},
		{
			name:     "zero fill",
			format:   Format{LiteralFlag: 1},
			input:    []byte{0x00, 0x10, 0x00},
			expected: "\x00\x00",
		},
		{
			name:     "literal flag zero",
			format:   Format{LiteralFlag: 0, Fill: 'x', Start: 0},
			input:    []byte{0xFE, 'q'},
			expected: "q",
		},
		{
			name:     "empty input",
			format:   Okumura,
			input:    nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(Decompress(tt.input, tt.format)))
		})
	}
}

func testInputs() map[string][]byte {
	rng := rand.New(rand.NewSource(7))
	random := make([]byte, 5000)
	rng.Read(random)

	samples := make([]byte, 8192)
	for i := range samples {
		samples[i] = byte(int8(64 * ((i / 37) % 3)))
	}

	return map[string][]byte{
		"empty":    {},
		"single":   {0x42},
		"text":     []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)),
		"run":      bytes.Repeat([]byte{0xAA}, 3000),
		"spaces":   bytes.Repeat([]byte{' '}, 100),
		"random":   random,
		"samples":  samples,
		"wrapping": []byte(strings.Repeat("abcdefghijklmnopqrstuvwxyz0123456789", 200)),
	}
}

func TestRoundTrip(t *testing.T) {
	formats := map[string]Format{
		"okumura": Okumura,
		"msb":     MSBFirstFormat,
		"zero":    {},
	}

	for fname, f := range formats {
		for name, src := range testInputs() {
			t.Run(fname+"/"+name, func(t *testing.T) {
				packed := Compress(src, f)
				assert.Equal(t, src, append([]byte{}, Decompress(packed, f)...))
			})
		}
	}
}

func TestCompressShrinksRedundantData(t *testing.T) {
	src := testInputs()["text"]
	packed := Compress(src, Okumura)
	assert.Less(t, len(packed), len(src)/4)
}

func TestTruncatedInputYieldsPrefix(t *testing.T) {
	src := testInputs()["text"][:600]
	packed := Compress(src, Okumura)

	prev := 0
	for cut := 0; cut <= len(packed); cut++ {
		out := Decompress(packed[:cut], Okumura)
		require.True(t, bytes.HasPrefix(src, out), "cut %d", cut)
		assert.GreaterOrEqual(t, len(out), prev, "cut %d", cut)
		prev = len(out)
	}
	assert.Equal(t, len(src), prev)
}

func TestReaderWithSmallReads(t *testing.T) {
	src := testInputs()["wrapping"]
	packed := Compress(src, MSBFirstFormat)

	r := NewReader(iotest.OneByteReader(bytes.NewReader(packed)), MSBFirstFormat)
	var out bytes.Buffer
	buf := make([]byte, 3)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			break
		}
	}
	assert.Equal(t, src, out.Bytes())
}

func TestDecompressTo(t *testing.T) {
	src := testInputs()["text"]
	packed := Compress(src, Okumura)

	t.Run("destination smaller than output", func(t *testing.T) {
		dst := make([]byte, 100)
		n, err := DecompressTo(bytes.NewReader(packed), dst, Okumura)
		require.NoError(t, err)
		assert.Equal(t, 100, n)
		assert.Equal(t, src[:100], dst)
	})

	t.Run("truncated input is not an error", func(t *testing.T) {
		dst := make([]byte, len(src))
		n, err := DecompressTo(bytes.NewReader(packed[:len(packed)/2]), dst, Okumura)
		require.NoError(t, err)
		assert.Less(t, n, len(src))
		assert.Equal(t, src[:n], dst[:n])
	})

	t.Run("read errors are returned", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := DecompressTo(iotest.ErrReader(boom), make([]byte, 10), Okumura)
		assert.ErrorIs(t, err, boom)
	})
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("msb")
	require.True(t, ok)
	assert.Equal(t, MSBFirstFormat, f)

	f, ok = ParseFormat("")
	require.True(t, ok)
	assert.Equal(t, Okumura, f)

	_, ok = ParseFormat("lz4")
	assert.False(t, ok)
}
