package lzss

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
)

// Reader decompresses an LZSS stream. The stream has no end marker; it
// ends where the source does, and a unit cut short by the end of the
// source is dropped.
type Reader struct {
	src    io.ByteReader
	format Format

	window *[windowSize]byte
	pos    int

	flags     byte
	flagsLeft int
	unit      int

	// pending back reference
	copyPos int
	copyLen int

	err error
}

// NewReader returns a Reader decoding r in format f.
func NewReader(r io.Reader, f Format) *Reader {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{
		src:    br,
		format: f,
		window: f.newWindow(),
		pos:    f.Start & windowMask,
	}
}

// Read implements io.Reader.
func (z *Reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if z.copyLen > 0 {
			b := z.window[z.copyPos&windowMask]
			z.copyPos++
			z.copyLen--
			z.put(b)
			p[n] = b
			n++
			continue
		}
		if z.err != nil {
			break
		}
		b, ok := z.next()
		if ok {
			p[n] = b
			n++
		}
	}

	if n == 0 && z.err != nil {
		return 0, z.err
	}
	return n, nil
}

// next decodes one unit. A literal is returned directly; a back reference
// is queued and reported as !ok.
func (z *Reader) next() (byte, bool) {
	if z.flagsLeft == 0 {
		flags, err := z.readByte()
		if err != nil {
			return 0, false
		}
		z.flags = flags
		z.flagsLeft = 8
		z.unit = 0
	}

	literal := z.format.isLiteral(z.flags, z.unit)
	z.unit++
	z.flagsLeft--

	if literal {
		b, err := z.readByte()
		if err != nil {
			return 0, false
		}
		z.put(b)
		return b, true
	}

	b0, err := z.readByte()
	if err != nil {
		return 0, false
	}
	b1, err := z.readByte()
	if err != nil {
		if z.err == io.EOF {
			slog.Warn("lzss: stream ends inside a back reference")
		}
		return 0, false
	}
	z.copyPos, z.copyLen = z.format.decodeRef(b0, b1)
	return 0, false
}

func (z *Reader) readByte() (byte, error) {
	b, err := z.src.ReadByte()
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		z.err = err
	}
	return b, err
}

func (z *Reader) put(b byte) {
	z.window[z.pos] = b
	z.pos = (z.pos + 1) & windowMask
}

// Decompress decodes all of src.
func Decompress(src []byte, f Format) []byte {
	out, _ := io.ReadAll(NewReader(bytes.NewReader(src), f))
	return out
}

// DecompressTo decodes r into dst until either runs out and returns the
// number of bytes written. Running out of input is not an error; only
// read errors from r are returned.
func DecompressTo(r io.Reader, dst []byte, f Format) (int, error) {
	n, err := io.ReadFull(NewReader(r, f), dst)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return n, err
}
