// Package modplayer plays four channel ProTracker modules on the Paula
// mixer. The Player is a paula.Interrupter: it advances one tick per
// interrupt and reprograms the voices.
package modplayer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	numSamples      = 31
	numChannels     = 4
	rowsPerPattern  = 64
	bytesPerChannel = 4
	bytesPerRow     = numChannels * bytesPerChannel
	patternSize     = rowsPerPattern * bytesPerRow
)

// ErrFormat is returned for files that are not four channel modules.
var ErrFormat = errors.New("modplayer: unsupported module format")

// Song is a parsed module.
type Song struct {
	Title    string
	Samples  [numSamples]Sample
	Orders   []byte
	Patterns [][]byte
}

// Sample is one instrument. Lengths and loop points are in bytes.
type Sample struct {
	Name      string
	Length    int
	FineTune  int // index into fineTuning, 8 is no tuning
	Volume    int
	LoopStart int
	LoopLen   int
	Data      []int8
}

// looped reports whether the sample has a repeat segment Paula will loop.
func (s *Sample) looped() bool {
	return s.LoopLen > 2
}

// loop returns the repeat segment.
func (s *Sample) loop() []int8 {
	start := min(s.LoopStart, len(s.Data))
	end := min(start+s.LoopLen, len(s.Data))
	return s.Data[start:end]
}

// Load reads and parses a module file.
func Load(path string) (*Song, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("modplayer: %w", err)
	}
	return Parse(b)
}

// Parse decodes a 31 sample, four channel module (M.K., M!K!, 4CHN or
// FLT4). Sample data cut short by the end of the file is kept as far as
// it goes.
func Parse(b []byte) (*Song, error) {
	r := bytes.NewReader(b)
	song := &Song{}

	title := make([]byte, 20)
	if _, err := io.ReadFull(r, title); err != nil {
		return nil, fmt.Errorf("modplayer: reading title: %w", err)
	}
	song.Title = strings.TrimRight(string(title), "\x00 ")

	for i := range song.Samples {
		s, err := readSampleInfo(r)
		if err != nil {
			return nil, fmt.Errorf("modplayer: reading sample %d: %w", i+1, err)
		}
		song.Samples[i] = s
	}

	orders := struct {
		Length    uint8
		Restart   uint8
		OrderData [128]byte
	}{}
	if err := binary.Read(r, binary.BigEndian, &orders); err != nil {
		return nil, fmt.Errorf("modplayer: reading orders: %w", err)
	}
	if orders.Length == 0 || orders.Length > 128 {
		return nil, fmt.Errorf("%w: song length %d", ErrFormat, orders.Length)
	}
	song.Orders = append([]byte{}, orders.OrderData[:orders.Length]...)

	sig := make([]byte, 4)
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, fmt.Errorf("modplayer: reading signature: %w", err)
	}
	switch string(sig) {
	case "M.K.", "M!K!", "4CHN", "FLT4":
	default:
		return nil, fmt.Errorf("%w: signature %q", ErrFormat, sig)
	}

	// every pattern in the order table is stored, used or not
	patterns := 0
	for _, o := range orders.OrderData {
		patterns = max(patterns, int(o)+1)
	}
	song.Patterns = make([][]byte, patterns)
	for i := range song.Patterns {
		song.Patterns[i] = make([]byte, patternSize)
		if _, err := io.ReadFull(r, song.Patterns[i]); err != nil {
			return nil, fmt.Errorf("modplayer: reading pattern %d: %w", i, err)
		}
	}

	for i := range song.Samples {
		s := &song.Samples[i]
		n := min(s.Length, r.Len())
		if n < s.Length {
			slog.Warn("modplayer: sample data truncated", "sample", i+1, "want", s.Length, "have", n)
		}
		s.Data = make([]int8, n)
		s.Length = n
		if n == 0 {
			continue
		}
		if err := binary.Read(r, binary.LittleEndian, s.Data); err != nil {
			return nil, fmt.Errorf("modplayer: reading sample %d data: %w", i+1, err)
		}
	}

	slog.Debug("module parsed", "title", song.Title, "orders", len(song.Orders), "patterns", patterns)
	return song, nil
}

func readSampleInfo(r io.Reader) (Sample, error) {
	data := struct {
		Name      [22]byte
		Length    uint16
		FineTune  uint8
		Volume    uint8
		LoopStart uint16
		LoopLen   uint16
	}{}
	if err := binary.Read(r, binary.BigEndian, &data); err != nil {
		return Sample{}, err
	}

	s := Sample{
		Name:      strings.TrimRight(string(data.Name[:]), "\x00 "),
		Length:    int(data.Length) * 2,
		FineTune:  int(data.FineTune&7) - int(data.FineTune&8) + 8,
		Volume:    min(int(data.Volume), 64),
		LoopStart: int(data.LoopStart) * 2,
		LoopLen:   int(data.LoopLen) * 2,
	}
	return s, nil
}

// decodeNote splits a pattern cell into sample number, period, effect and
// parameter.
func decodeNote(note []byte) (int, int, byte, byte) {
	sampNum := note[0]&0xF0 | note[2]>>4
	period := int(note[0]&0x0F)<<8 | int(note[1])
	return int(sampNum), period, note[2] & 0x0F, note[3]
}
