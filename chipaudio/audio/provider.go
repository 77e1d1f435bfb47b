// Package audio adapts the chip producers to the beep streaming model and
// exports their output.
package audio

import (
	"fmt"

	"github.com/valerio/go-chipaudio/chipaudio/adlib"
	"github.com/valerio/go-chipaudio/chipaudio/opl"
	"github.com/valerio/go-chipaudio/chipaudio/paula"
)

// Provider is anything that renders interleaved 16-bit PCM on demand.
type Provider interface {
	// Generate fills buf and returns the number of values written.
	Generate(buf []int16) int
	SampleRate() int
	Channels() int
}

// ChannelStatus describes one voice for a monitor.
type ChannelStatus struct {
	Active bool
	Muted  bool
	Level  int // 0-64
	Detail string
}

// StatusProvider is a Provider that reports its voices.
type StatusProvider interface {
	Provider
	ChannelStatus() []ChannelStatus
}

// ChannelProvider is a StatusProvider with per-voice debug controls.
type ChannelProvider interface {
	StatusProvider

	ToggleChannel(i int)
	SoloChannel(i int)
	UnmuteAll()
}

var (
	_ Provider        = (*paula.Mixer)(nil)
	_ Provider        = (*opl.Stream)(nil)
	_ Provider        = (*adlib.Player)(nil)
	_ ChannelProvider = PaulaChannels{}
	_ StatusProvider  = AdLibChannels{}
)

// PaulaChannels exposes the mixer's mute controls as a ChannelProvider.
type PaulaChannels struct {
	*paula.Mixer
}

func (p PaulaChannels) ChannelStatus() []ChannelStatus {
	st := p.Status()
	out := make([]ChannelStatus, len(st))
	for i, v := range st {
		out[i] = ChannelStatus{
			Active: v.Active,
			Muted:  v.Muted,
			Level:  min(v.Volume, 64),
			Detail: formatVoice(v),
		}
	}
	return out
}

func (p PaulaChannels) ToggleChannel(i int) { p.ToggleVoice(i) }
func (p PaulaChannels) SoloChannel(i int)   { p.SoloVoice(i) }

// AdLibChannels reports the AdLib driver's voice allocation.
type AdLibChannels struct {
	*adlib.Player
}

func (a AdLibChannels) ChannelStatus() []ChannelStatus {
	voices := a.Voices()
	out := make([]ChannelStatus, len(voices))
	for i, v := range voices {
		out[i] = ChannelStatus{Active: v.Active, Detail: "-"}
		if !v.Active {
			continue
		}
		out[i].Level = 64
		out[i].Detail = fmt.Sprintf("part %2d  note %3d", v.Part, v.Note)
		if v.Held {
			out[i].Level = 32
			out[i].Detail += "  held"
		}
	}
	return out
}

func formatVoice(v paula.VoiceStatus) string {
	if !v.Active {
		return "-"
	}
	return fmt.Sprintf("per %3d  vol %2d  %5d/%-5d", v.Period, v.Volume, v.Position, v.Length)
}
