package terminal

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-chipaudio/chipaudio/audio"
	"github.com/valerio/go-chipaudio/chipaudio/backend"
	"github.com/valerio/go-chipaudio/chipaudio/paula"
)

// fakePlayer blocks in Run until cancelled.
type fakePlayer struct {
	inited    bool
	cancelled atomic.Bool
	cleaned   bool
	paused    bool
}

func (f *fakePlayer) Init(backend.Config) error {
	f.inited = true
	return nil
}

func (f *fakePlayer) Run(ctx context.Context, _ audio.Provider) error {
	<-ctx.Done()
	f.cancelled.Store(true)
	return ctx.Err()
}

func (f *fakePlayer) Cleanup() error {
	f.cleaned = true
	return nil
}

func (f *fakePlayer) SetPaused(p bool) { f.paused = p }
func (f *fakePlayer) Paused() bool     { return f.paused }

func newTestMonitor(t *testing.T, cfg backend.Config) (*Backend, *fakePlayer, tcell.SimulationScreen) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	sim := tcell.NewSimulationScreen("UTF-8")
	inner := &fakePlayer{}
	b := newWithScreen(inner, sim)
	require.NoError(t, b.Init(cfg))
	sim.SetSize(100, 20)
	return b, inner, sim
}

func row(sim tcell.SimulationScreen, y int) string {
	cells, w, _ := sim.GetContents()
	var sb strings.Builder
	for x := 0; x < w; x++ {
		c := cells[y*w+x]
		if len(c.Runes) == 0 {
			sb.WriteRune(' ')
			continue
		}
		sb.WriteRune(c.Runes[0])
	}
	return strings.TrimRight(sb.String(), " ")
}

func newMixer() audio.PaulaChannels {
	m := paula.New(paula.Config{Rate: 8000}, nil)
	m.SetVoice(0, make([]int8, 32), 32, nil, 0, 428, 64, 0)
	m.StartPlay()
	return audio.PaulaChannels{Mixer: m}
}

func TestInitCapturesLogs(t *testing.T) {
	b, inner, _ := newTestMonitor(t, backend.Config{})
	assert.True(t, inner.inited)

	slog.Warn("captured")
	entries := b.logs.Recent(1, slog.LevelDebug)
	require.Len(t, entries, 1)
	assert.Equal(t, "captured", entries[0].Message)
}

func TestDraw(t *testing.T) {
	b, _, sim := newTestMonitor(t, backend.Config{
		Title:  "song.mod",
		Status: func() string { return "order 1/4" },
	})
	p := newMixer()

	b.draw(p)

	title := row(sim, 0)
	assert.Contains(t, title, "song.mod")
	assert.Contains(t, title, "8000 Hz")
	assert.Contains(t, title, "order 1/4")

	voice := row(sim, headerRows)
	assert.True(t, strings.HasPrefix(voice, " 1   "+strings.Repeat("█", meterWidth)), voice)
	assert.Contains(t, voice, "per 428")
	assert.Contains(t, row(sim, headerRows+1), strings.Repeat("·", meterWidth))

	assert.Contains(t, row(sim, 19), "q quit")
}

func TestHandleKey(t *testing.T) {
	b, inner, _ := newTestMonitor(t, backend.Config{})
	p := newMixer()

	key := func(r rune) bool {
		return b.handleKey(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone), p)
	}

	assert.False(t, key('2'))
	assert.True(t, p.ChannelStatus()[1].Muted)

	assert.False(t, b.handleKey(tcell.NewEventKey(tcell.KeyF3, 0, tcell.ModNone), p))
	st := p.ChannelStatus()
	assert.True(t, st[0].Muted)
	assert.False(t, st[2].Muted)

	assert.False(t, key('0'))
	for _, s := range p.ChannelStatus() {
		assert.False(t, s.Muted)
	}

	assert.False(t, key('9'), "voices past the mixer are ignored")

	key('p')
	assert.True(t, inner.paused)
	key(' ')
	assert.False(t, inner.paused)

	key('+')
	assert.Equal(t, slog.LevelDebug, b.logLevel.Level())
	key('+')
	assert.Equal(t, slog.LevelDebug, b.logLevel.Level())
	key('-')
	key('-')
	assert.Equal(t, slog.LevelWarn, b.logLevel.Level())

	assert.True(t, key('q'))
	assert.True(t, b.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), p))
}

func TestRunQuit(t *testing.T) {
	var quit atomic.Bool
	b, inner, sim := newTestMonitor(t, backend.Config{
		Callbacks: backend.Callbacks{OnQuit: func() { quit.Store(true) }},
	})

	errc := make(chan error, 1)
	go func() { errc <- b.Run(context.Background(), newMixer()) }()
	sim.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not quit")
	}
	assert.True(t, inner.cancelled.Load())
	assert.True(t, quit.Load())

	require.NoError(t, b.Cleanup())
	assert.True(t, inner.cleaned)
}

func TestRunContextCancel(t *testing.T) {
	b, _, _ := newTestMonitor(t, backend.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- b.Run(ctx, newMixer()) }()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
