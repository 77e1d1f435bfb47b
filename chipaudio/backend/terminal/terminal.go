package terminal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/valerio/go-chipaudio/chipaudio/audio"
	"github.com/valerio/go-chipaudio/chipaudio/backend"
	"github.com/valerio/go-chipaudio/chipaudio/timing"
)

const (
	refreshHz   = 30
	logCapacity = 200
	meterWidth  = 16
	headerRows  = 2
)

// Backend is a tcell voice monitor layered over another backend, which
// does the actual playback.
type Backend struct {
	inner  backend.Backend
	screen tcell.Screen
	config backend.Config

	logs       *LogBuffer
	logLevel   slog.LevelVar
	prevLogger *slog.Logger
}

var _ backend.Backend = (*Backend)(nil)

// New wraps inner with a terminal monitor.
func New(inner backend.Backend) *Backend {
	return &Backend{inner: inner}
}

func newWithScreen(inner backend.Backend, screen tcell.Screen) *Backend {
	return &Backend{inner: inner, screen: screen}
}

func (t *Backend) Init(config backend.Config) error {
	t.config = config

	if t.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to initialize terminal: %w", err)
		}
		t.screen = screen
	}
	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	// logs go to the pane while the screen is ours
	t.logs = NewLogBuffer(logCapacity)
	t.logLevel.Set(slog.LevelInfo)
	t.prevLogger = slog.Default()
	slog.SetDefault(slog.New(NewLogHandler(t.logs, slog.LevelDebug)))

	slog.Info("Terminal monitor initialized")
	return t.inner.Init(config)
}

// Run plays p through the inner backend while drawing the monitor. It
// returns when playback ends or the user quits.
func (t *Backend) Run(ctx context.Context, p audio.Provider) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- t.inner.Run(ctx, p) }()

	events := make(chan tcell.Event, 16)
	stop := make(chan struct{})
	defer close(stop)
	go t.screen.ChannelEvents(events, stop)

	ticker := timing.NewTickerLimiter(timing.Period(refreshHz))
	defer ticker.Stop()

	t.draw(p)
	for {
		select {
		case err := <-errc:
			return err
		case ev := <-events:
			if t.handleEvent(ev, p) {
				slog.Info("Quit requested")
				cancel()
				if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				if t.config.Callbacks.OnQuit != nil {
					t.config.Callbacks.OnQuit()
				}
				return nil
			}
			t.draw(p)
		case <-ticker.C():
			t.draw(p)
		}
	}
}

func (t *Backend) Cleanup() error {
	err := t.inner.Cleanup()
	if t.screen != nil {
		t.screen.Fini()
	}
	if t.prevLogger != nil {
		slog.SetDefault(t.prevLogger)
		// replay what the pane showed so it is not lost with the screen
		entries := t.logs.Recent(0, t.logLevel.Level())
		for i := len(entries) - 1; i >= 0; i-- {
			slog.Log(context.Background(), entries[i].Level, entries[i].Message)
		}
	}
	return err
}

// handleEvent applies a key press and reports whether to quit.
func (t *Backend) handleEvent(ev tcell.Event, p audio.Provider) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		t.screen.Sync()
	case *tcell.EventKey:
		return t.handleKey(ev, p)
	}
	return false
}

func (t *Backend) handleKey(ev *tcell.EventKey, p audio.Provider) bool {
	cp, hasChannels := p.(audio.ChannelProvider)

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyF1, tcell.KeyF2, tcell.KeyF3, tcell.KeyF4,
		tcell.KeyF5, tcell.KeyF6, tcell.KeyF7, tcell.KeyF8, tcell.KeyF9:
		i := int(ev.Key() - tcell.KeyF1)
		if hasChannels && i < len(cp.ChannelStatus()) {
			cp.SoloChannel(i)
			slog.Info("Solo voice", "voice", i+1)
		}
		return false
	case tcell.KeyRune:
	default:
		return false
	}

	r := ev.Rune()
	switch {
	case r == 'q':
		return true
	case r >= '1' && r <= '9':
		i := int(r - '1')
		if hasChannels && i < len(cp.ChannelStatus()) {
			cp.ToggleChannel(i)
			slog.Info("Toggled voice", "voice", i+1, "muted", cp.ChannelStatus()[i].Muted)
		}
	case r == '0':
		if hasChannels {
			cp.UnmuteAll()
			slog.Info("All voices unmuted")
		}
	case r == 'p' || r == ' ':
		if pz, ok := t.inner.(backend.Pauser); ok {
			pz.SetPaused(!pz.Paused())
			slog.Info("Pause toggled", "paused", pz.Paused())
		}
	case r == '+':
		t.changeLogLevel(-1)
	case r == '-':
		t.changeLogLevel(1)
	}
	return false
}

var logLevels = []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

// changeLogLevel moves the pane filter; negative shows more.
func (t *Backend) changeLogLevel(direction int) {
	cur := t.logLevel.Level()
	i := 1
	for j, l := range logLevels {
		if l == cur {
			i = j
		}
	}
	i = min(max(i+direction, 0), len(logLevels)-1)
	if logLevels[i] != cur {
		t.logLevel.Set(logLevels[i])
		slog.Info("Log filter changed", "from", cur, "to", logLevels[i])
	}
}

func (t *Backend) draw(p audio.Provider) {
	t.screen.Clear()
	w, h := t.screen.Size()

	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	title := fmt.Sprintf(" %s  %d Hz", t.config.Title, p.SampleRate())
	if t.config.Status != nil {
		title += "  " + t.config.Status()
	}
	if pz, ok := t.inner.(backend.Pauser); ok && pz.Paused() {
		title += "  [paused]"
	}
	t.text(0, 0, w, title, titleStyle)

	y := headerRows
	if sp, ok := p.(audio.StatusProvider); ok {
		for i, st := range sp.ChannelStatus() {
			if y >= h-1 {
				break
			}
			t.drawVoice(y, w, i, st)
			y++
		}
		y++
	}

	t.drawLogs(y, w, h-1)

	help := " 1-9 mute  F1-F9 solo  0 unmute  p pause  +/- log level  q quit"
	t.text(0, h-1, w, help, tcell.StyleDefault.Foreground(tcell.ColorWhite))
	t.screen.Show()
}

func (t *Backend) drawVoice(y, w, i int, st audio.ChannelStatus) {
	style := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	mark := ' '
	switch {
	case st.Muted:
		style = tcell.StyleDefault.Foreground(tcell.ColorGray)
		mark = 'M'
	case !st.Active:
		style = tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	}

	filled := 0
	if st.Active {
		filled = (min(max(st.Level, 0), 64)*meterWidth + 63) / 64
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("·", meterWidth-filled)
	t.text(0, y, w, fmt.Sprintf(" %d %c %s  %s", i+1, mark, bar, st.Detail), style)
}

func (t *Backend) drawLogs(top, w, bottom int) {
	rows := bottom - top
	if rows <= 0 {
		return
	}

	styles := map[slog.Level]tcell.Style{
		slog.LevelDebug: tcell.StyleDefault.Foreground(tcell.ColorGray),
		slog.LevelInfo:  tcell.StyleDefault.Foreground(tcell.ColorBlue),
		slog.LevelWarn:  tcell.StyleDefault.Foreground(tcell.ColorYellow),
		slog.LevelError: tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
	}

	// oldest at the top, newest just above the help line
	entries := t.logs.Recent(rows, t.logLevel.Level())
	for i, e := range entries {
		style, ok := styles[e.Level]
		if !ok {
			style = styles[slog.LevelInfo]
		}
		t.text(0, bottom-1-i, w, FormatLogEntry(e), style)
	}
}

// text draws s on row y, truncated to w cells.
func (t *Backend) text(x, y, w int, s string, style tcell.Style) {
	for _, r := range s {
		if x >= w {
			return
		}
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
