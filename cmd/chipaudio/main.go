package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/valerio/go-chipaudio/chipaudio/audio"
	"github.com/valerio/go-chipaudio/chipaudio/backend"
	"github.com/valerio/go-chipaudio/chipaudio/backend/headless"
	"github.com/valerio/go-chipaudio/chipaudio/backend/speaker"
	"github.com/valerio/go-chipaudio/chipaudio/backend/terminal"
)

func main() {
	app := cli.NewApp()
	app.Name = "chipaudio"
	app.Description = "Retro sound chip emulation: Paula, OPL2 and AdLib"
	app.Usage = "chipaudio [options] <command> [arguments]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "rate",
			Usage: "Output sample rate in Hz",
			Value: 44100,
		},
		cli.BoolFlag{
			Name:  "mono",
			Usage: "Render a single output channel",
		},
		cli.Float64Flag{
			Name:  "seconds",
			Usage: "Stop after this many seconds (0 = until the source ends)",
		},
		cli.StringFlag{
			Name:  "out",
			Usage: "Write a WAV file instead of playing",
		},
		cli.BoolFlag{
			Name:  "realtime",
			Usage: "Pace --out rendering to wall-clock time",
		},
		cli.Float64Flag{
			Name:  "gain",
			Usage: "Linear output gain",
			Value: 1,
		},
		cli.BoolFlag{
			Name:  "tui",
			Usage: "Show the terminal voice monitor while playing",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
	app.Before = func(c *cli.Context) error {
		level := slog.LevelInfo
		if c.GlobalBool("verbose") {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	}
	app.Commands = []cli.Command{
		modCommand(),
		scriptCommand(),
		adlibCommand(),
		toneCommand(),
		lzssCommand(),
	}

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running chipaudio", "error", err)
		os.Exit(1)
	}
}

// session is what a subcommand hands to play.
type session struct {
	title    string
	provider audio.Provider
	done     func() bool
	status   func() string
}

// play runs s on the backend selected by the global flags.
func play(c *cli.Context, s session) error {
	seconds := c.GlobalFloat64("seconds")
	if seconds < 0 {
		return fmt.Errorf("--seconds must not be negative, got %v", seconds)
	}

	b, err := selectBackend(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := backend.Config{
		Title:    s.title,
		Duration: time.Duration(seconds * float64(time.Second)),
		Gain:     c.GlobalFloat64("gain"),
		Rate:     s.provider.SampleRate(),
		Done:     s.done,
		Status:   s.status,
	}
	if err := b.Init(cfg); err != nil {
		return err
	}
	defer func() {
		if err := b.Cleanup(); err != nil {
			slog.Warn("Backend cleanup failed", "error", err)
		}
	}()

	err = b.Run(ctx, s.provider)
	if errors.Is(err, context.Canceled) {
		slog.Info("Interrupted")
		return nil
	}
	return err
}

func selectBackend(c *cli.Context) (backend.Backend, error) {
	if out := c.GlobalString("out"); out != "" {
		if c.GlobalBool("tui") {
			slog.Warn("--tui is ignored when writing a file")
		}
		h := headless.New(out)
		if c.GlobalBool("realtime") {
			h.WithRealtime()
		}
		return h, nil
	}

	live := speaker.New()
	if !c.GlobalBool("tui") {
		return live, nil
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		slog.Warn("stdout is not a terminal, monitor disabled")
		return live, nil
	}
	return terminal.New(live), nil
}

func stereo(c *cli.Context) bool {
	return !c.GlobalBool("mono")
}

func rate(c *cli.Context) (int, error) {
	r := c.GlobalInt("rate")
	if r < 4000 || r > 192000 {
		return 0, fmt.Errorf("--rate %d out of range 4000-192000", r)
	}
	return r, nil
}

// argPath returns the single positional argument, or an error with usage.
func argPath(c *cli.Context, what string) (string, error) {
	if c.NArg() < 1 {
		cli.ShowCommandHelp(c, c.Command.Name)
		return "", fmt.Errorf("no %s provided", what)
	}
	return c.Args().First(), nil
}

func title(path string) string {
	return filepath.Base(path)
}
