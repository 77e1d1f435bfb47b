package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/urfave/cli"

	"github.com/valerio/go-chipaudio/chipaudio/adlib"
	"github.com/valerio/go-chipaudio/chipaudio/audio"
	"github.com/valerio/go-chipaudio/chipaudio/lzss"
	"github.com/valerio/go-chipaudio/chipaudio/modplayer"
	"github.com/valerio/go-chipaudio/chipaudio/opl"
	"github.com/valerio/go-chipaudio/chipaudio/paula"
	"github.com/valerio/go-chipaudio/chipaudio/script"
)

var paulaFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "filter",
		Usage: "Output filter model: none, a500 or a1200",
		Value: "a500",
	},
	cli.BoolFlag{
		Name:  "led",
		Usage: "Start with the LED filter on",
	},
}

func newMixer(c *cli.Context, handler paula.Interrupter) (*paula.Mixer, error) {
	r, err := rate(c)
	if err != nil {
		return nil, err
	}
	mode, err := paula.ParseFilterMode(c.String("filter"))
	if err != nil {
		return nil, err
	}

	m := paula.New(paula.Config{
		Stereo:     stereo(c),
		Rate:       r,
		FilterMode: mode,
	}, handler)
	m.SetLEDFilter(c.Bool("led"))
	return m, nil
}

func modCommand() cli.Command {
	return cli.Command{
		Name:      "mod",
		Usage:     "Play a ProTracker module",
		ArgsUsage: "<module file>",
		Flags: append([]cli.Flag{
			cli.BoolFlag{
				Name:  "loop",
				Usage: "Restart the song instead of stopping at its end",
			},
		}, paulaFlags...),
		Action: func(c *cli.Context) error {
			path, err := argPath(c, "module path")
			if err != nil {
				return err
			}
			song, err := modplayer.Load(path)
			if err != nil {
				return err
			}

			player := modplayer.New(song, modplayer.Config{Loop: c.Bool("loop")})
			m, err := newMixer(c, player)
			if err != nil {
				return err
			}
			m.StartPlay()

			slog.Info("Playing module", "title", song.Title, "orders", len(song.Orders), "patterns", len(song.Patterns))
			return play(c, session{
				title:    fmt.Sprintf("%s (%s)", song.Title, title(path)),
				provider: audio.PaulaChannels{Mixer: m},
				done:     player.Done,
				status: func() string {
					order, pattern, row := player.Position()
					return fmt.Sprintf("order %d/%d  pattern %d  row %02d", order, len(song.Orders), pattern, row)
				},
			})
		},
	}
}

func scriptCommand() cli.Command {
	return cli.Command{
		Name:      "script",
		Usage:     "Drive the Paula mixer from a Lua script",
		ArgsUsage: "<script.lua>",
		Flags: append([]cli.Flag{
			cli.BoolFlag{
				Name:  "watch",
				Usage: "Reload the script when it changes",
			},
		}, paulaFlags...),
		Action: func(c *cli.Context) error {
			path, err := argPath(c, "script path")
			if err != nil {
				return err
			}

			driver := script.New()
			defer driver.Close()
			if err := driver.Load(path); err != nil {
				return err
			}

			m, err := newMixer(c, driver)
			if err != nil {
				return err
			}
			m.StartPlay()

			if c.Bool("watch") {
				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()
				go func() {
					if err := driver.Watch(ctx, path); err != nil {
						slog.Error("Script watcher stopped", "error", err)
					}
				}()
			}

			return play(c, session{
				title:    title(path),
				provider: audio.PaulaChannels{Mixer: m},
				done:     func() bool { return !m.IsPlaying() },
			})
		},
	}
}

func adlibCommand() cli.Command {
	return cli.Command{
		Name:  "adlib",
		Usage: "Play a short demo through the AdLib driver",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "program",
				Usage: "Melody program number (0-127)",
			},
			cli.IntFlag{
				Name:  "tempo",
				Usage: "Beats per minute",
				Value: 120,
			},
			cli.BoolFlag{
				Name:  "legacy",
				Usage: "Use the early driver variant (no voice stealing)",
			},
		},
		Action: func(c *cli.Context) error {
			r, err := rate(c)
			if err != nil {
				return err
			}
			program := c.Int("program")
			if program < 0 || program > 127 {
				return fmt.Errorf("--program %d out of range 0-127", program)
			}
			bpm := c.Int("tempo")
			if bpm <= 0 {
				return fmt.Errorf("--tempo must be positive, got %d", bpm)
			}

			player := adlib.New(adlib.Config{Rate: r, Stereo: stereo(c), Legacy: c.Bool("legacy")})
			defer player.Close()

			seq := newSequencer(player, demoSong(program, r*60/bpm/2))
			return play(c, session{
				title:    "adlib demo",
				provider: seq,
				done:     seq.Done,
			})
		},
	}
}

func toneCommand() cli.Command {
	return cli.Command{
		Name:  "opl-tone",
		Usage: "Play a sine tone on the bare OPL2 core",
		Flags: []cli.Flag{
			cli.Float64Flag{
				Name:  "freq",
				Usage: "Tone frequency in Hz",
				Value: 440,
			},
		},
		Action: func(c *cli.Context) error {
			r, err := rate(c)
			if err != nil {
				return err
			}
			block, fnum, err := fnumFor(c.Float64("freq"), opl.DefaultClock)
			if err != nil {
				return err
			}

			s := opl.NewStream(opl.StreamConfig{Rate: r, Stereo: stereo(c)})
			s.Do(func(chip *opl.Chip) { keyOnTone(chip, block, fnum) })
			s.Start(nil, 0)
			defer s.Stop()

			slog.Info("Playing tone", "freq", c.Float64("freq"), "block", block, "fnum", fnum)
			return play(c, session{title: "opl tone", provider: s})
		},
	}
}

// fnumFor finds the lowest block whose fnum for hz fits in 10 bits.
func fnumFor(hz float64, clock int) (block, fnum int, err error) {
	sampleRate := float64(clock) / 72
	for block = 0; block < 8; block++ {
		f := math.Round(hz * float64(int(1)<<(20-block)) / sampleRate)
		if f < 1024 {
			if f < 1 {
				break
			}
			return block, int(f), nil
		}
	}
	return 0, 0, fmt.Errorf("frequency %v Hz out of range", hz)
}

// keyOnTone sets channel 0 up as a plain sine carrier and keys it on.
func keyOnTone(chip *opl.Chip, block, fnum int) {
	mod, car := opl.OperatorOffset(0, 0), opl.OperatorOffset(0, 1)
	chip.WriteReg(0x01, 0x20)
	chip.WriteReg(0x20+mod, 0x01)
	chip.WriteReg(0x40+mod, 0x3F) // modulator silent
	chip.WriteReg(0x20+car, 0x21) // sustain, multiple 1
	chip.WriteReg(0x40+car, 0x00)
	chip.WriteReg(0x60+car, 0xF0)
	chip.WriteReg(0x80+car, 0x0F)
	chip.WriteReg(0xE0+car, 0x00)
	chip.WriteReg(0xC0, 0x01) // additive, no feedback
	chip.WriteReg(0xA0, fnum&0xFF)
	chip.WriteReg(0xB0, 0x20|block<<2|fnum>>8)
}

func lzssCommand() cli.Command {
	formatFlag := cli.StringFlag{
		Name:  "format",
		Usage: "Stream layout: okumura (lsb) or msb",
		Value: "okumura",
	}
	return cli.Command{
		Name:  "lzss",
		Usage: "Compress or expand LZSS data",
		Subcommands: []cli.Command{
			{
				Name:      "pack",
				Usage:     "Compress a file",
				ArgsUsage: "<in> <out>",
				Flags:     []cli.Flag{formatFlag},
				Action: func(c *cli.Context) error {
					return convert(c, lzss.Compress)
				},
			},
			{
				Name:      "unpack",
				Usage:     "Expand a file",
				ArgsUsage: "<in> <out>",
				Flags:     []cli.Flag{formatFlag},
				Action: func(c *cli.Context) error {
					return convert(c, lzss.Decompress)
				},
			},
		},
	}
}

func convert(c *cli.Context, fn func([]byte, lzss.Format) []byte) error {
	if c.NArg() != 2 {
		cli.ShowCommandHelp(c, c.Command.Name)
		return fmt.Errorf("expected input and output paths, got %d arguments", c.NArg())
	}
	f, ok := lzss.ParseFormat(c.String("format"))
	if !ok {
		return fmt.Errorf("unknown lzss format %q", c.String("format"))
	}

	in, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return err
	}
	out := fn(in, f)
	if err := os.WriteFile(c.Args().Get(1), out, 0o644); err != nil {
		return err
	}

	slog.Info("lzss done", "command", c.Command.Name, "in", len(in), "out", len(out), "format", c.String("format"))
	return nil
}
