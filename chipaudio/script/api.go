package script

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	lua "github.com/yuin/gopher-lua"

	"github.com/valerio/go-chipaudio/chipaudio/paula"
)

func (st *state) register() {
	funcs := map[string]lua.LGFunction{
		"sample":         st.luaSample,
		"play":           st.luaPlay,
		"period":         st.luaPeriod,
		"volume":         st.luaVolume,
		"pan":            st.luaPan,
		"stop_voice":     st.luaStopVoice,
		"interrupt_rate": st.luaInterruptRate,
		"dma_count":      st.luaDMACount,
		"stop":           st.luaStop,
	}
	for name, fn := range funcs {
		st.L.SetGlobal(name, st.L.NewFunction(fn))
	}
}

// hw returns the mixer view, raising a Lua error outside of a hook.
func (st *state) hw(L *lua.LState) *paula.Voices {
	if st.voices == nil {
		L.RaiseError("voice access outside init/on_interrupt")
	}
	return st.voices
}

func checkVoice(L *lua.LState, n int) int {
	i := L.CheckInt(n)
	if i < 0 || i >= paula.NumVoices {
		L.ArgError(n, "voice must be 0-3")
	}
	return i
}

// sample(table) registers signed 8-bit PCM and returns its id.
func (st *state) luaSample(L *lua.LState) int {
	tbl := L.CheckTable(1)
	data := make([]int8, tbl.Len())
	for i := range data {
		n, ok := tbl.RawGetInt(i + 1).(lua.LNumber)
		if !ok {
			L.ArgError(1, "sample values must be numbers")
		}
		data[i] = int8(max(-128, min(127, int(n))))
	}
	st.samples = append(st.samples, data)
	L.Push(lua.LNumber(len(st.samples)))
	return 1
}

// play(voice, id, period, volume[, loopStart, loopLen]) starts a sample.
func (st *state) luaPlay(L *lua.LState) int {
	v := st.hw(L)
	i := checkVoice(L, 1)
	id := L.CheckInt(2)
	if id < 1 || id > len(st.samples) {
		L.ArgError(2, "unknown sample")
	}
	period := L.CheckInt(3)
	vol := L.CheckInt(4)
	loopStart := L.OptInt(5, 0)
	loopLen := L.OptInt(6, 0)

	data := st.samples[id-1]
	var repeat []int8
	if loopLen > 0 && loopStart >= 0 && loopStart < len(data) {
		repeat = data[loopStart:min(loopStart+loopLen, len(data))]
	}
	v.SetVoice(i, data, len(data), repeat, len(repeat), period, vol, v.Voice(i).Panning)
	return 0
}

func (st *state) luaPeriod(L *lua.LState) int {
	st.hw(L).SetPeriod(checkVoice(L, 1), L.CheckInt(2))
	return 0
}

func (st *state) luaVolume(L *lua.LState) int {
	st.hw(L).SetVolume(checkVoice(L, 1), L.CheckInt(2))
	return 0
}

func (st *state) luaPan(L *lua.LState) int {
	p := L.CheckInt(2)
	st.hw(L).SetPanning(checkVoice(L, 1), uint8(max(0, min(255, p))))
	return 0
}

func (st *state) luaStopVoice(L *lua.LState) int {
	st.hw(L).ClearVoice(checkVoice(L, 1))
	return 0
}

// interrupt_rate(n) asks for n interrupts per second.
func (st *state) luaInterruptRate(L *lua.LState) int {
	v := st.hw(L)
	n := L.CheckInt(1)
	if n <= 0 {
		L.ArgError(1, "rate must be positive")
	}
	v.SetInterruptFreq(v.SampleRate() / n)
	return 0
}

func (st *state) luaDMACount(L *lua.LState) int {
	L.Push(lua.LNumber(st.hw(L).DMACount(checkVoice(L, 1))))
	return 1
}

func (st *state) luaStop(L *lua.LState) int {
	st.hw(L).StopPlay()
	return 0
}

// Watch reloads the script whenever the file at path changes, until ctx
// is done. The directory is watched so editors that replace the file are
// noticed too.
func (d *Driver) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	slog.Debug("watching script", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := d.Load(abs); err != nil {
				slog.Warn("script reload failed", "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("script watcher", "error", err)
		}
	}
}
