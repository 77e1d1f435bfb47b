// Package script drives the Paula mixer from a Lua program. The script
// defines init() and on_interrupt(); both run inside the mixer interrupt
// and program the voices through a small set of globals.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/valerio/go-chipaudio/chipaudio/paula"
	"github.com/valerio/go-chipaudio/chipaudio/timing"
)

const (
	hookInit      = "init"
	hookInterrupt = "on_interrupt"
)

// Hooks that run past their budget are aborted and disabled. on_interrupt
// gets one interrupt period, never less than minHookBudget; init builds
// samples and gets initBudget.
const (
	minHookBudget = 10 * time.Millisecond
	initBudget    = time.Second
)

// state is one compiled script with the samples it registered.
type state struct {
	L       *lua.LState
	path    string
	samples [][]int8

	// voices is only valid while a hook runs.
	voices *paula.Voices
}

// Driver is a paula.Interrupter running a Lua script. Load may be called
// from any goroutine; the new script replaces the running one at the next
// interrupt.
type Driver struct {
	mu      sync.Mutex
	pending *state

	cur      *state // owned by the interrupt
	disabled bool
}

var _ paula.Interrupter = (*Driver)(nil)

// New returns a driver with no script loaded.
func New() *Driver {
	return &Driver{}
}

// Load compiles and runs the top level of the script at path. On success
// it is queued to replace the running script.
func (d *Driver) Load(path string) error {
	st := &state{path: path}
	st.L = lua.NewState()
	st.register()

	if err := st.L.DoFile(path); err != nil {
		st.L.Close()
		return fmt.Errorf("script: loading %s: %w", path, err)
	}

	d.mu.Lock()
	old := d.pending
	d.pending = st
	d.mu.Unlock()

	if old != nil {
		old.L.Close()
	}
	slog.Info("script loaded", "path", path)
	return nil
}

// Close releases the Lua states. The mixer must no longer call Interrupt.
func (d *Driver) Close() {
	d.mu.Lock()
	if d.pending != nil {
		d.pending.L.Close()
		d.pending = nil
	}
	d.mu.Unlock()

	if d.cur != nil {
		d.cur.L.Close()
		d.cur = nil
	}
}

// Interrupt swaps in a freshly loaded script and runs the interrupt hook.
func (d *Driver) Interrupt(v *paula.Voices) {
	d.mu.Lock()
	next := d.pending
	d.pending = nil
	d.mu.Unlock()

	if next != nil {
		if d.cur != nil {
			d.cur.L.Close()
		}
		d.cur = next
		d.disabled = false
		d.call(v, hookInit)
	}

	if d.cur == nil || d.disabled {
		return
	}
	d.call(v, hookInterrupt)
}

// call runs a global function if the script defines it. Errors disable
// the script until the next load.
func (d *Driver) call(v *paula.Voices, name string) {
	st := d.cur
	fn, ok := st.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return
	}

	st.voices = v
	defer func() { st.voices = nil }()

	budget := hookBudget(v, name)
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	st.L.SetContext(ctx)
	defer st.L.RemoveContext()

	err := st.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
	if err != nil {
		if ctx.Err() != nil {
			slog.Error("script hook timed out, hook disabled", "path", st.path, "hook", name, "budget", budget)
		} else {
			slog.Error("script error, hook disabled", "path", st.path, "hook", name, "error", err)
		}
		d.disabled = true
	}
}

func hookBudget(v *paula.Voices, name string) time.Duration {
	if name == hookInit {
		return initBudget
	}
	return max(timing.FramesToDuration(v.InterruptFreq(), v.SampleRate()), minHookBudget)
}
