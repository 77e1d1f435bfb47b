//go:build headless

package speaker

import (
	"context"

	"github.com/valerio/go-chipaudio/chipaudio/audio"
	"github.com/valerio/go-chipaudio/chipaudio/backend"
)

// Backend is a stub for builds without an audio device.
type Backend struct{}

var _ backend.Backend = (*Backend)(nil)

func New() *Backend { return &Backend{} }

func (b *Backend) Init(backend.Config) error { return backend.ErrUnavailable }

func (b *Backend) Run(context.Context, audio.Provider) error { return backend.ErrUnavailable }

func (b *Backend) Cleanup() error { return nil }

func (b *Backend) SetPaused(bool) {}

func (b *Backend) Paused() bool { return false }
