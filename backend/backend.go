// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"errors"
	"log/slog"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq/command"
	"github.com/gogpu/drawq/resource"
)

// Backend name constants.
const (
	// BackendHAL is the name of the wgpu HAL backend.
	BackendHAL = "hal"
	// BackendSoft is the name of the CPU reference backend.
	BackendSoft = "soft"
	// BackendTrace is the name of the recording backend.
	BackendTrace = "trace"
)

// Common backend errors.
var (
	// ErrUnknownBackend is returned when a requested backend is not registered.
	ErrUnknownBackend = errors.New("backend: unknown backend")

	// ErrBackendNotAvailable is returned when no backend is registered.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when resources are requested before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Config configures a backend at Init.
type Config struct {
	// Width and Height size the back buffer. Zero means 1920x1080.
	Width  uint32
	Height uint32

	// Format is the back buffer format. Zero means RGBA8Unorm.
	Format gputypes.TextureFormat

	// Logger receives backend diagnostics. Nil discards them.
	Logger *slog.Logger
}

// WithDefaults returns c with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Width == 0 || c.Height == 0 {
		c.Width, c.Height = 1920, 1080
	}
	if c.Format == gputypes.TextureFormatUndefined {
		c.Format = gputypes.TextureFormatRGBA8Unorm
	}
	return c
}

// Backend executes decoded commands and creates the resources they bind.
//
// Executor methods are only called from the draw thread. Allocator methods
// may be called from any goroutine.
type Backend interface {
	command.Executor
	resource.Allocator

	// Name returns the backend identifier (e.g., "soft", "hal").
	Name() string

	// Init prepares the backend. It must be called before any other method.
	Init(cfg Config) error

	// Close releases all backend resources.
	// The backend should not be used after Close is called.
	Close()
}
