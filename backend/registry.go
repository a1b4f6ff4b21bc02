// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"
)

// Factory creates a new, uninitialized backend instance.
type Factory func() Backend

// Priority order for backend selection (first registered wins).
// HAL > Soft > Trace (the GPU first, the recorder last).
var registry = gpucontext.NewRegistry[Backend](
	gpucontext.WithPriority(BackendHAL, BackendSoft, BackendTrace),
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registry.Register(name, factory)
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registry.Unregister(name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	names := registry.Available()
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	return registry.Has(name)
}

// Get returns a new backend instance by name.
// Returns nil if the backend is not registered.
func Get(name string) Backend {
	return registry.Get(name)
}

// Default returns a new instance of the best available backend.
// Returns nil if no backends are registered.
func Default() Backend {
	return registry.Best()
}

// DefaultName returns the name Default would pick, or "" if none.
func DefaultName() string {
	return registry.BestName()
}

// Open creates and initializes the named backend. An empty name selects
// the default backend.
func Open(name string, cfg Config) (Backend, error) {
	var b Backend
	if name == "" {
		b = Default()
		if b == nil {
			return nil, ErrBackendNotAvailable
		}
	} else {
		b = Get(name)
		if b == nil {
			return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Available())
		}
	}

	if err := b.Init(cfg); err != nil {
		return nil, fmt.Errorf("backend: init %s: %w", b.Name(), err)
	}
	return b, nil
}
