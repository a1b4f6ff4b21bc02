// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package backend provides the pluggable execution backend abstraction.
//
// A Backend is the far end of the command pipeline: it implements
// command.Executor, called on the draw thread for every decoded command,
// and resource.Allocator, which creates the textures, buffers, samplers and
// pipelines that commands bind.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime:
//
//	import _ "github.com/gogpu/drawq/backend/soft"
//
// # Backend Selection
//
// Use Open with a name, or with "" for the best available backend:
//
//	b, err := backend.Open("soft", backend.Config{Width: 800, Height: 600})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
// # Available Backends
//
//   - "hal": wgpu HAL device; defaults to the in-tree noop adapter
//   - "soft": CPU reference rasterizer into *image.RGBA
//   - "trace": records every command, optionally logging it
package backend
