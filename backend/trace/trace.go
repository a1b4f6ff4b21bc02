// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package trace provides a backend that records every executed command.
//
// It renders nothing. Tests use it to assert on the exact command stream a
// producer emitted, and Config.Logger turns it into a command logger.
//
//	import _ "github.com/gogpu/drawq/backend/trace"
package trace

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq/backend"
	"github.com/gogpu/drawq/command"
	"github.com/gogpu/drawq/internal/logx"
	"github.com/gogpu/drawq/resource"
)

func init() {
	backend.Register(backend.BackendTrace, func() backend.Backend { return New() })
}

// Handle is the native handle of a trace resource.
type Handle struct {
	ID    uint64
	Label string
}

// Backend records commands in execution order.
type Backend struct {
	log *slog.Logger
	cfg backend.Config

	mu     sync.Mutex
	cmds   []command.Command
	frames int
	depth  int

	ids  atomic.Uint64
	live atomic.Int64
}

// New returns an uninitialized trace backend.
func New() *Backend {
	return &Backend{log: logx.Nop()}
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return backend.BackendTrace }

// Init implements backend.Backend.
func (b *Backend) Init(cfg backend.Config) error {
	b.cfg = cfg.WithDefaults()
	b.log = logx.OrNop(cfg.Logger).With("backend", backend.BackendTrace)
	return nil
}

// Close implements backend.Backend. Recorded commands stay readable.
func (b *Backend) Close() {
	b.log.Debug("closed", "commands", len(b.Commands()), "live", b.Live())
}

// Config returns the configuration passed to Init, with defaults applied.
func (b *Backend) Config() backend.Config { return b.cfg }

// Commands returns a copy of the recorded commands.
func (b *Backend) Commands() []command.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.cmds)
}

// Types returns the types of the recorded commands.
func (b *Backend) Types() []command.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]command.Type, len(b.cmds))
	for i, c := range b.cmds {
		types[i] = c.Type()
	}
	return types
}

// Frames returns the number of executed Present commands.
func (b *Backend) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Live returns the number of created resources not yet released.
func (b *Backend) Live() int { return int(b.live.Load()) }

// Reset discards the recorded commands and the frame count.
func (b *Backend) Reset() {
	b.mu.Lock()
	b.cmds = nil
	b.frames = 0
	b.depth = 0
	b.mu.Unlock()
}

func (b *Backend) record(c command.Command) {
	b.mu.Lock()
	b.cmds = append(b.cmds, c)
	depth := b.depth
	b.mu.Unlock()
	if b.log.Enabled(context.Background(), slog.LevelDebug) {
		b.log.Debug("command", "type", c.Type().String(), "depth", depth)
	}
}

func (b *Backend) BeginScene() { b.record(command.BeginScene{}) }
func (b *Backend) EndScene()   { b.record(command.EndScene{}) }

func (b *Backend) Present() {
	b.mu.Lock()
	b.frames++
	b.mu.Unlock()
	b.record(command.Present{})
}

func (b *Backend) SetViewport(c *command.SetViewport)                 { b.record(*c) }
func (b *Backend) SetScissor(c *command.SetScissor)                   { b.record(*c) }
func (b *Backend) SetRenderTarget(c *command.SetRenderTarget)         { b.record(*c) }
func (b *Backend) ClearScreen(c *command.ClearScreen)                 { b.record(*c) }
func (b *Backend) SetPipelineState(c *command.SetPipelineState)       { b.record(*c) }
func (b *Backend) SetBlendState(c *command.SetBlendState)             { b.record(*c) }
func (b *Backend) SetStencilReference(c *command.SetStencilReference) { b.record(*c) }
func (b *Backend) BindVertexBuffer(c *command.BindVertexBuffer)       { b.record(*c) }
func (b *Backend) BindIndexBuffer(c *command.BindIndexBuffer)         { b.record(*c) }
func (b *Backend) BindTexture(c *command.BindTexture)                 { b.record(*c) }
func (b *Backend) BindSampler(c *command.BindSampler)                 { b.record(*c) }
func (b *Backend) BindConstantBuffer(c *command.BindConstantBuffer)   { b.record(*c) }

// UpdateBuffer records a copy of the data, which otherwise aliases the ring.
func (b *Backend) UpdateBuffer(c *command.UpdateBuffer) {
	u := *c
	u.Data = bytes.Clone(c.Data)
	b.record(u)
}

func (b *Backend) SetTransform(c *command.SetTransform)                 { b.record(*c) }
func (b *Backend) DrawPrimitive(c *command.DrawPrimitive)               { b.record(*c) }
func (b *Backend) DrawIndexedPrimitive(c *command.DrawIndexedPrimitive) { b.record(*c) }
func (b *Backend) Dispatch(c *command.Dispatch)                         { b.record(*c) }
func (b *Backend) ResourceBarrier(c *command.ResourceBarrier)           { b.record(*c) }
func (b *Backend) CopyTexture(c *command.CopyTexture)                   { b.record(*c) }

func (b *Backend) PushDebugEvent(c *command.PushDebugEvent) {
	b.record(*c)
	b.mu.Lock()
	b.depth++
	b.mu.Unlock()
}

func (b *Backend) PopDebugEvent() {
	b.mu.Lock()
	if b.depth > 0 {
		b.depth--
	}
	b.mu.Unlock()
	b.record(command.PopDebugEvent{})
}

func (b *Backend) InsertDebugMarker(c *command.InsertDebugMarker) { b.record(*c) }

func (b *Backend) handle(label string) (*Handle, func()) {
	h := &Handle{ID: b.ids.Add(1), Label: label}
	b.live.Add(1)
	return h, func() {
		b.live.Add(-1)
		b.log.Debug("release", "id", h.ID, "label", h.Label)
	}
}

// CreateTexture implements resource.Allocator.
func (b *Backend) CreateTexture(desc *resource.TextureDescriptor) (*resource.Texture, error) {
	h, release := b.handle(desc.Label)
	return resource.NewTexture(*desc, h, release), nil
}

// CreateBuffer implements resource.Allocator.
func (b *Backend) CreateBuffer(desc *resource.BufferDescriptor) (*resource.Buffer, error) {
	h, release := b.handle(desc.Label)
	return resource.NewBuffer(*desc, h, release), nil
}

// CreateSampler implements resource.Allocator.
func (b *Backend) CreateSampler(desc *gputypes.SamplerDescriptor) (*resource.Sampler, error) {
	h, release := b.handle(desc.Label)
	return resource.NewSampler(*desc, h, release), nil
}

// CreatePipelineState implements resource.Allocator.
func (b *Backend) CreatePipelineState(desc *resource.PipelineDescriptor) (*resource.PipelineState, error) {
	h, release := b.handle(desc.Label)
	return resource.NewPipelineState(*desc, h, release), nil
}

var _ backend.Backend = (*Backend)(nil)
