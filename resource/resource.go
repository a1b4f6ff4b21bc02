// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package resource defines the GPU resources that deferred commands can
// reference, and the contract that keeps them alive until the draw thread
// is done with them.
//
// Every resource embeds a [Ref]. Its count is the number of commands that
// reference the resource and have not executed yet; ownership by the
// application is not counted. Destroy is therefore deferred: the backend
// release function runs once the count drops to zero.
//
// Backends create resources through an [Allocator] and keep their native
// handle in the Native field.
package resource

import (
	"errors"
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

// ErrDestroyed is returned by backends when a destroyed resource is used.
var ErrDestroyed = errors.New("resource: destroyed")

// Kind identifies the type of a resource.
type Kind uint8

const (
	KindTexture Kind = iota
	KindBuffer
	KindSampler
	KindPipelineState
)

var kindNames = [...]string{
	KindTexture:       "Texture",
	KindBuffer:        "Buffer",
	KindSampler:       "Sampler",
	KindPipelineState: "PipelineState",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// State is the usage state a texture is transitioned between by barriers.
type State uint8

const (
	StateUndefined State = iota
	StateRenderTarget
	StateDepthWrite
	StateShaderResource
	StateCopySrc
	StateCopyDst
	StatePresent
)

var stateNames = [...]string{
	StateUndefined:      "Undefined",
	StateRenderTarget:   "RenderTarget",
	StateDepthWrite:     "DepthWrite",
	StateShaderResource: "ShaderResource",
	StateCopySrc:        "CopySrc",
	StateCopyDst:        "CopyDst",
	StatePresent:        "Present",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Usage maps the state to the texture usage a backend transitions to.
func (s State) Usage() gputypes.TextureUsage {
	switch s {
	case StateRenderTarget, StateDepthWrite, StatePresent:
		return gputypes.TextureUsageRenderAttachment
	case StateShaderResource:
		return gputypes.TextureUsageTextureBinding
	case StateCopySrc:
		return gputypes.TextureUsageCopySrc
	case StateCopyDst:
		return gputypes.TextureUsageCopyDst
	default:
		return gputypes.TextureUsageNone
	}
}

// destroyer runs a backend release function at most once, after the
// owning resource becomes idle.
type destroyer struct {
	scheduled atomic.Bool
	released  atomic.Bool
	release   func()
}

func (d *destroyer) destroy(ref *Ref) {
	if !d.scheduled.CompareAndSwap(false, true) {
		return
	}
	ref.WhenIdle(func() {
		if d.release != nil {
			d.release()
		}
		d.released.Store(true)
	})
}

func (d *destroyer) destroyed() bool { return d.released.Load() }

// TextureDescriptor describes a texture.
type TextureDescriptor struct {
	Label         string
	Size          gputypes.Extent3D
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
	SampleCount   uint32
	MipLevelCount uint32
}

// Texture is a 2D texture, render target or depth-stencil surface.
type Texture struct {
	Ref
	Desc   TextureDescriptor
	Native any

	d destroyer
}

// NewTexture wraps a backend texture. release runs once after Destroy,
// when no pending command references the texture.
func NewTexture(desc TextureDescriptor, native any, release func()) *Texture {
	t := &Texture{Desc: desc, Native: native}
	t.d.release = release
	return t
}

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return int(t.Desc.Size.Width) }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return int(t.Desc.Size.Height) }

// Destroy schedules the backend release for when the texture is idle.
// Calling Destroy more than once has no further effect.
func (t *Texture) Destroy() { t.d.destroy(&t.Ref) }

// Destroyed reports whether the backend texture has been released.
func (t *Texture) Destroyed() bool { return t.d.destroyed() }

// BufferDescriptor describes a buffer.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// Buffer is a vertex, index, constant or storage buffer.
type Buffer struct {
	Ref
	Desc   BufferDescriptor
	Native any

	d destroyer
}

// NewBuffer wraps a backend buffer.
func NewBuffer(desc BufferDescriptor, native any, release func()) *Buffer {
	b := &Buffer{Desc: desc, Native: native}
	b.d.release = release
	return b
}

// Destroy schedules the backend release for when the buffer is idle.
func (b *Buffer) Destroy() { b.d.destroy(&b.Ref) }

// Destroyed reports whether the backend buffer has been released.
func (b *Buffer) Destroyed() bool { return b.d.destroyed() }

// Sampler is a texture sampler.
type Sampler struct {
	Ref
	Desc   gputypes.SamplerDescriptor
	Native any

	d destroyer
}

// NewSampler wraps a backend sampler.
func NewSampler(desc gputypes.SamplerDescriptor, native any, release func()) *Sampler {
	s := &Sampler{Desc: desc, Native: native}
	s.d.release = release
	return s
}

// Destroy schedules the backend release for when the sampler is idle.
func (s *Sampler) Destroy() { s.d.destroy(&s.Ref) }

// Destroyed reports whether the backend sampler has been released.
func (s *Sampler) Destroyed() bool { return s.d.destroyed() }

// PipelineDescriptor describes a fixed-function render pipeline.
// A nil Blend disables blending.
type PipelineDescriptor struct {
	Label        string
	Topology     gputypes.PrimitiveTopology
	ColorFormats []gputypes.TextureFormat
	DepthFormat  gputypes.TextureFormat
	Blend        *gputypes.BlendState
	VertexStride uint32
}

// PipelineState is a compiled render pipeline.
type PipelineState struct {
	Ref
	Desc   PipelineDescriptor
	Native any

	d destroyer
}

// NewPipelineState wraps a backend pipeline.
func NewPipelineState(desc PipelineDescriptor, native any, release func()) *PipelineState {
	p := &PipelineState{Desc: desc, Native: native}
	p.d.release = release
	return p
}

// Destroy schedules the backend release for when the pipeline is idle.
func (p *PipelineState) Destroy() { p.d.destroy(&p.Ref) }

// Destroyed reports whether the backend pipeline has been released.
func (p *PipelineState) Destroyed() bool { return p.d.destroyed() }

// Allocator creates backend resources. Backends implement it alongside
// their command executor.
type Allocator interface {
	CreateTexture(desc *TextureDescriptor) (*Texture, error)
	CreateBuffer(desc *BufferDescriptor) (*Buffer, error)
	CreateSampler(desc *gputypes.SamplerDescriptor) (*Sampler, error)
	CreatePipelineState(desc *PipelineDescriptor) (*PipelineState, error)
}

var (
	_ Counted = (*Texture)(nil)
	_ Counted = (*Buffer)(nil)
	_ Counted = (*Sampler)(nil)
	_ Counted = (*PipelineState)(nil)
)
