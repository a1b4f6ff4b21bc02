// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package soft provides the CPU reference backend.
//
// Color textures are *image.RGBA; depth-stencil textures are float32 depth
// and uint8 stencil planes. Triangles are rasterized with
// golang.org/x/image/vector and composited with golang.org/x/image/draw.
//
// The backend is intentionally fixed-function:
//
//   - vertices are float32x2 clip-space positions read from vertex slot 0,
//     transformed by transform slot 0 and mapped through the viewport;
//   - a draw with no vertex buffer bound draws the built-in triangle;
//   - the color comes from the first four float32 values of constant
//     slot 0 (white when unbound), or from the texture bound at slot 0,
//     sampled in screen space;
//   - only triangle list and triangle strip topologies are rasterized,
//     and there is no depth test.
//
// Every Present snapshots the back buffer; see Backend.Frame.
package soft

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq/backend"
	"github.com/gogpu/drawq/internal/logx"
	"github.com/gogpu/drawq/resource"
)

func init() {
	backend.Register(backend.BackendSoft, func() backend.Backend { return New() })
}

// maxBufferSize bounds CPU buffer allocations.
const maxBufferSize = 1 << 30

// Surface is the native storage of a soft texture.
type Surface struct {
	// Image holds color texels. Nil for depth-stencil formats.
	Image *image.RGBA

	// Depth and Stencil hold one value per texel for depth-stencil formats.
	Depth   []float32
	Stencil []uint8

	Width, Height int
}

// Bounds returns the surface rectangle.
func (s *Surface) Bounds() image.Rectangle { return image.Rect(0, 0, s.Width, s.Height) }

// Memory is the native storage of a soft buffer.
type Memory struct {
	Data []byte
}

// Backend is the CPU reference backend.
type Backend struct {
	log *slog.Logger
	cfg backend.Config

	back *resource.Texture
	st   state

	mu     sync.Mutex
	frame  *image.RGBA
	frames int

	live atomic.Int64
}

// New returns an uninitialized soft backend.
func New() *Backend {
	b := &Backend{log: logx.Nop()}
	b.st.reset(nil)
	return b
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return backend.BackendSoft }

// Init implements backend.Backend. It allocates the back buffer.
func (b *Backend) Init(cfg backend.Config) error {
	b.cfg = cfg.WithDefaults()
	b.log = logx.OrNop(cfg.Logger).With("backend", backend.BackendSoft)
	if b.cfg.Format.IsDepthStencil() {
		return fmt.Errorf("soft: back buffer format %s is not a color format", b.cfg.Format)
	}

	back, err := b.CreateTexture(&resource.TextureDescriptor{
		Label:         "back buffer",
		Size:          gputypes.NewExtent2D(b.cfg.Width, b.cfg.Height),
		Format:        b.cfg.Format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		SampleCount:   1,
		MipLevelCount: 1,
	})
	if err != nil {
		return err
	}
	b.back = back
	b.st.reset(b.back)
	b.log.Info("initialized", "width", b.cfg.Width, "height", b.cfg.Height, "format", b.cfg.Format.String())
	return nil
}

// Close implements backend.Backend.
func (b *Backend) Close() {
	if b.back != nil {
		b.back.Destroy()
		b.back = nil
	}
	b.st.reset(nil)
	b.log.Debug("closed", "frames", b.Frames(), "live", b.Live())
}

// BackBuffer returns the texture a nil render target selects.
func (b *Backend) BackBuffer() *resource.Texture { return b.back }

// Frame returns a copy of the most recently presented back buffer, or nil
// before the first Present.
func (b *Backend) Frame() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame == nil {
		return nil
	}
	return cloneRGBA(b.frame)
}

// Frames returns the number of executed Present commands.
func (b *Backend) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Live returns the number of created resources not yet released.
func (b *Backend) Live() int { return int(b.live.Load()) }

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

func (b *Backend) track() func() {
	b.live.Add(1)
	return func() { b.live.Add(-1) }
}

// CreateTexture implements resource.Allocator. Every color format is
// stored as 8-bit RGBA.
func (b *Backend) CreateTexture(desc *resource.TextureDescriptor) (*resource.Texture, error) {
	w, h := int(desc.Size.Width), int(desc.Size.Height)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("soft: texture %q has empty size %dx%d", desc.Label, w, h)
	}
	s := &Surface{Width: w, Height: h}
	switch {
	case desc.Format.IsDepthStencil():
		if desc.Format.HasDepth() {
			s.Depth = make([]float32, w*h)
		}
		if desc.Format.HasStencil() {
			s.Stencil = make([]uint8, w*h)
		}
	default:
		s.Image = image.NewRGBA(s.Bounds())
	}
	return resource.NewTexture(*desc, s, b.track()), nil
}

// CreateBuffer implements resource.Allocator.
func (b *Backend) CreateBuffer(desc *resource.BufferDescriptor) (*resource.Buffer, error) {
	if desc.Size > maxBufferSize {
		return nil, fmt.Errorf("soft: buffer %q size %d exceeds %d", desc.Label, desc.Size, maxBufferSize)
	}
	return resource.NewBuffer(*desc, &Memory{Data: make([]byte, desc.Size)}, b.track()), nil
}

// CreateSampler implements resource.Allocator. Samplers carry no native
// state; filtering reads the descriptor.
func (b *Backend) CreateSampler(desc *gputypes.SamplerDescriptor) (*resource.Sampler, error) {
	return resource.NewSampler(*desc, nil, b.track()), nil
}

// CreatePipelineState implements resource.Allocator.
func (b *Backend) CreatePipelineState(desc *resource.PipelineDescriptor) (*resource.PipelineState, error) {
	return resource.NewPipelineState(*desc, nil, b.track()), nil
}

// surface returns the storage of t, or nil.
func surface(t *resource.Texture) *Surface {
	if t == nil {
		return nil
	}
	s, _ := t.Native.(*Surface)
	return s
}

// memory returns the storage of buf, or nil.
func memory(buf *resource.Buffer) *Memory {
	if buf == nil {
		return nil
	}
	m, _ := buf.Native.(*Memory)
	return m
}

var (
	_ backend.Backend = (*Backend)(nil)

	identity = mgl32.Ident4()
)
