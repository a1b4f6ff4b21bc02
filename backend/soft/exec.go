// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package soft

import (
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/drawq/command"
	"github.com/gogpu/drawq/resource"
)

type vertexBinding struct {
	buf    *resource.Buffer
	offset uint64
	stride uint32
}

type indexBinding struct {
	buf    *resource.Buffer
	format gputypes.IndexFormat
	offset uint64
}

type constantBinding struct {
	buf          *resource.Buffer
	offset, size uint64
}

// state is the fixed-function pipeline state. BeginScene resets it.
type state struct {
	colors   [command.MaxColorTargets]*resource.Texture
	depth    *resource.Texture
	viewport command.SetViewport
	scissor  image.Rectangle
	scissed  bool

	pipeline   *resource.PipelineState
	blend      *gputypes.BlendState
	stencilRef uint32

	vertices   map[uint32]vertexBinding
	index      indexBinding
	textures   map[uint32]*resource.Texture
	samplers   map[uint32]*resource.Sampler
	constants  map[uint32]constantBinding
	transforms map[uint32]mgl32.Mat4

	debug    []string
	barriers map[*resource.Texture]resource.State
}

func (s *state) reset(back *resource.Texture) {
	*s = state{
		vertices:   make(map[uint32]vertexBinding),
		textures:   make(map[uint32]*resource.Texture),
		samplers:   make(map[uint32]*resource.Sampler),
		constants:  make(map[uint32]constantBinding),
		transforms: make(map[uint32]mgl32.Mat4),
		barriers:   make(map[*resource.Texture]resource.State),
	}
	s.bindColor(back)
}

// bindColor binds t as the only color target and resets the viewport and
// scissor to cover it.
func (s *state) bindColor(t *resource.Texture) {
	s.colors = [command.MaxColorTargets]*resource.Texture{t}
	s.viewport = command.SetViewport{MaxDepth: 1}
	if t != nil {
		s.viewport.Width = float32(t.Width())
		s.viewport.Height = float32(t.Height())
	}
	s.scissed = false
}

// clipRect returns the pixels draws and clears may touch: the first color
// target, limited by the viewport and the scissor.
func (s *state) clipRect() image.Rectangle {
	target := surface(s.colors[0])
	if target == nil {
		return image.Rectangle{}
	}
	vp := s.viewport
	r := image.Rect(
		int(math.Floor(float64(vp.X))),
		int(math.Floor(float64(vp.Y))),
		int(math.Ceil(float64(vp.X+vp.Width))),
		int(math.Ceil(float64(vp.Y+vp.Height))),
	).Intersect(target.Bounds())
	if s.scissed {
		r = r.Intersect(s.scissor)
	}
	return r
}

func toNRGBA(c gputypes.Color) color.NRGBA {
	return color.NRGBA{R: unorm8(c.R), G: unorm8(c.G), B: unorm8(c.B), A: unorm8(c.A)}
}

func unorm8(v float64) uint8 {
	return uint8(math.Round(max(0, min(1, v)) * 255))
}

// BeginScene resets the pipeline state and binds the back buffer.
func (b *Backend) BeginScene() {
	if len(b.st.debug) > 0 {
		b.log.Warn("scene began with open debug events", "open", b.st.debug)
	}
	b.st.reset(b.back)
}

// EndScene implements command.Executor.
func (b *Backend) EndScene() {}

// Present snapshots the back buffer.
func (b *Backend) Present() {
	s := surface(b.back)
	if s == nil {
		b.log.Warn("present before init")
		return
	}
	frame := cloneRGBA(s.Image)
	b.mu.Lock()
	b.frame = frame
	b.frames++
	n := b.frames
	b.mu.Unlock()
	b.log.Debug("present", "frame", n)
}

func (b *Backend) SetViewport(c *command.SetViewport) { b.st.viewport = *c }

func (b *Backend) SetScissor(c *command.SetScissor) {
	b.st.scissor = image.Rect(int(c.X), int(c.Y), int(c.X+c.Width), int(c.Y+c.Height))
	b.st.scissed = true
}

// SetRenderTarget binds the targets and resets the viewport to the first
// color target. A nil first color target selects the back buffer.
func (b *Backend) SetRenderTarget(c *command.SetRenderTarget) {
	first := c.Colors[0]
	if first == nil {
		first = b.back
	}
	b.st.bindColor(first)
	copy(b.st.colors[1:], c.Colors[1:])
	b.st.depth = c.Depth
}

// ClearScreen clears the selected aspects of the bound targets inside the
// viewport and scissor.
func (b *Backend) ClearScreen(c *command.ClearScreen) {
	r := b.st.clipRect()
	if r.Empty() {
		return
	}
	if c.Flags&command.ClearColor != 0 {
		src := image.NewUniform(toNRGBA(c.Color))
		for _, t := range b.st.colors {
			if s := surface(t); s != nil && s.Image != nil {
				xdraw.Draw(s.Image, r, src, image.Point{}, xdraw.Src)
			}
		}
	}

	ds := surface(b.st.depth)
	if ds == nil {
		return
	}
	dr := r.Intersect(ds.Bounds())
	for y := dr.Min.Y; y < dr.Max.Y; y++ {
		row := y*ds.Width + dr.Min.X
		n := dr.Dx()
		if c.Flags&command.ClearDepth != 0 && ds.Depth != nil {
			fill(ds.Depth[row:row+n], c.Depth)
		}
		if c.Flags&command.ClearStencil != 0 && ds.Stencil != nil {
			fill(ds.Stencil[row:row+n], uint8(c.Stencil))
		}
	}
}

func fill[T any](s []T, v T) {
	for i := range s {
		s[i] = v
	}
}

func (b *Backend) SetPipelineState(c *command.SetPipelineState) { b.st.pipeline = c.Pipeline }

// SetBlendState overrides the pipeline blend state until the next scene.
func (b *Backend) SetBlendState(c *command.SetBlendState) {
	blend := c.Blend
	b.st.blend = &blend
}

func (b *Backend) SetStencilReference(c *command.SetStencilReference) {
	b.st.stencilRef = c.Reference
}

func (b *Backend) BindVertexBuffer(c *command.BindVertexBuffer) {
	b.st.vertices[c.Slot] = vertexBinding{buf: c.Buffer, offset: c.Offset, stride: c.Stride}
}

func (b *Backend) BindIndexBuffer(c *command.BindIndexBuffer) {
	b.st.index = indexBinding{buf: c.Buffer, format: c.Format, offset: c.Offset}
}

func (b *Backend) BindTexture(c *command.BindTexture) {
	b.st.textures[c.Slot] = c.Texture
}

func (b *Backend) BindSampler(c *command.BindSampler) {
	b.st.samplers[c.Slot] = c.Sampler
}

func (b *Backend) BindConstantBuffer(c *command.BindConstantBuffer) {
	b.st.constants[c.Slot] = constantBinding{buf: c.Buffer, offset: c.Offset, size: c.Size}
}

// UpdateBuffer copies the data into the buffer. Writes past the end are
// truncated.
func (b *Backend) UpdateBuffer(c *command.UpdateBuffer) {
	m := memory(c.Buffer)
	if m == nil {
		b.log.Warn("update of a foreign buffer ignored")
		return
	}
	if c.Offset > uint64(len(m.Data)) {
		b.log.Warn("update offset out of range", "offset", c.Offset, "size", len(m.Data))
		return
	}
	if n := copy(m.Data[c.Offset:], c.Data); n < len(c.Data) {
		b.log.Warn("update truncated", "offset", c.Offset, "len", len(c.Data), "written", n)
	}
}

func (b *Backend) SetTransform(c *command.SetTransform) {
	b.st.transforms[c.Slot] = c.Matrix
}

// Dispatch is not supported on the CPU; it is logged and skipped.
func (b *Backend) Dispatch(c *command.Dispatch) {
	b.log.Debug("dispatch skipped", "x", c.X, "y", c.Y, "z", c.Z)
}

// ResourceBarrier tracks texture states within a scene and warns when a
// barrier's before state does not match the last transition.
func (b *Backend) ResourceBarrier(c *command.ResourceBarrier) {
	if prev, ok := b.st.barriers[c.Texture]; ok && prev != c.Before {
		b.log.Warn("barrier state mismatch",
			"texture", c.Texture.Desc.Label,
			"tracked", prev.String(),
			"before", c.Before.String())
	}
	b.st.barriers[c.Texture] = c.After
}

// CopyTexture copies Src into Dst, scaling color textures when the sizes
// differ. The sampler at slot 0 selects nearest or bilinear filtering.
func (b *Backend) CopyTexture(c *command.CopyTexture) {
	src, dst := surface(c.Src), surface(c.Dst)
	switch {
	case src == nil || dst == nil:
		b.log.Warn("copy of a foreign texture ignored")
	case src.Image != nil && dst.Image != nil:
		if src.Bounds() == dst.Bounds() {
			xdraw.Copy(dst.Image, image.Point{}, src.Image, src.Bounds(), xdraw.Src, nil)
			return
		}
		b.interpolator().Scale(dst.Image, dst.Bounds(), src.Image, src.Bounds(), xdraw.Src, nil)
	case src.Image == nil && dst.Image == nil && src.Bounds() == dst.Bounds():
		copy(dst.Depth, src.Depth)
		copy(dst.Stencil, src.Stencil)
	default:
		b.log.Warn("incompatible texture copy",
			"src", c.Src.Desc.Label, "src_format", c.Src.Desc.Format.String(),
			"dst", c.Dst.Desc.Label, "dst_format", c.Dst.Desc.Format.String())
	}
}

func (b *Backend) interpolator() xdraw.Interpolator {
	if s := b.st.samplers[0]; s != nil && s.Desc.MagFilter == gputypes.FilterModeNearest {
		return xdraw.NearestNeighbor
	}
	return xdraw.BiLinear
}

func (b *Backend) PushDebugEvent(c *command.PushDebugEvent) {
	b.st.debug = append(b.st.debug, c.Name)
	b.log.Debug("debug event", "name", c.Name, "depth", len(b.st.debug))
}

func (b *Backend) PopDebugEvent() {
	if len(b.st.debug) == 0 {
		b.log.Warn("unbalanced debug event pop")
		return
	}
	b.st.debug = b.st.debug[:len(b.st.debug)-1]
}

func (b *Backend) InsertDebugMarker(c *command.InsertDebugMarker) {
	b.log.Debug("debug marker", "name", c.Name, "depth", len(b.st.debug))
}
