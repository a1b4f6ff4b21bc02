// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package halexec

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/drawq/command"
	"github.com/gogpu/drawq/resource"
)

type vertexBinding struct {
	buf    *resource.Buffer
	offset uint64
}

type indexBinding struct {
	buf    *resource.Buffer
	format gputypes.IndexFormat
	offset uint64
}

// state mirrors the bound pipeline state so a new render pass can restore
// it. BeginScene resets it.
type state struct {
	colors   [command.MaxColorTargets]*resource.Texture
	depth    *resource.Texture
	viewport command.SetViewport
	scissor  *command.SetScissor

	pipeline   *resource.PipelineState
	blend      *gputypes.BlendState
	constant   gputypes.Color
	stencilRef uint32
	bound      hal.RenderPipeline

	vertices   map[uint32]vertexBinding
	index      *indexBinding
	textures   map[uint32]*resource.Texture
	samplers   map[uint32]*resource.Sampler
	constants  map[uint32]*resource.Buffer
	transforms map[uint32]mgl32.Mat4

	debug []string
}

func (s *state) reset(back *resource.Texture) {
	*s = state{
		vertices:   make(map[uint32]vertexBinding),
		textures:   make(map[uint32]*resource.Texture),
		samplers:   make(map[uint32]*resource.Sampler),
		constants:  make(map[uint32]*resource.Buffer),
		transforms: make(map[uint32]mgl32.Mat4),
	}
	s.bindColor(back)
}

func (s *state) bindColor(t *resource.Texture) {
	s.colors = [command.MaxColorTargets]*resource.Texture{t}
	s.viewport = command.SetViewport{MaxDepth: 1}
	if t != nil {
		s.viewport.Width = float32(t.Width())
		s.viewport.Height = float32(t.Height())
	}
	s.scissor = nil
}

// encoder returns the scene's command encoder, starting one if needed.
func (b *Backend) encoder() hal.CommandEncoder {
	if b.enc != nil {
		return b.enc
	}
	if b.device == nil {
		b.log.Warn("command before init")
		return nil
	}
	enc, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "drawq scene"})
	if err != nil {
		b.log.Error("create command encoder", "err", err)
		return nil
	}
	if err := enc.BeginEncoding("drawq scene"); err != nil {
		b.log.Error("begin encoding", "err", err)
		return nil
	}
	b.enc = enc
	return enc
}

// submit ends the open encoder and submits it.
func (b *Backend) submit() {
	if b.enc == nil {
		return
	}
	b.endPass()
	cb, err := b.enc.EndEncoding()
	b.enc = nil
	if err != nil {
		b.log.Error("end encoding", "err", err)
		return
	}
	if _, err := b.queue.Submit([]hal.CommandBuffer{cb}); err != nil {
		b.log.Error("submit", "err", err)
		b.device.FreeCommandBuffer(cb)
		return
	}
	b.inflight = append(b.inflight, cb)
	b.count(func(s *Stats) { s.Submits++ })
}

// retire waits for submitted work, then frees its command buffers and the
// pipelines evicted while it was pending.
func (b *Backend) retire() {
	if len(b.inflight) > 0 {
		if err := b.device.WaitIdle(); err != nil {
			b.log.Warn("wait idle", "err", err)
		}
	}
	for _, cb := range b.inflight {
		b.device.FreeCommandBuffer(cb)
	}
	b.inflight = b.inflight[:0]
	if b.shaders != nil {
		b.shaders.collect()
	}
}

// beginPass opens a render pass on the bound targets, clearing the aspects
// clear selects, and restores the dynamic state.
func (b *Backend) beginPass(clear *command.ClearScreen) bool {
	enc := b.encoder()
	if enc == nil {
		return false
	}
	var flags command.ClearFlags
	if clear != nil {
		flags = clear.Flags
	}

	desc := &hal.RenderPassDescriptor{Label: "drawq pass"}
	for _, t := range b.st.colors {
		n := nativeTexture(t)
		if n == nil {
			continue
		}
		att := hal.RenderPassColorAttachment{
			View:    n.View,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}
		if flags&command.ClearColor != 0 {
			att.LoadOp = gputypes.LoadOpClear
			att.ClearValue = clear.Color
		}
		desc.ColorAttachments = append(desc.ColorAttachments, att)
	}
	if n := nativeTexture(b.st.depth); n != nil {
		format := b.st.depth.Desc.Format
		ds := &hal.RenderPassDepthStencilAttachment{View: n.View}
		if format.HasDepth() {
			ds.DepthLoadOp, ds.DepthStoreOp = gputypes.LoadOpLoad, gputypes.StoreOpStore
			if flags&command.ClearDepth != 0 {
				ds.DepthLoadOp = gputypes.LoadOpClear
				ds.DepthClearValue = clear.Depth
			}
		}
		if format.HasStencil() {
			ds.StencilLoadOp, ds.StencilStoreOp = gputypes.LoadOpLoad, gputypes.StoreOpStore
			if flags&command.ClearStencil != 0 {
				ds.StencilLoadOp = gputypes.LoadOpClear
				ds.StencilClearValue = clear.Stencil
			}
		}
		desc.DepthStencilAttachment = ds
	}
	if len(desc.ColorAttachments) == 0 && desc.DepthStencilAttachment == nil {
		b.log.Warn("render pass without targets skipped")
		return false
	}

	p := enc.BeginRenderPass(desc)
	b.pass = p
	b.st.bound = nil

	vp := b.st.viewport
	p.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
	if sc := b.st.scissor; sc != nil {
		p.SetScissorRect(sc.X, sc.Y, sc.Width, sc.Height)
	}
	if b.st.blend != nil {
		p.SetBlendConstant(&b.st.constant)
	}
	p.SetStencilReference(b.st.stencilRef)
	for slot, vb := range b.st.vertices {
		if buf := nativeBuffer(vb.buf); buf != nil {
			p.SetVertexBuffer(slot, buf, vb.offset)
		}
	}
	if ib := b.st.index; ib != nil {
		if buf := nativeBuffer(ib.buf); buf != nil {
			p.SetIndexBuffer(buf, ib.format, ib.offset)
		}
	}
	b.count(func(s *Stats) { s.RenderPasses++ })
	return true
}

func (b *Backend) endPass() {
	if b.pass != nil {
		b.pass.End()
		b.pass = nil
	}
}

// drawPass returns the open render pass with a pipeline for topology set.
func (b *Backend) drawPass(topology gputypes.PrimitiveTopology) hal.RenderPassEncoder {
	if b.pass == nil && !b.beginPass(nil) {
		return nil
	}
	p := b.pipelineFor(topology)
	if p == nil {
		return nil
	}
	if p != b.st.bound {
		b.pass.SetPipeline(p)
		b.st.bound = p
	}
	return b.pass
}

func (b *Backend) pipelineFor(topology gputypes.PrimitiveTopology) hal.RenderPipeline {
	if ps := b.st.pipeline; ps != nil {
		if p, ok := ps.Native.(hal.RenderPipeline); ok {
			return p
		}
		b.log.Warn("foreign pipeline ignored", "label", ps.Desc.Label)
	}
	if b.shaders == nil {
		return nil
	}

	key := pipelineKey{
		vertexBuffer: b.st.vertices[0].buf != nil,
		topology:     topology,
		format:       b.cfg.Format,
	}
	if t := b.st.colors[0]; t != nil {
		key.format = t.Desc.Format
	}
	if b.st.blend != nil {
		key.blend, key.blended = *b.st.blend, true
	}
	p, err := b.shaders.renderPipeline(key)
	if err != nil {
		b.log.Error("built-in pipeline", "err", err)
		return nil
	}
	return p
}

// BeginScene starts a command encoder and resets the pipeline state.
func (b *Backend) BeginScene() {
	if b.enc != nil {
		b.log.Warn("scene began before the previous one ended")
		b.submit()
	}
	if len(b.st.debug) > 0 {
		b.log.Warn("scene began with open debug events", "open", b.st.debug)
	}
	b.st.reset(b.back)
	if b.encoder() != nil {
		b.count(func(s *Stats) { s.Scenes++ })
	}
}

// EndScene submits the scene's commands.
func (b *Backend) EndScene() { b.submit() }

// Present submits any outstanding commands and waits for the frame to
// complete. The back buffer is offscreen; presenting to a surface is left
// to the caller.
func (b *Backend) Present() {
	if b.device == nil {
		b.log.Warn("present before init")
		return
	}
	b.submit()
	b.retire()
	b.count(func(s *Stats) { s.Frames++ })
}

func (b *Backend) SetViewport(c *command.SetViewport) {
	b.st.viewport = *c
	if b.pass != nil {
		b.pass.SetViewport(c.X, c.Y, c.Width, c.Height, c.MinDepth, c.MaxDepth)
	}
}

func (b *Backend) SetScissor(c *command.SetScissor) {
	sc := *c
	b.st.scissor = &sc
	if b.pass != nil {
		b.pass.SetScissorRect(c.X, c.Y, c.Width, c.Height)
	}
}

// SetRenderTarget ends the open pass and binds the targets for the next.
func (b *Backend) SetRenderTarget(c *command.SetRenderTarget) {
	b.endPass()
	first := c.Colors[0]
	if first == nil {
		first = b.back
	}
	b.st.bindColor(first)
	copy(b.st.colors[1:], c.Colors[1:])
	b.st.depth = c.Depth
}

// ClearScreen opens a new render pass that clears the selected aspects.
func (b *Backend) ClearScreen(c *command.ClearScreen) {
	b.endPass()
	b.beginPass(c)
}

func (b *Backend) SetPipelineState(c *command.SetPipelineState) { b.st.pipeline = c.Pipeline }

func (b *Backend) SetBlendState(c *command.SetBlendState) {
	blend := c.Blend
	b.st.blend = &blend
	b.st.constant = c.Constant
	if b.pass != nil {
		b.pass.SetBlendConstant(&b.st.constant)
	}
}

func (b *Backend) SetStencilReference(c *command.SetStencilReference) {
	b.st.stencilRef = c.Reference
	if b.pass != nil {
		b.pass.SetStencilReference(c.Reference)
	}
}

func (b *Backend) BindVertexBuffer(c *command.BindVertexBuffer) {
	b.st.vertices[c.Slot] = vertexBinding{buf: c.Buffer, offset: c.Offset}
	if buf := nativeBuffer(c.Buffer); buf != nil && b.pass != nil {
		b.pass.SetVertexBuffer(c.Slot, buf, c.Offset)
	}
}

func (b *Backend) BindIndexBuffer(c *command.BindIndexBuffer) {
	b.st.index = &indexBinding{buf: c.Buffer, format: c.Format, offset: c.Offset}
	if buf := nativeBuffer(c.Buffer); buf != nil && b.pass != nil {
		b.pass.SetIndexBuffer(buf, c.Format, c.Offset)
	}
}

func (b *Backend) BindTexture(c *command.BindTexture)               { b.st.textures[c.Slot] = c.Texture }
func (b *Backend) BindSampler(c *command.BindSampler)               { b.st.samplers[c.Slot] = c.Sampler }
func (b *Backend) BindConstantBuffer(c *command.BindConstantBuffer) { b.st.constants[c.Slot] = c.Buffer }
func (b *Backend) SetTransform(c *command.SetTransform)             { b.st.transforms[c.Slot] = c.Matrix }

// UpdateBuffer writes through the queue; the write lands before the next
// submission executes.
func (b *Backend) UpdateBuffer(c *command.UpdateBuffer) {
	buf := nativeBuffer(c.Buffer)
	if buf == nil || b.queue == nil {
		b.log.Warn("update of a foreign buffer ignored")
		return
	}
	if err := b.queue.WriteBuffer(buf, c.Offset, c.Data); err != nil {
		b.log.Error("write buffer", "label", c.Buffer.Desc.Label, "err", err)
		return
	}
	b.count(func(s *Stats) { s.Writes++ })
}

func (b *Backend) DrawPrimitive(c *command.DrawPrimitive) {
	if c.InstanceCount == 0 || c.VertexCount == 0 {
		return
	}
	p := b.drawPass(c.Topology)
	if p == nil {
		return
	}
	p.Draw(c.VertexCount, c.InstanceCount, c.StartVertex, c.StartInstance)
	b.count(func(s *Stats) { s.Draws++ })
}

func (b *Backend) DrawIndexedPrimitive(c *command.DrawIndexedPrimitive) {
	if c.InstanceCount == 0 || c.IndexCount == 0 {
		return
	}
	if b.st.index == nil {
		b.log.Warn("indexed draw without an index buffer")
		return
	}
	p := b.drawPass(c.Topology)
	if p == nil {
		return
	}
	p.DrawIndexed(c.IndexCount, c.InstanceCount, c.StartIndex, c.BaseVertex, c.StartInstance)
	b.count(func(s *Stats) { s.Draws++ })
}

// Dispatch runs the built-in kernel in its own compute pass.
func (b *Backend) Dispatch(c *command.Dispatch) {
	b.endPass()
	enc := b.encoder()
	if enc == nil || b.shaders == nil {
		return
	}
	cp := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: "drawq dispatch"})
	cp.SetPipeline(b.shaders.kernel)
	cp.Dispatch(c.X, c.Y, c.Z)
	cp.End()
	b.count(func(s *Stats) { s.Dispatches++ })
}

func (b *Backend) ResourceBarrier(c *command.ResourceBarrier) {
	n := nativeTexture(c.Texture)
	if n == nil {
		b.log.Warn("barrier on a foreign texture ignored")
		return
	}
	b.endPass()
	enc := b.encoder()
	if enc == nil {
		return
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: n.Texture,
		Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll},
		Usage: hal.TextureUsageTransition{
			OldUsage: c.Before.Usage(),
			NewUsage: c.After.Usage(),
		},
	}})
	b.count(func(s *Stats) { s.Barriers++ })
}

// CopyTexture copies the overlapping region; HAL copies cannot scale.
func (b *Backend) CopyTexture(c *command.CopyTexture) {
	src, dst := nativeTexture(c.Src), nativeTexture(c.Dst)
	if src == nil || dst == nil {
		b.log.Warn("copy of a foreign texture ignored")
		return
	}
	w := min(c.Src.Desc.Size.Width, c.Dst.Desc.Size.Width)
	h := min(c.Src.Desc.Size.Height, c.Dst.Desc.Size.Height)
	if c.Src.Desc.Size != c.Dst.Desc.Size {
		b.log.Warn("scaled copy not supported, copying the overlap",
			"src", c.Src.Desc.Label, "dst", c.Dst.Desc.Label, "width", w, "height", h)
	}
	b.endPass()
	enc := b.encoder()
	if enc == nil {
		return
	}
	enc.CopyTextureToTexture(src.Texture, dst.Texture, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: src.Texture, Aspect: gputypes.TextureAspectAll},
		DstBase: hal.ImageCopyTexture{Texture: dst.Texture, Aspect: gputypes.TextureAspectAll},
		Size:    hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	b.count(func(s *Stats) { s.Copies++ })
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
