// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package command

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq/resource"
)

const (
	// SlotSize is the size of one ring slot in bytes.
	SlotSize = 64

	headerSize = 8
	inlineSize = SlotSize - headerSize

	// maxRefsPerCommand bounds the resources one record may retain.
	maxRefsPerCommand = MaxColorTargets + 1

	// noRef is the table index stored for a nil resource.
	noRef = ^uint32(0)

	matrixSize = 16 * 4
)

var le = binary.LittleEndian

// header is the decoded form of a record's first eight bytes.
type header struct {
	typ      Type
	refCount uint16
	next     uint32
}

func putHeader(slot []byte, h header) {
	le.PutUint16(slot[0:2], uint16(h.typ))
	le.PutUint16(slot[2:4], h.refCount)
	le.PutUint32(slot[4:8], h.next)
}

func readHeader(slot []byte) header {
	return header{
		typ:      Type(le.Uint16(slot[0:2])),
		refCount: le.Uint16(slot[2:4]),
		next:     le.Uint32(slot[4:8]),
	}
}

// slotsFor returns the number of slots a record with a spill of n bytes
// occupies, header included.
func slotsFor(spill int) int {
	return 1 + (spill+SlotSize-1)/SlotSize
}

// spillSize returns the variable payload size of c in bytes.
func spillSize(c Command) int {
	switch c := c.(type) {
	case UpdateBuffer:
		return len(c.Data)
	case SetTransform:
		return matrixSize
	case PushDebugEvent:
		return len(c.Name)
	case InsertDebugMarker:
		return len(c.Name)
	default:
		return 0
	}
}

// writer serializes one command into its reserved slots.
type writer struct {
	inline []byte
	off    int
	spill  []byte
	soff   int

	retain func(resource.Counted) uint32
}

func (w *writer) u32(v uint32) {
	le.PutUint32(w.inline[w.off:], v)
	w.off += 4
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

func (w *writer) u64(v uint64) {
	le.PutUint64(w.inline[w.off:], v)
	w.off += 8
}

func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *writer) f64(v float64) { w.u64(math.Float64bits(v)) }

func (w *writer) color(c gputypes.Color) {
	w.f64(c.R)
	w.f64(c.G)
	w.f64(c.B)
	w.f64(c.A)
}

func (w *writer) spillBytes(b []byte) {
	w.soff += copy(w.spill[w.soff:], b)
}

func (w *writer) spillString(s string) {
	w.soff += copy(w.spill[w.soff:], s)
}

func (w *writer) spillMatrix(m mgl32.Mat4) {
	for _, v := range m {
		le.PutUint32(w.spill[w.soff:], math.Float32bits(v))
		w.soff += 4
	}
}

func (w *writer) ref(c resource.Counted) {
	w.u32(w.retain(c))
}

func (w *writer) texture(t *resource.Texture) {
	if t == nil {
		w.u32(noRef)
		return
	}
	w.ref(t)
}

func (w *writer) buffer(b *resource.Buffer) {
	if b == nil {
		w.u32(noRef)
		return
	}
	w.ref(b)
}

func (w *writer) sampler(s *resource.Sampler) {
	if s == nil {
		w.u32(noRef)
		return
	}
	w.ref(s)
}

func (w *writer) pipeline(p *resource.PipelineState) {
	if p == nil {
		w.u32(noRef)
		return
	}
	w.ref(p)
}

// encode writes the payload of c. Spilled commands expect the spill
// descriptor to be written already.
func encode(w *writer, c Command) error {
	switch c := c.(type) {
	case BeginScene, EndScene, Present, PopDebugEvent:
	case SetViewport:
		w.f32(c.X)
		w.f32(c.Y)
		w.f32(c.Width)
		w.f32(c.Height)
		w.f32(c.MinDepth)
		w.f32(c.MaxDepth)
	case SetScissor:
		w.u32(c.X)
		w.u32(c.Y)
		w.u32(c.Width)
		w.u32(c.Height)
	case SetRenderTarget:
		for _, t := range c.Colors {
			w.texture(t)
		}
		w.texture(c.Depth)
	case ClearScreen:
		w.u32(uint32(c.Flags))
		w.color(c.Color)
		w.f32(c.Depth)
		w.u32(c.Stencil)
	case SetPipelineState:
		w.pipeline(c.Pipeline)
	case SetBlendState:
		w.u32(uint32(c.Blend.Color.SrcFactor))
		w.u32(uint32(c.Blend.Color.DstFactor))
		w.u32(uint32(c.Blend.Color.Operation))
		w.u32(uint32(c.Blend.Alpha.SrcFactor))
		w.u32(uint32(c.Blend.Alpha.DstFactor))
		w.u32(uint32(c.Blend.Alpha.Operation))
		w.color(c.Constant)
	case SetStencilReference:
		w.u32(c.Reference)
	case BindVertexBuffer:
		w.u32(c.Slot)
		w.buffer(c.Buffer)
		w.u64(c.Offset)
		w.u32(c.Stride)
	case BindIndexBuffer:
		w.buffer(c.Buffer)
		w.u32(uint32(c.Format))
		w.u64(c.Offset)
	case BindTexture:
		w.u32(c.Slot)
		w.texture(c.Texture)
	case BindSampler:
		w.u32(c.Slot)
		w.sampler(c.Sampler)
	case BindConstantBuffer:
		w.u32(c.Slot)
		w.buffer(c.Buffer)
		w.u64(c.Offset)
		w.u64(c.Size)
	case UpdateBuffer:
		w.buffer(c.Buffer)
		w.u64(c.Offset)
		w.spillBytes(c.Data)
	case SetTransform:
		w.u32(c.Slot)
		w.spillMatrix(c.Matrix)
	case DrawPrimitive:
		w.u32(uint32(c.Topology))
		w.u32(c.StartVertex)
		w.u32(c.VertexCount)
		w.u32(c.InstanceCount)
		w.u32(c.StartInstance)
	case DrawIndexedPrimitive:
		w.u32(uint32(c.Topology))
		w.i32(c.BaseVertex)
		w.u32(c.StartIndex)
		w.u32(c.IndexCount)
		w.u32(c.InstanceCount)
		w.u32(c.StartInstance)
	case Dispatch:
		w.u32(c.X)
		w.u32(c.Y)
		w.u32(c.Z)
	case ResourceBarrier:
		w.texture(c.Texture)
		w.u32(uint32(c.Before))
		w.u32(uint32(c.After))
	case CopyTexture:
		w.texture(c.Src)
		w.texture(c.Dst)
	case PushDebugEvent:
		w.spillString(c.Name)
	case InsertDebugMarker:
		w.spillString(c.Name)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, c)
	}
	return nil
}

// reader deserializes one record.
type reader struct {
	inline []byte
	off    int
	spill  []byte

	lookup func(uint32) resource.Counted
}

func (r *reader) u32() uint32 {
	v := le.Uint32(r.inline[r.off:])
	r.off += 4
	return v
}

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) u64() uint64 {
	v := le.Uint64(r.inline[r.off:])
	r.off += 8
	return v
}

func (r *reader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *reader) f64() float64 { return math.Float64frombits(r.u64()) }

func (r *reader) color() gputypes.Color {
	return gputypes.Color{R: r.f64(), G: r.f64(), B: r.f64(), A: r.f64()}
}

func (r *reader) matrix() mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(le.Uint32(r.spill[i*4:]))
	}
	return m
}

func (r *reader) ref() resource.Counted {
	idx := r.u32()
	if idx == noRef {
		return nil
	}
	return r.lookup(idx)
}

func (r *reader) texture() *resource.Texture {
	t, _ := r.ref().(*resource.Texture)
	return t
}

func (r *reader) buffer() *resource.Buffer {
	b, _ := r.ref().(*resource.Buffer)
	return b
}

func (r *reader) sampler() *resource.Sampler {
	s, _ := r.ref().(*resource.Sampler)
	return s
}

func (r *reader) pipeline() *resource.PipelineState {
	p, _ := r.ref().(*resource.PipelineState)
	return p
}

// decode reads the payload of a record of type t.
func decode(r *reader, t Type) (Command, error) {
	switch t {
	case TypeBeginScene:
		return BeginScene{}, nil
	case TypeEndScene:
		return EndScene{}, nil
	case TypePresent:
		return Present{}, nil
	case TypePopDebugEvent:
		return PopDebugEvent{}, nil
	case TypeSetViewport:
		return SetViewport{
			X: r.f32(), Y: r.f32(), Width: r.f32(), Height: r.f32(),
			MinDepth: r.f32(), MaxDepth: r.f32(),
		}, nil
	case TypeSetScissor:
		return SetScissor{X: r.u32(), Y: r.u32(), Width: r.u32(), Height: r.u32()}, nil
	case TypeSetRenderTarget:
		var c SetRenderTarget
		for i := range c.Colors {
			c.Colors[i] = r.texture()
		}
		c.Depth = r.texture()
		return c, nil
	case TypeClearScreen:
		return ClearScreen{
			Flags:   ClearFlags(r.u32()),
			Color:   r.color(),
			Depth:   r.f32(),
			Stencil: r.u32(),
		}, nil
	case TypeSetPipelineState:
		return SetPipelineState{Pipeline: r.pipeline()}, nil
	case TypeSetBlendState:
		var c SetBlendState
		c.Blend.Color.SrcFactor = gputypes.BlendFactor(r.u32())
		c.Blend.Color.DstFactor = gputypes.BlendFactor(r.u32())
		c.Blend.Color.Operation = gputypes.BlendOperation(r.u32())
		c.Blend.Alpha.SrcFactor = gputypes.BlendFactor(r.u32())
		c.Blend.Alpha.DstFactor = gputypes.BlendFactor(r.u32())
		c.Blend.Alpha.Operation = gputypes.BlendOperation(r.u32())
		c.Constant = r.color()
		return c, nil
	case TypeSetStencilReference:
		return SetStencilReference{Reference: r.u32()}, nil
	case TypeBindVertexBuffer:
		return BindVertexBuffer{Slot: r.u32(), Buffer: r.buffer(), Offset: r.u64(), Stride: r.u32()}, nil
	case TypeBindIndexBuffer:
		return BindIndexBuffer{Buffer: r.buffer(), Format: gputypes.IndexFormat(r.u32()), Offset: r.u64()}, nil
	case TypeBindTexture:
		return BindTexture{Slot: r.u32(), Texture: r.texture()}, nil
	case TypeBindSampler:
		return BindSampler{Slot: r.u32(), Sampler: r.sampler()}, nil
	case TypeBindConstantBuffer:
		return BindConstantBuffer{Slot: r.u32(), Buffer: r.buffer(), Offset: r.u64(), Size: r.u64()}, nil
	case TypeUpdateBuffer:
		return UpdateBuffer{Buffer: r.buffer(), Offset: r.u64(), Data: r.spill}, nil
	case TypeSetTransform:
		return SetTransform{Slot: r.u32(), Matrix: r.matrix()}, nil
	case TypeDrawPrimitive:
		return DrawPrimitive{
			Topology:      gputypes.PrimitiveTopology(r.u32()),
			StartVertex:   r.u32(),
			VertexCount:   r.u32(),
			InstanceCount: r.u32(),
			StartInstance: r.u32(),
		}, nil
	case TypeDrawIndexedPrimitive:
		return DrawIndexedPrimitive{
			Topology:      gputypes.PrimitiveTopology(r.u32()),
			BaseVertex:    r.i32(),
			StartIndex:    r.u32(),
			IndexCount:    r.u32(),
			InstanceCount: r.u32(),
			StartInstance: r.u32(),
		}, nil
	case TypeDispatch:
		return Dispatch{X: r.u32(), Y: r.u32(), Z: r.u32()}, nil
	case TypeResourceBarrier:
		return ResourceBarrier{
			Texture: r.texture(),
			Before:  resource.State(r.u32()),
			After:   resource.State(r.u32()),
		}, nil
	case TypeCopyTexture:
		return CopyTexture{Src: r.texture(), Dst: r.texture()}, nil
	case TypePushDebugEvent:
		return PushDebugEvent{Name: string(r.spill)}, nil
	case TypeInsertDebugMarker:
		return InsertDebugMarker{Name: string(r.spill)}, nil
	default:
		return nil, fmt.Errorf("%w: type %d", ErrCorrupt, t)
	}
}
