// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package command

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq/internal/logx"
	"github.com/gogpu/drawq/resource"
)

// OverrunPolicy selects what the encoder does when a command does not fit.
type OverrunPolicy uint8

const (
	// OverrunFlush flushes the ring through the encoder's Flusher, waits for
	// the consumer to drain it and retries. Without a Flusher, or while the
	// Flusher reports the consumer held, it behaves like OverrunError.
	OverrunFlush OverrunPolicy = iota

	// OverrunError rejects the command with ErrRingFull.
	OverrunError

	// OverrunPanic panics with ErrRingFull.
	OverrunPanic
)

var overrunNames = [...]string{
	OverrunFlush: "Flush",
	OverrunError: "Error",
	OverrunPanic: "Panic",
}

// String returns the policy name.
func (p OverrunPolicy) String() string {
	if int(p) < len(overrunNames) {
		return overrunNames[p]
	}
	return "Unknown"
}

// Flusher hands everything encoded so far to the consumer. A nil return
// promises that a decode pass covering the current boundary will run.
type Flusher interface {
	Flush() error
}

// HoldReporter is implemented by a Flusher whose consumer can be held off
// by the producer side. While ConsumerHeld reports true, OverrunFlush
// fails with ErrRingFull instead of waiting for space the consumer cannot
// free.
type HoldReporter interface {
	ConsumerHeld() bool
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithOverrunPolicy sets the overrun policy. The default is OverrunFlush.
func WithOverrunPolicy(p OverrunPolicy) EncoderOption {
	return func(e *Encoder) {
		e.policy = p
	}
}

// WithFlusher sets the Flusher used by OverrunFlush.
func WithFlusher(f Flusher) EncoderOption {
	return func(e *Encoder) {
		e.flusher = f
	}
}

// WithLogger sets the logger for overrun diagnostics.
func WithLogger(l *slog.Logger) EncoderOption {
	return func(e *Encoder) {
		if l != nil {
			e.log = l
		}
	}
}

// Encoder is the producer-facing facade over a Buffer. Every method takes
// the encoder mutex, encodes one command and returns.
//
// Errors are sticky: after the first failure further commands are dropped
// without retaining resources, and the error is reported until the
// Buffer's TakeErr clears it (the draw coordinator does so on Flush).
//
// A nil Encoder, or one without a Buffer, accepts every call and does
// nothing.
type Encoder struct {
	mu      sync.Mutex
	buf     *Buffer
	policy  OverrunPolicy
	flusher Flusher
	log     *slog.Logger
}

// NewEncoder creates an encoder writing into buf.
func NewEncoder(buf *Buffer, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		buf: buf,
		log: logx.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Buffer returns the ring the encoder writes into.
func (e *Encoder) Buffer() *Buffer {
	if e == nil {
		return nil
	}
	return e.buf
}

// Err returns the sticky error, if any.
func (e *Encoder) Err() error {
	if e == nil || e.buf == nil {
		return nil
	}
	return e.buf.Err()
}

// AddCommand encodes an arbitrary command value.
func (e *Encoder) AddCommand(c Command) error {
	if e == nil || e.buf == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.buf.Err(); err != nil {
		return err
	}

	flushed := false
	for {
		err := e.buf.AddCommand(c)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRingFull) {
			switch {
			case e.policy == OverrunPanic:
				panic(err)
			case e.policy == OverrunFlush && e.flusher != nil && !flushed && e.consumerHeld():
				e.log.Warn("command: ring full while the consumer is held",
					"command", c.Type().String(),
					"pending", e.buf.Pending())
			case e.policy == OverrunFlush && e.flusher != nil && !flushed:
				e.log.Warn("command: ring full, flushing",
					"command", c.Type().String(),
					"pending", e.buf.Pending(),
					"retained", e.buf.Retained())
				boundary := e.buf.Boundary()
				if ferr := e.flusher.Flush(); ferr != nil {
					err = errors.Join(err, ferr)
					break
				}
				e.buf.WaitConsumed(boundary)
				flushed = true
				continue
			}
		}
		e.buf.setErr(err)
		return err
	}
}

func (e *Encoder) consumerHeld() bool {
	h, ok := e.flusher.(HoldReporter)
	return ok && h.ConsumerHeld()
}

// BeginScene opens a frame.
func (e *Encoder) BeginScene() error { return e.AddCommand(BeginScene{}) }

// EndScene closes a frame.
func (e *Encoder) EndScene() error { return e.AddCommand(EndScene{}) }

// Present presents the back buffer.
func (e *Encoder) Present() error { return e.AddCommand(Present{}) }

// SetViewport sets the viewport with a [0, 1] depth range.
func (e *Encoder) SetViewport(x, y, width, height float32) error {
	return e.AddCommand(SetViewport{X: x, Y: y, Width: width, Height: height, MaxDepth: 1})
}

// SetViewportDepth sets the viewport with an explicit depth range.
func (e *Encoder) SetViewportDepth(x, y, width, height, minDepth, maxDepth float32) error {
	return e.AddCommand(SetViewport{
		X: x, Y: y, Width: width, Height: height,
		MinDepth: minDepth, MaxDepth: maxDepth,
	})
}

// SetScissor sets the scissor rectangle.
func (e *Encoder) SetScissor(x, y, width, height uint32) error {
	return e.AddCommand(SetScissor{X: x, Y: y, Width: width, Height: height})
}

// SetRenderTarget binds up to MaxColorTargets color targets and an optional
// depth-stencil. No color targets selects the back buffer.
func (e *Encoder) SetRenderTarget(colors []*resource.Texture, depth *resource.Texture) error {
	if len(colors) > MaxColorTargets {
		return e.fail(ErrCommandTooLarge)
	}
	c := SetRenderTarget{Depth: depth}
	copy(c.Colors[:], colors)
	return e.AddCommand(c)
}

// ClearScreen clears the selected aspects of the bound targets.
func (e *Encoder) ClearScreen(flags ClearFlags, color gputypes.Color, depth float32, stencil uint32) error {
	return e.AddCommand(ClearScreen{Flags: flags, Color: color, Depth: depth, Stencil: stencil})
}

// SetPipelineState binds a pipeline; nil selects the built-in pipeline.
func (e *Encoder) SetPipelineState(p *resource.PipelineState) error {
	return e.AddCommand(SetPipelineState{Pipeline: p})
}

// SetBlendState overrides blending for subsequent draws.
func (e *Encoder) SetBlendState(blend gputypes.BlendState, constant gputypes.Color) error {
	return e.AddCommand(SetBlendState{Blend: blend, Constant: constant})
}

// SetStencilReference sets the stencil reference value.
func (e *Encoder) SetStencilReference(ref uint32) error {
	return e.AddCommand(SetStencilReference{Reference: ref})
}

// BindVertexBuffer binds buf to a vertex slot.
func (e *Encoder) BindVertexBuffer(slot uint32, buf *resource.Buffer, offset uint64, stride uint32) error {
	return e.AddCommand(BindVertexBuffer{Slot: slot, Buffer: buf, Offset: offset, Stride: stride})
}

// BindIndexBuffer binds the index buffer.
func (e *Encoder) BindIndexBuffer(buf *resource.Buffer, format gputypes.IndexFormat, offset uint64) error {
	return e.AddCommand(BindIndexBuffer{Buffer: buf, Format: format, Offset: offset})
}

// BindTexture binds a texture to a shader slot.
func (e *Encoder) BindTexture(slot uint32, tex *resource.Texture) error {
	return e.AddCommand(BindTexture{Slot: slot, Texture: tex})
}

// BindSampler binds a sampler to a shader slot.
func (e *Encoder) BindSampler(slot uint32, s *resource.Sampler) error {
	return e.AddCommand(BindSampler{Slot: slot, Sampler: s})
}

// BindConstantBuffer binds a buffer range as shader constants.
func (e *Encoder) BindConstantBuffer(slot uint32, buf *resource.Buffer, offset, size uint64) error {
	return e.AddCommand(BindConstantBuffer{Slot: slot, Buffer: buf, Offset: offset, Size: size})
}

// UpdateBuffer copies data into the ring; the draw thread writes it into
// buf at offset. data may be reused as soon as UpdateBuffer returns.
func (e *Encoder) UpdateBuffer(buf *resource.Buffer, offset uint64, data []byte) error {
	return e.AddCommand(UpdateBuffer{Buffer: buf, Offset: offset, Data: data})
}

// SetTransform sets a transform matrix slot.
func (e *Encoder) SetTransform(slot uint32, m mgl32.Mat4) error {
	return e.AddCommand(SetTransform{Slot: slot, Matrix: m})
}

// DrawPrimitive draws vertexCount vertices starting at startVertex.
func (e *Encoder) DrawPrimitive(topology gputypes.PrimitiveTopology, startVertex, vertexCount uint32) error {
	return e.AddCommand(DrawPrimitive{
		Topology:      topology,
		StartVertex:   startVertex,
		VertexCount:   vertexCount,
		InstanceCount: 1,
	})
}

// DrawPrimitiveInstanced draws instanceCount instances.
func (e *Encoder) DrawPrimitiveInstanced(topology gputypes.PrimitiveTopology, startVertex, vertexCount, instanceCount, startInstance uint32) error {
	return e.AddCommand(DrawPrimitive{
		Topology:      topology,
		StartVertex:   startVertex,
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		StartInstance: startInstance,
	})
}

// DrawIndexedPrimitive draws indexCount indices starting at startIndex.
func (e *Encoder) DrawIndexedPrimitive(topology gputypes.PrimitiveTopology, baseVertex int32, startIndex, indexCount uint32) error {
	return e.AddCommand(DrawIndexedPrimitive{
		Topology:      topology,
		BaseVertex:    baseVertex,
		StartIndex:    startIndex,
		IndexCount:    indexCount,
		InstanceCount: 1,
	})
}

// DrawIndexedPrimitiveInstanced draws instanceCount indexed instances.
func (e *Encoder) DrawIndexedPrimitiveInstanced(topology gputypes.PrimitiveTopology, baseVertex int32, startIndex, indexCount, instanceCount, startInstance uint32) error {
	return e.AddCommand(DrawIndexedPrimitive{
		Topology:      topology,
		BaseVertex:    baseVertex,
		StartIndex:    startIndex,
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		StartInstance: startInstance,
	})
}

// Dispatch dispatches compute workgroups.
func (e *Encoder) Dispatch(x, y, z uint32) error {
	return e.AddCommand(Dispatch{X: x, Y: y, Z: z})
}

// ResourceBarrier transitions tex from one usage state to another.
func (e *Encoder) ResourceBarrier(tex *resource.Texture, before, after resource.State) error {
	return e.AddCommand(ResourceBarrier{Texture: tex, Before: before, After: after})
}

// CopyTexture copies src into dst.
func (e *Encoder) CopyTexture(src, dst *resource.Texture) error {
	return e.AddCommand(CopyTexture{Src: src, Dst: dst})
}

// PushDebugEvent opens a named debug group.
func (e *Encoder) PushDebugEvent(name string) error {
	return e.AddCommand(PushDebugEvent{Name: name})
}

// PopDebugEvent closes the innermost debug group.
func (e *Encoder) PopDebugEvent() error { return e.AddCommand(PopDebugEvent{}) }

// InsertDebugMarker inserts a named marker.
func (e *Encoder) InsertDebugMarker(name string) error {
	return e.AddCommand(InsertDebugMarker{Name: name})
}

func (e *Encoder) fail(err error) error {
	if e == nil || e.buf == nil {
		return nil
	}
	e.buf.setErr(err)
	return err
}
