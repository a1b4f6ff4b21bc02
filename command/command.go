// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package command implements the deferred render-command stream.
//
// A producer goroutine describes GPU work through an [Encoder]. Each call is
// encoded as a record in a fixed-capacity [Buffer] of 64-byte slots and
// executed later, in order, by a consumer goroutine that calls
// [Buffer.Decode] with an [Executor].
//
// # Records
//
// A record starts with a header slot:
//
//	[0:2]  type        uint16, see Type
//	[2:4]  refCount    uint16, resources retained by the record
//	[4:8]  nextOffset  uint32, slots from this header to the next one
//	[8:64] inline payload
//
// Payloads that do not fit inline (matrices, strings, raw buffer data) spill
// into the slots directly following the header; the inline area then starts
// with the spill offset (in slots) and length (in bytes). When a record does
// not fit before the physical end of the ring, the remaining slots are
// filled with a TypeNop record and the record starts at slot zero.
//
// # Resources
//
// Records never hold pointers. A bound resource is appended to a
// retained-resource table and the payload stores its table index. Binding
// takes a reference synchronously on the producer; the reference is dropped
// right after the record executes on the consumer, so a resource outlives
// every command that refers to it.
//
// All multi-byte values are little-endian.
package command

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq/resource"
)

// MaxColorTargets is the number of color attachments SetRenderTarget binds.
const MaxColorTargets = 4

// Command is the interface implemented by all decoded command types.
type Command interface {
	// Type returns the Type for this command.
	Type() Type
}

// ClearFlags selects the aspects ClearScreen clears.
type ClearFlags uint32

const (
	ClearColor ClearFlags = 1 << iota
	ClearDepth
	ClearStencil

	ClearAll = ClearColor | ClearDepth | ClearStencil
)

// --------------------------------------------------------------------------
// Scene commands
// --------------------------------------------------------------------------

// BeginScene opens a frame.
type BeginScene struct{}

// Type implements Command.
func (BeginScene) Type() Type { return TypeBeginScene }

// EndScene closes a frame.
type EndScene struct{}

// Type implements Command.
func (EndScene) Type() Type { return TypeEndScene }

// Present presents the current back buffer.
type Present struct{}

// Type implements Command.
func (Present) Type() Type { return TypePresent }

// --------------------------------------------------------------------------
// State commands
// --------------------------------------------------------------------------

// SetViewport sets the viewport transform in pixels.
type SetViewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Type implements Command.
func (SetViewport) Type() Type { return TypeSetViewport }

// SetScissor sets the scissor rectangle in pixels.
type SetScissor struct {
	X, Y, Width, Height uint32
}

// Type implements Command.
func (SetScissor) Type() Type { return TypeSetScissor }

// SetRenderTarget binds color attachments and an optional depth-stencil.
// A nil first color target selects the backend's back buffer.
type SetRenderTarget struct {
	Colors [MaxColorTargets]*resource.Texture
	Depth  *resource.Texture
}

// Type implements Command.
func (SetRenderTarget) Type() Type { return TypeSetRenderTarget }

// ClearScreen clears the bound targets inside the viewport and scissor.
type ClearScreen struct {
	Flags   ClearFlags
	Color   gputypes.Color
	Depth   float32
	Stencil uint32
}

// Type implements Command.
func (ClearScreen) Type() Type { return TypeClearScreen }

// SetPipelineState binds a render pipeline. A nil pipeline selects the
// backend's built-in pipeline.
type SetPipelineState struct {
	Pipeline *resource.PipelineState
}

// Type implements Command.
func (SetPipelineState) Type() Type { return TypeSetPipelineState }

// SetBlendState overrides the blend state of the bound pipeline.
type SetBlendState struct {
	Blend    gputypes.BlendState
	Constant gputypes.Color
}

// Type implements Command.
func (SetBlendState) Type() Type { return TypeSetBlendState }

// SetStencilReference sets the stencil reference value.
type SetStencilReference struct {
	Reference uint32
}

// Type implements Command.
func (SetStencilReference) Type() Type { return TypeSetStencilReference }

// --------------------------------------------------------------------------
// Binding commands
// --------------------------------------------------------------------------

// BindVertexBuffer binds a vertex buffer to a slot.
type BindVertexBuffer struct {
	Slot   uint32
	Buffer *resource.Buffer
	Offset uint64
	Stride uint32
}

// Type implements Command.
func (BindVertexBuffer) Type() Type { return TypeBindVertexBuffer }

// BindIndexBuffer binds the index buffer.
type BindIndexBuffer struct {
	Buffer *resource.Buffer
	Format gputypes.IndexFormat
	Offset uint64
}

// Type implements Command.
func (BindIndexBuffer) Type() Type { return TypeBindIndexBuffer }

// BindTexture binds a texture to a shader slot.
type BindTexture struct {
	Slot    uint32
	Texture *resource.Texture
}

// Type implements Command.
func (BindTexture) Type() Type { return TypeBindTexture }

// BindSampler binds a sampler to a shader slot.
type BindSampler struct {
	Slot    uint32
	Sampler *resource.Sampler
}

// Type implements Command.
func (BindSampler) Type() Type { return TypeBindSampler }

// BindConstantBuffer binds a range of a buffer as shader constants.
// Size zero binds the whole buffer from Offset.
type BindConstantBuffer struct {
	Slot   uint32
	Buffer *resource.Buffer
	Offset uint64
	Size   uint64
}

// Type implements Command.
func (BindConstantBuffer) Type() Type { return TypeBindConstantBuffer }

// --------------------------------------------------------------------------
// Data commands
// --------------------------------------------------------------------------

// UpdateBuffer writes Data into Buffer at Offset.
//
// Data aliases the command ring and is only valid for the duration of the
// Executor call.
type UpdateBuffer struct {
	Buffer *resource.Buffer
	Offset uint64
	Data   []byte
}

// Type implements Command.
func (UpdateBuffer) Type() Type { return TypeUpdateBuffer }

// SetTransform sets a transform matrix slot (0 is the world-view-projection).
type SetTransform struct {
	Slot   uint32
	Matrix mgl32.Mat4
}

// Type implements Command.
func (SetTransform) Type() Type { return TypeSetTransform }

// --------------------------------------------------------------------------
// Work commands
// --------------------------------------------------------------------------

// DrawPrimitive draws non-indexed primitives.
type DrawPrimitive struct {
	Topology      gputypes.PrimitiveTopology
	StartVertex   uint32
	VertexCount   uint32
	InstanceCount uint32
	StartInstance uint32
}

// Type implements Command.
func (DrawPrimitive) Type() Type { return TypeDrawPrimitive }

// DrawIndexedPrimitive draws indexed primitives.
type DrawIndexedPrimitive struct {
	Topology      gputypes.PrimitiveTopology
	BaseVertex    int32
	StartIndex    uint32
	IndexCount    uint32
	InstanceCount uint32
	StartInstance uint32
}

// Type implements Command.
func (DrawIndexedPrimitive) Type() Type { return TypeDrawIndexedPrimitive }

// Dispatch dispatches compute workgroups.
type Dispatch struct {
	X, Y, Z uint32
}

// Type implements Command.
func (Dispatch) Type() Type { return TypeDispatch }

// --------------------------------------------------------------------------
// Synchronization and copy commands
// --------------------------------------------------------------------------

// ResourceBarrier transitions a texture between usage states.
type ResourceBarrier struct {
	Texture *resource.Texture
	Before  resource.State
	After   resource.State
}

// Type implements Command.
func (ResourceBarrier) Type() Type { return TypeResourceBarrier }

// CopyTexture copies Src into Dst, scaling when the sizes differ.
type CopyTexture struct {
	Src, Dst *resource.Texture
}

// Type implements Command.
func (CopyTexture) Type() Type { return TypeCopyTexture }

// --------------------------------------------------------------------------
// Debug commands
// --------------------------------------------------------------------------

// PushDebugEvent opens a named debug group.
type PushDebugEvent struct {
	Name string
}

// Type implements Command.
func (PushDebugEvent) Type() Type { return TypePushDebugEvent }

// PopDebugEvent closes the innermost debug group.
type PopDebugEvent struct{}

// Type implements Command.
func (PopDebugEvent) Type() Type { return TypePopDebugEvent }

// InsertDebugMarker inserts a single named marker.
type InsertDebugMarker struct {
	Name string
}

// Type implements Command.
func (InsertDebugMarker) Type() Type { return TypeInsertDebugMarker }
