// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package command

// Type identifies the kind of a command record.
// The value is stored in the first two bytes of a header slot.
type Type uint16

const (
	// TypeNop marks padding slots skipped at the end of the ring.
	TypeNop Type = iota

	// Scene commands
	TypeBeginScene
	TypeEndScene
	TypePresent

	// State commands
	TypeSetViewport
	TypeSetScissor
	TypeSetRenderTarget
	TypeClearScreen
	TypeSetPipelineState
	TypeSetBlendState
	TypeSetStencilReference

	// Binding commands
	TypeBindVertexBuffer
	TypeBindIndexBuffer
	TypeBindTexture
	TypeBindSampler
	TypeBindConstantBuffer

	// Data commands
	TypeUpdateBuffer
	TypeSetTransform

	// Work commands
	TypeDrawPrimitive
	TypeDrawIndexedPrimitive
	TypeDispatch

	// Synchronization and copy commands
	TypeResourceBarrier
	TypeCopyTexture

	// Debug commands
	TypePushDebugEvent
	TypePopDebugEvent
	TypeInsertDebugMarker

	typeCount
)

var typeNames = [...]string{
	TypeNop:                  "Nop",
	TypeBeginScene:           "BeginScene",
	TypeEndScene:             "EndScene",
	TypePresent:              "Present",
	TypeSetViewport:          "SetViewport",
	TypeSetScissor:           "SetScissor",
	TypeSetRenderTarget:      "SetRenderTarget",
	TypeClearScreen:          "ClearScreen",
	TypeSetPipelineState:     "SetPipelineState",
	TypeSetBlendState:        "SetBlendState",
	TypeSetStencilReference:  "SetStencilReference",
	TypeBindVertexBuffer:     "BindVertexBuffer",
	TypeBindIndexBuffer:      "BindIndexBuffer",
	TypeBindTexture:          "BindTexture",
	TypeBindSampler:          "BindSampler",
	TypeBindConstantBuffer:   "BindConstantBuffer",
	TypeUpdateBuffer:         "UpdateBuffer",
	TypeSetTransform:         "SetTransform",
	TypeDrawPrimitive:        "DrawPrimitive",
	TypeDrawIndexedPrimitive: "DrawIndexedPrimitive",
	TypeDispatch:             "Dispatch",
	TypeResourceBarrier:      "ResourceBarrier",
	TypeCopyTexture:          "CopyTexture",
	TypePushDebugEvent:       "PushDebugEvent",
	TypePopDebugEvent:        "PopDebugEvent",
	TypeInsertDebugMarker:    "InsertDebugMarker",
}

// String returns the string representation of a Type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Valid reports whether t is a known command type other than TypeNop.
func (t Type) Valid() bool {
	return t > TypeNop && t < typeCount
}
