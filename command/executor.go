// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package command

// Executor runs decoded commands against a native graphics backend.
// It has one method per command type and is only ever called from the
// consumer goroutine.
//
// Pointer arguments are valid only for the duration of the call.
type Executor interface {
	BeginScene()
	EndScene()
	Present()

	SetViewport(c *SetViewport)
	SetScissor(c *SetScissor)
	SetRenderTarget(c *SetRenderTarget)
	ClearScreen(c *ClearScreen)
	SetPipelineState(c *SetPipelineState)
	SetBlendState(c *SetBlendState)
	SetStencilReference(c *SetStencilReference)

	BindVertexBuffer(c *BindVertexBuffer)
	BindIndexBuffer(c *BindIndexBuffer)
	BindTexture(c *BindTexture)
	BindSampler(c *BindSampler)
	BindConstantBuffer(c *BindConstantBuffer)

	UpdateBuffer(c *UpdateBuffer)
	SetTransform(c *SetTransform)

	DrawPrimitive(c *DrawPrimitive)
	DrawIndexedPrimitive(c *DrawIndexedPrimitive)
	Dispatch(c *Dispatch)

	ResourceBarrier(c *ResourceBarrier)
	CopyTexture(c *CopyTexture)

	PushDebugEvent(c *PushDebugEvent)
	PopDebugEvent()
	InsertDebugMarker(c *InsertDebugMarker)
}

// Execute dispatches c to the matching Executor method.
func Execute(exec Executor, c Command) {
	switch c := c.(type) {
	case BeginScene:
		exec.BeginScene()
	case EndScene:
		exec.EndScene()
	case Present:
		exec.Present()
	case SetViewport:
		exec.SetViewport(&c)
	case SetScissor:
		exec.SetScissor(&c)
	case SetRenderTarget:
		exec.SetRenderTarget(&c)
	case ClearScreen:
		exec.ClearScreen(&c)
	case SetPipelineState:
		exec.SetPipelineState(&c)
	case SetBlendState:
		exec.SetBlendState(&c)
	case SetStencilReference:
		exec.SetStencilReference(&c)
	case BindVertexBuffer:
		exec.BindVertexBuffer(&c)
	case BindIndexBuffer:
		exec.BindIndexBuffer(&c)
	case BindTexture:
		exec.BindTexture(&c)
	case BindSampler:
		exec.BindSampler(&c)
	case BindConstantBuffer:
		exec.BindConstantBuffer(&c)
	case UpdateBuffer:
		exec.UpdateBuffer(&c)
	case SetTransform:
		exec.SetTransform(&c)
	case DrawPrimitive:
		exec.DrawPrimitive(&c)
	case DrawIndexedPrimitive:
		exec.DrawIndexedPrimitive(&c)
	case Dispatch:
		exec.Dispatch(&c)
	case ResourceBarrier:
		exec.ResourceBarrier(&c)
	case CopyTexture:
		exec.CopyTexture(&c)
	case PushDebugEvent:
		exec.PushDebugEvent(&c)
	case PopDebugEvent:
		exec.PopDebugEvent()
	case InsertDebugMarker:
		exec.InsertDebugMarker(&c)
	}
}

// NopExecutor implements Executor by ignoring every command.
// Embed it to implement only the methods a backend cares about.
type NopExecutor struct{}

func (NopExecutor) BeginScene()                                {}
func (NopExecutor) EndScene()                                  {}
func (NopExecutor) Present()                                   {}
func (NopExecutor) SetViewport(*SetViewport)                   {}
func (NopExecutor) SetScissor(*SetScissor)                     {}
func (NopExecutor) SetRenderTarget(*SetRenderTarget)           {}
func (NopExecutor) ClearScreen(*ClearScreen)                   {}
func (NopExecutor) SetPipelineState(*SetPipelineState)         {}
func (NopExecutor) SetBlendState(*SetBlendState)               {}
func (NopExecutor) SetStencilReference(*SetStencilReference)   {}
func (NopExecutor) BindVertexBuffer(*BindVertexBuffer)         {}
func (NopExecutor) BindIndexBuffer(*BindIndexBuffer)           {}
func (NopExecutor) BindTexture(*BindTexture)                   {}
func (NopExecutor) BindSampler(*BindSampler)                   {}
func (NopExecutor) BindConstantBuffer(*BindConstantBuffer)     {}
func (NopExecutor) UpdateBuffer(*UpdateBuffer)                 {}
func (NopExecutor) SetTransform(*SetTransform)                 {}
func (NopExecutor) DrawPrimitive(*DrawPrimitive)               {}
func (NopExecutor) DrawIndexedPrimitive(*DrawIndexedPrimitive) {}
func (NopExecutor) Dispatch(*Dispatch)                         {}
func (NopExecutor) ResourceBarrier(*ResourceBarrier)           {}
func (NopExecutor) CopyTexture(*CopyTexture)                   {}
func (NopExecutor) PushDebugEvent(*PushDebugEvent)             {}
func (NopExecutor) PopDebugEvent()                             {}
func (NopExecutor) InsertDebugMarker(*InsertDebugMarker)       {}

var _ Executor = NopExecutor{}
