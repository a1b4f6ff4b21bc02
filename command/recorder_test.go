// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package command

import "bytes"

// recorder is an Executor that keeps a copy of every command it executes.
type recorder struct {
	cmds []Command
}

func (r *recorder) add(c Command) { r.cmds = append(r.cmds, c) }

func (r *recorder) BeginScene()                                  { r.add(BeginScene{}) }
func (r *recorder) EndScene()                                    { r.add(EndScene{}) }
func (r *recorder) Present()                                     { r.add(Present{}) }
func (r *recorder) SetViewport(c *SetViewport)                   { r.add(*c) }
func (r *recorder) SetScissor(c *SetScissor)                     { r.add(*c) }
func (r *recorder) SetRenderTarget(c *SetRenderTarget)           { r.add(*c) }
func (r *recorder) ClearScreen(c *ClearScreen)                   { r.add(*c) }
func (r *recorder) SetPipelineState(c *SetPipelineState)         { r.add(*c) }
func (r *recorder) SetBlendState(c *SetBlendState)               { r.add(*c) }
func (r *recorder) SetStencilReference(c *SetStencilReference)   { r.add(*c) }
func (r *recorder) BindVertexBuffer(c *BindVertexBuffer)         { r.add(*c) }
func (r *recorder) BindIndexBuffer(c *BindIndexBuffer)           { r.add(*c) }
func (r *recorder) BindTexture(c *BindTexture)                   { r.add(*c) }
func (r *recorder) BindSampler(c *BindSampler)                   { r.add(*c) }
func (r *recorder) BindConstantBuffer(c *BindConstantBuffer)     { r.add(*c) }
func (r *recorder) SetTransform(c *SetTransform)                 { r.add(*c) }
func (r *recorder) DrawPrimitive(c *DrawPrimitive)               { r.add(*c) }
func (r *recorder) DrawIndexedPrimitive(c *DrawIndexedPrimitive) { r.add(*c) }
func (r *recorder) Dispatch(c *Dispatch)                         { r.add(*c) }
func (r *recorder) ResourceBarrier(c *ResourceBarrier)           { r.add(*c) }
func (r *recorder) CopyTexture(c *CopyTexture)                   { r.add(*c) }
func (r *recorder) PushDebugEvent(c *PushDebugEvent)             { r.add(*c) }
func (r *recorder) PopDebugEvent()                               { r.add(PopDebugEvent{}) }
func (r *recorder) InsertDebugMarker(c *InsertDebugMarker)       { r.add(*c) }

func (r *recorder) UpdateBuffer(c *UpdateBuffer) {
	cp := *c
	cp.Data = bytes.Clone(c.Data)
	r.add(cp)
}

var _ Executor = (*recorder)(nil)
