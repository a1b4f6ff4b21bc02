// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package command

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq/resource"
)

func newTexture(label string) *resource.Texture {
	return resource.NewTexture(resource.TextureDescriptor{
		Label:  label,
		Size:   gputypes.NewExtent2D(16, 16),
		Format: gputypes.TextureFormatRGBA8Unorm,
	}, nil, nil)
}

func newBuffer(size uint64) *resource.Buffer {
	return resource.NewBuffer(resource.BufferDescriptor{Size: size, Usage: gputypes.BufferUsageVertex}, nil, nil)
}

// allCommands returns one instance of every command type.
func allCommands() []Command {
	color := newTexture("color")
	depth := resource.NewTexture(resource.TextureDescriptor{
		Size:   gputypes.NewExtent2D(16, 16),
		Format: gputypes.TextureFormatDepth24Plus,
	}, nil, nil)
	vb := newBuffer(256)
	ib := newBuffer(64)
	cb := newBuffer(64)
	smp := resource.NewSampler(gputypes.DefaultSamplerDescriptor(), nil, nil)
	pso := resource.NewPipelineState(resource.PipelineDescriptor{Label: "pso"}, nil, nil)

	return []Command{
		BeginScene{},
		SetRenderTarget{Colors: [MaxColorTargets]*resource.Texture{color}, Depth: depth},
		SetViewport{X: 1, Y: 2, Width: 640, Height: 480, MinDepth: 0.25, MaxDepth: 0.75},
		SetScissor{X: 3, Y: 4, Width: 100, Height: 50},
		ClearScreen{Flags: ClearAll, Color: gputypes.Color{R: 0.1, G: 0.2, B: 0.3, A: 1}, Depth: 1, Stencil: 7},
		SetPipelineState{Pipeline: pso},
		SetPipelineState{},
		SetBlendState{Blend: gputypes.BlendStateAlpha(), Constant: gputypes.Color{R: 1, A: 0.5}},
		SetStencilReference{Reference: 0xff},
		BindVertexBuffer{Slot: 1, Buffer: vb, Offset: 16, Stride: 8},
		BindIndexBuffer{Buffer: ib, Format: gputypes.IndexFormatUint32, Offset: 4},
		BindTexture{Slot: 2, Texture: color},
		BindSampler{Slot: 2, Sampler: smp},
		BindConstantBuffer{Slot: 0, Buffer: cb, Offset: 0, Size: 64},
		UpdateBuffer{Buffer: vb, Offset: 8, Data: []byte(strings.Repeat("vertexdata", 20))},
		SetTransform{Slot: 0, Matrix: mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))},
		DrawPrimitive{Topology: gputypes.PrimitiveTopologyTriangleStrip, StartVertex: 4, VertexCount: 6, InstanceCount: 2, StartInstance: 1},
		DrawIndexedPrimitive{Topology: gputypes.PrimitiveTopologyLineList, BaseVertex: -3, StartIndex: 9, IndexCount: 12, InstanceCount: 1},
		Dispatch{X: 8, Y: 4, Z: 1},
		ResourceBarrier{Texture: color, Before: resource.StateRenderTarget, After: resource.StateShaderResource},
		CopyTexture{Src: color, Dst: depth},
		PushDebugEvent{Name: "shadow pass"},
		InsertDebugMarker{Name: "marker"},
		PopDebugEvent{},
		EndScene{},
		Present{},
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeNop, "Nop"},
		{TypeBeginScene, "BeginScene"},
		{TypeDrawIndexedPrimitive, "DrawIndexedPrimitive"},
		{TypeInsertDebugMarker, "InsertDebugMarker"},
		{Type(999), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
	for i, name := range typeNames {
		if name == "" {
			t.Errorf("Type(%d) has no name", i)
		}
	}
	if TypeNop.Valid() || !TypePresent.Valid() || typeCount.Valid() {
		t.Error("Valid() misclassifies Nop, Present or the sentinel")
	}
}

func TestRoundTripAllCommands(t *testing.T) {
	b := NewBuffer(WithCapacity(256))
	want := allCommands()
	for _, c := range want {
		if err := b.AddCommand(c); err != nil {
			t.Fatalf("AddCommand(%s) error = %v", c.Type(), err)
		}
	}

	var rec recorder
	n, err := b.Decode(b.Boundary(), &rec)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if n != len(want) {
		t.Fatalf("Decode() = %d commands, want %d", n, len(want))
	}
	for i := range want {
		if !reflect.DeepEqual(rec.cmds[i], want[i]) {
			t.Errorf("command %d:\n got %#v\nwant %#v", i, rec.cmds[i], want[i])
		}
	}
	if b.Pending() != 0 || b.Retained() != 0 {
		t.Errorf("after decode Pending() = %d, Retained() = %d; want 0, 0", b.Pending(), b.Retained())
	}
}

func TestSceneScenarioRecords(t *testing.T) {
	b := NewBuffer(WithCapacity(64))
	e := NewEncoder(b)

	red := gputypes.Color{R: 1, A: 1}
	calls := []func() error{
		e.BeginScene,
		func() error { return e.SetViewport(0, 0, 1920, 1080) },
		func() error { return e.ClearScreen(ClearColor, red, 1, 0) },
		func() error { return e.DrawPrimitive(gputypes.PrimitiveTopologyTriangleList, 0, 3) },
		e.EndScene,
		e.Present,
	}
	for i, call := range calls {
		if err := call(); err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
	}

	// Six single-slot records, in call order.
	wantTypes := []Type{TypeBeginScene, TypeSetViewport, TypeClearScreen, TypeDrawPrimitive, TypeEndScene, TypePresent}
	if got := b.Pending(); got != len(wantTypes) {
		t.Fatalf("Pending() = %d slots, want %d", got, len(wantTypes))
	}
	for i, typ := range wantTypes {
		h := readHeader(b.slots.Span(uint64(i*SlotSize), SlotSize))
		if h.typ != typ || h.next != 1 || h.refCount != 0 {
			t.Errorf("slot %d header = %+v, want {%s 0 1}", i, h, typ)
		}
	}

	var rec recorder
	if _, err := b.Decode(b.Boundary(), &rec); err != nil {
		t.Fatal(err)
	}
	want := []Command{
		BeginScene{},
		SetViewport{Width: 1920, Height: 1080, MaxDepth: 1},
		ClearScreen{Flags: ClearColor, Color: red, Depth: 1},
		DrawPrimitive{Topology: gputypes.PrimitiveTopologyTriangleList, VertexCount: 3, InstanceCount: 1},
		EndScene{},
		Present{},
	}
	if !reflect.DeepEqual(rec.cmds, want) {
		t.Errorf("decoded:\n got %#v\nwant %#v", rec.cmds, want)
	}
}

func TestWraparoundEquivalence(t *testing.T) {
	const capacity = 16
	seq := []Command{
		BeginScene{},
		SetTransform{Slot: 1, Matrix: mgl32.Ident4()},
		UpdateBuffer{Buffer: newBuffer(512), Data: []byte(strings.Repeat("x", 3*SlotSize+5))},
		InsertDebugMarker{Name: "wrap"},
		DrawPrimitive{VertexCount: 3, InstanceCount: 1},
		EndScene{},
	}

	run := func(t *testing.T, offset int) []Command {
		t.Helper()
		b := NewBuffer(WithCapacity(capacity))
		for range offset {
			if err := b.AddCommand(SetStencilReference{}); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := b.Decode(b.Boundary(), nil); err != nil {
			t.Fatal(err)
		}
		var rec recorder
		for _, c := range seq {
			if err := b.AddCommand(c); err != nil {
				t.Fatalf("offset %d: AddCommand(%s) error = %v", offset, c.Type(), err)
			}
			// Decode after each command so the sequence never needs more
			// than the ring holds, whatever the starting offset.
			if _, err := b.Decode(b.Boundary(), &rec); err != nil {
				t.Fatal(err)
			}
		}
		return rec.cmds
	}

	baseline := run(t, 0)
	if len(baseline) != len(seq) {
		t.Fatalf("baseline decoded %d commands, want %d", len(baseline), len(seq))
	}
	for offset := 1; offset < capacity; offset++ {
		if got := run(t, offset); !reflect.DeepEqual(got, baseline) {
			t.Errorf("offset %d: decoded sequence differs from baseline", offset)
		}
	}
}

func TestWrapPaddingRecord(t *testing.T) {
	b := NewBuffer(WithCapacity(8))
	for range 6 {
		if err := b.AddCommand(BeginScene{}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := b.Decode(b.Boundary(), nil); err != nil {
		t.Fatal(err)
	}

	// Three slots do not fit in the last two: a Nop record pads them.
	if err := b.AddCommand(InsertDebugMarker{Name: strings.Repeat("m", 2*SlotSize)}); err != nil {
		t.Fatalf("AddCommand() error = %v", err)
	}
	pad := readHeader(b.slots.Span(6*SlotSize, SlotSize))
	if pad.typ != TypeNop || pad.next != 2 {
		t.Errorf("pad header = %+v, want Nop with next 2", pad)
	}
	var rec recorder
	n, err := b.Decode(b.Boundary(), &rec)
	if err != nil || n != 1 {
		t.Fatalf("Decode() = %d, %v; want 1, nil", n, err)
	}
	if got := rec.cmds[0].(InsertDebugMarker).Name; len(got) != 2*SlotSize {
		t.Errorf("marker length = %d, want %d", len(got), 2*SlotSize)
	}
}

func TestReferenceCountConservation(t *testing.T) {
	b := NewBuffer()
	tex := newTexture("shared")

	const k = 5
	for i := range k {
		if err := b.AddCommand(BindTexture{Slot: uint32(i), Texture: tex}); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.AddCommand(SetRenderTarget{Colors: [MaxColorTargets]*resource.Texture{tex, tex}}); err != nil {
		t.Fatal(err)
	}
	if got := tex.References(); got != k+2 {
		t.Fatalf("References() before decode = %d, want %d", got, k+2)
	}
	if got := b.Retained(); got != k+2 {
		t.Errorf("Retained() = %d, want %d", got, k+2)
	}

	var seen []int64
	exec := &refProbe{tex: tex, seen: &seen}
	if _, err := b.Decode(b.Boundary(), exec); err != nil {
		t.Fatal(err)
	}
	// Each command still holds its own reference while it executes.
	want := []int64{k + 2, k + 1, k, k - 1, k - 2, 2}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("references during execution = %v, want %v", seen, want)
	}
	if got := tex.References(); got != 0 {
		t.Errorf("References() after decode = %d, want 0", got)
	}
}

// refProbe records the texture's count at the time each command runs.
type refProbe struct {
	NopExecutor
	tex  *resource.Texture
	seen *[]int64
}

func (p *refProbe) BindTexture(*BindTexture) { *p.seen = append(*p.seen, p.tex.References()) }
func (p *refProbe) SetRenderTarget(*SetRenderTarget) {
	*p.seen = append(*p.seen, p.tex.References())
}

func TestDestroyDeferredUntilDecoded(t *testing.T) {
	b := NewBuffer()
	released := false
	tex := resource.NewTexture(resource.TextureDescriptor{}, nil, func() { released = true })

	if err := b.AddCommand(BindTexture{Texture: tex}); err != nil {
		t.Fatal(err)
	}
	tex.Destroy()
	if released {
		t.Fatal("texture released while a pending command references it")
	}
	if _, err := b.Decode(b.Boundary(), nil); err != nil {
		t.Fatal(err)
	}
	if !released {
		t.Error("texture not released after the referencing command was decoded")
	}
}

func TestDecodeStopsAtBoundary(t *testing.T) {
	b := NewBuffer()
	if err := b.AddCommand(BeginScene{}); err != nil {
		t.Fatal(err)
	}
	boundary := b.Boundary()
	if err := b.AddCommand(EndScene{}); err != nil {
		t.Fatal(err)
	}

	var rec recorder
	n, err := b.Decode(boundary, &rec)
	if err != nil || n != 1 {
		t.Fatalf("Decode(boundary) = %d, %v; want 1, nil", n, err)
	}
	if b.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", b.Pending())
	}
	if b.Consumed() != boundary {
		t.Errorf("Consumed() = %d, want %d", b.Consumed(), boundary)
	}

	// A boundary past the head is clamped.
	n, err = b.Decode(b.Boundary()+10*SlotSize, &rec)
	if err != nil || n != 1 {
		t.Fatalf("Decode(beyond head) = %d, %v; want 1, nil", n, err)
	}
	if !reflect.DeepEqual(rec.cmds, []Command{BeginScene{}, EndScene{}}) {
		t.Errorf("decoded %v", rec.cmds)
	}
}

func TestAddCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"nil", nil, ErrUnknownCommand},
		{"pointer", &BeginScene{}, ErrUnknownCommand},
		{"too large", UpdateBuffer{Data: make([]byte, 8*SlotSize)}, ErrCommandTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer(WithCapacity(16))
			err := b.AddCommand(tt.cmd)
			if !errors.Is(err, tt.want) {
				t.Errorf("AddCommand() error = %v, want %v", err, tt.want)
			}
			if b.Pending() != 0 {
				t.Errorf("Pending() = %d after failed AddCommand, want 0", b.Pending())
			}
		})
	}
}

func TestRetainFailureRollsBack(t *testing.T) {
	b := NewBuffer(WithRetainCapacity(maxRefsPerCommand))
	tex := newTexture("t")

	full := SetRenderTarget{Depth: tex}
	for i := range full.Colors {
		full.Colors[i] = tex
	}
	if err := b.AddCommand(full); err != nil {
		t.Fatal(err)
	}
	pending := b.Pending()

	err := b.AddCommand(CopyTexture{Src: tex, Dst: tex})
	if !errors.Is(err, ErrRingFull) {
		t.Fatalf("AddCommand() error = %v, want %v", err, ErrRingFull)
	}
	if got := tex.References(); got != maxRefsPerCommand {
		t.Errorf("References() = %d, want %d", got, maxRefsPerCommand)
	}
	if b.Pending() != pending {
		t.Errorf("Pending() = %d, want %d", b.Pending(), pending)
	}

	if _, err := b.Decode(b.Boundary(), nil); err != nil {
		t.Fatal(err)
	}
	if err := b.AddCommand(CopyTexture{Src: tex, Dst: tex}); err != nil {
		t.Errorf("AddCommand() after drain error = %v", err)
	}
}

func TestDecodeCorruptHeader(t *testing.T) {
	b := NewBuffer()
	if err := b.AddCommand(BeginScene{}); err != nil {
		t.Fatal(err)
	}
	putHeader(b.slots.Span(0, SlotSize), header{typ: TypeBeginScene})

	_, err := b.Decode(b.Boundary(), nil)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Decode() error = %v, want %v", err, ErrCorrupt)
	}
}

func TestUpdateBufferCopiesData(t *testing.T) {
	b := NewBuffer()
	data := []byte{1, 2, 3, 4}
	if err := b.AddCommand(UpdateBuffer{Buffer: newBuffer(4), Data: data}); err != nil {
		t.Fatal(err)
	}
	data[0] = 99

	var rec recorder
	if _, err := b.Decode(b.Boundary(), &rec); err != nil {
		t.Fatal(err)
	}
	if got := rec.cmds[0].(UpdateBuffer).Data; got[0] != 1 {
		t.Errorf("Data[0] = %d, want 1", got[0])
	}
}
