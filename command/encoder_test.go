// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package command

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq/resource"
)

func TestOverrunPolicyString(t *testing.T) {
	tests := []struct {
		p    OverrunPolicy
		want string
	}{
		{OverrunFlush, "Flush"},
		{OverrunError, "Error"},
		{OverrunPanic, "Panic"},
		{OverrunPolicy(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("OverrunPolicy(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}

func TestNilEncoderIsNoop(t *testing.T) {
	for _, e := range []*Encoder{nil, NewEncoder(nil)} {
		if err := e.BeginScene(); err != nil {
			t.Errorf("BeginScene() error = %v", err)
		}
		if err := e.UpdateBuffer(nil, 0, make([]byte, 1<<20)); err != nil {
			t.Errorf("UpdateBuffer() error = %v", err)
		}
		if err := e.SetRenderTarget(make([]*resource.Texture, MaxColorTargets+1), nil); err != nil {
			t.Errorf("SetRenderTarget() error = %v", err)
		}
		if e.Err() != nil || e.Buffer() != nil {
			t.Error("nil encoder reports state")
		}
	}
}

func fill(t *testing.T, e *Encoder) {
	t.Helper()
	for range e.Buffer().Cap() {
		if err := e.SetStencilReference(1); err != nil {
			t.Fatalf("fill: %v", err)
		}
	}
}

func TestOverrunErrorIsSticky(t *testing.T) {
	b := NewBuffer(WithCapacity(4))
	e := NewEncoder(b, WithOverrunPolicy(OverrunError))
	fill(t, e)

	if err := e.EndScene(); !errors.Is(err, ErrRingFull) {
		t.Fatalf("EndScene() on full ring error = %v, want %v", err, ErrRingFull)
	}

	// Space is available again, but the error sticks until taken.
	if _, err := b.Decode(b.Boundary(), nil); err != nil {
		t.Fatal(err)
	}
	if err := e.Present(); !errors.Is(err, ErrRingFull) {
		t.Errorf("Present() after failure error = %v, want sticky %v", err, ErrRingFull)
	}
	if b.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0: commands after a failure are dropped", b.Pending())
	}

	if err := b.TakeErr(); !errors.Is(err, ErrRingFull) {
		t.Errorf("TakeErr() = %v, want %v", err, ErrRingFull)
	}
	if err := e.Present(); err != nil {
		t.Errorf("Present() after TakeErr error = %v", err)
	}
}

func TestOverrunFlushWithoutFlusher(t *testing.T) {
	b := NewBuffer(WithCapacity(2))
	e := NewEncoder(b)
	fill(t, e)
	if err := e.BeginScene(); !errors.Is(err, ErrRingFull) {
		t.Errorf("BeginScene() error = %v, want %v", err, ErrRingFull)
	}
}

func TestOverrunPanic(t *testing.T) {
	b := NewBuffer(WithCapacity(2))
	e := NewEncoder(b, WithOverrunPolicy(OverrunPanic))
	fill(t, e)

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrRingFull) {
			t.Errorf("recover() = %v, want %v", r, ErrRingFull)
		}
	}()
	_ = e.BeginScene()
	t.Error("BeginScene() on full ring did not panic")
}

// asyncFlusher decodes up to the flushed boundary on another goroutine,
// the way the draw thread does.
type asyncFlusher struct {
	buf     *Buffer
	exec    Executor
	mu      sync.Mutex
	wg      sync.WaitGroup
	flushes atomic.Int32
	err     error
}

func (f *asyncFlusher) Flush() error {
	if f.err != nil {
		return f.err
	}
	f.flushes.Add(1)
	boundary := f.buf.Boundary()
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		_, _ = f.buf.Decode(boundary, f.exec)
	}()
	return nil
}

func TestOverrunFlushDrainsAndRetries(t *testing.T) {
	b := NewBuffer(WithCapacity(8))
	rec := &recorder{}
	f := &asyncFlusher{buf: b, exec: rec}
	e := NewEncoder(b, WithFlusher(f))

	const n = 100
	for i := range n {
		if err := e.SetStencilReference(uint32(i)); err != nil {
			t.Fatalf("SetStencilReference(%d) error = %v", i, err)
		}
	}
	f.wg.Wait()
	f.mu.Lock()
	_, _ = b.Decode(b.Boundary(), rec)
	f.mu.Unlock()

	if len(rec.cmds) != n {
		t.Fatalf("executed %d commands, want %d", len(rec.cmds), n)
	}
	for i, c := range rec.cmds {
		if got := c.(SetStencilReference).Reference; got != uint32(i) {
			t.Fatalf("command %d has reference %d: order not preserved", i, got)
		}
	}
	if f.flushes.Load() == 0 {
		t.Error("ring never overran; test does not exercise the flush path")
	}
	if err := e.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestOverrunFlushFailure(t *testing.T) {
	b := NewBuffer(WithCapacity(2))
	flushErr := errors.New("flush failed")
	e := NewEncoder(b, WithFlusher(&asyncFlusher{buf: b, err: flushErr}))
	fill(t, e)

	err := e.BeginScene()
	if !errors.Is(err, ErrRingFull) || !errors.Is(err, flushErr) {
		t.Errorf("BeginScene() error = %v, want both %v and %v", err, ErrRingFull, flushErr)
	}
}

// heldFlusher is a flusher whose consumer is held off.
type heldFlusher struct {
	asyncFlusher
}

func (*heldFlusher) ConsumerHeld() bool { return true }

func TestOverrunFlushWhileConsumerHeld(t *testing.T) {
	b := NewBuffer(WithCapacity(2))
	f := &heldFlusher{asyncFlusher{buf: b, exec: &recorder{}}}
	e := NewEncoder(b, WithFlusher(f))
	fill(t, e)

	if err := e.BeginScene(); !errors.Is(err, ErrRingFull) {
		t.Errorf("BeginScene() error = %v, want %v", err, ErrRingFull)
	}
	if n := f.flushes.Load(); n != 0 {
		t.Errorf("Flush called %d times while the consumer was held", n)
	}
	if b.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", b.Pending())
	}
}

func TestSetRenderTargetTooManyColors(t *testing.T) {
	b := NewBuffer()
	e := NewEncoder(b)
	tex := newTexture("c")

	colors := []*resource.Texture{tex, tex, tex, tex, tex}
	if err := e.SetRenderTarget(colors, nil); !errors.Is(err, ErrCommandTooLarge) {
		t.Fatalf("SetRenderTarget(5 colors) error = %v, want %v", err, ErrCommandTooLarge)
	}
	if got := tex.References(); got != 0 {
		t.Errorf("References() = %d, want 0", got)
	}
	if err := b.TakeErr(); !errors.Is(err, ErrCommandTooLarge) {
		t.Errorf("TakeErr() = %v", err)
	}
}

func TestEncoderFacadeRecords(t *testing.T) {
	b := NewBuffer()
	e := NewEncoder(b)
	vb := newBuffer(64)
	tex := newTexture("rt")

	steps := []struct {
		call func() error
		want Command
	}{
		{func() error { return e.SetRenderTarget([]*resource.Texture{tex}, nil) },
			SetRenderTarget{Colors: [MaxColorTargets]*resource.Texture{tex}}},
		{func() error { return e.SetViewportDepth(0, 0, 8, 8, 0.1, 0.9) },
			SetViewport{Width: 8, Height: 8, MinDepth: 0.1, MaxDepth: 0.9}},
		{func() error { return e.BindVertexBuffer(0, vb, 0, 8) },
			BindVertexBuffer{Buffer: vb, Stride: 8}},
		{func() error { return e.DrawPrimitiveInstanced(gputypes.PrimitiveTopologyPointList, 1, 2, 3, 4) },
			DrawPrimitive{Topology: gputypes.PrimitiveTopologyPointList, StartVertex: 1, VertexCount: 2, InstanceCount: 3, StartInstance: 4}},
		{func() error { return e.DrawIndexedPrimitive(gputypes.PrimitiveTopologyTriangleList, -1, 3, 6) },
			DrawIndexedPrimitive{BaseVertex: -1, StartIndex: 3, IndexCount: 6, InstanceCount: 1}},
		{func() error { return e.Dispatch(2, 2, 1) }, Dispatch{X: 2, Y: 2, Z: 1}},
		{func() error { return e.ResourceBarrier(tex, resource.StateRenderTarget, resource.StatePresent) },
			ResourceBarrier{Texture: tex, Before: resource.StateRenderTarget, After: resource.StatePresent}},
		{func() error { return e.PushDebugEvent("pass") }, PushDebugEvent{Name: "pass"}},
		{e.PopDebugEvent, PopDebugEvent{}},
	}

	for i, s := range steps {
		if err := s.call(); err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
	}
	var rec recorder
	if _, err := b.Decode(b.Boundary(), &rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.cmds) != len(steps) {
		t.Fatalf("decoded %d commands, want %d", len(rec.cmds), len(steps))
	}
	for i, s := range steps {
		if rec.cmds[i] != s.want {
			t.Errorf("step %d decoded %#v, want %#v", i, rec.cmds[i], s.want)
		}
	}
}

func TestConcurrentProducers(t *testing.T) {
	b := NewBuffer(WithCapacity(16))
	rec := &recorder{}
	f := &asyncFlusher{buf: b, exec: rec}
	e := NewEncoder(b, WithFlusher(f))

	const producers, perProducer = 4, 50
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				if err := e.Dispatch(uint32(p), uint32(i), 1); err != nil {
					t.Errorf("Dispatch() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	f.wg.Wait()
	f.mu.Lock()
	_, _ = b.Decode(b.Boundary(), rec)
	f.mu.Unlock()

	if len(rec.cmds) != producers*perProducer {
		t.Fatalf("executed %d commands, want %d", len(rec.cmds), producers*perProducer)
	}
	// Each producer's commands arrive in its own order.
	last := make(map[uint32]int)
	for _, c := range rec.cmds {
		d := c.(Dispatch)
		prev, ok := last[d.X]
		if ok && int(d.Y) != prev+1 {
			t.Fatalf("producer %d: command %d after %d", d.X, d.Y, prev)
		}
		last[d.X] = int(d.Y)
	}
}
