// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rtpool

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq/command"
	"github.com/gogpu/drawq/drawthread"
	"github.com/gogpu/drawq/resource"
)

// fakeAllocator creates textures without a backend.
type fakeAllocator struct {
	mu       sync.Mutex
	textures int
	released int
	err      error
}

func (a *fakeAllocator) CreateTexture(desc *resource.TextureDescriptor) (*resource.Texture, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	a.textures++
	return resource.NewTexture(*desc, a.textures, func() {
		a.mu.Lock()
		a.released++
		a.mu.Unlock()
	}), nil
}

func (a *fakeAllocator) CreateBuffer(*resource.BufferDescriptor) (*resource.Buffer, error) {
	return nil, errors.New("unsupported")
}

func (a *fakeAllocator) CreateSampler(*gputypes.SamplerDescriptor) (*resource.Sampler, error) {
	return nil, errors.New("unsupported")
}

func (a *fakeAllocator) CreatePipelineState(*resource.PipelineDescriptor) (*resource.PipelineState, error) {
	return nil, errors.New("unsupported")
}

// manualQueue holds tasks until run is called. A stopped queue refuses
// tasks.
type manualQueue struct {
	tasks   []func()
	stopped bool
}

func (q *manualQueue) TryAddTask(fn func()) bool {
	if q.stopped {
		return false
	}
	q.tasks = append(q.tasks, fn)
	return true
}

func (q *manualQueue) run() {
	tasks := q.tasks
	q.tasks = nil
	for _, fn := range tasks {
		fn()
	}
}

func rt(w, h uint32) Descriptor {
	return Descriptor{Size: gputypes.NewExtent2D(w, h), Format: gputypes.TextureFormatRGBA8Unorm}
}

func TestReuseSameDescriptor(t *testing.T) {
	alloc := &fakeAllocator{}
	p := New(alloc)

	a, err := p.Get(rt(256, 256))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	tex := a.Texture()
	a.Release()

	if s := p.Stats(); s.Free != 1 || s.Pending != 0 {
		t.Fatalf("Stats() after release = %+v, want 1 free", s)
	}

	b, err := p.Get(rt(256, 256))
	if err != nil {
		t.Fatal(err)
	}
	if b.Texture() != tex {
		t.Error("Get() allocated a new texture instead of reusing the free one")
	}
	if b == a {
		t.Error("Get() returned the released handle")
	}
	want := Stats{Hits: 1, Misses: 1, Allocated: 1}
	if s := p.Stats(); s != want {
		t.Errorf("Stats() = %+v, want %+v", s, want)
	}
	if alloc.textures != 1 {
		t.Errorf("allocator created %d textures, want 1", alloc.textures)
	}
}

func TestDescriptorIsolation(t *testing.T) {
	base := rt(128, 128)
	tests := []struct {
		name string
		desc Descriptor
	}{
		{"width", rt(64, 128)},
		{"height", rt(128, 64)},
		{"format", Descriptor{Size: base.Size, Format: gputypes.TextureFormatBGRA8Unorm}},
		{"samples", Descriptor{Size: base.Size, Format: base.Format, SampleCount: 4}},
		{"usage", Descriptor{Size: base.Size, Format: base.Format, Usage: gputypes.TextureUsageRenderAttachment}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&fakeAllocator{})
			first, err := p.Get(base)
			if err != nil {
				t.Fatal(err)
			}
			first.Release()

			other, err := p.Get(tt.desc)
			if err != nil {
				t.Fatal(err)
			}
			if other.Texture() == first.Texture() {
				t.Errorf("descriptor differing in %s reused the texture", tt.name)
			}
			if s := p.Stats(); s.Hits != 0 || s.Free != 1 {
				t.Errorf("Stats() = %+v, want no hits and the first texture still free", s)
			}
		})
	}
}

func TestDefaultsNormalize(t *testing.T) {
	p := New(&fakeAllocator{})
	a, err := p.Get(rt(32, 32))
	if err != nil {
		t.Fatal(err)
	}
	a.Release()

	explicit := Descriptor{
		Size:        gputypes.NewExtent3D(32, 32, 1),
		Format:      gputypes.TextureFormatRGBA8Unorm,
		SampleCount: 1,
		Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	}
	b, err := p.Get(explicit)
	if err != nil {
		t.Fatal(err)
	}
	if b.Texture() != a.Texture() {
		t.Error("explicit defaults did not match the defaulted descriptor")
	}
	if b.Descriptor() != explicit {
		t.Errorf("Descriptor() = %+v, want %+v", b.Descriptor(), explicit)
	}
}

func TestDepthStencilBucket(t *testing.T) {
	p := New(&fakeAllocator{})

	d, err := p.GetDepthStencil(64, 64, gputypes.TextureFormatDepth24PlusStencil8)
	if err != nil {
		t.Fatalf("GetDepthStencil() error = %v", err)
	}
	if !d.Descriptor().DepthStencil() {
		t.Error("Descriptor().DepthStencil() = false for a depth format")
	}
	if got := d.Texture().Desc.Usage; got != gputypes.TextureUsageRenderAttachment {
		t.Errorf("depth usage = %v, want RenderAttachment", got)
	}
	d.Release()

	p.mu.Lock()
	colors, depths := len(p.colors), len(p.depths)
	p.mu.Unlock()
	if colors != 0 || depths != 1 {
		t.Errorf("free lists = %d colors, %d depths; want 0, 1", colors, depths)
	}

	if _, err := p.GetRenderTarget(64, 64, gputypes.TextureFormatDepth32Float); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("GetRenderTarget(depth format) error = %v, want %v", err, ErrInvalidDescriptor)
	}
	if _, err := p.GetDepthStencil(64, 64, gputypes.TextureFormatRGBA8Unorm); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("GetDepthStencil(color format) error = %v, want %v", err, ErrInvalidDescriptor)
	}
}

func TestGetErrors(t *testing.T) {
	allocErr := errors.New("out of memory")
	tests := []struct {
		name  string
		alloc resource.Allocator
		desc  Descriptor
		want  error
	}{
		{"zero width", &fakeAllocator{}, rt(0, 16), ErrInvalidDescriptor},
		{"zero height", &fakeAllocator{}, rt(16, 0), ErrInvalidDescriptor},
		{"undefined format", &fakeAllocator{}, Descriptor{Size: gputypes.NewExtent2D(16, 16)}, ErrInvalidDescriptor},
		{"no allocator", nil, rt(16, 16), ErrNoAllocator},
		{"allocation failure", &fakeAllocator{err: allocErr}, rt(16, 16), allocErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.alloc)
			target, err := p.Get(tt.desc)
			if !errors.Is(err, tt.want) {
				t.Errorf("Get() error = %v, want %v", err, tt.want)
			}
			if target != nil {
				t.Error("Get() returned a target with an error")
			}
		})
	}
}

func TestTargetReferences(t *testing.T) {
	p := New(&fakeAllocator{})
	a, err := p.Get(rt(8, 8))
	if err != nil {
		t.Fatal(err)
	}
	a.AddRef()
	a.Release()
	if s := p.Stats(); s.Free != 0 {
		t.Fatalf("texture returned with a reference outstanding")
	}
	a.Release()
	if s := p.Stats(); s.Free != 1 {
		t.Fatalf("texture not returned after the last Release")
	}

	defer func() {
		if recover() == nil {
			t.Error("extra Release() did not panic")
		}
	}()
	a.Release()
}

func TestReturnDeferredPastPendingCommands(t *testing.T) {
	alloc := &fakeAllocator{}
	q := &manualQueue{}
	p := New(alloc, WithTaskQueue(q))
	buf := command.NewBuffer()
	e := command.NewEncoder(buf)

	target, err := p.Get(rt(64, 64))
	if err != nil {
		t.Fatal(err)
	}
	tex := target.Texture()
	_ = e.SetRenderTarget([]*resource.Texture{tex}, nil)
	_ = e.ClearScreen(command.ClearColor, gputypes.Color{A: 1}, 1, 0)
	_ = e.BindTexture(0, tex)
	target.Release()

	if s := p.Stats(); s.Free != 0 || s.Pending != 1 {
		t.Fatalf("Stats() before the task = %+v, want 1 pending", s)
	}

	// The task runs, but two commands still reference the texture.
	q.run()
	if s := p.Stats(); s.Free != 0 || s.Pending != 1 {
		t.Fatalf("Stats() with pending commands = %+v, want 1 pending", s)
	}
	other, err := p.Get(rt(64, 64))
	if err != nil {
		t.Fatal(err)
	}
	if other.Texture() == tex {
		t.Fatal("texture reused while commands referencing it were pending")
	}

	if _, err := buf.Decode(buf.Boundary(), nil); err != nil {
		t.Fatal(err)
	}
	if s := p.Stats(); s.Free != 1 || s.Pending != 0 {
		t.Errorf("Stats() after decode = %+v, want 1 free", s)
	}
	if got := tex.References(); got != 0 {
		t.Errorf("References() = %d, want 0", got)
	}
}

// freeProbe checks pool state from inside command execution.
type freeProbe struct {
	command.NopExecutor
	pool *Pool
	seen []bool
}

func (f *freeProbe) BindTexture(c *command.BindTexture) {
	f.pool.mu.Lock()
	free := false
	for _, e := range f.pool.colors {
		free = free || e.tex == c.Texture
	}
	f.pool.mu.Unlock()
	f.seen = append(f.seen, free)
}

func TestReturnThroughDrawThread(t *testing.T) {
	alloc := &fakeAllocator{}
	buf := command.NewBuffer()
	probe := &freeProbe{}
	coord := drawthread.New(buf, probe)
	p := New(alloc, WithTaskQueue(coord))
	probe.pool = p
	if err := coord.Start(); err != nil {
		t.Fatal(err)
	}
	e := command.NewEncoder(buf, command.WithFlusher(coord))

	for frame := range 3 {
		target, err := p.Get(rt(320, 240))
		if err != nil {
			t.Fatal(err)
		}
		_ = e.BindTexture(0, target.Texture())
		target.Release()
		if err := coord.Flush(); err != nil {
			t.Fatalf("frame %d: Flush() error = %v", frame, err)
		}
	}
	if err := coord.Close(); err != nil {
		t.Fatal(err)
	}

	// A texture is never free while a command binding it executes.
	for i, free := range probe.seen {
		if free {
			t.Errorf("frame %d: bound texture was in the free list during execution", i)
		}
	}
	if len(probe.seen) != 3 {
		t.Errorf("executed %d BindTexture commands, want 3", len(probe.seen))
	}
	if s := p.Stats(); s.Free != s.Allocated || s.Pending != 0 {
		t.Errorf("Stats() after Close = %+v, want every texture free", s)
	}
}

func TestClear(t *testing.T) {
	alloc := &fakeAllocator{}
	p := New(alloc)

	a, _ := p.Get(rt(16, 16))
	b, _ := p.GetDepthStencil(16, 16, gputypes.TextureFormatDepth32Float)
	keep, _ := p.Get(rt(32, 32))
	a.Release()
	b.Release()

	if n := p.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if alloc.released != 2 {
		t.Errorf("released %d textures, want 2", alloc.released)
	}
	if s := p.Stats(); s.Free != 0 || s.Allocated != 1 {
		t.Errorf("Stats() = %+v, want 1 allocated, 0 free", s)
	}
	if keep.Texture().Destroyed() {
		t.Error("Clear() destroyed a target on loan")
	}
}

func TestReleaseWhenQueueRefuses(t *testing.T) {
	alloc := &fakeAllocator{}
	q := &manualQueue{stopped: true}
	p := New(alloc, WithTaskQueue(q))

	a, err := p.Get(rt(16, 16))
	if err != nil {
		t.Fatal(err)
	}
	a.Release()
	if len(q.tasks) != 0 {
		t.Errorf("queued %d tasks on a stopped queue", len(q.tasks))
	}
	if s := p.Stats(); s.Free != 1 || s.Pending != 0 {
		t.Errorf("Stats() = %+v, want the texture returned inline", s)
	}
}

func TestReleaseAfterClose(t *testing.T) {
	alloc := &fakeAllocator{}
	p := New(alloc)

	free, _ := p.Get(rt(16, 16))
	loaned, _ := p.Get(rt(32, 32))
	free.Release()

	if n := p.Close(); n != 1 {
		t.Errorf("Close() = %d, want 1", n)
	}
	if _, err := p.Get(rt(16, 16)); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after Close error = %v, want %v", err, ErrClosed)
	}

	loaned.Release()
	if s := p.Stats(); s != (Stats{Misses: 2}) {
		t.Errorf("Stats() = %+v, want nothing allocated, free or pending", s)
	}
	if loaned.Texture().Destroyed() {
		t.Error("a texture released after Close was destroyed")
	}
}
