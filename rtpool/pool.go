// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package rtpool recycles transient render targets and depth-stencil
// surfaces across frames.
//
// A Target handed out by Get is owned by the caller until its last Release.
// The texture is not reusable at that moment: commands encoded before the
// release may still reference it on the draw thread. The pool therefore
// queues a task on the draw thread which waits for the texture to go idle,
// and only then puts it back in the free list.
package rtpool

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/drawq/internal/logx"
	"github.com/gogpu/drawq/resource"
)

var (
	// ErrInvalidDescriptor is returned for a descriptor with a zero size or
	// an undefined format, or a depth request with a color format.
	ErrInvalidDescriptor = errors.New("rtpool: invalid descriptor")

	// ErrNoAllocator is returned on a pool miss when the pool has no
	// allocator.
	ErrNoAllocator = errors.New("rtpool: no allocator")

	// ErrClosed is returned by Get after Close.
	ErrClosed = errors.New("rtpool: closed")
)

// TaskQueue runs functions on the draw thread. *drawthread.Coordinator
// implements it.
type TaskQueue interface {
	// TryAddTask queues fn and reports whether it will run. A queue that
	// has stopped returns false and never calls fn.
	TryAddTask(fn func()) bool
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Allocated int
	Free      int
	Pending   int
}

// Option configures a Pool.
type Option func(*Pool)

// WithTaskQueue routes deferred returns through q. Without a queue, or
// once q refuses tasks, a released texture is returned as soon as it is
// idle, on whichever goroutine makes it idle.
func WithTaskQueue(q TaskQueue) Option {
	return func(p *Pool) {
		p.tasks = q
	}
}

// WithLogger sets the pool logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		p.log = logx.OrNop(l)
	}
}

type entry struct {
	desc Descriptor
	tex  *resource.Texture
}

// Pool hands out render targets keyed by descriptor. It never evicts; it
// grows to the high-water mark of simultaneously used targets.
//
// Thread safety: all methods are safe for concurrent use.
type Pool struct {
	alloc resource.Allocator
	tasks TaskQueue
	log   *slog.Logger

	mu     sync.Mutex
	colors []entry
	depths []entry

	hits      uint64
	misses    uint64
	allocated int
	closed    bool

	pending atomic.Int64
}

// New creates a pool allocating through alloc.
func New(alloc resource.Allocator, opts ...Option) *Pool {
	p := &Pool{
		alloc: alloc,
		log:   logx.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns a target matching desc with one reference. A free texture
// with an equal descriptor is reused; otherwise a new one is allocated.
func (p *Pool) Get(desc Descriptor) (*Target, error) {
	desc = desc.normalized()
	if err := desc.validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	bucket := p.bucket(desc)
	for i, e := range *bucket {
		if e.desc == desc {
			*bucket = slices.Delete(*bucket, i, i+1)
			p.hits++
			p.mu.Unlock()
			p.log.Debug("rtpool: reuse", "desc", desc.String())
			return newTarget(p, desc, e.tex), nil
		}
	}
	p.misses++
	p.mu.Unlock()

	if p.alloc == nil {
		return nil, ErrNoAllocator
	}
	tex, err := p.alloc.CreateTexture(desc.texture("rtpool"))
	if err != nil {
		return nil, fmt.Errorf("rtpool: allocate %dx%d %s: %w", desc.Size.Width, desc.Size.Height, desc.Format, err)
	}

	p.mu.Lock()
	p.allocated++
	p.mu.Unlock()
	p.log.Debug("rtpool: allocate", "desc", desc.String())
	return newTarget(p, desc, tex), nil
}

// GetRenderTarget returns a single-sampled color target.
func (p *Pool) GetRenderTarget(width, height uint32, format gputypes.TextureFormat) (*Target, error) {
	desc := Descriptor{Size: gputypes.NewExtent2D(width, height), Format: format}
	if desc.DepthStencil() {
		return nil, fmt.Errorf("%w: %s is a depth-stencil format", ErrInvalidDescriptor, format)
	}
	return p.Get(desc)
}

// GetDepthStencil returns a single-sampled depth-stencil surface.
func (p *Pool) GetDepthStencil(width, height uint32, format gputypes.TextureFormat) (*Target, error) {
	desc := Descriptor{Size: gputypes.NewExtent2D(width, height), Format: format}
	if !desc.DepthStencil() {
		return nil, fmt.Errorf("%w: %s is not a depth-stencil format", ErrInvalidDescriptor, format)
	}
	return p.Get(desc)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Hits:      p.hits,
		Misses:    p.misses,
		Allocated: p.allocated,
		Free:      len(p.colors) + len(p.depths),
		Pending:   int(p.pending.Load()),
	}
}

// Clear destroys every free texture and returns how many were destroyed.
// Targets still handed out or pending return are unaffected.
func (p *Pool) Clear() int {
	p.mu.Lock()
	free := slices.Concat(p.colors, p.depths)
	p.colors, p.depths = nil, nil
	p.allocated -= len(free)
	p.mu.Unlock()

	for _, e := range free {
		e.tex.Destroy()
	}
	return len(free)
}

// Close destroys every free texture and stops pooling. Targets released
// afterwards are dropped once idle: they leave the pool counters but their
// textures are not destroyed, since the allocator may be gone. Close
// returns the number of textures destroyed.
func (p *Pool) Close() int {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.Clear()
}

// bucket returns the free list for desc. p.mu must be held.
func (p *Pool) bucket(desc Descriptor) *[]entry {
	if desc.DepthStencil() {
		return &p.depths
	}
	return &p.colors
}

// giveBack returns tex to the free list once every command encoded before
// this call has executed.
func (p *Pool) giveBack(desc Descriptor, tex *resource.Texture) {
	p.pending.Add(1)

	// The extra reference keeps the idle hook from firing between arming
	// and the end of the task.
	tex.AddReferenceCounter()
	ret := func() {
		tex.WhenIdle(func() { p.insert(desc, tex) })
		tex.SubReferenceCounter()
	}
	if p.tasks == nil || !p.tasks.TryAddTask(ret) {
		ret()
	}
}

func (p *Pool) insert(desc Descriptor, tex *resource.Texture) {
	p.mu.Lock()
	if p.closed {
		p.allocated--
		p.mu.Unlock()
		p.pending.Add(-1)
		p.log.Debug("rtpool: dropped after close", "desc", desc.String())
		return
	}
	bucket := p.bucket(desc)
	*bucket = append(*bucket, entry{desc: desc, tex: tex})
	p.mu.Unlock()
	p.pending.Add(-1)
	p.log.Debug("rtpool: returned", "desc", desc.String())
}
