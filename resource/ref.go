// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package resource

import (
	"sync"
	"sync/atomic"
)

// Counted is the capability a resource needs to be referenced by a
// deferred command. The encoder calls AddReferenceCounter synchronously on
// the producer when a command binds the resource; the draw thread calls
// SubReferenceCounter once that command has executed.
type Counted interface {
	AddReferenceCounter()
	SubReferenceCounter()
}

// Ref is an atomic count of in-flight references with an idle hook.
// Embed it to make a type Counted.
//
// The zero value has no references and no hook.
type Ref struct {
	n atomic.Int64

	mu   sync.Mutex
	idle func()
}

// AddReferenceCounter takes one reference.
func (r *Ref) AddReferenceCounter() {
	r.n.Add(1)
}

// SubReferenceCounter drops one reference. When the count reaches zero the
// armed idle hook, if any, runs on the calling goroutine.
// It panics if the count goes negative.
func (r *Ref) SubReferenceCounter() {
	n := r.n.Add(-1)
	if n < 0 {
		panic("resource: negative reference count")
	}
	if n == 0 {
		r.fire()
	}
}

// References returns the current number of in-flight references.
func (r *Ref) References() int64 {
	return r.n.Load()
}

// WhenIdle arms fn to run once the count is zero. If the count is already
// zero fn runs immediately on the caller. Hooks armed while another is
// pending run in arming order.
func (r *Ref) WhenIdle(fn func()) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	if r.n.Load() == 0 {
		prev := r.idle
		r.idle = nil
		r.mu.Unlock()
		if prev != nil {
			prev()
		}
		fn()
		return
	}
	if prev := r.idle; prev != nil {
		r.idle = func() { prev(); fn() }
	} else {
		r.idle = fn
	}
	r.mu.Unlock()
}

func (r *Ref) fire() {
	r.mu.Lock()
	fn := r.idle
	if fn == nil || r.n.Load() != 0 {
		r.mu.Unlock()
		return
	}
	r.idle = nil
	r.mu.Unlock()
	fn()
}
