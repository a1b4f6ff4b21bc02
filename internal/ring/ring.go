// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package ring implements a bounded single-producer/single-consumer ring
// with monotonic cursors.
//
// Cursors count elements ever written (head) and ever consumed (tail); the
// physical index of a cursor is cursor % Cap. The producer reserves
// physically contiguous spans, fills them, and publishes them in one step.
// The consumer reads published elements and releases them by advancing the
// tail. The invariant tail <= head <= reserve holds at all times.
//
// One goroutine may reserve and publish; another may read and release.
// Cursor publication is atomic, so element writes made before Publish are
// visible to a consumer that observed the new head.
package ring

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrFull is returned when a reservation does not fit in the free space.
	ErrFull = errors.New("ring: full")

	// ErrTooLarge is returned when a reservation can never fit.
	ErrTooLarge = errors.New("ring: reservation larger than capacity")
)

// Ring is a bounded SPSC ring of T.
type Ring[T any] struct {
	buf  []T
	size uint64

	head atomic.Uint64 // published by the producer
	tail atomic.Uint64 // released by the consumer

	reserve uint64 // producer-local, >= head
}

// New creates a ring holding capacity elements. It panics if capacity < 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic("ring: capacity must be positive")
	}
	return &Ring[T]{
		buf:  make([]T, capacity),
		size: uint64(capacity),
	}
}

// Cap returns the capacity in elements.
func (r *Ring[T]) Cap() int { return int(r.size) }

// Head returns the published producer cursor.
func (r *Ring[T]) Head() uint64 { return r.head.Load() }

// Tail returns the consumer cursor.
func (r *Ring[T]) Tail() uint64 { return r.tail.Load() }

// Len returns the number of published, unreleased elements.
func (r *Ring[T]) Len() int { return int(r.head.Load() - r.tail.Load()) }

// Free returns the number of elements the producer may still reserve,
// ignoring contiguity.
func (r *Ring[T]) Free() int { return int(r.size - (r.reserve - r.tail.Load())) }

// Pending returns the number of reserved but unpublished elements.
func (r *Ring[T]) Pending() int { return int(r.reserve - r.head.Load()) }

// Index returns the physical index of cursor pos.
func (r *Ring[T]) Index(pos uint64) int { return int(pos % r.size) }

// Reserve reserves n physically contiguous elements and returns the cursor
// of the first one. When the span would cross the end of the buffer, the
// remaining tail elements are skipped and counted in pad; they start at
// cursor start-pad. Producer only.
func (r *Ring[T]) Reserve(n int) (start uint64, pad int, err error) {
	if n < 1 {
		return r.reserve, 0, nil
	}
	need := uint64(n)
	if need > r.size {
		return 0, 0, ErrTooLarge
	}
	phys := r.reserve % r.size
	var skip uint64
	if phys+need > r.size {
		skip = r.size - phys
	}
	if skip+need > r.size {
		return 0, 0, ErrTooLarge
	}
	if skip+need > uint64(r.Free()) {
		return 0, 0, ErrFull
	}
	start = r.reserve + skip
	r.reserve = start + need
	return start, int(skip), nil
}

// Fits reports whether a reservation of n elements would succeed now.
func (r *Ring[T]) Fits(n int) bool {
	need := uint64(n)
	if need > r.size {
		return false
	}
	phys := r.reserve % r.size
	var skip uint64
	if phys+need > r.size {
		skip = r.size - phys
	}
	return skip+need <= uint64(r.Free())
}

// Span returns the n elements starting at cursor pos. The span must not
// cross the end of the buffer, which Reserve guarantees for its results.
func (r *Ring[T]) Span(pos uint64, n int) []T {
	i := r.Index(pos)
	return r.buf[i : i+n : i+n]
}

// At returns a pointer to the element at cursor pos.
func (r *Ring[T]) At(pos uint64) *T {
	return &r.buf[r.Index(pos)]
}

// Publish makes every reserved element visible to the consumer and returns
// the new head. Producer only.
func (r *Ring[T]) Publish() uint64 {
	r.head.Store(r.reserve)
	return r.reserve
}

// Rollback discards every reserved but unpublished element. Producer only.
func (r *Ring[T]) Rollback() {
	r.reserve = r.head.Load()
}

// Release frees every element before cursor pos. It panics if pos is
// behind the tail or beyond the published head. Consumer only.
func (r *Ring[T]) Release(pos uint64) {
	if pos < r.tail.Load() || pos > r.head.Load() {
		panic("ring: release outside published range")
	}
	r.tail.Store(pos)
}
