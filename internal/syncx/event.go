// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package syncx provides the synchronization primitives shared by the
// producer and the draw thread.
package syncx

import (
	"context"
	"sync"
	"time"
)

// Event is a manual-reset event. Once Set, it stays signaled and releases
// every waiter, present and future, until Reset is called.
//
// The zero value is an unsignaled event ready for use.
type Event struct {
	mu  sync.Mutex
	ch  chan struct{}
	set bool
}

// NewEvent returns an event in the given initial state.
func NewEvent(signaled bool) *Event {
	e := &Event{}
	if signaled {
		e.Set()
	}
	return e
}

// channel returns the wait channel for the current generation.
// Caller must hold e.mu.
func (e *Event) channel() chan struct{} {
	if e.ch == nil {
		e.ch = make(chan struct{})
	}
	return e.ch
}

// Set signals the event. Setting an already signaled event is a no-op.
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		return
	}
	e.set = true
	close(e.channel())
}

// Reset returns the event to the unsignaled state.
func (e *Event) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		return
	}
	e.set = false
	e.ch = make(chan struct{})
}

// IsSet reports whether the event is currently signaled.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Done returns a channel that is closed while the event is signaled.
// A Reset after the channel was obtained does not reopen it.
func (e *Event) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channel()
}

// Wait blocks until the event is signaled.
func (e *Event) Wait() {
	<-e.Done()
}

// WaitTimeout blocks until the event is signaled or d elapses.
// It reports whether the event was signaled.
func (e *Event) WaitTimeout(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-e.Done():
		return true
	case <-t.C:
		return false
	}
}

// WaitContext blocks until the event is signaled or ctx is done.
func (e *Event) WaitContext(ctx context.Context) error {
	select {
	case <-e.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
