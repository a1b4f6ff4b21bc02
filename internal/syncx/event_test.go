// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package syncx

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestEventZeroValueUnsignaled(t *testing.T) {
	var e Event
	if e.IsSet() {
		t.Fatal("zero Event IsSet() = true, want false")
	}
	if e.WaitTimeout(10 * time.Millisecond) {
		t.Error("WaitTimeout() on unsignaled event = true, want false")
	}
}

func TestEventSetReleasesAllWaiters(t *testing.T) {
	e := NewEvent(false)

	const waiters = 8
	var wg sync.WaitGroup
	wg.Add(waiters)
	for range waiters {
		go func() {
			defer wg.Done()
			e.Wait()
		}()
	}

	e.Set()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiters were not released by Set")
	}
}

func TestEventStaysSignaledUntilReset(t *testing.T) {
	e := NewEvent(true)

	for i := range 3 {
		if !e.WaitTimeout(time.Second) {
			t.Fatalf("wait %d: event not signaled", i)
		}
	}

	e.Reset()
	if e.IsSet() {
		t.Fatal("IsSet() after Reset = true, want false")
	}
	if e.WaitTimeout(10 * time.Millisecond) {
		t.Error("WaitTimeout() after Reset = true, want false")
	}

	// Set and Reset are idempotent.
	e.Set()
	e.Set()
	if !e.IsSet() {
		t.Error("IsSet() after double Set = false, want true")
	}
	e.Reset()
	e.Reset()
	if e.IsSet() {
		t.Error("IsSet() after double Reset = true, want false")
	}
}

func TestEventWaitContext(t *testing.T) {
	e := NewEvent(false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.WaitContext(ctx); err != context.Canceled {
		t.Errorf("WaitContext() = %v, want %v", err, context.Canceled)
	}

	e.Set()
	if err := e.WaitContext(context.Background()); err != nil {
		t.Errorf("WaitContext() on signaled event = %v, want nil", err)
	}
}

func TestEventHandshake(t *testing.T) {
	// Two events ping-ponged between goroutines, as the draw thread uses them.
	work := NewEvent(false)
	ack := NewEvent(false)

	const rounds = 100
	var served int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range rounds {
			work.Wait()
			work.Reset()
			served++
			ack.Set()
		}
	}()

	for i := range rounds {
		ack.Reset()
		work.Set()
		if !ack.WaitTimeout(5 * time.Second) {
			t.Fatalf("round %d: no acknowledgement", i)
		}
	}
	<-done
	if served != rounds {
		t.Errorf("served = %d, want %d", served, rounds)
	}
}
