// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drawq

import (
	"log/slog"
	"time"

	"github.com/gogpu/drawq/backend"
	"github.com/gogpu/drawq/command"
	"github.com/gogpu/drawq/drawthread"
	"github.com/gogpu/drawq/resource"
)

// Option configures an Engine during creation.
// Use functional options to customize Engine behavior.
//
// Example:
//
//	// Best registered backend at 1920x1080
//	eng, err := drawq.New()
//
//	// CPU backend at 800x600, paced to 60 frames per second
//	eng, err := drawq.New(
//		drawq.WithBackend("soft"),
//		drawq.WithBackendConfig(backend.Config{Width: 800, Height: 600}),
//		drawq.WithTargetFPS(60),
//	)
type Option func(*options)

// options holds optional configuration for Engine creation.
type options struct {
	exec    command.Executor
	execSet bool

	backendName string
	backendCfg  backend.Config

	alloc    resource.Allocator
	allocSet bool

	capacity int
	retain   int
	policy   command.OverrunPolicy

	budget time.Duration
	clock  drawthread.Clock
	thread string

	log *slog.Logger
}

// defaultOptions returns the default engine options.
func defaultOptions() options {
	return options{
		policy: command.OverrunFlush,
		thread: drawthread.DefaultThreadName,
	}
}

// WithExecutor injects the executor commands are decoded into. The engine
// does not own it and never closes it. If exec also implements
// resource.Allocator it backs the render-target pool unless WithAllocator
// says otherwise.
//
// A nil executor yields an engine whose every operation does nothing.
func WithExecutor(exec command.Executor) Option {
	return func(o *options) {
		o.exec = exec
		o.execSet = true
	}
}

// WithBackend selects a registered backend by name. The engine opens it in
// New and closes it in Close. An empty name, the default, selects the best
// registered backend. WithExecutor takes precedence.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backendName = name
	}
}

// WithBackendConfig sets the configuration passed to the backend's Init.
// A nil Logger is replaced by the engine logger.
func WithBackendConfig(cfg backend.Config) Option {
	return func(o *options) {
		o.backendCfg = cfg
	}
}

// WithAllocator sets the allocator backing the render-target pool.
func WithAllocator(a resource.Allocator) Option {
	return func(o *options) {
		o.alloc = a
		o.allocSet = true
	}
}

// WithCapacity sets the command ring capacity in 64-byte slots.
func WithCapacity(slots int) Option {
	return func(o *options) {
		o.capacity = slots
	}
}

// WithRetainCapacity sets how many resource references may be pending in
// the ring at once.
func WithRetainCapacity(n int) Option {
	return func(o *options) {
		o.retain = n
	}
}

// WithOverrunPolicy sets what the encoder does when the ring is full.
// The default is command.OverrunFlush.
func WithOverrunPolicy(p command.OverrunPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithFrameBudget sets the minimum duration of one draw pass. Zero, the
// default, disables pacing.
func WithFrameBudget(d time.Duration) Option {
	return func(o *options) {
		o.budget = max(d, 0)
	}
}

// WithTargetFPS sets the frame budget to 1/fps. fps <= 0 disables pacing.
func WithTargetFPS(fps int) Option {
	return func(o *options) {
		if fps <= 0 {
			o.budget = 0
			return
		}
		o.budget = time.Second / time.Duration(fps)
	}
}

// WithClock replaces the pacing clock, typically with a fake in tests.
func WithClock(c drawthread.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithThreadName sets the OS thread name of the draw thread.
func WithThreadName(name string) Option {
	return func(o *options) {
		o.thread = name
	}
}

// WithLogger sets the engine logger. The default is Logger() at the time
// New is called.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func (o *options) bufferOptions() []command.BufferOption {
	var opts []command.BufferOption
	if o.capacity > 0 {
		opts = append(opts, command.WithCapacity(o.capacity))
	}
	if o.retain > 0 {
		opts = append(opts, command.WithRetainCapacity(o.retain))
	}
	return opts
}

func (o *options) coordinatorOptions() []drawthread.Option {
	opts := []drawthread.Option{
		drawthread.WithFrameBudget(o.budget),
		drawthread.WithThreadName(o.thread),
		drawthread.WithLogger(o.log),
	}
	if o.clock != nil {
		opts = append(opts, drawthread.WithClock(o.clock))
	}
	return opts
}
