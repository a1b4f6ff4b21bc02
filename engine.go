// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drawq

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/drawq/backend"
	"github.com/gogpu/drawq/command"
	"github.com/gogpu/drawq/drawthread"
	"github.com/gogpu/drawq/resource"
	"github.com/gogpu/drawq/rtpool"
)

// Stats is a snapshot of engine counters.
type Stats struct {
	// Draw holds the draw thread counters.
	Draw drawthread.Stats

	// Pool holds the render-target pool counters.
	Pool rtpool.Stats

	// Pending is the number of ring slots encoded but not yet executed.
	Pending int

	// Retained is the number of resource references held by pending
	// commands.
	Retained int
}

// Engine owns one command pipeline: the ring, its encoder, the draw thread
// that drains it into an executor, and the render-target pool whose returns
// are deferred through the draw thread.
//
// An Engine is used by one producer goroutine for Encoder and Flush. Pool,
// AddTask, Exclusive and Stats may be called from any goroutine.
type Engine struct {
	log *slog.Logger

	exec    command.Executor
	backend backend.Backend // nil unless opened by the engine
	name    string

	buf   *command.Buffer
	enc   *command.Encoder
	coord *drawthread.Coordinator
	pool  *rtpool.Pool

	closed atomic.Bool
}

// New creates an engine. Unless WithExecutor is given it opens a backend
// from the registry, the best available one by default. The draw thread is
// not running until Start.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = Logger()
	}
	e := &Engine{log: o.log}

	if o.execSet {
		e.exec = o.exec
		e.name = executorName(o.exec)
	} else {
		cfg := o.backendCfg
		if cfg.Logger == nil {
			cfg.Logger = o.log
		}
		b, err := backend.Open(o.backendName, cfg)
		if err != nil {
			return nil, fmt.Errorf("drawq: %w", err)
		}
		e.exec, e.backend, e.name = b, b, b.Name()
	}

	alloc := o.alloc
	if !o.allocSet {
		alloc, _ = e.exec.(resource.Allocator)
	}

	if e.exec != nil {
		e.buf = command.NewBuffer(o.bufferOptions()...)
	}
	e.coord = drawthread.New(e.buf, e.exec, o.coordinatorOptions()...)
	e.enc = command.NewEncoder(e.buf,
		command.WithOverrunPolicy(o.policy),
		command.WithFlusher(e.coord),
		command.WithLogger(o.log))
	e.pool = rtpool.New(alloc,
		rtpool.WithTaskQueue(e.coord),
		rtpool.WithLogger(o.log))
	return e, nil
}

func executorName(exec command.Executor) string {
	switch x := exec.(type) {
	case nil:
		return "none"
	case interface{ Name() string }:
		return x.Name()
	default:
		return fmt.Sprintf("%T", exec)
	}
}

func (e *Engine) disabled() bool {
	return e == nil || e.exec == nil
}

// Start spawns the draw thread.
func (e *Engine) Start() error {
	if e.disabled() {
		return nil
	}
	if e.closed.Load() {
		return ErrClosed
	}
	if err := e.coord.Start(); err != nil {
		return err
	}
	e.log.Info("drawq: engine started", "backend", e.name, "slots", e.buf.Cap())
	return nil
}

// Encoder returns the producer-side command encoder.
func (e *Engine) Encoder() *command.Encoder {
	if e == nil {
		return nil
	}
	return e.enc
}

// Flush hands every command encoded so far to the draw thread. It returns
// once the draw thread has taken them, without waiting for execution.
func (e *Engine) Flush() error {
	if e.disabled() {
		return nil
	}
	if e.closed.Load() {
		return ErrClosed
	}
	return e.coord.Flush()
}

// Finish flushes and waits until every command encoded so far has executed.
func (e *Engine) Finish() error {
	if e.disabled() {
		return nil
	}
	if err := e.Flush(); err != nil {
		return err
	}
	// Tasks run at the start of a pass, so this one runs after the pass
	// started by the first Flush has completed.
	done := make(chan struct{})
	e.coord.AddTask(func() { close(done) })
	if err := e.coord.Flush(); err != nil {
		return err
	}
	<-done
	return nil
}

// AddTask queues fn to run once on the draw thread before the commands of
// the next pass.
func (e *Engine) AddTask(fn func()) {
	if e.disabled() {
		return
	}
	e.coord.AddTask(fn)
}

// Exclusive runs fn while no draw pass is in progress, with direct access
// to the executor. Commands encoded inside fn on a full ring fail with
// command.ErrRingFull whatever the overrun policy, since the draw thread
// cannot drain it until fn returns.
func (e *Engine) Exclusive(fn func(command.Executor)) error {
	if e.disabled() {
		return nil
	}
	return e.coord.Exclusive(fn)
}

// Pool returns the render-target pool.
func (e *Engine) Pool() *rtpool.Pool {
	if e == nil {
		return nil
	}
	return e.pool
}

// Executor returns the executor commands are decoded into.
func (e *Engine) Executor() command.Executor {
	if e == nil {
		return nil
	}
	return e.exec
}

// Backend returns the backend the engine opened, or nil if the executor
// was injected with WithExecutor.
func (e *Engine) Backend() backend.Backend {
	if e == nil {
		return nil
	}
	return e.backend
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	if e.disabled() {
		return Stats{}
	}
	return Stats{
		Draw:     e.coord.Stats(),
		Pool:     e.pool.Stats(),
		Pending:  e.buf.Pending(),
		Retained: e.buf.Retained(),
	}
}

// Close drains the ring in a final pass, stops the draw thread, destroys
// the pool's free render targets and closes the backend the engine opened.
// Targets still on loan are dropped from the pool when released.
//
// Close returns drawthread.ErrUndrained if commands were encoded after the
// final pass began, and ErrClosed on a second call.
func (e *Engine) Close() error {
	if e.disabled() {
		return nil
	}
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	err := e.coord.Close()

	freed := e.pool.Close()
	if s := e.pool.Stats(); s.Allocated > 0 {
		e.log.Warn("drawq: render targets outstanding at close",
			"allocated", s.Allocated, "pending", s.Pending)
	}
	if e.backend != nil {
		e.backend.Close()
	}
	e.log.Info("drawq: engine closed", "backend", e.name, "targets_freed", freed)
	return err
}

var (
	_ command.Flusher      = (*drawthread.Coordinator)(nil)
	_ command.HoldReporter = (*drawthread.Coordinator)(nil)
	_ rtpool.TaskQueue     = (*drawthread.Coordinator)(nil)
)
