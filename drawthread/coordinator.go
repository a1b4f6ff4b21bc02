// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package drawthread runs the consumer side of a command ring on a
// dedicated OS thread.
//
// The producer hands work over with Flush, a two-event handshake: it
// snapshots the ring boundary, sets workReady and waits on handoffAck. The
// draw thread wakes, reads the boundary, acknowledges, and then runs queued
// tasks followed by every command up to the boundary. Commands added after
// the snapshot wait for the next Flush.
//
//	producer                 draw thread
//	boundary = head
//	workReady.Set()  ───►    workReady.Wait(); Reset()
//	handoffAck.Wait() ◄───   read boundary; handoffAck.Set()
//	(encodes next frame)     tasks, Decode(boundary), pace
package drawthread

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/drawq/command"
	"github.com/gogpu/drawq/internal/logx"
	"github.com/gogpu/drawq/internal/syncx"
)

// Stats is a snapshot of coordinator counters.
type Stats struct {
	// Frames is the number of completed draw passes.
	Frames uint64

	// Commands is the number of executed commands.
	Commands uint64

	// Tasks is the number of one-shot tasks run.
	Tasks uint64

	// LastFrame is the duration of the most recent pass, pacing excluded.
	LastFrame time.Duration

	// LastSleep is the pacing sleep after the most recent pass.
	LastSleep time.Duration
}

// Coordinator owns the draw thread.
//
// Thread safety: Flush and Close are serialized with each other. AddTask,
// Exclusive, State and Stats may be called from any goroutine.
type Coordinator struct {
	buf  *command.Buffer
	exec command.Executor

	// workReady wakes the draw thread; handoffAck releases the producer.
	workReady  syncx.Event
	handoffAck syncx.Event

	// callMu serializes Flush and Close.
	callMu sync.Mutex

	// flushMu is held by the draw thread while it runs tasks and commands,
	// and by Exclusive.
	flushMu sync.Mutex

	// exclusive is set while Exclusive holds flushMu.
	exclusive atomic.Bool

	tasksMu     sync.Mutex
	tasks       []func()
	tasksClosed bool

	// boundary and exit are written by the producer before workReady is set.
	boundary atomic.Uint64
	exit     atomic.Bool

	state atomic.Int32
	done  chan struct{}

	errMu sync.Mutex
	err   error

	pacer pacer
	name  string
	log   *slog.Logger

	frames    atomic.Uint64
	commands  atomic.Uint64
	taskCount atomic.Uint64
	lastFrame atomic.Int64
	lastSleep atomic.Int64
}

// New creates a coordinator that decodes buf into exec. The draw thread is
// not started until Start.
//
// A nil exec yields a coordinator whose every operation is a no-op.
func New(buf *command.Buffer, exec command.Executor, opts ...Option) *Coordinator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := &Coordinator{
		buf:   buf,
		exec:  exec,
		done:  make(chan struct{}),
		pacer: pacer{clock: o.clock, budget: o.budget},
		name:  o.name,
		log:   logx.OrNop(o.log),
	}
	c.state.Store(int32(Initialized))
	return c
}

func (c *Coordinator) disabled() bool {
	return c == nil || c.exec == nil || c.buf == nil
}

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	if c == nil {
		return Uninitialized
	}
	return State(c.state.Load())
}

// Stats returns a snapshot of the coordinator counters.
func (c *Coordinator) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Frames:    c.frames.Load(),
		Commands:  c.commands.Load(),
		Tasks:     c.taskCount.Load(),
		LastFrame: time.Duration(c.lastFrame.Load()),
		LastSleep: time.Duration(c.lastSleep.Load()),
	}
}

// Start spawns the draw thread.
func (c *Coordinator) Start() error {
	if c.disabled() {
		return nil
	}
	if !c.state.CompareAndSwap(int32(Initialized), int32(Running)) {
		if c.State() == Terminated {
			return ErrNotRunning
		}
		return ErrAlreadyStarted
	}
	go c.run()
	return nil
}

// Flush hands every command encoded so far to the draw thread and returns
// once the draw thread has taken the boundary. It does not wait for the
// commands to execute.
//
// Flush returns, and clears, the first encoding or decoding error since the
// previous Flush.
func (c *Coordinator) Flush() error {
	if c.disabled() {
		return nil
	}
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if c.State() != Running {
		return ErrNotRunning
	}
	c.handoff(false)
	return c.takeErr()
}

// Close runs a final pass over every command encoded so far, stops the draw
// thread and waits for it to exit. A backend call that never returns makes
// Close hang.
//
// Close returns ErrUndrained if commands were encoded after the final
// boundary was taken, or if the thread was never started with commands
// pending.
func (c *Coordinator) Close() error {
	if c.disabled() {
		return nil
	}
	c.callMu.Lock()
	defer c.callMu.Unlock()

	switch c.State() {
	case Running:
		c.handoff(true)
		<-c.done
	case Initialized:
		c.state.Store(int32(Terminated))
		c.closeTasks()
		close(c.done)
	default:
		return ErrNotRunning
	}

	err := c.takeErr()
	if n := c.buf.Pending(); n > 0 {
		c.log.Warn("drawthread: closed with pending commands", "slots", n)
		err = errors.Join(err, fmt.Errorf("%w: %d slots", ErrUndrained, n))
	}
	return err
}

// handoff performs the two-event handshake.
func (c *Coordinator) handoff(exit bool) {
	c.boundary.Store(c.buf.Boundary())
	if exit {
		c.exit.Store(true)
	}
	c.handoffAck.Reset()
	c.workReady.Set()
	c.handoffAck.Wait()
}

// AddTask queues fn to run once on the draw thread at the start of the next
// pass, before any command of that pass. Tasks run in the order added.
// Tasks still queued when the coordinator stops run during Close; tasks
// added after that are dropped.
func (c *Coordinator) AddTask(fn func()) {
	c.TryAddTask(fn)
}

// TryAddTask is AddTask reporting whether fn was queued. It returns false
// on a coordinator without an executor and once Close has run the last
// tasks.
func (c *Coordinator) TryAddTask(fn func()) bool {
	if c.disabled() || fn == nil {
		return false
	}
	c.tasksMu.Lock()
	defer c.tasksMu.Unlock()
	if c.tasksClosed {
		return false
	}
	c.tasks = append(c.tasks, fn)
	return true
}

// PendingTasks returns the number of queued tasks.
func (c *Coordinator) PendingTasks() int {
	if c.disabled() {
		return 0
	}
	c.tasksMu.Lock()
	defer c.tasksMu.Unlock()
	return len(c.tasks)
}

// Exclusive runs fn on the calling goroutine while no draw pass is in
// progress. fn may call the executor directly.
//
// The draw thread cannot decode while fn runs, so an encoder flushing
// through this coordinator reports a full ring as ErrRingFull instead of
// waiting for space.
func (c *Coordinator) Exclusive(fn func(command.Executor)) error {
	if c.disabled() || fn == nil {
		return nil
	}
	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	if c.State() == Terminated {
		return ErrNotRunning
	}
	c.exclusive.Store(true)
	defer c.exclusive.Store(false)
	fn(c.exec)
	return nil
}

// ConsumerHeld reports whether an Exclusive call is holding off the draw
// thread.
func (c *Coordinator) ConsumerHeld() bool {
	return c != nil && c.exclusive.Load()
}

func (c *Coordinator) run() {
	// The thread is dedicated to this goroutine and exits with it.
	runtime.LockOSThread()
	defer close(c.done)

	tid := nameThread(c.name)
	c.log.Info("drawthread: started", "name", c.name, "tid", tid)

	for {
		c.workReady.Wait()
		c.workReady.Reset()
		boundary := c.boundary.Load()
		exiting := c.exit.Load()
		if exiting {
			c.state.Store(int32(Draining))
		}
		c.handoffAck.Set()

		c.pass(boundary, !exiting)

		if exiting {
			c.flushMu.Lock()
			c.taskCount.Add(uint64(c.closeTasks()))
			c.flushMu.Unlock()
			c.state.Store(int32(Terminated))
			c.handoffAck.Set()
			c.log.Info("drawthread: stopped", "name", c.name, "frames", c.frames.Load())
			return
		}
	}
}

// pass runs queued tasks and decodes up to boundary. With pace set it then
// sleeps out the rest of the frame budget.
func (c *Coordinator) pass(boundary uint64, pace bool) {
	start := c.pacer.clock.Now()

	c.flushMu.Lock()
	tasks := c.runTasks()
	n, err := c.buf.Decode(boundary, c.exec)
	c.flushMu.Unlock()

	if err != nil {
		c.log.Error("drawthread: decode failed", "err", err, "executed", n)
		c.setErr(err)
	}

	elapsed := c.pacer.clock.Now().Sub(start)
	c.frames.Add(1)
	c.commands.Add(uint64(n))
	c.taskCount.Add(uint64(tasks))
	c.lastFrame.Store(int64(elapsed))

	var slept time.Duration
	if pace {
		slept = c.pacer.wait(start)
	}
	c.lastSleep.Store(int64(slept))

	c.log.Debug("drawthread: pass",
		"commands", n,
		"tasks", tasks,
		"elapsed", elapsed,
		"sleep", slept)
}

// closeTasks stops accepting tasks and runs the ones still queued.
func (c *Coordinator) closeTasks() int {
	c.tasksMu.Lock()
	c.tasksClosed = true
	c.tasksMu.Unlock()
	return c.runTasks()
}

// runTasks swaps out the task queue and runs each task once.
func (c *Coordinator) runTasks() int {
	c.tasksMu.Lock()
	tasks := c.tasks
	c.tasks = nil
	c.tasksMu.Unlock()

	for i, fn := range tasks {
		fn()
		tasks[i] = nil
	}
	return len(tasks)
}

func (c *Coordinator) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Coordinator) takeErr() error {
	c.errMu.Lock()
	decodeErr := c.err
	c.err = nil
	c.errMu.Unlock()
	return errors.Join(c.buf.TakeErr(), decodeErr)
}
