// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package command

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/drawq/internal/ring"
	"github.com/gogpu/drawq/resource"
)

// DefaultCapacity is the default ring capacity in slots (256 KiB).
const DefaultCapacity = 4096

// BufferOption configures a Buffer.
type BufferOption func(*bufferOptions)

type bufferOptions struct {
	capacity       int
	retainCapacity int
}

// WithCapacity sets the ring capacity in slots. Values below 2 are raised
// to 2.
func WithCapacity(slots int) BufferOption {
	return func(o *bufferOptions) {
		o.capacity = max(slots, 2)
	}
}

// WithRetainCapacity sets the number of resource references that may be
// pending at once. The default is twice the slot capacity.
func WithRetainCapacity(n int) BufferOption {
	return func(o *bufferOptions) {
		o.retainCapacity = max(n, maxRefsPerCommand)
	}
}

// Buffer is the command ring shared by one producer and one consumer.
//
// The producer side (AddCommand) must be serialized by the caller; the
// Encoder does this with its mutex. The consumer side (Decode) must only
// run on one goroutine at a time. Either side may run concurrently with
// the other.
type Buffer struct {
	slots *ring.Ring[byte]
	refs  *ring.Ring[resource.Counted]

	spaceMu   sync.Mutex
	spaceCond *sync.Cond

	errMu sync.Mutex
	err   error
}

// NewBuffer creates a command ring.
func NewBuffer(opts ...BufferOption) *Buffer {
	o := bufferOptions{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retainCapacity == 0 {
		o.retainCapacity = 2 * o.capacity
	}
	b := &Buffer{
		slots: ring.New[byte](o.capacity * SlotSize),
		refs:  ring.New[resource.Counted](o.retainCapacity),
	}
	b.spaceCond = sync.NewCond(&b.spaceMu)
	return b
}

// Cap returns the ring capacity in slots.
func (b *Buffer) Cap() int { return b.slots.Cap() / SlotSize }

// MaxCommandSlots returns the largest record, in slots, the ring accepts.
func (b *Buffer) MaxCommandSlots() int { return b.Cap() / 2 }

// Pending returns the number of published slots not yet decoded.
func (b *Buffer) Pending() int { return b.slots.Len() / SlotSize }

// Retained returns the number of resource references held for pending
// commands.
func (b *Buffer) Retained() int { return b.refs.Len() }

// Boundary returns the current published push cursor in bytes. A decode
// pass given this value consumes every command added so far.
func (b *Buffer) Boundary() uint64 { return b.slots.Head() }

// Consumed returns the pull cursor in bytes.
func (b *Buffer) Consumed() uint64 { return b.slots.Tail() }

// Err returns the sticky error of the buffer, if any.
func (b *Buffer) Err() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.err
}

// TakeErr returns the sticky error and clears it.
func (b *Buffer) TakeErr() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	err := b.err
	b.err = nil
	return err
}

func (b *Buffer) setErr(err error) {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	if b.err == nil {
		b.err = err
	}
}

// hasSpill reports whether records of type t carry a spill descriptor.
func hasSpill(t Type) bool {
	switch t {
	case TypeUpdateBuffer, TypeSetTransform, TypePushDebugEvent, TypeInsertDebugMarker:
		return true
	}
	return false
}

// AddCommand encodes c into the ring, retains every resource it binds and
// publishes it. On error nothing is published and no reference is kept.
// Producer only.
func (b *Buffer) AddCommand(c Command) error {
	if c == nil {
		return ErrUnknownCommand
	}
	t := c.Type()
	spill := spillSize(c)
	n := slotsFor(spill)
	if n > b.MaxCommandSlots() {
		return fmt.Errorf("%w: %s needs %d slots", ErrCommandTooLarge, t, n)
	}

	start, pad, err := b.slots.Reserve(n * SlotSize)
	if err != nil {
		return mapRingErr(err)
	}
	if pad > 0 {
		putHeader(b.slots.Span(start-uint64(pad), SlotSize), header{typ: TypeNop, next: uint32(pad / SlotSize)})
	}

	span := b.slots.Span(start, n*SlotSize)
	slot := span[:SlotSize]
	clear(slot)

	var retained [maxRefsPerCommand]resource.Counted
	count := 0
	var retainErr error
	w := writer{
		inline: slot[headerSize:],
		spill:  span[SlotSize : SlotSize+spill],
		retain: func(r resource.Counted) uint32 {
			if retainErr != nil {
				return noRef
			}
			if count == len(retained) {
				retainErr = fmt.Errorf("%w: %s binds too many resources", ErrCommandTooLarge, t)
				return noRef
			}
			pos, _, err := b.refs.Reserve(1)
			if err != nil {
				retainErr = mapRingErr(err)
				return noRef
			}
			*b.refs.At(pos) = r
			r.AddReferenceCounter()
			retained[count] = r
			count++
			return uint32(b.refs.Index(pos))
		},
	}
	if hasSpill(t) {
		w.u32(1)
		w.u32(uint32(spill))
	}

	err = encode(&w, c)
	if err == nil {
		err = retainErr
	}
	if err != nil {
		for i := range count {
			retained[i].SubReferenceCounter()
		}
		b.refs.Rollback()
		b.slots.Rollback()
		return err
	}

	putHeader(slot, header{typ: t, refCount: uint16(count), next: uint32(n)})
	b.refs.Publish()
	b.slots.Publish()
	return nil
}

func mapRingErr(err error) error {
	switch {
	case errors.Is(err, ring.ErrFull):
		return ErrRingFull
	case errors.Is(err, ring.ErrTooLarge):
		return ErrCommandTooLarge
	default:
		return err
	}
}

// Decode executes every command in [Consumed(), boundary) in order and
// returns how many were executed. A boundary beyond the published cursor
// is clamped to it. After each command its retained references are
// dropped and its slots are released to the producer.
//
// With a nil exec the commands are discarded without executing. Consumer
// only.
func (b *Buffer) Decode(boundary uint64, exec Executor) (int, error) {
	if head := b.slots.Head(); boundary > head {
		boundary = head
	}
	defer b.signalSpace()

	n := 0
	for pos := b.slots.Tail(); pos < boundary; {
		slot := b.slots.Span(pos, SlotSize)
		h := readHeader(slot)
		if h.next == 0 {
			return n, fmt.Errorf("%w: zero length %s record at %d", ErrCorrupt, h.typ, pos)
		}
		next := pos + uint64(h.next)*SlotSize

		if h.typ != TypeNop {
			c, err := b.decodeRecord(pos, h, slot)
			if err != nil {
				return n, err
			}
			if exec != nil {
				Execute(exec, c)
			}
			b.release(int(h.refCount))
			n++
		}

		b.slots.Release(next)
		pos = next
	}
	return n, nil
}

func (b *Buffer) decodeRecord(pos uint64, h header, slot []byte) (Command, error) {
	r := reader{
		inline: slot[headerSize:],
		lookup: func(idx uint32) resource.Counted {
			return *b.refs.At(uint64(idx))
		},
	}
	if hasSpill(h.typ) {
		off, size := r.u32(), r.u32()
		if off == 0 || off+uint32((size+SlotSize-1)/SlotSize) > h.next {
			return nil, fmt.Errorf("%w: spill [%d,+%d) outside %s record", ErrCorrupt, off, size, h.typ)
		}
		r.spill = b.slots.Span(pos+uint64(off)*SlotSize, int(size))
	}
	return decode(&r, h.typ)
}

// release drops the oldest n retained references.
func (b *Buffer) release(n int) {
	if n == 0 {
		return
	}
	tail := b.refs.Tail()
	for i := range n {
		p := b.refs.At(tail + uint64(i))
		r := *p
		*p = nil
		if r != nil {
			r.SubReferenceCounter()
		}
	}
	b.refs.Release(tail + uint64(n))
}

func (b *Buffer) signalSpace() {
	b.spaceMu.Lock()
	b.spaceCond.Broadcast()
	b.spaceMu.Unlock()
}

// WaitConsumed blocks until the consumer has decoded everything before
// boundary. The caller must know a decode pass covering boundary will run.
func (b *Buffer) WaitConsumed(boundary uint64) {
	b.spaceMu.Lock()
	defer b.spaceMu.Unlock()
	for b.slots.Tail() < boundary {
		b.spaceCond.Wait()
	}
}
