// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drawthread

import (
	"log/slog"
	"time"
)

// DefaultThreadName names the draw OS thread when no name is given.
const DefaultThreadName = "drawq-draw"

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	clock  Clock
	budget time.Duration
	name   string
	log    *slog.Logger
}

func defaultOptions() options {
	return options{
		clock: SystemClock{},
		name:  DefaultThreadName,
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

// WithClock replaces the pacing clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithThreadName sets the OS thread name of the draw thread. Linux keeps the
// first 15 bytes.
func WithThreadName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}
