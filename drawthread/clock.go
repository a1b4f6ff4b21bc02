// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drawthread

import "time"

// Clock is the time source used for frame pacing.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep calls time.Sleep.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// pacer is a fixed-rate frame limiter.
type pacer struct {
	clock  Clock
	budget time.Duration
}

// wait sleeps out the rest of the frame budget for a frame that started at
// start and returns the time slept. A zero budget disables pacing.
func (p pacer) wait(start time.Time) time.Duration {
	if p.budget <= 0 {
		return 0
	}
	d := p.budget - p.clock.Now().Sub(start)
	if d <= 0 {
		return 0
	}
	p.clock.Sleep(d)
	return d
}
