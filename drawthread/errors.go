// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drawthread

import "errors"

var (
	// ErrNotRunning is returned by Flush, Close and Exclusive when the draw
	// thread is not running.
	ErrNotRunning = errors.New("drawthread: not running")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("drawthread: already started")

	// ErrUndrained is returned by Close when commands remain in the ring
	// after the final pass.
	ErrUndrained = errors.New("drawthread: commands left undrained")
)
