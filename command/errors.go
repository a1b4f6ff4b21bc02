// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package command

import "errors"

var (
	// ErrRingFull is returned when a command does not fit in the free part
	// of the ring and the overrun policy does not wait for space.
	ErrRingFull = errors.New("command: ring buffer full")

	// ErrCommandTooLarge is returned when a single command needs more than
	// half of the ring.
	ErrCommandTooLarge = errors.New("command: command larger than ring allows")

	// ErrUnknownCommand is returned when encoding a value that is not one of
	// the command types of this package.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrCorrupt is returned by Decode when a record header is invalid.
	ErrCorrupt = errors.New("command: corrupt record")
)
