// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build linux

package drawthread

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// nameThread names the calling OS thread and returns its thread id.
// The goroutine must be locked to the thread.
func nameThread(name string) int {
	if name != "" {
		// 16 bytes including the terminating NUL.
		var buf [16]byte
		copy(buf[:15], name)
		_ = unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0)
	}
	return unix.Gettid()
}
