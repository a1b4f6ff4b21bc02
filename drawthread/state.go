// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drawthread

// State is the lifecycle state of a Coordinator.
type State int32

const (
	// Uninitialized is the zero value; the coordinator was not built by New.
	Uninitialized State = iota

	// Initialized means New succeeded and Start has not been called.
	Initialized

	// Running means the draw thread is serving flushes.
	Running

	// Draining means the draw thread observed the exit flag and is running
	// its final pass.
	Draining

	// Terminated means the draw thread has exited.
	Terminated
)

var stateNames = [...]string{
	Uninitialized: "Uninitialized",
	Initialized:   "Initialized",
	Running:       "Running",
	Draining:      "Draining",
	Terminated:    "Terminated",
}

// String returns the state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}
