// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drawq

// Register the in-tree backends so WithBackend can find them by name.
import (
	_ "github.com/gogpu/drawq/backend/halexec"
	_ "github.com/gogpu/drawq/backend/soft"
	_ "github.com/gogpu/drawq/backend/trace"
)
