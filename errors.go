// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drawq

import "errors"

// ErrClosed is returned by operations on an engine after Close.
var ErrClosed = errors.New("drawq: engine closed")
