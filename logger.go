// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drawq

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/drawq/internal/logx"
)

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(logx.Nop())
}

// SetLogger configures the default logger for engines and the backends
// they open. By default, drawq produces no log output.
//
// Engines capture the logger when they are created; SetLogger does not
// affect engines that already exist. Pass nil to restore silence.
//
// Log levels used by drawq:
//   - [slog.LevelDebug]: per-pass diagnostics (decoded commands, pool hits)
//   - [slog.LevelInfo]: lifecycle events (draw thread started, backend opened)
//   - [slog.LevelWarn]: non-fatal issues (ring overrun, undrained shutdown)
//
// Example:
//
//	drawq.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(logx.OrNop(l))
}

// Logger returns the current default logger.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
