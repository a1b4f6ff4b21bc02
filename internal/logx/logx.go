// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package logx holds the silent logger shared by drawq sub-packages.
package logx

import (
	"context"
	"log/slog"
)

// nopHandler silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var nop = slog.New(nopHandler{})

// Nop returns a logger that discards everything. Enabled reports false, so
// callers skip formatting entirely.
func Nop() *slog.Logger { return nop }

// OrNop returns l, or the nop logger when l is nil.
func OrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return nop
	}
	return l
}
