// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !linux

package drawthread

func nameThread(string) int { return 0 }
