// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"log/slog"
	"sync/atomic"
)

// silent drops every record before it is formatted.
var silent = slog.New(slog.DiscardHandler)

// defaultLogger is the logger NewDevice hands to devices opened without
// WithLogger.
var defaultLogger atomic.Pointer[slog.Logger]

func init() {
	defaultLogger.Store(silent)
}

// SetLogger sets the logger for devices opened later without WithLogger.
// Open devices keep the logger they were created with. Pass nil to go
// back to discarding output, which is the default.
//
// Levels:
//   - [slog.LevelDebug]: per-frame diagnostics (back-pressure waits,
//     allocator creation, deferred release flushes)
//   - [slog.LevelInfo]: lifecycle events (backend selected, swap chain resized)
//   - [slog.LevelWarn]: recoverable oddities (resources leaked at Close)
//   - [slog.LevelError]: pool exhaustion, native creation failures, device loss
//
// Example:
//
//	rhi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silent
	}
	defaultLogger.Store(l)
}

// Logger returns the logger set with SetLogger. It is safe for concurrent
// use.
func Logger() *slog.Logger {
	return defaultLogger.Load()
}
