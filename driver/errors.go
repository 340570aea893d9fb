// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import "errors"

// Driver errors. Backends wrap these so callers can match with errors.Is.
var (
	// ErrDeviceLost means the GPU was removed, reset or hung.
	// The device and everything created from it must be recreated.
	ErrDeviceLost = errors.New("driver: device lost")

	// ErrOutOfMemory means device or host memory could not be allocated.
	ErrOutOfMemory = errors.New("driver: out of memory")

	// ErrUnsupported is returned for operations the backend cannot do.
	ErrUnsupported = errors.New("driver: operation not supported")

	// ErrInvalidDesc is returned for malformed descriptors.
	ErrInvalidDesc = errors.New("driver: invalid descriptor")

	// ErrNotAvailable means the backend cannot be opened on this system.
	ErrNotAvailable = errors.New("driver: backend not available")
)
