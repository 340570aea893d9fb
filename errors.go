// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"errors"

	"github.com/gogpu/rhi/driver"
)

// Errors returned by Device.
var (
	// ErrDeviceLost is driver.ErrDeviceLost, re-exported for convenience.
	ErrDeviceLost = driver.ErrDeviceLost

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("rhi: device closed")

	// ErrPoolExhausted is returned when a handle pool is full.
	ErrPoolExhausted = errors.New("rhi: handle pool exhausted")

	// ErrNoBackend is returned when no registered backend is available.
	ErrNoBackend = errors.New("rhi: no backend available")

	// ErrInvalidDescriptor is returned for malformed creation parameters.
	ErrInvalidDescriptor = errors.New("rhi: invalid descriptor")

	// ErrNoSwapChain is returned by Resize on a headless device.
	ErrNoSwapChain = errors.New("rhi: device has no swap chain")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("rhi: invalid config")
)
