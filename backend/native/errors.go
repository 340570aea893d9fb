// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"errors"
	"fmt"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/wgpu/hal"
)

// Package errors.
var (
	// ErrNoAdapter is returned when the HAL reports no adapter.
	ErrNoAdapter = errors.New("native: no GPU adapter available")

	// ErrNotHAL is returned by NewFromProvider for providers without a
	// HAL device.
	ErrNotHAL = errors.New("native: provider does not expose a HAL device")

	// ErrForeignObject is returned when an object of another driver is
	// passed in.
	ErrForeignObject = errors.New("native: object belongs to another driver")
)

// wrap annotates a HAL error and maps it onto the driver errors.
func wrap(op string, err error) error {
	switch {
	case errors.Is(err, hal.ErrDeviceLost), errors.Is(err, hal.ErrSurfaceLost), errors.Is(err, hal.ErrDriverBug):
		return fmt.Errorf("native: %s: %w: %w", op, driver.ErrDeviceLost, err)
	case errors.Is(err, hal.ErrDeviceOutOfMemory):
		return fmt.Errorf("native: %s: %w: %w", op, driver.ErrOutOfMemory, err)
	}
	return fmt.Errorf("native: %s: %w", op, err)
}
