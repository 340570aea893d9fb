// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package webgpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/rhi/driver"
)

var (
	// ErrNoAdapter is returned when wgpu-native finds no adapter.
	ErrNoAdapter = errors.New("webgpu: no adapter")

	// ErrForeignObject is returned when an object created by another
	// driver is passed in.
	ErrForeignObject = errors.New("webgpu: object from another driver")
)

// wrap adds op to err and maps out-of-memory errors to the driver
// sentinel.
func wrap(op string, err error) error {
	var werr *wgpu.Error
	if errors.As(err, &werr) && werr.Type == wgpu.ErrorTypeOutOfMemory {
		return fmt.Errorf("webgpu: %s: %w: %w", op, driver.ErrOutOfMemory, err)
	}
	return fmt.Errorf("webgpu: %s: %w", op, err)
}
