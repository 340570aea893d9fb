// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu && ((darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd)

package main

import (
	"runtime"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/platform/glfw"
)

func init() { runtime.LockOSThread() }

func openWindow(windowed bool, width, height uint32) (driver.Window, func() bool, func(), error) {
	if !windowed {
		return headless(width, height)
	}
	win, err := glfw.New(glfw.Config{Title: "rhidemo", Width: int(width), Height: int(height)})
	if err != nil {
		return nil, nil, nil, err
	}
	return win, win.PollEvents, win.Close, nil
}
