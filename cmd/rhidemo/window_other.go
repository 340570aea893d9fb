// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build nogpu || !((darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd)

package main

import (
	"errors"

	"github.com/gogpu/rhi/driver"
)

func openWindow(windowed bool, width, height uint32) (driver.Window, func() bool, func(), error) {
	if windowed {
		return nil, nil, nil, errors.New("rhidemo: windows are not supported on this platform")
	}
	return headless(width, height)
}
