// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package rhi is a render hardware interface: a backend-agnostic core that
// owns GPU resource lifetime and command submission.
//
// # Overview
//
// A Device is opened over a native driver (Vulkan through the gogpu HAL,
// wgpu-native, or the in-memory null driver). Applications create buffers
// and textures through integer handles, record commands into a per-frame
// CommandContext, and end each frame with EndFrame, which submits the work,
// signals a frame fence and presents the swap chain.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/rhi"
//	    _ "github.com/gogpu/rhi/backend/native" // registers Vulkan
//	)
//
//	dev, err := rhi.NewDevice(rhi.WithWindow(win))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	for !win.ShouldClose() {
//	    if !dev.BeginFrame() {
//	        break // device lost
//	    }
//	    cmd := dev.CommandList()
//	    cmd.ClearRenderTarget(dev.SwapChain().CurrentBackBuffer(), rhi.Color{A: 1})
//	    if err := dev.EndFrame(); err != nil {
//	        log.Print(err)
//	        break
//	    }
//	}
//
// # Frames in flight
//
// At most RenderLatency frames are outstanding on the GPU. BeginFrame
// blocks when the limit is reached. Destroyed resources are released only
// after every frame that could reference them has retired, so handles may
// be destroyed at any time.
//
// # Device loss
//
// When a submit, present or wait reports that the device was removed or
// reset, the Device moves to the Lost state. BeginFrame then returns false,
// EndFrame returns an error wrapping driver.ErrDeviceLost, and resource
// creation fails. A lost device is never repaired in place; close it and
// open a new one.
//
// # Architecture
//
//   - Public API: Device, SwapChain, CommandContext, handles, Caps, Config
//   - Driver interface: driver (native capability set), driver/null
//   - Internal: pool (handles), descriptor (heaps), queue (fences and
//     allocators), frame (ring and deferred release), cache (views),
//     dtable (emulated heaps) and texel (upload regions) for backends
//   - Backends: backend/native, backend/webgpu
//   - Platform: platform/glfw
package rhi
