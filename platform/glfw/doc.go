// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package glfw provides the rhi window collaborator on desktop platforms
// with GLFW.
//
// A Window reports its framebuffer size and whether it is still open,
// which is all the rhi core reads. It also implements
// webgpu.SurfaceSource, so the webgpu backend presents to it directly.
//
// GLFW must be driven from the main thread. Create windows and call
// PollEvents from the goroutine that runs main, after runtime.LockOSThread
// in an init function:
//
//	func init() { runtime.LockOSThread() }
//
//	func main() {
//		win, err := glfw.New(glfw.Config{Title: "demo", Width: 1280, Height: 720})
//		...
//		defer win.Close()
//		for win.PollEvents() {
//			...
//		}
//	}
package glfw
