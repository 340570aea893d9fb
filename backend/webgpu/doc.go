// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package webgpu implements the rhi driver interfaces over wgpu-native
// through github.com/cogentcore/webgpu.
//
// Importing the package registers the WebGPU backend. Unlike the native
// driver it presents to real windows: a window that implements
// SurfaceSource (such as platform/glfw.Window) gets a surface swap chain,
// any other window an offscreen ring.
//
// WebGPU binds resources directly, so descriptor heaps are emulated with
// an address table. Fences count queue submissions and retire them
// through Device.Poll.
//
// Building with the nogpu tag compiles the package empty.
package webgpu
