// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements the rhi driver interfaces over the Pure Go
// gogpu HAL (github.com/gogpu/wgpu/hal).
//
// Importing the package registers a driver for every HAL backend that is
// compiled in. Vulkan is always imported; other HAL backends register
// when the application imports their hal packages.
//
// The HAL binds views directly, so descriptor heaps are emulated with an
// address table. Fences count HAL queue submissions. The swap chain is an
// offscreen ring of render targets: this driver renders headless and
// leaves window presentation to the webgpu backend or to the host
// application.
//
// A device that the application already owns (for example from gogpu)
// is shared with NewFromProvider.
//
// Building with the nogpu tag compiles the package empty.
package native
