// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
)

// copyAlignment is the size granularity of queue buffer writes.
const copyAlignment = 4

func alignUp(v, a uint64) uint64 { return (v + a - 1) &^ (a - 1) }

// formats lists the texture formats the driver can create.
var formats = map[gputypes.TextureFormat]wgpu.TextureFormat{
	gputypes.TextureFormatR8Unorm:             wgpu.TextureFormatR8Unorm,
	gputypes.TextureFormatRG8Unorm:            wgpu.TextureFormatRG8Unorm,
	gputypes.TextureFormatR16Float:            wgpu.TextureFormatR16Float,
	gputypes.TextureFormatRG16Float:           wgpu.TextureFormatRG16Float,
	gputypes.TextureFormatRGBA16Float:         wgpu.TextureFormatRGBA16Float,
	gputypes.TextureFormatR32Float:            wgpu.TextureFormatR32Float,
	gputypes.TextureFormatR32Uint:             wgpu.TextureFormatR32Uint,
	gputypes.TextureFormatR32Sint:             wgpu.TextureFormatR32Sint,
	gputypes.TextureFormatRG32Float:           wgpu.TextureFormatRG32Float,
	gputypes.TextureFormatRGBA32Float:         wgpu.TextureFormatRGBA32Float,
	gputypes.TextureFormatRGBA32Uint:          wgpu.TextureFormatRGBA32Uint,
	gputypes.TextureFormatRGBA8Unorm:          wgpu.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatRGBA8UnormSrgb:      wgpu.TextureFormatRGBA8UnormSrgb,
	gputypes.TextureFormatRGBA8Sint:           wgpu.TextureFormatRGBA8Sint,
	gputypes.TextureFormatBGRA8Unorm:          wgpu.TextureFormatBGRA8Unorm,
	gputypes.TextureFormatBGRA8UnormSrgb:      wgpu.TextureFormatBGRA8UnormSrgb,
	gputypes.TextureFormatRGB10A2Unorm:        wgpu.TextureFormatRGB10A2Unorm,
	gputypes.TextureFormatStencil8:            wgpu.TextureFormatStencil8,
	gputypes.TextureFormatDepth16Unorm:        wgpu.TextureFormatDepth16Unorm,
	gputypes.TextureFormatDepth24Plus:         wgpu.TextureFormatDepth24Plus,
	gputypes.TextureFormatDepth24PlusStencil8: wgpu.TextureFormatDepth24PlusStencil8,
	gputypes.TextureFormatDepth32Float:        wgpu.TextureFormatDepth32Float,
}

func textureFormat(f gputypes.TextureFormat) (wgpu.TextureFormat, error) {
	wf, ok := formats[f]
	if !ok {
		return wgpu.TextureFormatUndefined, fmt.Errorf("%w: texture format %v", driver.ErrUnsupported, f)
	}
	return wf, nil
}

// fromTextureFormat maps a surface format back, or returns Undefined.
func fromTextureFormat(wf wgpu.TextureFormat) gputypes.TextureFormat {
	for f, w := range formats {
		if w == wf {
			return f
		}
	}
	return gputypes.TextureFormatUndefined
}

func bufferUsage(u driver.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	for _, m := range [...]struct {
		in  driver.BufferUsage
		out wgpu.BufferUsage
	}{
		{driver.BufferUsageVertex, wgpu.BufferUsageVertex},
		{driver.BufferUsageIndex, wgpu.BufferUsageIndex},
		{driver.BufferUsageUniform, wgpu.BufferUsageUniform},
		{driver.BufferUsageStorage, wgpu.BufferUsageStorage},
		{driver.BufferUsageIndirect, wgpu.BufferUsageIndirect},
		{driver.BufferUsageCopySrc, wgpu.BufferUsageCopySrc},
		{driver.BufferUsageCopyDst, wgpu.BufferUsageCopyDst},
	} {
		if u&m.in != 0 {
			out |= m.out
		}
	}
	return out
}

func textureUsage(u driver.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&driver.TextureUsageShaderRead != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&driver.TextureUsageShaderWrite != 0 {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u&(driver.TextureUsageRenderTarget|driver.TextureUsageDepthStencil) != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u&driver.TextureUsageCopySrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	if u&driver.TextureUsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	return out
}

func textureDimension(t driver.TextureType) wgpu.TextureDimension {
	switch t {
	case driver.Texture1D:
		return wgpu.TextureDimension1D
	case driver.Texture3D:
		return wgpu.TextureDimension3D
	}
	return wgpu.TextureDimension2D
}

// viewDimension is the dimension of a single-subresource view.
func viewDimension(t driver.TextureType) wgpu.TextureViewDimension {
	switch t {
	case driver.Texture1D:
		return wgpu.TextureViewDimension1D
	case driver.Texture3D:
		return wgpu.TextureViewDimension3D
	}
	return wgpu.TextureViewDimension2D
}

func clearColor(c driver.Color) wgpu.Color {
	return wgpu.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}
