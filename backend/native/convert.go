// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"errors"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/texel"
	"github.com/gogpu/wgpu/hal"
)

// copyAlignment is the size granularity of queue buffer writes.
const copyAlignment = 4

func alignUp(v, a uint64) uint64 { return (v + a - 1) &^ (a - 1) }

func isLost(err error) bool { return errors.Is(err, driver.ErrDeviceLost) }

func bufferUsage(u driver.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	for _, m := range [...]struct {
		in  driver.BufferUsage
		out gputypes.BufferUsage
	}{
		{driver.BufferUsageVertex, gputypes.BufferUsageVertex},
		{driver.BufferUsageIndex, gputypes.BufferUsageIndex},
		{driver.BufferUsageUniform, gputypes.BufferUsageUniform},
		{driver.BufferUsageStorage, gputypes.BufferUsageStorage},
		{driver.BufferUsageIndirect, gputypes.BufferUsageIndirect},
		{driver.BufferUsageCopySrc, gputypes.BufferUsageCopySrc},
		{driver.BufferUsageCopyDst, gputypes.BufferUsageCopyDst},
	} {
		if u&m.in != 0 {
			out |= m.out
		}
	}
	return out
}

func textureUsage(u driver.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u&driver.TextureUsageShaderRead != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u&driver.TextureUsageShaderWrite != 0 {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u&(driver.TextureUsageRenderTarget|driver.TextureUsageDepthStencil) != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	if u&driver.TextureUsageCopySrc != 0 {
		out |= gputypes.TextureUsageCopySrc
	}
	if u&driver.TextureUsageCopyDst != 0 {
		out |= gputypes.TextureUsageCopyDst
	}
	return out
}

func textureDimension(t driver.TextureType) gputypes.TextureDimension {
	switch t {
	case driver.Texture1D:
		return gputypes.TextureDimension1D
	case driver.Texture3D:
		return gputypes.TextureDimension3D
	}
	return gputypes.TextureDimension2D
}

// viewDimension is the dimension of a single-subresource view.
func viewDimension(t driver.TextureType) gputypes.TextureViewDimension {
	switch t {
	case driver.Texture1D:
		return gputypes.TextureViewDimension1D
	case driver.Texture3D:
		return gputypes.TextureViewDimension3D
	}
	return gputypes.TextureViewDimension2D
}

// subresourceExtent returns the size and origin of one mip of one array
// slice.
func subresourceExtent(desc *driver.TextureDesc, mip, slice uint32) (hal.Extent3D, hal.Origin3D, error) {
	r, err := texel.Subresource(desc, mip, slice)
	if err != nil {
		return hal.Extent3D{}, hal.Origin3D{}, err
	}
	return hal.Extent3D{Width: r.Width, Height: r.Height, DepthOrArrayLayers: r.Depth}, hal.Origin3D{Z: r.Layer}, nil
}

