// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package texel computes texel sizes and subresource regions for
// uploads.
package texel

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
)

// BytesPerPixel returns the texel size of an uncompressed format, or 0 for
// compressed and unknown formats.
func BytesPerPixel(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Snorm,
		gputypes.TextureFormatR8Uint, gputypes.TextureFormatR8Sint,
		gputypes.TextureFormatStencil8:
		return 1
	case gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatRG8Snorm,
		gputypes.TextureFormatRG8Uint, gputypes.TextureFormatRG8Sint,
		gputypes.TextureFormatR16Float, gputypes.TextureFormatR16Unorm,
		gputypes.TextureFormatR16Uint, gputypes.TextureFormatR16Sint,
		gputypes.TextureFormatDepth16Unorm:
		return 2
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatRGBA8Snorm, gputypes.TextureFormatRGBA8Uint,
		gputypes.TextureFormatRGBA8Sint, gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatBGRA8UnormSrgb, gputypes.TextureFormatRG16Float,
		gputypes.TextureFormatRG16Uint, gputypes.TextureFormatRG16Sint,
		gputypes.TextureFormatR32Float, gputypes.TextureFormatR32Uint,
		gputypes.TextureFormatR32Sint, gputypes.TextureFormatRGB10A2Unorm,
		gputypes.TextureFormatRG11B10Ufloat, gputypes.TextureFormatDepth32Float,
		gputypes.TextureFormatDepth24Plus, gputypes.TextureFormatDepth24PlusStencil8:
		return 4
	case gputypes.TextureFormatRGBA16Float, gputypes.TextureFormatRGBA16Uint,
		gputypes.TextureFormatRGBA16Sint, gputypes.TextureFormatRG32Float,
		gputypes.TextureFormatRG32Uint, gputypes.TextureFormatRG32Sint:
		return 8
	case gputypes.TextureFormatRGBA32Float, gputypes.TextureFormatRGBA32Uint,
		gputypes.TextureFormatRGBA32Sint:
		return 16
	}
	return 0
}

// Region is the part of a texture covered by one subresource.
type Region struct {
	Width  uint32
	Height uint32

	// Depth is the depth of a 3D mip, and 1 otherwise.
	Depth uint32

	// Layer is the array slice written, always 0 for 3D textures.
	Layer uint32
}

// Subresource returns the region of one mip of one array slice. 3D
// textures have no slices; the whole mip volume is covered.
func Subresource(desc *driver.TextureDesc, mip, slice uint32) (Region, error) {
	if mip >= max(desc.MipLevels, 1) {
		return Region{}, fmt.Errorf("%w: mip %d out of range", driver.ErrInvalidDesc, mip)
	}
	r := Region{
		Width:  max(desc.Width>>mip, 1),
		Height: max(desc.Height>>mip, 1),
		Depth:  1,
	}
	if desc.Type == driver.Texture1D {
		r.Height = 1
	}
	if desc.Type == driver.Texture3D {
		if slice != 0 {
			return Region{}, fmt.Errorf("%w: 3D texture has no slice %d", driver.ErrInvalidDesc, slice)
		}
		r.Depth = max(desc.DepthOrLayers>>mip, 1)
		return r, nil
	}
	if slice >= max(desc.DepthOrLayers, 1) {
		return Region{}, fmt.Errorf("%w: slice %d out of range", driver.ErrInvalidDesc, slice)
	}
	r.Layer = slice
	return r, nil
}

// Size returns the byte size of r in format f, or 0 if f has no fixed
// texel size.
func (r Region) Size(f gputypes.TextureFormat) uint64 {
	return uint64(r.Width) * uint64(r.Height) * uint64(r.Depth) * uint64(BytesPerPixel(f))
}

// ViewLayer validates a single-subresource view of a texture and returns
// the array layer it covers. Render target and depth views need the
// matching texture usage.
func ViewLayer(td *driver.TextureDesc, vd *driver.ViewDesc) (uint32, error) {
	if vd.MipLevel >= max(td.MipLevels, 1) {
		return 0, fmt.Errorf("%w: mip %d out of range", driver.ErrInvalidDesc, vd.MipLevel)
	}
	layer := vd.ArraySlice
	if td.Type == driver.Texture3D {
		layer = 0
	} else if layer >= max(td.DepthOrLayers, 1) {
		return 0, fmt.Errorf("%w: array slice %d out of range", driver.ErrInvalidDesc, layer)
	}
	switch vd.Kind {
	case driver.ViewRenderTarget:
		if td.Usage&driver.TextureUsageRenderTarget == 0 {
			return 0, fmt.Errorf("%w: texture is not a render target", driver.ErrInvalidDesc)
		}
	case driver.ViewDepthStencil:
		if td.Usage&driver.TextureUsageDepthStencil == 0 {
			return 0, fmt.Errorf("%w: texture is not a depth target", driver.ErrInvalidDesc)
		}
	}
	return layer, nil
}
