// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
)

// Backend identifies a native graphics API.
type Backend = driver.Backend

// Backends.
const (
	BackendNull   = driver.BackendNull
	BackendD3D11  = driver.BackendD3D11
	BackendD3D12  = driver.BackendD3D12
	BackendVulkan = driver.BackendVulkan
	BackendOpenGL = driver.BackendOpenGL
	BackendMetal  = driver.BackendMetal
	BackendWebGPU = driver.BackendWebGPU
)

// Color is an RGBA clear color.
type Color = gputypes.Color

// TextureFormat is a texel format.
type TextureFormat = gputypes.TextureFormat

// BufferUsage describes how a buffer is bound.
type BufferUsage = driver.BufferUsage

// Buffer usage flags.
const (
	BufferUsageVertex   = driver.BufferUsageVertex
	BufferUsageIndex    = driver.BufferUsageIndex
	BufferUsageUniform  = driver.BufferUsageUniform
	BufferUsageStorage  = driver.BufferUsageStorage
	BufferUsageIndirect = driver.BufferUsageIndirect
	BufferUsageCopySrc  = driver.BufferUsageCopySrc
	BufferUsageCopyDst  = driver.BufferUsageCopyDst
)

// TextureUsage describes how a texture is bound.
type TextureUsage = driver.TextureUsage

// Texture usage flags.
const (
	TextureUsageShaderRead   = driver.TextureUsageShaderRead
	TextureUsageShaderWrite  = driver.TextureUsageShaderWrite
	TextureUsageRenderTarget = driver.TextureUsageRenderTarget
	TextureUsageDepthStencil = driver.TextureUsageDepthStencil
	TextureUsageCopySrc      = driver.TextureUsageCopySrc
	TextureUsageCopyDst      = driver.TextureUsageCopyDst
)

// TextureType is the dimensionality of a texture.
type TextureType = driver.TextureType

// Texture types.
const (
	Texture2D   = driver.Texture2D
	Texture1D   = driver.Texture1D
	Texture3D   = driver.Texture3D
	TextureCube = driver.TextureCube
)

// ViewKind is the kind of a resource view.
type ViewKind = driver.ViewKind

// View kinds.
const (
	ViewShaderResource  = driver.ViewShaderResource
	ViewUnorderedAccess = driver.ViewUnorderedAccess
	ViewRenderTarget    = driver.ViewRenderTarget
	ViewDepthStencil    = driver.ViewDepthStencil
)

// QueueKind selects a hardware queue.
type QueueKind = driver.QueueKind

// Queue kinds.
const (
	QueueGraphics = driver.QueueGraphics
	QueueCompute  = driver.QueueCompute
	QueueCopy     = driver.QueueCopy
)

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label  string
	Type   TextureType
	Format TextureFormat
	Width  uint32
	Height uint32

	// DepthOrLayers is the depth of a 3D texture or the array size of
	// any other type. Zero means 1. Cube textures need a multiple of 6.
	DepthOrLayers uint32

	// MipLevels of zero means 1.
	MipLevels uint32

	// SampleCount of zero means 1.
	SampleCount uint32

	Usage TextureUsage
}

// native converts the descriptor, applying defaults.
func (d *TextureDescriptor) native() (driver.TextureDesc, error) {
	desc := driver.TextureDesc{
		Label:         d.Label,
		Type:          d.Type,
		Format:        d.Format,
		Width:         d.Width,
		Height:        max(d.Height, 1),
		DepthOrLayers: max(d.DepthOrLayers, 1),
		MipLevels:     max(d.MipLevels, 1),
		SampleCount:   max(d.SampleCount, 1),
		Usage:         d.Usage,
	}
	if d.Width == 0 {
		return desc, fmt.Errorf("%w: texture %q has zero width", ErrInvalidDescriptor, d.Label)
	}
	if d.Format == gputypes.TextureFormatUndefined {
		return desc, fmt.Errorf("%w: texture %q has no format", ErrInvalidDescriptor, d.Label)
	}
	if d.Type == TextureCube && desc.DepthOrLayers%6 != 0 {
		return desc, fmt.Errorf("%w: cube texture %q needs a multiple of 6 layers, got %d",
			ErrInvalidDescriptor, d.Label, desc.DepthOrLayers)
	}
	if d.Type == Texture1D {
		desc.Height = 1
	}
	return desc, nil
}

// subresources returns the number of mip/slice pairs of a texture.
func subresources(desc *driver.TextureDesc) uint32 {
	slices := desc.DepthOrLayers
	if desc.Type == Texture3D {
		slices = 1
	}
	return desc.MipLevels * slices
}

// PresentMode selects how frames reach the display.
type PresentMode uint8

// Present modes.
const (
	// PresentModeFIFO waits for vertical blank (sync interval 1).
	PresentModeFIFO PresentMode = iota

	// PresentModeImmediate presents at once (sync interval 0), tearing
	// when the adapter supports it.
	PresentModeImmediate
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeFIFO:
		return "fifo"
	case PresentModeImmediate:
		return "immediate"
	}
	return fmt.Sprintf("PresentMode(%d)", uint8(m))
}

// ParsePresentMode parses "fifo" or "immediate".
func ParsePresentMode(s string) (PresentMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fifo", "vsync":
		return PresentModeFIFO, nil
	case "immediate":
		return PresentModeImmediate, nil
	}
	return PresentModeFIFO, fmt.Errorf("%w: unknown present mode %q", ErrInvalidConfig, s)
}

var formatNames = map[string]TextureFormat{
	"undefined":           gputypes.TextureFormatUndefined,
	"rgba8unorm":          gputypes.TextureFormatRGBA8Unorm,
	"bgra8unorm":          gputypes.TextureFormatBGRA8Unorm,
	"rgba8unormsrgb":      gputypes.TextureFormatRGBA8UnormSrgb,
	"bgra8unormsrgb":      gputypes.TextureFormatBGRA8UnormSrgb,
	"rgba16float":         gputypes.TextureFormatRGBA16Float,
	"rgb10a2unorm":        gputypes.TextureFormatRGB10A2Unorm,
	"r8unorm":             gputypes.TextureFormatR8Unorm,
	"depth16unorm":        gputypes.TextureFormatDepth16Unorm,
	"depth24plus":         gputypes.TextureFormatDepth24Plus,
	"depth24plusstencil8": gputypes.TextureFormatDepth24PlusStencil8,
	"depth32float":        gputypes.TextureFormatDepth32Float,
}

// ParseTextureFormat parses a format name such as "bgra8unorm". Names are
// case-insensitive and may contain dashes or underscores.
func ParseTextureFormat(s string) (TextureFormat, error) {
	key := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	if f, ok := formatNames[key]; ok {
		return f, nil
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("%w: unknown texture format %q", ErrInvalidConfig, s)
}

// isDepthFormat reports whether f is a depth-stencil format.
func isDepthFormat(f TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatDepth16Unorm,
		gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureFormatDepth32Float:
		return true
	}
	return false
}
