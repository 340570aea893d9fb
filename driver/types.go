// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// Backend identifies a native graphics API.
type Backend uint8

// Supported backends.
const (
	BackendNull Backend = iota
	BackendD3D11
	BackendD3D12
	BackendVulkan
	BackendOpenGL
	BackendMetal
	BackendWebGPU
	backendCount
)

var backendNames = [backendCount]string{
	BackendNull:   "null",
	BackendD3D11:  "d3d11",
	BackendD3D12:  "d3d12",
	BackendVulkan: "vulkan",
	BackendOpenGL: "opengl",
	BackendMetal:  "metal",
	BackendWebGPU: "webgpu",
}

// String returns the lower-case backend name.
func (b Backend) String() string {
	if b < backendCount {
		return backendNames[b]
	}
	return fmt.Sprintf("backend(%d)", uint8(b))
}

// ParseBackend parses a backend name as returned by Backend.String.
// Matching is case-insensitive.
func ParseBackend(s string) (Backend, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range backendNames {
		if name == s {
			return Backend(i), nil
		}
	}
	return BackendNull, fmt.Errorf("%w: unknown backend %q", ErrInvalidDesc, s)
}

// Color is an RGBA clear color.
type Color = gputypes.Color

// QueueKind selects a hardware queue.
type QueueKind uint8

// Queue kinds.
const (
	QueueGraphics QueueKind = iota
	QueueCompute
	QueueCopy

	// QueueKindCount is the number of queue kinds.
	QueueKindCount
)

func (k QueueKind) String() string {
	switch k {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	case QueueCopy:
		return "copy"
	}
	return fmt.Sprintf("queue(%d)", uint8(k))
}

// ViewKind is the kind of a resource view.
type ViewKind uint8

// View kinds.
const (
	ViewShaderResource ViewKind = iota
	ViewUnorderedAccess
	ViewRenderTarget
	ViewDepthStencil

	// ViewKindCount is the number of view kinds.
	ViewKindCount
)

func (k ViewKind) String() string {
	switch k {
	case ViewShaderResource:
		return "srv"
	case ViewUnorderedAccess:
		return "uav"
	case ViewRenderTarget:
		return "rtv"
	case ViewDepthStencil:
		return "dsv"
	}
	return fmt.Sprintf("view(%d)", uint8(k))
}

// HeapKind returns the descriptor heap kind that stores views of kind k.
func (k ViewKind) HeapKind() HeapKind {
	switch k {
	case ViewRenderTarget:
		return HeapRenderTarget
	case ViewDepthStencil:
		return HeapDepthStencil
	}
	return HeapResource
}

// HeapKind is the kind of a descriptor heap.
type HeapKind uint8

// Descriptor heap kinds.
const (
	// HeapResource holds constant buffer, shader resource and
	// unordered access descriptors.
	HeapResource HeapKind = iota
	HeapRenderTarget
	HeapDepthStencil

	// HeapKindCount is the number of heap kinds.
	HeapKindCount
)

func (k HeapKind) String() string {
	switch k {
	case HeapResource:
		return "resource"
	case HeapRenderTarget:
		return "rtv"
	case HeapDepthStencil:
		return "dsv"
	}
	return fmt.Sprintf("heap(%d)", uint8(k))
}

// CPUDescriptor is the CPU address of a descriptor slot.
type CPUDescriptor uint64

// GPUDescriptor is the shader-visible address of a descriptor slot.
type GPUDescriptor uint64

// Offset returns the descriptor n slots after d.
func (d CPUDescriptor) Offset(n, increment uint32) CPUDescriptor {
	return d + CPUDescriptor(uint64(n)*uint64(increment))
}

// Offset returns the descriptor n slots after d.
func (d GPUDescriptor) Offset(n, increment uint32) GPUDescriptor {
	return d + GPUDescriptor(uint64(n)*uint64(increment))
}

// BufferUsage describes how a buffer is bound.
type BufferUsage uint32

// Buffer usage flags.
const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndirect
	BufferUsageCopySrc
	BufferUsageCopyDst
)

// TextureUsage describes how a texture is bound.
type TextureUsage uint32

// Texture usage flags.
const (
	TextureUsageShaderRead TextureUsage = 1 << iota
	TextureUsageShaderWrite
	TextureUsageRenderTarget
	TextureUsageDepthStencil
	TextureUsageCopySrc
	TextureUsageCopyDst
)

// TextureType is the dimensionality of a texture.
type TextureType uint8

// Texture types.
const (
	Texture2D TextureType = iota
	Texture1D
	Texture3D
	TextureCube
)

// BufferDesc describes a native buffer.
type BufferDesc struct {
	Label  string
	Size   uint64
	Stride uint32
	Usage  BufferUsage
}

// TextureDesc describes a native texture.
type TextureDesc struct {
	Label         string
	Type          TextureType
	Format        gputypes.TextureFormat
	Width         uint32
	Height        uint32
	DepthOrLayers uint32
	MipLevels     uint32
	SampleCount   uint32
	Usage         TextureUsage
}

// ViewDesc describes a view of a single subresource.
type ViewDesc struct {
	Kind ViewKind

	// Format overrides the resource format. Undefined inherits it.
	Format gputypes.TextureFormat

	MipLevel   uint32
	ArraySlice uint32
}

// HeapDesc describes a native descriptor heap.
type HeapDesc struct {
	Kind          HeapKind
	Capacity      uint32
	ShaderVisible bool
}

// PresentFlags modify SwapChain.Present.
type PresentFlags uint32

// Present flags.
const (
	// PresentAllowTearing presents without waiting for vertical blank on
	// displays that support variable refresh.
	PresentAllowTearing PresentFlags = 1 << iota
)

// SwapChainDesc describes a swap chain.
type SwapChainDesc struct {
	Width        uint32
	Height       uint32
	BufferCount  uint32
	Format       gputypes.TextureFormat
	AllowTearing bool
}

// AdapterType classifies the adapter behind a device.
type AdapterType uint8

// Adapter types.
const (
	AdapterUnknown AdapterType = iota
	AdapterDiscrete
	AdapterIntegrated
	AdapterCPU
)

func (t AdapterType) String() string {
	switch t {
	case AdapterDiscrete:
		return "discrete"
	case AdapterIntegrated:
		return "integrated"
	case AdapterCPU:
		return "cpu"
	}
	return "unknown"
}

// AdapterInfo describes a physical adapter and what it supports.
type AdapterInfo struct {
	Name     string
	Type     AdapterType
	VendorID uint32
	DeviceID uint32

	TextureArray     bool
	TextureCubeArray bool
	Compute          bool
	Raytracing       bool
	Tearing          bool

	MaxTextureDimension2D uint32
	MaxRenderTargets      uint32
	MaxVertexBuffers      uint32
	ConstantBufferAlign   uint32
}
