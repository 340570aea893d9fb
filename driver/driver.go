// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package driver defines the native capability set that the rhi core is
// built on.
//
// A driver wraps one vendor API (Direct3D 12, Vulkan, WebGPU, ...) and
// exposes resource creation, command recording, queue submission, fences,
// descriptor heaps and presentation. The core never calls a vendor API
// directly: every native call goes through these interfaces, so a backend
// is swapped by handing NewDevice a different Driver.
//
// Implementations are not required to be safe for concurrent use unless a
// method says otherwise. The core serializes access where the vendor APIs
// require it.
package driver

// Driver opens native devices for a single Backend.
type Driver interface {
	// Backend returns the backend implemented by the driver.
	Backend() Backend

	// Probe reports whether the backend can be opened on this system.
	// It must be cheap and must not leave a device open.
	Probe() bool

	// Open creates a native device.
	Open(cfg *OpenConfig) (Device, error)
}

// OpenConfig configures Driver.Open.
type OpenConfig struct {
	// Debug enables the vendor validation layer when available.
	Debug bool

	// PreferLowPower selects an integrated adapter over a discrete one.
	PreferLowPower bool
}

// Device is a native graphics device.
type Device interface {
	// Info describes the adapter behind the device.
	Info() AdapterInfo

	CreateBuffer(desc *BufferDesc) (Buffer, error)
	CreateTexture(desc *TextureDesc) (Texture, error)

	// CreateView creates a view of res and writes its descriptor to dst.
	// dst is zero for backends without descriptor heaps.
	CreateView(res Resource, desc *ViewDesc, dst CPUDescriptor) (View, error)

	// CopyDescriptor copies a descriptor between CPU-visible slots of
	// heaps of the given kind.
	CopyDescriptor(dst, src CPUDescriptor, kind HeapKind)

	CreateFence(initial uint64) (Fence, error)
	CreateCommandAllocator(kind QueueKind) (CommandAllocator, error)
	CreateCommandList(kind QueueKind, alloc CommandAllocator) (CommandList, error)
	CreateDescriptorHeap(desc *HeapDesc) (DescriptorHeap, error)
	CreateSwapChain(window Window, desc *SwapChainDesc) (SwapChain, error)

	// Queue returns the device queue of the given kind.
	// Backends with a single queue return it for every kind.
	Queue(kind QueueKind) Queue

	// Destroy releases the native device. All objects created from it
	// must have been released first.
	Destroy()
}

// Queue is a native command queue.
type Queue interface {
	// Submit executes lists in order and then signals f with value.
	// Either lists or signal may be empty. A non-nil error wrapping
	// ErrDeviceLost means the device was removed.
	Submit(lists []CommandList, signal Fence, value uint64) error

	// WaitFence makes the queue wait on the GPU until f reaches value.
	// The calling thread does not block.
	WaitFence(f Fence, value uint64) error

	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	WriteTexture(tex Texture, mip, slice uint32, data []byte) error
}

// Fence is a monotonic GPU counter.
type Fence interface {
	// CompletedValue returns the last value reached by the GPU.
	// The returned value never decreases.
	CompletedValue() uint64

	// Wait blocks the calling thread until CompletedValue() >= value.
	Wait(value uint64) error

	Release()
}

// CommandAllocator owns the memory backing recorded command lists.
type CommandAllocator interface {
	// Reset reclaims all memory. The GPU must have finished executing
	// every list recorded from the allocator.
	Reset() error

	Release()
}

// CommandList records GPU commands.
type CommandList interface {
	// Reset starts a new recording backed by alloc.
	Reset(alloc CommandAllocator) error

	// Close ends the recording. The list may then be submitted.
	Close() error

	SetDescriptorHeap(heap DescriptorHeap)
	ClearRenderTarget(view View, color Color)
	ClearDepthStencil(view View, depth float32, stencil uint8)

	Release()
}

// Resource is a native GPU memory object.
type Resource interface {
	SetName(name string)
	Release()
}

// Buffer is a native buffer.
type Buffer interface {
	Resource
	Size() uint64
}

// Texture is a native texture.
type Texture interface {
	Resource
	Desc() TextureDesc
}

// View is a native resource view (SRV, UAV, RTV or DSV).
type View interface {
	Kind() ViewKind
	Release()
}

// DescriptorHeap is a native range of view descriptors.
type DescriptorHeap interface {
	CPUStart() CPUDescriptor

	// GPUStart is zero for heaps that are not shader visible.
	GPUStart() GPUDescriptor

	// Increment is the byte distance between consecutive descriptors.
	Increment() uint32

	Capacity() uint32
	Release()
}

// SwapChain owns the presentable back buffers of a window.
type SwapChain interface {
	BackBuffers() []Texture

	// CurrentIndex returns the back buffer that will be rendered next.
	CurrentIndex() uint32

	// Present queues the current back buffer for display. An error
	// wrapping ErrDeviceLost means the device was removed or reset.
	Present(syncInterval uint32, flags PresentFlags) error

	// Resize recreates the back buffers. Textures returned by earlier
	// BackBuffers calls are invalid afterwards.
	Resize(width, height uint32) error

	Release()
}

// Window is the windowing collaborator. The core only reads it.
type Window interface {
	// Handle returns the native window handle, or 0 if unknown.
	Handle() uintptr

	// Size returns the current drawable size in pixels.
	Size() (width, height int)

	// Valid reports whether the window still exists.
	Valid() bool
}
