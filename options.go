// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
)

// Default sizes.
const (
	DefaultRenderLatency = 2
	MaxFramesInFlight    = 3
	DefaultMaxBuffers    = 4096
	DefaultMaxTextures   = 4096
)

// DescriptorCounts sizes the descriptor heaps.
type DescriptorCounts struct {
	// Resource is the number of persistent SRV/UAV descriptors.
	Resource uint32 `toml:"resource" yaml:"resource"`

	// Transient is the per-frame bump range of the shader-visible heap.
	Transient uint32 `toml:"transient" yaml:"transient"`

	RenderTargets uint32 `toml:"render_targets" yaml:"render_targets"`
	DepthStencils uint32 `toml:"depth_stencils" yaml:"depth_stencils"`
}

// DefaultDescriptorCounts returns the default heap sizes.
func DefaultDescriptorCounts() DescriptorCounts {
	return DescriptorCounts{
		Resource:      1024,
		Transient:     4096,
		RenderTargets: 256,
		DepthStencils: 64,
	}
}

// SwapChainOptions configures the swap chain created for WithWindow.
type SwapChainOptions struct {
	// Width and Height of zero use the window size.
	Width  uint32
	Height uint32

	// BufferCount of zero means RenderLatency+1.
	BufferCount uint32

	Format TextureFormat

	// DepthFormat creates a depth-stencil texture alongside the back
	// buffers when not Undefined.
	DepthFormat TextureFormat

	PresentMode PresentMode
}

// DeviceOption configures NewDevice.
// Use functional options to customize Device behavior.
//
// Example:
//
//	dev, err := rhi.NewDevice(
//	    rhi.WithBackend(rhi.BackendVulkan),
//	    rhi.WithRenderLatency(3),
//	)
type DeviceOption func(*deviceOptions)

// deviceOptions holds optional configuration for Device creation.
type deviceOptions struct {
	backend     Backend
	hasBackend  bool
	driver      driver.Driver
	registry    *Registry
	latency     int
	window      driver.Window
	maxBuffers  int
	maxTextures int
	descriptors DescriptorCounts
	swapChain   SwapChainOptions
	logger      *slog.Logger
	onLost      func(error)
	debug       bool
	lowPower    bool
}

// defaultOptions returns the default device options.
func defaultOptions() deviceOptions {
	return deviceOptions{
		latency:     DefaultRenderLatency,
		maxBuffers:  DefaultMaxBuffers,
		maxTextures: DefaultMaxTextures,
		descriptors: DefaultDescriptorCounts(),
		swapChain: SwapChainOptions{
			Format:      gputypes.TextureFormatBGRA8Unorm,
			PresentMode: PresentModeFIFO,
		},
	}
}

// WithBackend requests a specific backend instead of the highest-priority
// available one.
func WithBackend(b Backend) DeviceOption {
	return func(o *deviceOptions) {
		o.backend = b
		o.hasBackend = true
	}
}

// WithDriver opens the device on d, bypassing the registry.
func WithDriver(d driver.Driver) DeviceOption {
	return func(o *deviceOptions) {
		o.driver = d
	}
}

// WithRegistry selects backends from r instead of the default registry.
func WithRegistry(r *Registry) DeviceOption {
	return func(o *deviceOptions) {
		o.registry = r
	}
}

// WithRenderLatency sets the number of frames in flight, between 1 and
// MaxFramesInFlight.
func WithRenderLatency(n int) DeviceOption {
	return func(o *deviceOptions) {
		o.latency = n
	}
}

// WithWindow creates a swap chain for w. Without a window the device is
// headless.
func WithWindow(w driver.Window) DeviceOption {
	return func(o *deviceOptions) {
		o.window = w
	}
}

// WithSwapChain configures the swap chain created for WithWindow.
func WithSwapChain(sc SwapChainOptions) DeviceOption {
	return func(o *deviceOptions) {
		o.swapChain = sc
	}
}

// WithMaxBuffers sets the buffer pool capacity.
func WithMaxBuffers(n int) DeviceOption {
	return func(o *deviceOptions) {
		o.maxBuffers = n
	}
}

// WithMaxTextures sets the texture pool capacity. Swap chain back buffers
// count against it.
func WithMaxTextures(n int) DeviceOption {
	return func(o *deviceOptions) {
		o.maxTextures = n
	}
}

// WithDescriptorCounts sizes the descriptor heaps.
func WithDescriptorCounts(c DescriptorCounts) DeviceOption {
	return func(o *deviceOptions) {
		o.descriptors = c
	}
}

// WithLogger sets the device logger. The default is Logger() at the time
// NewDevice is called.
func WithLogger(l *slog.Logger) DeviceOption {
	return func(o *deviceOptions) {
		o.logger = l
	}
}

// WithDeviceLostHandler registers fn to be called once when the device is
// lost. fn runs on the goroutine that detected the loss.
func WithDeviceLostHandler(fn func(error)) DeviceOption {
	return func(o *deviceOptions) {
		o.onLost = fn
	}
}

// WithDebug enables the backend validation layer when available.
func WithDebug(enabled bool) DeviceOption {
	return func(o *deviceOptions) {
		o.debug = enabled
	}
}

// WithLowPower prefers an integrated adapter.
func WithLowPower(enabled bool) DeviceOption {
	return func(o *deviceOptions) {
		o.lowPower = enabled
	}
}
