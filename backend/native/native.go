// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/wgpu/hal"

	// Vulkan is the primary HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// variants maps HAL backends to rhi backends.
var variants = map[gputypes.Backend]driver.Backend{
	gputypes.BackendVulkan: driver.BackendVulkan,
	gputypes.BackendDX12:   driver.BackendD3D12,
	gputypes.BackendMetal:  driver.BackendMetal,
	gputypes.BackendGL:     driver.BackendOpenGL,
}

func init() {
	for v := range variants {
		if _, ok := hal.GetBackend(v); ok {
			rhi.Register(New(v))
		}
	}
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger for adapter selection and device events.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithBackendAs reports the driver under b instead of the backend that
// matches the HAL variant. Tests use it to run the noop HAL backend.
func WithBackendAs(b driver.Backend) Option {
	return func(d *Driver) {
		d.backend = b
		d.hasBackend = true
	}
}

// Driver opens devices of one HAL backend.
type Driver struct {
	variant    gputypes.Backend
	backend    driver.Backend
	hasBackend bool
	logger     *slog.Logger
}

// New returns a driver for the HAL backend variant.
func New(variant gputypes.Backend, opts ...Option) *Driver {
	d := &Driver{
		variant: variant,
		backend: variants[variant],
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Backend implements driver.Driver.
func (d *Driver) Backend() driver.Backend { return d.backend }

// Probe implements driver.Driver. It creates an instance, checks for an
// adapter and destroys the instance again.
func (d *Driver) Probe() bool {
	if !d.hasBackend {
		if _, ok := variants[d.variant]; !ok {
			return false
		}
	}
	backend, ok := hal.GetBackend(d.variant)
	if !ok {
		return false
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return false
	}
	defer instance.Destroy()
	return len(instance.EnumerateAdapters(nil)) > 0
}

// Open implements driver.Driver.
func (d *Driver) Open(cfg *driver.OpenConfig) (driver.Device, error) {
	if cfg == nil {
		cfg = &driver.OpenConfig{}
	}
	backend, ok := hal.GetBackend(d.variant)
	if !ok {
		return nil, fmt.Errorf("native: HAL backend %v: %w", d.variant, driver.ErrNotAvailable)
	}
	var flags gputypes.InstanceFlags
	if cfg.Debug {
		flags = gputypes.InstanceFlagsDebug | gputypes.InstanceFlagsValidation
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: flags})
	if err != nil {
		return nil, wrap("create instance", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: %w", ErrNoAdapter, driver.ErrNotAvailable)
	}
	selected := selectAdapter(adapters, cfg.PreferLowPower)
	d.logger.Info("native: adapter selected",
		"name", selected.Info.Name,
		"type", adapterType(selected.Info.DeviceType).String(),
		"backend", d.backend.String())

	open, err := selected.Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, wrap("open adapter", err)
	}
	dev := newDevice(open.Device, open.Queue, adapterInfo(d.variant, selected), d.logger)
	dev.instance = instance
	dev.owned = true
	return dev, nil
}

// selectAdapter picks a discrete adapter, or an integrated one when
// lowPower is set. It falls back to the first adapter.
func selectAdapter(adapters []hal.ExposedAdapter, lowPower bool) *hal.ExposedAdapter {
	want := gputypes.DeviceTypeDiscreteGPU
	if lowPower {
		want = gputypes.DeviceTypeIntegratedGPU
	}
	for i := range adapters {
		if adapters[i].Info.DeviceType == want {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

func adapterType(t gputypes.DeviceType) driver.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return driver.AdapterDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return driver.AdapterIntegrated
	case gputypes.DeviceTypeCPU:
		return driver.AdapterCPU
	}
	return driver.AdapterUnknown
}

func adapterInfo(variant gputypes.Backend, a *hal.ExposedAdapter) driver.AdapterInfo {
	lim := a.Capabilities.Limits
	return driver.AdapterInfo{
		Name:                  a.Info.Name,
		Type:                  adapterType(a.Info.DeviceType),
		VendorID:              a.Info.VendorID,
		DeviceID:              a.Info.DeviceID,
		TextureArray:          true,
		TextureCubeArray:      variant != gputypes.BackendGL,
		Compute:               variant != gputypes.BackendGL,
		MaxTextureDimension2D: lim.MaxTextureDimension2D,
		MaxRenderTargets:      lim.MaxColorAttachments,
		MaxVertexBuffers:      lim.MaxVertexBuffers,
		ConstantBufferAlign:   lim.MinUniformBufferOffsetAlignment,
	}
}
