// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package webgpu

import (
	"fmt"
	"log/slog"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/driver"
)

func init() {
	rhi.Register(New())
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger for adapter selection and surface events.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithFallbackAdapter requests the software adapter of wgpu-native.
func WithFallbackAdapter() Option {
	return func(d *Driver) { d.fallback = true }
}

// Driver opens wgpu-native devices.
type Driver struct {
	logger   *slog.Logger
	fallback bool
}

// New returns a WebGPU driver.
func New(opts ...Option) *Driver {
	d := &Driver{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Backend implements driver.Driver.
func (d *Driver) Backend() driver.Backend { return driver.BackendWebGPU }

// Probe implements driver.Driver. It requests an adapter from a
// throwaway instance.
func (d *Driver) Probe() bool {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return false
	}
	defer instance.Release()
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{ForceFallbackAdapter: d.fallback})
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Open implements driver.Driver.
func (d *Driver) Open(cfg *driver.OpenConfig) (driver.Device, error) {
	if cfg == nil {
		cfg = &driver.OpenConfig{}
	}
	if cfg.Debug {
		wgpu.SetLogLevel(wgpu.LogLevelWarn)
	}

	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, fmt.Errorf("webgpu: create instance: %w", driver.ErrNotAvailable)
	}

	power := wgpu.PowerPreferenceHighPerformance
	if cfg.PreferLowPower {
		power = wgpu.PowerPreferenceLowPower
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference:      power,
		ForceFallbackAdapter: d.fallback,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: %w: %w", ErrNoAdapter, driver.ErrNotAvailable, err)
	}

	info := adapterInfo(adapter)
	d.logger.Info("webgpu: adapter selected", "name", info.Name, "type", info.Type)

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "rhi device"})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, wrap("request device", err)
	}
	return newDevice(instance, adapter, device, info, d.logger), nil
}

func adapterType(t wgpu.AdapterType) driver.AdapterType {
	switch t {
	case wgpu.AdapterTypeDiscreteGPU:
		return driver.AdapterDiscrete
	case wgpu.AdapterTypeIntegratedGPU:
		return driver.AdapterIntegrated
	case wgpu.AdapterTypeCPU:
		return driver.AdapterCPU
	}
	return driver.AdapterUnknown
}

// adapterInfo reports tearing support: surfaces fall back to FIFO when
// they lack the immediate present mode.
func adapterInfo(a *wgpu.Adapter) driver.AdapterInfo {
	info := a.GetInfo()
	lim := a.GetLimits().Limits
	return driver.AdapterInfo{
		Name:                  info.Name,
		Type:                  adapterType(info.AdapterType),
		VendorID:              info.VendorId,
		DeviceID:              info.DeviceId,
		TextureArray:          true,
		TextureCubeArray:      true,
		Compute:               true,
		Tearing:               true,
		MaxTextureDimension2D: lim.MaxTextureDimension2D,
		MaxRenderTargets:      lim.MaxColorAttachments,
		MaxVertexBuffers:      lim.MaxVertexBuffers,
		ConstantBufferAlign:   lim.MinUniformBufferOffsetAlignment,
	}
}
