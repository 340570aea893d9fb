// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/wgpu/hal"
)

// halProvider is implemented by gpucontext.DeviceProvider values that
// expose their HAL device, such as the gogpu application context.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// SharedDriver opens the device of a gpucontext.DeviceProvider instead of
// creating one. Closing the rhi device leaves the provider's device alive.
type SharedDriver struct {
	backend driver.Backend
	device  hal.Device
	queue   hal.Queue
	info    driver.AdapterInfo
	format  gputypes.TextureFormat
	logger  *slog.Logger
}

// NewFromProvider returns a driver that shares the HAL device of p.
// The provider must implement HalDevice() any and HalQueue() any.
func NewFromProvider(p gpucontext.DeviceProvider, opts ...Option) (*SharedDriver, error) {
	hp, ok := p.(halProvider)
	if !ok {
		return nil, ErrNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrNotHAL, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is %T", ErrNotHAL, hp.HalQueue())
	}

	cfg := New(gputypes.BackendVulkan, opts...)
	lim := gputypes.DefaultLimits()
	ai := p.AdapterInfo()
	return &SharedDriver{
		backend: cfg.backend,
		device:  device,
		queue:   queue,
		format:  p.SurfaceFormat(),
		logger:  cfg.logger,
		info: driver.AdapterInfo{
			Name:                  ai.Name,
			Type:                  providerAdapterType(ai.Type),
			TextureArray:          true,
			TextureCubeArray:      true,
			Compute:               true,
			MaxTextureDimension2D: lim.MaxTextureDimension2D,
			MaxRenderTargets:      lim.MaxColorAttachments,
			MaxVertexBuffers:      lim.MaxVertexBuffers,
			ConstantBufferAlign:   lim.MinUniformBufferOffsetAlignment,
		},
	}, nil
}

func providerAdapterType(t gpucontext.AdapterType) driver.AdapterType {
	switch t {
	case gpucontext.AdapterTypeDiscrete:
		return driver.AdapterDiscrete
	case gpucontext.AdapterTypeIntegrated:
		return driver.AdapterIntegrated
	case gpucontext.AdapterTypeSoftware:
		return driver.AdapterCPU
	}
	return driver.AdapterUnknown
}

// SurfaceFormat returns the provider's preferred surface format, or
// Undefined when it renders headless.
func (s *SharedDriver) SurfaceFormat() gputypes.TextureFormat { return s.format }

// Backend implements driver.Driver.
func (s *SharedDriver) Backend() driver.Backend { return s.backend }

// Probe implements driver.Driver.
func (s *SharedDriver) Probe() bool { return true }

// Open implements driver.Driver. Every call wraps the same HAL device.
func (s *SharedDriver) Open(*driver.OpenConfig) (driver.Device, error) {
	s.logger.Info("native: sharing provider device", "name", s.info.Name)
	return newDevice(s.device, s.queue, s.info, s.logger), nil
}
