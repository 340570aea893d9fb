// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package webgpu

import (
	"fmt"
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
)

// SurfaceSource is implemented by windows that can back a WebGPU
// surface.
type SurfaceSource interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
}

// SwapChain is a driver.SwapChain. With a surface, every back buffer
// resolves to the surface texture of the current frame, acquired on first
// use and presented by Present. Without one it is an offscreen ring.
type SwapChain struct {
	d        *Device
	desc     driver.SwapChainDesc
	surface  *wgpu.Surface
	config   wgpu.SurfaceConfiguration
	buffers  []*Texture
	index    uint32
	current  *wgpu.Texture
	presents uint64
	released bool
}

func (sc *SwapChain) createSurface(src SurfaceSource) error {
	sd := src.SurfaceDescriptor()
	if sd == nil {
		return fmt.Errorf("%w: window has no surface", driver.ErrInvalidDesc)
	}
	surface := sc.d.instance.CreateSurface(sd)
	if surface == nil {
		return fmt.Errorf("webgpu: create surface: %w", driver.ErrNotAvailable)
	}
	caps := surface.GetCapabilities(sc.d.adapter)
	if len(caps.Formats) == 0 {
		surface.Release()
		return fmt.Errorf("%w: surface reports no formats", driver.ErrUnsupported)
	}

	format, err := textureFormat(sc.desc.Format)
	if err != nil || !slices.Contains(caps.Formats, format) {
		format = caps.Formats[0]
		if f := fromTextureFormat(format); f != gputypes.TextureFormatUndefined {
			sc.d.logger.Warn("webgpu: surface format replaced", "requested", sc.desc.Format, "using", f)
			sc.desc.Format = f
		}
	}
	mode := wgpu.PresentModeFifo
	if sc.desc.AllowTearing && slices.Contains(caps.PresentModes, wgpu.PresentModeImmediate) {
		mode = wgpu.PresentModeImmediate
	}
	sc.config = wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       sc.desc.Width,
		Height:      sc.desc.Height,
		PresentMode: mode,
	}
	if len(caps.AlphaModes) > 0 {
		sc.config.AlphaMode = caps.AlphaModes[0]
	}
	surface.Configure(sc.d.adapter, sc.d.device, &sc.config)
	sc.surface = surface
	sc.surfaceBuffers()
	return nil
}

func (sc *SwapChain) surfaceBuffers() {
	sc.buffers = sc.buffers[:0]
	for i := range sc.desc.BufferCount {
		sc.buffers = append(sc.buffers, &Texture{
			object: object{d: sc.d, name: fmt.Sprintf("back buffer %d", i)},
			desc:   sc.backBufferDesc(i),
			chain:  sc,
		})
	}
}

func (sc *SwapChain) backBufferDesc(i uint32) driver.TextureDesc {
	return driver.TextureDesc{
		Label:         fmt.Sprintf("back buffer %d", i),
		Format:        sc.desc.Format,
		Width:         sc.desc.Width,
		Height:        sc.desc.Height,
		DepthOrLayers: 1,
		MipLevels:     1,
		SampleCount:   1,
		Usage:         driver.TextureUsageRenderTarget | driver.TextureUsageShaderRead | driver.TextureUsageCopySrc,
	}
}

// createBuffers allocates the offscreen ring.
// createBuffers replaces the offscreen ring. The old ring is kept when a
// texture cannot be created.
func (sc *SwapChain) createBuffers() error {
	bufs := make([]*Texture, 0, sc.desc.BufferCount)
	for i := range sc.desc.BufferCount {
		desc := sc.backBufferDesc(i)
		tex, err := sc.d.CreateTexture(&desc)
		if err != nil {
			for _, t := range bufs {
				t.Release()
			}
			return err
		}
		bufs = append(bufs, tex.(*Texture))
	}
	sc.releaseBuffers()
	sc.buffers = bufs
	return nil
}

func (sc *SwapChain) releaseBuffers() {
	if sc.surface == nil {
		for _, t := range sc.buffers {
			t.Release()
		}
	}
	sc.buffers = sc.buffers[:0]
}

// acquire returns the surface texture of the current frame. Outdated or
// lost surfaces get one reconfigure before the error is returned.
func (sc *SwapChain) acquire() (*wgpu.Texture, error) {
	if sc.current != nil {
		return sc.current, nil
	}
	tex, err := sc.surface.GetCurrentTexture()
	if err != nil {
		sc.d.logger.Warn("webgpu: surface texture unavailable, reconfiguring", "err", err)
		sc.surface.Configure(sc.d.adapter, sc.d.device, &sc.config)
		if tex, err = sc.surface.GetCurrentTexture(); err != nil {
			return nil, wrap("acquire surface texture", err)
		}
	}
	sc.current = tex
	return tex, nil
}

// dropCurrent releases an acquired but unpresented surface texture.
func (sc *SwapChain) dropCurrent() {
	if sc.current != nil {
		sc.current.Release()
		sc.current = nil
	}
}

// BackBuffers implements driver.SwapChain.
func (sc *SwapChain) BackBuffers() []driver.Texture {
	out := make([]driver.Texture, len(sc.buffers))
	for i, t := range sc.buffers {
		out[i] = t
	}
	return out
}

// CurrentIndex implements driver.SwapChain.
func (sc *SwapChain) CurrentIndex() uint32 { return sc.index }

// Presents returns the number of Present calls.
func (sc *SwapChain) Presents() uint64 { return sc.presents }

// Present implements driver.SwapChain. The present mode is fixed when
// the surface is configured, so the sync interval and flags are ignored.
// A frame that never touched the surface presents nothing.
func (sc *SwapChain) Present(uint32, driver.PresentFlags) error {
	if len(sc.buffers) == 0 {
		return fmt.Errorf("%w: swap chain has no buffers", driver.ErrInvalidDesc)
	}
	if sc.surface != nil && sc.current != nil {
		sc.surface.Present()
		sc.dropCurrent()
	}
	sc.index = (sc.index + 1) % uint32(len(sc.buffers))
	sc.presents++
	return nil
}

// Resize implements driver.SwapChain.
func (sc *SwapChain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: zero swap chain size", driver.ErrInvalidDesc)
	}
	old := sc.desc
	sc.desc.Width, sc.desc.Height = width, height
	if sc.surface != nil {
		sc.index = 0
		sc.dropCurrent()
		sc.config.Width, sc.config.Height = width, height
		sc.surface.Configure(sc.d.adapter, sc.d.device, &sc.config)
		sc.surfaceBuffers()
		return nil
	}
	if err := sc.createBuffers(); err != nil {
		sc.desc = old
		return err
	}
	sc.index = 0
	return nil
}

// Release implements driver.SwapChain.
func (sc *SwapChain) Release() {
	if sc.released {
		panic("webgpu: swap chain released twice")
	}
	sc.released = true
	sc.releaseBuffers()
	if sc.surface != nil {
		sc.dropCurrent()
		sc.surface.Release()
	}
}
