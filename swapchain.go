// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/pool"
)

// SwapChain presents frames to a window. Its back buffers are ordinary
// textures owned by the swap chain; they cannot be destroyed and become
// invalid on Resize.
type SwapChain struct {
	d      *Device
	window driver.Window
	native driver.SwapChain
	opts   SwapChainOptions

	width, height uint32
	backBuffers   []TextureHandle
	depth         TextureHandle
	index         uint32
}

func newSwapChain(d *Device, window driver.Window, opts SwapChainOptions) (*SwapChain, error) {
	if !window.Valid() {
		return nil, fmt.Errorf("%w: window is not valid", ErrInvalidDescriptor)
	}
	w, h := opts.Width, opts.Height
	if w == 0 || h == 0 {
		ww, wh := window.Size()
		w, h = uint32(ww), uint32(wh)
	}
	if opts.BufferCount == 0 {
		opts.BufferCount = uint32(d.opts.latency) + 1
	}
	if opts.Format == gputypes.TextureFormatUndefined {
		opts.Format = gputypes.TextureFormatBGRA8Unorm
	}
	if opts.DepthFormat != gputypes.TextureFormatUndefined && !isDepthFormat(opts.DepthFormat) {
		return nil, fmt.Errorf("%w: swap chain depth format %v is not a depth format", ErrInvalidDescriptor, opts.DepthFormat)
	}

	native, err := d.native.CreateSwapChain(window, &driver.SwapChainDesc{
		Width:        w,
		Height:       h,
		BufferCount:  opts.BufferCount,
		Format:       opts.Format,
		AllowTearing: opts.PresentMode == PresentModeImmediate && d.caps.Features.Has(FeatureTearing),
	})
	if err != nil {
		d.checkLost(err)
		return nil, fmt.Errorf("rhi: create swap chain: %w", err)
	}
	sc := &SwapChain{
		d:      d,
		window: window,
		native: native,
		opts:   opts,
		width:  w,
		height: h,
	}
	if err := sc.register(); err != nil {
		sc.unregister()
		native.Release()
		return nil, err
	}
	d.logger.Info("rhi: swap chain created",
		"width", w, "height", h,
		"buffers", opts.BufferCount,
		"mode", opts.PresentMode.String())
	return sc, nil
}

// register wraps the native back buffers in texture records and creates
// the depth buffer. Render target views are created eagerly.
func (sc *SwapChain) register() error {
	d := sc.d
	for _, tex := range sc.native.BackBuffers() {
		rec := newTextureRecord()
		rec.native = tex
		rec.desc = tex.Desc()
		rec.external = true
		h := d.textures.Alloc(rec)
		if h == pool.Invalid {
			return fmt.Errorf("rhi: swap chain back buffers: %w", ErrPoolExhausted)
		}
		th := TextureHandle(h)
		sc.backBuffers = append(sc.backBuffers, th)
		if _, err := d.RenderTargetView(th, gputypes.TextureFormatUndefined, 0, 0); err != nil {
			return err
		}
	}
	sc.index = sc.native.CurrentIndex()

	if sc.opts.DepthFormat == gputypes.TextureFormatUndefined {
		return nil
	}
	depth, err := d.CreateTexture(&TextureDescriptor{
		Label:  "swapchain depth",
		Format: sc.opts.DepthFormat,
		Width:  sc.width,
		Height: sc.height,
		Usage:  TextureUsageDepthStencil,
	}, nil)
	if err != nil {
		return err
	}
	sc.depth = depth
	d.textures.Get(depth.poolHandle()).external = true
	_, err = d.DepthStencilView(depth, gputypes.TextureFormatUndefined, 0, 0)
	return err
}

// unregister drops the back buffer and depth records at once. The GPU
// must be idle.
func (sc *SwapChain) unregister() {
	d := sc.d
	for _, h := range sc.backBuffers {
		rec := d.textures.Dealloc(h.poolHandle())
		d.releaseViews(rec.views)
	}
	sc.backBuffers = sc.backBuffers[:0]
	if sc.depth.IsValid() {
		rec := d.textures.Dealloc(sc.depth.poolHandle())
		d.releaseViews(rec.views)
		rec.native.Release()
		sc.depth = InvalidTexture
	}
}

func (sc *SwapChain) present() error {
	var (
		sync  uint32 = 1
		flags driver.PresentFlags
	)
	if sc.opts.PresentMode == PresentModeImmediate {
		sync = 0
		if sc.d.caps.Features.Has(FeatureTearing) {
			flags |= driver.PresentAllowTearing
		}
	}
	err := sc.native.Present(sync, flags)
	sc.index = sc.native.CurrentIndex()
	return err
}

func (sc *SwapChain) resize(width, height uint32) error {
	if width == sc.width && height == sc.height {
		return nil
	}
	d := sc.d
	d.WaitForGPU()
	if err := d.usable(); err != nil {
		return err
	}
	sc.unregister()
	if err := sc.native.Resize(width, height); err != nil {
		d.logger.Error("rhi: swap chain resize failed", "width", width, "height", height, "err", err)
		err = fmt.Errorf("rhi: resize swap chain: %w", err)
		if d.checkLost(err) {
			return err
		}
		// The native chain keeps its old buffers after a failed resize.
		if rerr := sc.register(); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	sc.width, sc.height = width, height
	if err := sc.register(); err != nil {
		return err
	}
	d.logger.Info("rhi: swap chain resized", "width", width, "height", height)
	return nil
}

func (sc *SwapChain) release() {
	sc.unregister()
	sc.native.Release()
}

// Native returns the driver swap chain.
func (sc *SwapChain) Native() driver.SwapChain { return sc.native }

// Width returns the back buffer width.
func (sc *SwapChain) Width() uint32 { return sc.width }

// Height returns the back buffer height.
func (sc *SwapChain) Height() uint32 { return sc.height }

// Format returns the back buffer format.
func (sc *SwapChain) Format() TextureFormat { return sc.opts.Format }

// DepthFormat returns the depth buffer format, or Undefined.
func (sc *SwapChain) DepthFormat() TextureFormat { return sc.opts.DepthFormat }

// PresentMode returns the present mode.
func (sc *SwapChain) PresentMode() PresentMode { return sc.opts.PresentMode }

// BufferCount returns the number of back buffers.
func (sc *SwapChain) BufferCount() int { return len(sc.backBuffers) }

// CurrentIndex returns the index of the back buffer rendered next.
func (sc *SwapChain) CurrentIndex() uint32 { return sc.index }

// CurrentBackBuffer returns the back buffer rendered next, or
// InvalidTexture when the device was lost during a resize.
func (sc *SwapChain) CurrentBackBuffer() TextureHandle {
	if int(sc.index) >= len(sc.backBuffers) {
		return InvalidTexture
	}
	return sc.backBuffers[sc.index]
}

// BackBuffer returns back buffer i.
func (sc *SwapChain) BackBuffer(i int) TextureHandle { return sc.backBuffers[i] }

// DepthStencil returns the depth buffer, or InvalidTexture.
func (sc *SwapChain) DepthStencil() TextureHandle { return sc.depth }

// Resize recreates the swap chain buffers. A size equal to the current
// one is a no-op, as is a zero size (a minimized window). Back buffer and
// depth handles obtained earlier are invalid afterwards.
func (d *Device) Resize(width, height uint32) error {
	if d.swapChain == nil {
		return ErrNoSwapChain
	}
	if d.ring.InFrame() {
		panic("rhi: Resize called inside a frame")
	}
	if err := d.usable(); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		d.logger.Debug("rhi: resize to zero size ignored")
		return nil
	}
	return d.swapChain.resize(width, height)
}
