// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/dtable"
	"github.com/gogpu/rhi/internal/texel"
	"github.com/gogpu/wgpu/hal"
)

// Device is a driver.Device over a HAL device and its queue.
//
// The HAL exposes one queue, so the graphics, compute and copy queues of
// the device all submit to it in call order.
type Device struct {
	dev      hal.Device
	queue    hal.Queue
	instance hal.Instance
	owned    bool
	info     driver.AdapterInfo
	logger   *slog.Logger

	table  *dtable.Table[*View]
	queues [driver.QueueKindCount]*Queue

	// submitMu orders submissions and guards lastSubmit.
	submitMu   sync.Mutex
	lastSubmit uint64

	lost      atomic.Bool
	destroyed atomic.Bool
}

func newDevice(dev hal.Device, queue hal.Queue, info driver.AdapterInfo, logger *slog.Logger) *Device {
	d := &Device{
		dev:    dev,
		queue:  queue,
		info:   info,
		logger: logger,
		table:  dtable.New[*View](),
	}
	for k := range d.queues {
		d.queues[k] = &Queue{d: d, kind: driver.QueueKind(k)}
	}
	return d
}

// HAL returns the wrapped HAL device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.dev, d.queue }

// Lost reports whether a HAL call reported device loss.
func (d *Device) Lost() bool { return d.lost.Load() }

// fail wraps err and latches device loss.
func (d *Device) fail(op string, err error) error {
	err = wrap(op, err)
	if isLost(err) && !d.lost.Swap(true) {
		d.logger.Error("native: device lost", "op", op, "err", err)
	}
	return err
}

// Info implements driver.Device.
func (d *Device) Info() driver.AdapterInfo { return d.info }

// CreateBuffer implements driver.Device. Buffers can always be written
// from the queue.
func (d *Device) CreateBuffer(desc *driver.BufferDesc) (driver.Buffer, error) {
	if desc == nil || desc.Size == 0 {
		return nil, fmt.Errorf("%w: zero-sized buffer", driver.ErrInvalidDesc)
	}
	native, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  alignUp(desc.Size, copyAlignment),
		Usage: bufferUsage(desc.Usage) | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, d.fail("create buffer", err)
	}
	return &Buffer{object: object{d: d, name: desc.Label}, native: native, desc: *desc}, nil
}

// CreateTexture implements driver.Device.
func (d *Device) CreateTexture(desc *driver.TextureDesc) (driver.Texture, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: zero-sized texture", driver.ErrInvalidDesc)
	}
	if desc.Format == gputypes.TextureFormatUndefined {
		return nil, fmt.Errorf("%w: undefined texture format", driver.ErrInvalidDesc)
	}
	native, err := d.dev.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: max(desc.DepthOrLayers, 1),
		},
		MipLevelCount: max(desc.MipLevels, 1),
		SampleCount:   max(desc.SampleCount, 1),
		Dimension:     textureDimension(desc.Type),
		Format:        desc.Format,
		Usage:         textureUsage(desc.Usage) | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, d.fail("create texture", err)
	}
	return &Texture{object: object{d: d, name: desc.Label}, native: native, desc: *desc}, nil
}

// CreateView implements driver.Device. Buffer views carry no native
// object: the HAL binds buffers directly.
func (d *Device) CreateView(res driver.Resource, desc *driver.ViewDesc, dst driver.CPUDescriptor) (driver.View, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil view descriptor", driver.ErrInvalidDesc)
	}
	var v *View
	switch r := res.(type) {
	case *Buffer:
		if desc.Kind == driver.ViewRenderTarget || desc.Kind == driver.ViewDepthStencil {
			return nil, fmt.Errorf("%w: %s view of a buffer", driver.ErrInvalidDesc, desc.Kind)
		}
		v = &View{d: d, desc: *desc, buf: r}
	case *Texture:
		nv, err := d.createTextureView(r, desc)
		if err != nil {
			return nil, err
		}
		v = &View{d: d, desc: *desc, tex: r, native: nv}
	default:
		return nil, fmt.Errorf("%w: view of %T", ErrForeignObject, res)
	}
	d.table.Put(dst, v)
	return v, nil
}

func (d *Device) createTextureView(t *Texture, desc *driver.ViewDesc) (hal.TextureView, error) {
	layer, err := texel.ViewLayer(&t.desc, desc)
	if err != nil {
		return nil, err
	}
	nv, err := d.dev.CreateTextureView(t.native, &hal.TextureViewDescriptor{
		Label:           t.name,
		Format:          desc.Format,
		Dimension:       viewDimension(t.desc.Type),
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    desc.MipLevel,
		MipLevelCount:   1,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return nil, d.fail("create texture view", err)
	}
	return nv, nil
}

// CopyDescriptor implements driver.Device.
func (d *Device) CopyDescriptor(dst, src driver.CPUDescriptor, _ driver.HeapKind) {
	d.table.Copy(dst, src)
}

// Descriptor returns the view written to cpu.
func (d *Device) Descriptor(cpu driver.CPUDescriptor) (*View, bool) {
	return d.table.Get(cpu)
}

// CreateFence implements driver.Device.
func (d *Device) CreateFence(initial uint64) (driver.Fence, error) {
	return &Fence{d: d, completed: initial}, nil
}

// CreateCommandAllocator implements driver.Device.
func (d *Device) CreateCommandAllocator(kind driver.QueueKind) (driver.CommandAllocator, error) {
	enc, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: kind.String() + " allocator"})
	if err != nil {
		return nil, d.fail("create command encoder", err)
	}
	a := &CommandAllocator{d: d, kind: kind, encoder: enc}
	if pm, ok := enc.(poolManager); ok {
		pm.SetPoolManaged(true)
		a.managed = true
	}
	return a, nil
}

// CreateCommandList implements driver.Device. The list starts recording
// into alloc.
func (d *Device) CreateCommandList(kind driver.QueueKind, alloc driver.CommandAllocator) (driver.CommandList, error) {
	l := &CommandList{d: d, kind: kind}
	if err := l.Reset(alloc); err != nil {
		return nil, err
	}
	return l, nil
}

// CreateDescriptorHeap implements driver.Device.
func (d *Device) CreateDescriptorHeap(desc *driver.HeapDesc) (driver.DescriptorHeap, error) {
	return d.table.NewHeap(desc)
}

// CreateSwapChain implements driver.Device. The window only has to be
// valid: frames go to an offscreen ring.
func (d *Device) CreateSwapChain(window driver.Window, desc *driver.SwapChainDesc) (driver.SwapChain, error) {
	if window == nil || !window.Valid() {
		return nil, fmt.Errorf("%w: invalid window", driver.ErrInvalidDesc)
	}
	if desc == nil || desc.BufferCount == 0 {
		return nil, fmt.Errorf("%w: swap chain needs at least one buffer", driver.ErrInvalidDesc)
	}
	sc := &SwapChain{d: d, desc: *desc}
	if err := sc.createBuffers(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Queue implements driver.Device.
func (d *Device) Queue(kind driver.QueueKind) driver.Queue { return d.queues[kind] }

// Destroy implements driver.Device. A shared device is left to its owner.
func (d *Device) Destroy() {
	if d.destroyed.Swap(true) {
		panic("native: device destroyed twice")
	}
	if !d.owned {
		return
	}
	if err := d.dev.WaitIdle(); err != nil {
		d.logger.Warn("native: wait idle before destroy", "err", err)
	}
	d.dev.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
	}
}
