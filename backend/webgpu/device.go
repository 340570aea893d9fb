// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package webgpu

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/dtable"
	"github.com/gogpu/rhi/internal/texel"
)

// Device is a driver.Device over a wgpu-native device.
//
// WebGPU exposes one queue, so the graphics, compute and copy queues of
// the device all submit to it in call order.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     driver.AdapterInfo
	logger   *slog.Logger

	table  *dtable.Table[*View]
	queues [driver.QueueKindCount]*Queue

	// submitMu orders submissions and guards lastSubmit.
	submitMu   sync.Mutex
	lastSubmit wgpu.SubmissionIndex

	destroyed atomic.Bool
}

func newDevice(instance *wgpu.Instance, adapter *wgpu.Adapter, device *wgpu.Device, info driver.AdapterInfo, logger *slog.Logger) *Device {
	d := &Device{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
		info:     info,
		logger:   logger,
		table:    dtable.New[*View](),
	}
	for k := range d.queues {
		d.queues[k] = &Queue{d: d, kind: driver.QueueKind(k)}
	}
	return d
}

// WGPU returns the wrapped device and queue.
func (d *Device) WGPU() (*wgpu.Device, *wgpu.Queue) { return d.device, d.queue }

// Info implements driver.Device.
func (d *Device) Info() driver.AdapterInfo { return d.info }

// CreateBuffer implements driver.Device. Buffers can always be written
// from the queue.
func (d *Device) CreateBuffer(desc *driver.BufferDesc) (driver.Buffer, error) {
	if desc == nil || desc.Size == 0 {
		return nil, fmt.Errorf("%w: zero-sized buffer", driver.ErrInvalidDesc)
	}
	native, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  alignUp(desc.Size, copyAlignment),
		Usage: bufferUsage(desc.Usage) | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, wrap("create buffer", err)
	}
	return &Buffer{object: object{d: d, name: desc.Label}, native: native, desc: *desc}, nil
}

// CreateTexture implements driver.Device.
func (d *Device) CreateTexture(desc *driver.TextureDesc) (driver.Texture, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: zero-sized texture", driver.ErrInvalidDesc)
	}
	format, err := textureFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	native, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: max(desc.DepthOrLayers, 1),
		},
		MipLevelCount: max(desc.MipLevels, 1),
		SampleCount:   max(desc.SampleCount, 1),
		Dimension:     textureDimension(desc.Type),
		Format:        format,
		Usage:         textureUsage(desc.Usage) | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, wrap("create texture", err)
	}
	return &Texture{object: object{d: d, name: desc.Label}, native: native, desc: *desc}, nil
}

// CreateView implements driver.Device. Buffer views carry no native
// object: WebGPU binds buffers directly.
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
		layer, err := texel.ViewLayer(&r.desc, desc)
		if err != nil {
			return nil, err
		}
		v = &View{d: d, desc: *desc, tex: r}
		if r.chain == nil {
			if v.native, err = d.createTextureView(r, desc, layer); err != nil {
				return nil, err
			}
		} else if desc.Kind != driver.ViewRenderTarget {
			return nil, fmt.Errorf("%w: %s view of a surface texture", driver.ErrInvalidDesc, desc.Kind)
		}
	default:
		return nil, fmt.Errorf("%w: view of %T", ErrForeignObject, res)
	}
	d.table.Put(dst, v)
	return v, nil
}

func (d *Device) createTextureView(t *Texture, desc *driver.ViewDesc, layer uint32) (*wgpu.TextureView, error) {
	f := desc.Format
	if f == gputypes.TextureFormatUndefined {
		f = t.desc.Format
	}
	format, err := textureFormat(f)
	if err != nil {
		return nil, err
	}
	tv, err := t.native.CreateView(&wgpu.TextureViewDescriptor{
		Label:           t.name,
		Format:          format,
		Dimension:       viewDimension(t.desc.Type),
		BaseMipLevel:    desc.MipLevel,
		MipLevelCount:   1,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, wrap("create texture view", err)
	}
	return tv, nil
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

// CreateCommandAllocator implements driver.Device. WebGPU encoders own
// their memory, so the allocator only tracks the lists recorded from it.
func (d *Device) CreateCommandAllocator(kind driver.QueueKind) (driver.CommandAllocator, error) {
	return &CommandAllocator{d: d, kind: kind}, nil
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

// CreateSwapChain implements driver.Device. Windows that implement
// SurfaceSource present through a surface; others render offscreen.
func (d *Device) CreateSwapChain(window driver.Window, desc *driver.SwapChainDesc) (driver.SwapChain, error) {
	if window == nil || !window.Valid() {
		return nil, fmt.Errorf("%w: invalid window", driver.ErrInvalidDesc)
	}
	if desc == nil || desc.BufferCount == 0 || desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: swap chain needs a size and at least one buffer", driver.ErrInvalidDesc)
	}
	sc := &SwapChain{d: d, desc: *desc}
	if src, ok := window.(SurfaceSource); ok {
		if err := sc.createSurface(src); err != nil {
			return nil, err
		}
		return sc, nil
	}
	if err := sc.createBuffers(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Queue implements driver.Device.
func (d *Device) Queue(kind driver.QueueKind) driver.Queue { return d.queues[kind] }

// Destroy implements driver.Device.
func (d *Device) Destroy() {
	if d.destroyed.Swap(true) {
		panic("webgpu: device destroyed twice")
	}
	d.device.Poll(true, nil)
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}
