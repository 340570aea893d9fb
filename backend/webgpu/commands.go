// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/rhi/driver"
)

// CommandAllocator is a driver.CommandAllocator. It owns no memory: it
// enforces that one list records from it at a time and counts the lists
// closed since the last Reset.
type CommandAllocator struct {
	d         *Device
	kind      driver.QueueKind
	recording *CommandList
	closed    int
	released  bool
}

// Closed returns the number of lists closed since the last Reset.
func (a *CommandAllocator) Closed() int { return a.closed }

// Reset implements driver.CommandAllocator.
func (a *CommandAllocator) Reset() error {
	if a.recording != nil {
		return fmt.Errorf("%w: allocator reset while a list is recording", driver.ErrInvalidDesc)
	}
	a.closed = 0
	return nil
}

// Release implements driver.CommandAllocator.
func (a *CommandAllocator) Release() {
	if a.released {
		panic("webgpu: command allocator released twice")
	}
	a.released = true
	if a.recording != nil {
		a.recording.discard()
	}
}

// CommandList is a driver.CommandList over a wgpu command encoder. Each
// Reset creates a new encoder; Close finishes it into a command buffer
// that Submit consumes.
type CommandList struct {
	d       *Device
	kind    driver.QueueKind
	alloc   *CommandAllocator
	encoder *wgpu.CommandEncoder
	cb      *wgpu.CommandBuffer
	heap    driver.DescriptorHeap
	passes  int
}

// Reset implements driver.CommandList.
func (l *CommandList) Reset(alloc driver.CommandAllocator) error {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("%w: allocator %T", ErrForeignObject, alloc)
	}
	if a.kind != l.kind {
		return fmt.Errorf("%w: %s allocator for a %s list", driver.ErrInvalidDesc, a.kind, l.kind)
	}
	if l.encoder != nil {
		return fmt.Errorf("%w: list reset while recording", driver.ErrInvalidDesc)
	}
	if a.recording != nil {
		return fmt.Errorf("%w: allocator already has a recording list", driver.ErrInvalidDesc)
	}
	enc, err := l.d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: l.kind.String() + " list"})
	if err != nil {
		return wrap("create command encoder", err)
	}
	if l.cb != nil {
		// Closed but never submitted.
		l.cb.Release()
		l.cb = nil
	}
	l.alloc = a
	l.encoder = enc
	l.heap = nil
	l.passes = 0
	a.recording = l
	return nil
}

// Close implements driver.CommandList.
func (l *CommandList) Close() error {
	if l.encoder == nil {
		return fmt.Errorf("%w: list is not recording", driver.ErrInvalidDesc)
	}
	enc := l.encoder
	l.encoder = nil
	l.alloc.recording = nil
	l.alloc.closed++
	cb, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return wrap("finish command encoder", err)
	}
	l.cb = cb
	return nil
}

// discard drops an open recording.
func (l *CommandList) discard() {
	if l.encoder == nil {
		return
	}
	l.encoder.Release()
	l.encoder = nil
	l.alloc.recording = nil
}

// SetDescriptorHeap implements driver.CommandList. WebGPU binds through
// bind groups, so the heap is only recorded.
func (l *CommandList) SetDescriptorHeap(heap driver.DescriptorHeap) { l.heap = heap }

// Heap returns the heap bound last.
func (l *CommandList) Heap() driver.DescriptorHeap { return l.heap }

// Passes returns the render passes recorded since Reset.
func (l *CommandList) Passes() int { return l.passes }

func (l *CommandList) mustRecord(view driver.View, kind driver.ViewKind) *View {
	if l.encoder == nil {
		panic("webgpu: command recorded on a closed list")
	}
	v, ok := view.(*View)
	if !ok || v.tex == nil || v.desc.Kind != kind {
		panic(fmt.Sprintf("webgpu: %T is not a %s texture view", view, kind))
	}
	return v
}

// ClearRenderTarget implements driver.CommandList with a render pass
// that clears on load.
func (l *CommandList) ClearRenderTarget(view driver.View, color driver.Color) {
	v := l.mustRecord(view, driver.ViewRenderTarget)
	tv, done, err := v.attachment()
	if err != nil {
		l.d.logger.Error("webgpu: clear render target", "err", err)
		return
	}
	defer done()
	pass := l.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       tv,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: clearColor(color),
		}},
	})
	pass.End()
	pass.Release()
	l.passes++
}

// ClearDepthStencil implements driver.CommandList. Stencil is cleared
// only for formats that have it.
func (l *CommandList) ClearDepthStencil(view driver.View, depth float32, stencil uint8) {
	v := l.mustRecord(view, driver.ViewDepthStencil)
	att := &wgpu.RenderPassDepthStencilAttachment{
		View:            v.native,
		DepthLoadOp:     wgpu.LoadOpClear,
		DepthStoreOp:    wgpu.StoreOpStore,
		DepthClearValue: depth,
	}
	if v.tex.desc.Format.HasStencil() {
		att.StencilLoadOp = wgpu.LoadOpClear
		att.StencilStoreOp = wgpu.StoreOpStore
		att.StencilClearValue = uint32(stencil)
	}
	pass := l.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{DepthStencilAttachment: att})
	pass.End()
	pass.Release()
	l.passes++
}

// Release implements driver.CommandList.
func (l *CommandList) Release() {
	l.discard()
	if l.cb != nil {
		l.cb.Release()
		l.cb = nil
	}
}
