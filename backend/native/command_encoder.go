// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/wgpu/hal"
)

// poolManager is implemented by HAL encoders (Vulkan) that can keep their
// command pool across EndEncoding so ResetAll recycles it.
type poolManager interface {
	SetPoolManaged(managed bool)
}

// CommandAllocator is a driver.CommandAllocator backed by one HAL command
// encoder. It keeps the command buffers finished from the encoder until
// Reset hands them back.
type CommandAllocator struct {
	d       *Device
	kind    driver.QueueKind
	encoder hal.CommandEncoder
	managed bool

	buffers   []hal.CommandBuffer
	recording bool
	released  bool
}

// Reset implements driver.CommandAllocator.
func (a *CommandAllocator) Reset() error {
	if a.recording {
		return fmt.Errorf("%w: allocator reset while recording", driver.ErrInvalidDesc)
	}
	a.recycle()
	return nil
}

func (a *CommandAllocator) recycle() {
	if a.managed {
		a.encoder.ResetAll(a.buffers)
	} else {
		for _, cb := range a.buffers {
			a.d.dev.FreeCommandBuffer(cb)
		}
		a.encoder.ResetAll(nil)
	}
	clear(a.buffers)
	a.buffers = a.buffers[:0]
}

// Buffers returns the number of command buffers waiting for Reset.
func (a *CommandAllocator) Buffers() int { return len(a.buffers) }

// Release implements driver.CommandAllocator.
func (a *CommandAllocator) Release() {
	if a.released {
		panic("native: command allocator released twice")
	}
	a.released = true
	if a.recording {
		a.encoder.DiscardEncoding()
		a.recording = false
	}
	a.recycle()
	a.encoder.Destroy()
}

// CommandList is a driver.CommandList. It records into the encoder of
// its current allocator; clears become render passes with a clear load
// op.
type CommandList struct {
	d    *Device
	kind driver.QueueKind

	alloc     *CommandAllocator
	recording bool
	cb        hal.CommandBuffer
	heap      driver.DescriptorHeap
	passes    int
}

// Reset implements driver.CommandList.
func (l *CommandList) Reset(alloc driver.CommandAllocator) error {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("%w: command allocator %T", ErrForeignObject, alloc)
	}
	if a.kind != l.kind {
		return fmt.Errorf("%w: %s allocator for %s list", driver.ErrInvalidDesc, a.kind, l.kind)
	}
	if l.recording {
		return fmt.Errorf("%w: command list is recording", driver.ErrInvalidDesc)
	}
	if a.recording {
		return fmt.Errorf("%w: allocator is recording another list", driver.ErrInvalidDesc)
	}
	if err := a.encoder.BeginEncoding(l.kind.String() + " list"); err != nil {
		return l.d.fail("begin encoding", err)
	}
	a.recording = true
	l.alloc = a
	l.recording = true
	l.cb = nil
	l.heap = nil
	l.passes = 0
	return nil
}

// Close implements driver.CommandList.
func (l *CommandList) Close() error {
	if !l.recording {
		return fmt.Errorf("%w: command list is closed", driver.ErrInvalidDesc)
	}
	l.recording = false
	l.alloc.recording = false
	cb, err := l.alloc.encoder.EndEncoding()
	if err != nil {
		return l.d.fail("end encoding", err)
	}
	l.alloc.buffers = append(l.alloc.buffers, cb)
	l.cb = cb
	return nil
}

// SetDescriptorHeap implements driver.CommandList. The HAL binds
// resources through bind groups, so the heap is only remembered.
func (l *CommandList) SetDescriptorHeap(heap driver.DescriptorHeap) { l.heap = heap }

// Heap returns the heap bound by SetDescriptorHeap.
func (l *CommandList) Heap() driver.DescriptorHeap { return l.heap }

// Passes returns the number of render passes recorded since Reset.
func (l *CommandList) Passes() int { return l.passes }

func (l *CommandList) textureView(view driver.View, kind driver.ViewKind) *View {
	v, ok := view.(*View)
	if !ok || v.native == nil || v.desc.Kind != kind {
		panic(fmt.Sprintf("native: clear needs a %s texture view, got %T", kind, view))
	}
	if !l.recording {
		panic("native: clear on a closed command list")
	}
	return v
}

// ClearRenderTarget implements driver.CommandList.
func (l *CommandList) ClearRenderTarget(view driver.View, color driver.Color) {
	v := l.textureView(view, driver.ViewRenderTarget)
	rp := l.alloc.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "clear render target",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       v.native,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: color,
		}},
	})
	rp.End()
	l.passes++
}

// ClearDepthStencil implements driver.CommandList.
func (l *CommandList) ClearDepthStencil(view driver.View, depth float32, stencil uint8) {
	v := l.textureView(view, driver.ViewDepthStencil)
	att := &hal.RenderPassDepthStencilAttachment{
		View:            v.native,
		DepthLoadOp:     gputypes.LoadOpClear,
		DepthStoreOp:    gputypes.StoreOpStore,
		DepthClearValue: depth,
	}
	if v.tex.desc.Format.HasStencil() {
		att.StencilLoadOp = gputypes.LoadOpClear
		att.StencilStoreOp = gputypes.StoreOpStore
		att.StencilClearValue = uint32(stencil)
	}
	rp := l.alloc.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:                  "clear depth stencil",
		DepthStencilAttachment: att,
	})
	rp.End()
	l.passes++
}

// Release implements driver.CommandList.
func (l *CommandList) Release() {
	if l.recording {
		l.alloc.encoder.DiscardEncoding()
		l.alloc.recording = false
		l.recording = false
	}
	l.alloc = nil
}
