// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
)

// BeginFrame waits until a frame slot is free, retires the deferred
// releases of that slot and opens the frame's command list.
//
// It returns false when no frame can be recorded: the device is lost or
// closed, the window is gone, or the native calls failed. Skip rendering
// and EndFrame in that case.
func (d *Device) BeginFrame() bool {
	if d.State() != StateReady {
		return false
	}
	if d.ring.InFrame() {
		panic("rhi: BeginFrame called twice without EndFrame")
	}
	if d.swapChain != nil && !d.swapChain.window.Valid() {
		d.logger.Debug("rhi: frame skipped, window is gone")
		return false
	}

	slot, err := d.ring.BeginFrame()
	if err != nil {
		d.logger.Error("rhi: begin frame failed", "err", err)
		d.checkLost(err)
		return false
	}
	d.slot = slot
	d.heaps[driver.HeapResource].BeginFrame(slot)

	gfx := d.queues[QueueGraphics]
	alloc, err := gfx.RequestAllocator()
	if err != nil {
		d.ring.CancelFrame()
		d.logger.Error("rhi: command allocator unavailable", "err", err)
		d.checkLost(err)
		return false
	}
	if err := d.openList(alloc); err != nil {
		// Nothing was recorded, so the allocator is reusable at once.
		gfx.DiscardAllocator(gfx.LastCompleted(), alloc)
		d.ring.CancelFrame()
		d.logger.Error("rhi: command list unavailable", "err", err)
		d.checkLost(err)
		return false
	}
	d.alloc = alloc
	d.list.SetDescriptorHeap(d.heaps[driver.HeapResource].CurrentHeap())
	d.ctx = &CommandContext{d: d, list: d.list}
	return true
}

func (d *Device) openList(alloc driver.CommandAllocator) error {
	if d.list == nil {
		list, err := d.native.CreateCommandList(QueueGraphics, alloc)
		if err != nil {
			return fmt.Errorf("rhi: create command list: %w", err)
		}
		d.list = list
		return nil
	}
	if err := d.list.Reset(alloc); err != nil {
		return fmt.Errorf("rhi: reset command list: %w", err)
	}
	return nil
}

// CommandList returns the recording context of the open frame, or nil
// outside BeginFrame/EndFrame.
func (d *Device) CommandList() *CommandContext { return d.ctx }

// EndFrame submits the frame's commands to the graphics queue, signals
// the frame fence and presents the swap chain.
//
// On a lost device EndFrame returns an error wrapping ErrDeviceLost. The
// device stays lost until it is closed and recreated.
func (d *Device) EndFrame() error {
	if err := d.usable(); err != nil {
		if d.ring.InFrame() {
			d.abortFrame()
		}
		return fmt.Errorf("rhi: end frame: %w", err)
	}
	if !d.ring.InFrame() {
		panic("rhi: EndFrame called without BeginFrame")
	}
	d.ctx.list = nil
	d.ctx = nil

	gfx := d.queues[QueueGraphics]
	if err := d.list.Close(); err != nil {
		d.abortFrame()
		return d.frameError("close command list", err)
	}
	v, err := gfx.Execute(d.list)
	if err != nil {
		d.abortFrame()
		return d.frameError("submit", err)
	}
	gfx.DiscardAllocator(v, d.alloc)
	d.alloc = nil

	if err := d.ring.EndFrame(); err != nil {
		return d.frameError("signal frame", err)
	}
	if d.swapChain != nil {
		if err := d.swapChain.present(); err != nil {
			return d.frameError("present", err)
		}
	}
	return nil
}

// abortFrame closes the open frame without submitting it.
func (d *Device) abortFrame() {
	if d.ctx != nil {
		d.ctx.list = nil
		d.ctx = nil
	}
	if d.alloc != nil {
		gfx := d.queues[QueueGraphics]
		gfx.DiscardAllocator(gfx.NextFenceValue(), d.alloc)
		d.alloc = nil
	}
	d.ring.CancelFrame()
}

func (d *Device) frameError(op string, err error) error {
	d.logger.Error("rhi: "+op+" failed", "frame", d.ring.CPUFrame(), "err", err)
	d.checkLost(err)
	return fmt.Errorf("rhi: end frame: %w", err)
}

// TransientDescriptors is a descriptor range valid until the frame slot
// is reused. Do not keep it across frames.
type TransientDescriptors struct {
	CPU driver.CPUDescriptor
	GPU driver.GPUDescriptor

	// Increment is the byte distance between consecutive descriptors.
	Increment uint32
	Count     uint32
}

// At returns the CPU and GPU addresses of descriptor i of the range.
func (t TransientDescriptors) At(i uint32) (driver.CPUDescriptor, driver.GPUDescriptor) {
	if i >= t.Count {
		panic(fmt.Sprintf("rhi: transient descriptor %d out of range [0, %d)", i, t.Count))
	}
	gpu := t.GPU
	if gpu != 0 {
		gpu = gpu.Offset(i, t.Increment)
	}
	return t.CPU.Offset(i, t.Increment), gpu
}

// CommandContext records the commands of one frame. It is valid between
// BeginFrame and EndFrame and must be used from one goroutine.
type CommandContext struct {
	d    *Device
	list driver.CommandList
}

func (c *CommandContext) mustRecord() {
	if c.list == nil {
		panic("rhi: CommandContext used after EndFrame")
	}
}

// Native returns the driver command list.
func (c *CommandContext) Native() driver.CommandList {
	c.mustRecord()
	return c.list
}

// ClearRenderTarget clears mip 0, slice 0 of tex to color.
func (c *CommandContext) ClearRenderTarget(tex TextureHandle, color Color) error {
	c.mustRecord()
	v, err := c.d.RenderTargetView(tex, gputypes.TextureFormatUndefined, 0, 0)
	if err != nil {
		return err
	}
	c.list.ClearRenderTarget(v.Native(), color)
	return nil
}

// ClearDepthStencil clears mip 0, slice 0 of the depth texture tex.
func (c *CommandContext) ClearDepthStencil(tex TextureHandle, depth float32, stencil uint8) error {
	c.mustRecord()
	v, err := c.d.DepthStencilView(tex, gputypes.TextureFormatUndefined, 0, 0)
	if err != nil {
		return err
	}
	c.list.ClearDepthStencil(v.Native(), depth, stencil)
	return nil
}

// AllocateTransientDescriptors bump-allocates n descriptors from the
// shader-visible heap of the current frame slot. It panics when the
// transient range is exhausted.
func (c *CommandContext) AllocateTransientDescriptors(n uint32) TransientDescriptors {
	c.mustRecord()
	t := c.d.heaps[driver.HeapResource].AllocateTransient(n)
	return TransientDescriptors{CPU: t.CPU, GPU: t.GPU, Increment: t.Increment, Count: t.Count}
}
