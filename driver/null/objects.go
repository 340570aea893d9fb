// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package null

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rhi/driver"
)

// object is the bookkeeping shared by every null object.
type object struct {
	dev      *Device
	id       uint64
	name     string
	released atomic.Bool
}

// ID returns a device-unique object id.
func (o *object) ID() uint64 { return o.id }

// Name returns the debug name.
func (o *object) Name() string { return o.name }

// Released reports whether Release was called.
func (o *object) Released() bool { return o.released.Load() }

func (o *object) SetName(name string) { o.name = name }

func (o *object) Release() {
	if o.released.Swap(true) {
		panic(fmt.Sprintf("null: object %d released twice", o.id))
	}
	o.dev.released()
}

// Buffer is a null driver.Buffer backed by host memory.
type Buffer struct {
	object
	desc driver.BufferDesc

	mu   sync.Mutex
	data []byte
}

// Size implements driver.Buffer.
func (b *Buffer) Size() uint64 { return b.desc.Size }

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// Texture is a null driver.Texture. Uploaded bytes are counted, not kept.
type Texture struct {
	object
	desc driver.TextureDesc

	uploaded atomic.Int64
}

// Desc implements driver.Texture.
func (t *Texture) Desc() driver.TextureDesc { return t.desc }

// Uploaded returns the number of bytes written through WriteTexture.
func (t *Texture) Uploaded() int64 { return t.uploaded.Load() }

// View is a null driver.View.
type View struct {
	object
	desc driver.ViewDesc
	res  driver.Resource
	cpu  driver.CPUDescriptor
}

// Kind implements driver.View.
func (v *View) Kind() driver.ViewKind { return v.desc.Kind }

// Desc returns the descriptor the view was created from.
func (v *View) Desc() driver.ViewDesc { return v.desc }

// Resource returns the viewed resource.
func (v *View) Resource() driver.Resource { return v.res }

// DescriptorHeap is a null driver.DescriptorHeap.
type DescriptorHeap struct {
	object
	desc driver.HeapDesc
	cpu  driver.CPUDescriptor
	gpu  driver.GPUDescriptor
}

// CPUStart implements driver.DescriptorHeap.
func (h *DescriptorHeap) CPUStart() driver.CPUDescriptor { return h.cpu }

// GPUStart implements driver.DescriptorHeap.
func (h *DescriptorHeap) GPUStart() driver.GPUDescriptor { return h.gpu }

// Increment implements driver.DescriptorHeap.
func (h *DescriptorHeap) Increment() uint32 { return descriptorIncrement }

// Capacity implements driver.DescriptorHeap.
func (h *DescriptorHeap) Capacity() uint32 { return h.desc.Capacity }

// CommandAllocator is a null driver.CommandAllocator.
type CommandAllocator struct {
	object
	kind   driver.QueueKind
	resets atomic.Int64
}

// Reset implements driver.CommandAllocator.
func (a *CommandAllocator) Reset() error {
	a.resets.Add(1)
	return nil
}

// Resets returns how many times the allocator was reset.
func (a *CommandAllocator) Resets() int { return int(a.resets.Load()) }

// Clear is a recorded clear command.
type Clear struct {
	View    *View
	Color   driver.Color
	Depth   float32
	Stencil uint8
}

// CommandList is a null driver.CommandList. It records clears so tests
// can inspect what a frame did.
type CommandList struct {
	object
	kind driver.QueueKind

	mu        sync.Mutex
	alloc     *CommandAllocator
	recording bool
	heap      driver.DescriptorHeap
	clears    []Clear
}

// Reset implements driver.CommandList.
func (l *CommandList) Reset(alloc driver.CommandAllocator) error {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("%w: foreign command allocator", driver.ErrInvalidDesc)
	}
	if a.kind != l.kind {
		return fmt.Errorf("%w: %s allocator for %s list", driver.ErrInvalidDesc, a.kind, l.kind)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recording {
		return fmt.Errorf("%w: command list is recording", driver.ErrInvalidDesc)
	}
	l.alloc = a
	l.recording = true
	l.heap = nil
	l.clears = l.clears[:0]
	return nil
}

// Close implements driver.CommandList.
func (l *CommandList) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.recording {
		return fmt.Errorf("%w: command list is closed", driver.ErrInvalidDesc)
	}
	l.recording = false
	return nil
}

// Recording reports whether the list is open.
func (l *CommandList) Recording() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recording
}

// Allocator returns the allocator of the current recording.
func (l *CommandList) Allocator() *CommandAllocator {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.alloc
}

// Clears returns the clears recorded since the last Reset.
func (l *CommandList) Clears() []Clear {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Clear(nil), l.clears...)
}

// Heap returns the bound descriptor heap.
func (l *CommandList) Heap() driver.DescriptorHeap {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.heap
}

func (l *CommandList) mustRecord() {
	if !l.recording {
		panic("null: command recorded into a closed list")
	}
}

// SetDescriptorHeap implements driver.CommandList.
func (l *CommandList) SetDescriptorHeap(heap driver.DescriptorHeap) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mustRecord()
	l.heap = heap
}

// ClearRenderTarget implements driver.CommandList.
func (l *CommandList) ClearRenderTarget(view driver.View, color driver.Color) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mustRecord()
	v, _ := view.(*View)
	l.clears = append(l.clears, Clear{View: v, Color: color})
}

// ClearDepthStencil implements driver.CommandList.
func (l *CommandList) ClearDepthStencil(view driver.View, depth float32, stencil uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mustRecord()
	v, _ := view.(*View)
	l.clears = append(l.clears, Clear{View: v, Depth: depth, Stencil: stencil})
}

// Queue is a null driver.Queue.
type Queue struct {
	dev  *Device
	kind driver.QueueKind

	mu        sync.Mutex
	submitted int
	gpuWaits  int
}

// Submitted returns the number of command lists executed so far.
func (q *Queue) Submitted() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitted
}

// GPUWaits returns the number of WaitFence calls.
func (q *Queue) GPUWaits() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gpuWaits
}

// Submit implements driver.Queue.
func (q *Queue) Submit(lists []driver.CommandList, signal driver.Fence, value uint64) error {
	if q.dev.lost.Load() {
		return fmt.Errorf("null: submit: %w", driver.ErrDeviceLost)
	}
	if err := q.dev.takeFailure(OpSubmit); err != nil {
		return err
	}
	for _, l := range lists {
		if nl, ok := l.(*CommandList); ok && nl.Recording() {
			panic("null: submitted a command list that is still recording")
		}
	}
	q.mu.Lock()
	q.submitted += len(lists)
	q.mu.Unlock()
	if f, ok := signal.(*Fence); ok {
		f.signal(value)
	}
	return nil
}

// WaitFence implements driver.Queue. The null GPU has nothing to order,
// so the wait is only counted.
func (q *Queue) WaitFence(_ driver.Fence, _ uint64) error {
	if q.dev.lost.Load() {
		return fmt.Errorf("null: wait: %w", driver.ErrDeviceLost)
	}
	q.mu.Lock()
	q.gpuWaits++
	q.mu.Unlock()
	return nil
}

// WriteBuffer implements driver.Queue.
func (q *Queue) WriteBuffer(buf driver.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*Buffer)
	if !ok {
		return fmt.Errorf("%w: foreign buffer", driver.ErrInvalidDesc)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("%w: write of %d bytes at %d overflows %d-byte buffer",
			driver.ErrInvalidDesc, len(data), offset, b.desc.Size)
	}
	b.mu.Lock()
	copy(b.data[offset:], data)
	b.mu.Unlock()
	return nil
}

// WriteTexture implements driver.Queue.
func (q *Queue) WriteTexture(tex driver.Texture, mip, slice uint32, data []byte) error {
	t, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("%w: foreign texture", driver.ErrInvalidDesc)
	}
	if mip >= max(t.desc.MipLevels, 1) || slice >= max(t.desc.DepthOrLayers, 1) {
		return fmt.Errorf("%w: subresource %d/%d out of range", driver.ErrInvalidDesc, mip, slice)
	}
	t.uploaded.Add(int64(len(data)))
	return nil
}

// Window is a driver.Window with a fixed size.
type Window struct {
	mu     sync.Mutex
	width  int
	height int
	closed bool
}

// NewWindow returns a window of the given size.
func NewWindow(width, height int) *Window {
	return &Window{width: width, height: height}
}

// Handle implements driver.Window.
func (w *Window) Handle() uintptr { return 1 }

// Size implements driver.Window.
func (w *Window) Size() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// Valid implements driver.Window.
func (w *Window) Valid() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

// SetSize changes the reported size.
func (w *Window) SetSize(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
}

// Close makes the window invalid.
func (w *Window) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
