// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package dtable emulates descriptor heaps for drivers whose native API
// binds views directly (WebGPU and the gogpu HAL).
//
// A Table hands out address ranges that look like native heaps to the
// core and remembers which view was written to each address, so
// CopyDescriptor and later lookups behave as they do on Direct3D 12.
package dtable

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rhi/driver"
)

// Increment is the address distance between two table slots.
const Increment = 8

const gpuBit = driver.GPUDescriptor(1) << 62

// Table maps descriptor addresses to views of type V.
//
// Table is safe for concurrent use.
type Table[V any] struct {
	mu    sync.Mutex
	next  driver.CPUDescriptor
	slots map[driver.CPUDescriptor]V
}

// New returns an empty table.
func New[V any]() *Table[V] {
	return &Table[V]{
		next:  Increment,
		slots: make(map[driver.CPUDescriptor]V),
	}
}

// NewHeap reserves an address range for desc.
func (t *Table[V]) NewHeap(desc *driver.HeapDesc) (*Heap[V], error) {
	if desc == nil || desc.Capacity == 0 {
		return nil, fmt.Errorf("%w: empty descriptor heap", driver.ErrInvalidDesc)
	}
	t.mu.Lock()
	base := t.next
	// One spare slot keeps overruns out of the neighbouring heap.
	t.next += driver.CPUDescriptor(uint64(desc.Capacity+1) * Increment)
	t.mu.Unlock()

	h := &Heap[V]{t: t, desc: *desc, cpu: base}
	if desc.ShaderVisible {
		h.gpu = driver.GPUDescriptor(base) | gpuBit
	}
	return h, nil
}

// Put records v at cpu. A zero cpu is ignored.
func (t *Table[V]) Put(cpu driver.CPUDescriptor, v V) {
	if cpu == 0 {
		return
	}
	t.mu.Lock()
	t.slots[cpu] = v
	t.mu.Unlock()
}

// Get returns the view at cpu.
func (t *Table[V]) Get(cpu driver.CPUDescriptor) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.slots[cpu]
	return v, ok
}

// Lookup returns the view at a shader-visible address.
func (t *Table[V]) Lookup(gpu driver.GPUDescriptor) (V, bool) {
	return t.Get(driver.CPUDescriptor(gpu &^ gpuBit))
}

// Copy duplicates the view at src into dst. An empty src clears dst.
func (t *Table[V]) Copy(dst, src driver.CPUDescriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.slots[src]; ok {
		t.slots[dst] = v
	} else {
		delete(t.slots, dst)
	}
}

// Len returns the number of occupied slots.
func (t *Table[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Heap is a range of table slots. It implements driver.DescriptorHeap.
type Heap[V any] struct {
	t        *Table[V]
	desc     driver.HeapDesc
	cpu      driver.CPUDescriptor
	gpu      driver.GPUDescriptor
	released atomic.Bool
}

// CPUStart implements driver.DescriptorHeap.
func (h *Heap[V]) CPUStart() driver.CPUDescriptor { return h.cpu }

// GPUStart implements driver.DescriptorHeap.
func (h *Heap[V]) GPUStart() driver.GPUDescriptor { return h.gpu }

// Increment implements driver.DescriptorHeap.
func (h *Heap[V]) Increment() uint32 { return Increment }

// Capacity implements driver.DescriptorHeap.
func (h *Heap[V]) Capacity() uint32 { return h.desc.Capacity }

// Kind returns the heap kind.
func (h *Heap[V]) Kind() driver.HeapKind { return h.desc.Kind }

// Release implements driver.DescriptorHeap. It clears every slot of the
// heap.
func (h *Heap[V]) Release() {
	if h.released.Swap(true) {
		panic("dtable: descriptor heap released twice")
	}
	end := h.cpu.Offset(h.desc.Capacity, Increment)
	h.t.mu.Lock()
	for cpu := range h.t.slots {
		if cpu >= h.cpu && cpu < end {
			delete(h.t.slots, cpu)
		}
	}
	h.t.mu.Unlock()
}
