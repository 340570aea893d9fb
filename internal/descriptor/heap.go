// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package descriptor manages native descriptor heaps.
//
// Every heap is split in two ranges. Slots [0, persistent) hold
// descriptors that live until freed and are handed out from a dead-list.
// Slots [persistent, persistent+transient) are bump-allocated each frame
// and reset when the frame slot is reused. A shader-visible manager owns
// one native heap per frame slot so the GPU can read one heap while the
// CPU fills the next.
package descriptor

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/rhi/driver"
)

// Config sizes a Manager.
type Config struct {
	Kind          driver.HeapKind
	Persistent    uint32
	Transient     uint32
	ShaderVisible bool

	// Frames is the number of frame slots. Only shader-visible managers
	// create more than one native heap.
	Frames uint32
}

// Persistent is a descriptor slot that stays valid across frames.
type Persistent struct {
	Index uint32

	// CPU holds the slot address in every native heap of the manager.
	CPU []driver.CPUDescriptor
}

// Transient is a descriptor range valid until the frame slot is reused.
type Transient struct {
	CPU driver.CPUDescriptor
	GPU driver.GPUDescriptor

	// Increment is the byte distance between consecutive descriptors.
	Increment uint32
	Count     uint32
}

// Manager owns the native heaps of one heap kind.
type Manager struct {
	dev    driver.Device
	cfg    Config
	logger *slog.Logger
	heaps  []driver.DescriptorHeap

	mu        sync.Mutex
	allocated []bool
	dead      []uint32
	next      uint32
	live      uint32

	// Transient state belongs to the submission thread.
	current       int
	transientUsed uint32
}

// NewManager creates the native heaps.
func NewManager(dev driver.Device, cfg Config, logger *slog.Logger) (*Manager, error) {
	if cfg.Persistent+cfg.Transient == 0 {
		return nil, fmt.Errorf("descriptor: %s heap has zero capacity", cfg.Kind)
	}
	if cfg.Frames == 0 {
		cfg.Frames = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := 1
	if cfg.ShaderVisible {
		n = int(cfg.Frames)
	}
	m := &Manager{
		dev:       dev,
		cfg:       cfg,
		logger:    logger,
		allocated: make([]bool, cfg.Persistent),
	}
	for i := range n {
		h, err := dev.CreateDescriptorHeap(&driver.HeapDesc{
			Kind:          cfg.Kind,
			Capacity:      cfg.Persistent + cfg.Transient,
			ShaderVisible: cfg.ShaderVisible,
		})
		if err != nil {
			m.Release()
			return nil, fmt.Errorf("descriptor: create %s heap %d: %w", cfg.Kind, i, err)
		}
		m.heaps = append(m.heaps, h)
	}
	logger.Debug("descriptor: heaps created",
		"kind", cfg.Kind.String(), "heaps", n,
		"persistent", cfg.Persistent, "transient", cfg.Transient)
	return m, nil
}

// Kind returns the heap kind.
func (m *Manager) Kind() driver.HeapKind { return m.cfg.Kind }

// NumHeaps returns the number of native heaps.
func (m *Manager) NumHeaps() int { return len(m.heaps) }

// Heap returns the native heap used by frame slot i.
func (m *Manager) Heap(i int) driver.DescriptorHeap {
	return m.heaps[i%len(m.heaps)]
}

// CurrentHeap returns the native heap of the current frame slot.
func (m *Manager) CurrentHeap() driver.DescriptorHeap {
	return m.heaps[m.current]
}

// AllocatePersistent reserves a persistent slot. It panics when the
// persistent range is exhausted: heap sizes are static configuration.
func (m *Manager) AllocatePersistent() Persistent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var idx uint32
	switch {
	case len(m.dead) > 0:
		idx = m.dead[len(m.dead)-1]
		m.dead = m.dead[:len(m.dead)-1]
	case m.next < m.cfg.Persistent:
		idx = m.next
		m.next++
	default:
		panic(fmt.Sprintf("descriptor: %s persistent range exhausted (%d slots)", m.cfg.Kind, m.cfg.Persistent))
	}
	m.allocated[idx] = true
	m.live++

	p := Persistent{Index: idx, CPU: make([]driver.CPUDescriptor, len(m.heaps))}
	for i, h := range m.heaps {
		p.CPU[i] = h.CPUStart().Offset(idx, h.Increment())
	}
	return p
}

// FreePersistent returns a slot to the dead-list. Freeing a slot that is
// not allocated panics.
func (m *Manager) FreePersistent(index uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index >= m.cfg.Persistent || !m.allocated[index] {
		panic(fmt.Sprintf("descriptor: %s slot %d freed but not allocated", m.cfg.Kind, index))
	}
	m.allocated[index] = false
	m.dead = append(m.dead, index)
	m.live--
}

// Replicate copies the descriptor in the first heap to the same slot of
// every other heap.
func (m *Manager) Replicate(p Persistent) {
	for i := 1; i < len(p.CPU); i++ {
		m.dev.CopyDescriptor(p.CPU[i], p.CPU[0], m.cfg.Kind)
	}
}

// BeginFrame selects the heap of frame slot and empties its transient
// range. Earlier transient allocations from that slot become invalid.
func (m *Manager) BeginFrame(slot int) {
	m.current = slot % len(m.heaps)
	m.transientUsed = 0
}

// AllocateTransient bump-allocates count descriptors from the current
// heap. It panics when the transient range overflows.
func (m *Manager) AllocateTransient(count uint32) Transient {
	if m.transientUsed+count > m.cfg.Transient {
		panic(fmt.Sprintf("descriptor: %s transient range overflow: %d used + %d requested > %d",
			m.cfg.Kind, m.transientUsed, count, m.cfg.Transient))
	}
	h := m.heaps[m.current]
	off := m.cfg.Persistent + m.transientUsed
	m.transientUsed += count

	t := Transient{
		CPU:       h.CPUStart().Offset(off, h.Increment()),
		Increment: h.Increment(),
		Count:     count,
	}
	if m.cfg.ShaderVisible {
		t.GPU = h.GPUStart().Offset(off, h.Increment())
	}
	return t
}

// Stats reports slot usage.
type Stats struct {
	PersistentLive uint32
	PersistentCap  uint32
	TransientUsed  uint32
	TransientCap   uint32
}

// Stats returns current usage.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	live := m.live
	m.mu.Unlock()
	return Stats{
		PersistentLive: live,
		PersistentCap:  m.cfg.Persistent,
		TransientUsed:  m.transientUsed,
		TransientCap:   m.cfg.Transient,
	}
}

// Release destroys the native heaps.
func (m *Manager) Release() {
	for _, h := range m.heaps {
		h.Release()
	}
	m.heaps = nil
}
