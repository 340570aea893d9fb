// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pool provides a fixed-capacity slot allocator that maps opaque
// integer handles to resource records.
package pool

import (
	"fmt"
	"log/slog"
	"sync"
)

// Handle identifies a live slot. The zero Handle is invalid.
//
// The low IndexBits hold index+1 and the remaining bits hold the slot
// generation, so a handle to a freed slot is detected even after the
// index is reused.
type Handle uint32

// Invalid is the handle returned when allocation fails.
const Invalid Handle = 0

const (
	// IndexBits is the number of handle bits that carry the slot index.
	IndexBits = 20

	// MaxCapacity is the largest pool capacity.
	MaxCapacity = 1<<IndexBits - 1

	indexMask = 1<<IndexBits - 1
	genMask   = 1<<(32-IndexBits) - 1
)

func makeHandle(index uint32, gen uint16) Handle {
	return Handle(uint32(gen&genMask)<<IndexBits | (index + 1))
}

// Index returns the slot index of h. It is only meaningful when h is
// not Invalid.
func (h Handle) Index() uint32 { return uint32(h)&indexMask - 1 }

// Generation returns the slot generation encoded in h.
func (h Handle) Generation() uint16 { return uint16(uint32(h) >> IndexBits) }

// IsValid reports whether h can refer to a slot at all.
func (h Handle) IsValid() bool { return uint32(h)&indexMask != 0 }

func (h Handle) String() string {
	if !h.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%d#%d", h.Index(), h.Generation())
}

type slot[T any] struct {
	value T
	gen   uint16
	alive bool
}

// Pool stores up to a fixed number of records of type T.
//
// Alloc and Dealloc are serialized by a pool-wide lock. Lookups take a
// read lock and are O(1).
type Pool[T any] struct {
	name   string
	logger *slog.Logger

	mu    sync.RWMutex
	slots []slot[T]
	free  []uint32
	live  int
}

// New creates a pool of the given capacity. The name appears in log
// messages and panics.
func New[T any](name string, capacity int, logger *slog.Logger) *Pool[T] {
	if capacity <= 0 || capacity > MaxCapacity {
		panic(fmt.Sprintf("pool: %s capacity %d out of range [1, %d]", name, capacity, MaxCapacity))
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pool[T]{
		name:   name,
		logger: logger,
		slots:  make([]slot[T], capacity),
		free:   make([]uint32, capacity),
	}
	// Pop order hands out index 0 first.
	for i := range p.free {
		p.free[i] = uint32(capacity - 1 - i)
	}
	return p
}

// Alloc stores v in a free slot and returns its handle. When the pool is
// full it logs an error and returns Invalid.
func (p *Pool[T]) Alloc(v T) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		p.logger.Error("pool: capacity exhausted", "pool", p.name, "capacity", len(p.slots))
		return Invalid
	}
	idx := p.free[n-1]
	p.free = p.free[:n-1]

	s := &p.slots[idx]
	s.value = v
	s.alive = true
	p.live++
	return makeHandle(idx, s.gen)
}

// Dealloc frees the slot of h and returns the record it held.
// Dealloc panics if h is not live.
func (p *Pool[T]) Dealloc(h Handle) T {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.mustSlot(h)
	v := s.value
	var zero T
	s.value = zero
	s.alive = false
	s.gen = (s.gen + 1) & genMask
	p.free = append(p.free, h.Index())
	p.live--
	return v
}

// Get returns the record of h. Get panics if h is not live.
func (p *Pool[T]) Get(h Handle) T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mustSlot(h).value
}

// Lookup returns the record of h and whether h is live.
func (p *Pool[T]) Lookup(h Handle) (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s := p.slot(h); s != nil {
		return s.value, true
	}
	var zero T
	return zero, false
}

// Contains reports whether h is live.
func (p *Pool[T]) Contains(h Handle) bool {
	_, ok := p.Lookup(h)
	return ok
}

// Len returns the number of live handles.
func (p *Pool[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.live
}

// Cap returns the pool capacity.
func (p *Pool[T]) Cap() int { return len(p.slots) }

// Each calls fn for every live handle in index order. fn must not call
// Alloc or Dealloc on the same pool.
func (p *Pool[T]) Each(fn func(Handle, T)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i := range p.slots {
		s := &p.slots[i]
		if s.alive {
			fn(makeHandle(uint32(i), s.gen), s.value)
		}
	}
}

// caller holds p.mu
func (p *Pool[T]) slot(h Handle) *slot[T] {
	if !h.IsValid() {
		return nil
	}
	idx := h.Index()
	if idx >= uint32(len(p.slots)) {
		return nil
	}
	s := &p.slots[idx]
	if !s.alive || s.gen != h.Generation() {
		return nil
	}
	return s
}

// caller holds p.mu
func (p *Pool[T]) mustSlot(h Handle) *slot[T] {
	s := p.slot(h)
	if s == nil {
		panic(fmt.Sprintf("pool: %s: stale or invalid handle %s", p.name, h))
	}
	return s
}
