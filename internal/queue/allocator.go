// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package queue

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/rhi/driver"
)

type readyEntry struct {
	fence uint64
	alloc driver.CommandAllocator
}

// AllocatorPool caches command allocators for one queue kind.
//
// Allocators move from in use to a FIFO of pending entries tagged with the
// fence value of their last submission. Only the oldest pending entry is
// considered for reuse. Allocators are created on demand and released
// only by Release.
type AllocatorPool struct {
	dev    driver.Device
	kind   driver.QueueKind
	logger *slog.Logger

	mu    sync.Mutex
	all   []driver.CommandAllocator
	ready []readyEntry
	inUse map[driver.CommandAllocator]bool
}

// NewAllocatorPool returns an empty pool.
func NewAllocatorPool(dev driver.Device, kind driver.QueueKind, logger *slog.Logger) *AllocatorPool {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AllocatorPool{
		dev:    dev,
		kind:   kind,
		logger: logger,
		inUse:  make(map[driver.CommandAllocator]bool),
	}
}

// Request returns an allocator. The oldest pending allocator is reset and
// reused when its fence value is at most completed; otherwise a new one
// is created.
func (p *AllocatorPool) Request(completed uint64) (driver.CommandAllocator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.ready) > 0 && p.ready[0].fence <= completed {
		e := p.ready[0]
		if err := e.alloc.Reset(); err != nil {
			return nil, fmt.Errorf("queue: reset %s allocator: %w", p.kind, err)
		}
		p.ready[0] = readyEntry{}
		p.ready = p.ready[1:]
		p.inUse[e.alloc] = true
		return e.alloc, nil
	}

	a, err := p.dev.CreateCommandAllocator(p.kind)
	if err != nil {
		return nil, fmt.Errorf("queue: create %s allocator: %w", p.kind, err)
	}
	p.all = append(p.all, a)
	p.inUse[a] = true
	p.logger.Debug("queue: command allocator created", "queue", p.kind.String(), "total", len(p.all))
	return a, nil
}

// Discard queues alloc for reuse after fence. Discarding an allocator
// that is not in use panics.
func (p *AllocatorPool) Discard(fence uint64, alloc driver.CommandAllocator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.inUse[alloc] {
		panic(fmt.Sprintf("queue: %s allocator discarded but not in use", p.kind))
	}
	delete(p.inUse, alloc)
	p.ready = append(p.ready, readyEntry{fence: fence, alloc: alloc})
}

// InUse reports whether alloc is currently handed out.
func (p *AllocatorPool) InUse(alloc driver.CommandAllocator) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse[alloc]
}

// Len returns the number of allocators ever created.
func (p *AllocatorPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// Pending returns the number of allocators waiting for their fence.
func (p *AllocatorPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ready)
}

// Release destroys every allocator. The GPU must be idle.
func (p *AllocatorPool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.inUse); n > 0 {
		p.logger.Warn("queue: releasing allocators still in use", "queue", p.kind.String(), "count", n)
	}
	for _, a := range p.all {
		a.Release()
	}
	p.all, p.ready = nil, nil
	clear(p.inUse)
}
