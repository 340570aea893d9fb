// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package queue wraps native command queues with a monotonic fence and a
// pool of reusable command allocators.
package queue

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rhi/driver"
)

// KindShift is the bit position of the queue kind in fence values.
// A value produced by a queue of kind k lies in [k<<KindShift, (k+1)<<KindShift).
const KindShift = 56

// KindOf returns the queue kind that produced fence value v.
func KindOf(v uint64) driver.QueueKind { return driver.QueueKind(v >> KindShift) }

// CommandQueue is a native queue with its own fence.
//
// Fence values are reserved under a mutex so that concurrent submitters
// never signal the same value. Waiters on the CPU are serialized on a
// second mutex.
type CommandQueue struct {
	kind   driver.QueueKind
	native driver.Queue
	fence  driver.Fence
	logger *slog.Logger

	allocators *AllocatorPool

	fenceMu   sync.Mutex
	nextValue uint64

	// lastCompleted caches the highest completed value seen so far.
	lastCompleted atomic.Uint64

	eventMu sync.Mutex
}

// New creates the queue fence and an allocator pool for kind.
func New(dev driver.Device, kind driver.QueueKind, logger *slog.Logger) (*CommandQueue, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	base := uint64(kind) << KindShift
	fence, err := dev.CreateFence(base)
	if err != nil {
		return nil, fmt.Errorf("queue: create %s fence: %w", kind, err)
	}
	q := &CommandQueue{
		kind:       kind,
		native:     dev.Queue(kind),
		fence:      fence,
		logger:     logger,
		allocators: NewAllocatorPool(dev, kind, logger),
		nextValue:  base + 1,
	}
	q.lastCompleted.Store(base)
	return q, nil
}

// Kind returns the queue kind.
func (q *CommandQueue) Kind() driver.QueueKind { return q.kind }

// Native returns the wrapped driver queue.
func (q *CommandQueue) Native() driver.Queue { return q.native }

// Fence returns the queue fence.
func (q *CommandQueue) Fence() driver.Fence { return q.fence }

// Allocators returns the allocator pool of the queue.
func (q *CommandQueue) Allocators() *AllocatorPool { return q.allocators }

// NextFenceValue returns the value the next signal will use.
func (q *CommandQueue) NextFenceValue() uint64 {
	q.fenceMu.Lock()
	defer q.fenceMu.Unlock()
	return q.nextValue
}

// Execute submits lists and signals the next fence value after them.
// It returns the signaled value. On error the value is not consumed.
func (q *CommandQueue) Execute(lists ...driver.CommandList) (uint64, error) {
	q.fenceMu.Lock()
	defer q.fenceMu.Unlock()

	v := q.nextValue
	if err := q.native.Submit(lists, q.fence, v); err != nil {
		return 0, fmt.Errorf("queue: %s submit: %w", q.kind, err)
	}
	q.nextValue++
	return v, nil
}

// IncrementFence signals the next fence value with no work attached and
// returns it.
func (q *CommandQueue) IncrementFence() (uint64, error) {
	return q.Execute()
}

// PollCompleted reads the completed value from the native fence and
// refreshes the cache.
func (q *CommandQueue) PollCompleted() uint64 {
	return q.observe(q.fence.CompletedValue())
}

// LastCompleted returns the cached completed value without a native call.
func (q *CommandQueue) LastCompleted() uint64 { return q.lastCompleted.Load() }

// observe raises the cache to v and returns the cached value.
func (q *CommandQueue) observe(v uint64) uint64 {
	for {
		cur := q.lastCompleted.Load()
		if v <= cur {
			return cur
		}
		if q.lastCompleted.CompareAndSwap(cur, v) {
			return v
		}
	}
}

// IsFenceComplete reports whether the GPU has reached v. The native fence
// is only queried when the cache is below v.
func (q *CommandQueue) IsFenceComplete(v uint64) bool {
	if v <= q.lastCompleted.Load() {
		return true
	}
	return v <= q.PollCompleted()
}

// WaitForFence blocks until the GPU reaches v.
func (q *CommandQueue) WaitForFence(v uint64) error {
	if KindOf(v) != q.kind {
		panic(fmt.Sprintf("queue: %s queue asked to wait on %s fence value %#x", q.kind, KindOf(v), v))
	}
	if q.IsFenceComplete(v) {
		return nil
	}
	q.eventMu.Lock()
	defer q.eventMu.Unlock()

	q.logger.Debug("queue: waiting for fence", "queue", q.kind.String(), "value", v)
	if err := q.fence.Wait(v); err != nil {
		return fmt.Errorf("queue: %s wait: %w", q.kind, err)
	}
	q.observe(v)
	return nil
}

// WaitForIdle blocks until all work submitted so far has completed.
func (q *CommandQueue) WaitForIdle() error {
	v, err := q.IncrementFence()
	if err != nil {
		return err
	}
	return q.WaitForFence(v)
}

// WaitOnGPU makes this queue wait on the GPU until other reaches value.
// Cross-queue ordering is never inserted implicitly.
func (q *CommandQueue) WaitOnGPU(other *CommandQueue, value uint64) error {
	if err := q.native.WaitFence(other.fence, value); err != nil {
		return fmt.Errorf("queue: %s wait on %s: %w", q.kind, other.kind, err)
	}
	return nil
}

// RequestAllocator returns an allocator whose earlier work has completed.
func (q *CommandQueue) RequestAllocator() (driver.CommandAllocator, error) {
	return q.allocators.Request(q.PollCompleted())
}

// DiscardAllocator hands alloc back; it becomes reusable once the fence
// reaches value.
func (q *CommandQueue) DiscardAllocator(value uint64, alloc driver.CommandAllocator) {
	q.allocators.Discard(value, alloc)
}

// Release frees the allocators and the fence. The queue must be idle.
func (q *CommandQueue) Release() {
	q.allocators.Release()
	q.fence.Release()
}
