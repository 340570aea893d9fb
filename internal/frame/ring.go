// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package frame bounds the number of frames in flight and defers native
// releases until the GPU has retired every frame that could use them.
package frame

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rhi/driver"
)

// MaxLatency is the largest supported render latency.
const MaxLatency = 3

// Releaser is anything with a native Release.
type Releaser interface {
	Release()
}

type deferred struct {
	fence uint64
	fn    func()
}

// Stats describes ring progress.
type Stats struct {
	CPUFrame uint64
	GPUFrame uint64

	// Waits counts BeginFrame calls that blocked on the GPU.
	Waits uint64

	// Flushed counts deferred releases executed.
	Flushed uint64

	// Pending counts deferred releases not yet executed.
	Pending int
}

// Ring rotates frame slots over a dedicated frame fence.
//
// Frame n (counting from zero) uses slot n%latency and signals the frame
// fence with n+1 when it ends. BeginFrame blocks until fewer than latency
// frames are outstanding, so a slot is never reused while the GPU may
// still read it.
type Ring struct {
	latency uint64
	fence   driver.Fence
	queue   driver.Queue
	logger  *slog.Logger

	// Written by the submission thread only. DeferFunc and Stats read
	// them from any goroutine.
	cpuFrame atomic.Uint64
	waits    atomic.Uint64

	// Owned by the submission thread.
	inFrame bool

	mu      sync.Mutex
	lists   [][]deferred
	flushed uint64
}

// New creates a ring of latency slots that signals its fence on queue.
func New(dev driver.Device, queue driver.Queue, latency int, logger *slog.Logger) (*Ring, error) {
	if latency < 1 || latency > MaxLatency {
		return nil, fmt.Errorf("frame: render latency %d out of range [1, %d]", latency, MaxLatency)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fence, err := dev.CreateFence(0)
	if err != nil {
		return nil, fmt.Errorf("frame: create frame fence: %w", err)
	}
	return &Ring{
		latency: uint64(latency),
		fence:   fence,
		queue:   queue,
		logger:  logger,
		lists:   make([][]deferred, latency),
	}, nil
}

// Latency returns the number of slots.
func (r *Ring) Latency() int { return int(r.latency) }

// CPUFrame returns the number of frames ended so far.
func (r *Ring) CPUFrame() uint64 { return r.cpuFrame.Load() }

// GPUFrame returns the number of frames the GPU has finished.
func (r *Ring) GPUFrame() uint64 { return r.fence.CompletedValue() }

// Slot returns the slot of the current (or next) frame.
func (r *Ring) Slot() int { return int(r.cpuFrame.Load() % r.latency) }

// InFrame reports whether BeginFrame was called without EndFrame.
func (r *Ring) InFrame() bool { return r.inFrame }

// BeginFrame waits until the slot of the next frame is free, runs the
// deferred releases that have retired, and returns the slot.
func (r *Ring) BeginFrame() (int, error) {
	if r.inFrame {
		panic("frame: BeginFrame called twice without EndFrame")
	}
	cpu := r.cpuFrame.Load()
	gpu := r.fence.CompletedValue()
	for cpu-gpu >= r.latency {
		r.waits.Add(1)
		r.logger.Debug("frame: waiting for GPU", "cpu", cpu, "gpu", gpu, "latency", r.latency)
		if err := r.fence.Wait(gpu + 1); err != nil {
			return 0, fmt.Errorf("frame: wait for frame %d: %w", gpu+1, err)
		}
		gpu = r.fence.CompletedValue()
	}
	slot := int(cpu % r.latency)
	r.flushSlot(slot, gpu)
	r.inFrame = true
	return slot, nil
}

// EndFrame signals the frame fence after all work submitted so far on the
// queue and advances the CPU frame.
func (r *Ring) EndFrame() error {
	if !r.inFrame {
		panic("frame: EndFrame called without BeginFrame")
	}
	r.inFrame = false
	next := r.cpuFrame.Load() + 1
	if err := r.queue.Submit(nil, r.fence, next); err != nil {
		return fmt.Errorf("frame: signal frame %d: %w", next, err)
	}
	r.cpuFrame.Store(next)
	return nil
}

// CancelFrame abandons the open frame without signaling the fence. The
// slot is reused by the next BeginFrame.
func (r *Ring) CancelFrame() {
	if !r.inFrame {
		panic("frame: CancelFrame called without BeginFrame")
	}
	r.inFrame = false
}

// Defer schedules r.Release for after every frame that may use it.
func (r *Ring) Defer(res Releaser) {
	r.DeferFunc(res.Release)
}

// DeferFunc schedules fn for after every frame that may have used the
// resources it releases: the current frame if one is open, or the last
// submitted frame otherwise. It may be called from any goroutine.
func (r *Ring) DeferFunc(fn func()) {
	// Waiting for the next frame value is conservative in both cases. A
	// frame that ends concurrently only delays the release by one turn
	// of the ring.
	cpu := r.cpuFrame.Load()
	tag := cpu + 1
	slot := int(cpu % r.latency)
	r.mu.Lock()
	r.lists[slot] = append(r.lists[slot], deferred{fence: tag, fn: fn})
	r.mu.Unlock()
}

// Pending returns the number of deferred releases not yet run.
func (r *Ring) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.lists {
		n += len(l)
	}
	return n
}

func (r *Ring) flushSlot(slot int, completed uint64) {
	r.mu.Lock()
	var run []func()
	keep := r.lists[slot][:0]
	for _, d := range r.lists[slot] {
		if d.fence <= completed {
			run = append(run, d.fn)
		} else {
			keep = append(keep, d)
		}
	}
	clear(r.lists[slot][len(keep):])
	r.lists[slot] = keep
	r.flushed += uint64(len(run))
	r.mu.Unlock()

	for _, fn := range run {
		fn()
	}
	if len(run) > 0 {
		r.logger.Debug("frame: deferred releases flushed", "slot", slot, "count", len(run))
	}
}

// FlushCompleted runs every deferred release whose frame has retired.
func (r *Ring) FlushCompleted() {
	completed := r.fence.CompletedValue()
	for slot := range r.lists {
		r.flushSlot(slot, completed)
	}
}

// WaitIdle blocks until the GPU has finished every ended frame and then
// flushes all deferred releases.
func (r *Ring) WaitIdle() error {
	if err := r.fence.Wait(r.cpuFrame.Load()); err != nil {
		return fmt.Errorf("frame: wait idle: %w", err)
	}
	r.FlushCompleted()
	return nil
}

// Stats returns ring progress.
func (r *Ring) Stats() Stats {
	r.mu.Lock()
	flushed := r.flushed
	r.mu.Unlock()
	return Stats{
		CPUFrame: r.cpuFrame.Load(),
		GPUFrame: r.fence.CompletedValue(),
		Waits:    r.waits.Load(),
		Flushed:  flushed,
		Pending:  r.Pending(),
	}
}

// Release runs every pending release regardless of GPU progress and
// destroys the frame fence. Call WaitIdle first unless the device is lost.
func (r *Ring) Release() {
	r.mu.Lock()
	var run []func()
	for i, l := range r.lists {
		for _, d := range l {
			run = append(run, d.fn)
		}
		r.lists[i] = nil
	}
	r.flushed += uint64(len(run))
	r.mu.Unlock()
	for _, fn := range run {
		fn()
	}
	r.fence.Release()
}
