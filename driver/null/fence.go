// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package null

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/rhi/driver"
)

var errDestroyed = errors.New("null: device destroyed")

// Fence is a null driver.Fence.
type Fence struct {
	dev *Device

	mu        sync.Mutex
	cond      *sync.Cond
	completed uint64
	signaled  uint64
	pending   []uint64
	released  bool
}

// CompletedValue implements driver.Fence.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Signaled returns the highest value submitted for signaling.
func (f *Fence) Signaled() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

// Wait implements driver.Fence.
func (f *Fence) Wait(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	notified := false
	for f.completed < value {
		if f.dev.lost.Load() {
			return fmt.Errorf("null: fence wait: %w", driver.ErrDeviceLost)
		}
		if f.dev.destroyed.Load() {
			return errDestroyed
		}
		if !notified {
			notified = true
			select {
			case f.dev.waits <- value:
			default:
			}
		}
		f.cond.Wait()
	}
	return nil
}

// Advance completes the fence up to its highest signaled value.
func (f *Fence) Advance() {
	f.mu.Lock()
	if f.signaled > f.completed {
		f.completed = f.signaled
	}
	f.pending = f.pending[:0]
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Step completes the oldest pending signal.
func (f *Fence) Step() {
	f.mu.Lock()
	if len(f.pending) > 0 {
		if v := f.pending[0]; v > f.completed {
			f.completed = v
		}
		f.pending = f.pending[1:]
	}
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Release implements driver.Fence.
func (f *Fence) Release() {
	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		panic("null: fence released twice")
	}
	f.released = true
	f.mu.Unlock()
	f.dev.released()
}

func (f *Fence) signal(value uint64) {
	f.mu.Lock()
	if value > f.signaled {
		f.signaled = value
	}
	if f.dev.mode == AutoComplete {
		if value > f.completed {
			f.completed = value
		}
	} else {
		f.pending = append(f.pending, value)
	}
	f.mu.Unlock()
	f.cond.Broadcast()
}

func (f *Fence) wake() {
	f.mu.Lock()
	f.cond.Broadcast()
	f.mu.Unlock()
}
