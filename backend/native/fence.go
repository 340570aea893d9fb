// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/texel"
	"github.com/gogpu/wgpu/hal"
)

// Fence waits and backoff. A fence that does not move within
// fenceTimeout is treated as a hung GPU.
var (
	fenceTimeout     = 10 * time.Second
	fencePollMin     = 50 * time.Microsecond
	fencePollMax     = 2 * time.Millisecond
	errFenceReleased = errors.New("native: fence released")
)

// pendingSignal is a fence value that completes with a HAL submission.
type pendingSignal struct {
	submission uint64
	value      uint64
}

// Fence is a driver.Fence built on HAL submission indices. A signal
// completes when Queue.PollCompleted reaches the submission it follows.
type Fence struct {
	d *Device

	mu        sync.Mutex
	completed uint64
	pending   []pendingSignal
	released  bool
}

// signal schedules value to complete with submission.
func (f *Fence) signal(submission, value uint64) {
	f.mu.Lock()
	f.pending = append(f.pending, pendingSignal{submission: submission, value: value})
	f.mu.Unlock()
}

// poll retires pending signals. The caller holds f.mu.
func (f *Fence) poll() {
	if len(f.pending) == 0 {
		return
	}
	done := f.d.queue.PollCompleted()
	n := 0
	for _, p := range f.pending {
		if p.submission > done {
			break
		}
		f.completed = max(f.completed, p.value)
		n++
	}
	f.pending = f.pending[n:]
}

// CompletedValue implements driver.Fence.
func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poll()
	return f.completed
}

// Wait implements driver.Fence. It polls with exponential backoff.
func (f *Fence) Wait(value uint64) error {
	deadline := time.Now().Add(fenceTimeout)
	backoff := fencePollMin
	for {
		f.mu.Lock()
		if f.released {
			f.mu.Unlock()
			return errFenceReleased
		}
		f.poll()
		done := f.completed >= value
		f.mu.Unlock()
		if done {
			return nil
		}
		if f.d.lost.Load() {
			return fmt.Errorf("native: fence wait: %w", driver.ErrDeviceLost)
		}
		if time.Now().After(deadline) {
			f.d.lost.Store(true)
			f.d.logger.Error("native: fence wait timed out", "value", value, "timeout", fenceTimeout)
			return fmt.Errorf("native: fence wait for %d: %w: %w", value, driver.ErrDeviceLost, hal.ErrTimeout)
		}
		time.Sleep(backoff)
		backoff = min(backoff*2, fencePollMax)
	}
}

// Release implements driver.Fence.
func (f *Fence) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		panic("native: fence released twice")
	}
	f.released = true
	f.pending = nil
}

// Queue is a driver.Queue. Every kind submits to the one HAL queue.
type Queue struct {
	d    *Device
	kind driver.QueueKind
}

// Kind returns the queue kind.
func (q *Queue) Kind() driver.QueueKind { return q.kind }

// Submit implements driver.Queue. A signal without lists completes with
// the previous submission.
func (q *Queue) Submit(lists []driver.CommandList, signal driver.Fence, value uint64) error {
	bufs := make([]hal.CommandBuffer, 0, len(lists))
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			return fmt.Errorf("%w: command list %T", ErrForeignObject, l)
		}
		if cl.recording || cl.cb == nil {
			return fmt.Errorf("%w: command list is not closed", driver.ErrInvalidDesc)
		}
		bufs = append(bufs, cl.cb)
	}
	var fence *Fence
	if signal != nil {
		f, ok := signal.(*Fence)
		if !ok {
			return fmt.Errorf("%w: fence %T", ErrForeignObject, signal)
		}
		fence = f
	}

	d := q.d
	d.submitMu.Lock()
	defer d.submitMu.Unlock()
	if d.lost.Load() {
		return fmt.Errorf("native: submit: %w", driver.ErrDeviceLost)
	}
	if len(bufs) > 0 {
		idx, err := d.queue.Submit(bufs)
		if err != nil {
			return d.fail("submit", err)
		}
		d.lastSubmit = idx
		for _, l := range lists {
			l.(*CommandList).cb = nil
		}
	}
	if fence != nil {
		fence.signal(d.lastSubmit, value)
	}
	return nil
}

// WaitFence implements driver.Queue. All kinds share one HAL queue that
// executes in submission order, so the wait is already satisfied by
// the time later work runs.
func (q *Queue) WaitFence(f driver.Fence, _ uint64) error {
	if _, ok := f.(*Fence); !ok {
		return fmt.Errorf("%w: fence %T", ErrForeignObject, f)
	}
	if q.d.lost.Load() {
		return fmt.Errorf("native: queue wait: %w", driver.ErrDeviceLost)
	}
	return nil
}

// WriteBuffer implements driver.Queue.
func (q *Queue) WriteBuffer(buf driver.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*Buffer)
	if !ok {
		return fmt.Errorf("%w: buffer %T", ErrForeignObject, buf)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("%w: write of %d bytes at %d overruns %d-byte buffer",
			driver.ErrInvalidDesc, len(data), offset, b.desc.Size)
	}
	if err := q.d.queue.WriteBuffer(b.native, offset, data); err != nil {
		return q.d.fail("write buffer", err)
	}
	return nil
}

// WriteTexture implements driver.Queue. data holds one tightly packed
// subresource.
func (q *Queue) WriteTexture(tex driver.Texture, mip, slice uint32, data []byte) error {
	t, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("%w: texture %T", ErrForeignObject, tex)
	}
	size, origin, err := subresourceExtent(&t.desc, mip, slice)
	if err != nil {
		return err
	}
	bpp := texel.BytesPerPixel(t.desc.Format)
	if bpp == 0 {
		return fmt.Errorf("%w: no upload layout for %v", driver.ErrUnsupported, t.desc.Format)
	}
	rowPitch := size.Width * bpp
	if need := uint64(rowPitch) * uint64(size.Height) * uint64(size.DepthOrArrayLayers); uint64(len(data)) < need {
		return fmt.Errorf("%w: %d bytes for a %d-byte subresource", driver.ErrInvalidDesc, len(data), need)
	}
	err = q.d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.native, MipLevel: mip, Origin: origin, Aspect: gputypes.TextureAspectAll},
		data,
		&hal.ImageDataLayout{BytesPerRow: rowPitch, RowsPerImage: size.Height},
		&size,
	)
	if err != nil {
		return q.d.fail("write texture", err)
	}
	return nil
}
