// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package webgpu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/texel"
)

// A fence value that nothing signals within fenceTimeout is treated as a
// hung GPU.
var (
	fenceTimeout = 10 * time.Second
	fencePollMin = 50 * time.Microsecond
	fencePollMax = 2 * time.Millisecond

	errFenceReleased = errors.New("webgpu: fence released")
)

type pendingSignal struct {
	submission wgpu.SubmissionIndex
	value      uint64
}

// Fence is a driver.Fence. A value is reached once the queue submission
// it was signalled after has finished.
type Fence struct {
	d         *Device
	mu        sync.Mutex
	completed uint64
	pending   []pendingSignal
	released  bool
}

// signal queues value behind submission. A zero submission means no work
// was ever submitted, so the value is reached at once.
func (f *Fence) signal(submission wgpu.SubmissionIndex, value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if submission == 0 && len(f.pending) == 0 {
		f.completed = max(f.completed, value)
		return
	}
	f.pending = append(f.pending, pendingSignal{submission: submission, value: value})
}

// poll retires every pending signal once the device reports an empty
// queue. Callers hold f.mu.
func (f *Fence) poll() {
	if len(f.pending) > 0 && f.d.device.Poll(false, nil) {
		f.retireThrough(f.pending[len(f.pending)-1].submission)
	}
}

// retireThrough completes the signals queued behind submissions up to
// and including sub. Callers hold f.mu.
func (f *Fence) retireThrough(sub wgpu.SubmissionIndex) {
	n := 0
	for n < len(f.pending) && f.pending[n].submission <= sub {
		f.completed = max(f.completed, f.pending[n].value)
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

// Wait implements driver.Fence. A value that is already queued blocks in
// Device.Poll on its submission; one that is not yet signalled is polled
// for until fenceTimeout.
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
		if f.completed >= value {
			f.mu.Unlock()
			return nil
		}
		var target wgpu.SubmissionIndex
		for _, p := range f.pending {
			if p.value >= value {
				target = p.submission
				break
			}
		}
		f.mu.Unlock()

		if target != 0 {
			f.d.device.Poll(true, &wgpu.WrappedSubmissionIndex{Queue: f.d.queue, SubmissionIndex: target})
			f.mu.Lock()
			f.retireThrough(target)
			f.mu.Unlock()
			continue
		}
		if time.Now().After(deadline) {
			f.d.logger.Error("webgpu: fence wait timed out", "value", value, "timeout", fenceTimeout)
			return fmt.Errorf("webgpu: fence wait for %d: %w", value, driver.ErrDeviceLost)
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
		panic("webgpu: fence released twice")
	}
	f.released = true
	f.pending = nil
}

// Queue is a driver.Queue. Every kind submits to the device queue.
type Queue struct {
	d    *Device
	kind driver.QueueKind
}

// Kind returns the queue kind the core asked for.
func (q *Queue) Kind() driver.QueueKind { return q.kind }

// Submit implements driver.Queue. A signal without lists is reached when
// the last submission finishes.
func (q *Queue) Submit(lists []driver.CommandList, signal driver.Fence, value uint64) error {
	cbs := make([]*wgpu.CommandBuffer, 0, len(lists))
	owned := make([]*CommandList, 0, len(lists))
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			return fmt.Errorf("%w: command list %T", ErrForeignObject, l)
		}
		if cl.cb == nil {
			return fmt.Errorf("%w: command list is not closed or was already submitted", driver.ErrInvalidDesc)
		}
		cbs = append(cbs, cl.cb)
		owned = append(owned, cl)
	}
	var fence *Fence
	if signal != nil {
		f, ok := signal.(*Fence)
		if !ok {
			return fmt.Errorf("%w: fence %T", ErrForeignObject, signal)
		}
		fence = f
	}

	q.d.submitMu.Lock()
	if len(cbs) > 0 {
		q.d.lastSubmit = q.d.queue.Submit(cbs...)
		for _, cl := range owned {
			cl.cb.Release()
			cl.cb = nil
		}
	}
	submission := q.d.lastSubmit
	q.d.submitMu.Unlock()

	if fence != nil {
		fence.signal(submission, value)
	}
	return nil
}

// WaitFence implements driver.Queue. All kinds share one queue, which
// already runs submissions in order.
func (q *Queue) WaitFence(f driver.Fence, _ uint64) error {
	if _, ok := f.(*Fence); !ok {
		return fmt.Errorf("%w: fence %T", ErrForeignObject, f)
	}
	return nil
}

// WriteBuffer implements driver.Queue. Writes are padded to the copy
// alignment; the padding lands in the buffer's own alignment slack.
func (q *Queue) WriteBuffer(buf driver.Buffer, offset uint64, data []byte) error {
	b, ok := buf.(*Buffer)
	if !ok {
		return fmt.Errorf("%w: buffer %T", ErrForeignObject, buf)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("%w: write of %d bytes at %d overruns %d-byte buffer", driver.ErrInvalidDesc, len(data), offset, b.desc.Size)
	}
	if offset%copyAlignment != 0 {
		return fmt.Errorf("%w: buffer write offset %d is not %d-byte aligned", driver.ErrUnsupported, offset, copyAlignment)
	}
	if n := uint64(len(data)); n%copyAlignment != 0 {
		padded := make([]byte, alignUp(n, copyAlignment))
		copy(padded, data)
		data = padded
	}
	q.d.queue.WriteBuffer(b.native, offset, data)
	return nil
}

// WriteTexture implements driver.Queue. data holds one tightly packed
// subresource.
func (q *Queue) WriteTexture(tex driver.Texture, mip, slice uint32, data []byte) error {
	t, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("%w: texture %T", ErrForeignObject, tex)
	}
	if t.chain != nil {
		return fmt.Errorf("%w: upload to a surface texture", driver.ErrInvalidDesc)
	}
	r, err := texel.Subresource(&t.desc, mip, slice)
	if err != nil {
		return err
	}
	bpp := texel.BytesPerPixel(t.desc.Format)
	if bpp == 0 {
		return fmt.Errorf("%w: no upload layout for %v", driver.ErrUnsupported, t.desc.Format)
	}
	if need := r.Size(t.desc.Format); uint64(len(data)) < need {
		return fmt.Errorf("%w: %d bytes for a %d-byte subresource", driver.ErrInvalidDesc, len(data), need)
	}
	q.d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.native,
			MipLevel: mip,
			Origin:   wgpu.Origin3D{Z: r.Layer},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			BytesPerRow:  r.Width * bpp,
			RowsPerImage: r.Height,
		},
		&wgpu.Extent3D{Width: r.Width, Height: r.Height, DepthOrArrayLayers: r.Depth},
	)
	return nil
}
