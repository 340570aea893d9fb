// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/descriptor"
	"github.com/gogpu/rhi/internal/frame"
	"github.com/gogpu/rhi/internal/pool"
	"github.com/gogpu/rhi/internal/queue"
)

// DeviceState is the lifecycle state of a Device.
type DeviceState int32

// Device states.
const (
	// StateReady accepts resource creation and frames.
	StateReady DeviceState = iota

	// StateLost means the GPU was removed or reset. Frames are no-ops
	// until the device is closed and recreated.
	StateLost

	// StateClosed means Close was called.
	StateClosed
)

func (s DeviceState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateLost:
		return "lost"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("DeviceState(%d)", int32(s))
}

// Device owns every GPU resource created through it and drives frame
// submission.
//
// Resource creation, destruction and view lookups are safe for concurrent
// use. BeginFrame, EndFrame, CommandList, Resize, WaitForGPU and Close
// belong to a single submission goroutine.
type Device struct {
	backend Backend
	native  driver.Device
	caps    Caps
	logger  *slog.Logger
	opts    deviceOptions

	buffers  *pool.Pool[*bufferRecord]
	textures *pool.Pool[*textureRecord]

	heaps  [driver.HeapKindCount]*descriptor.Manager
	queues [driver.QueueKindCount]*queue.CommandQueue
	ring   *frame.Ring

	swapChain *SwapChain

	// Per-frame recording state, owned by the submission goroutine.
	list  driver.CommandList
	alloc driver.CommandAllocator
	ctx   *CommandContext
	slot  int

	state    atomic.Int32
	lostOnce sync.Once
	closeMu  sync.Mutex

	// final is the Stats snapshot taken by Close.
	final FrameStats
}

// NewDevice opens a device.
//
// The backend is chosen in this order: WithDriver, then WithBackend looked
// up in the registry, then the highest-priority available backend.
// With WithWindow a swap chain is created for the window.
func NewDevice(opts ...DeviceOption) (*Device, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	if o.registry == nil {
		o.registry = defaultRegistry
	}
	if o.latency < 1 || o.latency > MaxFramesInFlight {
		return nil, fmt.Errorf("%w: render latency %d out of range [1, %d]", ErrInvalidConfig, o.latency, MaxFramesInFlight)
	}

	drv, err := selectDriver(&o)
	if err != nil {
		return nil, err
	}
	native, err := drv.Open(&driver.OpenConfig{Debug: o.debug, PreferLowPower: o.lowPower})
	if err != nil {
		return nil, fmt.Errorf("rhi: open %s: %w", drv.Backend(), err)
	}

	d := &Device{
		backend: drv.Backend(),
		native:  native,
		logger:  o.logger,
		opts:    o,
	}
	d.caps = capsFromInfo(d.backend, native.Info())
	if err := d.init(); err != nil {
		d.shutdown()
		return nil, err
	}
	d.logger.Info("rhi: device created",
		"backend", d.backend.String(),
		"adapter", d.caps.AdapterName,
		"type", d.caps.AdapterType.String(),
		"latency", o.latency,
		"features", d.caps.Features.String())
	return d, nil
}

func selectDriver(o *deviceOptions) (driver.Driver, error) {
	if o.driver != nil {
		return o.driver, nil
	}
	if o.hasBackend {
		drv, ok := o.registry.Lookup(o.backend)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not registered", ErrNoBackend, o.backend)
		}
		if !drv.Probe() {
			return nil, fmt.Errorf("%w: %s", driver.ErrNotAvailable, o.backend)
		}
		return drv, nil
	}
	return o.registry.Default()
}

func (d *Device) init() error {
	o := &d.opts
	d.buffers = pool.New[*bufferRecord]("buffers", o.maxBuffers, d.logger)
	d.textures = pool.New[*textureRecord]("textures", o.maxTextures, d.logger)

	heapCfgs := []descriptor.Config{
		{Kind: driver.HeapResource, Persistent: o.descriptors.Resource, Transient: o.descriptors.Transient, ShaderVisible: true},
		{Kind: driver.HeapRenderTarget, Persistent: o.descriptors.RenderTargets},
		{Kind: driver.HeapDepthStencil, Persistent: o.descriptors.DepthStencils},
	}
	for _, cfg := range heapCfgs {
		cfg.Frames = uint32(o.latency)
		m, err := descriptor.NewManager(d.native, cfg, d.logger)
		if err != nil {
			return fmt.Errorf("rhi: %w", err)
		}
		d.heaps[cfg.Kind] = m
	}

	for k := range d.queues {
		q, err := queue.New(d.native, driver.QueueKind(k), d.logger)
		if err != nil {
			return fmt.Errorf("rhi: %w", err)
		}
		d.queues[k] = q
	}

	ring, err := frame.New(d.native, d.queues[QueueGraphics].Native(), o.latency, d.logger)
	if err != nil {
		return fmt.Errorf("rhi: %w", err)
	}
	d.ring = ring

	if o.window != nil {
		sc, err := newSwapChain(d, o.window, o.swapChain)
		if err != nil {
			return err
		}
		d.swapChain = sc
	}
	return nil
}

// Backend returns the backend the device runs on.
func (d *Device) Backend() Backend { return d.backend }

// Native returns the driver device.
func (d *Device) Native() driver.Device { return d.native }

// Caps returns the device capabilities.
func (d *Device) Caps() Caps { return d.caps }

// State returns the lifecycle state.
func (d *Device) State() DeviceState { return DeviceState(d.state.Load()) }

// RenderLatency returns the number of frames in flight.
func (d *Device) RenderLatency() int { return d.ring.Latency() }

// SwapChain returns the swap chain, or nil for a headless device.
func (d *Device) SwapChain() *SwapChain { return d.swapChain }

// usable returns nil when the device accepts work.
func (d *Device) usable() error {
	switch d.State() {
	case StateLost:
		return fmt.Errorf("rhi: %w", driver.ErrDeviceLost)
	case StateClosed:
		return ErrClosed
	}
	return nil
}

// checkLost moves the device to StateLost when err reports device loss.
// It returns true in that case.
func (d *Device) checkLost(err error) bool {
	if err == nil || !errors.Is(err, driver.ErrDeviceLost) {
		return false
	}
	if d.state.CompareAndSwap(int32(StateReady), int32(StateLost)) {
		d.lostOnce.Do(func() {
			d.logger.Error("rhi: device lost", "backend", d.backend.String(), "err", err)
			if d.opts.onLost != nil {
				d.opts.onLost(err)
			}
		})
	}
	return true
}

// CreateBuffer creates a buffer of size bytes and uploads data into it.
// stride is the element size for structured buffers and may be zero.
// On failure it logs the error and returns InvalidBuffer.
func (d *Device) CreateBuffer(usage BufferUsage, size uint64, stride uint32, data []byte) (BufferHandle, error) {
	if err := d.usable(); err != nil {
		return InvalidBuffer, err
	}
	if size == 0 || uint64(len(data)) > size {
		err := fmt.Errorf("%w: buffer size %d with %d bytes of data", ErrInvalidDescriptor, size, len(data))
		d.logger.Error("rhi: create buffer failed", "err", err)
		return InvalidBuffer, err
	}
	if len(data) > 0 {
		usage |= BufferUsageCopyDst
	}

	rec := newBufferRecord()
	h := d.buffers.Alloc(rec)
	if h == pool.Invalid {
		return InvalidBuffer, ErrPoolExhausted
	}
	rec.desc = driver.BufferDesc{Size: size, Stride: stride, Usage: usage}
	native, err := d.native.CreateBuffer(&rec.desc)
	if err != nil {
		d.buffers.Dealloc(h)
		d.logger.Error("rhi: create buffer failed", "size", size, "err", err)
		d.checkLost(err)
		return InvalidBuffer, fmt.Errorf("rhi: create buffer: %w", err)
	}
	rec.native = native

	if len(data) > 0 {
		if err := d.queues[QueueGraphics].Native().WriteBuffer(native, 0, data); err != nil {
			d.buffers.Dealloc(h)
			native.Release()
			d.logger.Error("rhi: buffer upload failed", "size", len(data), "err", err)
			d.checkLost(err)
			return InvalidBuffer, fmt.Errorf("rhi: upload buffer: %w", err)
		}
	}
	return BufferHandle(h), nil
}

// CreateTexture creates a texture. data holds optional initial contents,
// one entry per subresource in the order mip + slice*MipLevels; nil
// entries are skipped. On failure it logs the error and returns
// InvalidTexture.
func (d *Device) CreateTexture(desc *TextureDescriptor, data [][]byte) (TextureHandle, error) {
	if err := d.usable(); err != nil {
		return InvalidTexture, err
	}
	if desc == nil {
		return InvalidTexture, fmt.Errorf("%w: nil texture descriptor", ErrInvalidDescriptor)
	}
	nd, err := desc.native()
	if err != nil {
		d.logger.Error("rhi: create texture failed", "label", desc.Label, "err", err)
		return InvalidTexture, err
	}
	if n := subresources(&nd); uint32(len(data)) > n {
		err := fmt.Errorf("%w: %d initial data entries for %d subresources", ErrInvalidDescriptor, len(data), n)
		d.logger.Error("rhi: create texture failed", "label", desc.Label, "err", err)
		return InvalidTexture, err
	}
	if len(data) > 0 {
		nd.Usage |= TextureUsageCopyDst
	}

	rec := newTextureRecord()
	h := d.textures.Alloc(rec)
	if h == pool.Invalid {
		return InvalidTexture, ErrPoolExhausted
	}
	rec.desc = nd
	native, err := d.native.CreateTexture(&rec.desc)
	if err != nil {
		d.textures.Dealloc(h)
		d.logger.Error("rhi: create texture failed", "label", desc.Label, "err", err)
		d.checkLost(err)
		return InvalidTexture, fmt.Errorf("rhi: create texture %q: %w", desc.Label, err)
	}
	rec.native = native

	q := d.queues[QueueGraphics].Native()
	for i, sub := range data {
		if sub == nil {
			continue
		}
		mip, slice := uint32(i)%nd.MipLevels, uint32(i)/nd.MipLevels
		if err := q.WriteTexture(native, mip, slice, sub); err != nil {
			d.textures.Dealloc(h)
			native.Release()
			d.logger.Error("rhi: texture upload failed", "label", desc.Label, "mip", mip, "slice", slice, "err", err)
			d.checkLost(err)
			return InvalidTexture, fmt.Errorf("rhi: upload texture %q: %w", desc.Label, err)
		}
	}
	return TextureHandle(h), nil
}

// Destroy destroys a buffer or texture. The handle is invalid at once; the
// native resource and its views are released after every frame that may
// use them has retired.
func (d *Device) Destroy(h Handle) {
	switch h := h.(type) {
	case BufferHandle:
		d.DestroyBuffer(h)
	case TextureHandle:
		d.DestroyTexture(h)
	default:
		panic(fmt.Sprintf("rhi: Destroy of unknown handle type %T", h))
	}
}

// DestroyBuffer destroys a buffer. See Destroy.
func (d *Device) DestroyBuffer(h BufferHandle) {
	if d.State() == StateClosed {
		d.logger.Warn("rhi: destroy after close ignored", "handle", h.String())
		return
	}
	rec := d.buffers.Dealloc(h.poolHandle())
	d.ring.DeferFunc(func() {
		d.releaseViews(rec.views)
		rec.native.Release()
	})
}

// DestroyTexture destroys a texture. See Destroy. Swap chain back buffers
// cannot be destroyed.
func (d *Device) DestroyTexture(h TextureHandle) {
	if d.State() == StateClosed {
		d.logger.Warn("rhi: destroy after close ignored", "handle", h.String())
		return
	}
	if rec, ok := d.textures.Lookup(h.poolHandle()); ok && rec.external {
		panic(fmt.Sprintf("rhi: %s is a swap chain back buffer", h))
	}
	rec := d.textures.Dealloc(h.poolHandle())
	d.ring.DeferFunc(func() {
		d.releaseViews(rec.views)
		rec.native.Release()
	})
}

// SetName sets the debug name of a buffer or texture.
func (d *Device) SetName(h Handle, name string) {
	switch h := h.(type) {
	case BufferHandle:
		rec := d.buffers.Get(h.poolHandle())
		rec.desc.Label = name
		rec.native.SetName(name)
	case TextureHandle:
		rec := d.textures.Get(h.poolHandle())
		rec.desc.Label = name
		rec.native.SetName(name)
	default:
		panic(fmt.Sprintf("rhi: SetName of unknown handle type %T", h))
	}
}

// IsAlive reports whether h refers to a resource that has not been
// destroyed.
func (d *Device) IsAlive(h Handle) bool {
	switch h := h.(type) {
	case BufferHandle:
		return d.buffers.Contains(h.poolHandle())
	case TextureHandle:
		return d.textures.Contains(h.poolHandle())
	}
	return false
}

// WaitForGPU blocks until every queue is idle and then runs all deferred
// releases. It does nothing on a lost or closed device.
func (d *Device) WaitForGPU() {
	if d.State() != StateReady {
		return
	}
	for _, q := range d.queues {
		if err := q.WaitForIdle(); err != nil {
			d.logger.Error("rhi: wait for idle failed", "queue", q.Kind().String(), "err", err)
			d.checkLost(err)
			return
		}
	}
	if err := d.ring.WaitIdle(); err != nil {
		d.logger.Error("rhi: wait for frames failed", "err", err)
		d.checkLost(err)
	}
}

// WaitForFence blocks until the queue that produced v reaches it. The
// queue is encoded in the high byte of v.
func (d *Device) WaitForFence(v uint64) error {
	if err := d.usable(); err != nil {
		return err
	}
	k := queue.KindOf(v)
	if int(k) >= len(d.queues) {
		panic(fmt.Sprintf("rhi: fence value %#x names no queue", v))
	}
	err := d.queues[k].WaitForFence(v)
	d.checkLost(err)
	return err
}

// IsFenceComplete reports whether the queue that produced v has reached it.
// Every value is complete once the device is closed.
func (d *Device) IsFenceComplete(v uint64) bool {
	k := queue.KindOf(v)
	if int(k) >= len(d.queues) {
		panic(fmt.Sprintf("rhi: fence value %#x names no queue", v))
	}
	if d.State() == StateClosed {
		return true
	}
	return d.queues[k].IsFenceComplete(v)
}

// Signal signals the next fence value on a queue after all work submitted
// to it so far and returns the value.
func (d *Device) Signal(kind QueueKind) (uint64, error) {
	if err := d.usable(); err != nil {
		return 0, err
	}
	v, err := d.queues[kind].IncrementFence()
	d.checkLost(err)
	return v, err
}

// QueueWait makes queue waiter wait on the GPU until the queue that
// produced value reaches it. Cross-queue ordering is never inserted
// automatically.
func (d *Device) QueueWait(waiter QueueKind, value uint64) error {
	if err := d.usable(); err != nil {
		return err
	}
	err := d.queues[waiter].WaitOnGPU(d.queues[queue.KindOf(value)], value)
	d.checkLost(err)
	return err
}

// Close waits for the GPU, logs resources that are still alive, and
// releases everything in dependency order. Close on a lost device skips
// the wait. Close is idempotent.
func (d *Device) Close() error {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.State() == StateClosed {
		return nil
	}
	d.WaitForGPU()
	final := d.Stats()
	d.state.Store(int32(StateClosed))
	d.shutdown()

	// shutdown released every live record and ran every pending release.
	final.DeferredFlushed += uint64(final.DeferredPending)
	final.DeferredPending = 0
	final.LiveBuffers = 0
	final.LiveTextures = 0
	d.final = final
	d.logger.Info("rhi: device closed", "backend", d.backend.String())
	return nil
}

// shutdown releases whatever init created. Swap chain first, then leaked
// resources, deferred releases, heaps, queues and the native device.
func (d *Device) shutdown() {
	if d.swapChain != nil {
		d.swapChain.release()
		d.swapChain = nil
	}
	if d.textures != nil {
		d.textures.Each(func(h pool.Handle, rec *textureRecord) {
			d.logger.Warn("rhi: texture leaked", "handle", TextureHandle(h).String(), "label", rec.desc.Label)
		})
		d.drainTextures()
	}
	if d.buffers != nil {
		d.buffers.Each(func(h pool.Handle, rec *bufferRecord) {
			d.logger.Warn("rhi: buffer leaked", "handle", BufferHandle(h).String(), "size", rec.desc.Size)
		})
		d.drainBuffers()
	}
	if d.ring != nil {
		d.ring.Release()
	}
	if d.list != nil {
		d.list.Release()
		d.list = nil
	}
	for i, h := range d.heaps {
		if h != nil {
			h.Release()
			d.heaps[i] = nil
		}
	}
	for i, q := range d.queues {
		if q != nil {
			q.Release()
			d.queues[i] = nil
		}
	}
	d.native.Destroy()
}

func (d *Device) drainBuffers() {
	var live []pool.Handle
	d.buffers.Each(func(h pool.Handle, _ *bufferRecord) { live = append(live, h) })
	for _, h := range live {
		rec := d.buffers.Dealloc(h)
		d.releaseViews(rec.views)
		rec.native.Release()
	}
}

func (d *Device) drainTextures() {
	var live []pool.Handle
	d.textures.Each(func(h pool.Handle, _ *textureRecord) { live = append(live, h) })
	for _, h := range live {
		rec := d.textures.Dealloc(h)
		d.releaseViews(rec.views)
		rec.native.Release()
	}
}

// FrameStats reports frame and resource counters.
type FrameStats struct {
	CPUFrame          uint64
	GPUFrame          uint64
	BackPressureWaits uint64
	DeferredFlushed   uint64
	DeferredPending   int
	AllocatorsCreated int
	LiveBuffers       int
	LiveTextures      int
}

// Stats returns frame and resource counters. After Close it returns the
// counters as they stood when the device shut down.
func (d *Device) Stats() FrameStats {
	if d.State() == StateClosed {
		return d.final
	}
	rs := d.ring.Stats()
	allocs := 0
	for _, q := range d.queues {
		allocs += q.Allocators().Len()
	}
	return FrameStats{
		CPUFrame:          rs.CPUFrame,
		GPUFrame:          rs.GPUFrame,
		BackPressureWaits: rs.Waits,
		DeferredFlushed:   rs.Flushed,
		DeferredPending:   rs.Pending,
		AllocatorsCreated: allocs,
		LiveBuffers:       d.buffers.Len(),
		LiveTextures:      d.textures.Len(),
	}
}
