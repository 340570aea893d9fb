// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package null implements an in-memory driver with no GPU behind it.
//
// The null driver executes nothing. It tracks object lifetimes, records
// clears and uploads, and gives tests control over fence completion:
// in AutoComplete mode a fence reaches its signaled value at submit time,
// in Manual mode only Advance or Step move it. Failures and device loss
// can be injected to exercise error paths.
package null

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
)

// FenceMode controls when fences complete.
type FenceMode uint8

const (
	// AutoComplete completes a fence as soon as its signal is submitted.
	AutoComplete FenceMode = iota

	// Manual completes fences only through Advance or Step.
	Manual
)

// Op names an operation for failure injection.
type Op uint8

// Injectable operations.
const (
	OpCreateBuffer Op = iota
	OpCreateTexture
	OpCreateView
	OpCreateAllocator
	OpSubmit
	OpPresent
	OpResize
	opCount
)

// Option configures a Driver.
type Option func(*Driver)

// WithFenceMode sets the fence completion mode of opened devices.
func WithFenceMode(m FenceMode) Option {
	return func(d *Driver) { d.mode = m }
}

// WithTearing makes the adapter report variable refresh support.
func WithTearing(enabled bool) Option {
	return func(d *Driver) { d.tearing = enabled }
}

// WithUnavailable makes Probe report false and Open fail.
func WithUnavailable() Option {
	return func(d *Driver) { d.unavailable = true }
}

// Driver opens null devices.
type Driver struct {
	mode        FenceMode
	tearing     bool
	unavailable bool

	mu   sync.Mutex
	last *Device
}

// New returns a null driver.
func New(opts ...Option) *Driver {
	d := &Driver{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Backend implements driver.Driver.
func (d *Driver) Backend() driver.Backend { return driver.BackendNull }

// Probe implements driver.Driver.
func (d *Driver) Probe() bool { return !d.unavailable }

// Open implements driver.Driver.
func (d *Driver) Open(cfg *driver.OpenConfig) (driver.Device, error) {
	if d.unavailable {
		return nil, driver.ErrNotAvailable
	}
	dev := newDevice(d.mode, d.tearing)
	if cfg != nil {
		dev.debug = cfg.Debug
	}
	d.mu.Lock()
	d.last = dev
	d.mu.Unlock()
	return dev, nil
}

// Device returns the most recently opened device, or nil.
func (d *Driver) Device() *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

const descriptorIncrement = 32

// Device is a null driver.Device.
type Device struct {
	mode    FenceMode
	tearing bool
	debug   bool

	lost      atomic.Bool
	destroyed atomic.Bool
	live      atomic.Int64

	queues [driver.QueueKindCount]*Queue

	mu          sync.Mutex
	fences      []*Fence
	failures    [opCount]error
	descriptors map[driver.CPUDescriptor]*View
	nextHeap    driver.CPUDescriptor
	nextID      uint64
	allocators  int

	// waits receives the target value each time a fence Wait blocks.
	waits chan uint64
}

func newDevice(mode FenceMode, tearing bool) *Device {
	d := &Device{
		mode:        mode,
		tearing:     tearing,
		descriptors: make(map[driver.CPUDescriptor]*View),
		nextHeap:    1 << 20,
		waits:       make(chan uint64, 256),
	}
	for k := range d.queues {
		d.queues[k] = &Queue{dev: d, kind: driver.QueueKind(k)}
	}
	return d
}

// Info implements driver.Device.
func (d *Device) Info() driver.AdapterInfo {
	return driver.AdapterInfo{
		Name:                  "Null Device",
		Type:                  driver.AdapterCPU,
		TextureArray:          true,
		TextureCubeArray:      true,
		Compute:               true,
		Tearing:               d.tearing,
		MaxTextureDimension2D: 16384,
		MaxRenderTargets:      8,
		MaxVertexBuffers:      16,
		ConstantBufferAlign:   256,
	}
}

// Fail makes the next call of op return err. A nil err clears it.
func (d *Device) Fail(op Op, err error) {
	d.mu.Lock()
	d.failures[op] = err
	d.mu.Unlock()
}

func (d *Device) takeFailure(op Op) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.failures[op]
	d.failures[op] = nil
	return err
}

// Lose simulates device removal. Submit, Present and fence waits fail
// with driver.ErrDeviceLost from now on and blocked waiters wake up.
func (d *Device) Lose() {
	d.lost.Store(true)
	for _, f := range d.fenceList() {
		f.wake()
	}
}

// Lost reports whether Lose was called.
func (d *Device) Lost() bool { return d.lost.Load() }

// Destroyed reports whether Destroy was called.
func (d *Device) Destroyed() bool { return d.destroyed.Load() }

// Live returns the number of objects created and not yet released.
func (d *Device) Live() int { return int(d.live.Load()) }

// Allocators returns the number of command allocators ever created.
func (d *Device) Allocators() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocators
}

// Waits delivers the target value of every fence wait that had to block.
func (d *Device) Waits() <-chan uint64 { return d.waits }

// Advance completes every fence up to its highest signaled value.
func (d *Device) Advance() {
	for _, f := range d.fenceList() {
		f.Advance()
	}
}

// Step completes the oldest pending signal of every fence.
func (d *Device) Step() {
	for _, f := range d.fenceList() {
		f.Step()
	}
}

func (d *Device) fenceList() []*Fence {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Fence(nil), d.fences...)
}

// Descriptor returns the view last written to the CPU descriptor, or nil.
func (d *Device) Descriptor(cpu driver.CPUDescriptor) *View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.descriptors[cpu]
}

func (d *Device) id() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Device) created()  { d.live.Add(1) }
func (d *Device) released() { d.live.Add(-1) }

// CreateBuffer implements driver.Device.
func (d *Device) CreateBuffer(desc *driver.BufferDesc) (driver.Buffer, error) {
	if err := d.takeFailure(OpCreateBuffer); err != nil {
		return nil, err
	}
	if desc == nil || desc.Size == 0 {
		return nil, fmt.Errorf("%w: zero-sized buffer", driver.ErrInvalidDesc)
	}
	b := &Buffer{object: object{dev: d, id: d.id(), name: desc.Label}, desc: *desc, data: make([]byte, desc.Size)}
	d.created()
	return b, nil
}

// CreateTexture implements driver.Device.
func (d *Device) CreateTexture(desc *driver.TextureDesc) (driver.Texture, error) {
	if err := d.takeFailure(OpCreateTexture); err != nil {
		return nil, err
	}
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: zero-sized texture", driver.ErrInvalidDesc)
	}
	if desc.Format == gputypes.TextureFormatUndefined {
		return nil, fmt.Errorf("%w: undefined texture format", driver.ErrInvalidDesc)
	}
	t := &Texture{object: object{dev: d, id: d.id(), name: desc.Label}, desc: *desc}
	d.created()
	return t, nil
}

// CreateView implements driver.Device.
func (d *Device) CreateView(res driver.Resource, desc *driver.ViewDesc, dst driver.CPUDescriptor) (driver.View, error) {
	if err := d.takeFailure(OpCreateView); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: nil view descriptor", driver.ErrInvalidDesc)
	}
	if t, ok := res.(*Texture); ok {
		if desc.MipLevel >= max(t.desc.MipLevels, 1) || desc.ArraySlice >= max(t.desc.DepthOrLayers, 1) {
			return nil, fmt.Errorf("%w: subresource %d/%d out of range", driver.ErrInvalidDesc, desc.MipLevel, desc.ArraySlice)
		}
	}
	v := &View{object: object{dev: d, id: d.id()}, desc: *desc, res: res, cpu: dst}
	if dst != 0 {
		d.mu.Lock()
		d.descriptors[dst] = v
		d.mu.Unlock()
	}
	d.created()
	return v, nil
}

// CopyDescriptor implements driver.Device.
func (d *Device) CopyDescriptor(dst, src driver.CPUDescriptor, _ driver.HeapKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.descriptors[src]; ok {
		d.descriptors[dst] = v
	} else {
		delete(d.descriptors, dst)
	}
}

// CreateFence implements driver.Device.
func (d *Device) CreateFence(initial uint64) (driver.Fence, error) {
	f := &Fence{dev: d, completed: initial, signaled: initial}
	f.cond = sync.NewCond(&f.mu)
	d.mu.Lock()
	d.fences = append(d.fences, f)
	d.mu.Unlock()
	d.created()
	return f, nil
}

// CreateCommandAllocator implements driver.Device.
func (d *Device) CreateCommandAllocator(kind driver.QueueKind) (driver.CommandAllocator, error) {
	if err := d.takeFailure(OpCreateAllocator); err != nil {
		return nil, err
	}
	a := &CommandAllocator{object: object{dev: d, id: d.id()}, kind: kind}
	d.mu.Lock()
	d.allocators++
	d.mu.Unlock()
	d.created()
	return a, nil
}

// CreateCommandList implements driver.Device. The list starts recording
// into alloc.
func (d *Device) CreateCommandList(kind driver.QueueKind, alloc driver.CommandAllocator) (driver.CommandList, error) {
	l := &CommandList{object: object{dev: d, id: d.id()}, kind: kind}
	if err := l.Reset(alloc); err != nil {
		return nil, err
	}
	d.created()
	return l, nil
}

// CreateDescriptorHeap implements driver.Device.
func (d *Device) CreateDescriptorHeap(desc *driver.HeapDesc) (driver.DescriptorHeap, error) {
	if desc == nil || desc.Capacity == 0 {
		return nil, fmt.Errorf("%w: empty descriptor heap", driver.ErrInvalidDesc)
	}
	d.mu.Lock()
	base := d.nextHeap
	// Leave a gap so that overruns land outside every heap.
	d.nextHeap += driver.CPUDescriptor(uint64(desc.Capacity+1) * descriptorIncrement)
	d.mu.Unlock()

	h := &DescriptorHeap{object: object{dev: d, id: d.id()}, desc: *desc, cpu: base}
	if desc.ShaderVisible {
		h.gpu = driver.GPUDescriptor(base) | 1<<48
	}
	d.created()
	return h, nil
}

// CreateSwapChain implements driver.Device.
func (d *Device) CreateSwapChain(window driver.Window, desc *driver.SwapChainDesc) (driver.SwapChain, error) {
	if window == nil || !window.Valid() {
		return nil, fmt.Errorf("%w: invalid window", driver.ErrInvalidDesc)
	}
	if desc == nil || desc.BufferCount == 0 {
		return nil, fmt.Errorf("%w: swap chain needs at least one buffer", driver.ErrInvalidDesc)
	}
	sc := &SwapChain{object: object{dev: d, id: d.id()}, desc: *desc}
	if err := sc.createBuffers(); err != nil {
		return nil, err
	}
	d.created()
	return sc, nil
}

// Queue implements driver.Device.
func (d *Device) Queue(kind driver.QueueKind) driver.Queue {
	return d.queues[kind]
}

// NullQueue returns the concrete queue of the given kind.
func (d *Device) NullQueue(kind driver.QueueKind) *Queue {
	return d.queues[kind]
}

// Destroy implements driver.Device.
func (d *Device) Destroy() {
	if d.destroyed.Swap(true) {
		panic("null: device destroyed twice")
	}
	for _, f := range d.fenceList() {
		f.wake()
	}
}
