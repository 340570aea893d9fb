// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package webgpu

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
)

func TestTextureFormatRoundTrip(t *testing.T) {
	for f := range formats {
		wf, err := textureFormat(f)
		if err != nil {
			t.Fatalf("textureFormat(%v) error = %v", f, err)
		}
		if back := fromTextureFormat(wf); back != f {
			t.Errorf("fromTextureFormat(textureFormat(%v)) = %v", f, back)
		}
	}
	if _, err := textureFormat(gputypes.TextureFormatBC1RGBAUnorm); !errors.Is(err, driver.ErrUnsupported) {
		t.Errorf("compressed format error = %v, want ErrUnsupported", err)
	}
	if got := fromTextureFormat(wgpu.TextureFormatUndefined); got != gputypes.TextureFormatUndefined {
		t.Errorf("fromTextureFormat(Undefined) = %v", got)
	}
}

func TestUsageConversion(t *testing.T) {
	if got := bufferUsage(driver.BufferUsageIndex | driver.BufferUsageCopySrc); got != wgpu.BufferUsageIndex|wgpu.BufferUsageCopySrc {
		t.Errorf("bufferUsage() = %v", got)
	}
	if got := bufferUsage(0); got != 0 {
		t.Errorf("bufferUsage(0) = %v", got)
	}
	got := textureUsage(driver.TextureUsageShaderWrite | driver.TextureUsageRenderTarget | driver.TextureUsageDepthStencil)
	if got != wgpu.TextureUsageStorageBinding|wgpu.TextureUsageRenderAttachment {
		t.Errorf("textureUsage() = %v", got)
	}
	if textureDimension(driver.TextureCube) != wgpu.TextureDimension2D || viewDimension(driver.Texture3D) != wgpu.TextureViewDimension3D {
		t.Error("dimension conversion mismatch")
	}
}

func TestAlignUp(t *testing.T) {
	for _, tt := range []struct{ in, want uint64 }{{1, 4}, {4, 4}, {5, 8}, {0, 0}} {
		if got := alignUp(tt.in, copyAlignment); got != tt.want {
			t.Errorf("alignUp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFenceRetire(t *testing.T) {
	f := &Fence{completed: 1}

	// Nothing submitted yet: the value is reached at once.
	f.signal(0, 2)
	if f.completed != 2 {
		t.Fatalf("completed = %d, want 2", f.completed)
	}

	f.signal(10, 3)
	f.signal(11, 4)
	f.signal(11, 5)
	f.signal(14, 6)
	f.retireThrough(11)
	if f.completed != 5 || len(f.pending) != 1 {
		t.Errorf("after retiring 11: completed = %d, pending = %d; want 5, 1", f.completed, len(f.pending))
	}
	f.retireThrough(9)
	if f.completed != 5 {
		t.Errorf("retiring an older submission moved completed to %d", f.completed)
	}
	f.retireThrough(20)
	if f.completed != 6 || len(f.pending) != 0 {
		t.Errorf("after retiring all: completed = %d, pending = %d", f.completed, len(f.pending))
	}
}

func TestFenceRelease(t *testing.T) {
	f := &Fence{}
	f.Release()
	if err := f.Wait(1); !errors.Is(err, errFenceReleased) {
		t.Errorf("Wait() after Release = %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("second Release did not panic")
		}
	}()
	f.Release()
}

func TestAllocatorRecording(t *testing.T) {
	a := &CommandAllocator{kind: driver.QueueGraphics}
	a.recording = &CommandList{kind: driver.QueueGraphics, alloc: a}
	if err := a.Reset(); !errors.Is(err, driver.ErrInvalidDesc) {
		t.Errorf("Reset() while recording = %v", err)
	}

	l := &CommandList{kind: driver.QueueCompute}
	if err := l.Reset(a); !errors.Is(err, driver.ErrInvalidDesc) {
		t.Errorf("Reset() with a graphics allocator = %v", err)
	}
	if err := l.Reset(nil); !errors.Is(err, ErrForeignObject) {
		t.Errorf("Reset(nil) = %v", err)
	}
	if err := l.Close(); !errors.Is(err, driver.ErrInvalidDesc) {
		t.Errorf("Close() without recording = %v", err)
	}

	a.recording = nil
	a.closed = 3
	if err := a.Reset(); err != nil || a.Closed() != 0 {
		t.Errorf("Reset() = %v, Closed() = %d", err, a.Closed())
	}
}

func TestSubmitValidation(t *testing.T) {
	q := &Queue{d: &Device{}, kind: driver.QueueGraphics}
	if err := q.Submit([]driver.CommandList{&CommandList{}}, nil, 0); !errors.Is(err, driver.ErrInvalidDesc) {
		t.Errorf("Submit() of an open list = %v", err)
	}
	f := &Fence{d: q.d}
	if err := q.Submit(nil, f, 7); err != nil {
		t.Fatal(err)
	}
	if f.completed != 7 {
		t.Errorf("signal before any submission: completed = %d, want 7", f.completed)
	}
	if err := q.WaitFence(f, 7); err != nil {
		t.Errorf("WaitFence() = %v", err)
	}
}

func TestWriteBufferBounds(t *testing.T) {
	q := &Queue{d: &Device{}}
	b := &Buffer{desc: driver.BufferDesc{Size: 8}}
	if err := q.WriteBuffer(b, 4, make([]byte, 5)); !errors.Is(err, driver.ErrInvalidDesc) {
		t.Errorf("overrun = %v", err)
	}
	if err := q.WriteBuffer(b, 2, make([]byte, 2)); !errors.Is(err, driver.ErrUnsupported) {
		t.Errorf("unaligned offset = %v", err)
	}
}

func TestWriteTextureValidation(t *testing.T) {
	q := &Queue{d: &Device{}}
	tex := &Texture{desc: driver.TextureDesc{Format: gputypes.TextureFormatRGBA8Unorm, Width: 4, Height: 4, DepthOrLayers: 1, MipLevels: 1}}
	if err := q.WriteTexture(tex, 0, 0, make([]byte, 63)); !errors.Is(err, driver.ErrInvalidDesc) {
		t.Errorf("short upload = %v", err)
	}
	if err := q.WriteTexture(tex, 1, 0, nil); !errors.Is(err, driver.ErrInvalidDesc) {
		t.Errorf("mip out of range = %v", err)
	}
	bc := &Texture{desc: driver.TextureDesc{Format: gputypes.TextureFormatBC1RGBAUnorm, Width: 4, Height: 4}}
	if err := q.WriteTexture(bc, 0, 0, nil); !errors.Is(err, driver.ErrUnsupported) {
		t.Errorf("compressed upload = %v", err)
	}
	back := &Texture{desc: tex.desc, chain: &SwapChain{}}
	if err := q.WriteTexture(back, 0, 0, make([]byte, 64)); !errors.Is(err, driver.ErrInvalidDesc) {
		t.Errorf("surface upload = %v", err)
	}
}

func TestSwapChainRingWithoutSurface(t *testing.T) {
	sc := &SwapChain{buffers: []*Texture{{}, {}}}
	for _, want := range []uint32{1, 0, 1} {
		if err := sc.Present(1, 0); err != nil {
			t.Fatal(err)
		}
		if sc.CurrentIndex() != want {
			t.Errorf("CurrentIndex() = %d, want %d", sc.CurrentIndex(), want)
		}
	}
	if sc.Presents() != 3 {
		t.Errorf("Presents() = %d", sc.Presents())
	}
	if err := sc.Resize(0, 1); !errors.Is(err, driver.ErrInvalidDesc) {
		t.Errorf("zero Resize() = %v", err)
	}
	if err := (&SwapChain{}).Present(1, 0); !errors.Is(err, driver.ErrInvalidDesc) {
		t.Errorf("empty Present() = %v", err)
	}
}

func TestDriverIdentity(t *testing.T) {
	if New().Backend() != driver.BackendWebGPU {
		t.Error("Backend() is not WebGPU")
	}
	for in, want := range map[wgpu.AdapterType]driver.AdapterType{
		wgpu.AdapterTypeDiscreteGPU:   driver.AdapterDiscrete,
		wgpu.AdapterTypeIntegratedGPU: driver.AdapterIntegrated,
		wgpu.AdapterTypeCPU:           driver.AdapterCPU,
	} {
		if got := adapterType(in); got != want {
			t.Errorf("adapterType(%v) = %v, want %v", in, got, want)
		}
	}
}
