// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package webgpu

import (
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/rhi/driver"
)

type object struct {
	d        *Device
	name     string
	released atomic.Bool
}

// SetName records a debug name. wgpu objects take their label at
// creation, so the name shows up in later views and logs.
func (o *object) SetName(name string) { o.name = name }

// Name returns the debug name.
func (o *object) Name() string { return o.name }

func (o *object) release(kind string) {
	if o.released.Swap(true) {
		panic("webgpu: " + kind + " released twice")
	}
}

// Buffer is a driver.Buffer.
type Buffer struct {
	object
	native *wgpu.Buffer
	desc   driver.BufferDesc
}

// Size implements driver.Buffer.
func (b *Buffer) Size() uint64 { return b.desc.Size }

// WGPU returns the native buffer.
func (b *Buffer) WGPU() *wgpu.Buffer { return b.native }

// Release implements driver.Resource.
func (b *Buffer) Release() {
	b.release("buffer")
	b.native.Release()
}

// Texture is a driver.Texture. Surface back buffers have no texture of
// their own: they resolve to the surface texture acquired for the
// current frame.
type Texture struct {
	object
	native *wgpu.Texture
	desc   driver.TextureDesc
	chain  *SwapChain
}

// Desc implements driver.Texture.
func (t *Texture) Desc() driver.TextureDesc { return t.desc }

// WGPU returns the native texture. For a surface back buffer it is the
// texture acquired for the current frame.
func (t *Texture) WGPU() (*wgpu.Texture, error) {
	if t.chain != nil {
		return t.chain.acquire()
	}
	return t.native, nil
}

// Release implements driver.Resource.
func (t *Texture) Release() {
	t.release("texture")
	if t.native != nil {
		t.native.Release()
	}
}

// View is a driver.View. Buffer views and views of surface back buffers
// carry no native view.
type View struct {
	d        *Device
	desc     driver.ViewDesc
	tex      *Texture
	buf      *Buffer
	native   *wgpu.TextureView
	released atomic.Bool
}

// Kind implements driver.View.
func (v *View) Kind() driver.ViewKind { return v.desc.Kind }

// Texture returns the viewed texture, or nil for a buffer view.
func (v *View) Texture() *Texture { return v.tex }

// Buffer returns the viewed buffer, or nil for a texture view.
func (v *View) Buffer() *Buffer { return v.buf }

// attachment returns a texture view to render into and a function that
// drops it after the pass.
func (v *View) attachment() (*wgpu.TextureView, func(), error) {
	if v.native != nil {
		return v.native, func() {}, nil
	}
	tex, err := v.tex.WGPU()
	if err != nil {
		return nil, nil, err
	}
	tv, err := tex.CreateView(nil)
	if err != nil {
		return nil, nil, wrap("create surface view", err)
	}
	return tv, tv.Release, nil
}

// Release implements driver.View.
func (v *View) Release() {
	if v.released.Swap(true) {
		panic("webgpu: view released twice")
	}
	if v.native != nil {
		v.native.Release()
	}
}
