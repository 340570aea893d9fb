// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"sync/atomic"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/wgpu/hal"
)

type object struct {
	d        *Device
	name     string
	released atomic.Bool
}

// SetName records a debug name. HAL objects take their label at
// creation, so the name only shows up in later views and logs.
func (o *object) SetName(name string) { o.name = name }

// Name returns the debug name.
func (o *object) Name() string { return o.name }

func (o *object) release(kind string) {
	if o.released.Swap(true) {
		panic("native: " + kind + " released twice")
	}
}

// Buffer is a driver.Buffer.
type Buffer struct {
	object
	native hal.Buffer
	desc   driver.BufferDesc
}

// Size implements driver.Buffer.
func (b *Buffer) Size() uint64 { return b.desc.Size }

// HAL returns the native buffer.
func (b *Buffer) HAL() hal.Buffer { return b.native }

// Release implements driver.Resource.
func (b *Buffer) Release() {
	b.release("buffer")
	b.d.dev.DestroyBuffer(b.native)
}

// Texture is a driver.Texture.
type Texture struct {
	object
	native hal.Texture
	desc   driver.TextureDesc
}

// Desc implements driver.Texture.
func (t *Texture) Desc() driver.TextureDesc { return t.desc }

// HAL returns the native texture.
func (t *Texture) HAL() hal.Texture { return t.native }

// Release implements driver.Resource.
func (t *Texture) Release() {
	t.release("texture")
	t.d.dev.DestroyTexture(t.native)
}

// View is a driver.View. Texture views wrap a HAL texture view; buffer
// views only remember the buffer.
type View struct {
	d        *Device
	desc     driver.ViewDesc
	tex      *Texture
	buf      *Buffer
	native   hal.TextureView
	released atomic.Bool
}

// Kind implements driver.View.
func (v *View) Kind() driver.ViewKind { return v.desc.Kind }

// Texture returns the viewed texture, or nil for buffer views.
func (v *View) Texture() *Texture { return v.tex }

// Buffer returns the viewed buffer, or nil for texture views.
func (v *View) Buffer() *Buffer { return v.buf }

// HAL returns the native texture view, or nil for buffer views.
func (v *View) HAL() hal.TextureView { return v.native }

// Release implements driver.View.
func (v *View) Release() {
	if v.released.Swap(true) {
		panic("native: view released twice")
	}
	if v.native != nil {
		v.d.dev.DestroyTextureView(v.native)
	}
}
