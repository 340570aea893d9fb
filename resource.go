// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/internal/cache"
	"github.com/gogpu/rhi/internal/descriptor"
)

// View is a cached native view together with its descriptor slot.
// Views are owned by their resource and become invalid when it is
// destroyed.
type View struct {
	kind   ViewKind
	native driver.View
	slot   descriptor.Persistent
}

// Kind returns the view kind.
func (v *View) Kind() ViewKind { return v.kind }

// Native returns the driver view.
func (v *View) Native() driver.View { return v.native }

// Descriptor returns the CPU descriptor of the view in the heap of frame
// slot 0. It is zero on backends without descriptor heaps.
func (v *View) Descriptor() driver.CPUDescriptor {
	if len(v.slot.CPU) == 0 {
		return 0
	}
	return v.slot.CPU[0]
}

// DescriptorIndex returns the persistent heap slot of the view.
func (v *View) DescriptorIndex() uint32 { return v.slot.Index }

// viewKey identifies a view within one resource.
type viewKey struct {
	kind        ViewKind
	format      TextureFormat
	subresource uint32
}

type bufferRecord struct {
	native driver.Buffer
	desc   driver.BufferDesc
	views  *cache.Cache[viewKey, *View]
}

type textureRecord struct {
	native driver.Texture
	desc   driver.TextureDesc
	views  *cache.Cache[viewKey, *View]

	// external records wrap swap chain back buffers. The swap chain owns
	// their native texture.
	external bool
}

func newBufferRecord() *bufferRecord {
	return &bufferRecord{views: cache.New[viewKey, *View]()}
}

func newTextureRecord() *textureRecord {
	return &textureRecord{views: cache.New[viewKey, *View]()}
}

// releaseViews destroys the cached views of a record and frees their
// descriptor slots.
func (d *Device) releaseViews(views *cache.Cache[viewKey, *View]) {
	views.Drain(func(_ viewKey, v *View) {
		v.native.Release()
		d.heapFor(v.kind).FreePersistent(v.slot.Index)
	})
}

func (d *Device) heapFor(kind ViewKind) *descriptor.Manager {
	return d.heaps[kind.HeapKind()]
}

// createView allocates a persistent descriptor and writes a native view
// of res into it. Shader-visible descriptors are copied to every frame
// heap.
func (d *Device) createView(res driver.Resource, desc *driver.ViewDesc) (*View, error) {
	heap := d.heapFor(desc.Kind)
	slot := heap.AllocatePersistent()
	native, err := d.native.CreateView(res, desc, slot.CPU[0])
	if err != nil {
		heap.FreePersistent(slot.Index)
		d.logger.Error("rhi: create view failed", "kind", desc.Kind.String(), "err", err)
		d.checkLost(err)
		return nil, fmt.Errorf("rhi: create %s view: %w", desc.Kind, err)
	}
	heap.Replicate(slot)
	return &View{kind: desc.Kind, native: native, slot: slot}, nil
}

// textureView returns the memoized view of one texture subresource.
func (d *Device) textureView(h TextureHandle, kind ViewKind, format TextureFormat, mip, slice uint32) (*View, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}
	rec := d.textures.Get(h.poolHandle())
	desc := &rec.desc
	slices := desc.DepthOrLayers
	if desc.Type == Texture3D {
		slices = 1
	}
	if mip >= desc.MipLevels || slice >= slices {
		panic(fmt.Sprintf("rhi: %s: subresource mip %d slice %d out of range (%d mips, %d slices)",
			h, mip, slice, desc.MipLevels, slices))
	}
	switch kind {
	case ViewRenderTarget:
		if isDepthFormat(desc.Format) {
			panic(fmt.Sprintf("rhi: %s: render target view of depth texture", h))
		}
	case ViewDepthStencil:
		if !isDepthFormat(desc.Format) {
			panic(fmt.Sprintf("rhi: %s: depth-stencil view of color texture", h))
		}
	}
	if format == gputypes.TextureFormatUndefined {
		format = desc.Format
	}
	key := viewKey{kind: kind, format: format, subresource: mip + slice*desc.MipLevels}
	return rec.views.GetOrCreate(key, func() (*View, error) {
		return d.createView(rec.native, &driver.ViewDesc{
			Kind:       kind,
			Format:     format,
			MipLevel:   mip,
			ArraySlice: slice,
		})
	})
}

// ShaderResourceView returns the shader resource view of one subresource
// of tex, creating it on first use. Undefined format uses the texture
// format. Repeated calls with the same arguments return the same view.
func (d *Device) ShaderResourceView(tex TextureHandle, format TextureFormat, mip, slice uint32) (*View, error) {
	return d.textureView(tex, ViewShaderResource, format, mip, slice)
}

// UnorderedAccessView returns the unordered access view of one
// subresource of tex, creating it on first use.
func (d *Device) UnorderedAccessView(tex TextureHandle, format TextureFormat, mip, slice uint32) (*View, error) {
	return d.textureView(tex, ViewUnorderedAccess, format, mip, slice)
}

// RenderTargetView returns the render target view of one subresource of
// tex, creating it on first use.
func (d *Device) RenderTargetView(tex TextureHandle, format TextureFormat, mip, slice uint32) (*View, error) {
	return d.textureView(tex, ViewRenderTarget, format, mip, slice)
}

// DepthStencilView returns the depth-stencil view of one subresource of
// tex, creating it on first use.
func (d *Device) DepthStencilView(tex TextureHandle, format TextureFormat, mip, slice uint32) (*View, error) {
	return d.textureView(tex, ViewDepthStencil, format, mip, slice)
}

// BufferView returns the whole-buffer shader resource or unordered access
// view of buf, creating it on first use.
func (d *Device) BufferView(buf BufferHandle, kind ViewKind) (*View, error) {
	if kind != ViewShaderResource && kind != ViewUnorderedAccess {
		panic(fmt.Sprintf("rhi: %s: buffers have no %s views", buf, kind))
	}
	if err := d.usable(); err != nil {
		return nil, err
	}
	rec := d.buffers.Get(buf.poolHandle())
	return rec.views.GetOrCreate(viewKey{kind: kind}, func() (*View, error) {
		return d.createView(rec.native, &driver.ViewDesc{Kind: kind})
	})
}

// TextureDesc returns the descriptor tex was created with, defaults
// applied.
func (d *Device) TextureDesc(tex TextureHandle) TextureDescriptor {
	desc := d.textures.Get(tex.poolHandle()).desc
	return TextureDescriptor{
		Label:         desc.Label,
		Type:          desc.Type,
		Format:        desc.Format,
		Width:         desc.Width,
		Height:        desc.Height,
		DepthOrLayers: desc.DepthOrLayers,
		MipLevels:     desc.MipLevels,
		SampleCount:   desc.SampleCount,
		Usage:         desc.Usage,
	}
}

// BufferSize returns the size of buf in bytes.
func (d *Device) BufferSize(buf BufferHandle) uint64 {
	return d.buffers.Get(buf.poolHandle()).desc.Size
}

// NativeBuffer returns the driver buffer behind buf.
func (d *Device) NativeBuffer(buf BufferHandle) driver.Buffer {
	return d.buffers.Get(buf.poolHandle()).native
}

// NativeTexture returns the driver texture behind tex.
func (d *Device) NativeTexture(tex TextureHandle) driver.Texture {
	return d.textures.Get(tex.poolHandle()).native
}
