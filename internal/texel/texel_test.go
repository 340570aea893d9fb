// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texel

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
)

func TestBytesPerPixel(t *testing.T) {
	tests := []struct {
		format gputypes.TextureFormat
		want   uint32
	}{
		{gputypes.TextureFormatR8Unorm, 1},
		{gputypes.TextureFormatRG8Unorm, 2},
		{gputypes.TextureFormatBGRA8UnormSrgb, 4},
		{gputypes.TextureFormatDepth24PlusStencil8, 4},
		{gputypes.TextureFormatRGBA16Float, 8},
		{gputypes.TextureFormatRGBA32Float, 16},
		{gputypes.TextureFormatBC1RGBAUnorm, 0},
		{gputypes.TextureFormatUndefined, 0},
	}
	for _, tt := range tests {
		if got := BytesPerPixel(tt.format); got != tt.want {
			t.Errorf("BytesPerPixel(%v) = %d, want %d", tt.format, got, tt.want)
		}
	}
}

func TestSubresource(t *testing.T) {
	tests := []struct {
		name       string
		desc       driver.TextureDesc
		mip, slice uint32
		want       Region
		wantErr    bool
	}{
		{"2d mip 1", driver.TextureDesc{Width: 16, Height: 8, DepthOrLayers: 1, MipLevels: 3}, 1, 0, Region{8, 4, 1, 0}, false},
		{"clamped mip", driver.TextureDesc{Width: 16, Height: 2, DepthOrLayers: 1, MipLevels: 5}, 4, 0, Region{1, 1, 1, 0}, false},
		{"array slice", driver.TextureDesc{Width: 4, Height: 4, DepthOrLayers: 6, MipLevels: 1}, 0, 5, Region{4, 4, 1, 5}, false},
		{"zero counts default to one", driver.TextureDesc{Width: 4, Height: 4}, 0, 0, Region{4, 4, 1, 0}, false},
		{"1d", driver.TextureDesc{Type: driver.Texture1D, Width: 32, Height: 1, DepthOrLayers: 1, MipLevels: 1}, 0, 0, Region{32, 1, 1, 0}, false},
		{"3d volume", driver.TextureDesc{Type: driver.Texture3D, Width: 8, Height: 8, DepthOrLayers: 8, MipLevels: 2}, 1, 0, Region{4, 4, 4, 0}, false},
		{"3d slice", driver.TextureDesc{Type: driver.Texture3D, Width: 8, Height: 8, DepthOrLayers: 8, MipLevels: 1}, 0, 1, Region{}, true},
		{"mip out of range", driver.TextureDesc{Width: 4, Height: 4, MipLevels: 1}, 1, 0, Region{}, true},
		{"slice out of range", driver.TextureDesc{Width: 4, Height: 4, DepthOrLayers: 2, MipLevels: 1}, 0, 2, Region{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Subresource(&tt.desc, tt.mip, tt.slice)
			if tt.wantErr {
				if !errors.Is(err, driver.ErrInvalidDesc) {
					t.Errorf("Subresource() error = %v, want ErrInvalidDesc", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Subresource() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Subresource() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRegionSize(t *testing.T) {
	r := Region{Width: 4, Height: 2, Depth: 3}
	if got := r.Size(gputypes.TextureFormatRGBA8Unorm); got != 96 {
		t.Errorf("Size() = %d, want 96", got)
	}
	if got := r.Size(gputypes.TextureFormatBC3RGBAUnorm); got != 0 {
		t.Errorf("Size() of a compressed format = %d, want 0", got)
	}
}

func TestViewLayer(t *testing.T) {
	rt := driver.TextureDesc{Width: 4, Height: 4, DepthOrLayers: 3, MipLevels: 2, Usage: driver.TextureUsageRenderTarget}
	vol := driver.TextureDesc{Type: driver.Texture3D, Width: 4, Height: 4, DepthOrLayers: 4, MipLevels: 1, Usage: driver.TextureUsageShaderRead}

	if layer, err := ViewLayer(&rt, &driver.ViewDesc{Kind: driver.ViewRenderTarget, MipLevel: 1, ArraySlice: 2}); err != nil || layer != 2 {
		t.Errorf("ViewLayer() = %d, %v; want 2, nil", layer, err)
	}
	if layer, err := ViewLayer(&vol, &driver.ViewDesc{ArraySlice: 3}); err != nil || layer != 0 {
		t.Errorf("3D ViewLayer() = %d, %v; want 0, nil", layer, err)
	}

	bad := []struct {
		name string
		td   *driver.TextureDesc
		vd   driver.ViewDesc
	}{
		{"mip", &rt, driver.ViewDesc{MipLevel: 2}},
		{"slice", &rt, driver.ViewDesc{ArraySlice: 3}},
		{"dsv usage", &rt, driver.ViewDesc{Kind: driver.ViewDepthStencil}},
		{"rtv usage", &vol, driver.ViewDesc{Kind: driver.ViewRenderTarget}},
	}
	for _, tt := range bad {
		if _, err := ViewLayer(tt.td, &tt.vd); !errors.Is(err, driver.ErrInvalidDesc) {
			t.Errorf("%s: error = %v, want ErrInvalidDesc", tt.name, err)
		}
	}
}
