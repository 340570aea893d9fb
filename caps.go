// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"strings"

	"github.com/gogpu/rhi/driver"
)

// Features is a set of optional device capabilities.
type Features uint32

// Feature flags.
const (
	FeatureTextureArray Features = 1 << iota
	FeatureTextureCubeArray
	FeatureCompute
	FeatureRaytracing
	FeatureTearing
)

var featureNames = []struct {
	f    Features
	name string
}{
	{FeatureTextureArray, "texture-array"},
	{FeatureTextureCubeArray, "texture-cube-array"},
	{FeatureCompute, "compute"},
	{FeatureRaytracing, "raytracing"},
	{FeatureTearing, "tearing"},
}

// Has reports whether every feature in f2 is present.
func (f Features) Has(f2 Features) bool { return f&f2 == f2 }

func (f Features) String() string {
	var names []string
	for _, n := range featureNames {
		if f.Has(n.f) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Limits are adapter limits.
type Limits struct {
	MaxTextureDimension2D uint32
	MaxRenderTargets      uint32
	MaxVertexBuffers      uint32
	ConstantBufferAlign   uint32
}

// Caps describes the device.
type Caps struct {
	Backend     Backend
	AdapterName string
	AdapterType driver.AdapterType
	VendorID    uint32
	DeviceID    uint32
	Features    Features
	Limits      Limits
}

func capsFromInfo(b Backend, info driver.AdapterInfo) Caps {
	c := Caps{
		Backend:     b,
		AdapterName: info.Name,
		AdapterType: info.Type,
		VendorID:    info.VendorID,
		DeviceID:    info.DeviceID,
		Limits: Limits{
			MaxTextureDimension2D: info.MaxTextureDimension2D,
			MaxRenderTargets:      info.MaxRenderTargets,
			MaxVertexBuffers:      info.MaxVertexBuffers,
			ConstantBufferAlign:   info.ConstantBufferAlign,
		},
	}
	for _, f := range []struct {
		on bool
		f  Features
	}{
		{info.TextureArray, FeatureTextureArray},
		{info.TextureCubeArray, FeatureTextureCubeArray},
		{info.Compute, FeatureCompute},
		{info.Raytracing, FeatureRaytracing},
		{info.Tearing, FeatureTearing},
	} {
		if f.on {
			c.Features |= f.f
		}
	}
	return c
}
