// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/rhi/driver"
)

// SwapChain is an offscreen driver.SwapChain: a ring of render targets
// rotated on Present. Sync interval and tearing flags have no effect.
type SwapChain struct {
	d        *Device
	desc     driver.SwapChainDesc
	buffers  []*Texture
	index    uint32
	presents uint64
	released bool
}

// createBuffers replaces the ring. The old ring is kept when a texture
// cannot be created.
func (s *SwapChain) createBuffers() error {
	bufs := make([]*Texture, s.desc.BufferCount)
	for i := range bufs {
		t, err := s.d.CreateTexture(&driver.TextureDesc{
			Label:         fmt.Sprintf("backbuffer %d", i),
			Format:        s.desc.Format,
			Width:         s.desc.Width,
			Height:        s.desc.Height,
			DepthOrLayers: 1,
			MipLevels:     1,
			SampleCount:   1,
			Usage:         driver.TextureUsageRenderTarget | driver.TextureUsageShaderRead | driver.TextureUsageCopySrc,
		})
		if err != nil {
			for _, b := range bufs[:i] {
				b.Release()
			}
			return err
		}
		bufs[i] = t.(*Texture)
	}
	s.releaseBuffers()
	s.buffers = bufs
	s.index = 0
	return nil
}

func (s *SwapChain) releaseBuffers() {
	for _, b := range s.buffers {
		b.Release()
	}
	s.buffers = nil
}

// BackBuffers implements driver.SwapChain.
func (s *SwapChain) BackBuffers() []driver.Texture {
	out := make([]driver.Texture, len(s.buffers))
	for i, b := range s.buffers {
		out[i] = b
	}
	return out
}

// CurrentIndex implements driver.SwapChain.
func (s *SwapChain) CurrentIndex() uint32 { return s.index }

// Presents returns the number of frames presented.
func (s *SwapChain) Presents() uint64 { return s.presents }

// Present implements driver.SwapChain.
func (s *SwapChain) Present(uint32, driver.PresentFlags) error {
	if s.d.lost.Load() {
		return fmt.Errorf("native: present: %w", driver.ErrDeviceLost)
	}
	if len(s.buffers) == 0 {
		return fmt.Errorf("%w: swap chain has no buffers", driver.ErrInvalidDesc)
	}
	s.presents++
	s.index = (s.index + 1) % uint32(len(s.buffers))
	return nil
}

// Resize implements driver.SwapChain.
func (s *SwapChain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: zero-sized swap chain", driver.ErrInvalidDesc)
	}
	old := s.desc
	s.desc.Width, s.desc.Height = width, height
	if err := s.createBuffers(); err != nil {
		s.desc = old
		return err
	}
	return nil
}

// Release implements driver.SwapChain.
func (s *SwapChain) Release() {
	if s.released {
		panic("native: swap chain released twice")
	}
	s.released = true
	s.releaseBuffers()
}
