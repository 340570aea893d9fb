// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package null

import (
	"fmt"
	"sync"

	"github.com/gogpu/rhi/driver"
)

// SwapChain is a null driver.SwapChain. Presents rotate the back-buffer
// index and are counted.
type SwapChain struct {
	object

	mu       sync.Mutex
	desc     driver.SwapChainDesc
	buffers  []*Texture
	index    uint32
	presents int
	resizes  int
	lastSync uint32
	lastFlag driver.PresentFlags
}

func (s *SwapChain) createBuffers() error {
	bufs := make([]*Texture, s.desc.BufferCount)
	for i := range bufs {
		t, err := s.dev.CreateTexture(&driver.TextureDesc{
			Label:         fmt.Sprintf("backbuffer %d", i),
			Format:        s.desc.Format,
			Width:         s.desc.Width,
			Height:        s.desc.Height,
			DepthOrLayers: 1,
			MipLevels:     1,
			SampleCount:   1,
			Usage:         driver.TextureUsageRenderTarget,
		})
		if err != nil {
			for _, b := range bufs[:i] {
				b.Release()
			}
			return err
		}
		bufs[i] = t.(*Texture)
	}
	s.buffers = bufs
	s.index = 0
	return nil
}

// BackBuffers implements driver.SwapChain.
func (s *SwapChain) BackBuffers() []driver.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]driver.Texture, len(s.buffers))
	for i, b := range s.buffers {
		out[i] = b
	}
	return out
}

// CurrentIndex implements driver.SwapChain.
func (s *SwapChain) CurrentIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Present implements driver.SwapChain.
func (s *SwapChain) Present(syncInterval uint32, flags driver.PresentFlags) error {
	if s.dev.lost.Load() {
		return fmt.Errorf("null: present: %w", driver.ErrDeviceLost)
	}
	if err := s.dev.takeFailure(OpPresent); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffers) == 0 {
		return fmt.Errorf("%w: swap chain has no buffers", driver.ErrInvalidDesc)
	}
	s.presents++
	s.lastSync, s.lastFlag = syncInterval, flags
	s.index = (s.index + 1) % uint32(len(s.buffers))
	return nil
}

// Presents returns the number of successful presents.
func (s *SwapChain) Presents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

// Resizes returns the number of successful resizes.
func (s *SwapChain) Resizes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resizes
}

// LastPresent returns the arguments of the last present.
func (s *SwapChain) LastPresent() (uint32, driver.PresentFlags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync, s.lastFlag
}

// Resize implements driver.SwapChain.
func (s *SwapChain) Resize(width, height uint32) error {
	if err := s.dev.takeFailure(OpResize); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: zero-sized swap chain", driver.ErrInvalidDesc)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buffers {
		b.Release()
	}
	s.desc.Width, s.desc.Height = width, height
	if err := s.createBuffers(); err != nil {
		s.buffers = nil
		return err
	}
	s.resizes++
	return nil
}

// Release implements driver.SwapChain.
func (s *SwapChain) Release() {
	s.mu.Lock()
	for _, b := range s.buffers {
		b.Release()
	}
	s.buffers = nil
	s.mu.Unlock()
	s.object.Release()
}
