// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"fmt"

	"github.com/gogpu/rhi/internal/pool"
)

// Handle is implemented by BufferHandle and TextureHandle.
type Handle interface {
	IsValid() bool
	fmt.Stringer

	poolHandle() pool.Handle
}

// BufferHandle identifies a buffer owned by a Device. Handles are plain
// integers; they carry no ownership and may be copied freely.
//
// The zero value is invalid. The low 20 bits hold the slot index plus one
// and the high 12 bits a generation that detects use after Destroy.
type BufferHandle uint32

// TextureHandle identifies a texture owned by a Device. It has the same
// layout as BufferHandle.
type TextureHandle uint32

// Invalid handle sentinels.
const (
	InvalidBuffer  BufferHandle  = 0
	InvalidTexture TextureHandle = 0
)

// IsValid reports whether h is not the invalid sentinel. A valid handle may
// still refer to a destroyed resource.
func (h BufferHandle) IsValid() bool { return pool.Handle(h).IsValid() }

// Index returns the pool slot of h.
func (h BufferHandle) Index() uint32 { return pool.Handle(h).Index() }

func (h BufferHandle) String() string { return "buffer " + pool.Handle(h).String() }

func (h BufferHandle) poolHandle() pool.Handle { return pool.Handle(h) }

// IsValid reports whether h is not the invalid sentinel. A valid handle may
// still refer to a destroyed resource.
func (h TextureHandle) IsValid() bool { return pool.Handle(h).IsValid() }

// Index returns the pool slot of h.
func (h TextureHandle) Index() uint32 { return pool.Handle(h).Index() }

func (h TextureHandle) String() string { return "texture " + pool.Handle(h).String() }

func (h TextureHandle) poolHandle() pool.Handle { return pool.Handle(h) }
