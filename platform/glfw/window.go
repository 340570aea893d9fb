// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu && ((darwin && !ios) || windows || (linux && !android) || dragonfly || openbsd)

package glfw

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Config describes a window to create.
type Config struct {
	Title  string
	Width  int
	Height int

	// Fixed disables user resizing.
	Fixed bool
}

var (
	initMu  sync.Mutex
	windows int
)

// acquire initializes GLFW for the first window.
func acquire() error {
	initMu.Lock()
	defer initMu.Unlock()
	if windows == 0 {
		if err := glfw.Init(); err != nil {
			return fmt.Errorf("glfw: init: %w", err)
		}
	}
	windows++
	return nil
}

// release terminates GLFW after the last window.
func release() {
	initMu.Lock()
	defer initMu.Unlock()
	windows--
	if windows == 0 {
		glfw.Terminate()
	}
}

// Window is a GLFW window without a client API context. It implements
// driver.Window.
type Window struct {
	win      *glfw.Window
	width    atomic.Int32
	height   atomic.Int32
	closed   atomic.Bool
	onResize func(width, height int)
}

// New creates a window. It must be called on the main thread.
func New(cfg Config) (*Window, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("glfw: invalid window size %dx%d", cfg.Width, cfg.Height)
	}
	if err := acquire(); err != nil {
		return nil, err
	}
	// The GPU backend owns presentation.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	resizable := glfw.True
	if cfg.Fixed {
		resizable = glfw.False
	}
	glfw.WindowHint(glfw.Resizable, resizable)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		release()
		return nil, fmt.Errorf("glfw: create window: %w", err)
	}
	w := &Window{win: win}

	// The framebuffer size differs from the window size on high-DPI
	// displays; surfaces need pixels.
	fbw, fbh := win.GetFramebufferSize()
	w.setSize(fbw, fbh)
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.setSize(width, height)
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})
	win.SetCloseCallback(func(*glfw.Window) { w.closed.Store(true) })
	return w, nil
}

func (w *Window) setSize(width, height int) {
	w.width.Store(int32(width))
	w.height.Store(int32(height))
}

// Handle implements driver.Window. GLFW only exposes native handles as
// cgo types, so it reports 0; surfaces come from SurfaceDescriptor.
func (w *Window) Handle() uintptr { return 0 }

// Size implements driver.Window. A minimized window reports 0x0.
func (w *Window) Size() (width, height int) {
	return int(w.width.Load()), int(w.height.Load())
}

// Valid implements driver.Window.
func (w *Window) Valid() bool { return !w.closed.Load() }

// SurfaceDescriptor returns the platform surface description of the
// window for the webgpu backend.
func (w *Window) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.closed.Load() {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.win)
}

// OnResize sets a callback for framebuffer size changes. It runs on the
// main thread from PollEvents.
func (w *Window) OnResize(fn func(width, height int)) { w.onResize = fn }

// PollEvents processes pending events and reports whether the window is
// still open.
func (w *Window) PollEvents() bool {
	if w.closed.Load() {
		return false
	}
	glfw.PollEvents()
	if w.win.ShouldClose() {
		w.closed.Store(true)
	}
	return !w.closed.Load()
}

// Close destroys the window. The rhi device using it must be closed
// first.
func (w *Window) Close() {
	if w.win == nil {
		return
	}
	w.closed.Store(true)
	w.win.Destroy()
	w.win = nil
	release()
}
