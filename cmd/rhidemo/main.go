// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command rhidemo opens an rhi device, clears the back buffer for a
// number of frames and prints the adapter capabilities and frame
// statistics.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/gogpu/rhi"
	_ "github.com/gogpu/rhi/backend/native"
	_ "github.com/gogpu/rhi/backend/webgpu"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/driver/null"
)

func main() {
	var (
		config  = flag.String("config", "", "TOML or YAML device configuration")
		backend = flag.String("backend", "", "backend override (null, vulkan, webgpu, ...)")
		frames  = flag.Int("frames", 120, "frames to render, 0 renders until the window closes")
		window  = flag.Bool("window", false, "present to a desktop window")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *config, *backend, *frames, *window); err != nil {
		logger.Error("rhidemo failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, path, backend string, frames int, windowed bool) error {
	cfg := rhi.DefaultConfig()
	if path != "" {
		loaded, err := rhi.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if backend != "" {
		cfg.Backend = backend
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts = append(opts, rhi.WithLogger(logger))

	width, height := cfg.SwapChain.Width, cfg.SwapChain.Height
	if width == 0 || height == 0 {
		width, height = 800, 600
	}
	win, pump, closeWin, err := openWindow(windowed, width, height)
	if err != nil {
		return err
	}
	defer closeWin()
	opts = append(opts, rhi.WithWindow(win))

	dev, err := rhi.NewDevice(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Warn("close failed", "err", err)
		}
	}()

	printCaps(dev.Caps())

	sc := dev.SwapChain()
	for i := 0; frames == 0 || i < frames; i++ {
		if !pump() {
			break
		}
		if w, h := win.Size(); w > 0 && h > 0 && (uint32(w) != sc.Width() || uint32(h) != sc.Height()) {
			if err := dev.Resize(uint32(w), uint32(h)); err != nil {
				return err
			}
		}
		if !dev.BeginFrame() {
			if dev.State() != rhi.StateReady {
				return fmt.Errorf("device %s", dev.State())
			}
			continue
		}
		cmd := dev.CommandList()
		if err := cmd.ClearRenderTarget(sc.CurrentBackBuffer(), pulse(i)); err != nil {
			return err
		}
		if depth := sc.DepthStencil(); depth.IsValid() {
			if err := cmd.ClearDepthStencil(depth, 1, 0); err != nil {
				return err
			}
		}
		if err := dev.EndFrame(); err != nil {
			return err
		}
	}
	dev.WaitForGPU()
	printStats(dev.Stats())
	return nil
}

// pulse returns a slowly cycling clear color for frame i.
func pulse(i int) rhi.Color {
	t := float64(i) / 60
	return rhi.Color{
		R: 0.5 + 0.5*math.Sin(t),
		G: 0.5 + 0.5*math.Sin(t+2*math.Pi/3),
		B: 0.5 + 0.5*math.Sin(t+4*math.Pi/3),
		A: 1,
	}
}

func printCaps(c rhi.Caps) {
	fmt.Printf("backend:   %s\n", c.Backend)
	fmt.Printf("adapter:   %s (%s, %04x:%04x)\n", c.AdapterName, c.AdapterType, c.VendorID, c.DeviceID)
	fmt.Printf("features:  %s\n", c.Features)
	fmt.Printf("max 2D:    %d\n", c.Limits.MaxTextureDimension2D)
}

func printStats(s rhi.FrameStats) {
	fmt.Printf("frames:    cpu %d, gpu %d\n", s.CPUFrame, s.GPUFrame)
	fmt.Printf("waits:     %d back-pressure\n", s.BackPressureWaits)
	fmt.Printf("deferred:  %d flushed, %d pending\n", s.DeferredFlushed, s.DeferredPending)
	fmt.Printf("resources: %d buffers, %d textures, %d allocators\n", s.LiveBuffers, s.LiveTextures, s.AllocatorsCreated)
}

// headless returns an always-open null window of the configured size.
func headless(width, height uint32) (driver.Window, func() bool, func(), error) {
	return null.NewWindow(int(width), int(height)), func() bool { return true }, func() {}, nil
}
