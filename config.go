// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/rhi/driver"
)

// Config is the file form of the device options.
//
// Example (TOML):
//
//	backend = "vulkan"
//	render_latency = 3
//
//	[descriptors]
//	resource = 2048
//
//	[swap_chain]
//	format = "bgra8unorm"
//	depth_format = "depth24plus-stencil8"
//	present_mode = "immediate"
type Config struct {
	// Backend is a backend name ("vulkan", "webgpu", "null"). Empty
	// selects the highest-priority available backend.
	Backend string `toml:"backend" yaml:"backend"`

	RenderLatency  int  `toml:"render_latency" yaml:"render_latency"`
	Debug          bool `toml:"debug" yaml:"debug"`
	PreferLowPower bool `toml:"prefer_low_power" yaml:"prefer_low_power"`
	MaxBuffers     int  `toml:"max_buffers" yaml:"max_buffers"`
	MaxTextures    int  `toml:"max_textures" yaml:"max_textures"`

	Descriptors DescriptorCounts `toml:"descriptors" yaml:"descriptors"`
	SwapChain   SwapChainConfig  `toml:"swap_chain" yaml:"swap_chain"`
}

// SwapChainConfig is the file form of SwapChainOptions.
type SwapChainConfig struct {
	Width       uint32 `toml:"width" yaml:"width"`
	Height      uint32 `toml:"height" yaml:"height"`
	BufferCount uint32 `toml:"buffer_count" yaml:"buffer_count"`
	Format      string `toml:"format" yaml:"format"`
	DepthFormat string `toml:"depth_format" yaml:"depth_format"`
	PresentMode string `toml:"present_mode" yaml:"present_mode"`
}

// DefaultConfig returns the configuration NewDevice uses without options.
func DefaultConfig() *Config {
	return &Config{
		RenderLatency: DefaultRenderLatency,
		MaxBuffers:    DefaultMaxBuffers,
		MaxTextures:   DefaultMaxTextures,
		Descriptors:   DefaultDescriptorCounts(),
		SwapChain: SwapChainConfig{
			Format:      "bgra8unorm",
			PresentMode: "fifo",
		},
	}
}

// LoadConfig reads a TOML (.toml) or YAML (.yaml, .yml) file. Keys missing
// from the file keep their DefaultConfig values. The result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rhi: read config: %w", err)
	}
	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("rhi: parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("rhi: parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config extension %q", ErrInvalidConfig, ext)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Backend != "" {
		if _, err := driver.ParseBackend(c.Backend); err != nil {
			return fmt.Errorf("%w: backend: %w", ErrInvalidConfig, err)
		}
	}
	if c.RenderLatency < 1 || c.RenderLatency > MaxFramesInFlight {
		return fmt.Errorf("%w: render_latency %d out of range [1, %d]", ErrInvalidConfig, c.RenderLatency, MaxFramesInFlight)
	}
	if c.MaxBuffers < 1 {
		return fmt.Errorf("%w: max_buffers must be positive, got %d", ErrInvalidConfig, c.MaxBuffers)
	}
	if c.MaxTextures < 1 {
		return fmt.Errorf("%w: max_textures must be positive, got %d", ErrInvalidConfig, c.MaxTextures)
	}
	d := c.Descriptors
	if d.Resource+d.Transient == 0 || d.RenderTargets == 0 || d.DepthStencils == 0 {
		return fmt.Errorf("%w: descriptor counts must be positive: %+v", ErrInvalidConfig, d)
	}
	sc := c.SwapChain
	if sc.BufferCount != 0 && sc.BufferCount < 2 {
		return fmt.Errorf("%w: swap_chain.buffer_count must be at least 2, got %d", ErrInvalidConfig, sc.BufferCount)
	}
	if _, err := ParseTextureFormat(sc.Format); err != nil {
		return fmt.Errorf("swap_chain.format: %w", err)
	}
	if sc.DepthFormat != "" {
		f, err := ParseTextureFormat(sc.DepthFormat)
		if err != nil {
			return fmt.Errorf("swap_chain.depth_format: %w", err)
		}
		if !isDepthFormat(f) {
			return fmt.Errorf("%w: swap_chain.depth_format %q is not a depth format", ErrInvalidConfig, sc.DepthFormat)
		}
	}
	if _, err := ParsePresentMode(sc.PresentMode); err != nil {
		return fmt.Errorf("swap_chain.present_mode: %w", err)
	}
	return nil
}

// Options converts the configuration to device options. Call Validate
// first; Options reports the same errors.
func (c *Config) Options() ([]DeviceOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	opts := []DeviceOption{
		WithRenderLatency(c.RenderLatency),
		WithDebug(c.Debug),
		WithLowPower(c.PreferLowPower),
		WithMaxBuffers(c.MaxBuffers),
		WithMaxTextures(c.MaxTextures),
		WithDescriptorCounts(c.Descriptors),
	}
	if c.Backend != "" {
		b, _ := driver.ParseBackend(c.Backend)
		opts = append(opts, WithBackend(b))
	}

	format, _ := ParseTextureFormat(c.SwapChain.Format)
	mode, _ := ParsePresentMode(c.SwapChain.PresentMode)
	sc := SwapChainOptions{
		Width:       c.SwapChain.Width,
		Height:      c.SwapChain.Height,
		BufferCount: c.SwapChain.BufferCount,
		Format:      format,
		PresentMode: mode,
	}
	if c.SwapChain.DepthFormat != "" {
		sc.DepthFormat, _ = ParseTextureFormat(c.SwapChain.DepthFormat)
	}
	return append(opts, WithSwapChain(sc)), nil
}
