// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"slices"
	"sync"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/driver/null"
)

// backendPriority is the selection order when no backend is requested
// (first available wins).
var backendPriority = []Backend{
	BackendD3D12,
	BackendVulkan,
	BackendMetal,
	BackendD3D11,
	BackendOpenGL,
	BackendWebGPU,
	BackendNull,
}

// Registry maps backends to drivers. Probe results are computed once per
// registered driver and cached.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	drivers map[Backend]driver.Driver
	probed  map[Backend]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[Backend]driver.Driver),
		probed:  make(map[Backend]bool),
	}
}

// Register adds d, replacing any driver for the same backend.
func (r *Registry) Register(d driver.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := d.Backend()
	r.drivers[b] = d
	delete(r.probed, b)
}

// Unregister removes the driver of b.
func (r *Registry) Unregister(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drivers, b)
	delete(r.probed, b)
}

// Lookup returns the driver registered for b.
func (r *Registry) Lookup(b Backend) (driver.Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[b]
	return d, ok
}

// IsRegistered reports whether a driver is registered for b.
func (r *Registry) IsRegistered(b Backend) bool {
	_, ok := r.Lookup(b)
	return ok
}

// caller holds r.mu
func (r *Registry) probe(b Backend) bool {
	if ok, done := r.probed[b]; done {
		return ok
	}
	d, registered := r.drivers[b]
	ok := registered && d.Probe()
	if registered {
		r.probed[b] = ok
	}
	return ok
}

// Available returns the registered backends whose probe succeeds, in
// priority order.
func (r *Registry) Available() []Backend {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Backend
	for _, b := range backendPriority {
		if r.probe(b) {
			out = append(out, b)
		}
	}
	// Backends outside the priority list go last.
	var rest []Backend
	for b := range r.drivers {
		if !slices.Contains(backendPriority, b) && r.probe(b) {
			rest = append(rest, b)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// Default returns the available driver with the highest priority.
func (r *Registry) Default() (driver.Driver, error) {
	avail := r.Available()
	if len(avail) == 0 {
		return nil, ErrNoBackend
	}
	d, _ := r.Lookup(avail[0])
	return d, nil
}

var defaultRegistry = NewRegistry()

func init() {
	defaultRegistry.Register(null.New())
}

// DefaultRegistry returns the process registry that backend packages
// register into from their init functions.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds d to the default registry.
// This is typically called from init() functions in backend packages.
func Register(d driver.Driver) { defaultRegistry.Register(d) }

// AvailableBackends returns the available backends of the default
// registry in priority order.
func AvailableBackends() []Backend { return defaultRegistry.Available() }
