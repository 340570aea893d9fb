// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/driver/null"
)

// fakeDriver reports a chosen backend and counts probes. Open hands out
// null devices.
type fakeDriver struct {
	backend   Backend
	available bool
	probes    int
	inner     *null.Driver
}

func newFake(b Backend, available bool) *fakeDriver {
	return &fakeDriver{backend: b, available: available, inner: null.New()}
}

func (f *fakeDriver) Backend() Backend { return f.backend }

func (f *fakeDriver) Probe() bool {
	f.probes++
	return f.available
}

func (f *fakeDriver) Open(cfg *driver.OpenConfig) (driver.Device, error) {
	return f.inner.Open(cfg)
}

func TestRegistryPriority(t *testing.T) {
	r := NewRegistry()
	r.Register(newFake(BackendNull, true))
	r.Register(newFake(BackendWebGPU, true))
	r.Register(newFake(BackendVulkan, true))
	r.Register(newFake(BackendD3D12, false))

	want := []Backend{BackendVulkan, BackendWebGPU, BackendNull}
	if got := r.Available(); !slices.Equal(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
	d, err := r.Default()
	if err != nil {
		t.Fatal(err)
	}
	if d.Backend() != BackendVulkan {
		t.Errorf("Default() = %v, want vulkan", d.Backend())
	}
}

func TestRegistryProbeCached(t *testing.T) {
	r := NewRegistry()
	f := newFake(BackendVulkan, true)
	r.Register(f)
	for range 3 {
		r.Available()
	}
	if f.probes != 1 {
		t.Errorf("probed %d times, want 1", f.probes)
	}

	// Registering again invalidates the cached result.
	g := newFake(BackendVulkan, false)
	r.Register(g)
	if len(r.Available()) != 0 {
		t.Error("replaced driver still reported available")
	}
	if g.probes != 1 {
		t.Errorf("replacement probed %d times, want 1", g.probes)
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(newFake(BackendMetal, true))
	if !r.IsRegistered(BackendMetal) {
		t.Fatal("IsRegistered() = false after Register")
	}
	r.Unregister(BackendMetal)
	if r.IsRegistered(BackendMetal) {
		t.Error("IsRegistered() = true after Unregister")
	}
	if _, err := r.Default(); !errors.Is(err, ErrNoBackend) {
		t.Errorf("Default() error = %v, want ErrNoBackend", err)
	}
}

func TestRegistryUnknownBackendLast(t *testing.T) {
	r := NewRegistry()
	r.Register(newFake(Backend(42), true))
	r.Register(newFake(BackendNull, true))
	want := []Backend{BackendNull, Backend(42)}
	if got := r.Available(); !slices.Equal(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
}

func TestNewDeviceUsesRegistryDefault(t *testing.T) {
	r := NewRegistry()
	r.Register(newFake(BackendNull, true))
	vk := newFake(BackendVulkan, true)
	r.Register(vk)

	dev, err := NewDevice(WithRegistry(r))
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()
	if dev.Backend() != BackendVulkan {
		t.Errorf("Backend() = %v, want vulkan", dev.Backend())
	}

	forced, err := NewDevice(WithRegistry(r), WithBackend(BackendNull))
	if err != nil {
		t.Fatal(err)
	}
	defer forced.Close()
	if forced.Backend() != BackendNull {
		t.Errorf("Backend() = %v, want null", forced.Backend())
	}
}

func TestDefaultRegistryHasNull(t *testing.T) {
	if !DefaultRegistry().IsRegistered(BackendNull) {
		t.Fatal("null backend is not registered by default")
	}
	if !slices.Contains(AvailableBackends(), BackendNull) {
		t.Errorf("AvailableBackends() = %v, want null included", AvailableBackends())
	}
}
