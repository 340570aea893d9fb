// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rhi

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/driver/null"
)

// newTestDevice opens a device on drv and closes it when the test ends.
func newTestDevice(t *testing.T, drv *null.Driver, opts ...DeviceOption) (*Device, *null.Device) {
	t.Helper()
	dev, err := NewDevice(append([]DeviceOption{WithDriver(drv)}, opts...)...)
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	nd := drv.Device()
	t.Cleanup(func() { closeDevice(t, dev, nd) })
	return dev, nd
}

// closeDevice closes dev, completing fences on demand so that manual
// fences cannot block the shutdown wait.
func closeDevice(t *testing.T, dev *Device, nd *null.Device) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-nd.Waits():
				nd.Advance()
			}
		}
	}()
	if err := dev.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	close(done)
}

func bufferLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func mustFrame(t *testing.T, dev *Device) {
	t.Helper()
	if !dev.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	if err := dev.EndFrame(); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
}

func TestNewDeviceDefaultRegistry(t *testing.T) {
	dev, err := NewDevice()
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	defer dev.Close()

	if dev.Backend() != BackendNull {
		t.Errorf("Backend() = %v, want null", dev.Backend())
	}
	caps := dev.Caps()
	if caps.AdapterName != "Null Device" {
		t.Errorf("AdapterName = %q", caps.AdapterName)
	}
	if !caps.Features.Has(FeatureCompute | FeatureTextureArray) {
		t.Errorf("Features = %v, want compute and texture-array", caps.Features)
	}
	if dev.State() != StateReady {
		t.Errorf("State() = %v, want ready", dev.State())
	}
	if dev.RenderLatency() != DefaultRenderLatency {
		t.Errorf("RenderLatency() = %d, want %d", dev.RenderLatency(), DefaultRenderLatency)
	}
	if dev.SwapChain() != nil {
		t.Error("headless device has a swap chain")
	}
}

func TestNewDeviceBackendSelection(t *testing.T) {
	empty := NewRegistry()
	if _, err := NewDevice(WithRegistry(empty)); !errors.Is(err, ErrNoBackend) {
		t.Errorf("empty registry: error = %v, want ErrNoBackend", err)
	}
	if _, err := NewDevice(WithRegistry(empty), WithBackend(BackendVulkan)); !errors.Is(err, ErrNoBackend) {
		t.Errorf("unregistered backend: error = %v, want ErrNoBackend", err)
	}

	r := NewRegistry()
	r.Register(null.New(null.WithUnavailable()))
	if _, err := NewDevice(WithRegistry(r), WithBackend(BackendNull)); !errors.Is(err, driver.ErrNotAvailable) {
		t.Errorf("unavailable backend: error = %v, want ErrNotAvailable", err)
	}
}

func TestNewDeviceInvalidLatency(t *testing.T) {
	for _, n := range []int{0, MaxFramesInFlight + 1} {
		if _, err := NewDevice(WithDriver(null.New()), WithRenderLatency(n)); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("latency %d: error = %v, want ErrInvalidConfig", n, err)
		}
	}
}

func TestBufferRoundTrip(t *testing.T) {
	dev, _ := newTestDevice(t, null.New())

	data := []byte{1, 2, 3, 4}
	h1, err := dev.CreateBuffer(BufferUsageVertex, 16, 4, data)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	nb := dev.NativeBuffer(h1).(*null.Buffer)
	if got := nb.Bytes()[:4]; !bytes.Equal(got, data) {
		t.Errorf("buffer contents = %v, want %v", got, data)
	}
	if dev.BufferSize(h1) != 16 {
		t.Errorf("BufferSize() = %d, want 16", dev.BufferSize(h1))
	}

	dev.Destroy(h1)
	if dev.IsAlive(h1) {
		t.Error("destroyed buffer is alive")
	}
	h2, err := dev.CreateBuffer(BufferUsageVertex, 16, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Errorf("reused handle %v is equal to the destroyed one", h2)
	}
	if h1.Index() != h2.Index() {
		t.Logf("slot not reused: %d then %d", h1.Index(), h2.Index())
	}
	if dev.IsAlive(h1) || !dev.IsAlive(h2) {
		t.Error("old and new handle are valid at the same time")
	}
}

func TestCreateBufferInvalid(t *testing.T) {
	dev, _ := newTestDevice(t, null.New())
	if h, err := dev.CreateBuffer(BufferUsageUniform, 0, 0, nil); h != InvalidBuffer || !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("zero size: (%v, %v)", h, err)
	}
	if h, err := dev.CreateBuffer(BufferUsageUniform, 2, 0, []byte{1, 2, 3}); h != InvalidBuffer || !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("oversized data: (%v, %v)", h, err)
	}
	if dev.Stats().LiveBuffers != 0 {
		t.Errorf("LiveBuffers = %d after failed creates", dev.Stats().LiveBuffers)
	}
}

func TestTexturePoolExhaustion(t *testing.T) {
	logger, buf := bufferLogger()
	dev, _ := newTestDevice(t, null.New(), WithMaxTextures(4), WithLogger(logger))

	desc := &TextureDescriptor{Format: gputypes.TextureFormatRGBA8Unorm, Width: 4, Height: 4, Usage: TextureUsageShaderRead}
	for i := range 4 {
		if _, err := dev.CreateTexture(desc, nil); err != nil {
			t.Fatalf("texture %d: %v", i, err)
		}
	}
	h, err := dev.CreateTexture(desc, nil)
	if h != InvalidTexture {
		t.Errorf("fifth texture = %v, want invalid", h)
	}
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("fifth texture error = %v, want ErrPoolExhausted", err)
	}
	if !strings.Contains(buf.String(), "capacity exhausted") {
		t.Errorf("no exhaustion logged: %s", buf.String())
	}
}

func TestCreateTextureNativeFailure(t *testing.T) {
	logger, buf := bufferLogger()
	dev, nd := newTestDevice(t, null.New(), WithLogger(logger))

	nd.Fail(null.OpCreateTexture, driver.ErrOutOfMemory)
	h, err := dev.CreateTexture(&TextureDescriptor{
		Label: "albedo", Format: gputypes.TextureFormatRGBA8Unorm, Width: 8, Height: 8,
	}, nil)
	if h != InvalidTexture || !errors.Is(err, driver.ErrOutOfMemory) {
		t.Fatalf("CreateTexture() = (%v, %v), want invalid and ErrOutOfMemory", h, err)
	}
	if !strings.Contains(buf.String(), "create texture failed") {
		t.Errorf("failure not logged: %s", buf.String())
	}
	if dev.Stats().LiveTextures != 0 {
		t.Errorf("LiveTextures = %d, want 0", dev.Stats().LiveTextures)
	}
	if dev.State() != StateReady {
		t.Errorf("State() = %v after a creation failure", dev.State())
	}

	// The slot is free again.
	if _, err := dev.CreateTexture(&TextureDescriptor{Format: gputypes.TextureFormatRGBA8Unorm, Width: 8, Height: 8}, nil); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestCreateTextureDescriptorValidation(t *testing.T) {
	dev, _ := newTestDevice(t, null.New())
	tests := []struct {
		name string
		desc *TextureDescriptor
	}{
		{"nil", nil},
		{"zero width", &TextureDescriptor{Format: gputypes.TextureFormatRGBA8Unorm, Height: 4}},
		{"no format", &TextureDescriptor{Width: 4, Height: 4}},
		{"cube layers", &TextureDescriptor{Type: TextureCube, Format: gputypes.TextureFormatRGBA8Unorm, Width: 4, Height: 4, DepthOrLayers: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := dev.CreateTexture(tt.desc, nil)
			if h != InvalidTexture || !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("CreateTexture() = (%v, %v), want ErrInvalidDescriptor", h, err)
			}
		})
	}
}

func TestCreateTextureUploads(t *testing.T) {
	dev, _ := newTestDevice(t, null.New())
	h, err := dev.CreateTexture(&TextureDescriptor{
		Format: gputypes.TextureFormatR8Unorm, Width: 4, Height: 4, MipLevels: 3,
	}, [][]byte{make([]byte, 16), nil, make([]byte, 1)})
	if err != nil {
		t.Fatal(err)
	}
	if got := dev.NativeTexture(h).(*null.Texture).Uploaded(); got != 17 {
		t.Errorf("uploaded %d bytes, want 17", got)
	}
	if dev.TextureDesc(h).Usage&TextureUsageCopyDst == 0 {
		t.Error("texture with initial data lacks CopyDst")
	}

	if _, err := dev.CreateTexture(&TextureDescriptor{
		Format: gputypes.TextureFormatR8Unorm, Width: 4, Height: 4,
	}, [][]byte{nil, nil}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("too much initial data: error = %v", err)
	}
}

func TestSetName(t *testing.T) {
	dev, _ := newTestDevice(t, null.New())
	b, _ := dev.CreateBuffer(BufferUsageIndex, 64, 0, nil)
	tex, _ := dev.CreateTexture(&TextureDescriptor{Format: gputypes.TextureFormatRGBA8Unorm, Width: 2, Height: 2}, nil)

	dev.SetName(b, "indices")
	dev.SetName(tex, "albedo")
	if got := dev.NativeBuffer(b).(*null.Buffer).Name(); got != "indices" {
		t.Errorf("buffer name = %q", got)
	}
	if got := dev.TextureDesc(tex).Label; got != "albedo" {
		t.Errorf("texture label = %q", got)
	}
}

func TestStaleHandlePanics(t *testing.T) {
	dev, _ := newTestDevice(t, null.New())
	b, _ := dev.CreateBuffer(BufferUsageIndex, 64, 0, nil)
	dev.DestroyBuffer(b)

	defer func() {
		if recover() == nil {
			t.Error("use of a destroyed handle did not panic")
		}
	}()
	dev.BufferSize(b)
}

func TestViewCacheIdempotent(t *testing.T) {
	dev, nd := newTestDevice(t, null.New())
	tex, err := dev.CreateTexture(&TextureDescriptor{
		Format: gputypes.TextureFormatRGBA8Unorm, Width: 16, Height: 16, MipLevels: 2,
		Usage: TextureUsageShaderRead | TextureUsageRenderTarget,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	v1, err := dev.ShaderResourceView(tex, gputypes.TextureFormatUndefined, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	v2, _ := dev.ShaderResourceView(tex, gputypes.TextureFormatRGBA8Unorm, 0, 0)
	if v1 != v2 || v1.Native() != v2.Native() {
		t.Error("second SRV lookup created a new view")
	}
	if nv := nd.Descriptor(v1.Descriptor()); nv == nil || nv.Resource() != dev.NativeTexture(tex) {
		t.Error("SRV descriptor does not reference the texture")
	}

	mip1, _ := dev.ShaderResourceView(tex, gputypes.TextureFormatUndefined, 1, 0)
	if mip1 == v1 {
		t.Error("mip 1 shares the mip 0 view")
	}
	rtv, _ := dev.RenderTargetView(tex, gputypes.TextureFormatUndefined, 0, 0)
	if rtv == v1 || rtv.Kind() != ViewRenderTarget {
		t.Errorf("RTV = %+v", rtv)
	}
	if mip1.DescriptorIndex() == v1.DescriptorIndex() {
		t.Error("two views share a descriptor slot")
	}
}

func TestBufferView(t *testing.T) {
	dev, _ := newTestDevice(t, null.New())
	b, _ := dev.CreateBuffer(BufferUsageStorage, 256, 16, nil)
	srv, err := dev.BufferView(b, ViewShaderResource)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := dev.BufferView(b, ViewShaderResource)
	uav, _ := dev.BufferView(b, ViewUnorderedAccess)
	if srv != again || srv == uav {
		t.Error("buffer views are not memoized per kind")
	}

	defer func() {
		if recover() == nil {
			t.Error("render target view of a buffer did not panic")
		}
	}()
	_, _ = dev.BufferView(b, ViewRenderTarget)
}

func TestViewPreconditions(t *testing.T) {
	dev, _ := newTestDevice(t, null.New())
	color, _ := dev.CreateTexture(&TextureDescriptor{Format: gputypes.TextureFormatRGBA8Unorm, Width: 4, Height: 4}, nil)
	depth, _ := dev.CreateTexture(&TextureDescriptor{Format: gputypes.TextureFormatDepth24PlusStencil8, Width: 4, Height: 4}, nil)

	tests := []struct {
		name string
		fn   func()
	}{
		{"dsv of color", func() { _, _ = dev.DepthStencilView(color, gputypes.TextureFormatUndefined, 0, 0) }},
		{"rtv of depth", func() { _, _ = dev.RenderTargetView(depth, gputypes.TextureFormatUndefined, 0, 0) }},
		{"mip out of range", func() { _, _ = dev.ShaderResourceView(color, gputypes.TextureFormatUndefined, 1, 0) }},
		{"slice out of range", func() { _, _ = dev.ShaderResourceView(color, gputypes.TextureFormatUndefined, 0, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("did not panic")
				}
			}()
			tt.fn()
		})
	}
}

func TestViewCreationFailure(t *testing.T) {
	dev, nd := newTestDevice(t, null.New())
	tex, _ := dev.CreateTexture(&TextureDescriptor{Format: gputypes.TextureFormatRGBA8Unorm, Width: 4, Height: 4}, nil)
	live := dev.heaps[driver.HeapResource].Stats().PersistentLive

	nd.Fail(null.OpCreateView, driver.ErrOutOfMemory)
	if _, err := dev.ShaderResourceView(tex, gputypes.TextureFormatUndefined, 0, 0); !errors.Is(err, driver.ErrOutOfMemory) {
		t.Fatalf("error = %v, want ErrOutOfMemory", err)
	}
	if got := dev.heaps[driver.HeapResource].Stats().PersistentLive; got != live {
		t.Errorf("descriptor slot leaked: %d live, want %d", got, live)
	}
	// A failed view is not cached.
	if _, err := dev.ShaderResourceView(tex, gputypes.TextureFormatUndefined, 0, 0); err != nil {
		t.Errorf("retry: %v", err)
	}
}

func TestDeferredDestroy(t *testing.T) {
	dev, nd := newTestDevice(t, null.New(null.WithFenceMode(null.Manual)), WithRenderLatency(2))

	if !dev.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	tex, _ := dev.CreateTexture(&TextureDescriptor{Format: gputypes.TextureFormatRGBA8Unorm, Width: 4, Height: 4}, nil)
	if _, err := dev.ShaderResourceView(tex, gputypes.TextureFormatUndefined, 0, 0); err != nil {
		t.Fatal(err)
	}
	nt := dev.NativeTexture(tex).(*null.Texture)
	dev.Destroy(tex)
	if err := dev.EndFrame(); err != nil {
		t.Fatal(err)
	}

	mustFrame(t, dev)
	if nt.Released() {
		t.Fatal("texture released while its frame may still run")
	}
	if dev.Stats().DeferredPending != 1 {
		t.Errorf("DeferredPending = %d, want 1", dev.Stats().DeferredPending)
	}

	nd.Advance()
	mustFrame(t, dev)
	if !nt.Released() {
		t.Error("texture not released after its frame retired")
	}
	if s := dev.Stats(); s.DeferredFlushed != 1 || s.DeferredPending != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestBackPressure(t *testing.T) {
	dev, nd := newTestDevice(t, null.New(null.WithFenceMode(null.Manual)), WithRenderLatency(2))

	mustFrame(t, dev)
	mustFrame(t, dev)

	began := make(chan bool, 1)
	go func() { began <- dev.BeginFrame() }()

	select {
	case v := <-nd.Waits():
		if v != 1 {
			t.Errorf("third BeginFrame waits for %d, want 1", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("third BeginFrame did not wait for the GPU")
	}
	select {
	case <-began:
		t.Fatal("BeginFrame returned before the GPU advanced")
	default:
	}

	nd.Step()
	select {
	case ok := <-began:
		if !ok {
			t.Fatal("BeginFrame() = false")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("BeginFrame still blocked after the GPU advanced")
	}
	s := dev.Stats()
	if s.BackPressureWaits != 1 {
		t.Errorf("BackPressureWaits = %d, want 1", s.BackPressureWaits)
	}
	if s.CPUFrame-s.GPUFrame > 2 {
		t.Errorf("cpu %d gpu %d exceeds latency", s.CPUFrame, s.GPUFrame)
	}
	if err := dev.EndFrame(); err != nil {
		t.Fatal(err)
	}
}

func TestAllocatorReuse(t *testing.T) {
	dev, _ := newTestDevice(t, null.New(), WithRenderLatency(3))
	for range 10 {
		mustFrame(t, dev)
	}
	s := dev.Stats()
	if s.CPUFrame != 10 || s.GPUFrame != 10 {
		t.Errorf("frames cpu %d gpu %d, want 10 and 10", s.CPUFrame, s.GPUFrame)
	}
	if s.AllocatorsCreated != 1 {
		t.Errorf("AllocatorsCreated = %d, want 1 with a GPU that keeps up", s.AllocatorsCreated)
	}
}

func TestDeviceLost(t *testing.T) {
	var lost []error
	logger, buf := bufferLogger()
	dev, nd := newTestDevice(t, null.New(),
		WithLogger(logger),
		WithDeviceLostHandler(func(err error) { lost = append(lost, err) }))

	if !dev.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	nd.Lose()
	err := dev.EndFrame()
	if !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("EndFrame() error = %v, want ErrDeviceLost", err)
	}
	if dev.State() != StateLost {
		t.Errorf("State() = %v, want lost", dev.State())
	}
	if len(lost) != 1 {
		t.Errorf("lost handler called %d times, want 1", len(lost))
	}
	if !strings.Contains(buf.String(), "device lost") {
		t.Errorf("device loss not logged: %s", buf.String())
	}

	if dev.BeginFrame() {
		t.Error("BeginFrame() = true on a lost device")
	}
	if err := dev.EndFrame(); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("EndFrame() after loss = %v", err)
	}
	if _, err := dev.CreateBuffer(BufferUsageVertex, 4, 0, nil); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("CreateBuffer() after loss = %v", err)
	}
	if len(lost) != 1 {
		t.Errorf("lost handler called %d times, want 1", len(lost))
	}

	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
	if !nd.Destroyed() || nd.Live() != 0 {
		t.Errorf("after Close: destroyed=%v live=%d", nd.Destroyed(), nd.Live())
	}
}

func TestPresentLossMarksDeviceLost(t *testing.T) {
	dev, nd := newTestDevice(t, null.New(), WithWindow(null.NewWindow(64, 64)))

	if !dev.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	nd.Fail(null.OpPresent, driver.ErrDeviceLost)
	if err := dev.EndFrame(); !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("EndFrame() error = %v", err)
	}
	if dev.State() != StateLost {
		t.Errorf("State() = %v, want lost", dev.State())
	}
}

func TestSubmitFailureRecovers(t *testing.T) {
	dev, nd := newTestDevice(t, null.New())
	if !dev.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	nd.Fail(null.OpSubmit, driver.ErrOutOfMemory)
	if err := dev.EndFrame(); !errors.Is(err, driver.ErrOutOfMemory) {
		t.Fatalf("EndFrame() error = %v", err)
	}
	if dev.State() != StateReady {
		t.Fatalf("State() = %v, want ready", dev.State())
	}
	mustFrame(t, dev)
	if dev.Stats().CPUFrame != 1 {
		t.Errorf("CPUFrame = %d, want 1", dev.Stats().CPUFrame)
	}
}

func TestCommandContext(t *testing.T) {
	dev, nd := newTestDevice(t, null.New())
	if dev.CommandList() != nil {
		t.Error("CommandList() outside a frame is not nil")
	}
	tex, _ := dev.CreateTexture(&TextureDescriptor{
		Format: gputypes.TextureFormatRGBA8Unorm, Width: 4, Height: 4, Usage: TextureUsageRenderTarget,
	}, nil)
	depth, _ := dev.CreateTexture(&TextureDescriptor{
		Format: gputypes.TextureFormatDepth24PlusStencil8, Width: 4, Height: 4, Usage: TextureUsageDepthStencil,
	}, nil)

	if !dev.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	ctx := dev.CommandList()
	red := Color{R: 1, A: 1}
	if err := ctx.ClearRenderTarget(tex, red); err != nil {
		t.Fatal(err)
	}
	if err := ctx.ClearDepthStencil(depth, 1, 0); err != nil {
		t.Fatal(err)
	}
	list := ctx.Native().(*null.CommandList)
	clears := list.Clears()
	if len(clears) != 2 || clears[0].Color != red || clears[1].Depth != 1 {
		t.Errorf("Clears() = %+v", clears)
	}
	if list.Heap() == nil {
		t.Error("no descriptor heap bound")
	}
	if err := dev.EndFrame(); err != nil {
		t.Fatal(err)
	}
	if nd.NullQueue(QueueGraphics).Submitted() != 1 {
		t.Errorf("Submitted() = %d, want 1", nd.NullQueue(QueueGraphics).Submitted())
	}

	defer func() {
		if recover() == nil {
			t.Error("CommandContext used after EndFrame did not panic")
		}
	}()
	_ = ctx.ClearRenderTarget(tex, red)
}

func TestTransientDescriptors(t *testing.T) {
	counts := DefaultDescriptorCounts()
	counts.Transient = 8
	dev, _ := newTestDevice(t, null.New(), WithRenderLatency(2), WithDescriptorCounts(counts))

	var first TransientDescriptors
	for i := range 2 {
		if !dev.BeginFrame() {
			t.Fatal("BeginFrame() = false")
		}
		td := dev.CommandList().AllocateTransientDescriptors(4)
		if td.Count != 4 || td.GPU == 0 {
			t.Errorf("frame %d: %+v", i, td)
		}
		cpu1, _ := td.At(1)
		if cpu1 != td.CPU+driver.CPUDescriptor(td.Increment) {
			t.Errorf("At(1) = %#x", cpu1)
		}
		if i == 0 {
			first = td
		} else if td.CPU == first.CPU {
			t.Error("consecutive frames share a transient range")
		}
		if err := dev.EndFrame(); err != nil {
			t.Fatal(err)
		}
	}

	if !dev.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	ctx := dev.CommandList()
	ctx.AllocateTransientDescriptors(8)
	defer func() {
		if recover() == nil {
			t.Error("transient overflow did not panic")
		}
		_ = dev.EndFrame()
	}()
	ctx.AllocateTransientDescriptors(1)
}

func TestFrameMisusePanics(t *testing.T) {
	dev, _ := newTestDevice(t, null.New())
	t.Run("EndFrame without BeginFrame", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("did not panic")
			}
		}()
		_ = dev.EndFrame()
	})
	t.Run("BeginFrame twice", func(t *testing.T) {
		if !dev.BeginFrame() {
			t.Fatal("BeginFrame() = false")
		}
		defer func() {
			if recover() == nil {
				t.Error("did not panic")
			}
			_ = dev.EndFrame()
		}()
		dev.BeginFrame()
	})
}

func TestQueueFences(t *testing.T) {
	dev, nd := newTestDevice(t, null.New())

	v, err := dev.Signal(QueueCopy)
	if err != nil {
		t.Fatal(err)
	}
	if QueueKind(v>>56) != QueueCopy {
		t.Errorf("fence value %#x does not name the copy queue", v)
	}
	if err := dev.WaitForFence(v); err != nil {
		t.Fatal(err)
	}
	if !dev.IsFenceComplete(v) {
		t.Error("IsFenceComplete() = false after WaitForFence")
	}
	if err := dev.QueueWait(QueueGraphics, v); err != nil {
		t.Fatal(err)
	}
	if nd.NullQueue(QueueGraphics).GPUWaits() != 1 {
		t.Error("graphics queue did not wait on the copy fence")
	}
}

func TestWaitForGPUFlushes(t *testing.T) {
	dev, nd := newTestDevice(t, null.New(null.WithFenceMode(null.Manual)))
	mustFrame(t, dev)
	b, _ := dev.CreateBuffer(BufferUsageUniform, 256, 0, nil)
	nb := dev.NativeBuffer(b).(*null.Buffer)
	dev.Destroy(b)
	mustFrame(t, dev)

	done := make(chan struct{})
	go func() {
		dev.WaitForGPU()
		close(done)
	}()
	for {
		select {
		case <-nd.Waits():
			nd.Advance()
			continue
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("WaitForGPU did not return")
		}
		break
	}
	if !nb.Released() {
		t.Error("WaitForGPU did not run deferred releases")
	}
}

func TestSwapChainFrames(t *testing.T) {
	dev, _ := newTestDevice(t, null.New(),
		WithWindow(null.NewWindow(640, 480)),
		WithSwapChain(SwapChainOptions{DepthFormat: gputypes.TextureFormatDepth24PlusStencil8}))

	sc := dev.SwapChain()
	if sc == nil {
		t.Fatal("SwapChain() = nil")
	}
	if sc.Width() != 640 || sc.Height() != 480 {
		t.Errorf("size %dx%d, want 640x480", sc.Width(), sc.Height())
	}
	if sc.BufferCount() != DefaultRenderLatency+1 {
		t.Errorf("BufferCount() = %d, want %d", sc.BufferCount(), DefaultRenderLatency+1)
	}
	if sc.Format() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("Format() = %v", sc.Format())
	}
	if !sc.DepthStencil().IsValid() {
		t.Fatal("no depth buffer")
	}

	for i := range 5 {
		if !dev.BeginFrame() {
			t.Fatal("BeginFrame() = false")
		}
		ctx := dev.CommandList()
		if err := ctx.ClearRenderTarget(sc.CurrentBackBuffer(), Color{B: 1, A: 1}); err != nil {
			t.Fatal(err)
		}
		if err := ctx.ClearDepthStencil(sc.DepthStencil(), 1, 0); err != nil {
			t.Fatal(err)
		}
		if err := dev.EndFrame(); err != nil {
			t.Fatal(err)
		}
		if want := uint32(i+1) % uint32(sc.BufferCount()); sc.CurrentIndex() != want {
			t.Errorf("frame %d: CurrentIndex() = %d, want %d", i, sc.CurrentIndex(), want)
		}
	}
	nsc := sc.Native().(*null.SwapChain)
	if nsc.Presents() != 5 {
		t.Errorf("Presents() = %d, want 5", nsc.Presents())
	}
	if sync, flags := nsc.LastPresent(); sync != 1 || flags != 0 {
		t.Errorf("LastPresent() = (%d, %v), want FIFO", sync, flags)
	}

	defer func() {
		if recover() == nil {
			t.Error("destroying a back buffer did not panic")
		}
	}()
	dev.DestroyTexture(sc.BackBuffer(0))
}

func TestSwapChainImmediateTearing(t *testing.T) {
	dev, _ := newTestDevice(t, null.New(null.WithTearing(true)),
		WithWindow(null.NewWindow(64, 64)),
		WithSwapChain(SwapChainOptions{PresentMode: PresentModeImmediate}))
	mustFrame(t, dev)
	sync, flags := dev.SwapChain().Native().(*null.SwapChain).LastPresent()
	if sync != 0 || flags != driver.PresentAllowTearing {
		t.Errorf("LastPresent() = (%d, %v), want (0, allow tearing)", sync, flags)
	}
}

func TestSwapChainImmediateWithoutTearing(t *testing.T) {
	dev, _ := newTestDevice(t, null.New(),
		WithWindow(null.NewWindow(64, 64)),
		WithSwapChain(SwapChainOptions{PresentMode: PresentModeImmediate}))
	mustFrame(t, dev)
	sync, flags := dev.SwapChain().Native().(*null.SwapChain).LastPresent()
	if sync != 0 || flags != 0 {
		t.Errorf("LastPresent() = (%d, %v), want (0, 0)", sync, flags)
	}
}

func TestResize(t *testing.T) {
	dev, _ := newTestDevice(t, null.New(),
		WithWindow(null.NewWindow(320, 240)),
		WithSwapChain(SwapChainOptions{DepthFormat: gputypes.TextureFormatDepth24PlusStencil8}))
	sc := dev.SwapChain()
	nsc := sc.Native().(*null.SwapChain)
	mustFrame(t, dev)

	if err := dev.Resize(320, 240); err != nil {
		t.Fatal(err)
	}
	if err := dev.Resize(0, 240); err != nil {
		t.Fatal(err)
	}
	if nsc.Resizes() != 0 {
		t.Errorf("no-op resizes reached the driver %d times", nsc.Resizes())
	}

	old, oldDepth := sc.BackBuffer(0), sc.DepthStencil()
	if err := dev.Resize(800, 600); err != nil {
		t.Fatal(err)
	}
	if nsc.Resizes() != 1 {
		t.Errorf("Resizes() = %d, want 1", nsc.Resizes())
	}
	if dev.IsAlive(old) || dev.IsAlive(oldDepth) {
		t.Error("buffers from before the resize are still alive")
	}
	if sc.Width() != 800 || sc.Height() != 600 {
		t.Errorf("size %dx%d, want 800x600", sc.Width(), sc.Height())
	}
	if d := dev.TextureDesc(sc.BackBuffer(0)); d.Width != 800 {
		t.Errorf("back buffer width %d", d.Width)
	}
	if d := dev.TextureDesc(sc.DepthStencil()); d.Width != 800 || d.Height != 600 {
		t.Errorf("depth buffer %dx%d", d.Width, d.Height)
	}
	mustFrame(t, dev)
}

func TestResizeFailureKeepsBackBuffers(t *testing.T) {
	dev, nd := newTestDevice(t, null.New(),
		WithWindow(null.NewWindow(320, 240)),
		WithSwapChain(SwapChainOptions{DepthFormat: gputypes.TextureFormatDepth24PlusStencil8}))
	sc := dev.SwapChain()
	count := sc.BufferCount()
	mustFrame(t, dev)

	nd.Fail(null.OpResize, errors.New("transient"))
	err := dev.Resize(640, 480)
	if err == nil || errors.Is(err, driver.ErrDeviceLost) {
		t.Fatalf("Resize() error = %v, want a non-loss error", err)
	}
	if dev.State() != StateReady {
		t.Fatalf("State() = %v, want ready", dev.State())
	}
	if sc.BufferCount() != count {
		t.Errorf("BufferCount() = %d, want %d", sc.BufferCount(), count)
	}
	if sc.Width() != 320 || sc.Height() != 240 {
		t.Errorf("size %dx%d, want 320x240", sc.Width(), sc.Height())
	}
	if !dev.IsAlive(sc.CurrentBackBuffer()) || !dev.IsAlive(sc.DepthStencil()) {
		t.Fatal("swap chain textures not registered after a failed resize")
	}
	if !dev.BeginFrame() {
		t.Fatal("BeginFrame() = false")
	}
	if err := dev.CommandList().ClearRenderTarget(sc.CurrentBackBuffer(), Color{A: 1}); err != nil {
		t.Fatal(err)
	}
	if err := dev.EndFrame(); err != nil {
		t.Fatal(err)
	}

	if err := dev.Resize(640, 480); err != nil {
		t.Fatalf("retried Resize() error = %v", err)
	}
	if sc.Width() != 640 || sc.BufferCount() != count {
		t.Errorf("after retry: width %d, %d buffers", sc.Width(), sc.BufferCount())
	}
}

func TestResizeLossLeavesNoBackBuffer(t *testing.T) {
	dev, nd := newTestDevice(t, null.New(), WithWindow(null.NewWindow(320, 240)))
	sc := dev.SwapChain()

	nd.Fail(null.OpResize, driver.ErrDeviceLost)
	if err := dev.Resize(640, 480); !errors.Is(err, driver.ErrDeviceLost) {
		t.Fatalf("Resize() error = %v, want ErrDeviceLost", err)
	}
	if dev.State() != StateLost {
		t.Errorf("State() = %v, want lost", dev.State())
	}
	if sc.CurrentBackBuffer() != InvalidTexture {
		t.Error("CurrentBackBuffer() is valid after a lost resize")
	}
}

func TestResizeHeadless(t *testing.T) {
	dev, _ := newTestDevice(t, null.New())
	if err := dev.Resize(10, 10); !errors.Is(err, ErrNoSwapChain) {
		t.Errorf("Resize() error = %v, want ErrNoSwapChain", err)
	}
}

func TestClosedWindowSkipsFrames(t *testing.T) {
	win := null.NewWindow(64, 64)
	dev, _ := newTestDevice(t, null.New(), WithWindow(win))
	mustFrame(t, dev)
	win.Close()
	if dev.BeginFrame() {
		t.Error("BeginFrame() = true for a closed window")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	logger, buf := bufferLogger()
	drv := null.New()
	dev, err := NewDevice(WithDriver(drv), WithLogger(logger),
		WithWindow(null.NewWindow(64, 64)),
		WithSwapChain(SwapChainOptions{DepthFormat: gputypes.TextureFormatDepth24PlusStencil8}))
	if err != nil {
		t.Fatal(err)
	}
	nd := drv.Device()

	b, _ := dev.CreateBuffer(BufferUsageVertex, 64, 0, nil)
	if _, err := dev.BufferView(b, ViewShaderResource); err != nil {
		t.Fatal(err)
	}
	tex, _ := dev.CreateTexture(&TextureDescriptor{Label: "kept", Format: gputypes.TextureFormatRGBA8Unorm, Width: 4, Height: 4}, nil)
	gone, _ := dev.CreateTexture(&TextureDescriptor{Format: gputypes.TextureFormatRGBA8Unorm, Width: 4, Height: 4}, nil)
	dev.Destroy(gone)
	for range 3 {
		mustFrame(t, dev)
	}

	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}
	if nd.Live() != 0 {
		t.Errorf("%d native objects alive after Close", nd.Live())
	}
	if !nd.Destroyed() {
		t.Error("native device not destroyed")
	}
	out := buf.String()
	if !strings.Contains(out, "buffer leaked") || !strings.Contains(out, "label=kept") {
		t.Errorf("leaks not logged: %s", out)
	}
	if strings.Contains(out, "swapchain depth") {
		t.Errorf("swap chain buffers reported as leaks: %s", out)
	}

	if dev.State() != StateClosed {
		t.Errorf("State() = %v, want closed", dev.State())
	}
	if err := dev.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if dev.BeginFrame() {
		t.Error("BeginFrame() = true after Close")
	}
	if _, err := dev.CreateBuffer(BufferUsageVertex, 4, 0, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateBuffer() after Close = %v", err)
	}
	_ = tex
}

func TestConcurrentResourceCreation(t *testing.T) {
	dev, _ := newTestDevice(t, null.New(), WithMaxBuffers(64))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h, err := dev.CreateBuffer(BufferUsageUniform, 64, 0, nil)
				if err != nil {
					errs <- err
					return
				}
				if _, err := dev.BufferView(h, ViewShaderResource); err != nil {
					errs <- err
					return
				}
				dev.Destroy(h)
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// Frames keep retiring deferred releases while the workers destroy.
	frames := 0
	for running := true; running || frames < 20; frames++ {
		select {
		case <-done:
			running = false
		default:
		}
		mustFrame(t, dev)
	}

	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if dev.Stats().LiveBuffers != 0 {
		t.Errorf("LiveBuffers = %d, want 0", dev.Stats().LiveBuffers)
	}
	dev.WaitForGPU()
	if st := dev.Stats(); st.DeferredPending != 0 || st.DeferredFlushed != 400 {
		t.Errorf("deferred pending %d, flushed %d, want 0 and 400", st.DeferredPending, st.DeferredFlushed)
	}
}

func TestStatsAfterClose(t *testing.T) {
	dev, nd := newTestDevice(t, null.New())
	b, _ := dev.CreateBuffer(BufferUsageVertex, 16, 0, nil)
	mustFrame(t, dev)
	dev.Destroy(b)
	mustFrame(t, dev)
	v, err := dev.Signal(QueueCompute)
	if err != nil {
		t.Fatal(err)
	}
	before := dev.Stats()
	closeDevice(t, dev, nd)

	st := dev.Stats()
	if st.CPUFrame != 2 || st.GPUFrame != 2 {
		t.Errorf("frames cpu %d gpu %d after Close, want 2 and 2", st.CPUFrame, st.GPUFrame)
	}
	if st.LiveBuffers != 0 || st.LiveTextures != 0 || st.DeferredPending != 0 {
		t.Errorf("Stats() after Close = %+v", st)
	}
	if st.AllocatorsCreated != before.AllocatorsCreated {
		t.Errorf("AllocatorsCreated = %d, want %d", st.AllocatorsCreated, before.AllocatorsCreated)
	}
	if st.DeferredFlushed != before.DeferredFlushed+uint64(before.DeferredPending) {
		t.Errorf("DeferredFlushed = %d, want %d", st.DeferredFlushed, before.DeferredFlushed+uint64(before.DeferredPending))
	}
	if !dev.IsFenceComplete(v) || !dev.IsFenceComplete(v+100) {
		t.Error("IsFenceComplete() = false after Close")
	}
}

func TestDeviceStateString(t *testing.T) {
	for s, want := range map[DeviceState]string{
		StateReady:     "ready",
		StateLost:      "lost",
		StateClosed:    "closed",
		DeviceState(9): "DeviceState(9)",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int32(s), s.String(), want)
		}
	}
}
