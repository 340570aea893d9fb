// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/rhi/driver"
	"github.com/gogpu/rhi/driver/null"
)

func openNull(t *testing.T, mode null.FenceMode) *null.Device {
	t.Helper()
	d, err := null.New(null.WithFenceMode(mode)).Open(nil)
	if err != nil {
		t.Fatal(err)
	}
	return d.(*null.Device)
}

func newQueue(t *testing.T, dev *null.Device, kind driver.QueueKind) *CommandQueue {
	t.Helper()
	q, err := New(dev, kind, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(q.Release)
	return q
}

func TestFenceValuesCarryQueueKind(t *testing.T) {
	dev := openNull(t, null.AutoComplete)
	for k := range driver.QueueKindCount {
		q := newQueue(t, dev, k)
		v, err := q.IncrementFence()
		if err != nil {
			t.Fatal(err)
		}
		if KindOf(v) != k {
			t.Errorf("%s fence value %#x decodes to %s", k, v, KindOf(v))
		}
		if v != uint64(k)<<KindShift+1 {
			t.Errorf("%s first value = %#x, want %#x", k, v, uint64(k)<<KindShift+1)
		}
	}
}

func TestIncrementFenceStrictlyIncreasing(t *testing.T) {
	dev := openNull(t, null.AutoComplete)
	q := newQueue(t, dev, driver.QueueGraphics)

	const workers, per = 4, 50
	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range per {
				v, err := q.IncrementFence()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				if seen[v] {
					t.Errorf("fence value %d signaled twice", v)
				}
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != workers*per {
		t.Errorf("got %d distinct values, want %d", len(seen), workers*per)
	}
}

func TestIsFenceCompleteMonotonic(t *testing.T) {
	dev := openNull(t, null.Manual)
	q := newQueue(t, dev, driver.QueueGraphics)

	var values []uint64
	for range 6 {
		v, _ := q.IncrementFence()
		values = append(values, v)
	}
	for step := range len(values) + 1 {
		for i := range values {
			for j := i + 1; j < len(values); j++ {
				if q.IsFenceComplete(values[j]) && !q.IsFenceComplete(values[i]) {
					t.Fatalf("step %d: %d complete but %d not", step, values[j], values[i])
				}
			}
		}
		if got := q.IsFenceComplete(values[min(step, len(values)-1)]); step < len(values) && got {
			t.Fatalf("step %d: value %d complete before the GPU reached it", step, values[step])
		}
		dev.Step()
	}
	if !q.IsFenceComplete(values[len(values)-1]) {
		t.Error("last value not complete after all steps")
	}
}

func TestCompletedCacheAvoidsRegression(t *testing.T) {
	dev := openNull(t, null.Manual)
	q := newQueue(t, dev, driver.QueueCompute)
	v, _ := q.IncrementFence()
	dev.Advance()

	if !q.IsFenceComplete(v) {
		t.Fatal("value not complete after Advance")
	}
	if q.LastCompleted() != v {
		t.Errorf("LastCompleted() = %#x, want %#x", q.LastCompleted(), v)
	}
	q.observe(v - 1)
	if q.LastCompleted() != v {
		t.Errorf("cache moved backwards to %#x", q.LastCompleted())
	}
}

func TestWaitForFenceBlocks(t *testing.T) {
	dev := openNull(t, null.Manual)
	q := newQueue(t, dev, driver.QueueGraphics)
	v, _ := q.IncrementFence()

	done := make(chan error, 1)
	go func() { done <- q.WaitForFence(v) }()

	select {
	case got := <-dev.Waits():
		if got != v {
			t.Errorf("blocked on %#x, want %#x", got, v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForFence did not reach the native wait")
	}
	dev.Advance()
	if err := <-done; err != nil {
		t.Fatalf("WaitForFence() error = %v", err)
	}
	if !q.IsFenceComplete(v) {
		t.Error("value not complete after wait")
	}
}

func TestWaitForFenceWrongQueuePanics(t *testing.T) {
	dev := openNull(t, null.AutoComplete)
	q := newQueue(t, dev, driver.QueueGraphics)
	defer func() {
		if recover() == nil {
			t.Error("waiting on a copy-queue value did not panic")
		}
	}()
	_ = q.WaitForFence(uint64(driver.QueueCopy)<<KindShift + 1)
}

func TestWaitForIdle(t *testing.T) {
	dev := openNull(t, null.AutoComplete)
	q := newQueue(t, dev, driver.QueueGraphics)
	if err := q.WaitForIdle(); err != nil {
		t.Fatalf("WaitForIdle() error = %v", err)
	}
	if got, want := q.LastCompleted(), q.NextFenceValue()-1; got != want {
		t.Errorf("LastCompleted() = %#x, want %#x", got, want)
	}
}

func TestDeviceLostSurfacesFromWait(t *testing.T) {
	dev := openNull(t, null.Manual)
	q := newQueue(t, dev, driver.QueueGraphics)
	v, _ := q.IncrementFence()
	dev.Lose()
	if err := q.WaitForFence(v); !errors.Is(err, driver.ErrDeviceLost) {
		t.Errorf("WaitForFence() error = %v, want ErrDeviceLost", err)
	}
	if _, err := q.IncrementFence(); !errors.Is(err, driver.ErrDeviceLost) {
		t.Errorf("IncrementFence() error = %v, want ErrDeviceLost", err)
	}
}

func TestWaitOnGPU(t *testing.T) {
	dev := openNull(t, null.AutoComplete)
	gfx := newQueue(t, dev, driver.QueueGraphics)
	cpy := newQueue(t, dev, driver.QueueCopy)
	v, _ := cpy.IncrementFence()
	if err := gfx.WaitOnGPU(cpy, v); err != nil {
		t.Fatalf("WaitOnGPU() error = %v", err)
	}
	if dev.NullQueue(driver.QueueGraphics).GPUWaits() != 1 {
		t.Error("graphics queue did not record the GPU wait")
	}
}
