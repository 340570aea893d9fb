// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides the memoizing cache behind per-resource views.
//
// A resource creates each view at most once per key and keeps it until
// the resource itself is destroyed:
//
//	views := cache.New[ViewKey, driver.View]()
//	v, err := views.GetOrCreate(key, func() (driver.View, error) {
//	    return dev.CreateView(tex, desc, dst)
//	})
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
