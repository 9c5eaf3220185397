package cache

import (
	"errors"
	"time"
)

// LayeredCache reads through its layers in order and writes to all of them.
// A hit in a lower layer is copied into the layers above it.
type LayeredCache struct {
	layers []Cache
}

// NewLayeredCache stacks layers, fastest first
func NewLayeredCache(layers ...Cache) *LayeredCache {
	return &LayeredCache{layers: layers}
}

// NewMemoryDiskCache is the usual memory-over-disk stack
func NewMemoryDiskCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewLayeredCache(
		NewMemoryCache(memoryTTL, 10*time.Minute),
		NewDiskCache(diskDir, diskTTL),
	)
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	for i, l := range c.layers {
		val, found := l.Get(key)
		if !found {
			continue
		}
		for _, upper := range c.layers[:i] {
			_ = upper.Set(key, val, 0)
		}
		return val, true
	}
	return nil, false
}

func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, l := range c.layers {
		if err := l.Set(key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *LayeredCache) Delete(key string) error {
	var errs []error
	for _, l := range c.layers {
		if err := l.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *LayeredCache) Clear() error {
	var errs []error
	for _, l := range c.layers {
		if err := l.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
