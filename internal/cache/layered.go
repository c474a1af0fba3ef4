package cache

import (
	"errors"
	"sync/atomic"
	"time"
)

// LayeredCache reads through an in-memory layer to a disk layer.
// Disk hits are promoted so repeated checks of one document stay in process.
type LayeredCache struct {
	memory   *MemoryCache
	disk     *DiskCache
	diskHits atomic.Int64
}

// NewLayeredCache creates a memory layer with memoryTTL over a disk layer in diskDir with diskTTL
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	val, found := c.disk.Get(key)
	if !found {
		return nil, false
	}
	c.diskHits.Add(1)
	_ = c.memory.Set(key, val, 0)
	return val, true
}

// Set writes both layers. A disk failure still leaves the entry in memory.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	_ = c.memory.Set(key, value, ttl)
	return c.disk.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}

// Stats counts a disk hit as a hit; only lookups missing both layers are misses
func (c *LayeredCache) Stats() Stats {
	s := c.memory.Stats()
	disk := c.diskHits.Load()
	s.Hits += disk
	s.Misses -= disk
	return s
}
