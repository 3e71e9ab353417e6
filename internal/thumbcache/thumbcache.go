// Package thumbcache caches derived artifacts (thumbnails) keyed by the
// primary path of the record they were rendered from.
package thumbcache

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/debug"
	"github.com/standardbeagle/assetindex/pkg/pathutil"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// LoadFunc produces the artifact for a primary path on a cache miss.
type LoadFunc func(ctx context.Context, primaryPath string) ([]byte, error)

// Cache is a TTL cache of thumbnail bytes. Safe for concurrent use.
type Cache struct {
	cache *gocache.Cache
	load  LoadFunc

	invalidations atomic.Int64
}

// New creates a cache. A cleanupInterval of 0 disables the background janitor.
// load may be nil, in which case Load only serves cached entries.
func New(defaultExpiration, cleanupInterval time.Duration, load LoadFunc) *Cache {
	return &Cache{
		cache: gocache.New(defaultExpiration, cleanupInterval),
		load:  load,
	}
}

// DiskLoader reads "<primaryPath>.thmb.png" under root.
func DiskLoader(root string) LoadFunc {
	return func(_ context.Context, primaryPath string) ([]byte, error) {
		return os.ReadFile(pathutil.ToAbsolute(primaryPath+asset.ThumbnailSuffix, root))
	}
}

func key(primaryPath string) string {
	return pathutil.Normalize(primaryPath)
}

// Get returns the cached thumbnail of primaryPath.
func (c *Cache) Get(primaryPath string) ([]byte, bool) {
	v, found := c.cache.Get(key(primaryPath))
	if !found {
		return nil, false
	}
	data, ok := v.([]byte)
	return data, ok
}

// Set stores a thumbnail with the default expiration.
func (c *Cache) Set(primaryPath string, data []byte) {
	c.cache.SetDefault(key(primaryPath), data)
}

// Load returns the cached thumbnail, reading it through the loader on a miss.
func (c *Cache) Load(ctx context.Context, primaryPath string) ([]byte, error) {
	if data, ok := c.Get(primaryPath); ok {
		return data, nil
	}
	if c.load == nil {
		return nil, os.ErrNotExist
	}
	data, err := c.load(ctx, primaryPath)
	if err != nil {
		return nil, err
	}
	c.Set(primaryPath, data)
	return data, nil
}

// Invalidate drops the artifact of primaryPath.
func (c *Cache) Invalidate(primaryPath string) {
	k := key(primaryPath)
	if _, found := c.cache.Get(k); found {
		debug.LogThumb("invalidated %s\n", primaryPath)
	}
	c.cache.Delete(k)
	c.invalidations.Add(1)
}

// Invalidations counts Invalidate calls.
func (c *Cache) Invalidations() int64 {
	return c.invalidations.Load()
}

// Len returns the number of cached entries, expired ones included until cleanup.
func (c *Cache) Len() int {
	return c.cache.ItemCount()
}

// Flush empties the cache.
func (c *Cache) Flush() {
	c.cache.Flush()
}
