package loader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/jep-dashboard/internal/model"
)

// LoadObserver is called after every load that reached the parser or failed,
// but not for cache hits.
type LoadObserver func(path string, tbl *model.Table, err error, elapsed time.Duration)

type cacheEntry struct {
	table     *model.Table
	size      int64
	modTime   time.Time
	signature string
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// Cache memoizes parsed tables by absolute path and invalidates them when the
// file content changes. Tables handed out are shared and must not be mutated.
type Cache struct {
	opts     Options
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	group    singleflight.Group
	hits     atomic.Int64
	misses   atomic.Int64
	observer LoadObserver
}

// NewCache creates an empty cache parsing with opts.
func NewCache(opts Options) *Cache {
	return &Cache{opts: opts, entries: make(map[string]*cacheEntry)}
}

// OnLoad registers fn as the load observer. Call before the cache is shared.
func (c *Cache) OnLoad(fn LoadObserver) {
	c.observer = fn
}

// Get returns the table for path, reparsing only when the file changed.
// Concurrent misses for the same path share one parse.
func (c *Cache) Get(ctx context.Context, path string) (*model.Table, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.drop(abs)
			return nil, c.observe(abs, nil, notFound(abs), 0)
		}
		return nil, c.observe(abs, nil, failed(abs, err), 0)
	}

	if tbl := c.lookupStat(abs, info); tbl != nil {
		c.hits.Add(1)
		return tbl, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The parse is shared by every waiter, so it must outlive any one caller.
	ch := c.group.DoChan(abs, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), abs)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Table), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) lookupStat(abs string, info fs.FileInfo) *model.Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[abs]
	if !ok || e.size != info.Size() || !e.modTime.Equal(info.ModTime()) {
		return nil
	}
	return e.table
}

// refresh reads the file and reuses the cached table when the bytes hash to
// the same signature, which covers touch and copy-in-place.
func (c *Cache) refresh(ctx context.Context, abs string) (*model.Table, error) {
	start := time.Now()

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.drop(abs)
			return nil, c.observe(abs, nil, notFound(abs), time.Since(start))
		}
		return nil, c.observe(abs, nil, failed(abs, err), time.Since(start))
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.drop(abs)
			return nil, c.observe(abs, nil, notFound(abs), time.Since(start))
		}
		return nil, c.observe(abs, nil, failed(abs, err), time.Since(start))
	}

	sig := Signature(data)
	c.mu.Lock()
	if e, ok := c.entries[abs]; ok && e.signature == sig {
		e.size = info.Size()
		e.modTime = info.ModTime()
		tbl := e.table
		c.mu.Unlock()
		c.hits.Add(1)
		return tbl, nil
	}
	c.mu.Unlock()

	c.misses.Add(1)
	tbl, err := Parse(ctx, data, abs, c.opts)
	if err != nil {
		// Cancellation says nothing about the file; keep the entry.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// A broken file must not keep serving the previous table.
		c.drop(abs)
		return nil, c.observe(abs, nil, err, time.Since(start))
	}

	c.mu.Lock()
	c.entries[abs] = &cacheEntry{table: tbl, size: info.Size(), modTime: info.ModTime(), signature: sig}
	c.mu.Unlock()

	zap.L().Debug("loader: parsed source",
		zap.String("path", abs),
		zap.Int("rows", tbl.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	c.observe(abs, tbl, nil, time.Since(start))
	return tbl, nil
}

func (c *Cache) observe(path string, tbl *model.Table, err error, elapsed time.Duration) error {
	if c.observer != nil {
		c.observer(path, tbl, err, elapsed)
	}
	return err
}

func (c *Cache) drop(abs string) {
	c.mu.Lock()
	delete(c.entries, abs)
	c.mu.Unlock()
}

// Invalidate forgets the entry for path so the next Get reparses it.
func (c *Cache) Invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	c.drop(abs)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: n}
}
