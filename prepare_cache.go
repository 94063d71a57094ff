package mariadb

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PrepareCache maps SQL text to prepared statements on one connection. It
// owns one reference on every cached handle and releases it on eviction.
type PrepareCache struct {
	logger *zap.Logger
	lru    *simplelru.LRU[string, *PreparedHandle]
	mutex  sync.Mutex
}

func NewPrepareCache(size int, logger *zap.Logger) (*PrepareCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &PrepareCache{logger: logger}

	lru, err := simplelru.NewLRU[string, *PreparedHandle](size, c.evicted)

	if err != nil {
		return nil, errors.Wrap(err, "mariadb: prepare cache")
	}

	c.lru = lru

	return c, nil
}

func (c *PrepareCache) evicted(sql string, handle *PreparedHandle) {
	c.logger.Debug("prepared statement evicted",
		zap.String("sql", sql),
		zap.Uint32("statement_id", handle.StatementID),
		zap.Int("use_count", handle.UseCount()),
	)

	handle.Release()
}

// Get returns the cached handle for sql without taking a reference.
func (c *PrepareCache) Get(sql string) *PreparedHandle {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	handle, ok := c.lru.Get(sql)

	if !ok {
		return nil
	}

	return handle
}

// acquire returns the cached handle for sql with a reference taken for the
// caller, or nil.
func (c *PrepareCache) acquire(sql string) *PreparedHandle {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	handle, ok := c.lru.Get(sql)

	if !ok || !handle.Acquire() {
		return nil
	}

	return handle
}

// Put caches handle under sql, taking over the caller's reference, and
// returns the canonical handle. When sql is already cached the existing
// handle wins and the caller's handle is released.
func (c *PrepareCache) Put(sql string, handle *PreparedHandle) *PreparedHandle {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, ok := c.lru.Get(sql); ok {
		if existing != handle {
			handle.Release()
		}

		return existing
	}

	c.lru.Add(sql, handle)

	return handle
}

// Evict removes sql and releases the cache's reference on its handle.
func (c *PrepareCache) Evict(sql string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.lru.Remove(sql)
}

func (c *PrepareCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.lru.Len()
}

// Purge evicts every handle.
func (c *PrepareCache) Purge() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.lru.Purge()
}
