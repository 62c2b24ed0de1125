/*
Package cache keeps fetched scraping results in memory.

A task in a terminal state never changes again, so its result can be served
from cache until the entry expires or is explicitly refreshed.
*/
package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/scrape-monitor/types"
	"github.com/sirupsen/logrus"
)

// CacheItem represents a cached result with expiration
type CacheItem struct {
	Data      *types.Result `json:"data"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// IsExpired checks if the cache item has expired
func (c *CacheItem) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Cache interface defines caching operations
type Cache interface {
	Get(key string) (*types.Result, bool)
	Set(key string, result *types.Result, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// InMemoryCache implements an in-memory cache with TTL support
type InMemoryCache struct {
	items map[string]*CacheItem
	mutex sync.RWMutex
	ttl   time.Duration
	quit  chan struct{}
	once  sync.Once
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache(defaultTTL time.Duration) *InMemoryCache {
	cache := &InMemoryCache{
		items: make(map[string]*CacheItem),
		ttl:   defaultTTL,
		quit:  make(chan struct{}),
	}

	go cache.startCleanup(5 * time.Minute)

	return cache
}

// Get retrieves a result from cache
func (c *InMemoryCache) Get(key string) (*types.Result, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.items[key]
	if !exists || item.IsExpired() {
		return nil, false
	}

	return item.Data, true
}

// Set stores a result in cache; a zero ttl uses the default
func (c *InMemoryCache) Set(key string, result *types.Result, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheItem{
		Data:      result,
		ExpiresAt: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes an item from cache
func (c *InMemoryCache) Delete(key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
	return nil
}

// Clear removes all items from cache
func (c *InMemoryCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*CacheItem)
	return nil
}

// Len returns the number of entries, expired ones included
func (c *InMemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// Stop ends the background cleanup
func (c *InMemoryCache) Stop() {
	c.once.Do(func() { close(c.quit) })
}

func (c *InMemoryCache) startCleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.quit:
			return
		}
	}
}

func (c *InMemoryCache) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, item := range c.items {
		if item.IsExpired() {
			delete(c.items, key)
		}
	}
}

// ResultCacheManager caches results by task id
type ResultCacheManager struct {
	cache  Cache
	logger *logrus.Logger
	ttl    time.Duration
}

// NewResultCacheManager creates a new result cache manager
func NewResultCacheManager(cache Cache, logger *logrus.Logger, ttl time.Duration) *ResultCacheManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ResultCacheManager{
		cache:  cache,
		logger: logger,
		ttl:    ttl,
	}
}

func resultKey(taskID int64) string {
	return "result:" + strconv.FormatInt(taskID, 10)
}

// GetResult retrieves the cached result of a task
func (cm *ResultCacheManager) GetResult(taskID int64) (*types.Result, bool) {
	result, found := cm.cache.Get(resultKey(taskID))

	if found {
		cm.logger.WithField("task_id", taskID).Debug("Cache hit for task result")
	} else {
		cm.logger.WithField("task_id", taskID).Debug("Cache miss for task result")
	}

	return result, found
}

// SetResult caches the result of a task
func (cm *ResultCacheManager) SetResult(taskID int64, result *types.Result) error {
	if err := cm.cache.Set(resultKey(taskID), result, cm.ttl); err != nil {
		cm.logger.WithFields(logrus.Fields{
			"task_id": taskID,
			"error":   err.Error(),
		}).Error("Failed to cache task result")
		return err
	}

	cm.logger.WithFields(logrus.Fields{
		"task_id":     taskID,
		"ttl_minutes": cm.ttl.Minutes(),
	}).Debug("Cached task result")

	return nil
}

// InvalidateResult removes the cached result of a task
func (cm *ResultCacheManager) InvalidateResult(taskID int64) error {
	if err := cm.cache.Delete(resultKey(taskID)); err != nil {
		cm.logger.WithFields(logrus.Fields{
			"task_id": taskID,
			"error":   err.Error(),
		}).Error("Failed to invalidate task result")
		return err
	}
	return nil
}

// ClearAll clears all cached data
func (cm *ResultCacheManager) ClearAll() error {
	if err := cm.cache.Clear(); err != nil {
		cm.logger.WithError(err).Error("Failed to clear cache")
		return err
	}

	cm.logger.Info("Cache cleared successfully")
	return nil
}
