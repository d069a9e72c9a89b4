package badger

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/blockclique/blockclique-go/model/dag"
	"github.com/blockclique/blockclique-go/module"
	"github.com/blockclique/blockclique-go/storage"
)

func withLimit(limit uint) func(*Cache) {
	return func(c *Cache) {
		c.limit = limit
	}
}

type retrieveFunc func(dag.Identifier) (interface{}, error)

func withRetrieve(retrieve retrieveFunc) func(*Cache) {
	return func(c *Cache) {
		c.retrieve = retrieve
	}
}

func noRetrieve(dag.Identifier) (interface{}, error) {
	return nil, fmt.Errorf("no retrieve function for cache get available")
}

func withResource(resource string) func(*Cache) {
	return func(c *Cache) {
		c.resource = resource
	}
}

// Cache is a read-through LRU cache in front of a database lookup.
type Cache struct {
	metrics  module.CacheMetrics
	limit    uint
	retrieve retrieveFunc
	resource string
	cache    *lru.Cache
}

func newCache(collector module.CacheMetrics, options ...func(*Cache)) *Cache {
	c := Cache{
		metrics:  collector,
		limit:    1000,
		retrieve: noRetrieve,
		resource: "undefined",
	}
	for _, option := range options {
		option(&c)
	}
	c.cache, _ = lru.New(int(c.limit))
	c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	return &c
}

// Get will try to retrieve the resource from cache first, and then from the
// injected retrieve function.
// Expected errors:
//   - storage.ErrNotFound if the resource is neither cached nor in the database
func (c *Cache) Get(entityID dag.Identifier) (interface{}, error) {

	resource, cached := c.cache.Get(entityID)
	if cached {
		c.metrics.CacheHit(c.resource)
		return resource, nil
	}

	resource, err := c.retrieve(entityID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.metrics.CacheNotFound(c.resource)
		}
		return nil, fmt.Errorf("could not retrieve resource: %w", err)
	}
	c.metrics.CacheMiss(c.resource)

	c.Insert(entityID, resource)
	return resource, nil
}

// Insert adds a resource that was already persisted to the cache, ejecting the
// least recently used one if the limit is reached.
func (c *Cache) Insert(entityID dag.Identifier, resource interface{}) {
	evicted := c.cache.Add(entityID, resource)
	if !evicted {
		c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	}
}
