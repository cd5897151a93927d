package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/suzukibelltree/SampleToDoApp/internal/models"
)

// TaskCache holds recently looked-up tasks by id. Entries expire after a TTL
// and the whole cache is dropped whenever the tasks table changes.
type TaskCache interface {
	// Get returns the task and whether it was present and not expired.
	Get(id int64) (models.Task, bool)

	// Put stores the task under its id.
	Put(task models.Task)

	// Invalidate removes every entry.
	Invalidate()

	// Len returns the number of entries currently stored.
	Len() int
}

// Options controls construction of a TaskCache.
type Options struct {
	// Size is the maximum number of entries; 0 disables caching.
	Size int
	// TTL bounds how long an entry is served; 0 means entries never expire.
	TTL time.Duration
}

// New constructs a TaskCache with the given options.
func New(opts Options) TaskCache {
	if opts.Size <= 0 {
		return noCache{}
	}
	return &lruCache{lru: expirable.NewLRU[int64, models.Task](opts.Size, nil, opts.TTL)}
}

type lruCache struct {
	lru *expirable.LRU[int64, models.Task]
}

func (c *lruCache) Get(id int64) (models.Task, bool) {
	return c.lru.Get(id)
}

func (c *lruCache) Put(task models.Task) {
	c.lru.Add(task.ID, task)
}

func (c *lruCache) Invalidate() {
	c.lru.Purge()
}

func (c *lruCache) Len() int {
	return c.lru.Len()
}

type noCache struct{}

func (noCache) Get(int64) (models.Task, bool) { return models.Task{}, false }
func (noCache) Put(models.Task)               {}
func (noCache) Invalidate()                   {}
func (noCache) Len() int                      { return 0 }

// Ensure implementations satisfy TaskCache at compile time.
var (
	_ TaskCache = (*lruCache)(nil)
	_ TaskCache = noCache{}
)
