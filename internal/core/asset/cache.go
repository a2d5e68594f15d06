package asset

import (
	"context"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultShards = 16
	// preloadLimit bounds concurrent loads started by Preload.
	preloadLimit = 4
)

type cacheShard struct {
	mx     sync.RWMutex
	models map[int]*Model
}

// Cache memoizes a Loader. Concurrent loads of one id share a single call,
// and failed loads are not remembered so the next request retries.
type Cache struct {
	loader Loader
	shards []cacheShard
	group  singleflight.Group
}

var _ Loader = (*Cache)(nil)

func NewCache(loader Loader, shards int) *Cache {
	if shards <= 0 {
		shards = defaultShards
	}
	c := &Cache{loader: loader, shards: make([]cacheShard, shards)}
	for i := range c.shards {
		c.shards[i].models = make(map[int]*Model)
	}
	return c
}

func (c *Cache) shard(key string) *cacheShard {
	return &c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
}

func (c *Cache) Load(ctx context.Context, id int) (*Model, error) {
	key := strconv.Itoa(id)
	s := c.shard(key)

	s.mx.RLock()
	m, ok := s.models[id]
	s.mx.RUnlock()
	if ok {
		return m, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		m, err := c.loader.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		s.mx.Lock()
		s.models[id] = m
		s.mx.Unlock()
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Model), nil
	}
}

// Len returns the number of cached models.
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		c.shards[i].mx.RLock()
		n += len(c.shards[i].models)
		c.shards[i].mx.RUnlock()
	}
	return n
}

// Forget drops a cached model.
func (c *Cache) Forget(id int) {
	key := strconv.Itoa(id)
	s := c.shard(key)
	s.mx.Lock()
	delete(s.models, id)
	s.mx.Unlock()
	c.group.Forget(key)
}

// Preload warms the cache with ids concurrently and returns the first error.
// Models that loaded stay cached even when another id fails.
func (c *Cache) Preload(ctx context.Context, ids ...int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadLimit)
	for _, id := range ids {
		g.Go(func() error {
			_, err := c.Load(ctx, id)
			return err
		})
	}
	return g.Wait()
}
