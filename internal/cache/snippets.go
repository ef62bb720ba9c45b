// Package cache keeps recently read snippets in memory.
//
// Reads dominate a sharing service: one save, many opens of the link.
// Snippets is an LRU in front of the repository. Concurrent misses for the
// same id collapse into one repository call via singleflight, so a link
// posted somewhere busy does not stampede SQLite.
package cache

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/sakif/sharebin/internal/metrics"
	"github.com/sakif/sharebin/internal/model"
)

const maxSize = 100_000

// LoadTimeout bounds a shared repository load.
const LoadTimeout = 10 * time.Second

type entry struct {
	snippet model.Snippet
	exp     time.Time
}

// Snippets is safe for concurrent use.
type Snippets struct {
	lru   *lru.Cache[string, entry]
	group singleflight.Group
	ttl   time.Duration
	now   func() time.Time
}

// NewSnippets builds a cache of up to size snippets, each kept for ttl.
func NewSnippets(size int, ttl time.Duration) (*Snippets, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if size > maxSize {
		return nil, errors.New("cache size too large")
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Snippets{lru: c, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached snippet or calls load once for all concurrent
// callers asking for the same id. Errors are not cached. Every caller gets
// its own copy.
func (c *Snippets) Get(ctx context.Context, id string, load func(context.Context) (*model.Snippet, error)) (*model.Snippet, error) {
	if e, ok := c.lru.Get(id); ok {
		if c.now().Before(e.exp) {
			metrics.CacheHits.Inc()
			s := e.snippet
			return &s, nil
		}
		c.lru.Remove(id)
	}
	metrics.CacheMisses.Inc()

	// The load is shared, so it must not die with whichever caller started
	// it. Each caller still stops waiting when its own ctx ends.
	ch := c.group.DoChan(id, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()
		s, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.lru.Add(id, entry{snippet: *s, exp: c.now().Add(c.ttl)})
		return *s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		s := res.Val.(model.Snippet)
		return &s, nil
	}
}

// Invalidate drops id after a write.
func (c *Snippets) Invalidate(id string) {
	c.lru.Remove(id)
}

// Len reports how many snippets are cached.
func (c *Snippets) Len() int {
	return c.lru.Len()
}
