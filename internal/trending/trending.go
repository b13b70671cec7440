// Package trending builds the "most searched" side list from the counter store.
package trending

import (
	"context"
	"log/slog"
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"

	"github.com/handsomefox/moviescope/internal/counters"
	"github.com/handsomefox/moviescope/internal/logger"
)

const (
	DefaultPageSize = 50
	DefaultSize     = 3

	cacheKey   = "trending"
	cacheBytes = 512 * 1024
)

type Source interface {
	TopCounters(ctx context.Context, limit int) ([]counters.Counter, error)
}

type Options struct {
	PageSize int
	Size     int
	// CacheTTL keeps a computed list around for that long. Zero disables it.
	CacheTTL time.Duration
	Logger   *slog.Logger
}

type Aggregator struct {
	src      Source
	pageSize int
	size     int
	cache    *freecache.Cache
	ttl      int
	log      *slog.Logger
}

func New(src Source, opts Options) *Aggregator {
	a := &Aggregator{
		src:      src,
		pageSize: opts.PageSize,
		size:     opts.Size,
		log:      opts.Logger,
	}
	if a.pageSize <= 0 {
		a.pageSize = DefaultPageSize
	}
	if a.size <= 0 {
		a.size = DefaultSize
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if secs := int(opts.CacheTTL / time.Second); secs > 0 {
		a.cache = freecache.NewCache(cacheBytes)
		a.ttl = secs
	}
	return a
}

// Top3 returns the most searched movies, one entry per movie. It never fails:
// trending is best effort and any store error yields an empty list.
func (a *Aggregator) Top3(ctx context.Context) []counters.Counter {
	if cached, ok := a.cached(); ok {
		return cached
	}

	docs, err := a.src.TopCounters(ctx, a.pageSize)
	if err != nil {
		a.log.Error("Failed to load trending movies", logger.Error(err))
		return []counters.Counter{}
	}

	top := counters.Dedupe(docs, a.size)
	a.store(top)
	return top
}

// Invalidate drops the cached list, if any.
func (a *Aggregator) Invalidate() {
	if a.cache != nil {
		a.cache.Del([]byte(cacheKey))
	}
}

func (a *Aggregator) cached() ([]counters.Counter, bool) {
	if a.cache == nil {
		return nil, false
	}
	raw, err := a.cache.Get([]byte(cacheKey))
	if err != nil {
		return nil, false
	}
	var out []counters.Counter
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (a *Aggregator) store(top []counters.Counter) {
	if a.cache == nil {
		return
	}
	raw, err := json.Marshal(top)
	if err != nil {
		return
	}
	if err := a.cache.Set([]byte(cacheKey), raw, a.ttl); err != nil {
		a.log.Debug("Trending cache set failed", logger.Error(err))
	}
}
