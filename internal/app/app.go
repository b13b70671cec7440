// Package app ties the catalog, the search controller and the trending list
// into the state the view renders.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/handsomefox/moviescope/internal/counters"
	"github.com/handsomefox/moviescope/internal/logger"
	"github.com/handsomefox/moviescope/internal/search"
	"github.com/handsomefox/moviescope/internal/tmdb"
)

// topRatedShown is how many top rated movies the view displays.
const topRatedShown = 8

type Catalog interface {
	search.Catalog
	TopRated(ctx context.Context) ([]tmdb.Movie, error)
	NowPlaying(ctx context.Context) ([]tmdb.Movie, error)
}

type Trending interface {
	Top3(ctx context.Context) []counters.Counter
	Invalidate()
}

type KeyStore interface {
	Set(key string) error
	Clear() error
}

type Config struct {
	Catalog  Catalog
	Recorder search.Recorder
	Trending Trending
	Keys     KeyStore
	Search   search.Options
	Logger   *slog.Logger
}

type Snapshot struct {
	Search      search.State       `json:"search"`
	Trending    []counters.Counter `json:"trending"`
	TopRated    []tmdb.Movie       `json:"top_rated"`
	NowPlaying  []tmdb.Movie       `json:"now_playing"`
	NeedsAPIKey bool               `json:"needs_api_key"`
}

type App struct {
	catalog  Catalog
	trending Trending
	keys     KeyStore
	search   *search.Controller
	log      *slog.Logger

	mu         sync.RWMutex
	topRated   []tmdb.Movie
	nowPlaying []tmdb.Movie
	needsKey   bool
}

func New(cfg Config) (*App, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("app: catalog is required")
	}
	if cfg.Trending == nil {
		return nil, errors.New("app: trending is required")
	}
	if cfg.Keys == nil {
		return nil, errors.New("app: key store is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	a := &App{
		catalog:    cfg.Catalog,
		trending:   cfg.Trending,
		keys:       cfg.Keys,
		log:        log,
		topRated:   []tmdb.Movie{},
		nowPlaying: []tmdb.Movie{},
	}

	opts := cfg.Search
	if opts.Logger == nil {
		opts.Logger = log
	}
	next := opts.OnAuthFailure
	opts.OnAuthFailure = func(err error) {
		a.requireKey()
		if next != nil {
			next(err)
		}
	}
	var rec search.Recorder
	if cfg.Recorder != nil {
		rec = &invalidatingRecorder{next: cfg.Recorder, trending: cfg.Trending}
	}
	a.search = search.New(cfg.Catalog, rec, opts)
	return a, nil
}

func (a *App) Search() *search.Controller { return a.search }

// Load fills every section, warms the trending list and submits the initial
// empty search. Sections load concurrently and independently; a failing one is left empty. The
// first failure is returned for logging only.
func (a *App) Load(ctx context.Context) error {
	a.search.Submit("")

	var g errgroup.Group
	g.Go(func() error {
		a.trending.Top3(ctx)
		return nil
	})
	a.goCatalogSections(ctx, &g)
	return g.Wait()
}

// RefreshTrending recomputes the trending list, bypassing the cache.
func (a *App) RefreshTrending(ctx context.Context) []counters.Counter {
	a.trending.Invalidate()
	return a.trending.Top3(ctx)
}

// invalidatingRecorder drops the cached trending list after every counted
// search, so the next read sees the new count.
type invalidatingRecorder struct {
	next     search.Recorder
	trending Trending
}

func (r *invalidatingRecorder) Record(ctx context.Context, movie tmdb.Movie, searchTerm string) error {
	if err := r.next.Record(ctx, movie, searchTerm); err != nil {
		return err
	}
	r.trending.Invalidate()
	return nil
}

func (a *App) goCatalogSections(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		movies, err := a.catalog.TopRated(ctx)
		return a.setSection("top_rated", &a.topRated, movies, err)
	})
	g.Go(func() error {
		movies, err := a.catalog.NowPlaying(ctx)
		return a.setSection("now_playing", &a.nowPlaying, movies, err)
	})
}

func (a *App) setSection(name string, dst *[]tmdb.Movie, movies []tmdb.Movie, err error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.log.Error("Failed to load section", slog.String("section", name), logger.Error(err))
		*dst = []tmdb.Movie{}
		if tmdb.IsAuth(err) {
			a.needsKey = true
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = movies
	return nil
}

// SetAPIKey stores a new key and reloads everything that depends on it.
func (a *App) SetAPIKey(ctx context.Context, key string) error {
	if err := a.keys.Set(key); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	a.mu.Lock()
	a.needsKey = false
	a.mu.Unlock()

	a.search.ClearAuthFailure()
	a.search.Retry()

	var g errgroup.Group
	a.goCatalogSections(ctx, &g)
	if err := g.Wait(); err != nil {
		a.log.Warn("Sections still failing after key change", logger.Error(err))
	}
	return nil
}

// ClearAPIKey forgets the stored key and asks for a new one.
func (a *App) ClearAPIKey() error {
	if err := a.keys.Clear(); err != nil {
		return fmt.Errorf("clear api key: %w", err)
	}
	a.requireKey()
	return nil
}

func (a *App) requireKey() {
	a.mu.Lock()
	a.needsKey = true
	a.mu.Unlock()
}

// Snapshot is the current view state. Trending is read through the
// aggregator on every call.
func (a *App) Snapshot(ctx context.Context) Snapshot {
	st := a.search.State()
	top := a.trending.Top3(ctx)

	a.mu.RLock()
	defer a.mu.RUnlock()
	topRated := a.topRated
	if len(topRated) > topRatedShown {
		topRated = topRated[:topRatedShown]
	}
	return Snapshot{
		Search:      st,
		Trending:    top,
		TopRated:    slices.Clone(topRated),
		NowPlaying:  slices.Clone(a.nowPlaying),
		NeedsAPIKey: a.needsKey || st.NeedsAPIKey,
	}
}

// Close stops pending input and waits for in-flight work.
func (a *App) Close() {
	a.search.Close()
	a.search.Wait()
}
