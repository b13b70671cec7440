package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/handsomefox/moviescope/internal/app"
	"github.com/handsomefox/moviescope/internal/appwrite"
	"github.com/handsomefox/moviescope/internal/config"
	"github.com/handsomefox/moviescope/internal/counters"
	"github.com/handsomefox/moviescope/internal/keystore"
	"github.com/handsomefox/moviescope/internal/logger"
	"github.com/handsomefox/moviescope/internal/metrics"
	"github.com/handsomefox/moviescope/internal/search"
	"github.com/handsomefox/moviescope/internal/store"
	"github.com/handsomefox/moviescope/internal/surreal"
	"github.com/handsomefox/moviescope/internal/tmdb"
	"github.com/handsomefox/moviescope/internal/trending"
)

// deps is everything a command needs, built from the loaded config.
type deps struct {
	prom     *metrics.Prometheus
	keys     *keystore.Store
	catalog  *tmdb.Client
	counters *counters.Client
	trending *trending.Aggregator
	app      *app.App

	closers []func(context.Context) error
}

func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{}

	var rec metrics.Recorder = metrics.Nop{}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		d.prom = metrics.New(reg)
		rec = d.prom
	}

	keys, err := keystore.Open(cfg.Keystore.Path, cfg.TMDB.APIKey)
	if err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}
	d.keys = keys

	d.catalog = tmdb.New(tmdb.Config{
		Keys:      keys,
		ReadToken: cfg.TMDB.ReadToken,
		BaseURL:   cfg.TMDB.BaseURL,
		ImageBase: cfg.TMDB.ImageBase,
		Timeout:   cfg.TMDB.Timeout,
		Metrics:   rec,
	})

	docs, err := d.openBackend(ctx, cfg)
	if err != nil {
		d.close(ctx)
		return nil, err
	}
	d.counters = counters.New(docs, counters.Options{
		ImageBase: cfg.TMDB.ImageBase,
		Metrics:   rec,
		Logger:    log,
	})
	if err := d.counters.Connect(ctx); err != nil {
		log.Warn("Counter store not connected, will retry on use",
			"backend", cfg.Counters.Backend, logger.Error(err))
	}

	d.trending = trending.New(d.counters, trending.Options{
		CacheTTL: cfg.Trending.CacheTTL,
		Logger:   log,
	})

	d.app, err = app.New(app.Config{
		Catalog:  d.catalog,
		Recorder: d.counters,
		Trending: d.trending,
		Keys:     keys,
		Search: search.Options{
			Debounce: cfg.Search.Debounce,
			Metrics:  rec,
			Logger:   log,
		},
		Logger: log,
	})
	if err != nil {
		d.close(ctx)
		return nil, err
	}
	d.closers = append(d.closers, func(context.Context) error {
		d.app.Close()
		return nil
	})
	return d, nil
}

// openBackend opens the configured counter document store. A nil result
// means counting is off.
func (d *deps) openBackend(ctx context.Context, cfg *config.Config) (counters.Documents, error) {
	switch cfg.Counters.Backend {
	case config.BackendAppwrite:
		c, err := appwrite.New(appwrite.Config{
			Endpoint:     cfg.Appwrite.Endpoint,
			ProjectID:    cfg.Appwrite.ProjectID,
			DatabaseID:   cfg.Appwrite.DatabaseID,
			CollectionID: cfg.Appwrite.CollectionID,
			Timeout:      cfg.TMDB.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init appwrite: %w", err)
		}
		return c, nil
	case config.BackendSQLite:
		st, err := store.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		d.closers = append(d.closers, func(context.Context) error { return st.Close() })
		return st, nil
	case config.BackendSurreal:
		c, err := surreal.Dial(ctx, surreal.Config{
			URL:       cfg.Surreal.URL,
			Namespace: cfg.Surreal.Namespace,
			Database:  cfg.Surreal.Database,
			Username:  cfg.Surreal.User,
			Password:  cfg.Surreal.Pass,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("connect to surrealdb: %w", err)
		}
		d.closers = append(d.closers, c.Close)
		return c, nil
	default:
		return nil, nil
	}
}

// close releases resources in reverse order of acquisition.
func (d *deps) close(ctx context.Context) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			log.Error("Failed to close resource", logger.Error(err))
		}
	}
	d.closers = nil
}
