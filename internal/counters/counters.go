// Package counters keeps one search counter document per movie in a remote
// document store and reads the most searched movies back.
//
// IncrementOrCreate is a read-then-write sequence, not an atomic upsert. Two
// sessions searching the same movie at the same time can both create a
// document or both write the same incremented count. That undercount is
// accepted; TopCounters hides the duplicates it leaves behind.
package counters

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/handsomefox/moviescope/internal/logger"
	"github.com/handsomefox/moviescope/internal/metrics"
	"github.com/handsomefox/moviescope/internal/tmdb"
)

// pageFactor is how many more rows TopCounters reads than it returns, so
// stale duplicates do not starve the result.
const pageFactor = 10

type Counter struct {
	ID         string `json:"id"`
	MovieID    int64  `json:"movie_id"`
	Title      string `json:"title"`
	PosterURL  string `json:"poster_url"`
	SearchTerm string `json:"searchTerm"`
	Count      int64  `json:"count"`
}

// Documents is the document store contract the client runs on.
type Documents interface {
	EnsureSession(ctx context.Context) error
	FindByMovieID(ctx context.Context, movieID int64) ([]Counter, error)
	ListByCountDesc(ctx context.Context, limit int) ([]Counter, error)
	Create(ctx context.Context, c Counter) error
	Update(ctx context.Context, docID string, count int64, searchTerm string) error
}

type Options struct {
	ImageBase string
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

type Client struct {
	docs      Documents
	imageBase string
	metrics   metrics.Recorder
	log       *slog.Logger

	mu        sync.Mutex
	connected bool
	lastErr   error
}

func New(docs Documents, opts Options) *Client {
	if docs == nil {
		docs = Disabled{}
	}
	imageBase := opts.ImageBase
	if strings.TrimSpace(imageBase) == "" {
		imageBase = tmdb.DefaultImageBase
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{docs: docs, imageBase: imageBase, metrics: rec, log: log}
}

// Connect establishes the store session. It can be called again at any time;
// a successful session is remembered until the store rejects it.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.connected {
		return nil
	}
	if err := c.docs.EnsureSession(ctx); err != nil {
		c.lastErr = err
		c.metrics.StoreOperation("session", metrics.OutcomeError)
		return &StoreError{Op: "session", Err: fmt.Errorf("%w: %w", ErrNoSession, err)}
	}
	c.connected = true
	c.lastErr = nil
	c.metrics.StoreOperation("session", metrics.OutcomeOK)
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastError is the most recent session failure, nil once connected.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) ensure(ctx context.Context, op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(ctx); err != nil {
		c.log.Error("Counter store unavailable, skipping operation", slog.String("op", op), logger.Error(err))
		c.metrics.StoreOperation(op, metrics.OutcomeNoop)
		return err
	}
	return nil
}

func (c *Client) fail(op string, err error) error {
	if errors.Is(err, ErrUnauthorized) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}
	c.metrics.StoreOperation(op, metrics.OutcomeError)
	return &StoreError{Op: op, Err: err}
}

// IncrementOrCreate bumps the counter of movieID, or creates it with count 1.
func (c *Client) IncrementOrCreate(ctx context.Context, movieID int64, title, posterPath, searchTerm string) error {
	const op = "increment"
	if _, ok := c.docs.(Disabled); ok {
		c.metrics.StoreOperation(op, metrics.OutcomeNoop)
		return nil
	}
	if err := c.ensure(ctx, op); err != nil {
		return err
	}

	existing, err := c.docs.FindByMovieID(ctx, movieID)
	if err != nil {
		return c.fail(op, fmt.Errorf("find movie %d: %w", movieID, err))
	}

	if len(existing) > 0 {
		doc := existing[0]
		if err := c.docs.Update(ctx, doc.ID, doc.Count+1, searchTerm); err != nil {
			return c.fail(op, fmt.Errorf("update %s: %w", doc.ID, err))
		}
		c.metrics.StoreOperation(op, metrics.OutcomeOK)
		return nil
	}

	err = c.docs.Create(ctx, Counter{
		ID:         uuid.NewString(),
		MovieID:    movieID,
		Title:      title,
		PosterURL:  tmdb.PosterURL(c.imageBase, posterPath),
		SearchTerm: searchTerm,
		Count:      1,
	})
	if err != nil {
		return c.fail(op, fmt.Errorf("create movie %d: %w", movieID, err))
	}
	c.metrics.StoreOperation(op, metrics.OutcomeOK)
	return nil
}

// Record is IncrementOrCreate for a catalog result.
func (c *Client) Record(ctx context.Context, movie tmdb.Movie, searchTerm string) error {
	return c.IncrementOrCreate(ctx, movie.ID, movie.Title, movie.PosterPath, searchTerm)
}

// TopCounters returns at most limit counters with distinct movie ids, highest
// count first.
func (c *Client) TopCounters(ctx context.Context, limit int) ([]Counter, error) {
	const op = "top"
	if limit <= 0 {
		return []Counter{}, nil
	}
	if _, ok := c.docs.(Disabled); ok {
		c.metrics.StoreOperation(op, metrics.OutcomeNoop)
		return []Counter{}, nil
	}
	if err := c.ensure(ctx, op); err != nil {
		return nil, err
	}

	docs, err := c.docs.ListByCountDesc(ctx, limit*pageFactor)
	if err != nil {
		return nil, c.fail(op, fmt.Errorf("list by count: %w", err))
	}
	c.metrics.StoreOperation(op, metrics.OutcomeOK)
	return Dedupe(docs, limit), nil
}

// Dedupe orders docs by count, highest first, keeps the first document seen
// for each movie id and stops at limit.
func Dedupe(docs []Counter, limit int) []Counter {
	if limit <= 0 {
		return []Counter{}
	}
	sorted := slices.Clone(docs)
	slices.SortStableFunc(sorted, func(a, b Counter) int {
		return cmp.Compare(b.Count, a.Count)
	})

	out := make([]Counter, 0, min(limit, len(sorted)))
	seen := make(map[int64]struct{}, len(sorted))
	for _, d := range sorted {
		if len(out) >= limit {
			break
		}
		if _, ok := seen[d.MovieID]; ok {
			continue
		}
		seen[d.MovieID] = struct{}{}
		out = append(out, d)
	}
	return out
}

// Disabled is used when no document store is configured. Every operation is
// a no-op.
type Disabled struct{}

func (Disabled) EnsureSession(context.Context) error { return nil }
func (Disabled) FindByMovieID(context.Context, int64) ([]Counter, error) {
	return nil, nil
}
func (Disabled) ListByCountDesc(context.Context, int) ([]Counter, error) {
	return nil, nil
}
func (Disabled) Create(context.Context, Counter) error               { return nil }
func (Disabled) Update(context.Context, string, int64, string) error { return nil }
