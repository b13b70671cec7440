// Package search turns debounced user input into catalog requests and keeps
// the resulting view state.
//
// Input settles after a quiet period and is then submitted. New input never
// cancels a request in flight, so responses can arrive out of order. Every
// submission gets a sequence number and only the response for the newest one
// is applied.
package search

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/handsomefox/moviescope/internal/logger"
	"github.com/handsomefox/moviescope/internal/metrics"
	"github.com/handsomefox/moviescope/internal/tmdb"
)

const DefaultDebounce = 500 * time.Millisecond

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

const (
	MsgNoSearchResults = "No movies found for your search."
	MsgNoMovies        = "No movies found."
	MsgGenericError    = "Error fetching movies. Please try again later."
)

type Catalog interface {
	Search(ctx context.Context, query string) ([]tmdb.Movie, error)
	DiscoverPopular(ctx context.Context) ([]tmdb.Movie, error)
}

// Recorder receives the top result of every applied non-empty search.
type Recorder interface {
	Record(ctx context.Context, movie tmdb.Movie, searchTerm string) error
}

type State struct {
	Status      Status       `json:"status"`
	Query       string       `json:"query"`
	Movies      []tmdb.Movie `json:"movies"`
	Message     string       `json:"message,omitempty"`
	NeedsAPIKey bool         `json:"needs_api_key"`
	Seq         uint64       `json:"seq"`
}

type Options struct {
	Debounce time.Duration
	Metrics  metrics.Recorder
	Logger   *slog.Logger
	// OnAuthFailure runs after an applied response failed with *tmdb.AuthError.
	OnAuthFailure func(err error)
}

type Controller struct {
	catalog  Catalog
	recorder Recorder
	debounce time.Duration
	metrics  metrics.Recorder
	log      *slog.Logger
	onAuth   func(error)

	mu         sync.Mutex
	state      State
	input      string
	settled    string
	hasSettled bool
	seq        uint64
	timer      *time.Timer
	closed     bool

	wg sync.WaitGroup
}

// New builds a controller. recorder may be nil, in which case searches are
// not counted.
func New(catalog Catalog, recorder Recorder, opts Options) *Controller {
	c := &Controller{
		catalog:  catalog,
		recorder: recorder,
		debounce: opts.Debounce,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		onAuth:   opts.OnAuthFailure,
		state:    State{Status: StatusIdle, Movies: []tmdb.Movie{}},
	}
	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// SetInput records raw input and restarts the quiet period. The value is
// submitted once it settles, unless it equals the last settled value.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.input = text
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() { c.settle(text) })
}

func (c *Controller) settle(text string) {
	c.mu.Lock()
	if c.closed || c.input != text || (c.hasSettled && c.settled == text) {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.Submit(text)
}

// Submit fetches query right away and returns the sequence number of the
// request. An empty query lists popular movies instead of searching. After
// Close it does nothing and returns 0.
func (c *Controller) Submit(query string) uint64 {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	c.seq++
	n := c.seq
	c.input = query
	c.settled = query
	c.hasSettled = true
	c.state.Status = StatusLoading
	c.state.Query = query
	c.state.Message = ""
	c.state.Seq = n
	c.wg.Add(1)
	c.mu.Unlock()

	go c.fetch(n, query)
	return n
}

// Retry submits the last settled query again, e.g. after a new API key was
// entered.
func (c *Controller) Retry() uint64 {
	c.mu.Lock()
	q := c.settled
	c.mu.Unlock()
	return c.Submit(q)
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Movies = slices.Clone(c.state.Movies)
	if s.Movies == nil {
		s.Movies = []tmdb.Movie{}
	}
	return s
}

// ClearAuthFailure drops the key prompt flag once a new key is stored.
func (c *Controller) ClearAuthFailure() {
	c.mu.Lock()
	c.state.NeedsAPIKey = false
	c.mu.Unlock()
}

// Wait blocks until every submitted fetch and counter write has finished.
// Input still inside its quiet period is not waited for.
func (c *Controller) Wait() { c.wg.Wait() }

// Close stops the pending debounce timer and rejects further submissions.
// Requests in flight still complete.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
}

func (c *Controller) fetch(n uint64, query string) {
	defer c.wg.Done()

	ctx := context.Background()
	discover := strings.TrimSpace(query) == ""

	var (
		movies []tmdb.Movie
		err    error
	)
	if discover {
		movies, err = c.catalog.DiscoverPopular(ctx)
	} else {
		movies, err = c.catalog.Search(ctx, query)
	}

	c.mu.Lock()
	if n != c.seq {
		c.mu.Unlock()
		c.metrics.StaleResponse()
		c.log.Debug("Discarding stale search response", slog.String("query", query), slog.Uint64("seq", n))
		return
	}

	var authErr *tmdb.AuthError
	isAuth := false
	switch {
	case err != nil:
		c.state.Status = StatusError
		c.state.Movies = []tmdb.Movie{}
		c.state.Message = errorMessage(err)
		if errors.As(err, &authErr) {
			isAuth = true
			c.state.NeedsAPIKey = true
		}
	case len(movies) == 0:
		c.state.Status = StatusEmpty
		c.state.Movies = []tmdb.Movie{}
		c.state.Message = MsgNoMovies
		if !discover {
			c.state.Message = MsgNoSearchResults
		}
	default:
		c.state.Status = StatusSuccess
		c.state.Movies = movies
		c.state.Message = ""
		c.state.NeedsAPIKey = false
	}
	record := err == nil && len(movies) > 0 && !discover && c.recorder != nil
	if record {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Error("Error fetching movies", slog.String("query", query), logger.Error(err))
	}
	if isAuth && c.onAuth != nil {
		c.onAuth(err)
	}
	if record {
		go c.record(ctx, movies[0], query)
	}
}

func (c *Controller) record(ctx context.Context, movie tmdb.Movie, query string) {
	defer c.wg.Done()
	if err := c.recorder.Record(context.WithoutCancel(ctx), movie, query); err != nil {
		c.log.Error("Failed to update search count",
			slog.Int64("movie_id", movie.ID),
			slog.String("query", query),
			logger.Error(err),
		)
	}
}

func errorMessage(err error) string {
	var authErr *tmdb.AuthError
	if errors.As(err, &authErr) {
		return authErr.Error()
	}
	var fetchErr *tmdb.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Error()
	}
	return MsgGenericError
}
