// Package surreal stores search counters in a SurrealDB table over an
// auto-reconnecting WebSocket connection.
package surreal

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	sdklogger "github.com/surrealdb/surrealdb.go/pkg/logger"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/handsomefox/moviescope/internal/counters"
)

const table = "search_counter"

func init() {
	// WebSocket upgrades fail when TLS negotiates HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

type Client struct {
	conn *rews.Connection[*gorillaws.Connection]
	db   *surrealdb.DB
	cfg  Config
	log  sdklogger.Logger
}

var _ counters.Documents = (*Client)(nil)

type record struct {
	ID         *surrealmodels.RecordID `json:"id,omitempty"`
	MovieID    int64                   `json:"movie_id"`
	Title      string                  `json:"title"`
	PosterURL  string                  `json:"poster_url"`
	SearchTerm string                  `json:"searchTerm"`
	Count      int64                   `json:"count"`
}

func (r *record) toCounter() counters.Counter {
	c := counters.Counter{
		MovieID:    r.MovieID,
		Title:      r.Title,
		PosterURL:  r.PosterURL,
		SearchTerm: r.SearchTerm,
		Count:      r.Count,
	}
	if r.ID != nil {
		c.ID = fmt.Sprint(r.ID.ID)
	}
	return c
}

// Dial opens the connection. Authentication happens in EnsureSession.
func Dial(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	sdkLog := sdklogger.New(log.Handler())
	codec := surrealcbor.New()

	// gorillaws appends /rpc itself.
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLog,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLog,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	sdkLog.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}
	return &Client{conn: conn, db: db, cfg: cfg, log: sdkLog}, nil
}

func (c *Client) Close(ctx context.Context) error {
	c.log.Info("closing SurrealDB connection")
	return c.conn.Close(ctx)
}

// EnsureSession signs in and selects the namespace and database.
func (c *Client) EnsureSession(ctx context.Context) error {
	_, err := c.db.SignIn(ctx, surrealdb.Auth{
		Username: c.cfg.Username,
		Password: c.cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("%w: signin: %w", counters.ErrUnauthorized, err)
	}
	if err := c.db.Use(ctx, c.cfg.Namespace, c.cfg.Database); err != nil {
		return fmt.Errorf("use: %w", err)
	}
	return nil
}

func (c *Client) FindByMovieID(ctx context.Context, movieID int64) ([]counters.Counter, error) {
	return c.selectCounters(ctx, `SELECT * FROM type::table($tb) WHERE movie_id = $movie_id`, map[string]any{
		"tb":       table,
		"movie_id": movieID,
	})
}

func (c *Client) ListByCountDesc(ctx context.Context, limit int) ([]counters.Counter, error) {
	if limit <= 0 {
		return []counters.Counter{}, nil
	}
	return c.selectCounters(ctx, `SELECT * FROM type::table($tb) ORDER BY count DESC LIMIT $limit`, map[string]any{
		"tb":    table,
		"limit": limit,
	})
}

func (c *Client) Create(ctx context.Context, ct counters.Counter) error {
	_, err := surrealdb.Query[any](ctx, c.db, `CREATE type::record($tb, $id) CONTENT $data`, map[string]any{
		"tb": table,
		"id": ct.ID,
		"data": record{
			MovieID:    ct.MovieID,
			Title:      ct.Title,
			PosterURL:  ct.PosterURL,
			SearchTerm: ct.SearchTerm,
			Count:      ct.Count,
		},
	})
	if err != nil {
		return fmt.Errorf("create counter: %w", err)
	}
	return nil
}

func (c *Client) Update(ctx context.Context, docID string, count int64, searchTerm string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `UPDATE type::record($tb, $id) SET count = $count, searchTerm = $term`, map[string]any{
		"tb":    table,
		"id":    docID,
		"count": count,
		"term":  searchTerm,
	})
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}
	return nil
}

func (c *Client) selectCounters(ctx context.Context, sql string, vars map[string]any) ([]counters.Counter, error) {
	results, err := surrealdb.Query[[]record](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("select counters: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return []counters.Counter{}, nil
	}
	rows := (*results)[0].Result
	out := make([]counters.Counter, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toCounter())
	}
	return out, nil
}
