// Package appwrite stores search counters in an Appwrite collection through
// its REST API, using an anonymous account session.
package appwrite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/handsomefox/moviescope/internal/counters"
)

const fallbackCookiesHeader = "X-Fallback-Cookies"

type Config struct {
	Endpoint     string
	ProjectID    string
	DatabaseID   string
	CollectionID string
	Timeout      time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client

	mu              sync.RWMutex
	fallbackCookies string
}

var _ counters.Documents = (*Client)(nil)

type document struct {
	ID         string `json:"$id"`
	MovieID    int64  `json:"movie_id"`
	Title      string `json:"title"`
	PosterURL  string `json:"poster_url"`
	SearchTerm string `json:"searchTerm"`
	Count      int64  `json:"count"`
}

type documentList struct {
	Total     int        `json:"total"`
	Documents []document `json:"documents"`
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

func New(cfg Config) (*Client, error) {
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if cfg.Endpoint == "" || cfg.ProjectID == "" || cfg.DatabaseID == "" || cfg.CollectionID == "" {
		return nil, errors.New("appwrite endpoint, project, database and collection are required")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout, Jar: jar}}, nil
}

// EnsureSession reuses an existing account session or creates an anonymous one.
func (c *Client) EnsureSession(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/account", nil, nil, nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, counters.ErrUnauthorized) {
		return fmt.Errorf("check session: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, "/account/sessions/anonymous", nil, struct{}{}, nil); err != nil {
		return fmt.Errorf("create anonymous session: %w", err)
	}
	return nil
}

func (c *Client) FindByMovieID(ctx context.Context, movieID int64) ([]counters.Counter, error) {
	return c.list(ctx, Equal("movie_id", movieID))
}

func (c *Client) ListByCountDesc(ctx context.Context, limit int) ([]counters.Counter, error) {
	return c.list(ctx, OrderDesc("count"), Limit(limit))
}

func (c *Client) Create(ctx context.Context, ct counters.Counter) error {
	body := map[string]any{
		"documentId": ct.ID,
		"data": map[string]any{
			"movie_id":   ct.MovieID,
			"title":      ct.Title,
			"poster_url": ct.PosterURL,
			"searchTerm": ct.SearchTerm,
			"count":      ct.Count,
		},
	}
	return c.do(ctx, http.MethodPost, c.documentsPath(), nil, body, nil)
}

func (c *Client) Update(ctx context.Context, docID string, count int64, searchTerm string) error {
	body := map[string]any{
		"data": map[string]any{
			"count":      count,
			"searchTerm": searchTerm,
		},
	}
	return c.do(ctx, http.MethodPatch, c.documentsPath()+"/"+url.PathEscape(docID), nil, body, nil)
}

func (c *Client) list(ctx context.Context, queries ...string) ([]counters.Counter, error) {
	values := url.Values{}
	for _, q := range queries {
		values.Add("queries[]", q)
	}
	var payload documentList
	if err := c.do(ctx, http.MethodGet, c.documentsPath(), values, nil, &payload); err != nil {
		return nil, err
	}
	out := make([]counters.Counter, 0, len(payload.Documents))
	for _, d := range payload.Documents {
		out = append(out, counters.Counter{
			ID:         d.ID,
			MovieID:    d.MovieID,
			Title:      d.Title,
			PosterURL:  d.PosterURL,
			SearchTerm: d.SearchTerm,
			Count:      d.Count,
		})
	}
	return out, nil
}

func (c *Client) documentsPath() string {
	return "/databases/" + url.PathEscape(c.cfg.DatabaseID) +
		"/collections/" + url.PathEscape(c.cfg.CollectionID) + "/documents"
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.cfg.Endpoint + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Appwrite-Project", c.cfg.ProjectID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.fallbackCookies != "" {
		req.Header.Set(fallbackCookiesHeader, c.fallbackCookies)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	if v := resp.Header.Get(fallbackCookiesHeader); v != "" {
		c.mu.Lock()
		c.fallbackCookies = v
		c.mu.Unlock()
	}

	if resp.StatusCode >= 400 {
		statusErr := decodeAPIError(resp)
		if cerr := resp.Body.Close(); cerr != nil {
			return errors.Join(statusErr, cerr)
		}
		return statusErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if cerr := resp.Body.Close(); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
	}
	return resp.Body.Close()
}

func decodeAPIError(resp *http.Response) error {
	var payload apiError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
	msg := payload.Message
	if msg == "" {
		msg = resp.Status
	}
	err := fmt.Errorf("appwrite %d: %s", resp.StatusCode, msg)
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", counters.ErrUnauthorized, err)
	}
	return err
}
