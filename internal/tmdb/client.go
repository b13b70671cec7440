// Package tmdb wraps the TMDB API for movie search and the discovery lists.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/handsomefox/moviescope/internal/metrics"
)

const (
	DefaultBaseURL   = "https://api.themoviedb.org/3"
	DefaultImageBase = "https://image.tmdb.org/t/p/w500"

	defaultTimeout = 10 * time.Second
)

const (
	endpointDiscover   = "/discover/movie"
	endpointSearch     = "/search/movie"
	endpointTopRated   = "/movie/top_rated"
	endpointNowPlaying = "/movie/now_playing"
)

// KeySource yields the API key at request time so a key replaced after a
// 401 is picked up by the next call.
type KeySource interface {
	APIKey() string
}

type StaticKey string

func (k StaticKey) APIKey() string { return string(k) }

type Config struct {
	Keys      KeySource
	ReadToken string
	BaseURL   string
	ImageBase string
	Timeout   time.Duration
	Metrics   metrics.Recorder
}

type Client struct {
	keys      KeySource
	readToken string
	baseURL   string
	imageBase string
	http      *http.Client
	metrics   metrics.Recorder
}

type Movie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	PosterPath       string  `json:"poster_path"`
	Overview         string  `json:"overview,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
	VoteAverage      float64 `json:"vote_average"`
}

// Year is the release year, or "" when TMDB has no date.
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}

type listResponse struct {
	Results []Movie `json:"results"`
}

func New(cfg Config) *Client {
	keys := cfg.Keys
	if keys == nil {
		keys = StaticKey("")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	imageBase := strings.TrimSpace(cfg.ImageBase)
	if imageBase == "" {
		imageBase = DefaultImageBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Client{
		keys:      keys,
		readToken: strings.TrimSpace(cfg.ReadToken),
		baseURL:   baseURL,
		imageBase: imageBase,
		http:      &http.Client{Timeout: timeout},
		metrics:   rec,
	}
}

func (c *Client) Search(ctx context.Context, query string) ([]Movie, error) {
	values := url.Values{}
	values.Set("query", query)
	return c.fetchList(ctx, endpointSearch, values)
}

func (c *Client) DiscoverPopular(ctx context.Context) ([]Movie, error) {
	values := url.Values{}
	values.Set("sort_by", "popularity.desc")
	return c.fetchList(ctx, endpointDiscover, values)
}

func (c *Client) TopRated(ctx context.Context) ([]Movie, error) {
	return c.fetchList(ctx, endpointTopRated, url.Values{})
}

func (c *Client) NowPlaying(ctx context.Context) ([]Movie, error) {
	return c.fetchList(ctx, endpointNowPlaying, url.Values{})
}

// PosterURL turns a catalog-relative poster path into an absolute URL.
func (c *Client) PosterURL(path string) string {
	return PosterURL(c.imageBase, path)
}

func PosterURL(imageBase, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(imageBase, "/") + path
}

func (c *Client) fetchList(ctx context.Context, endpoint string, values url.Values) (out []Movie, err error) {
	start := time.Now()
	defer func() {
		c.metrics.CatalogRequest(endpoint, outcome(err), time.Since(start))
	}()

	apiKey := strings.TrimSpace(c.keys.APIKey())
	if apiKey == "" && c.readToken == "" {
		return nil, &AuthError{Err: ErrMissingAPIKey}
	}
	if apiKey != "" {
		values.Set("api_key", apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+values.Encode(), http.NoBody)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	c.applyAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var statusErr error = &FetchError{Status: resp.StatusCode, Err: errors.New(resp.Status)}
		if resp.StatusCode == http.StatusUnauthorized {
			statusErr = &AuthError{Status: resp.StatusCode}
		}
		if cerr := resp.Body.Close(); cerr != nil {
			return nil, errors.Join(statusErr, cerr)
		}
		return nil, statusErr
	}

	var payload listResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		decodeErr := &FetchError{Err: fmt.Errorf("decode %s: %w", endpoint, err)}
		if cerr := resp.Body.Close(); cerr != nil {
			return nil, errors.Join(decodeErr, cerr)
		}
		return nil, decodeErr
	}
	if err := resp.Body.Close(); err != nil {
		return nil, &FetchError{Err: err}
	}

	if payload.Results == nil {
		return []Movie{}, nil
	}
	return payload.Results, nil
}

func (c *Client) applyAuth(req *http.Request) {
	if c.readToken == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.readToken)
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return metrics.OutcomeAuth
	}
	return metrics.OutcomeError
}
