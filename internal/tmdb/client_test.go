package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	path  string
	query url.Values
	auth  string
}

type fakeTMDB struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (f *fakeTMDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		path:  r.URL.Path,
		query: r.URL.Query(),
		auth:  r.Header.Get("Authorization"),
	})
	status, body := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeTMDB) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, fake *fakeTMDB, key string) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return New(Config{Keys: StaticKey(key), BaseURL: srv.URL})
}

const twoMovies = `{"page":1,"results":[
	{"id":268,"title":"Batman","poster_path":"/a.jpg","release_date":"1989-06-23","vote_average":7.2},
	{"id":272,"title":"Batman Begins","poster_path":null}
]}`

func TestSearchSendsEncodedQuery(t *testing.T) {
	fake := &fakeTMDB{body: twoMovies}
	c := newTestClient(t, fake, "k3y")

	movies, err := c.Search(context.Background(), "batman")
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, int64(268), movies[0].ID)
	assert.Equal(t, "Batman", movies[0].Title)
	assert.Equal(t, "/a.jpg", movies[0].PosterPath)
	assert.Equal(t, "1989", movies[0].Year())
	assert.Empty(t, movies[1].PosterPath)

	req := fake.last(t)
	assert.Equal(t, "/search/movie", req.path)
	assert.Equal(t, "batman", req.query.Get("query"))
	assert.Equal(t, "k3y", req.query.Get("api_key"))
	assert.Empty(t, req.query.Get("sort_by"))
}

func TestSearchEscapesSpecialCharacters(t *testing.T) {
	fake := &fakeTMDB{body: twoMovies}
	c := newTestClient(t, fake, "k3y")

	_, err := c.Search(context.Background(), "fast & furious")
	require.NoError(t, err)
	assert.Equal(t, "fast & furious", fake.last(t).query.Get("query"))
}

func TestDiscoverPopular(t *testing.T) {
	fake := &fakeTMDB{body: twoMovies}
	c := newTestClient(t, fake, "k3y")

	_, err := c.DiscoverPopular(context.Background())
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, "/discover/movie", req.path)
	assert.Equal(t, "popularity.desc", req.query.Get("sort_by"))
	assert.False(t, req.query.Has("query"))
}

func TestSectionEndpoints(t *testing.T) {
	fake := &fakeTMDB{body: twoMovies}
	c := newTestClient(t, fake, "k3y")

	_, err := c.TopRated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/movie/top_rated", fake.last(t).path)

	_, err = c.NowPlaying(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/movie/now_playing", fake.last(t).path)
	assert.Equal(t, "k3y", fake.last(t).query.Get("api_key"))
}

func TestEmptyResultsIsNotAnError(t *testing.T) {
	fake := &fakeTMDB{body: `{"page":1,"results":[]}`}
	c := newTestClient(t, fake, "k3y")

	movies, err := c.Search(context.Background(), "zzz_no_such_movie")
	require.NoError(t, err)
	assert.NotNil(t, movies)
	assert.Empty(t, movies)

	fake.body = `{"page":1}`
	movies, err = c.DiscoverPopular(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, movies)
	assert.Empty(t, movies)
}

func TestUnauthorizedIsAuthError(t *testing.T) {
	fake := &fakeTMDB{status: http.StatusUnauthorized, body: `{"status_code":7}`}
	c := newTestClient(t, fake, "bad")

	_, err := c.Search(context.Background(), "batman")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Equal(t, "Authentication failed. Please check if your API Key is correct.", err.Error())
	assert.True(t, IsAuth(err))
}

func TestServerErrorIsFetchError(t *testing.T) {
	fake := &fakeTMDB{status: http.StatusInternalServerError, body: `oops`}
	c := newTestClient(t, fake, "k3y")

	_, err := c.TopRated(context.Background())
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.Status)
	assert.Equal(t, "Failed to fetch movies: 500 Internal Server Error", err.Error())
	assert.False(t, IsAuth(err))
}

func TestMalformedBodyIsFetchError(t *testing.T) {
	fake := &fakeTMDB{body: `{"results":`}
	c := newTestClient(t, fake, "k3y")

	_, err := c.NowPlaying(context.Background())
	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestTransportFailureIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(Config{Keys: StaticKey("k3y"), BaseURL: base})
	_, err := c.Search(context.Background(), "batman")
	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestMissingKeySkipsRequest(t *testing.T) {
	fake := &fakeTMDB{body: twoMovies}
	c := newTestClient(t, fake, "  ")

	_, err := c.Search(context.Background(), "batman")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
	assert.True(t, IsAuth(err))
	assert.Empty(t, fake.requests)
}

func TestReadTokenIsSentAsBearer(t *testing.T) {
	fake := &fakeTMDB{body: twoMovies}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, ReadToken: "tok"})

	_, err := c.DiscoverPopular(context.Background())
	require.NoError(t, err)
	req := fake.last(t)
	assert.Equal(t, "Bearer tok", req.auth)
	assert.False(t, req.query.Has("api_key"))
}

func TestKeySourceIsReadPerRequest(t *testing.T) {
	fake := &fakeTMDB{body: twoMovies}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	keys := &mutableKey{key: "old"}
	c := New(Config{Keys: keys, BaseURL: srv.URL})

	_, err := c.TopRated(context.Background())
	require.NoError(t, err)
	keys.key = "new"
	_, err = c.TopRated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", fake.last(t).query.Get("api_key"))
}

type mutableKey struct{ key string }

func (m *mutableKey) APIKey() string { return m.key }

func TestPosterURL(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/a.jpg", c.PosterURL("/a.jpg"))
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/a.jpg", c.PosterURL("a.jpg"))
	assert.Empty(t, c.PosterURL(""))
	assert.Equal(t, "http://img/x/b.png", PosterURL("http://img/x/", "/b.png"))
}
