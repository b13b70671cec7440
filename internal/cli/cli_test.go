package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeTMDB(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Query().Get("api_key") != "test-key":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status_code":7}`))
		case r.URL.Path == "/search/movie" && r.URL.Query().Get("query") == "batman":
			_, _ = w.Write([]byte(`{"results":[{"id":268,"title":"Batman","poster_path":"/b.jpg","release_date":"1989-06-23","vote_average":7.2}]}`))
		default:
			_, _ = w.Write([]byte(`{"results":[]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, apiKey string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TMDB_BASE_URL", fakeTMDB(t).URL)
	t.Setenv("TMDB_API_KEY", apiKey)
	t.Setenv("COUNTER_BACKEND", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(dir, "counters.db"))
	t.Setenv("KEYSTORE_PATH", filepath.Join(dir, "key.env"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_ENABLED", "false")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchThenTrending(t *testing.T) {
	setupEnv(t, "test-key")

	out, err := run(t, "search", "batman")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Batman (1989)  7.2")

	_, err = run(t, "search", "batman")
	require.NoError(t, err)

	out, err = run(t, "trending")
	require.NoError(t, err)
	assert.Equal(t, "1. Batman  (2 searches)\n", out)
}

func TestSearchNoResults(t *testing.T) {
	setupEnv(t, "test-key")

	out, err := run(t, "search", "zzz_no_such_movie")
	require.NoError(t, err)
	assert.Equal(t, "No movies found for your search.\n", out)

	out, err = run(t, "trending")
	require.NoError(t, err)
	assert.Equal(t, "No searches recorded yet.\n", out)
}

func TestSearchBadKey(t *testing.T) {
	setupEnv(t, "wrong")

	_, err := run(t, "search", "batman")
	require.Error(t, err)
	assert.Equal(t, "Authentication failed. Please check if your API Key is correct.", err.Error())
}

func TestInvalidConfig(t *testing.T) {
	setupEnv(t, "test-key")
	t.Setenv("COUNTER_BACKEND", "mongo")

	_, err := run(t, "trending")
	assert.ErrorContains(t, err, "load config")
}
