package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCounts(t *testing.T) {
	p := New(prometheus.NewRegistry())

	p.CatalogRequest("/search/movie", OutcomeOK, 10*time.Millisecond)
	p.CatalogRequest("/search/movie", OutcomeOK, 10*time.Millisecond)
	p.CatalogRequest("/search/movie", OutcomeAuth, time.Millisecond)
	p.StoreOperation("increment", OutcomeError)
	p.StaleResponse()
	p.HTTPRequest("/api/state", http.StatusOK, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(p.catalogRequests.WithLabelValues("/search/movie", OutcomeOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.catalogRequests.WithLabelValues("/search/movie", OutcomeAuth)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.storeOps.WithLabelValues("increment", OutcomeError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.staleResponses), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.httpRequests.WithLabelValues("/api/state", "2xx")), 0)
}

func TestHandlerExposesCollectors(t *testing.T) {
	p := New(prometheus.NewRegistry())
	p.StaleResponse()

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "moviescope_search_stale_responses_total 1")
}

func TestStatusBucket(t *testing.T) {
	assert.Equal(t, "2xx", statusBucket(204))
	assert.Equal(t, "4xx", statusBucket(401))
	assert.Equal(t, "5xx", statusBucket(503))
	assert.Equal(t, "0", statusBucket(0))
}

func TestNopDoesNotPanic(t *testing.T) {
	var r Recorder = Nop{}
	r.CatalogRequest("x", OutcomeOK, 0)
	r.StoreOperation("x", OutcomeOK)
	r.StaleResponse()
	r.HTTPRequest("x", 200, 0)
}
