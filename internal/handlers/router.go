package handlers

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/klauspost/compress/gzhttp"

	"github.com/handsomefox/moviescope/internal/env"
	"github.com/handsomefox/moviescope/internal/metrics"
)

type RouterOptions struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	// Dist holds the built view. Nil disables it.
	Dist           fs.FS
	AllowedOrigins []string
}

// NewRouter wires the API, health and metrics endpoints and the view behind
// the shared middleware stack.
func NewRouter(h *Handler, opts RouterOptions) (http.Handler, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(log, &httplog.Options{
		Level:         slog.LevelInfo,
		Schema:        httplog.SchemaECS.Concise(!env.Current.IsProduction()),
		RecoverPanics: true,
		Skip: func(req *http.Request, status int) bool {
			return req.URL.Path == "/healthz" && status == http.StatusOK
		},
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
	r.Use(MiddlewareMetrics(rec))

	r.Method(http.MethodGet, "/healthz", Adapt(h.getHealth))
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}
	r.Route("/api", h.RegisterRoutes)

	if opts.Dist != nil {
		spa, err := SPA(opts.Dist)
		if err != nil {
			return nil, err
		}
		r.Handle("/*", spa)
	}
	return r, nil
}
