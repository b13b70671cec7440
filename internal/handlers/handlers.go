// Package handlers exposes the discovery state over a small JSON API and
// serves the embedded view.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/handsomefox/moviescope/internal/app"
	"github.com/handsomefox/moviescope/internal/counters"
)

// StoreStatus reports whether the counter store session is up.
type StoreStatus interface {
	Connected() bool
}

type Handler struct {
	app       *app.App
	store     StoreStatus
	imageBase string
}

type Config struct {
	App       *app.App
	Store     StoreStatus
	ImageBase string
}

type stateResponse struct {
	app.Snapshot
	ImageBase string `json:"image_base"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type keyRequest struct {
	APIKey string `json:"api_key"`
}

type trendingResponse struct {
	Movies []counters.Counter `json:"movies"`
}

type healthResponse struct {
	Status       string `json:"status"`
	CounterStore string `json:"counter_store"`
}

func New(cfg *Config) (*Handler, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	return &Handler{
		app:       cfg.App,
		store:     cfg.Store,
		imageBase: cfg.ImageBase,
	}, nil
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Method(http.MethodGet, "/state", Adapt(h.getState))
	r.Method(http.MethodPost, "/search", Adapt(h.postSearch))
	r.Method(http.MethodGet, "/trending", Adapt(h.getTrending))

	r.Route("/key", func(r chi.Router) {
		r.Method(http.MethodPut, "/", Adapt(h.putKey))
		r.Method(http.MethodDelete, "/", Adapt(h.deleteKey))
	})
}

func (h *Handler) state(ctx context.Context) stateResponse {
	return stateResponse{Snapshot: h.app.Snapshot(ctx), ImageBase: h.imageBase}
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, h.state(r.Context()))
	return nil
}

// postSearch feeds the debounced input. The result shows up in later state
// polls, so it answers 202 with the state as of now.
func (h *Handler) postSearch(w http.ResponseWriter, r *http.Request) error {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	h.app.Search().SetInput(req.Query)
	writeJSON(w, http.StatusAccepted, h.state(r.Context()))
	return nil
}

func (h *Handler) getTrending(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, trendingResponse{Movies: h.app.RefreshTrending(r.Context())})
	return nil
}

func (h *Handler) putKey(w http.ResponseWriter, r *http.Request) error {
	var req keyRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return badRequest("api key is required")
	}
	if err := h.app.SetAPIKey(r.Context(), req.APIKey); err != nil {
		return err
	}
	slog.InfoContext(r.Context(), "TMDB API key updated")
	writeJSON(w, http.StatusOK, h.state(r.Context()))
	return nil
}

func (h *Handler) deleteKey(w http.ResponseWriter, r *http.Request) error {
	if err := h.app.ClearAPIKey(); err != nil {
		return err
	}
	slog.InfoContext(r.Context(), "TMDB API key cleared")
	writeJSON(w, http.StatusOK, h.state(r.Context()))
	return nil
}

func (h *Handler) getHealth(w http.ResponseWriter, _ *http.Request) error {
	resp := healthResponse{Status: "ok", CounterStore: "disabled"}
	if h.store != nil {
		resp.CounterStore = "unavailable"
		if h.store.Connected() {
			resp.CounterStore = "connected"
		}
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}
