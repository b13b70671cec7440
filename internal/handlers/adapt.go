package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/handsomefox/moviescope/internal/logger"
)

type HandlerWithErr func(w http.ResponseWriter, r *http.Request) error

// Error is a handler failure with a status and a message safe to show.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message + " code=" + strconv.Itoa(e.Status)
}

type errorResponse struct {
	Error string `json:"error"`
}

// Adapt turns a handler returning an error into an http.Handler. *Error keeps
// its status; anything else is logged and reported as a 500.
func Adapt(h HandlerWithErr) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		var statusErr *Error
		if errors.As(err, &statusErr) {
			writeJSON(w, statusErr.Status, errorResponse{Error: statusErr.Message})
			return
		}
		slog.ErrorContext(r.Context(), "Handler failed", slog.String("path", r.URL.Path), logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	})
}
