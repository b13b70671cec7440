// Package logger provides slog helpers for the app.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"github.com/handsomefox/moviescope/internal/env"
)

type Options struct {
	Level slog.Level
	// File receives a JSON copy of every record when set.
	File string
	Env  env.Environment
}

// New builds the process logger: text on stderr for local runs, JSON in
// production, fanned out to an optional JSON log file. The returned func
// closes the file.
func New(opts Options) (*slog.Logger, func() error) {
	console := consoleHandler(os.Stderr, opts)
	if strings.TrimSpace(opts.File) == "" {
		return slog.New(console), func() error { return nil }
	}

	//nolint:gosec // path comes from operator config.
	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		l := slog.New(console)
		l.Error("Failed to open log file, using stderr only", slog.String("file", opts.File), Error(err))
		return l, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(slogmulti.Fanout(console, fileHandler)), file.Close
}

// NewWithWriters is New without touching the filesystem.
func NewWithWriters(console, file io.Writer, opts Options) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		consoleHandler(console, opts),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: opts.Level}),
	))
}

func consoleHandler(w io.Writer, opts Options) slog.Handler {
	ho := &slog.HandlerOptions{Level: opts.Level}
	if opts.Env.IsProduction() {
		ho.AddSource = true
		return slog.NewJSONHandler(w, ho)
	}
	return slog.NewTextHandler(w, ho)
}

func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "nil")
	}
	return slog.String("err", err.Error())
}
