package internal

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"erp-asset-api/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const traceIDHeader = "X-Trace-Id"

// NewLogger builds the process logger from config and installs it as the
// zerolog global.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", "erp-asset-api").
		Logger()
	log.Logger = logger
	return logger
}

// TraceIDFromRequest returns the request's trace id, or "".
func TraceIDFromRequest(r *http.Request) string {
	return r.Header.Get(traceIDHeader)
}

// RequestLogger assigns a trace id, attaches a request-scoped logger to
// the context, and logs each request on exit.
func RequestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(traceIDHeader)
			if _, err := uuid.Parse(traceID); err != nil {
				traceID = uuid.New().String()
				r.Header.Set(traceIDHeader, traceID)
			}
			w.Header().Set(traceIDHeader, traceID)

			logger := base.With().Str("trace_id", traceID).Logger()
			r = r.WithContext(logger.WithContext(r.Context()))

			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			evt := logger.Info()
			if rw.code >= http.StatusInternalServerError {
				evt = logger.Error()
			}
			evt.Str("method", r.Method).
				Str("route", route).
				Int("status", rw.code).
				Int64("ms", time.Since(start).Milliseconds()).
				Msg("request")
		})
	}
}
