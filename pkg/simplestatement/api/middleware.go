package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
)

// CorrelationIDHeader carries the request correlation id in both directions
const CorrelationIDHeader = "X-Correlation-Id"

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// CorrelationID echoes the incoming X-Correlation-Id or generates one
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := strings.TrimSpace(r.Header.Get(CorrelationIDHeader))
		if cid == "" {
			cid = uuid.NewString()
		}

		w.Header().Set(CorrelationIDHeader, cid)
		ctx := context.WithValue(r.Context(), correlationIDKey, cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationIDFromContext returns the request's correlation id, if any
func CorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

// Recoverer turns panics into a JSON 500
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic serving request",
						"correlation_id", CorrelationIDFromContext(r.Context()),
						"panic", rec,
						"stack", string(debug.Stack()))
					writeError(w, r, http.StatusInternalServerError, "internal_error", "An internal server error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger *slog.Logger, r *http.Request) *slog.Logger {
	if cid := CorrelationIDFromContext(r.Context()); cid != "" {
		return logger.With("correlation_id", cid)
	}
	return logger
}

// clientIP returns the host part of RemoteAddr
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
