package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	TraceHeader   = "X-Trace-ID"
	requestHeader = "X-Request-ID"
	maxTraceLen   = 64
)

// TraceMiddleware tags each request with a trace id. An id sent by the chat
// front-end (X-Trace-ID or X-Request-ID) is kept so both sides log the same
// value; anything unusable is replaced with a fresh UUID.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = r.Header.Get(requestHeader)
		}
		if !validTraceID(traceID) {
			traceID = uuid.NewString()
		}
		r.Header.Set(TraceHeader, traceID)
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(contextWithTraceID(r.Context(), traceID)))
	})
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

func contextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceContextKey, traceID)
}
