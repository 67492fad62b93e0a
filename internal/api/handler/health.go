package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const readinessTimeout = time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves /health/live and /health/ready.
type HealthHandler struct {
	db    Pinger
	redis redis.Cmdable
}

// NewHealthHandler accepts nil dependencies; a nil dependency is not checked.
func NewHealthHandler(db Pinger, redis redis.Cmdable) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports whether Postgres and Redis answer. Redis only backs drafts and
// the idempotency cache, but drafts are unusable without it, so both gate
// readiness.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{}
	ready := true
	probe := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			zap.L().Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			return
		}
		checks[name] = "ok"
	}
	if h.db != nil {
		probe("postgres", h.db.Ping)
	}
	if h.redis != nil {
		probe("redis", func(ctx context.Context) error { return h.redis.Ping(ctx).Err() })
	}

	if !ready {
		RespondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": checks})
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
}
