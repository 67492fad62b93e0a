package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/ayo6706/escrow-market/internal/api/problem"
	"github.com/ayo6706/escrow-market/internal/idempotency"
	"github.com/ayo6706/escrow-market/internal/observability"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayHeader         = "X-Idempotent-Replay"

	maxIdempotencyKeyLen  = 128
	maxIdempotentBodySize = 1 << 20
)

// idempotencyGuard runs one mutating request under the Idempotency-Key contract.
type idempotencyGuard struct {
	store  *idempotency.Store
	logger *zap.Logger
}

// IdempotencyMiddleware makes the wrapped route safe to retry. The first
// request with a key runs and its response is stored; a repeat with the same
// body replays it, a repeat with a different body is a 409. A 5xx response is
// not stored, so the client may retry with the same key.
func IdempotencyMiddleware(store *idempotency.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	g := &idempotencyGuard{store: store, logger: logger}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			g.serve(w, r, next)
		})
	}
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	rawKey := r.Header.Get(IdempotencyKeyHeader)
	switch {
	case rawKey == "":
		g.reject(w, r, "missing_key", http.StatusBadRequest, "idempotency/missing-key", "Idempotency-Key header is required")
		return
	case len(rawKey) > maxIdempotencyKeyLen:
		g.reject(w, r, "invalid_key", http.StatusBadRequest, "idempotency/invalid-key", "Idempotency-Key is too long")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBodySize))
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.Type("request/invalid-body"), "", "failed to read request body")
		return
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	// Keys are scoped per user so two clients cannot collide on one key.
	key := scopedKey(UserIDFromContext(r.Context()), rawKey)
	hash := hashRequest(r.Method, r.URL.Path, body)

	if g.replayExisting(w, r, key, hash) {
		return
	}

	reserved, err := g.store.Reserve(r.Context(), key, hash, r.Method, r.URL.Path)
	if err != nil {
		g.logger.Error("idempotency reserve failed", zap.Error(err))
		g.reject(w, r, "reserve_error", http.StatusServiceUnavailable, "idempotency/unavailable", "idempotency unavailable, try again later")
		return
	}
	if !reserved {
		// Lost the race to a concurrent request with the same key.
		g.awaitAndReplay(w, r, key, hash, "replay_after_reserve")
		return
	}
	observability.IncrementIdempotencyEvent("reserved")

	recorder := &bodyRecorder{ResponseWriter: w}
	next.ServeHTTP(recorder, r)
	g.complete(r, key, hash, recorder)
}

// replayExisting answers from a stored outcome and reports whether it did.
func (g *idempotencyGuard) replayExisting(w http.ResponseWriter, r *http.Request, key, hash string) bool {
	rec, err := g.store.Lookup(r.Context(), key, hash)
	switch {
	case err == nil:
		observability.IncrementIdempotencyEvent("replay")
		respondFromRecord(w, rec)
		return true
	case errors.Is(err, idempotency.ErrHashMismatch):
		g.reject(w, r, "hash_mismatch", http.StatusConflict, "idempotency/key-conflict", "Idempotency-Key was already used for a different request")
		return true
	case errors.Is(err, idempotency.ErrInProgress):
		g.awaitAndReplay(w, r, key, hash, "replay_after_wait")
		return true
	case errors.Is(err, idempotency.ErrNotFound):
		return false
	default:
		// Fall through to Reserve, which is authoritative.
		observability.IncrementIdempotencyEvent("lookup_error")
		g.logger.Warn("idempotency lookup failed", zap.Error(err))
		return false
	}
}

func (g *idempotencyGuard) awaitAndReplay(w http.ResponseWriter, r *http.Request, key, hash, event string) {
	rec, err := g.store.WaitForCompletion(r.Context(), key, hash)
	if err == nil {
		observability.IncrementIdempotencyEvent(event)
		respondFromRecord(w, rec)
		return
	}
	g.logger.Warn("idempotency wait failed", zap.Error(err), zap.String("key", key))
	if errors.Is(err, idempotency.ErrHashMismatch) {
		g.reject(w, r, "hash_mismatch", http.StatusConflict, "idempotency/key-conflict", "Idempotency-Key was already used for a different request")
		return
	}
	g.reject(w, r, "in_progress_conflict", http.StatusConflict, "idempotency/in-progress", "a request with this Idempotency-Key is still being processed")
}

func (g *idempotencyGuard) complete(r *http.Request, key, hash string, recorder *bodyRecorder) {
	status := recorder.status
	if status == 0 {
		status = http.StatusOK
	}
	if status >= http.StatusInternalServerError {
		if err := g.store.Release(r.Context(), key, hash); err != nil {
			g.logger.Warn("idempotency release failed", zap.Error(err), zap.String("key", key))
		}
		observability.IncrementIdempotencyEvent("released")
		return
	}

	contentType := recorder.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	if _, err := g.store.Finalize(r.Context(), key, hash, status, recorder.body.Bytes(), contentType); err != nil {
		observability.IncrementIdempotencyEvent("finalize_error")
		g.logger.Warn("idempotency finalize failed", zap.Error(err), zap.String("key", key))
		return
	}
	observability.IncrementIdempotencyEvent("finalized")
}

func (g *idempotencyGuard) reject(w http.ResponseWriter, r *http.Request, event string, status int, slug, detail string) {
	observability.IncrementIdempotencyEvent(event)
	problem.Write(w, r, status, problem.Type(slug), "", detail)
}

func scopedKey(userID, key string) string {
	if userID == "" {
		return key
	}
	return userID + ":" + key
}

func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// bodyRecorder tees the response so it can be stored after the handler returns.
type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (br *bodyRecorder) WriteHeader(code int) {
	if br.status == 0 {
		br.status = code
	}
	br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
	if br.status == 0 {
		br.status = http.StatusOK
	}
	br.body.Write(b)
	return br.ResponseWriter.Write(b)
}

func respondFromRecord(w http.ResponseWriter, rec *idempotency.Record) {
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set(ReplayHeader, rec.ServedBy)
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}
