package middleware

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/escrow-market/internal/idempotency"
	"github.com/ayo6706/escrow-market/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newIdempotentHandler(t *testing.T, status int) (http.Handler, *atomic.Int32, *memstore.KeyStore) {
	t.Helper()
	keys := memstore.NewKeyStore()
	store := idempotency.NewStore(nil, keys, time.Hour)
	calls := &atomic.Int32{}
	h := IdempotencyMiddleware(store, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d,"echo":%s}`, n, body)
	}))
	return h, calls, keys
}

func post(h http.Handler, key, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/v1/payouts", strings.NewReader(body))
	if key != "" {
		r.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestIdempotencyMiddleware_ReplaysFirstResponse(t *testing.T) {
	h, calls, _ := newIdempotentHandler(t, http.StatusAccepted)

	first := post(h, "k1", `{"amount":"5"}`)
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get(ReplayHeader))

	second := post(h, "k1", `{"amount":"5"}`)
	require.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, idempotency.SourcePostgres, second.Header().Get(ReplayHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyMiddleware_Rejections(t *testing.T) {
	h, calls, _ := newIdempotentHandler(t, http.StatusCreated)

	w := post(h, "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(h, strings.Repeat("k", maxIdempotencyKeyLen+1), `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusCreated, post(h, "k2", `{"amount":"1"}`).Code)
	w = post(h, "k2", `{"amount":"2"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "key-conflict")
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyMiddleware_ServerErrorReleasesKey(t *testing.T) {
	h, calls, keys := newIdempotentHandler(t, http.StatusServiceUnavailable)

	require.Equal(t, http.StatusServiceUnavailable, post(h, "k3", `{}`).Code)
	assert.Zero(t, keys.Len())
	require.Equal(t, http.StatusServiceUnavailable, post(h, "k3", `{}`).Code)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyMiddleware_KeysAreScopedPerUser(t *testing.T) {
	assert.Equal(t, "42:abc", scopedKey("42", "abc"))
	assert.Equal(t, "abc", scopedKey("", "abc"))
	assert.NotEqual(t, hashRequest("POST", "/a", []byte("b")), hashRequest("POST", "/ab", nil))
}

func TestTraceMiddleware(t *testing.T) {
	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	cases := []struct {
		name   string
		header string
		value  string
		keep   bool
	}{
		{name: "trace header kept", header: TraceHeader, value: "bot-123", keep: true},
		{name: "request id accepted", header: "X-Request-ID", value: "req_9.1", keep: true},
		{name: "unsafe characters replaced", header: TraceHeader, value: "a b\n", keep: false},
		{name: "too long replaced", header: TraceHeader, value: strings.Repeat("x", maxTraceLen+1), keep: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(tc.header, tc.value)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, w.Header().Get(TraceHeader))
			if tc.keep {
				assert.Equal(t, tc.value, seen)
			} else {
				assert.NotEqual(t, tc.value, seen)
			}
		})
	}
}

func TestBotKeyMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name       string
		configured string
		sent       string
		want       int
	}{
		{name: "match", configured: "secret", sent: "secret", want: http.StatusNoContent},
		{name: "mismatch", configured: "secret", sent: "guess", want: http.StatusUnauthorized},
		{name: "unconfigured", configured: "", sent: "", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/auth/token", nil)
			r.Header.Set(BotKeyHeader, tc.sent)
			w := httptest.NewRecorder()
			BotKeyMiddleware(tc.configured)(ok).ServeHTTP(w, r)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAuthMiddlewareAndRequireRole(t *testing.T) {
	SetJWTSecret("middleware-test-secret-0123456789")
	SetJWTValidation("issuer", "audience")

	var gotUser string
	h := AuthMiddleware(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
	})))

	serve := func(token string) int {
		r := httptest.NewRequest(http.MethodGet, "/v1/admin/disputes", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	admin, _, err := IssueToken(7, RoleAdmin, time.Hour)
	require.NoError(t, err)
	user, _, err := IssueToken(8, RoleUser, time.Hour)
	require.NoError(t, err)
	expired, _, err := IssueToken(7, RoleAdmin, -time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, serve(""))
	assert.Equal(t, http.StatusUnauthorized, serve("garbage"))
	assert.Equal(t, http.StatusUnauthorized, serve(expired))
	assert.Equal(t, http.StatusForbidden, serve(user))
	assert.Equal(t, http.StatusOK, serve(admin))
	assert.Equal(t, "7", gotUser)
}
