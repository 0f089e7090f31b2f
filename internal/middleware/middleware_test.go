package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/auth"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

type stubResolver struct {
	id  auth.Identity
	err error
	got string
}

func (s *stubResolver) Resolve(_ context.Context, header string) (auth.Identity, error) {
	s.got = header
	return s.id, s.err
}

func okHandler(seen *auth.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = auth.FromContext(r.Context())
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticateStoresIdentity(t *testing.T) {
	res := &stubResolver{id: auth.Admin("admin")}
	var seen auth.Identity
	h := Authenticate(res, logger.Nop())(okHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/api/journals", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, seen.IsAdmin())
	assert.Equal(t, "Basic abc", res.got)
}

func TestAuthenticateRejects(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"missing", apperr.Newf(apperr.Unauthenticated, "Missing credentials"), http.StatusUnauthorized, `{"error":"Missing credentials"}`},
		{"forbidden", apperr.Newf(apperr.Forbidden, "Invalid credentials"), http.StatusForbidden, `{"error":"Invalid credentials"}`},
		{"store down", apperr.New(apperr.Persistence, "lookup", context.DeadlineExceeded), http.StatusInternalServerError, `{"error":"Server error."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Authenticate(&stubResolver{err: tt.err}, logger.Nop())(okHandler(nil))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journals", nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestAuthenticateWebSocketQueryToken(t *testing.T) {
	res := &stubResolver{id: auth.Admin("admin")}
	var downstream *http.Request
	h := Authenticate(res, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downstream = r
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws/events?token=YWRtaW46cGFzcw==&since=5", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "Bearer YWRtaW46cGFzcw==", res.got)

	// The credential is dropped from the URL handed to later handlers.
	require.NotNil(t, downstream)
	assert.Empty(t, downstream.URL.Query().Get("token"))
	assert.Equal(t, "5", downstream.URL.Query().Get("since"))
	assert.NotContains(t, downstream.RequestURI, "YWRtaW46cGFzcw")
	assert.Equal(t, "/ws/events", downstream.URL.Path)
	assert.True(t, auth.FromContext(downstream.Context()).IsAdmin())

	// Plain requests never read the query string.
	res.got = "unset"
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/journals?token=abc", nil))
	assert.Equal(t, "", res.got)
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(auth.WithIdentity(req.Context(), auth.Client("c1", "a@b.c"))))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(auth.WithIdentity(req.Context(), auth.Admin("admin"))))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	h := LoginRateLimit(okHandler(nil))
	send := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "203.0.113.9:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusNoContent, send("/api/clients/login"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("/api/clients/login"))
	assert.Equal(t, http.StatusTooManyRequests, send("/api/clients/set-password"))
	assert.Equal(t, http.StatusNoContent, send("/api/journals"))
}

func TestGenerationRateLimitPerIdentity(t *testing.T) {
	h := GenerationRateLimit(okHandler(nil))
	send := func(id auth.Identity) int {
		req := httptest.NewRequest(http.MethodPost, "/api/journals/x/report", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), id))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	client := auth.Client("gen-client", "c@example.com")
	for i := 0; i < generationClientBurst; i++ {
		require.Equal(t, http.StatusNoContent, send(client))
	}
	assert.Equal(t, http.StatusTooManyRequests, send(client))

	// Other identities have their own buckets.
	assert.Equal(t, http.StatusNoContent, send(auth.Client("other", "o@example.com")))
	assert.Equal(t, http.StatusNoContent, send(auth.Admin("gen-admin")))
}

func TestHostCheck(t *testing.T) {
	h := HostCheck("api.journeygen.app")(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "api.journeygen.app:443"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req.Host = "evil.example"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLimiterSetEvictsIdle(t *testing.T) {
	s := newLimiterSet(1, 1)
	s.once.Do(func() {}) // no janitor in tests
	s.get("a")
	s.entries["a"].lastUse = time.Now().Add(-time.Hour)
	s.get("b")

	s.evict(time.Now())
	assert.NotContains(t, s.entries, "a")
	assert.Contains(t, s.entries, "b")
}

func TestRedisRateLimitFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	h := RedisRateLimit(client, logger.Nop())(okHandler(nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journals", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(okHandler(nil))

	req := httptest.NewRequest(http.MethodOptions, "/api/journals", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Idempotency-Key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
