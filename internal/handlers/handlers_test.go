package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"finance-tracker/internal/analytics"
	"finance-tracker/internal/auth"
	"finance-tracker/internal/cache"
	"finance-tracker/internal/config"
	"finance-tracker/internal/storage"
)

// testEnv wires a full pipeline against an in-memory database.
type testEnv struct {
	t      *testing.T
	h      *Handlers
	router http.Handler
	db     *storage.DB
	codec  *auth.TokenCodec
}

// testConfig returns a config with limits high enough to stay out of the
// way; rate-limit tests tighten individual policies.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.JWTSecret = "test-secret"
	cfg.RateLimits.Auth.Max = 1000
	cfg.RateLimits.Transactions.Max = 1000
	cfg.RateLimits.Analytics.Max = 1000
	cfg.RateLimits.General.Max = 1000
	cfg.RateLimits.FailedLogins.Max = 1000
	return cfg
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}

	db, err := storage.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	codec := auth.NewTokenCodec([]byte(cfg.JWTSecret), cfg.TokenTTL.Std())
	agg := analytics.New(db, cache.NewMemory())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(db, agg, codec, cfg, logger)

	return &testEnv{t: t, h: h, router: h.NewRouter(), db: db, codec: codec}
}

// do performs a request against the router. body may be nil or any
// JSON-marshalable value; cookie may be nil.
func (e *testEnv) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// doFrom is do with an explicit client address.
func (e *testEnv) doFrom(addr, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = addr + ":12345"
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// register creates an account through the API and returns its session
// cookie.
func (e *testEnv) register(email, password, role string) *http.Cookie {
	e.t.Helper()

	body := map[string]string{"email": email, "password": password}
	if role != "" {
		body["role"] = role
	}
	w := e.do("POST", "/api/auth/register", body, nil)
	require.Equal(e.t, http.StatusCreated, w.Code, "register %s: %s", email, w.Body.String())

	return sessionCookie(e.t, w)
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == TokenCookieName {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}
