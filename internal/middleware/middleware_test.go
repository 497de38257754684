package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/clock"
	"github.com/iliyamo/seat-booking/internal/config"
	"github.com/iliyamo/seat-booking/internal/utils"
)

const secret = "test-secret"

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	return c.String(http.StatusOK, HolderID(c)+"/"+Role(c))
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	tok, err := utils.NewAccessToken(secret, "alice", "CUSTOMER", time.Minute)
	require.NoError(t, err)
	other, err := utils.NewAccessToken("other-secret", "alice", "CUSTOMER", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + tok.Token, http.StatusOK, "alice/CUSTOMER"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + other.Token, http.StatusUnauthorized, ""},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := serve(e, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret), RequireRole("CUSTOMER"))

	for role, want := range map[string]int{"CUSTOMER": http.StatusOK, "OWNER": http.StatusForbidden, "": http.StatusForbidden} {
		tok, err := utils.NewAccessToken(secret, "alice", role, time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
		assert.Equal(t, want, serve(e, req).Code, "role=%q", role)
	}
}

func limiterConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       5,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
}

func TestTokenBucket(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cfg := limiterConfig()
	args := []interface{}{now.UnixMilli(), cfg.Capacity, cfg.RefillTokens, int64(1000), int64(600)}
	key := []string{"rl:ip:192.0.2.1"}

	db, mock := redismock.NewClientMock()
	log, _ := test.NewNullLogger()
	e := echo.New()
	e.POST("/v1/holds", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		NewTokenBucket(cfg, db, clock.NewManual(now), log))

	mock.ExpectEvalSha(tokenBucket.Hash(), key, args...).SetVal([]interface{}{int64(1), int64(4), int64(0)})
	rec := serve(e, httptest.NewRequest(http.MethodPost, "/v1/holds", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))

	mock.ExpectEvalSha(tokenBucket.Hash(), key, args...).SetVal([]interface{}{int64(0), int64(0), int64(1500)})
	rec = serve(e, httptest.NewRequest(http.MethodPost, "/v1/holds", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	mock.ExpectEvalSha(tokenBucket.Hash(), key, args...).SetErr(errors.New("connection refused"))
	rec = serve(e, httptest.NewRequest(http.MethodPost, "/v1/holds", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucketDisabled(t *testing.T) {
	cfg := limiterConfig()
	cfg.Enabled = false
	e := echo.New()
	e.POST("/v1/holds", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		NewTokenBucket(cfg, nil, nil, logrus.New()))

	assert.Equal(t, http.StatusCreated, serve(e, httptest.NewRequest(http.MethodPost, "/v1/holds", nil)).Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/holds", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/holds")
	c.Set(userIDKey, "alice")

	cfg := limiterConfig()
	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:alice:route:POST /v1/holds", buildRateKey(cfg, c))

	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:192.0.2.1:user:alice:route:POST /v1/holds", buildRateKey(cfg, c))
}

func TestRequestLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	e := echo.New()
	e.Use(RequestLogger(log))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/missing", func(c echo.Context) error { return echo.ErrNotFound })

	serve(e, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, http.StatusOK, hook.LastEntry().Data["status"])

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
