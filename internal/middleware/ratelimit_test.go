package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Nairasmine/backend/internal/config"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func doRequest(e *echo.Echo, h echo.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/pdfs", nil)
	req.Header.Set("X-Real-Ip", "10.0.0.1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/pdfs")
	_ = h(c)
	return rec
}

func TestTokenBucketExhaustion(t *testing.T) {
	rdb := testRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}

	e := echo.New()
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	h := NewTokenBucket(cfg, rdb)(ok)

	for i := 0; i < 2; i++ {
		if rec := doRequest(e, h); rec.Code != http.StatusOK {
			t.Fatalf("request %d: code = %d, want 200", i+1, rec.Code)
		}
	}
	rec := doRequest(e, h)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted bucket: code = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("429 must carry Retry-After")
	}
}

// A nil Redis client disables limiting entirely instead of blocking
// traffic.
func TestTokenBucketDisabledWithoutRedis(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
	e := echo.New()
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	h := NewTokenBucket(cfg, nil)(ok)

	for i := 0; i < 5; i++ {
		if rec := doRequest(e, h); rec.Code != http.StatusOK {
			t.Fatalf("request %d: code = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestBuildRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/pdfs?q=go", nil)
	req.Header.Set("X-Real-Ip", "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/pdfs")
	c.Set("user_id", float64(7))

	cases := map[string]string{
		"ip":         "rl:ip:10.0.0.1",
		"user":       "rl:user:7",
		"route":      "rl:route:GET /v1/pdfs",
		"user_route": "rl:user:7:route:GET /v1/pdfs",
	}
	for strategy, want := range cases {
		cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}
		if got := buildRateKey(cfg, c); got != want {
			t.Fatalf("strategy %s: key = %q, want %q", strategy, got, want)
		}
	}
}
