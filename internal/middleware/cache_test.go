package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Nairasmine/backend/internal/config"
)

func cacheConfig(maxBody int) config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: maxBody,
	}
}

func serveCached(e *echo.Echo, mw echo.MiddlewareFunc, h echo.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/pdfs?q=go", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/pdfs")
	_ = mw(h)(c)
	return rec
}

func TestCacheHitOnSecondRequest(t *testing.T) {
	rdb := testRedis(t)
	e := echo.New()
	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"pdfs": []string{"Intro to Go"}})
	}
	mw := NewRedisCache(cacheConfig(1<<20), rdb)

	first := serveCached(e, mw, h)
	if first.Code != http.StatusOK || first.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("first: code=%d cache=%q", first.Code, first.Header().Get("X-Cache"))
	}
	second := serveCached(e, mw, h)
	if second.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second: cache=%q, want HIT", second.Header().Get("X-Cache"))
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatal("cached body must match the original byte for byte")
	}
}

// Responses over the body cap (document payloads) bypass the cache.
func TestCacheSkipsOversizedBodies(t *testing.T) {
	rdb := testRedis(t)
	e := echo.New()
	calls := 0
	big := make([]byte, 256)
	h := func(c echo.Context) error {
		calls++
		return c.Blob(http.StatusOK, "application/pdf", big)
	}
	mw := NewRedisCache(cacheConfig(64), rdb)

	serveCached(e, mw, h)
	rec := serveCached(e, mw, h)
	if rec.Header().Get("X-Cache") == "HIT" {
		t.Fatal("oversized response must not be served from cache")
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
	if rec.Body.Len() != len(big) {
		t.Fatalf("body truncated to %d bytes", rec.Body.Len())
	}
}

func TestCacheDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "ok")
	}
	mw := NewRedisCache(cacheConfig(1<<20), nil)

	serveCached(e, mw, h)
	serveCached(e, mw, h)
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2 with caching disabled", calls)
	}
}
