package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meme-report/internal/config"
	"github.com/tbourn/go-meme-report/internal/http/handlers"
	"github.com/tbourn/go-meme-report/internal/regen"
	"github.com/tbourn/go-meme-report/internal/report"
)

type stubService struct {
	generated int
}

func (s *stubService) Generate(context.Context, bool) (regen.Outcome, error) {
	s.generated++
	return regen.Outcome{Artifact: regen.Artifact{ID: "a1", Name: "report"}, Regenerated: true}, nil
}

func (s *stubService) Report(context.Context) ([]report.TableRow, report.Series, error) {
	return []report.TableRow{{Rank: 1, ID: "B", Title: "Bee", Net: 95}}, report.Series{}, nil
}

func (s *stubService) Stats(context.Context) (int64, *time.Time, error) {
	return 3, nil, nil
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newEngine(t *testing.T, cfg config.Config) (*gin.Engine, *stubService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := &stubService{}
	RegisterRoutes(r, svc, cfg)
	return r, svc
}

func serve(r http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsFallbacks(t *testing.T) {
	r, _ := newEngine(t, testConfig())

	w := serve(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("middleware headers missing: %#v", w.Header())
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("CSP missing")
	}

	w = serve(r, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("memereport_http_requests_total")) {
		t.Fatalf("GET /metrics code=%d", w.Code)
	}

	w = serve(r, http.MethodGet, "/nope", nil)
	var er handlers.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("404 body: %v", err)
	}
	if w.Code != http.StatusNotFound || er.Code != handlers.ErrCodeNotFound || er.RequestID == "" {
		t.Fatalf("GET /nope = %d %+v", w.Code, er)
	}

	if w := serve(r, http.MethodPost, "/health", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_APIMounted(t *testing.T) {
	r, svc := newEngine(t, testConfig())

	if w := serve(r, http.MethodPost, "/api/v1/reports", nil); w.Code != http.StatusCreated {
		t.Fatalf("POST /reports = %d %s", w.Code, w.Body.String())
	}
	if svc.generated != 1 {
		t.Fatalf("generate calls = %d", svc.generated)
	}
	w := serve(r, http.MethodGet, "/api/v1/memes/top", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"id":"B"`)) {
		t.Fatalf("GET /memes/top = %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodGet, "/api/v1/memes/series", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /memes/series = %d", w.Code)
	}
	w = serve(r, http.MethodGet, "/api/v1/stats", nil)
	if w.Code != http.StatusOK || w.Header().Get("ETag") != `W/"votes:3:0"` {
		t.Fatalf("GET /stats = %d etag=%q", w.Code, w.Header().Get("ETag"))
	}
}

func TestRegisterRoutes_CORS(t *testing.T) {
	r, _ := newEngine(t, testConfig())
	w := serve(r, http.MethodGet, "/health", map[string]string{"Origin": "http://anywhere.test"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-all expected '*', got %q", got)
	}

	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://allowed.test"}}
	r, _ = newEngine(t, cfg)
	w = serve(r, http.MethodGet, "/health", map[string]string{"Origin": "http://allowed.test"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://allowed.test" {
		t.Fatalf("expected origin echo, got %q", got)
	}
	w = serve(r, http.MethodGet, "/health", map[string]string{"Origin": "http://evil.test"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("disallowed origin = %d", w.Code)
	}
}

func TestRegisterRoutes_RateLimitsGeneration(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r, svc := newEngine(t, cfg)

	if w := serve(r, http.MethodPost, "/api/v1/reports", nil); w.Code != http.StatusCreated {
		t.Fatalf("first POST = %d", w.Code)
	}
	w := serve(r, http.MethodPost, "/api/v1/reports", nil)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("second POST = %d retry=%q", w.Code, w.Header().Get("Retry-After"))
	}
	var er handlers.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("429 body: %v", err)
	}
	if er.Code != handlers.ErrCodeRateLimited {
		t.Fatalf("limited response code = %q; want %q", er.Code, handlers.ErrCodeRateLimited)
	}
	if svc.generated != 1 {
		t.Fatalf("limited request reached the service")
	}
	for i := 0; i < 3; i++ {
		if w := serve(r, http.MethodGet, "/api/v1/stats", nil); w.Code != http.StatusOK {
			t.Fatalf("read endpoint limited: %d", w.Code)
		}
	}
}

func TestRegisterRoutes_Gzip(t *testing.T) {
	r, _ := newEngine(t, testConfig())
	w := serve(r, http.MethodGet, "/api/v1/memes/top", map[string]string{"Accept-Encoding": "gzip"})
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("status=%d encoding=%q", w.Code, w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("gunzip: %v", err)
	}
	if !bytes.Contains(body, []byte(`"title":"Bee"`)) {
		t.Fatalf("decoded body = %s", body)
	}
}

func Test_limitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, http.MethodGet, path, nil)
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}
