package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/handler"
	"github.com/xenking/coupon-engine/pkg/health"
)

type stubService struct {
	handler.Service
}

func (stubService) Get(_ context.Context, id int64) (*coupon.Coupon, error) {
	return nil, &coupon.CouponNotFoundError{ID: id}
}

func testRouter(t *testing.T, burst int) http.Handler {
	t.Helper()
	return testRouterWithLogger(t, burst, zaptest.NewLogger(t))
}

func testRouterWithLogger(t *testing.T, burst int, lg *zap.Logger) http.Handler {
	t.Helper()
	cfg := &Config{
		RateLimit: RateLimitConfig{Rate: 0.001, Burst: burst},
		CORS:      CORSConfig{Origins: []string{"*"}},
	}
	hs := health.New()
	hs.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(1_000_000))
	hs.SetReady(true)

	return newRouter(t.Context(), lg,
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(),
		cfg, handler.New(stubService{}), hs,
	)
}

func TestRouter(t *testing.T) {
	r := testRouter(t, 100)

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/livez", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/api/coupons/5", http.StatusNotFound},
		{"/api/coupons/x", http.StatusBadRequest},
		{"/nowhere", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
		})
	}
}

func TestRouter_RateLimited(t *testing.T) {
	r := testRouter(t, 1)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_PanicLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	// stubService leaves List unimplemented, so listing coupons panics.
	r := testRouterWithLogger(t, 100, zap.New(core))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/coupons", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error","message":"An unexpected error occurred"}`, w.Body.String())

	entries := logs.FilterMessage("Panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}
