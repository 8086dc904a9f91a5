package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-timetable-api/internal/service"
)

func TestMetricsHandlerEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.ObserveGeneration(service.OutcomeOK, time.Millisecond, 0, 0)

	healthy := NewMetricsHandler(metrics, map[string]ReadinessCheck{
		"cache": func(ctx context.Context) error { return nil },
	})
	broken := NewMetricsHandler(metrics, map[string]ReadinessCheck{
		"cache": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	r := gin.New()
	r.GET("/health", healthy.Health)
	r.GET("/ready", healthy.Ready)
	r.GET("/ready-broken", broken.Ready)
	r.GET("/metrics", healthy.Prometheus)
	r.GET("/metrics/summary", healthy.Summary)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	assert.Equal(t, http.StatusOK, get("/health").Code)
	assert.Equal(t, http.StatusOK, get("/ready").Code)

	w := get("/ready-broken")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = get("/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "timetable_generations_total")

	w = get("/metrics/summary")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"generations":{"ok":1}`)
}
