package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		redis  func(context.Context) error
		status int
		body   string
	}{
		{"all up", ok, http.StatusOK, `"status":"pass"`},
		{"redis down", down, http.StatusServiceUnavailable, `"redis":"connection refused"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &HealthChecker{checks: map[string]func(context.Context) error{
				"postgres": ok,
				"redis":    tt.redis,
			}}

			r := gin.New()
			r.GET("/health", h.Handler)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
			assert.Contains(t, rec.Body.String(), `"postgres":"pass"`)
		})
	}
}
