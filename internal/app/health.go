package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker pings the stores the token provider depends on
type HealthChecker struct {
	checks map[string]func(context.Context) error
}

func NewHealthChecker(infra Infrastructure) *HealthChecker {
	return &HealthChecker{
		checks: map[string]func(context.Context) error{
			"postgres": infra.Postgres().Ping,
			"redis":    infra.Redis().Ping,
		},
	}
}

// check runs all checks concurrently and returns the failures by name
func (h *HealthChecker) check(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures = map[string]string{}
	)

	for name, ping := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ping(ctx); err != nil {
				mu.Lock()
				failures[name] = err.Error()
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return failures
}

func (h *HealthChecker) Handler(c *gin.Context) {
	failures := h.check(c.Request.Context())

	checks := make(gin.H, len(h.checks))
	for name := range h.checks {
		if reason, failed := failures[name]; failed {
			checks[name] = reason
		} else {
			checks[name] = "pass"
		}
	}

	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "fail",
			"checks": checks,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "pass",
		"checks": checks,
	})
}
