package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/ebay-connector/internal/dto"
	"github.com/prperemyshlev/ebay-connector/internal/service"
	"go.uber.org/zap"
)

// RateLimitMiddleware creates a rate limiting middleware.
// Limiter failures other than an exceeded budget let the request through.
func RateLimitMiddleware(limiter service.Limiter, limit int, window time.Duration, keyFunc func(*gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))

		err := limiter.Allow(c.Request.Context(), keyFunc(c), limit, window)
		if err == nil {
			c.Next()
			return
		}

		var limitErr *service.RateLimitError
		if errors.As(err, &limitErr) {
			c.Header("Retry-After", strconv.Itoa(int(limitErr.RetryAfter.Seconds())))
			c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "Too Many Requests",
				Message: "Rate limit exceeded, try again in " + limitErr.RetryAfter.String(),
			})
			c.Abort()
			return
		}

		logger.Warn("Rate limiter unavailable", zap.Error(err))
		c.Next()
	}
}

// IPBasedKey extracts rate limit key from client IP
func IPBasedKey(c *gin.Context) string {
	ip := c.GetHeader("X-Forwarded-For")
	if ip != "" {
		ips := strings.Split(ip, ",")
		ip = strings.TrimSpace(ips[0])
	} else {
		ip = c.ClientIP()
	}

	return "ip:" + ip
}

// OperatorKey limits per authenticated operator, falling back to the client IP
func OperatorKey(c *gin.Context) string {
	if operator := operatorFrom(c); operator != "" {
		return "operator:" + operator
	}
	return IPBasedKey(c)
}
