package handler

import (
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// sensitiveParams are query parameters that carry OAuth secrets, e.g. on the eBay callback
var sensitiveParams = []string{"code", "state", "access_token", "refresh_token"}

// LoggerMiddleware logs one line per request with OAuth secrets redacted from the query
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", redactQuery(c.Request.URL.Query())),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if operator := operatorFrom(c); operator != "" {
			fields = append(fields, zap.String("operator", operator))
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, zap.String("account_id", id))
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("HTTP request", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

func redactQuery(query url.Values) string {
	for _, key := range sensitiveParams {
		if query.Has(key) {
			query.Set(key, "REDACTED")
		}
	}
	return query.Encode()
}
