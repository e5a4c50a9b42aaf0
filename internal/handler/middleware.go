package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/ebay-connector/internal/dto"
	"github.com/prperemyshlev/ebay-connector/internal/service"
)

const operatorContextKey = "operator"

// OperatorAuthMiddleware requires a valid operator bearer token
func OperatorAuthMiddleware(operatorAuth service.OperatorAuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Authorization header is required",
			})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := operatorAuth.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(operatorContextKey, claims.Subject)
		c.Set("claims", claims)

		c.Next()
	}
}

// operatorFrom returns the authenticated operator subject
func operatorFrom(c *gin.Context) string {
	return c.GetString(operatorContextKey)
}
