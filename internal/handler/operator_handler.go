package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/ebay-connector/internal/dto"
	"github.com/prperemyshlev/ebay-connector/internal/service"
)

// OperatorHandler handles operator authentication
type OperatorHandler struct {
	operatorAuth service.OperatorAuthService
}

// NewOperatorHandler creates a new operator handler
func NewOperatorHandler(operatorAuth service.OperatorAuthService) *OperatorHandler {
	return &OperatorHandler{operatorAuth: operatorAuth}
}

// Login handles operator login
// @Summary Operator login
// @Tags operators
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /operators/login [post]
func (h *OperatorHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	token, err := h.operatorAuth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: err.Error(),
			})
		case errors.Is(err, service.ErrOperatorLoginDisabled):
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
				Error:   "Service unavailable",
				Message: err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
				Error:   "Internal server error",
				Message: "Failed to log in",
			})
		}
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
	})
}
