package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/ebay-connector/internal/dto"
	"github.com/prperemyshlev/ebay-connector/internal/ebay"
	"github.com/prperemyshlev/ebay-connector/internal/service"
	"github.com/prperemyshlev/ebay-connector/internal/utils"
	"go.uber.org/zap"
)

// ConnectHandler runs the eBay consent flow
type ConnectHandler struct {
	connect service.ConnectService
	logger  *zap.Logger
}

// NewConnectHandler creates a new connect handler
func NewConnectHandler(connect service.ConnectService, logger *zap.Logger) *ConnectHandler {
	return &ConnectHandler{connect: connect, logger: logger}
}

// Connect returns the consent URL for an account
// @Summary Start eBay authorization
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} dto.ConnectResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /accounts/{id}/connect [get]
func (h *ConnectHandler) Connect(c *gin.Context) {
	accountID := c.Param("id")
	if !utils.ValidateAccountID(accountID) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: "account id must be a UUID",
		})
		return
	}

	authURL, err := h.connect.AuthorizationURL(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ConnectResponse{AuthorizationURL: authURL})
}

// Callback completes the consent flow after eBay redirects back
// @Summary eBay OAuth callback
// @Tags accounts
// @Produce json
// @Param code query string true "Authorization code"
// @Param state query string true "OAuth state"
// @Success 200 {object} dto.CallbackResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /ebay/callback [get]
func (h *ConnectHandler) Callback(c *gin.Context) {
	if denied := c.Query("error"); denied != "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Authorization denied",
			Message: denied,
		})
		return
	}

	status, err := h.connect.Complete(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CallbackResponse{
		Message: "eBay account connected",
		Status:  status,
	})
}

func (h *ConnectHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Bad request", Message: err.Error()})
	case errors.Is(err, service.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Not found", Message: err.Error()})
	case errors.Is(err, service.ErrAccountInactive):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "Conflict", Message: err.Error()})
	case errors.Is(err, ebay.ErrEnvironmentMismatch):
		h.logger.Error("eBay environment is not configured", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Configuration error", Message: err.Error()})
	case errors.Is(err, ebay.ErrExchangeFailed):
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: "Bad gateway", Message: "eBay rejected the authorization code"})
	default:
		h.logger.Error("Connect flow failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error", Message: "Failed to connect account"})
	}
}
