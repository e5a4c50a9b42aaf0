package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"github.com/prperemyshlev/ebay-connector/internal/dto"
	"github.com/prperemyshlev/ebay-connector/internal/service"
	"github.com/prperemyshlev/ebay-connector/internal/utils"
	"go.uber.org/zap"
)

// TokenHandler exposes the token provider to operators
type TokenHandler struct {
	provider service.TokenProvider
	status   service.StatusService
	logger   *zap.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(provider service.TokenProvider, status service.StatusService, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		provider: provider,
		status:   status,
		logger:   logger,
	}
}

// DebugToken returns a usable access token. This is the only response that carries one.
// @Summary Diagnostic token fetch
// @Tags debug
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DebugTokenRequest true "Token request"
// @Success 200 {object} dto.TokenResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.TokenResponse
// @Failure 502 {object} dto.TokenResponse
// @Router /debug/ebay/token [post]
func (h *TokenHandler) DebugToken(c *gin.Context) {
	var req dto.DebugTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	if !utils.ValidateAccountID(req.AccountID) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: "account_id must be a UUID",
		})
		return
	}

	result := h.provider.GetValidAccessToken(c.Request.Context(), domain.TokenRequest{
		AccountID:    req.AccountID,
		APIFamily:    req.APIFamily,
		ForceRefresh: req.ForceRefresh,
		TriggeredBy:  utils.NormalizeTrigger(req.TriggeredBy, domain.TriggeredByDebug),
	})

	h.logger.Info("Diagnostic token request",
		zap.String("operator", operatorFrom(c)),
		zap.String("account_id", req.AccountID),
		zap.Bool("success", result.Success),
	)

	c.Header("Cache-Control", "no-store")
	c.JSON(statusForResult(result), dto.NewDebugTokenResponse(result))
}

// Refresh is the manual "run now" trigger. The response never contains the token.
// @Summary Refresh an account token
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param request body dto.RefreshRequest false "Refresh options"
// @Success 200 {object} dto.TokenResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.TokenResponse
// @Router /accounts/{id}/token/refresh [post]
func (h *TokenHandler) Refresh(c *gin.Context) {
	accountID := c.Param("id")
	if !utils.ValidateAccountID(accountID) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: "account id must be a UUID",
		})
		return
	}

	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	force := true
	if req.ForceRefresh != nil {
		force = *req.ForceRefresh
	}

	result := h.provider.GetValidAccessToken(c.Request.Context(), domain.TokenRequest{
		AccountID:    accountID,
		APIFamily:    req.APIFamily,
		ForceRefresh: force,
		TriggeredBy:  domain.TriggeredByManual,
	})

	c.JSON(statusForResult(result), dto.NewTokenResponse(result))
}

// Status returns the masked credential snapshot of one account
// @Summary Token status
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} domain.CredentialStatus
// @Failure 404 {object} dto.ErrorResponse
// @Router /accounts/{id}/token-status [get]
func (h *TokenHandler) Status(c *gin.Context) {
	accountID := c.Param("id")
	if !utils.ValidateAccountID(accountID) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: "account id must be a UUID",
		})
		return
	}

	status, err := h.status.Status(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "Not found",
				Message: "No credential stored for this account",
			})
			return
		}
		h.logger.Error("Failed to load token status", zap.String("account_id", accountID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to load token status",
		})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, status)
}

// ListStatus returns masked snapshots of all credentials
// @Summary Token status of all accounts
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.CredentialStatus
// @Router /accounts/token-status [get]
func (h *TokenHandler) ListStatus(c *gin.Context) {
	statuses, err := h.status.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list token status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "Failed to list token status",
		})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, statuses)
}

// statusForResult maps the token error taxonomy onto HTTP status codes
func statusForResult(result domain.TokenResult) int {
	if result.Success {
		return http.StatusOK
	}

	switch result.ErrorCode {
	case domain.ErrCodeAccountNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAccountInactive, domain.ErrCodeNoCredential:
		return http.StatusConflict
	case domain.ErrCodeRefreshFailed:
		return http.StatusBadGateway
	case domain.ErrCodeWriteConflict, domain.ErrCodeStorageError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
