package dto

import (
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
)

// TokenResponse is the wire form of a token provider result.
// AccessToken is only filled by NewDebugTokenResponse.
type TokenResponse struct {
	Success          bool       `json:"success"`
	AccessToken      string     `json:"access_token,omitempty"`
	Environment      string     `json:"environment,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Source           string     `json:"source,omitempty"`
	TokenFingerprint string     `json:"token_fingerprint,omitempty"`
	ErrorCode        string     `json:"error_code,omitempty"`
	ErrorSubCode     string     `json:"error_sub_code,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	NeedsReauth      bool       `json:"needs_reauth,omitempty"`
}

// NewTokenResponse maps a result without the access token
func NewTokenResponse(result domain.TokenResult) TokenResponse {
	resp := TokenResponse{
		Success:          result.Success,
		Environment:      string(result.Environment),
		ExpiresAt:        result.ExpiresAt,
		TokenFingerprint: result.TokenFingerprint,
		ErrorCode:        string(result.ErrorCode),
		ErrorSubCode:     result.ErrorSubCode,
		ErrorMessage:     result.ErrorMessage,
		NeedsReauth:      result.NeedsReauth,
	}
	if result.Source != domain.SourceNone {
		resp.Source = string(result.Source)
	}
	return resp
}

// NewDebugTokenResponse maps a result including the access token.
// Only the operator-gated diagnostic endpoint may use it.
func NewDebugTokenResponse(result domain.TokenResult) TokenResponse {
	resp := NewTokenResponse(result)
	if result.Success {
		resp.AccessToken = result.AccessToken.Reveal()
	}
	return resp
}

// CallbackResponse is returned after a completed connect flow
type CallbackResponse struct {
	Message string                   `json:"message"`
	Status  *domain.CredentialStatus `json:"status"`
}
