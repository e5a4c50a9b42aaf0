package dto

// LoginRequest represents an operator login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents an operator login response
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// DebugTokenRequest is the body of the diagnostic token endpoint
type DebugTokenRequest struct {
	AccountID    string `json:"account_id" binding:"required"`
	ForceRefresh bool   `json:"force_refresh"`
	TriggeredBy  string `json:"triggered_by"`
	APIFamily    string `json:"api_family"`
}

// RefreshRequest is the optional body of the manual refresh endpoint
type RefreshRequest struct {
	ForceRefresh *bool  `json:"force_refresh"`
	APIFamily    string `json:"api_family"`
}

// ConnectResponse carries the eBay consent URL
type ConnectResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
