package acceptance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// ebayStub serves the eBay identity token endpoint
type ebayStub struct {
	*httptest.Server

	mu        sync.Mutex
	refreshes int
	exchanges int
	revoked   map[string]bool
	delay     time.Duration
}

func newEBayStub() *ebayStub {
	stub := &ebayStub{revoked: map[string]bool{}}
	stub.Server = httptest.NewServer(http.HandlerFunc(stub.handle))
	return stub
}

func (e *ebayStub) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshes = 0
	e.exchanges = 0
	e.revoked = map[string]bool{}
	e.delay = 0
}

func (e *ebayStub) Revoke(refreshToken string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revoked[refreshToken] = true
}

func (e *ebayStub) SetDelay(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = d
}

func (e *ebayStub) Refreshes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshes
}

func (e *ebayStub) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/identity/v1/oauth2/token" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if _, _, ok := r.BasicAuth(); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	e.mu.Lock()
	delay := e.delay
	var n int
	switch r.PostForm.Get("grant_type") {
	case "refresh_token":
		if e.revoked[r.PostForm.Get("refresh_token")] {
			e.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "the provided authorization refresh token is invalid or was issued to another client",
			})
			return
		}
		e.refreshes++
		n = e.refreshes
		e.mu.Unlock()

		time.Sleep(delay)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": fmt.Sprintf("v^1.1#refreshed-%d", n),
			"expires_in":   7200,
			"token_type":   "User Access Token",
		})
	case "authorization_code":
		e.exchanges++
		n = e.exchanges
		e.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":             fmt.Sprintf("v^1.1#connected-%d", n),
			"refresh_token":            fmt.Sprintf("v^1.1#refresh-%d", n),
			"expires_in":               7200,
			"refresh_token_expires_in": 47304000,
			"token_type":               "User Access Token",
		})
	default:
		e.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
