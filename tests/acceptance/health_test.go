package acceptance

import (
	"io"
	"net/http"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/dto"
)

func (s *Suite) TestHealthEndpoint() {
	resp, err := http.Get(s.BaseURL + "/health")
	s.Require().NoError(err, "Failed to make request")
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode, "Expected status 200")
}

func (s *Suite) TestMetricsEndpoint() {
	token := s.login()
	accountID := s.seedAccount("production", "refresh", time.Hour)
	s.debugToken(token, dto.DebugTokenRequest{AccountID: accountID})

	resp, err := http.Get(s.BaseURL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(string(body), "token_provider_calls")
}
