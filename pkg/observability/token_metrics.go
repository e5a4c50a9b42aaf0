package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/ebay-connector/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// TokenMetrics holds the token provider instruments
type TokenMetrics struct {
	calls           otelmetric.Int64Counter
	refreshDuration otelmetric.Float64Histogram
}

// NewTokenMetrics registers the token provider instruments on meter
func NewTokenMetrics(meter otelmetric.Meter) (*TokenMetrics, error) {
	calls, err := meter.Int64Counter("token_provider.calls",
		otelmetric.WithDescription("Token provider calls by caller, source and error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calls counter: %w", err)
	}

	refreshDuration, err := meter.Float64Histogram("token_provider.refresh.duration",
		otelmetric.WithDescription("Latency of upstream refresh_token grants"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh histogram: %w", err)
	}

	return &TokenMetrics{calls: calls, refreshDuration: refreshDuration}, nil
}

// RecordCall counts one token provider call
func (m *TokenMetrics) RecordCall(ctx context.Context, triggeredBy string, source domain.TokenSource, code domain.ErrorCode) {
	m.calls.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("triggered_by", triggeredBy),
		attribute.String("source", string(source)),
		attribute.String("error_code", string(code)),
	))
}

// RecordRefresh observes one upstream refresh
func (m *TokenMetrics) RecordRefresh(ctx context.Context, duration time.Duration, success bool) {
	m.refreshDuration.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(
		attribute.Bool("success", success),
	))
}
