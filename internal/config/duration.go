package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

var errNegativeDuration = errors.New("duration must not be negative")

// Duration is a non-negative time.Duration that also accepts a leading day count, e.g. "7d" or "1d12h"
type Duration struct {
	time.Duration
}

// EnvDecode implements envconfig.Decoder
func (d *Duration) EnvDecode(_ context.Context, v string) error {
	if v == "" {
		return nil
	}

	parsed, err := ParseDuration(v)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// ParseDuration parses "<days>d<rest>" where rest is anything time.ParseDuration accepts
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)

	var total time.Duration
	if days, rest, ok := strings.Cut(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid days value %q: %w", days, err)
		}
		total = time.Duration(n) * day
		v = rest
	}

	if v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %w", err)
		}
		total += parsed
	}

	if total < 0 {
		return 0, errNegativeDuration
	}

	return total, nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	return d.EnvDecode(context.Background(), string(text))
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) String() string {
	return d.Duration.String()
}
