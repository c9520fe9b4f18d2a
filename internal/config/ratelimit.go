package config

import "time"

// RateLimitConfig throttles calls to a remote model endpoint
type RateLimitConfig struct {
	// RequestsPerSecond is the number of calls allowed per second
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// MaxRetries is the number of retries after a throttled call
	MaxRetries int `mapstructure:"max_retries"`
	// BaseDelay is the first backoff delay
	BaseDelay time.Duration `mapstructure:"base_delay"`
	// MaxDelay caps the backoff delay
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// DefaultRateLimitConfig keeps well under the default SageMaker invocation quota
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 5.0,
	MaxRetries:        3,
	BaseDelay:         200 * time.Millisecond,
	MaxDelay:          5 * time.Second,
}
