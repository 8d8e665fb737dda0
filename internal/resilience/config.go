package resilience

import (
	"time"
)

// CollectRetryConfig builds the retry policy for collectors from the
// collection settings. maxRetries counts retries after the first attempt;
// zero disables retrying, negative falls back to the default. backoffFactor
// is the base delay in seconds, doubled each attempt.
func CollectRetryConfig(maxRetries int, backoffFactor float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxRetries >= 0 {
		cfg.MaxAttempts = maxRetries + 1
	}
	if backoffFactor > 0 {
		cfg.InitialBackoff = time.Duration(backoffFactor * float64(time.Second))
	}
	return cfg
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
