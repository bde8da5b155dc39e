package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

type RetryConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts       int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay      time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay          time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	JitterEnabled     bool          `yaml:"jitter_enabled" mapstructure:"jitter_enabled"`
	JitterFactor      float64       `yaml:"jitter_factor" mapstructure:"jitter_factor"`
}

type RetryManager struct {
	config RetryConfig
}

func NewRetryManager(config RetryConfig) *RetryManager {
	return &RetryManager{
		config: config,
	}
}

type IsRetryableError func(error) bool

func DefaultRetryableErrors(err error) bool {
	if err == nil {
		return false
	}

	errorStr := err.Error()

	return strings.Contains(errorStr, "connection refused") ||
		strings.Contains(errorStr, "connection reset") ||
		strings.Contains(errorStr, "timeout") ||
		strings.Contains(errorStr, "temporary failure") ||
		strings.Contains(errorStr, "service unavailable")
}

func RegistryRetryableErrors(err error) bool {
	if err == nil {
		return false
	}

	errorStr := err.Error()

	if strings.Contains(errorStr, "connection lost") ||
		strings.Contains(errorStr, "server closed the connection") ||
		strings.Contains(errorStr, "deadlock detected") ||
		strings.Contains(errorStr, "serialization failure") {
		return true
	}

	return DefaultRetryableErrors(err)
}

func EngineRetryableErrors(err error) bool {
	if err == nil {
		return false
	}

	errorStr := err.Error()

	if strings.Contains(errorStr, "too many requests") ||
		strings.Contains(errorStr, "not ready") ||
		strings.Contains(errorStr, "503") {
		return true
	}

	return DefaultRetryableErrors(err)
}

func (rm *RetryManager) Execute(ctx context.Context, fn func() error, isRetryable IsRetryableError) error {
	_, err := rm.ExecuteWithResult(ctx, func() (any, error) {
		return nil, fn()
	}, isRetryable)
	return err
}

func (rm *RetryManager) ExecuteWithResult(ctx context.Context, fn func() (any, error), isRetryable IsRetryableError) (any, error) {
	if !rm.config.Enabled {
		return fn()
	}

	var lastErr error

	for attempt := 1; attempt <= rm.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt == rm.config.MaxAttempts {
			break
		}

		delay := rm.calculateDelay(attempt)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("operation failed after %d attempts: %w", rm.config.MaxAttempts, lastErr)
}

func (rm *RetryManager) calculateDelay(attempt int) time.Duration {
	multiplier := math.Pow(rm.config.BackoffMultiplier, float64(attempt-1))
	delay := time.Duration(float64(rm.config.InitialDelay) * multiplier)

	if rm.config.JitterEnabled {
		delay = rm.applyJitter(delay)
	}

	if delay > rm.config.MaxDelay {
		delay = rm.config.MaxDelay
	}

	return delay
}

func (rm *RetryManager) applyJitter(delay time.Duration) time.Duration {
	if rm.config.JitterFactor <= 0 || rm.config.JitterFactor >= 1 {
		return delay
	}

	jitter := rm.config.JitterFactor * float64(delay)
	randomJitter := (rand.Float64()*2 - 1) * jitter

	finalDelay := time.Duration(float64(delay) + randomJitter)
	if finalDelay < 0 {
		finalDelay = time.Duration(float64(delay) * 0.1)
	}

	return finalDelay
}

func (rm *RetryManager) IsEnabled() bool {
	return rm.config.Enabled
}

// EngineRetryWrapper retries transient search engine failures.
type EngineRetryWrapper struct {
	manager *RetryManager
}

func NewEngineRetryWrapper(manager *RetryManager) *EngineRetryWrapper {
	return &EngineRetryWrapper{
		manager: manager,
	}
}

func (erw *EngineRetryWrapper) Execute(ctx context.Context, fn func() error) error {
	return erw.manager.Execute(ctx, fn, EngineRetryableErrors)
}

func (erw *EngineRetryWrapper) ExecuteWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	return erw.manager.ExecuteWithResult(ctx, fn, EngineRetryableErrors)
}

// RegistryRetryWrapper retries transient registry database failures.
type RegistryRetryWrapper struct {
	manager *RetryManager
}

func NewRegistryRetryWrapper(manager *RetryManager) *RegistryRetryWrapper {
	return &RegistryRetryWrapper{
		manager: manager,
	}
}

func (rrw *RegistryRetryWrapper) Execute(ctx context.Context, fn func() error) error {
	return rrw.manager.Execute(ctx, fn, RegistryRetryableErrors)
}

func (rrw *RegistryRetryWrapper) ExecuteWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	return rrw.manager.ExecuteWithResult(ctx, fn, RegistryRetryableErrors)
}

var BackoffStrategies = map[string]RetryConfig{
	"fast": {
		Enabled:           true,
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2.0,
		JitterEnabled:     true,
		JitterFactor:      0.1,
	},
	"standard": {
		Enabled:           true,
		MaxAttempts:       5,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterEnabled:     true,
		JitterFactor:      0.2,
	},
}
