package integration

import (
	"context"
	"time"

	"github.com/sumandas0/querygate/internal/observability"
	"github.com/sumandas0/querygate/internal/resilience"
	"github.com/sumandas0/querygate/internal/security"
)

// ObservabilityManager integrates all observability components
type ObservabilityManager struct {
	tracing *observability.TracingManager
	logging *observability.Logger
	metrics *observability.MetricsManager
}

// NewObservabilityManager creates a new observability manager
func NewObservabilityManager(
	tracingConfig observability.TracingConfig,
	loggingConfig observability.LoggingConfig,
	metricsConfig observability.MetricsConfig,
) (*ObservabilityManager, error) {
	tracing, err := observability.NewTracingManager(tracingConfig)
	if err != nil {
		return nil, err
	}

	logging, err := observability.NewLogger(loggingConfig)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetricsManager(metricsConfig)

	observability.SetGlobalLogger(logging)

	return &ObservabilityManager{
		tracing: tracing,
		logging: logging,
		metrics: metrics,
	}, nil
}

// GetTracing returns the tracing manager
func (om *ObservabilityManager) GetTracing() *observability.TracingManager {
	return om.tracing
}

// GetLogging returns the logging manager
func (om *ObservabilityManager) GetLogging() *observability.Logger {
	return om.logging
}

// GetMetrics returns the metrics manager
func (om *ObservabilityManager) GetMetrics() *observability.MetricsManager {
	return om.metrics
}

// Shutdown gracefully shuts down all observability components
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	return om.tracing.Shutdown(ctx)
}

// ResilienceManager integrates all resilience components
type ResilienceManager struct {
	circuitBreaker *resilience.CircuitBreakerManager
	retryManager   *resilience.RetryManager
}

// NewResilienceManager creates a new resilience manager
func NewResilienceManager(
	cbConfig resilience.CircuitBreakerConfig,
	retryConfig resilience.RetryConfig,
	obs *ObservabilityManager,
) *ResilienceManager {
	circuitBreaker := resilience.NewCircuitBreakerManager(cbConfig, obs.GetLogging().GetZerologLogger())
	retryManager := resilience.NewRetryManager(retryConfig)

	return &ResilienceManager{
		circuitBreaker: circuitBreaker,
		retryManager:   retryManager,
	}
}

// GetCircuitBreaker returns the circuit breaker manager
func (rm *ResilienceManager) GetCircuitBreaker() *resilience.CircuitBreakerManager {
	return rm.circuitBreaker
}

// GetRetryManager returns the retry manager
func (rm *ResilienceManager) GetRetryManager() *resilience.RetryManager {
	return rm.retryManager
}

// SecurityManager integrates all security components
type SecurityManager struct {
	rateLimiter *security.RateLimiter
	sanitizer   *security.SearchSanitizer
}

// NewSecurityManager creates a new security manager
func NewSecurityManager(
	rateLimitConfig security.RateLimitConfig,
	sanitizerConfig security.SanitizerConfig,
) *SecurityManager {
	rateLimiter := security.NewRateLimiter(rateLimitConfig)
	sanitizer := security.NewSearchSanitizer(sanitizerConfig)

	return &SecurityManager{
		rateLimiter: rateLimiter,
		sanitizer:   sanitizer,
	}
}

// GetRateLimiter returns the rate limiter
func (sm *SecurityManager) GetRateLimiter() *security.RateLimiter {
	return sm.rateLimiter
}

// GetSanitizer returns the search request sanitizer
func (sm *SecurityManager) GetSanitizer() *security.SearchSanitizer {
	return sm.sanitizer
}

// Stop stops all security components
func (sm *SecurityManager) Stop() {
	sm.rateLimiter.Stop()
}

// AdvancedFeaturesManager integrates observability, resilience and security
type AdvancedFeaturesManager struct {
	observability *ObservabilityManager
	resilience    *ResilienceManager
	security      *SecurityManager
	startTime     time.Time
}

// AdvancedFeaturesConfig holds configuration for all advanced features
type AdvancedFeaturesConfig struct {
	Tracing        observability.TracingConfig     `yaml:"tracing" mapstructure:"tracing"`
	Logging        observability.LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Metrics        observability.MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	CircuitBreaker resilience.CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	Retry          resilience.RetryConfig          `yaml:"retry" mapstructure:"retry"`
	RateLimit      security.RateLimitConfig        `yaml:"rate_limit" mapstructure:"rate_limit"`
	Sanitizer      security.SanitizerConfig        `yaml:"sanitizer" mapstructure:"sanitizer"`
}

// NewAdvancedFeaturesManager creates a new advanced features manager
func NewAdvancedFeaturesManager(config AdvancedFeaturesConfig) (*AdvancedFeaturesManager, error) {
	obs, err := NewObservabilityManager(config.Tracing, config.Logging, config.Metrics)
	if err != nil {
		return nil, err
	}

	res := NewResilienceManager(config.CircuitBreaker, config.Retry, obs)
	sec := NewSecurityManager(config.RateLimit, config.Sanitizer)

	afm := &AdvancedFeaturesManager{
		observability: obs,
		resilience:    res,
		security:      sec,
		startTime:     time.Now(),
	}

	if config.Metrics.Enabled {
		obs.GetMetrics().StartUptimeTracker(context.Background(), afm.startTime)
		obs.GetMetrics().SetBuildInfo("1.0.0", "dev", time.Now().Format(time.RFC3339))
	}

	return afm, nil
}

// GetObservability returns the observability manager
func (afm *AdvancedFeaturesManager) GetObservability() *ObservabilityManager {
	return afm.observability
}

// GetResilience returns the resilience manager
func (afm *AdvancedFeaturesManager) GetResilience() *ResilienceManager {
	return afm.resilience
}

// GetSecurity returns the security manager
func (afm *AdvancedFeaturesManager) GetSecurity() *SecurityManager {
	return afm.security
}

// GetStartTime returns the application start time
func (afm *AdvancedFeaturesManager) GetStartTime() time.Time {
	return afm.startTime
}

// Shutdown gracefully shuts down all advanced features
func (afm *AdvancedFeaturesManager) Shutdown(ctx context.Context) error {
	afm.security.Stop()
	return afm.observability.Shutdown(ctx)
}

// HealthCheck provides health information for all advanced features
func (afm *AdvancedFeaturesManager) HealthCheck(ctx context.Context) map[string]any {
	health := make(map[string]any)

	health["observability"] = map[string]any{
		"tracing_enabled": afm.observability.tracing.IsEnabled(),
		"metrics_enabled": afm.observability.metrics.IsEnabled(),
		"uptime_seconds":  time.Since(afm.startTime).Seconds(),
	}

	health["resilience"] = map[string]any{
		"circuit_breaker": afm.resilience.circuitBreaker.BreakerStatus(),
		"retry_enabled":   afm.resilience.retryManager.IsEnabled(),
	}

	health["security"] = map[string]any{
		"rate_limiter": afm.security.rateLimiter.GetStats(),
	}

	return health
}
