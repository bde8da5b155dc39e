package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests" mapstructure:"max_requests"`
	Interval         time.Duration `yaml:"interval" mapstructure:"interval"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold" mapstructure:"failure_threshold"`
}

// CircuitBreakerManager holds one breaker per downstream dependency. Breakers
// are created lazily on first use.
type CircuitBreakerManager struct {
	config   CircuitBreakerConfig
	logger   zerolog.Logger
	breakers map[string]*gobreaker.CircuitBreaker
	mutex    sync.RWMutex
}

func NewCircuitBreakerManager(config CircuitBreakerConfig, logger zerolog.Logger) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (cbm *CircuitBreakerManager) GetBreaker(serviceName string) *gobreaker.CircuitBreaker {
	if !cbm.config.Enabled {
		return nil
	}

	cbm.mutex.RLock()
	breaker, exists := cbm.breakers[serviceName]
	cbm.mutex.RUnlock()

	if exists {
		return breaker
	}

	cbm.mutex.Lock()
	defer cbm.mutex.Unlock()

	if breaker, exists := cbm.breakers[serviceName]; exists {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: cbm.config.MaxRequests,
		Interval:    cbm.config.Interval,
		Timeout:     cbm.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cbm.config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cbm.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	breaker = gobreaker.NewCircuitBreaker(settings)
	cbm.breakers[serviceName] = breaker

	return breaker
}

func (cbm *CircuitBreakerManager) ExecuteWithContext(ctx context.Context, serviceName string, fn func(context.Context) (any, error)) (any, error) {
	if !cbm.config.Enabled {
		return fn(ctx)
	}

	breaker := cbm.GetBreaker(serviceName)
	if breaker == nil {
		return fn(ctx)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
}

func (cbm *CircuitBreakerManager) GetState(serviceName string) gobreaker.State {
	cbm.mutex.RLock()
	defer cbm.mutex.RUnlock()

	if breaker, exists := cbm.breakers[serviceName]; exists {
		return breaker.State()
	}

	return gobreaker.StateClosed
}

func (cbm *CircuitBreakerManager) GetCounts(serviceName string) gobreaker.Counts {
	cbm.mutex.RLock()
	defer cbm.mutex.RUnlock()

	if breaker, exists := cbm.breakers[serviceName]; exists {
		return breaker.Counts()
	}

	return gobreaker.Counts{}
}

func (cbm *CircuitBreakerManager) IsEnabled() bool {
	return cbm.config.Enabled
}

// EngineCircuitBreaker guards calls to the search execution engine.
type EngineCircuitBreaker struct {
	manager *CircuitBreakerManager
}

func NewEngineCircuitBreaker(manager *CircuitBreakerManager) *EngineCircuitBreaker {
	return &EngineCircuitBreaker{
		manager: manager,
	}
}

func (ecb *EngineCircuitBreaker) Execute(ctx context.Context, operation string, fn func(context.Context) (any, error)) (any, error) {
	serviceName := fmt.Sprintf("engine-%s", operation)
	return ecb.manager.ExecuteWithContext(ctx, serviceName, fn)
}

// RegistryCircuitBreaker guards calls to the index registry database.
type RegistryCircuitBreaker struct {
	manager *CircuitBreakerManager
}

func NewRegistryCircuitBreaker(manager *CircuitBreakerManager) *RegistryCircuitBreaker {
	return &RegistryCircuitBreaker{
		manager: manager,
	}
}

func (rcb *RegistryCircuitBreaker) Execute(ctx context.Context, operation string, fn func(context.Context) (any, error)) (any, error) {
	serviceName := fmt.Sprintf("registry-%s", operation)
	return rcb.manager.ExecuteWithContext(ctx, serviceName, fn)
}

func IsCircuitBreakerError(err error) bool {
	if err == nil {
		return false
	}

	switch err {
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		return true
	default:
		return false
	}
}

// BreakerStatus reports the state of every known breaker for health checks.
func (cbm *CircuitBreakerManager) BreakerStatus() map[string]any {
	cbm.mutex.RLock()
	defer cbm.mutex.RUnlock()

	status := make(map[string]any)

	for name, breaker := range cbm.breakers {
		counts := breaker.Counts()
		status[name] = map[string]any{
			"state":                breaker.State().String(),
			"requests":             counts.Requests,
			"total_successes":      counts.TotalSuccesses,
			"total_failures":       counts.TotalFailures,
			"consecutive_failures": counts.ConsecutiveFailures,
		}
	}

	return map[string]any{
		"circuit_breakers": status,
		"enabled":          cbm.config.Enabled,
	}
}
