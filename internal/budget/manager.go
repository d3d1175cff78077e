// Package budget bounds tool invocations: per-tool rate limits, circuit
// breakers, and effective timeouts.
package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/haasonsaas/toolhub/pkg/models"
)

// ToolLimits overrides the global defaults for one tool.
type ToolLimits struct {
	TimeoutMs          int     `yaml:"timeout_ms"`
	RatePerSecond      float64 `yaml:"rate_per_second"`
	Burst              int     `yaml:"burst"`
	BreakerMaxFailures int     `yaml:"breaker_max_failures"`
	BreakerCooldownMs  int     `yaml:"breaker_cooldown_ms"`
}

// Config configures the budget manager.
type Config struct {
	// DefaultTimeoutMs applies when neither the caller budget nor the tool
	// limits set one. Default 30000.
	DefaultTimeoutMs int `yaml:"default_timeout_ms"`

	// DefaultRatePerSecond and DefaultBurst shape the per-tool token bucket.
	DefaultRatePerSecond float64 `yaml:"default_rate_per_second"`
	DefaultBurst         int     `yaml:"default_burst"`

	// BreakerMaxFailures consecutive failures open the breaker for
	// BreakerCooldownMs; one trial call then enters half-open.
	BreakerMaxFailures int `yaml:"breaker_max_failures"`
	BreakerCooldownMs  int `yaml:"breaker_cooldown_ms"`

	// Tools holds per-tool overrides keyed by tool name.
	Tools map[string]ToolLimits `yaml:"tools"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeoutMs:     30000,
		DefaultRatePerSecond: 10,
		DefaultBurst:         20,
		BreakerMaxFailures:   5,
		BreakerCooldownMs:    30000,
	}
}

// Manager tracks rate limiter and breaker state per tool name.
type Manager struct {
	config Config

	mu       sync.Mutex
	buckets  map[string]*bucket
	breakers map[string]*gobreaker.CircuitBreaker

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a budget manager.
func NewManager(config Config) *Manager {
	if config.DefaultTimeoutMs <= 0 {
		config.DefaultTimeoutMs = 30000
	}
	if config.BreakerMaxFailures <= 0 {
		config.BreakerMaxFailures = 5
	}
	if config.BreakerCooldownMs <= 0 {
		config.BreakerCooldownMs = 30000
	}
	return &Manager{
		config:   config,
		buckets:  make(map[string]*bucket),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		now:      time.Now,
	}
}

// WithClock overrides the rate limiter clock (tests).
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// CheckRateLimit consumes one rate-limit token for the tool, reporting
// whether the call is admitted.
func (m *Manager) CheckRateLimit(name string) bool {
	return m.bucketFor(name).allow()
}

// Admit checks rate limit and breaker state. A refusal is BUDGET_EXCEEDED.
func (m *Manager) Admit(name string) error {
	if !m.CheckRateLimit(name) {
		return models.NewToolError(models.ErrBudgetExceeded,
			fmt.Sprintf("tool %s: rate limit exceeded", name), nil)
	}
	if m.breakerFor(name).State() == gobreaker.StateOpen {
		return models.NewToolError(models.ErrBudgetExceeded,
			fmt.Sprintf("tool %s: circuit breaker open", name), nil)
	}
	return nil
}

// GetTimeout resolves the effective per-call timeout:
// caller override > per-tool limit > global default.
func (m *Manager) GetTimeout(name string, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if limits, ok := m.config.Tools[name]; ok && limits.TimeoutMs > 0 {
		return time.Duration(limits.TimeoutMs) * time.Millisecond
	}
	return time.Duration(m.config.DefaultTimeoutMs) * time.Millisecond
}

// Execute runs fn inside the tool's circuit breaker so that failures drive
// the closed -> open -> half-open transitions. An open breaker surfaces as
// BUDGET_EXCEEDED without invoking fn.
func (m *Manager) Execute(name string, fn func() (any, error)) (any, error) {
	out, err := m.breakerFor(name).Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, models.NewToolError(models.ErrBudgetExceeded,
			fmt.Sprintf("tool %s: circuit breaker open", name), nil)
	}
	return out, err
}

// BreakerState exposes the breaker state for telemetry and tests.
func (m *Manager) BreakerState(name string) gobreaker.State {
	return m.breakerFor(name).State()
}

func (m *Manager) bucketFor(name string) *bucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[name]
	if !ok {
		rate, burst := m.config.DefaultRatePerSecond, m.config.DefaultBurst
		if limits, has := m.config.Tools[name]; has {
			if limits.RatePerSecond > 0 {
				rate = limits.RatePerSecond
			}
			if limits.Burst > 0 {
				burst = limits.Burst
			}
		}
		b = newBucket(rate, burst, m.now)
		m.buckets[name] = b
	}
	return b
}

func (m *Manager) breakerFor(name string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	cb, ok := m.breakers[name]
	if !ok {
		maxFailures := uint32(m.config.BreakerMaxFailures)
		cooldown := time.Duration(m.config.BreakerCooldownMs) * time.Millisecond
		if limits, has := m.config.Tools[name]; has {
			if limits.BreakerMaxFailures > 0 {
				maxFailures = uint32(limits.BreakerMaxFailures)
			}
			if limits.BreakerCooldownMs > 0 {
				cooldown = time.Duration(limits.BreakerCooldownMs) * time.Millisecond
			}
		}
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
		})
		m.breakers[name] = cb
	}
	return cb
}
