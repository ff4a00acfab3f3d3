package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrCircuitBreakerOpen is returned without calling the provider while the
// circuit is open or its half-open probes are used up.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig 熔断器配置。
type CircuitBreakerConfig struct {
	// MaxFailures 连续失败多少次后熔断。
	MaxFailures int
	// Timeout 熔断后多久放行探测请求。
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态的探测数，全部成功才恢复。
	HalfOpenMaxCalls int
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置。
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreakerState 熔断器状态。
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open"}

func (s CircuitBreakerState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// BreakerStats is the breaker section of the JSON metrics.
type BreakerStats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	LastFailureTime time.Time `json:"last_failure_time"`
}

// CircuitBreaker guards one provider capability. Closed counts consecutive
// failures; reaching MaxFailures opens it. After Timeout it admits
// HalfOpenMaxCalls probes: all succeeding closes it, any failing reopens it.
// Caller cancellation never counts as a failure.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig
	now  func() time.Time

	mu          sync.Mutex
	state       CircuitBreakerState
	failures    int
	lastFailure time.Time
	probes      int
	passed      int
}

// NewCircuitBreaker 创建熔断器，name 出现在日志与统计中。
func NewCircuitBreaker(name string, config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	cfg := *config
	cfg.MaxFailures = max(cfg.MaxFailures, 1)
	cfg.HalfOpenMaxCalls = max(cfg.HalfOpenMaxCalls, 1)
	return &CircuitBreaker{name: name, cfg: cfg, now: time.Now}
}

// Execute runs fn when the breaker admits the call and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.lastFailure) >= cb.cfg.Timeout {
		cb.moveTo(StateHalfOpen)
	}
	switch cb.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if cb.probes < cb.cfg.HalfOpenMaxCalls {
			cb.probes++
			return nil
		}
	}
	return ErrCircuitBreakerOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// 归还探测名额
		if cb.state == StateHalfOpen && cb.probes > 0 {
			cb.probes--
		}
	case err != nil:
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.MaxFailures {
			cb.moveTo(StateOpen)
		}
	case cb.state == StateHalfOpen:
		cb.passed++
		if cb.passed >= cb.cfg.HalfOpenMaxCalls {
			cb.moveTo(StateClosed)
		}
	default:
		cb.failures = 0
	}
}

// moveTo must be called with mu held.
func (cb *CircuitBreaker) moveTo(to CircuitBreakerState) {
	if cb.state == to {
		return
	}
	kv := []interface{}{"breaker", cb.name, "from", cb.state.String(), "to", to.String(), "failures", cb.failures}
	if to == StateOpen {
		logger.Warnw("Circuit breaker opened", kv...)
	} else {
		logger.Infow("Circuit breaker state changed", kv...)
	}

	cb.state = to
	cb.probes, cb.passed = 0, 0
	if to == StateClosed {
		cb.failures = 0
	}
}

// State 返回当前状态。
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats snapshots the breaker.
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{
		Name:            cb.name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		LastFailureTime: cb.lastFailure,
	}
}

// Reset closes the breaker and forgets past failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.moveTo(StateClosed)
	cb.failures = 0
}
