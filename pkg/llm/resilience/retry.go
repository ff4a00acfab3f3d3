package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/kart-io/logger"

	"github.com/kart-io/agriqa/pkg/utils/httpclient"
)

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 总尝试次数，包括首次调用。
	MaxAttempts int
	// InitialDelay 首次重试前的等待。
	InitialDelay time.Duration
	// MaxDelay 单次等待上限。
	MaxDelay time.Duration
	// Multiplier 每次重试后等待时间的倍数。
	Multiplier float64
	// Jitter 等待时间的随机浮动比例，0 表示固定间隔。
	Jitter float64
	// Retryable 判断错误是否值得重试，为空时使用 IsRetryableError。
	Retryable func(error) bool
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

func (c *RetryConfig) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.MaxInterval = c.MaxDelay
	b.Multiplier = c.Multiplier
	b.RandomizationFactor = c.Jitter
	return b
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. The error of the last attempt is returned
// unwrapped.
func Retry[T any](ctx context.Context, cfg *RetryConfig, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}
	attempts := max(cfg.MaxAttempts, 1)

	out, err := backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(cfg.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Debugw("Retrying LLM call", "wait", wait, "error", err.Error())
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return out, err
}

// IsRetryableError 判断错误是否可重试：网络错误、408、429 与 5xx 可重试，
// 熔断与上下文取消不可重试。
func IsRetryableError(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrCircuitBreakerOpen),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
