package resilience

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/pkg/llm"
	"github.com/kart-io/agriqa/pkg/utils/httpclient"
)

var errBoom = &httpclient.StatusError{StatusCode: 503, Body: "unavailable"}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int, timeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{
		MaxFailures:      maxFailures,
		Timeout:          timeout,
		HalfOpenMaxCalls: 1,
	})
	cb.now = clock.now
	return cb, clock
}

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(func() error { return errBoom }))
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitBreakerOpen)
	assert.Equal(t, 3, cb.Stats().Failures)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Minute)

	_ = cb.Execute(func() error { return errBoom })
	require.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return errBoom })

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenThenClosed(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	_ = cb.Execute(func() error { return errBoom })
	require.Equal(t, StateOpen, cb.State())

	clock.advance(time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	_ = cb.Execute(func() error { return errBoom })
	clock.advance(2 * time.Minute)
	_ = cb.Execute(func() error { return errBoom })

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitBreakerOpen)
}

func TestCircuitBreaker_CancellationNotCounted(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)

	_ = cb.Execute(func() error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	_ = cb.Execute(func() error { return errBoom })
	cb.Reset()

	stats := cb.Stats()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, "test", stats.Name)
	assert.Zero(t, stats.Failures)
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	_ = cb.Execute(func() error { return errBoom })
	clock.advance(time.Minute)

	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			<-release
			return nil
		})
	}()

	require.Eventually(t, func() bool { return cb.State() == StateHalfOpen }, time.Second, time.Millisecond)
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitBreakerOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerState_String(t *testing.T) {
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitBreakerState(7).String())
}

func TestRetry_EventualSuccess(t *testing.T) {
	var calls int
	got, err := Retry(context.Background(), fastRetry(3), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errBoom
		}
		return calls, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestRetry_MaxAttemptsReached(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastRetry(2), func() (struct{}, error) {
		calls++
		return struct{}{}, errBoom
	})
	assert.Same(t, errBoom, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_NonRetryableStopsUnwrapped(t *testing.T) {
	var calls int
	badRequest := &httpclient.StatusError{StatusCode: 400}
	_, err := Retry(context.Background(), fastRetry(5), func() (struct{}, error) {
		calls++
		return struct{}{}, badRequest
	})
	assert.Same(t, badRequest, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_SingleAttemptNonRetryable(t *testing.T) {
	badRequest := &httpclient.StatusError{StatusCode: 400}
	_, err := Retry(context.Background(), fastRetry(1), func() (struct{}, error) {
		return struct{}{}, badRequest
	})
	assert.Same(t, badRequest, err)
}

func TestRetry_CustomRetryable(t *testing.T) {
	cfg := fastRetry(3)
	cfg.Retryable = func(error) bool { return true }

	var calls int
	_, err := Retry(context.Background(), cfg, func() (struct{}, error) {
		calls++
		return struct{}{}, errors.New("parse failure")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(5)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Retry(ctx, cfg, func() (struct{}, error) { return struct{}{}, errBoom })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"breaker open", ErrCircuitBreakerOpen, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"500", &httpclient.StatusError{StatusCode: 500}, true},
		{"429", &httpclient.StatusError{StatusCode: 429}, true},
		{"408", &httpclient.StatusError{StatusCode: 408}, true},
		{"401", &httpclient.StatusError{StatusCode: 401}, false},
		{"dns", &net.DNSError{Err: "no such host"}, true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"plain", errors.New("parse failure"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

type flakyChat struct {
	calls    atomic.Int32
	failures int32
}

func (f *flakyChat) Name() string { return "flaky" }

func (f *flakyChat) Generate(_ context.Context, prompt string, _ float64) (*llm.GenerateResponse, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, errBoom
	}
	return &llm.GenerateResponse{Content: "ok: " + prompt}, nil
}

func TestResilientChatProvider_RetriesTransientFailures(t *testing.T) {
	inner := &flakyChat{failures: 2}
	p := NewResilientChatProvider(inner, fastRetry(3), nil)

	resp, err := p.Generate(context.Background(), "q", 0.3)
	require.NoError(t, err)
	assert.Equal(t, "ok: q", resp.Content)
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, "flaky-resilient", p.Name())
	assert.Same(t, p.CircuitBreaker(), BreakerOf(p))
}

func TestResilientChatProvider_BreakerStopsCalls(t *testing.T) {
	inner := &flakyChat{failures: 100}
	p := NewResilientChatProvider(inner, fastRetry(1), &CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Hour, HalfOpenMaxCalls: 1})

	for i := 0; i < 2; i++ {
		_, err := p.Generate(context.Background(), "q", 0.3)
		require.Error(t, err)
	}
	_, err := p.Generate(context.Background(), "q", 0.3)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, int32(2), inner.calls.Load())
}

type flakyEmbedder struct{ calls atomic.Int32 }

func (f *flakyEmbedder) Name() string { return "flaky" }

func (f *flakyEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.calls.Add(1) == 1 {
		return nil, errBoom
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f *flakyEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func TestResilientEmbeddingProvider(t *testing.T) {
	p := NewResilientEmbeddingProvider(&flakyEmbedder{}, fastRetry(2), nil)

	v, err := p.EmbedSingle(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
	assert.Nil(t, BreakerOf(&flakyEmbedder{}))
}

func TestBreakerOf_LooksThroughCache(t *testing.T) {
	p := NewResilientEmbeddingProvider(&flakyEmbedder{}, fastRetry(1), nil)
	cached := llm.NewCachedEmbeddingProvider(p, nil, nil)

	assert.Same(t, p.CircuitBreaker(), BreakerOf(cached))
	assert.Nil(t, BreakerOf(llm.NewCachedEmbeddingProvider(&flakyEmbedder{}, nil, nil)))
}
