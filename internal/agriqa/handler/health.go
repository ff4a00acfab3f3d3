package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"

	"github.com/kart-io/agriqa/internal/agriqa/metrics"
	"github.com/kart-io/agriqa/pkg/infra/pool"
	"github.com/kart-io/agriqa/pkg/llm/resilience"
	"github.com/kart-io/agriqa/pkg/utils/response"
)

// 服务状态
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"
)

// healthCheckTimeout 单项依赖探测的时限。
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Services      map[string]string `json:"services"`
	Timestamp     time.Time         `json:"timestamp"`
}

// HealthChecks are the dependency probes reported by /health.
type HealthChecks struct {
	Datasets Check
	Index    Check
	LLM      Check
	Cache    Check
}

// PoolStatter reports worker pool counters.
type PoolStatter interface {
	Stats() pool.Stats
}

// HealthHandler reports service health and pipeline counters.
type HealthHandler struct {
	checks    HealthChecks
	pools     []PoolStatter
	breakers  []*resilience.CircuitBreaker
	startedAt time.Time
	now       func() time.Time
}

// HealthOption configures a HealthHandler.
type HealthOption func(*HealthHandler)

// WithPools adds worker pool counters to the JSON metrics.
func WithPools(pools ...PoolStatter) HealthOption {
	return func(h *HealthHandler) { h.pools = append(h.pools, pools...) }
}

// WithBreakers adds circuit breaker states to the JSON metrics. Nil
// breakers are skipped.
func WithBreakers(breakers ...*resilience.CircuitBreaker) HealthOption {
	return func(h *HealthHandler) {
		for _, cb := range breakers {
			if cb != nil {
				h.breakers = append(h.breakers, cb)
			}
		}
	}
}

// NewHealthHandler 创建健康检查处理器。
func NewHealthHandler(checks HealthChecks, startedAt time.Time, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{checks: checks, startedAt: startedAt, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health probes every dependency. Any failing probe degrades the status.
func (h *HealthHandler) Health(c *gin.Context) {
	services := map[string]string{
		"datasets": probe(c.Request.Context(), h.checks.Datasets),
		"index":    probe(c.Request.Context(), h.checks.Index),
		"llm":      probe(c.Request.Context(), h.checks.LLM),
		"cache":    probe(c.Request.Context(), h.checks.Cache),
	}

	status := StatusHealthy
	for _, s := range services {
		if s == StatusUnhealthy {
			status = StatusDegraded
		}
	}

	now := h.now()
	response.OK(c, &HealthResponse{
		Status:        status,
		Version:       version.Get().GitVersion,
		UptimeSeconds: now.Sub(h.startedAt).Seconds(),
		Services:      services,
		Timestamp:     now.UTC(),
	})
}

// Metrics returns the pipeline counters as JSON, or in Prometheus text
// format with ?format=prometheus.
func (h *HealthHandler) Metrics(c *gin.Context) {
	m := metrics.GetQAMetrics()
	if c.Query("format") == "prometheus" {
		c.String(http.StatusOK, m.Export("agriqa", "qa"))
		return
	}
	stats := m.Stats()
	if len(h.pools) > 0 {
		pools := make([]pool.Stats, len(h.pools))
		for i, p := range h.pools {
			pools[i] = p.Stats()
		}
		stats["pools"] = pools
	}
	if len(h.breakers) > 0 {
		breakers := make([]resilience.BreakerStats, len(h.breakers))
		for i, cb := range h.breakers {
			breakers[i] = cb.Stats()
		}
		stats["breakers"] = breakers
	}
	response.OK(c, stats)
}

func probe(ctx context.Context, check Check) string {
	if check == nil {
		return StatusDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := check(ctx); err != nil {
		return StatusUnhealthy
	}
	return StatusHealthy
}
