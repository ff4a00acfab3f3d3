// Package handler provides the agriqa HTTP handlers.
package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/agriqa/internal/agriqa/store"
	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/response"
	"github.com/kart-io/agriqa/pkg/utils/validator"
)

// QAService answers questions.
type QAService interface {
	Process(ctx context.Context, query, conversationID string) (*model.Response, error)
	ExtractEntities(ctx context.Context, query string) (*model.Entities, error)
}

// DatasetService serves catalog datasets.
type DatasetService interface {
	Describe(ctx context.Context, key string) (*model.DatasetInfo, error)
	Refresh(ctx context.Context, key string) (*model.DatasetInfo, error)
	QueryPage(ctx context.Context, key string, filters store.Filters, limit, offset int) (*model.Table, error)
	Peek(ctx context.Context, desc model.Descriptor) *model.DatasetInfo
}

// ContextSource returns the indexed text of a dataset most related to a
// question.
type ContextSource interface {
	DatasetContext(ctx context.Context, key, query string) (string, error)
}

// Check probes one dependency; a nil Check reports the service as disabled.
type Check func(ctx context.Context) error

// Handler groups the agriqa HTTP handlers.
type Handler struct {
	qa          QAService
	datasets    DatasetService
	chatTimeout time.Duration
	validator   *validator.Validator
	contexts    ContextSource
}

// Option configures a Handler.
type Option func(*Handler)

// WithContextSource lets GET /datasets/{key}?q= include the indexed
// context of the dataset.
func WithContextSource(src ContextSource) Option {
	return func(h *Handler) { h.contexts = src }
}

// NewHandler 创建问答与数据集处理器。chatTimeout 为单个问题的处理时限。
func NewHandler(qa QAService, datasets DatasetService, chatTimeout time.Duration, opts ...Option) *Handler {
	if chatTimeout <= 0 {
		chatTimeout = 120 * time.Second
	}
	h := &Handler{
		qa:          qa,
		datasets:    datasets,
		chatTimeout: chatTimeout,
		validator:   validator.Global(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// bind decodes the JSON body into req and validates it. Failures are
// written as errno and reported false.
func (h *Handler) bind(c *gin.Context, req interface{}, errno *errors.Errno) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		lang := c.GetHeader("Accept-Language")
		response.Fail(c, errno.WithCause(h.validator.Translate(err, lang)))
		return false
	}
	return true
}
