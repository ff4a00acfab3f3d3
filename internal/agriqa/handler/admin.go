package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/response"
)

// IndexRebuilder rebuilds the relevance index.
type IndexRebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// CacheClearer drops cached entries.
type CacheClearer interface {
	Clear(ctx context.Context) (int, error)
}

// AdminHandler serves maintenance operations.
type AdminHandler struct {
	index  IndexRebuilder
	caches map[string]CacheClearer
}

// NewAdminHandler 创建运维处理器，caches 按名称列出可清理的缓存。
func NewAdminHandler(index IndexRebuilder, caches map[string]CacheClearer) *AdminHandler {
	return &AdminHandler{index: index, caches: caches}
}

// RebuildIndex drops and rebuilds the relevance index.
func (h *AdminHandler) RebuildIndex(c *gin.Context) {
	n, err := h.index.Rebuild(c.Request.Context())
	if err != nil {
		response.Fail(c, errors.ErrIndexFailed.WithCause(err))
		return
	}
	logger.Infow("Relevance index rebuilt", "documents", n)
	response.OK(c, gin.H{"documents": n})
}

// ClearCache clears every configured cache and reports removed keys per
// cache.
func (h *AdminHandler) ClearCache(c *gin.Context) {
	removed := make(map[string]int, len(h.caches))
	for name, cc := range h.caches {
		n, err := cc.Clear(c.Request.Context())
		if err != nil {
			response.Fail(c, errors.ErrCacheFailed.WithCause(err))
			return
		}
		removed[name] = n
	}
	response.OK(c, gin.H{"removed": removed})
}
