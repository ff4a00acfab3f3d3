package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/agriqa/internal/agriqa/catalog"
	"github.com/kart-io/agriqa/internal/agriqa/store"
	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/response"
)

// DefaultQueryLimit 未指定 limit 时返回的行数。
const DefaultQueryLimit = 100

// DatasetQueryRequest is the body of POST /datasets/query.
type DatasetQueryRequest struct {
	DatasetKey string                 `json:"dataset_key" validate:"required,dataset_key"`
	Filters    map[string]interface{} `json:"filters"`
	Limit      int                    `json:"limit" validate:"omitempty,min=1,max=1000"`
	Offset     int                    `json:"offset" validate:"min=0"`
}

// DatasetQueryResponse is one page of filtered rows.
type DatasetQueryResponse struct {
	DatasetKey string      `json:"dataset_key"`
	RowCount   int         `json:"row_count"`
	Columns    []string    `json:"columns"`
	Rows       []model.Row `json:"rows"`
}

// ListDatasets lists catalog datasets, optionally of one category, with
// what is known about their cached snapshots.
func (h *Handler) ListDatasets(c *gin.Context) {
	descs := catalog.ByCategory(c.Query("category"))
	out := make([]*model.DatasetInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, h.datasets.Peek(c.Request.Context(), d))
	}
	response.OK(c, out)
}

// DatasetDetail is a dataset description, with the indexed context most
// related to the q parameter when one was given.
type DatasetDetail struct {
	*model.DatasetInfo
	Context string `json:"context,omitempty"`
}

// GetDataset describes one dataset.
func (h *Handler) GetDataset(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")
	info, err := h.datasets.Describe(ctx, key)
	if err != nil {
		response.Fail(c, err)
		return
	}

	detail := &DatasetDetail{DatasetInfo: info}
	if q := strings.TrimSpace(c.Query("q")); q != "" && h.contexts != nil {
		text, err := h.contexts.DatasetContext(ctx, key, q)
		if err != nil {
			logger.Warnw("Dataset context lookup failed", "dataset", key, "error", err.Error())
		}
		detail.Context = text
	}
	response.OK(c, detail)
}

// RefreshDataset refetches one dataset and describes the result.
func (h *Handler) RefreshDataset(c *gin.Context) {
	info, err := h.datasets.Refresh(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, info)
}

// QueryDataset returns rows of one dataset matching the filters.
func (h *Handler) QueryDataset(c *gin.Context) {
	var req DatasetQueryRequest
	if !h.bind(c, &req, errors.ErrInvalidFilter) {
		return
	}
	if err := validateFilters(req.Filters); err != nil {
		response.Fail(c, errors.ErrInvalidFilter.WithCause(err))
		return
	}
	if req.Limit == 0 {
		req.Limit = DefaultQueryLimit
	}

	t, err := h.datasets.QueryPage(c.Request.Context(), req.DatasetKey, store.Filters(req.Filters), req.Limit, req.Offset)
	if err != nil {
		response.Fail(c, err)
		return
	}

	rows := t.Rows
	if rows == nil {
		rows = []model.Row{}
	}
	response.OK(c, &DatasetQueryResponse{
		DatasetKey: req.DatasetKey,
		RowCount:   len(rows),
		Columns:    t.Columns,
		Rows:       rows,
	})
}

// validateFilters accepts scalar values and lists of scalars.
func validateFilters(filters map[string]interface{}) error {
	for col, v := range filters {
		if col == "" {
			return fmt.Errorf("filter column name is empty")
		}
		if list, ok := v.([]interface{}); ok {
			if len(list) == 0 {
				return fmt.Errorf("filter %q has an empty list", col)
			}
			for _, item := range list {
				if !isScalar(item) {
					return fmt.Errorf("filter %q contains a non-scalar value", col)
				}
			}
			continue
		}
		if !isScalar(v) {
			return fmt.Errorf("filter %q must be a scalar or a list of scalars", col)
		}
	}
	return nil
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, float64, bool, nil:
		return true
	}
	return false
}
