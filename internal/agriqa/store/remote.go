package store

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kart-io/agriqa/internal/model"
	apierrors "github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/httpclient"
)

// RemoteSource fetches the current contents of a dataset.
type RemoteSource interface {
	Fetch(ctx context.Context, d model.Descriptor) (*model.Table, error)
}

// ErrRemoteFormat 远程响应既不是 {records:[...]} 也不是对象数组。
var ErrRemoteFormat = fmt.Errorf("unexpected remote payload format")

// DataGovSource reads datasets from the data.gov.in resource API.
type DataGovSource struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	limit   int
}

// NewDataGovSource creates a DataGovSource. Each call is bounded by timeout
// and 5xx answers are retried up to retries times.
func NewDataGovSource(baseURL, apiKey string, limit int, timeout time.Duration, retries int) *DataGovSource {
	return &DataGovSource{
		client:  httpclient.NewClient(timeout, retries),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		limit:   limit,
	}
}

// Fetch implements RemoteSource. Failures are ErrRemoteFetch errnos.
func (s *DataGovSource) Fetch(ctx context.Context, d model.Descriptor) (*model.Table, error) {
	endpoint := s.baseURL + "/" + url.PathEscape(d.ExternalID)
	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(s.limit))

	var headers map[string]string
	if s.apiKey != "" {
		headers = map[string]string{"api-key": s.apiKey}
	}

	var payload interface{}
	if err := s.client.GetJSON(ctx, endpoint, params, headers, &payload); err != nil {
		return nil, apierrors.ErrRemoteFetch.WithCause(fmt.Errorf("%s: %w", d.Key, err))
	}
	table, err := decodeRecords(payload)
	if err != nil {
		return nil, apierrors.ErrRemoteFetch.WithCause(fmt.Errorf("%s: %w", d.Key, err))
	}
	return table, nil
}

// decodeRecords accepts {"records": [...]} or a bare list of objects.
// Columns are the sorted union of record keys.
func decodeRecords(payload interface{}) (*model.Table, error) {
	var items []interface{}
	switch p := payload.(type) {
	case map[string]interface{}:
		recs, ok := p["records"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: object without records list", ErrRemoteFormat)
		}
		items = recs
	case []interface{}:
		items = p
	default:
		return nil, fmt.Errorf("%w: %T", ErrRemoteFormat, payload)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrRemoteFormat)
	}

	seen := make(map[string]bool)
	t := &model.Table{Rows: make([]model.Row, 0, len(items))}
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: record %d is %T", ErrRemoteFormat, i, item)
		}
		for k := range obj {
			if !seen[k] {
				seen[k] = true
				t.Columns = append(t.Columns, k)
			}
		}
		t.Rows = append(t.Rows, model.Row(obj))
	}
	sort.Strings(t.Columns)
	return t, nil
}
