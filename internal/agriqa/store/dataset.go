package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/sync/singleflight"

	"github.com/kart-io/agriqa/internal/agriqa/catalog"
	"github.com/kart-io/agriqa/internal/agriqa/metrics"
	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/infra/pool"
	apierrors "github.com/kart-io/agriqa/pkg/utils/errors"
)

// DefaultTTL 快照默认有效期
const DefaultTTL = 24 * time.Hour

// DatasetStore serves catalog datasets from fresh snapshots, refreshing
// them from the remote source or from synthetic data.
//
// Tables handed out by the store are shared and must be treated as
// read-only.
type DatasetStore struct {
	repo   SnapshotRepository
	remote RemoteSource
	ttl    time.Duration
	now    func() time.Time
	loader *pool.Pool

	mu    sync.RWMutex
	slots map[string]*model.Snapshot

	group singleflight.Group
}

// Option configures a DatasetStore.
type Option func(*DatasetStore)

// WithTTL sets the snapshot freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(s *DatasetStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *DatasetStore) { s.now = now }
}

// WithLoaderPool runs LoadAll on p instead of one goroutine per dataset.
func WithLoaderPool(p *pool.Pool) Option {
	return func(s *DatasetStore) { s.loader = p }
}

// NewDatasetStore creates a DatasetStore. A nil remote makes every refresh
// use synthetic data.
func NewDatasetStore(repo SnapshotRepository, remote RemoteSource, opts ...Option) *DatasetStore {
	s := &DatasetStore{
		repo:   repo,
		remote: remote,
		ttl:    DefaultTTL,
		now:    time.Now,
		slots:  make(map[string]*model.Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns the dataset table. A fresh snapshot is reused unless
// forceRefresh is set; otherwise the remote source is consulted and any
// remote failure falls back to synthetic data.
func (s *DatasetStore) Fetch(ctx context.Context, key string, forceRefresh bool) (*model.Table, error) {
	snap, err := s.fetchSnapshot(ctx, key, forceRefresh)
	if err != nil {
		return nil, err
	}
	return snap.Table, nil
}

func (s *DatasetStore) fetchSnapshot(ctx context.Context, key string, forceRefresh bool) (*model.Snapshot, error) {
	desc, err := catalog.Get(key)
	if err != nil {
		return nil, err
	}

	if !forceRefresh {
		if snap := s.cached(ctx, key); snap != nil && s.fresh(snap) {
			logger.Debugw("Dataset served from snapshot", "dataset", key, "origin", snap.Origin)
			metrics.GetQAMetrics().RecordFetch("cache")
			return snap, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The shared refresh outlives any single caller; callers that give up
	// only drop their own result.
	ch := s.group.DoChan(key, func() (v interface{}, err error) {
		// DoChan would re-panic on a goroutine nobody can recover.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("refresh %s panicked: %v", key, r)
			}
		}()
		return s.refresh(context.WithoutCancel(ctx), desc)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*model.Snapshot), nil
	}
}

// refresh fetches remotely, falls back to synthetic data and persists the
// result before publishing it.
func (s *DatasetStore) refresh(ctx context.Context, desc model.Descriptor) (*model.Snapshot, error) {
	snap := &model.Snapshot{Key: desc.Key, Origin: model.OriginRemote}

	var table *model.Table
	var err error
	if s.remote != nil {
		logger.Infow("Fetching dataset from remote source", "dataset", desc.Key)
		table, err = s.remote.Fetch(ctx, desc)
	} else {
		err = errors.New("no remote source configured")
	}
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		logger.Warnw("Remote fetch failed, using synthetic data", "dataset", desc.Key, "error", err.Error())
		table, err = Synthesize(desc.Key)
		if err != nil {
			return nil, err
		}
		snap.Origin = model.OriginSynthetic
	}
	metrics.GetQAMetrics().RecordFetch(string(snap.Origin))

	snap.Table = table
	snap.FetchedAt = s.now()

	if s.repo != nil {
		if err := s.repo.Save(ctx, snap); err != nil {
			return nil, apierrors.ErrSnapshotStore.WithCause(fmt.Errorf("save %s: %w", desc.Key, err))
		}
	}

	s.mu.Lock()
	s.slots[desc.Key] = snap
	s.mu.Unlock()

	logger.Infow("Dataset snapshot stored", "dataset", desc.Key, "rows", table.Len(), "origin", snap.Origin)
	return snap, nil
}

// cached returns the in-memory snapshot, loading it from the repository on
// first use.
func (s *DatasetStore) cached(ctx context.Context, key string) *model.Snapshot {
	s.mu.RLock()
	snap := s.slots[key]
	s.mu.RUnlock()
	if snap != nil || s.repo == nil {
		return snap
	}

	loaded, err := s.repo.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrSnapshotNotFound) {
			logger.Warnw("Failed to load persisted snapshot", "dataset", key, "error", err.Error())
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.slots[key]; cur != nil && !cur.FetchedAt.Before(loaded.FetchedAt) {
		return cur
	}
	s.slots[key] = loaded
	return loaded
}

func (s *DatasetStore) fresh(snap *model.Snapshot) bool {
	return s.now().Sub(snap.FetchedAt) < s.ttl
}

// Query fetches the dataset and applies filters, keeping at most limit rows.
func (s *DatasetStore) Query(ctx context.Context, key string, filters Filters, limit int) (*model.Table, error) {
	return s.QueryPage(ctx, key, filters, limit, 0)
}

// QueryPage is Query with an offset applied after filtering.
func (s *DatasetStore) QueryPage(ctx context.Context, key string, filters Filters, limit, offset int) (*model.Table, error) {
	t, err := s.Fetch(ctx, key, false)
	if err != nil {
		return nil, err
	}
	return FilterTable(t, filters, limit, offset), nil
}

// Describe returns the descriptor together with row count, columns and the
// snapshot time. The dataset is fetched first when it is not fresh.
func (s *DatasetStore) Describe(ctx context.Context, key string) (*model.DatasetInfo, error) {
	desc, err := catalog.Get(key)
	if err != nil {
		return nil, err
	}

	snap, err := s.fetchSnapshot(ctx, key, false)
	if err != nil {
		logger.Warnw("Could not get dataset info", "dataset", key, "error", err.Error())
		return &model.DatasetInfo{Descriptor: desc, Columns: []string{}}, nil
	}
	return infoFor(desc, snap), nil
}

// Refresh forces a new fetch and describes the result.
func (s *DatasetStore) Refresh(ctx context.Context, key string) (*model.DatasetInfo, error) {
	desc, err := catalog.Get(key)
	if err != nil {
		return nil, err
	}
	snap, err := s.fetchSnapshot(ctx, key, true)
	if err != nil {
		return nil, err
	}
	return infoFor(desc, snap), nil
}

// Peek describes a dataset from what is already cached, without fetching.
func (s *DatasetStore) Peek(ctx context.Context, desc model.Descriptor) *model.DatasetInfo {
	if snap := s.cached(ctx, desc.Key); snap != nil {
		return infoFor(desc, snap)
	}
	return &model.DatasetInfo{Descriptor: desc, Columns: []string{}}
}

func infoFor(desc model.Descriptor, snap *model.Snapshot) *model.DatasetInfo {
	fetched := snap.FetchedAt
	return &model.DatasetInfo{
		Descriptor: desc,
		RowCount:   snap.Table.Len(),
		Columns:    append([]string{}, snap.Table.Columns...),
		LastCached: &fetched,
		Origin:     snap.Origin,
	}
}

// LoadResult is the outcome of loading one dataset.
type LoadResult struct {
	Key    string
	Rows   int
	Origin model.Origin
	Err    error
}

// LoadAll fetches every catalog dataset concurrently. One dataset failing
// does not affect the others.
func (s *DatasetStore) LoadAll(ctx context.Context) []LoadResult {
	keys := catalog.Keys()
	results := make([]LoadResult, len(keys))

	tasks := make([]func(context.Context) error, len(keys))
	for i, key := range keys {
		i, key := i, key
		results[i].Key = key
		tasks[i] = func(ctx context.Context) error {
			snap, err := s.fetchSnapshot(ctx, key, false)
			if err != nil {
				return err
			}
			results[i].Rows = snap.Table.Len()
			results[i].Origin = snap.Origin
			return nil
		}
	}

	var errs []error
	if s.loader != nil {
		errs = s.loader.Run(ctx, tasks...)
	} else {
		errs = pool.Go(ctx, tasks...)
	}

	for i, err := range errs {
		results[i].Err = err
		if err != nil {
			logger.Errorw("Failed to load dataset", "dataset", results[i].Key, "error", err.Error())
		} else {
			logger.Infow("Loaded dataset", "dataset", results[i].Key, "rows", results[i].Rows)
		}
	}
	return results
}
