package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/internal/agriqa/catalog"
	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/infra/pool"
	apierrors "github.com/kart-io/agriqa/pkg/utils/errors"
)

type fakeRemote struct {
	calls atomic.Int32
	err   error
	table *model.Table
	delay time.Duration
	gate  chan struct{}
}

func (f *fakeRemote) Fetch(ctx context.Context, _ model.Descriptor) (*model.Table, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

type memoryRepo struct {
	mu    sync.Mutex
	snaps map[string]*model.Snapshot
	err   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{snaps: map[string]*model.Snapshot{}}
}

func (r *memoryRepo) Load(_ context.Context, key string) (*model.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.snaps[key]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return s, nil
}

func (r *memoryRepo) Save(_ context.Context, s *model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.snaps[s.Key] = s
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func remoteTable() *model.Table {
	return &model.Table{
		Columns: []string{"State", "Year"},
		Rows:    []model.Row{{"State": "Punjab", "Year": 2015.0}, {"State": "Goa", "Year": 2016.0}},
	}
}

func TestFetch_UnknownDataset(t *testing.T) {
	s := NewDatasetStore(newMemoryRepo(), &fakeRemote{table: remoteTable()})
	_, err := s.Fetch(context.Background(), "soil_health", false)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrUnknownDataset.Code))

	_, err = s.Describe(context.Background(), "soil_health")
	assert.Error(t, err)
	_, err = s.Query(context.Background(), "soil_health", nil, 10)
	assert.Error(t, err)
}

func TestFetch_CachesWithinTTL(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	remote := &fakeRemote{table: remoteTable()}
	s := NewDatasetStore(newMemoryRepo(), remote, WithTTL(time.Hour), WithClock(c.Now))
	ctx := context.Background()

	tbl, err := s.Fetch(ctx, catalog.RainfallData, false)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	c.Advance(30 * time.Minute)
	_, err = s.Fetch(ctx, catalog.RainfallData, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), remote.calls.Load())

	_, err = s.Fetch(ctx, catalog.RainfallData, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), remote.calls.Load())

	c.Advance(2 * time.Hour)
	_, err = s.Fetch(ctx, catalog.RainfallData, false)
	require.NoError(t, err)
	assert.Equal(t, int32(3), remote.calls.Load())
}

func TestFetch_RemoteFailureFallsBackToSynthetic(t *testing.T) {
	repo := newMemoryRepo()
	s := NewDatasetStore(repo, &fakeRemote{err: errors.New("connection refused")})

	tbl, err := s.Fetch(context.Background(), catalog.CropProduction, false)
	require.NoError(t, err)
	assert.Equal(t, 1100, tbl.Len())
	assert.Equal(t, model.OriginSynthetic, repo.snaps[catalog.CropProduction].Origin)

	info, err := s.Describe(context.Background(), catalog.CropProduction)
	require.NoError(t, err)
	assert.Equal(t, model.OriginSynthetic, info.Origin)
	assert.Equal(t, 1100, info.RowCount)
	assert.NotNil(t, info.LastCached)
}

func TestFetch_RemoteTimeoutFallsBackToSynthetic(t *testing.T) {
	repo := newMemoryRepo()
	s := NewDatasetStore(repo, &fakeRemote{err: context.DeadlineExceeded})

	tbl, err := s.Fetch(context.Background(), catalog.RainfallData, false)
	require.NoError(t, err)
	assert.Equal(t, 1320, tbl.Len())
	assert.Equal(t, model.OriginSynthetic, repo.snaps[catalog.RainfallData].Origin)
}

func TestFetch_CancelledCallerLeavesSnapshotAlone(t *testing.T) {
	repo := newMemoryRepo()
	remote := &fakeRemote{table: remoteTable()}
	s := NewDatasetStore(repo, remote)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Fetch(ctx, catalog.RainfallData, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.snaps)

	info, err := s.Describe(context.Background(), catalog.RainfallData)
	require.NoError(t, err)
	assert.Equal(t, model.OriginRemote, info.Origin)
	assert.Equal(t, 2, info.RowCount)
	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestFetch_CallerDeadlineDoesNotAbortSharedRefresh(t *testing.T) {
	repo := newMemoryRepo()
	remote := &fakeRemote{table: remoteTable(), gate: make(chan struct{})}
	s := NewDatasetStore(repo, remote)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Fetch(ctx, catalog.RainfallData, false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan *model.Table, 1)
	go func() {
		tbl, err := s.Fetch(context.Background(), catalog.RainfallData, false)
		assert.NoError(t, err)
		done <- tbl
	}()
	close(remote.gate)

	tbl := <-done
	require.NotNil(t, tbl)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, int32(1), remote.calls.Load())
	assert.Equal(t, model.OriginRemote, repo.snaps[catalog.RainfallData].Origin)
}

func TestRefresh_CancelledContextSkipsFallback(t *testing.T) {
	repo := newMemoryRepo()
	s := NewDatasetStore(repo, &fakeRemote{table: remoteTable()})
	desc, err := catalog.Get(catalog.CropProduction)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.refresh(ctx, desc)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.snaps)

	info := s.Peek(context.Background(), desc)
	assert.Nil(t, info.LastCached)
}

type panicRemote struct{}

func (panicRemote) Fetch(context.Context, model.Descriptor) (*model.Table, error) {
	panic("decoder bug")
}

func TestFetch_RemotePanicBecomesError(t *testing.T) {
	repo := newMemoryRepo()
	s := NewDatasetStore(repo, panicRemote{})

	_, err := s.Fetch(context.Background(), catalog.AgriPrices, false)
	assert.ErrorContains(t, err, "panicked: decoder bug")
	assert.Empty(t, repo.snaps)
}

func TestFetch_NilRemoteUsesSynthetic(t *testing.T) {
	s := NewDatasetStore(nil, nil)
	tbl, err := s.Fetch(context.Background(), catalog.ClimateData, false)
	require.NoError(t, err)
	assert.Equal(t, 660, tbl.Len())
}

func TestFetch_LoadsPersistedSnapshot(t *testing.T) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo := newMemoryRepo()
	repo.snaps[catalog.AgriPrices] = &model.Snapshot{
		Key: catalog.AgriPrices, Origin: model.OriginRemote, FetchedAt: c.Now().Add(-time.Minute), Table: remoteTable(),
	}
	remote := &fakeRemote{table: remoteTable()}
	s := NewDatasetStore(repo, remote, WithClock(c.Now))

	tbl, err := s.Fetch(context.Background(), catalog.AgriPrices, false)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Zero(t, remote.calls.Load())
}

func TestFetch_PersistFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.err = errors.New("disk full")
	s := NewDatasetStore(repo, &fakeRemote{table: remoteTable()})

	_, err := s.Fetch(context.Background(), catalog.RainfallData, false)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrSnapshotStore.Code))

	info, err := s.Describe(context.Background(), catalog.RainfallData)
	require.NoError(t, err)
	assert.Zero(t, info.RowCount)
	assert.Nil(t, info.LastCached)
}

func TestFetch_ConcurrentCallersShareOneFetch(t *testing.T) {
	remote := &fakeRemote{table: remoteTable(), delay: 50 * time.Millisecond}
	s := NewDatasetStore(newMemoryRepo(), remote)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl, err := s.Fetch(context.Background(), catalog.RainfallData, false)
			assert.NoError(t, err)
			assert.Equal(t, 2, tbl.Len())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestQuery(t *testing.T) {
	s := NewDatasetStore(nil, nil)
	ctx := context.Background()

	tbl, err := s.Query(ctx, catalog.CropProduction, Filters{
		"State": []string{"Punjab", "Haryana"},
		"Crop":  "rice",
		"Year":  []int{2015, 2016, 2017},
	}, 1000)
	require.NoError(t, err)
	assert.Equal(t, 6, tbl.Len())

	tbl, err = s.Query(ctx, catalog.CropProduction, nil, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, tbl.Len())

	page, err := s.QueryPage(ctx, catalog.CropProduction, Filters{"State": "Punjab"}, 10, 105)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Len())
}

func TestRefreshAndPeek(t *testing.T) {
	remote := &fakeRemote{table: remoteTable()}
	s := NewDatasetStore(newMemoryRepo(), remote)
	ctx := context.Background()

	desc, _ := catalog.Get(catalog.RainfallData)
	peek := s.Peek(ctx, desc)
	assert.Nil(t, peek.LastCached)

	info, err := s.Refresh(ctx, catalog.RainfallData)
	require.NoError(t, err)
	assert.Equal(t, model.OriginRemote, info.Origin)
	assert.Equal(t, []string{"State", "Year"}, info.Columns)

	peek = s.Peek(ctx, desc)
	assert.Equal(t, 2, peek.RowCount)
}

func TestLoadAll(t *testing.T) {
	p, err := pool.New("dataset-test", pool.DatasetConfig(2))
	require.NoError(t, err)
	defer p.Release()

	s := NewDatasetStore(newMemoryRepo(), &fakeRemote{err: errors.New("offline")}, WithLoaderPool(p))

	results := s.LoadAll(context.Background())
	require.Len(t, results, 5)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, model.OriginSynthetic, r.Origin)
		assert.Positive(t, r.Rows)
	}
}
