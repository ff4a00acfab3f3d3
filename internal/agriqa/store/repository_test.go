package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/component/database"
	dbopts "github.com/kart-io/agriqa/pkg/options/database"
)

func testSnapshot(key string, at time.Time) *model.Snapshot {
	return &model.Snapshot{
		Key:       key,
		Origin:    model.OriginSynthetic,
		FetchedAt: at,
		Table: &model.Table{
			Columns: []string{"State", "Year"},
			Rows:    []model.Row{{"State": "Punjab", "Year": 2015}},
		},
	}
}

// exerciseRepository 对任意 SnapshotRepository 执行相同的读写检查。
func exerciseRepository(t *testing.T, repo SnapshotRepository) {
	ctx := context.Background()

	_, err := repo.Load(ctx, "crop_production")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, testSnapshot("crop_production", first)))

	got, err := repo.Load(ctx, "crop_production")
	require.NoError(t, err)
	assert.Equal(t, model.OriginSynthetic, got.Origin)
	assert.True(t, got.FetchedAt.Equal(first))
	assert.Equal(t, []string{"State", "Year"}, got.Table.Columns)
	assert.Equal(t, 2015.0, got.Table.Rows[0]["Year"])

	second := first.Add(time.Hour)
	next := testSnapshot("crop_production", second)
	next.Origin = model.OriginRemote
	next.Table.Rows = append(next.Table.Rows, model.Row{"State": "Goa", "Year": 2016})
	require.NoError(t, repo.Save(ctx, next))

	got, err = repo.Load(ctx, "crop_production")
	require.NoError(t, err)
	assert.Equal(t, model.OriginRemote, got.Origin)
	assert.Equal(t, 2, got.Table.Len())
	assert.True(t, got.FetchedAt.Equal(second))
}

func TestFileRepository(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	repo, err := NewFileRepository(dir)
	require.NoError(t, err)

	exerciseRepository(t, repo)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "crop_production.json", entries[0].Name())
}

func TestGormRepository(t *testing.T) {
	opts := dbopts.NewOptions()
	opts.DSN = filepath.Join(t.TempDir(), "agriqa.db")
	client, err := database.New(context.Background(), opts)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	repo, err := NewGormRepository(client.DB())
	require.NoError(t, err)

	exerciseRepository(t, repo)

	var count int64
	require.NoError(t, client.DB().Model(&model.SnapshotRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
