package store

import (
	"context"
	"errors"

	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/utils/json"
)

// ErrSnapshotNotFound 快照不存在
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository persists the one snapshot kept per dataset key.
// Save replaces the previous snapshot atomically.
type SnapshotRepository interface {
	Load(ctx context.Context, key string) (*model.Snapshot, error)
	Save(ctx context.Context, snap *model.Snapshot) error
}

func encodeSnapshot(snap *model.Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

// decodeSnapshot turns persisted bytes back into a snapshot. Numbers come
// back as float64.
func decodeSnapshot(data []byte) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.Table == nil {
		snap.Table = &model.Table{}
	}
	return &snap, nil
}
