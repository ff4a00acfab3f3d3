package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/agriqa/internal/model"
)

// GormRepository keeps snapshots in the dataset_snapshots table.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository migrates the snapshot table.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&model.SnapshotRecord{}); err != nil {
		return nil, fmt.Errorf("migrate dataset_snapshots: %w", err)
	}
	return &GormRepository{db: db}, nil
}

// Load implements SnapshotRepository.
func (r *GormRepository) Load(ctx context.Context, key string) (*model.Snapshot, error) {
	var rec model.SnapshotRecord
	err := r.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	snap, err := decodeSnapshot(rec.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snap, nil
}

// Save upserts the row for snap.Key in a single statement.
func (r *GormRepository) Save(ctx context.Context, snap *model.Snapshot) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	rec := model.SnapshotRecord{
		Key:       snap.Key,
		Origin:    string(snap.Origin),
		FetchedAt: snap.FetchedAt,
		RowCount:  snap.Table.Len(),
		Payload:   payload,
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"origin", "fetched_at", "row_count", "payload", "updated_at"}),
	}).Create(&rec).Error
}
