package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kart-io/agriqa/internal/model"
)

// FileRepository stores each snapshot as <dir>/<key>.json.
type FileRepository struct {
	dir string
}

// NewFileRepository creates the directory when needed.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) path(key string) string {
	return filepath.Join(r.dir, key+".json")
}

// Load implements SnapshotRepository.
func (r *FileRepository) Load(_ context.Context, key string) (*model.Snapshot, error) {
	data, err := os.ReadFile(r.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return decodeSnapshot(data)
}

// Save writes a temp file next to the target and renames it into place,
// so readers never observe a partial file.
func (r *FileRepository) Save(_ context.Context, snap *model.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, snap.Key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, r.path(snap.Key)); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
