// Package model holds the data types shared by the agriqa layers.
package model

import (
	"time"
)

// Category 数据集分类
type Category string

const (
	CategoryAgriculture Category = "agriculture"
	CategoryClimate     Category = "climate"
)

// Descriptor describes one entry of the fixed dataset catalog.
type Descriptor struct {
	Key         string   `json:"key"`
	ExternalID  string   `json:"id"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

// Row is one record of a table, keyed by column name.
// Values are strings, float64 numbers (ints before persistence) or nil.
type Row map[string]interface{}

// Table is an ordered set of columns plus its rows.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Head returns a table holding at most n leading rows. Rows are shared.
func (t *Table) Head(n int) *Table {
	if n < 0 || n >= t.Len() {
		return &Table{Columns: t.Columns, Rows: t.Rows}
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// Origin 记录快照数据来源
type Origin string

const (
	OriginRemote    Origin = "remote"
	OriginSynthetic Origin = "synthetic"
)

// Snapshot is the single cached copy of a dataset.
type Snapshot struct {
	Key       string    `json:"dataset_key"`
	Origin    Origin    `json:"origin"`
	FetchedAt time.Time `json:"fetched_at"`
	Table     *Table    `json:"table"`
}

// SnapshotRecord is the gorm row backing a Snapshot. Payload holds the
// JSON encoded table.
type SnapshotRecord struct {
	Key       string    `gorm:"primaryKey;type:varchar(64)"`
	Origin    string    `gorm:"type:varchar(16);not null"`
	FetchedAt time.Time `gorm:"not null;index"`
	RowCount  int       `gorm:"default:0"`
	Payload   []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for SnapshotRecord.
func (SnapshotRecord) TableName() string {
	return "dataset_snapshots"
}

// DatasetInfo is the descriptor plus what is known about its cached snapshot.
type DatasetInfo struct {
	Descriptor
	RowCount   int        `json:"row_count"`
	Columns    []string   `json:"columns"`
	LastCached *time.Time `json:"last_cached"`
	Origin     Origin     `json:"origin,omitempty"`
}
