// Package database opens gorm connections for the supported SQL dialects.
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbopts "github.com/kart-io/agriqa/pkg/options/database"
)

// Client wraps gorm.DB.
type Client struct {
	db      *gorm.DB
	dialect string
}

// New opens a connection described by opts and verifies it with a ping.
func New(ctx context.Context, opts *dbopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("database options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid database options: %v", errs)
	}

	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(gormlogger.LogLevel(opts.LogLevel), opts.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.MaxIdleConnections > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
	}
	if opts.MaxOpenConnections > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
	}
	if opts.MaxConnectionLifeTime > 0 {
		sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", opts.Dialect, err)
	}

	return &Client{db: db, dialect: opts.Dialect}, nil
}

func dialectorFor(opts *dbopts.Options) (gorm.Dialector, error) {
	switch opts.Dialect {
	case dbopts.DialectSQLite:
		if opts.DSN != ":memory:" {
			if dir := filepath.Dir(opts.DSN); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create sqlite dir: %w", err)
				}
			}
		}
		return sqlite.Open(opts.DSN), nil
	case dbopts.DialectMySQL:
		return mysql.Open(opts.DSN), nil
	case dbopts.DialectPostgres:
		return postgres.Open(opts.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}
}

// Name returns the dialect name.
func (c *Client) Name() string {
	return c.dialect
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Ping checks if the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
