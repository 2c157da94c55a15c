// Package db stores the generation history: one row per chat command
// invocation, kept in SQLite so operators can audit what the bot produced
// and which leg served it.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned by operations on a closed Database.
var ErrClosed = errors.New("database is closed")

// Database owns the SQLite connection and its schema.
//
// Usage:
//
//	database, err := db.Open(ctx, cfg.DatabasePath)
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//	repo := db.NewRepository(database)
type Database struct {
	mu   sync.RWMutex
	conn *sql.DB
	path string
}

// Open creates path's parent directory if needed, migrates the schema to the
// latest version and opens the pool.
func Open(ctx context.Context, path string) (*Database, error) {
	return OpenWithConfig(ctx, DefaultConnectionConfig(path))
}

// OpenWithConfig is Open with explicit connection settings.
func OpenWithConfig(ctx context.Context, cfg ConnectionConfig) (*Database, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	if err := MigrateUp(ctx, cfg.Path); err != nil {
		return nil, err
	}

	conn, err := OpenSQLite(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Database{conn: conn, path: cfg.Path}, nil
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Ping verifies the connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	conn, err := d.handle()
	if err != nil {
		return err
	}
	return conn.PingContext(ctx)
}

// Close closes the pool. It is safe to call more than once.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func (d *Database) handle() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.conn == nil {
		return nil, ErrClosed
	}
	return d.conn, nil
}
