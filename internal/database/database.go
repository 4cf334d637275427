// Package database sets up/opens the program state database.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"chansync/internal/domain/logger"

	// Package sqlite3 provides interface to SQLite3 databases.
	_ "github.com/mattn/go-sqlite3"
)

const (
	dbDriver = "sqlite3"
)

// Database holds the program's state database.
type Database struct {
	DB *sql.DB
}

// Open opens (creating when absent) the database at path and ensures its tables.
func Open(path string) (d *Database, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory for %q: %w", path, err)
	}

	d = new(Database)
	d.DB, err = sql.Open(dbDriver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at path %q: %w", path, err)
	}

	pragmas := []string{
		// Write-Ahead Logging for concurrent access
		`PRAGMA journal_mode = WAL;`,
		// Wait for locks held by other processes (milliseconds)
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA synchronous = NORMAL;`,
	}
	for _, p := range pragmas {
		if _, err := d.DB.Exec(p); err != nil {
			d.closeQuietly()
			return nil, fmt.Errorf("failed to run %q: %w", p, err)
		}
	}

	if err := d.initTables(); err != nil {
		d.closeQuietly()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}
	logger.Pl.D(2, "Opened state database %q", path)
	return d, nil
}

// Close closes the database.
func (d *Database) Close() error {
	return d.DB.Close()
}

func (d *Database) closeQuietly() {
	if err := d.DB.Close(); err != nil {
		logger.Pl.E("Failed to close database: %v", err)
	}
}

// initTables initializes the SQL tables.
func (d *Database) initTables() (err error) {
	tx, err := d.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Pl.E("Panic rollback failed for table creation: %v", rbErr)
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Pl.E("transaction rollback failed after original error %v: %v", err, rbErr)
			}
		}
	}()

	if err = initBlockedDomainsTable(tx); err != nil {
		return err
	}

	if err = initSyncRunsTable(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
