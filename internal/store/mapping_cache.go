// Package store holds infomap's durable state: the fingerprint → SQL
// mapping cache (SQLite) and the playbook strategy store (files).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"infomap/internal/logging"

	_ "modernc.org/sqlite"
)

// MappingCache persists validated transformations keyed by the fingerprint
// of their input header list.
//
// Writes are append-only inserts, never updates: a corrected transformation
// becomes a new row, so repeated failures against one fingerprint cannot
// destroy prior entries. There is no eviction — the space of header
// combinations is assumed small relative to storage. A cached row that later
// fails execution is kept for a human to inspect; the failure is logged with
// its fingerprint.
type MappingCache struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// StoreError tags cache and playbook failures per the error taxonomy:
// fatal for the current sheet, never corrupting for the store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewMappingCache opens (or creates) the cache database at the given path.
func NewMappingCache(dbPath string) (*MappingCache, error) {
	logging.CacheDebug("Initializing MappingCache at path: %s", dbPath)

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &StoreError{Op: "init", Err: fmt.Errorf("failed to create directory: %w", err)}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &StoreError{Op: "init", Err: fmt.Errorf("failed to open database: %w", err)}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.CacheDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.CacheDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	cache := &MappingCache{db: db, dbPath: dbPath}
	if err := cache.initialize(); err != nil {
		db.Close()
		return nil, &StoreError{Op: "init", Err: err}
	}

	logging.Cache("MappingCache initialized at %s", dbPath)
	return cache, nil
}

// initialize creates the schema.
func (c *MappingCache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS mapping_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash_key TEXT NOT NULL,
		sql_code TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_mapping_cache_hash ON mapping_cache(hash_key);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Lookup returns the most recent transformation stored for a fingerprint.
// ok is false on a cache miss.
func (c *MappingCache) Lookup(fingerprint string) (sqlCode string, ok bool, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	row := c.db.QueryRow(
		`SELECT sql_code FROM mapping_cache WHERE hash_key = ? ORDER BY id DESC LIMIT 1`,
		fingerprint)
	switch err := row.Scan(&sqlCode); err {
	case nil:
		logging.Cache("Cache hit for %s", ShortFingerprint(fingerprint))
		return sqlCode, true, nil
	case sql.ErrNoRows:
		logging.CacheDebug("Cache miss for %s", ShortFingerprint(fingerprint))
		return "", false, nil
	default:
		return "", false, &StoreError{Op: "lookup", Err: err}
	}
}

// LookupAll returns every transformation stored for a fingerprint,
// most-recent-first. Used by the "all" cache policy.
func (c *MappingCache) LookupAll(fingerprint string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.db.Query(
		`SELECT sql_code FROM mapping_cache WHERE hash_key = ? ORDER BY id DESC`,
		fingerprint)
	if err != nil {
		return nil, &StoreError{Op: "lookup", Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, &StoreError{Op: "lookup", Err: err}
		}
		out = append(out, code)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "lookup", Err: err}
	}
	return out, nil
}

// Store appends a transformation for a fingerprint. Existing rows are never
// touched.
func (c *MappingCache) Store(fingerprint, sqlCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(
		`INSERT INTO mapping_cache (hash_key, sql_code) VALUES (?, ?)`,
		fingerprint, sqlCode)
	if err != nil {
		return &StoreError{Op: "store", Err: err}
	}
	logging.Cache("Stored transformation for %s (%d bytes)", ShortFingerprint(fingerprint), len(sqlCode))
	return nil
}

// Count returns the number of cached rows for a fingerprint.
func (c *MappingCache) Count(fingerprint string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int
	err := c.db.QueryRow(
		`SELECT COUNT(*) FROM mapping_cache WHERE hash_key = ?`, fingerprint).Scan(&n)
	if err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// Close closes the database.
func (c *MappingCache) Close() error {
	return c.db.Close()
}
