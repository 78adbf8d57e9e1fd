/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assetcache keeps fetched image bytes in an embedded SQLite database
// so that remote image sources are downloaded once. Entries are evicted least
// recently used first when the configured byte cap is exceeded.
package assetcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "garmentcanvas/internal/log"
	"garmentcanvas/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	FileName = "assets.sqlite"

	// schemaVersion tracks the cache schema; bump it with a migration step.
	schemaVersion = 1

	// DefaultMaxBytes is the cache cap when none is configured.
	DefaultMaxBytes int64 = 128 * 1024 * 1024
)

// Entry is one cached asset.
type Entry struct {
	Key         string // source URL
	ContentType string
	ETag        string
	Data        []byte
	FetchedAt   time.Time
}

// Cache is a handle on the cache database. It is safe for concurrent use;
// database/sql serializes access over a single connection.
type Cache struct {
	db       *sql.DB
	path     string
	maxBytes int64
	now      func() time.Time
	log      *slog.Logger
}

// Open creates or opens the cache at path (a file, created with its parent
// directories). maxBytes <= 0 selects DefaultMaxBytes.
func Open(ctx context.Context, path string, maxBytes int64) (*Cache, error) {
	l := applog.WithOperation(applog.WithComponent("assetcache"), "open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	l.Debug("asset cache ready")
	return &Cache{db: db, path: path, maxBytes: maxBytes, now: time.Now, log: applog.WithComponent("assetcache")}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS assets (
			key          TEXT PRIMARY KEY,
			content_type TEXT,
			etag         TEXT,
			data         BLOB NOT NULL,
			size         INTEGER NOT NULL,
			fetched_at   TEXT NOT NULL,
			last_access  TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_assets_last_access ON assets(last_access);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET app=excluded.app, updated_at=excluded.updated_at`,
		schemaVersion, version.String(), now, now)
	if err != nil {
		return fmt.Errorf("upsert version: %w", err)
	}
	return nil
}

// Path is the database file.
func (c *Cache) Path() string { return c.path }

// Close releases the database.
func (c *Cache) Close() error { return c.db.Close() }

func (c *Cache) stamp() string { return c.now().UTC().Format(time.RFC3339Nano) }

// Get returns the entry for key and refreshes its access time.
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool, error) {
	var e Entry
	var ct, etag sql.NullString
	var fetched string
	err := c.db.QueryRowContext(ctx, `SELECT content_type, etag, data, fetched_at FROM assets WHERE key=?`, key).
		Scan(&ct, &etag, &e.Data, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("query asset: %w", err)
	}
	e.Key, e.ContentType, e.ETag = key, ct.String, etag.String
	e.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetched)
	if _, err := c.db.ExecContext(ctx, `UPDATE assets SET last_access=? WHERE key=?`, c.stamp(), key); err != nil {
		c.log.Warn("touch asset failed", slog.String("key", key), slog.Any("err", err))
	}
	return e, true, nil
}

// Put upserts e and evicts old entries until the cache fits its cap. An entry
// larger than the cap is not stored.
func (c *Cache) Put(ctx context.Context, e Entry) error {
	if e.Key == "" {
		return errors.New("asset key is required")
	}
	size := int64(len(e.Data))
	if size > c.maxBytes {
		c.log.Debug("asset larger than cache cap", slog.String("key", e.Key), slog.Int64("size", size))
		return nil
	}
	now := c.stamp()
	fetched := now
	if !e.FetchedAt.IsZero() {
		fetched = e.FetchedAt.UTC().Format(time.RFC3339Nano)
	}
	data := e.Data
	if data == nil {
		data = []byte{}
	}
	_, err := c.db.ExecContext(ctx, `INSERT INTO assets(key, content_type, etag, data, size, fetched_at, last_access)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET content_type=excluded.content_type, etag=excluded.etag, data=excluded.data,
			size=excluded.size, fetched_at=excluded.fetched_at, last_access=excluded.last_access`,
		e.Key, e.ContentType, e.ETag, data, size, fetched, now)
	if err != nil {
		return fmt.Errorf("upsert asset: %w", err)
	}
	return c.evictToFit(ctx, c.maxBytes)
}

// Delete removes key if present.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM assets WHERE key=?`, key); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

// TotalBytes is the sum of cached payload sizes.
func (c *Cache) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM assets`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum asset size: %w", err)
	}
	return total, nil
}

// evictToFit deletes least-recently-used rows until the total is <= capBytes.
func (c *Cache) evictToFit(ctx context.Context, capBytes int64) error {
	total, err := c.TotalBytes(ctx)
	if err != nil || total <= capBytes {
		return err
	}
	rows, err := c.db.QueryContext(ctx, `SELECT key, size FROM assets ORDER BY last_access ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	cur := total
	for cur > capBytes && rows.Next() {
		var key string
		var sz int64
		if err := rows.Scan(&key, &sz); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan victim: %w", err)
		}
		victims = append(victims, key)
		cur -= sz
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// the cursor must be closed before writing on the single connection
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	q := `DELETE FROM assets WHERE key IN (?` + strings.Repeat(",?", len(victims)-1) + `)`
	if _, err := c.db.ExecContext(ctx, q, victims...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	c.log.Debug("evicted assets", slog.Int("count", len(victims)), slog.Int64("bytes", total-cur))
	return nil
}
