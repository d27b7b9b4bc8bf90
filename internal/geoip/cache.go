package geoip

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS countries(
	ip TEXT PRIMARY KEY,
	country TEXT NOT NULL,
	resolved_at INTEGER NOT NULL
)`

// DiskCache persists resolved countries in a SQLite file so repeated runs
// do not hit the remote service again.
type DiskCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenDiskCache opens (creating if needed) the cache database at path.
// Entries older than ttl are treated as missing; a ttl of zero keeps them
// forever.
func OpenDiskCache(ctx context.Context, path string, ttl time.Duration) (*DiskCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open geoip cache %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init geoip cache schema: %w", err)
	}

	return &DiskCache{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Get returns the cached country for ip. ok is false on a miss or when the
// entry has expired.
func (d *DiskCache) Get(ctx context.Context, ip string) (string, bool, error) {
	var (
		country    string
		resolvedAt int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT country, resolved_at FROM countries WHERE ip = ?`, ip,
	).Scan(&country, &resolvedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, err
	}

	if d.ttl > 0 && d.now().Sub(time.Unix(resolvedAt, 0)) > d.ttl {
		return "", false, nil
	}
	return country, true, nil
}

// Put stores or refreshes the country for ip.
func (d *DiskCache) Put(ctx context.Context, ip, country string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO countries(ip, country, resolved_at) `+
			`VALUES(?, ?, ?)`, ip, country, d.now().Unix(),
	)
	return err
}

// Purge drops expired entries and reports how many were removed.
func (d *DiskCache) Purge(ctx context.Context) (int64, error) {
	if d.ttl <= 0 {
		return 0, nil
	}
	cutoff := d.now().Add(-d.ttl).Unix()
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM countries WHERE resolved_at < ?`, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database.
func (d *DiskCache) Close() error {
	return d.db.Close()
}
