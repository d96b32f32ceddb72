package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	sqliteJanitorInterval = time.Minute

	// SQLite caps bound variables at 999 by default; keep each IN clause
	// comfortably below it.
	getManyChunkSize = 500
)

// SQLiteStore persists cache entries across restarts in a single-table
// SQLite database. Schema changes are applied through embedded goose
// migrations at open time.
type SQLiteStore struct {
	db *sql.DB

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// runs pending migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	goose.SetLogger(goose.NopLogger())
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache database: %w", err)
	}

	s := &SQLiteStore{
		db:   db,
		stop: make(chan struct{}),
	}
	go s.janitorLoop()
	return s, nil
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE namespace = ? AND key = ? AND expires_at > ?`,
		namespace, key, time.Now().UnixMilli(),
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) GetMany(ctx context.Context, namespace string, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for start := 0; start < len(keys); start += getManyChunkSize {
		end := start + getManyChunkSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.getChunk(ctx, namespace, keys[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) getChunk(ctx context.Context, namespace string, keys []string, out map[string][]byte) error {
	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(keys)+2)
	args = append(args, namespace, time.Now().UnixMilli())
	for _, key := range keys {
		args = append(args, key)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM cache_entries WHERE namespace = ? AND expires_at > ? AND key IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("cache get many: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("cache get many scan: %w", err)
		}
		out[key] = value
	}
	return rows.Err()
}

func (s *SQLiteStore) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (namespace, key, value, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		namespace, key, value, time.Now().Add(ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return s.db.Close()
}

func (s *SQLiteStore) janitorLoop() {
	ticker := time.NewTicker(sqliteJanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_, _ = s.db.Exec(`DELETE FROM cache_entries WHERE expires_at <= ?`, time.Now().UnixMilli())
		}
	}
}
