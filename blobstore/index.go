package blobstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/avelinot/peerdrop"
)

// index is the SQLite-backed blob catalog: hash, size, and ingestion
// time for every blob in the store. The blob files themselves remain
// the source of truth; the index exists for listing and counting.
type index struct {
	db *sql.DB
}

func openIndex(ctx context.Context, dsn string) (*index, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite index: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite index: %w", err)
	}

	if err = migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite index: %w", err)
	}

	return &index{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS blobs (
			hash       TEXT PRIMARY KEY,
			size       INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`)
	return err
}

func (i *index) Close() error {
	return i.db.Close()
}

// put records a blob. Re-ingesting an existing hash is a no-op so the
// original created_at is preserved.
func (i *index) put(ctx context.Context, hash string, size int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := i.db.ExecContext(ctx,
		`INSERT INTO blobs (hash, size, created_at) VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING`,
		hash, size, now,
	)
	if err != nil {
		return fmt.Errorf("index put: %w", err)
	}
	return nil
}

func (i *index) list(ctx context.Context) ([]peerdrop.BlobInfo, error) {
	rows, err := i.db.QueryContext(ctx,
		`SELECT hash, size, created_at FROM blobs ORDER BY created_at, hash`)
	if err != nil {
		return nil, fmt.Errorf("index list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	infos := []peerdrop.BlobInfo{}
	for rows.Next() {
		var info peerdrop.BlobInfo
		var createdAt string
		if err := rows.Scan(&info.Hash, &info.Size, &createdAt); err != nil {
			return nil, fmt.Errorf("index list: %w", err)
		}
		info.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("index list: parse created_at: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index list: %w", err)
	}

	return infos, nil
}
