package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/aluiziolira/go-site-crawler/models"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteWriter stores records in a "records" table, replacing the rows of
// any previous crawl written to the same file.
type SQLiteWriter struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteWriter opens or creates the database at filename.
func NewSQLiteWriter(filename string) (*SQLiteWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", filename+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	schema := `
	DROP TABLE IF EXISTS records;
	CREATE TABLE records (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		depth INTEGER,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		written_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_records_url ON records(url);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &SQLiteWriter{db: db}, nil
}

// Write inserts records in a single transaction, preserving their order.
func (sw *SQLiteWriter) Write(records []*models.Record) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	ctx := context.Background()
	tx, err := sw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (url, depth, title, description) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sqlite insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var depth sql.NullInt64
		if rec.Depth != nil {
			depth = sql.NullInt64{Int64: int64(*rec.Depth), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, rec.URL, depth, rec.Title, rec.Description); err != nil {
			return fmt.Errorf("insert sqlite record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (sw *SQLiteWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.db.Close()
}

// Validate ensures at least one record was stored.
func (sw *SQLiteWriter) Validate() error {
	var count int
	if err := sw.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return fmt.Errorf("count sqlite records: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("sqlite database has no records")
	}
	return nil
}
