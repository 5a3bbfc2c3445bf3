package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
)

// SQLiteFileName is the database file created inside the store directory
const SQLiteFileName = "records.db"

// SQLitePersister stores records in a local SQLite database
type SQLitePersister struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLitePersister opens (and bootstraps) records.db inside dir
func NewSQLitePersister(dir string, logger *zap.Logger) (*SQLitePersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	dbPath := filepath.Join(dir, SQLiteFileName)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// sqlite serialises writers anyway
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			sender TEXT,
			subject TEXT,
			date TEXT NOT NULL,
			body_preview TEXT,
			summary TEXT,
			has_attachments BOOLEAN,
			fields TEXT,
			embedding TEXT
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_records_category ON records(category)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Opened SQLite record database", zap.String("path", dbPath))
	return &SQLitePersister{db: db, logger: logger}, nil
}

// Load returns every stored record
func (p *SQLitePersister) Load(ctx context.Context) ([]*core.Record, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM records`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	return loadAll(rows)
}

// Save inserts or replaces one record
func (p *SQLitePersister) Save(ctx context.Context, record *core.Record) error {
	r, err := encode(record)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO records (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.args()...)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", record.ID, err)
	}
	return nil
}

// Close closes the database connection
func (p *SQLitePersister) Close() error {
	if err := p.db.Close(); err != nil {
		p.logger.Error("Failed to close SQLite database", zap.Error(err))
		return err
	}
	return nil
}
