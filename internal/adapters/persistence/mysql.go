package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
)

// MySQLPersister stores records in a MySQL table
type MySQLPersister struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLPersister connects to dsn and bootstraps the records table
func NewMySQLPersister(dsn string, logger *zap.Logger) (*MySQLPersister, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id VARCHAR(255) PRIMARY KEY,
			category VARCHAR(32) NOT NULL,
			sender VARCHAR(512),
			subject TEXT,
			date VARCHAR(32) NOT NULL,
			body_preview TEXT,
			summary TEXT,
			has_attachments BOOLEAN,
			fields TEXT,
			embedding MEDIUMTEXT,
			INDEX idx_records_category (category)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &MySQLPersister{db: db, logger: logger}, nil
}

// Load returns every stored record
func (p *MySQLPersister) Load(ctx context.Context) ([]*core.Record, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM records`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	return loadAll(rows)
}

// Save inserts or updates one record
func (p *MySQLPersister) Save(ctx context.Context, record *core.Record) error {
	r, err := encode(record)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO records (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			category = VALUES(category),
			sender = VALUES(sender),
			subject = VALUES(subject),
			date = VALUES(date),
			body_preview = VALUES(body_preview),
			summary = VALUES(summary),
			has_attachments = VALUES(has_attachments),
			fields = VALUES(fields),
			embedding = VALUES(embedding)
	`, r.args()...)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", record.ID, err)
	}
	return nil
}

// Close closes the database connection
func (p *MySQLPersister) Close() error {
	if err := p.db.Close(); err != nil {
		p.logger.Error("Failed to close MySQL database", zap.Error(err))
		return err
	}
	return nil
}
