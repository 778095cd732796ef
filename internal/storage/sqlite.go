package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteJournal stores deliveries in a local SQLite file.
type SQLiteJournal struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the journal database at path.
func OpenSQLite(path string) (*SQLiteJournal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	// Writes from concurrent deliveries are serialized by the single connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS deliveries (
		id               TEXT PRIMARY KEY,
		received_at      TEXT NOT NULL,
		source           TEXT NOT NULL,
		status           TEXT NOT NULL,
		metrics_received INTEGER NOT NULL DEFAULT 0,
		samples_received INTEGER NOT NULL DEFAULT 0,
		rows_written     INTEGER NOT NULL DEFAULT 0,
		rows_duplicate   INTEGER NOT NULL DEFAULT 0,
		rows_invalid     INTEGER NOT NULL DEFAULT 0,
		rows_failed      INTEGER NOT NULL DEFAULT 0,
		tables_created   INTEGER NOT NULL DEFAULT 0,
		duration_ms      INTEGER NOT NULL DEFAULT 0,
		error_message    TEXT,
		result           TEXT
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating deliveries table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS deliveries_received_at ON deliveries (received_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating deliveries index: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// Record inserts d.
func (j *SQLiteJournal) Record(ctx context.Context, d Delivery) error {
	var result *string
	if d.Result != nil {
		s := string(*d.Result)
		result = &s
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, received_at, source, status, metrics_received, samples_received,
		 rows_written, rows_duplicate, rows_invalid, rows_failed, tables_created, duration_ms,
		 error_message, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ReceivedAt.UTC().Format(timeLayout), d.Source, d.Status,
		d.MetricsReceived, d.SamplesReceived, d.RowsWritten, d.RowsDuplicate, d.RowsInvalid,
		d.RowsFailed, d.TablesCreated, d.DurationMs, d.ErrorMessage, result,
	)
	if err != nil {
		return fmt.Errorf("inserting delivery %s: %w", d.ID, err)
	}
	return nil
}

// Recent returns the latest deliveries, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, received_at, source, status, metrics_received, samples_received,
		 rows_written, rows_duplicate, rows_invalid, rows_failed, tables_created, duration_ms,
		 error_message, result
		 FROM deliveries
		 ORDER BY received_at DESC
		 LIMIT ?`,
		clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var (
			d          Delivery
			receivedAt string
			result     sql.NullString
		)
		if err := rows.Scan(&d.ID, &receivedAt, &d.Source, &d.Status,
			&d.MetricsReceived, &d.SamplesReceived, &d.RowsWritten, &d.RowsDuplicate,
			&d.RowsInvalid, &d.RowsFailed, &d.TablesCreated, &d.DurationMs,
			&d.ErrorMessage, &result); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		if d.ReceivedAt, err = time.Parse(timeLayout, receivedAt); err != nil {
			return nil, fmt.Errorf("parsing received_at of %s: %w", d.ID, err)
		}
		if result.Valid {
			raw := json.RawMessage(result.String)
			d.Result = &raw
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
