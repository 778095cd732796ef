package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresJournal stores deliveries in PostgreSQL.
type PostgresJournal struct {
	Pool *pgxpool.Pool
}

// OpenPostgres applies pending migrations and connects a pool.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresJournal, error) {
	if err := RunMigrations(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresJournal{Pool: pool}, nil
}

// RunMigrations applies the embedded migrations to dsn.
func RunMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Record inserts d.
func (j *PostgresJournal) Record(ctx context.Context, d Delivery) error {
	_, err := j.Pool.Exec(ctx,
		`INSERT INTO deliveries (id, received_at, source, status, metrics_received, samples_received,
		 rows_written, rows_duplicate, rows_invalid, rows_failed, tables_created, duration_ms,
		 error_message, result)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		d.ID, d.ReceivedAt, d.Source, d.Status, d.MetricsReceived, d.SamplesReceived,
		d.RowsWritten, d.RowsDuplicate, d.RowsInvalid, d.RowsFailed, d.TablesCreated,
		d.DurationMs, d.ErrorMessage, d.Result,
	)
	if err != nil {
		return fmt.Errorf("inserting delivery %s: %w", d.ID, err)
	}
	return nil
}

// Recent returns the latest deliveries, newest first.
func (j *PostgresJournal) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	rows, err := j.Pool.Query(ctx,
		`SELECT id::text, received_at, source, status, metrics_received, samples_received,
		 rows_written, rows_duplicate, rows_invalid, rows_failed, tables_created, duration_ms,
		 error_message, result
		 FROM deliveries
		 ORDER BY received_at DESC
		 LIMIT $1`,
		clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.ReceivedAt, &d.Source, &d.Status,
			&d.MetricsReceived, &d.SamplesReceived, &d.RowsWritten, &d.RowsDuplicate,
			&d.RowsInvalid, &d.RowsFailed, &d.TablesCreated, &d.DurationMs,
			&d.ErrorMessage, &d.Result); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the connection pool.
func (j *PostgresJournal) Close() error {
	j.Pool.Close()
	return nil
}
