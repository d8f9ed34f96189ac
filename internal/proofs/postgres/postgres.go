// Package postgres implements the proofs.Ledger interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/fazzatti/cacti/internal/model"
	"github.com/fazzatti/cacti/internal/proofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresLedger implements proofs.Ledger backed by a PostgreSQL database.
type PostgresLedger struct {
	db *sql.DB
}

// Compile-time check that PostgresLedger implements proofs.Ledger.
var _ proofs.Ledger = (*PostgresLedger)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresLedger{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "proofs_schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (l *PostgresLedger) Close() error {
	return l.db.Close()
}

func (l *PostgresLedger) StoreLog(ctx context.Context, record *model.AuditRecord) error {
	return queryAppendRecord(ctx, l.db, record)
}

func (l *PostgresLedger) StoreProof(ctx context.Context, record *model.AuditRecord) error {
	return queryAppendRecord(ctx, l.db, record)
}

func (l *PostgresLedger) History(ctx context.Context, sessionID string) ([]*model.AuditRecord, error) {
	return queryHistory(ctx, l.db, sessionID)
}

// Reset truncates the audit table. Test and bootstrap contexts only.
func (l *PostgresLedger) Reset(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `TRUNCATE audit_records RESTART IDENTITY`)
	return err
}
