// Package postgres implements the session.Store interface backed by
// PostgreSQL, for gateways that must survive a process restart with their
// in-flight sessions intact.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/fazzatti/cacti/internal/model"
	"github.com/fazzatti/cacti/internal/session"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements session.Store backed by a PostgreSQL database.
// Per-session write serialization comes from row locks: Mutate runs inside a
// transaction holding SELECT ... FOR UPDATE on the session row.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements session.Store.
var _ session.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
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

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "sessions_schema_migrations"})
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Create(ctx context.Context, sess *model.Session) error {
	dup := sess.Clone()
	now := time.Now().UTC()
	if dup.CreatedAt.IsZero() {
		dup.CreatedAt = now
	}
	dup.UpdatedAt = now
	err := queryInsertSession(ctx, s.db, dup)
	if isUniqueViolation(err) {
		return &session.ConflictError{ID: sess.ID}
	}
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Session, error) {
	sess, err := queryGetSession(ctx, s.db, id, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	return sess, err
}

func (s *PostgresStore) List(ctx context.Context) ([]*model.Session, error) {
	return queryListSessions(ctx, s.db)
}

func (s *PostgresStore) Mutate(ctx context.Context, id string, fn func(*model.Session) error) (*model.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	sess, err := queryGetSession(ctx, tx, id, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.UpdatedAt = time.Now().UTC()

	if err := queryUpdateSession(ctx, tx, sess); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return sess.Clone(), nil
}
