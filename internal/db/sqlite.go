package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"accounts/internal/db/migrations"
	"accounts/internal/store"
)

type DB struct {
	*sql.DB
}

func Open(ctx context.Context, path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{db}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

func (db *DB) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db.DB, ".")
}

// Store exposes the SQLite repositories through the store contracts.
type Store struct {
	db       *DB
	accounts *AccountRepository
	resets   *ResetTokenRepository
}

var _ store.Store = (*Store)(nil)

func NewStore(db *DB) *Store {
	return &Store{
		db:       db,
		accounts: NewAccountRepository(db),
		resets:   NewResetTokenRepository(db),
	}
}

func (s *Store) Accounts() store.Accounts {
	return s.accounts
}

func (s *Store) ResetTokens() store.ResetTokens {
	return s.resets
}

// ResetTokenRepository is the concrete repository, used by the cleanup
// worker.
func (s *Store) ResetTokenRepository() *ResetTokenRepository {
	return s.resets
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}
