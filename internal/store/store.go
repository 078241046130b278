package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Store is the single handle over the backing SQLite database.
// Uses WAL mode for concurrent read access.
type Store struct {
	db *sql.DB

	// vecAvailable is probed once at open: whether the sqlite-vec vec0
	// module is loadable in this build. Semantic pattern search falls back
	// to brute-force cosine when it is not.
	vecAvailable bool
	vecDim       int
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	vecDim int
}

// WithEmbeddingDim sets the embedding dimension for the vec0 pattern table.
// Default 256 (the local hash embedder's dimension).
func WithEmbeddingDim(dim int) Option {
	return func(c *openConfig) {
		c.vecDim = dim
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically; idempotent.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := openConfig{vecDim: 256}
	for _, o := range opts {
		o(&cfg)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, vecDim: cfg.vecDim}
	s.vecAvailable = detectVecModule(db, cfg.vecDim)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise. Used by the engine's atomic execution mode.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// detectVecModule probes whether the sqlite-vec vec0 virtual table is
// available, and creates the pattern vector table when it is.
func detectVecModule(db *sql.DB, dim int) bool {
	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS vec_patterns USING vec0(embedding float[%d])", dim)
	if _, err := db.Exec(stmt); err != nil {
		return false
	}
	return true
}
