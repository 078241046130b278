package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Source is a stored DSL program, versioned by name.
type Source struct {
	Name      string
	Version   int
	Source    string
	Compiled  bool
	CreatedAt time.Time
}

// SaveSource stores a new version of a named DSL program and returns the
// assigned version number. Versions start at 1 and increment per name.
func (s *Store) SaveSource(ctx context.Context, name, source string) (int, error) {
	var version int
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var max sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(version) FROM dsl_sources WHERE name = ?`, name).Scan(&max); err != nil {
			return err
		}
		version = int(max.Int64) + 1
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dsl_sources (name, version, source) VALUES (?, ?, ?)`,
			name, version, source)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("save source %q: %w", name, err)
	}
	return version, nil
}

// GetSource fetches one version of a named program. Version 0 means latest.
func (s *Store) GetSource(ctx context.Context, name string, version int) (*Source, error) {
	query := `SELECT name, version, source, compiled, created_at FROM dsl_sources
	          WHERE name = ? AND version = ?`
	args := []any{name, version}
	if version == 0 {
		query = `SELECT name, version, source, compiled, created_at FROM dsl_sources
		         WHERE name = ? ORDER BY version DESC LIMIT 1`
		args = []any{name}
	}
	var (
		src     Source
		created string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&src.Name, &src.Version, &src.Source, &src.Compiled, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %q version %d: %w", name, version, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get source %q: %w", name, err)
	}
	src.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created)
	return &src, nil
}

// ListSources returns the latest version of every stored program, ordered by
// name.
func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.name, d.version, d.source, d.compiled, d.created_at
		 FROM dsl_sources d
		 JOIN (SELECT name, MAX(version) AS version FROM dsl_sources GROUP BY name) latest
		   ON d.name = latest.name AND d.version = latest.version
		 ORDER BY d.name`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		var (
			src     Source
			created string
		)
		if err := rows.Scan(&src.Name, &src.Version, &src.Source, &src.Compiled, &created); err != nil {
			return nil, err
		}
		src.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created)
		out = append(out, src)
	}
	return out, rows.Err()
}

// MarkCompiled flags a stored version as having compiled cleanly.
func (s *Store) MarkCompiled(ctx context.Context, name string, version int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dsl_sources SET compiled = 1 WHERE name = ? AND version = ?`, name, version)
	if err != nil {
		return fmt.Errorf("mark compiled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("source %q version %d: %w", name, version, ErrNotFound)
	}
	return nil
}
