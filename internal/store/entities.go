package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("entity not found")

// Entity is one generic entity row.
type Entity struct {
	ID         uuid.UUID
	EntityType string
	Attrs      map[string]any
}

// Link is one role link between two entities.
type Link struct {
	FromID    uuid.UUID
	ToID      uuid.UUID
	Role      string
	Ownership *float64
}

// Execer abstracts *sql.DB and *sql.Tx so entity ops work in both the
// best-effort and atomic execution modes.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Exec returns the store's default execer (the database itself). The engine
// substitutes a transaction in atomic mode.
func (s *Store) Exec() Execer { return s.db }

// CreateEntity inserts a new entity and returns its generated id.
func (s *Store) CreateEntity(ctx context.Context, e Execer, entityType string, attrs map[string]any) (uuid.UUID, error) {
	id := uuid.New()
	blob, err := json.Marshal(attrs)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal attrs: %w", err)
	}
	_, err = e.ExecContext(ctx,
		`INSERT INTO entities (id, entity_type, attrs) VALUES (?, ?, ?)`,
		id.String(), entityType, string(blob))
	if err != nil {
		return uuid.Nil, fmt.Errorf("create %s: %w", entityType, err)
	}
	return id, nil
}

// GetEntity fetches one entity by id.
func (s *Store) GetEntity(ctx context.Context, e Execer, id uuid.UUID) (*Entity, error) {
	var (
		typ  string
		blob string
	)
	err := e.QueryRowContext(ctx,
		`SELECT entity_type, attrs FROM entities WHERE id = ?`, id.String()).Scan(&typ, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	attrs := map[string]any{}
	if err := json.Unmarshal([]byte(blob), &attrs); err != nil {
		return nil, fmt.Errorf("decode attrs: %w", err)
	}
	return &Entity{ID: id, EntityType: typ, Attrs: attrs}, nil
}

// UpdateEntity merges attrs into an existing entity's attribute object.
func (s *Store) UpdateEntity(ctx context.Context, e Execer, id uuid.UUID, attrs map[string]any) error {
	existing, err := s.GetEntity(ctx, e, id)
	if err != nil {
		return err
	}
	for k, v := range attrs {
		existing.Attrs[k] = v
	}
	blob, err := json.Marshal(existing.Attrs)
	if err != nil {
		return fmt.Errorf("marshal attrs: %w", err)
	}
	_, err = e.ExecContext(ctx,
		`UPDATE entities SET attrs = ?, updated_at = datetime('now') WHERE id = ?`,
		string(blob), id.String())
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	return nil
}

// DeleteEntity removes an entity; links cascade.
func (s *Store) DeleteEntity(ctx context.Context, e Execer, id uuid.UUID) error {
	res, err := e.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// LinkEntities records a role link. Re-linking the same (from, to, role) is
// idempotent; ownership updates in place.
func (s *Store) LinkEntities(ctx context.Context, e Execer, l Link) error {
	var own any
	if l.Ownership != nil {
		own = *l.Ownership
	}
	_, err := e.ExecContext(ctx,
		`INSERT INTO entity_links (from_id, to_id, role, ownership) VALUES (?, ?, ?, ?)
		 ON CONFLICT(from_id, to_id, role) DO UPDATE SET ownership = excluded.ownership`,
		l.FromID.String(), l.ToID.String(), l.Role, own)
	if err != nil {
		return fmt.Errorf("link entities: %w", err)
	}
	return nil
}

// ListLinks returns all links from an entity, ordered by role then target id
// for deterministic output.
func (s *Store) ListLinks(ctx context.Context, e Execer, fromID uuid.UUID) ([]Link, error) {
	rows, err := e.QueryContext(ctx,
		`SELECT from_id, to_id, role, ownership FROM entity_links
		 WHERE from_id = ? ORDER BY role, to_id`, fromID.String())
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var (
			from, to, role string
			own            sql.NullFloat64
		)
		if err := rows.Scan(&from, &to, &role, &own); err != nil {
			return nil, err
		}
		l := Link{FromID: uuid.MustParse(from), ToID: uuid.MustParse(to), Role: role}
		if own.Valid {
			v := own.Float64
			l.Ownership = &v
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
