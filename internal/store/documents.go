package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/halcyonfs/obdsl/internal/ast"
	"github.com/halcyonfs/obdsl/internal/binder"
)

// ExtractedValue satisfies binder.DocumentValueReader: it returns the
// highest-confidence extracted value recorded for an attribute, if any.
func (s *Store) ExtractedValue(ctx context.Context, attributeID uuid.UUID) (binder.ExtractedValue, bool, error) {
	var (
		raw        string
		valueType  string
		documentID string
		page       sql.NullInt64
		confidence float64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, value_type, document_id, page, confidence FROM document_values
		 WHERE attribute_id = ? ORDER BY confidence DESC, document_id LIMIT 1`,
		attributeID.String()).Scan(&raw, &valueType, &documentID, &page, &confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return binder.ExtractedValue{}, false, nil
	}
	if err != nil {
		return binder.ExtractedValue{}, false, fmt.Errorf("read extracted value: %w", err)
	}
	value, err := decodeTypedValue(raw, valueType)
	if err != nil {
		return binder.ExtractedValue{}, false, fmt.Errorf("attribute %s: %w", attributeID, err)
	}
	ev := binder.ExtractedValue{
		Value:      value,
		DocumentID: documentID,
		Confidence: confidence,
	}
	if page.Valid {
		ev.Page = int(page.Int64)
	}
	return ev, true, nil
}

// PutExtractedValue upserts one extracted value, keyed by attribute and
// source document. A re-extraction of the same document replaces the row.
func (s *Store) PutExtractedValue(ctx context.Context, attributeID uuid.UUID, ev binder.ExtractedValue) error {
	raw, valueType, err := encodeTypedValue(ev.Value)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", attributeID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_values (attribute_id, value, value_type, document_id, page, confidence)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(attribute_id, document_id) DO UPDATE SET
		   value = excluded.value, value_type = excluded.value_type,
		   page = excluded.page, confidence = excluded.confidence`,
		attributeID.String(), raw, valueType, ev.DocumentID, ev.Page, ev.Confidence)
	if err != nil {
		return fmt.Errorf("put extracted value: %w", err)
	}
	return nil
}

// encodeTypedValue flattens a scalar AST value to a (text, type tag) pair.
// Extraction only produces scalars; compound values are rejected.
func encodeTypedValue(v ast.Value) (string, string, error) {
	switch t := v.(type) {
	case ast.String:
		return string(t), "string", nil
	case ast.Number:
		return strconv.FormatFloat(float64(t), 'f', -1, 64), "number", nil
	case ast.Bool:
		return strconv.FormatBool(bool(t)), "bool", nil
	case ast.RawUUID:
		return t.UUID().String(), "uuid", nil
	default:
		return "", "", fmt.Errorf("unsupported extracted value type %T", v)
	}
}

func decodeTypedValue(raw, valueType string) (ast.Value, error) {
	switch valueType {
	case "string":
		return ast.String(raw), nil
	case "number":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", raw, err)
		}
		return ast.Number(f), nil
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("bad bool %q: %w", raw, err)
		}
		return ast.Bool(b), nil
	case "uuid":
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("bad uuid %q: %w", raw, err)
		}
		return ast.RawUUID(id), nil
	default:
		return nil, fmt.Errorf("unknown value type %q", valueType)
	}
}
