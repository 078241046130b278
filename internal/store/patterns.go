package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Pattern is one invocation phrase attached to a verb, used as a semantic
// search anchor.
type Pattern struct {
	ID     int64
	Verb   string
	Phrase string
}

// PatternMatch is one semantic neighbor with its cosine similarity in [0, 1].
type PatternMatch struct {
	Pattern
	Similarity float64
}

// VecAvailable reports whether the sqlite-vec vec0 module loaded at open.
func (s *Store) VecAvailable() bool { return s.vecAvailable }

// UpsertPattern stores a verb phrase and its embedding. The embedding is
// written both to the blob column and, when vec0 is available, to the
// vec_patterns virtual table keyed by rowid.
func (s *Store) UpsertPattern(ctx context.Context, verb, phrase string, embedding []float32) error {
	if len(embedding) != s.vecDim {
		return fmt.Errorf("embedding dimension %d, want %d", len(embedding), s.vecDim)
	}
	blob := encodeVector(embedding)
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO verb_patterns (verb, phrase) VALUES (?, ?)`,
			verb, phrase)
		if err != nil {
			return fmt.Errorf("upsert pattern: %w", err)
		}
		// LastInsertId is stale on the ignore path, so always fetch the id.
		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM verb_patterns WHERE verb = ? AND phrase = ?`,
			verb, phrase).Scan(&id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO pattern_embeddings (pattern_id, embedding) VALUES (?, ?)
			 ON CONFLICT(pattern_id) DO UPDATE SET embedding = excluded.embedding`,
			id, blob)
		if err != nil {
			return fmt.Errorf("upsert embedding: %w", err)
		}
		if s.vecAvailable {
			_, err = tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO vec_patterns (rowid, embedding) VALUES (?, ?)`,
				id, blob)
			if err != nil {
				return fmt.Errorf("upsert vec row: %w", err)
			}
		}
		return nil
	})
}

// SearchPatterns returns the k nearest verb patterns to the query vector,
// ordered by similarity descending then verb ascending. It uses the vec0 KNN
// index when available and falls back to a brute-force scan otherwise.
func (s *Store) SearchPatterns(ctx context.Context, query []float32, k int) ([]PatternMatch, error) {
	if len(query) != s.vecDim {
		return nil, fmt.Errorf("query dimension %d, want %d", len(query), s.vecDim)
	}
	if k <= 0 {
		return nil, nil
	}
	if s.vecAvailable {
		return s.searchVec(ctx, query, k)
	}
	return s.searchBrute(ctx, query, k)
}

func (s *Store) searchVec(ctx context.Context, query []float32, k int) ([]PatternMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.verb, p.phrase, vec_distance_cosine(v.embedding, ?) AS dist
		 FROM vec_patterns v
		 JOIN verb_patterns p ON p.id = v.rowid
		 ORDER BY dist LIMIT ?`,
		encodeVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("vec search: %w", err)
	}
	defer rows.Close()

	var out []PatternMatch
	for rows.Next() {
		var (
			m    PatternMatch
			dist float64
		)
		if err := rows.Scan(&m.ID, &m.Verb, &m.Phrase, &dist); err != nil {
			return nil, err
		}
		// Cosine distance is 1 - similarity; clamp for float noise.
		m.Similarity = clamp01(1 - dist)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortMatches(out)
	return out, nil
}

func (s *Store) searchBrute(ctx context.Context, query []float32, k int) ([]PatternMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.verb, p.phrase, e.embedding
		 FROM verb_patterns p JOIN pattern_embeddings e ON e.pattern_id = p.id`)
	if err != nil {
		return nil, fmt.Errorf("pattern scan: %w", err)
	}
	defer rows.Close()

	var out []PatternMatch
	for rows.Next() {
		var (
			m    PatternMatch
			blob []byte
		)
		if err := rows.Scan(&m.ID, &m.Verb, &m.Phrase, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", m.ID, err)
		}
		m.Similarity = clamp01(cosineSimilarity(query, vec))
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortMatches(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func sortMatches(ms []PatternMatch) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Similarity != ms[j].Similarity {
			return ms[i].Similarity > ms[j].Similarity
		}
		return ms[i].Verb < ms[j].Verb
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// encodeVector packs float32s little-endian, the layout sqlite-vec expects
// for float[] columns.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(blob))
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
