package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Alternative is one rejected candidate recorded alongside a confirmation.
type Alternative struct {
	Verb  string  `json:"verb"`
	Score float64 `json:"score"`
}

// LearnedPhrase is one confirmed phrase-to-verb association. UserID is empty
// for global associations and non-empty for per-user ones.
type LearnedPhrase struct {
	Phrase       string
	Verb         string
	Score        float64
	UserID       string
	Alternatives []Alternative
}

// RecordFeedback upserts a confirmed phrase-verb pair. Alternatives are the
// other candidates that were shown alongside the chosen verb; they are kept
// so later ranking can penalize rejected candidates.
func (s *Store) RecordFeedback(ctx context.Context, lp LearnedPhrase) error {
	alts, err := json.Marshal(lp.Alternatives)
	if err != nil {
		return fmt.Errorf("marshal alternatives: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO learned_phrases (phrase, verb, score, user_id, alternatives)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(phrase, verb, user_id) DO UPDATE SET
		   score = excluded.score, alternatives = excluded.alternatives`,
		lp.Phrase, lp.Verb, lp.Score, lp.UserID, string(alts))
	if err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	return nil
}

// LoadLearnedPhrases returns every learned association, ordered by phrase
// then user id so index builds are deterministic.
func (s *Store) LoadLearnedPhrases(ctx context.Context) ([]LearnedPhrase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phrase, verb, score, user_id, alternatives FROM learned_phrases
		 ORDER BY phrase, user_id, verb`)
	if err != nil {
		return nil, fmt.Errorf("load learned phrases: %w", err)
	}
	defer rows.Close()

	var out []LearnedPhrase
	for rows.Next() {
		var (
			lp   LearnedPhrase
			alts string
		)
		if err := rows.Scan(&lp.Phrase, &lp.Verb, &lp.Score, &lp.UserID, &alts); err != nil {
			return nil, err
		}
		if alts != "" {
			if err := json.Unmarshal([]byte(alts), &lp.Alternatives); err != nil {
				return nil, fmt.Errorf("decode alternatives for %q: %w", lp.Phrase, err)
			}
		}
		out = append(out, lp)
	}
	return out, rows.Err()
}
