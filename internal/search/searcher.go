package search

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/halcyonfs/obdsl/internal/store"
	"github.com/halcyonfs/obdsl/internal/vocab"
)

// Mode selects the channel strategy.
type Mode string

const (
	// ModeFast short-circuits on an authoritative macro hit before fanning
	// out to the remaining channels.
	ModeFast Mode = "fast"
	// ModeEnsemble always runs every channel and fuses, trading latency for
	// recall. Used when the fast path produced a weak or ambiguous result.
	ModeEnsemble Mode = "ensemble"
)

// Decision classifies a search outcome.
type Decision string

const (
	DecisionMatched   Decision = "matched"
	DecisionAmbiguous Decision = "ambiguous"
	DecisionSuggest   Decision = "suggest"
	DecisionNoMatch   Decision = "no_match"
)

// Outcome is the searcher's answer for one query. Candidates always carries
// the full ranked list, so callers presenting an ambiguous or suggested
// result can show true alternatives rather than a re-ranked guess.
type Outcome struct {
	Decision Decision `json:"decision"`
	// Verb is the winning verb for matched/suggest, best guess otherwise.
	Verb       string      `json:"verb,omitempty"`
	Score      float64     `json:"score"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Thresholds tune outcome classification.
type Thresholds struct {
	// Accept is the minimum fused score for a confident match.
	Accept float64
	// Margin is the minimum gap between the top two candidates; anything
	// tighter is ambiguous even above Accept.
	Margin float64
	// SuggestFloor is the minimum score worth surfacing as a suggestion.
	SuggestFloor float64
}

// DefaultThresholds are calibrated against the seeded invocation phrases.
func DefaultThresholds() Thresholds {
	return Thresholds{Accept: 0.65, Margin: 0.05, SuggestFloor: 0.55}
}

// macroShortCircuit is the fast-mode bar: only an (effectively) exact macro
// hit skips the ensemble.
const macroShortCircuit = 0.99

// Options scope one query.
type Options struct {
	// Mode selects fast or ensemble; empty means ModeEnsemble.
	Mode Mode
	// UserID scopes the personal learned channel.
	UserID string
	// Domain restricts candidates to one verb domain ("cbu" keeps cbu.*).
	Domain string
	// Limit caps the candidate list in the outcome; 0 means unlimited.
	Limit int
}

// Searcher is the hybrid verb searcher. Safe for concurrent use; the
// learned index swaps atomically under readers.
type Searcher struct {
	registry *vocab.Registry
	store    *store.Store
	embedder Embedder
	logger   *zap.Logger

	thresholds Thresholds
	topK       int

	learned atomic.Pointer[LearnedIndex]

	macro    Channel
	phonetic Channel
	channels []Channel // full ensemble, fixed order
}

// Option configures the searcher.
type Option func(*Searcher)

// WithThresholds overrides outcome thresholds.
func WithThresholds(t Thresholds) Option {
	return func(s *Searcher) { s.thresholds = t }
}

// WithTopK sets how many semantic neighbors are retrieved per query.
func WithTopK(k int) Option {
	return func(s *Searcher) { s.topK = k }
}

// New creates a Searcher over the verb registry and store. Call Warmup
// before serving queries; until then the learned channels see an empty
// index and the semantic channel an empty pattern table.
func New(reg *vocab.Registry, st *store.Store, embedder Embedder, logger *zap.Logger, opts ...Option) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Searcher{
		registry:   reg,
		store:      st,
		embedder:   embedder,
		logger:     logger,
		thresholds: DefaultThresholds(),
		topK:       10,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.learned.Store(emptyLearnedIndex())

	snapshot := func() *LearnedIndex { return s.learned.Load() }
	s.macro = newMacroChannel(reg)
	s.phonetic = newPhoneticChannel(reg)
	s.channels = []Channel{
		s.macro,
		newLearnedChannel(snapshot),
		newUserLearnedChannel(snapshot),
		&semanticChannel{store: st, embedder: embedder, topK: s.topK},
		s.phonetic,
	}
	return s
}

// Warmup seeds the semantic pattern table from the registry's invocation
// phrases and builds the learned index from stored feedback. Idempotent;
// run it at startup and after vocabulary reloads.
func (s *Searcher) Warmup(ctx context.Context) error {
	patterns := 0
	for _, v := range s.registry.All() {
		for _, phrase := range v.InvocationPhrases {
			text := Normalize(phrase)
			vec, err := s.embedder.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("embed %q: %w", phrase, err)
			}
			if err := s.store.UpsertPattern(ctx, v.FullName(), text, vec); err != nil {
				return fmt.Errorf("seed pattern for %s: %w", v.FullName(), err)
			}
			patterns++
		}
	}
	if err := s.reloadLearned(ctx); err != nil {
		return err
	}
	s.logger.Info("search warmup complete",
		zap.Int("patterns", patterns),
		zap.Int("learned", s.learned.Load().Size()),
		zap.Bool("vec_index", s.store.VecAvailable()))
	return nil
}

func (s *Searcher) reloadLearned(ctx context.Context) error {
	phrases, err := s.store.LoadLearnedPhrases(ctx)
	if err != nil {
		return fmt.Errorf("load learned phrases: %w", err)
	}
	s.learned.Store(buildLearnedIndex(phrases))
	return nil
}

// Search resolves a free-text phrase to a verb outcome.
func (s *Searcher) Search(ctx context.Context, text string, opts Options) (Outcome, error) {
	q := Query{Text: Normalize(text), UserID: opts.UserID}
	if q.Text == "" {
		return Outcome{Decision: DecisionNoMatch}, nil
	}

	if opts.Mode == ModeFast {
		evs, err := s.macro.Search(ctx, q)
		if err != nil {
			return Outcome{}, err
		}
		if len(evs) == 1 && evs[0].Score >= macroShortCircuit && inDomain(evs[0].Verb, opts.Domain) {
			s.logger.Debug("macro short-circuit",
				zap.String("query", q.Text), zap.String("verb", evs[0].Verb))
			return Outcome{
				Decision:   DecisionMatched,
				Verb:       evs[0].Verb,
				Score:      evs[0].Score,
				Candidates: []Candidate{{Verb: evs[0].Verb, Score: evs[0].Score, Channels: []string{ChannelMacro}}},
			}, nil
		}
		// Multiple macros for one phrase fall through to the ensemble so
		// the ambiguity surfaces with full candidates.
	}

	return s.ensemble(ctx, q, opts)
}

// inDomain reports whether verb belongs to the filter domain; an empty
// filter admits everything.
func inDomain(verb, domain string) bool {
	return domain == "" || strings.HasPrefix(verb, domain+".")
}

// ensemble fans out to every channel, waits for all of them, and fuses.
// Channel results land in per-channel slots and merge in fixed channel
// order, so the fused ranking is deterministic regardless of goroutine
// scheduling.
//
// A failing or timed-out channel contributes no evidence and the rest of
// the ensemble still answers; only all channels failing is a search error.
func (s *Searcher) ensemble(ctx context.Context, q Query, opts Options) (Outcome, error) {
	results := make([][]Evidence, len(s.channels))
	failures := make([]error, len(s.channels))
	var g errgroup.Group
	for i, ch := range s.channels {
		g.Go(func() error {
			evs, err := ch.Search(ctx, q)
			if err != nil {
				failures[i] = err
				s.logger.Warn("search channel degraded",
					zap.String("channel", ch.Name()),
					zap.String("query", q.Text),
					zap.Error(err))
				return nil
			}
			results[i] = evs
			return nil
		})
	}
	_ = g.Wait() // closures record failures instead of returning them

	failed := 0
	var firstErr error
	for _, err := range failures {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed++
		}
	}
	if failed == len(s.channels) {
		return Outcome{}, fmt.Errorf("all %d search channels failed: %w", failed, firstErr)
	}

	acc := newAccumulator()
	for _, evs := range results {
		for _, ev := range evs {
			if inDomain(ev.Verb, opts.Domain) {
				acc.add(ev)
			}
		}
	}
	outcome := s.decide(acc.ranked())
	if opts.Limit > 0 && len(outcome.Candidates) > opts.Limit {
		outcome.Candidates = outcome.Candidates[:opts.Limit]
	}
	s.logger.Debug("search decided",
		zap.String("query", q.Text),
		zap.String("decision", string(outcome.Decision)),
		zap.String("verb", outcome.Verb),
		zap.Float64("score", outcome.Score),
		zap.Int("candidates", len(outcome.Candidates)))
	return outcome, nil
}

// decide classifies ranked candidates against the thresholds.
func (s *Searcher) decide(ranked []Candidate) Outcome {
	if len(ranked) == 0 {
		return Outcome{Decision: DecisionNoMatch}
	}
	top := ranked[0]
	out := Outcome{Verb: top.Verb, Score: top.Score, Candidates: ranked}
	switch {
	case top.Score >= s.thresholds.Accept:
		if len(ranked) > 1 && top.Score-ranked[1].Score < s.thresholds.Margin {
			out.Decision = DecisionAmbiguous
		} else {
			out.Decision = DecisionMatched
		}
	case top.Score >= s.thresholds.SuggestFloor:
		out.Decision = DecisionSuggest
	default:
		out.Decision = DecisionNoMatch
	}
	return out
}

// RecordFeedback persists a confirmed phrase-verb pair with the score the
// winning candidate actually carried and the true alternatives the operator
// saw, then swaps in a rebuilt learned snapshot. The stored score is
// calibration data; exact learned hits still serve as authoritative.
func (s *Searcher) RecordFeedback(ctx context.Context, phrase, verb, userID string, score float64, alternatives []Candidate) error {
	if _, ok := s.registry.LookupFull(verb); !ok {
		return fmt.Errorf("feedback for unknown verb %q", verb)
	}
	alts := make([]store.Alternative, 0, len(alternatives))
	for _, c := range alternatives {
		if c.Verb == verb {
			continue
		}
		alts = append(alts, store.Alternative{Verb: c.Verb, Score: c.Score})
	}
	lp := store.LearnedPhrase{
		Phrase:       Normalize(phrase),
		Verb:         verb,
		Score:        score,
		UserID:       userID,
		Alternatives: alts,
	}
	if err := s.store.RecordFeedback(ctx, lp); err != nil {
		return err
	}
	s.logger.Info("feedback recorded",
		zap.String("phrase", lp.Phrase),
		zap.String("verb", verb),
		zap.String("user", userID),
		zap.Float64("score", score),
		zap.Int("alternatives", len(alts)))
	return s.reloadLearned(ctx)
}
