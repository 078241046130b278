package search

import (
	"context"

	"github.com/antzucaro/matchr"

	"github.com/halcyonfs/obdsl/internal/store"
	"github.com/halcyonfs/obdsl/internal/vocab"
)

// Channel names, stable for logging and candidate reporting.
const (
	ChannelMacro       = "macro"
	ChannelLearned     = "learned"
	ChannelUserLearned = "user-learned"
	ChannelSemantic    = "semantic"
	ChannelPhonetic    = "phonetic"
)

// Query is a normalized search input. Text is already passed through
// Normalize; UserID scopes the per-user learned channel and is otherwise
// ignored.
type Query struct {
	Text   string
	UserID string
}

// Channel is one evidence source. Search returns zero or more scored verbs;
// an empty result is not an error.
type Channel interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Evidence, error)
}

// macroChannel matches exact operator macros. A hit is authoritative:
// score 1.0.
type macroChannel struct {
	phrases map[string][]string // normalized phrase -> verbs
}

func newMacroChannel(reg *vocab.Registry) *macroChannel {
	phrases := make(map[string][]string)
	for _, v := range reg.All() {
		for _, p := range v.MacroPhrases {
			key := Normalize(p)
			phrases[key] = append(phrases[key], v.FullName())
		}
	}
	return &macroChannel{phrases: phrases}
}

func (c *macroChannel) Name() string { return ChannelMacro }

func (c *macroChannel) Search(_ context.Context, q Query) ([]Evidence, error) {
	verbs, ok := c.phrases[q.Text]
	if !ok {
		return nil, nil
	}
	out := make([]Evidence, len(verbs))
	for i, verb := range verbs {
		out[i] = Evidence{Verb: verb, Score: 1.0, Channel: ChannelMacro}
	}
	return out, nil
}

// learnedExactScore is what a confirmed exact phrase match scores. The
// feedback score recorded in the store calibrates thresholds; it does not
// weaken an operator-confirmed association.
const learnedExactScore = 1.0

// learnedChannel serves exact-match hits from the learned snapshot, either
// the global scope or one user's scope.
type learnedChannel struct {
	name     string
	perUser  bool
	snapshot func() *LearnedIndex
}

func newLearnedChannel(snapshot func() *LearnedIndex) *learnedChannel {
	return &learnedChannel{name: ChannelLearned, snapshot: snapshot}
}

func newUserLearnedChannel(snapshot func() *LearnedIndex) *learnedChannel {
	return &learnedChannel{name: ChannelUserLearned, perUser: true, snapshot: snapshot}
}

func (c *learnedChannel) Name() string { return c.name }

func (c *learnedChannel) Search(_ context.Context, q Query) ([]Evidence, error) {
	idx := c.snapshot()
	var entries []learnedEntry
	if c.perUser {
		if q.UserID == "" {
			return nil, nil
		}
		entries = idx.ForUser(q.UserID, q.Text)
	} else {
		entries = idx.Global(q.Text)
	}
	out := make([]Evidence, len(entries))
	for i, e := range entries {
		out[i] = Evidence{Verb: e.Verb, Score: learnedExactScore, Channel: c.name}
	}
	return out, nil
}

// semanticChannel embeds the query and asks the store for nearest
// invocation patterns. Similarity passes through as the raw score.
type semanticChannel struct {
	store    *store.Store
	embedder Embedder
	topK     int
}

func (c *semanticChannel) Name() string { return ChannelSemantic }

func (c *semanticChannel) Search(ctx context.Context, q Query) ([]Evidence, error) {
	vec, err := c.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	matches, err := c.store.SearchPatterns(ctx, vec, c.topK)
	if err != nil {
		return nil, err
	}
	out := make([]Evidence, len(matches))
	for i, m := range matches {
		out[i] = Evidence{Verb: m.Verb, Score: m.Similarity, Channel: ChannelSemantic}
	}
	return out, nil
}

// phoneticWeight caps the phonetic channel: a perfect phonetic match is
// strong evidence but never as strong as an exact macro or learned hit.
const phoneticWeight = 0.8

// phoneticFloor drops noise; phrases sharing less than half their codes with
// the query contribute nothing.
const phoneticFloor = 0.5

// phoneticChannel matches on Double Metaphone codes so misspelled queries
// still find their verb. Score is phoneticWeight times the Jaccard overlap
// of token code sets.
type phoneticChannel struct {
	entries []phoneticEntry
}

type phoneticEntry struct {
	verb  string
	codes map[string]struct{}
}

func newPhoneticChannel(reg *vocab.Registry) *phoneticChannel {
	var entries []phoneticEntry
	for _, v := range reg.All() {
		phrases := append(append([]string{}, v.InvocationPhrases...), v.MacroPhrases...)
		for _, p := range phrases {
			codes := phoneticCodes(p)
			if len(codes) == 0 {
				continue
			}
			entries = append(entries, phoneticEntry{verb: v.FullName(), codes: codes})
		}
	}
	return &phoneticChannel{entries: entries}
}

func (c *phoneticChannel) Name() string { return ChannelPhonetic }

func (c *phoneticChannel) Search(_ context.Context, q Query) ([]Evidence, error) {
	qCodes := phoneticCodes(q.Text)
	if len(qCodes) == 0 {
		return nil, nil
	}
	var out []Evidence
	for _, e := range c.entries {
		overlap := jaccard(qCodes, e.codes)
		if overlap < phoneticFloor {
			continue
		}
		out = append(out, Evidence{
			Verb:    e.verb,
			Score:   phoneticWeight * overlap,
			Channel: ChannelPhonetic,
		})
	}
	return out, nil
}

func phoneticCodes(text string) map[string]struct{} {
	codes := make(map[string]struct{})
	for _, tok := range Tokens(text) {
		primary, secondary := matchr.DoubleMetaphone(tok)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" && secondary != primary {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
