package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonfs/obdsl/internal/store"
	"github.com/halcyonfs/obdsl/internal/vocab"
)

const searchSchema = `
domains:
  cbu:
    verbs:
      create:
        description: Create a client business unit
        behavior: crud
        crud:
          operation: create
          entity_type: cbu
        args:
          - name: name
            type: string
            required: true
        invocation_phrases:
          - onboard a new client
          - set up a client business unit
        macro_phrases:
          - new client
      attach-entity:
        description: Link an entity into a CBU
        behavior: crud
        crud:
          operation: link
          entity_type: cbu
        args:
          - name: cbu-id
            type: uuid
            required: true
          - name: entity-id
            type: uuid
            required: true
          - name: role
            type: string
            required: true
        invocation_phrases:
          - attach a director to the client
          - add an entity to the cbu
  entity:
    verbs:
      create-person:
        description: Register a natural person
        behavior: crud
        crud:
          operation: create
          entity_type: person
        args:
          - name: name
            type: string
            required: true
        invocation_phrases:
          - register a person
          - add a natural person
`

func searchFixture(t *testing.T, opts ...Option) *Searcher {
	t.Helper()
	reg, err := vocab.Parse([]byte(searchSchema))
	require.NoError(t, err)
	st, err := store.Open(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s := New(reg, st, NewHashEmbedder(256), nil, opts...)
	require.NoError(t, s.Warmup(context.Background()))
	return s
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "onboard a new client", Normalize("  Onboard, a NEW client!  "))
	assert.Equal(t, "attach-entity", Normalize("Attach-Entity"))
	assert.Equal(t, "", Normalize("  ... \t"))
	assert.Equal(t, []string{"new", "client"}, Tokens("New CLIENT?"))
}

func TestAccumulatorMaxFusion(t *testing.T) {
	acc := newAccumulator()
	acc.add(Evidence{Verb: "cbu.create", Score: 0.9, Channel: ChannelSemantic})
	acc.add(Evidence{Verb: "cbu.create", Score: 0.7, Channel: ChannelPhonetic})
	acc.add(Evidence{Verb: "entity.create-person", Score: 0.7, Channel: ChannelSemantic})

	ranked := acc.ranked()
	require.Len(t, ranked, 2)
	assert.Equal(t, "cbu.create", ranked[0].Verb)
	assert.Equal(t, 0.9, ranked[0].Score, "max of raw scores, not a sum")
	assert.Equal(t, []string{ChannelSemantic, ChannelPhonetic}, ranked[0].Channels)
}

func TestAccumulatorTiebreakByVerb(t *testing.T) {
	acc := newAccumulator()
	acc.add(Evidence{Verb: "b.second", Score: 0.8, Channel: ChannelSemantic})
	acc.add(Evidence{Verb: "a.first", Score: 0.8, Channel: ChannelSemantic})
	ranked := acc.ranked()
	assert.Equal(t, "a.first", ranked[0].Verb)
	assert.Equal(t, "b.second", ranked[1].Verb)
}

func TestDecide(t *testing.T) {
	s := &Searcher{thresholds: DefaultThresholds()}

	out := s.decide(nil)
	assert.Equal(t, DecisionNoMatch, out.Decision)

	out = s.decide([]Candidate{{Verb: "cbu.create", Score: 0.9}})
	assert.Equal(t, DecisionMatched, out.Decision)
	assert.Equal(t, "cbu.create", out.Verb)

	// 0.70 vs 0.68 is inside the ambiguity margin.
	out = s.decide([]Candidate{
		{Verb: "cbu.create", Score: 0.70},
		{Verb: "cbu.attach-entity", Score: 0.68},
	})
	assert.Equal(t, DecisionAmbiguous, out.Decision)
	assert.Len(t, out.Candidates, 2, "ambiguous outcomes carry the true alternatives")

	// A clear gap above the accept threshold is a match.
	out = s.decide([]Candidate{
		{Verb: "cbu.create", Score: 0.70},
		{Verb: "cbu.attach-entity", Score: 0.60},
	})
	assert.Equal(t, DecisionMatched, out.Decision)

	out = s.decide([]Candidate{{Verb: "cbu.create", Score: 0.58}})
	assert.Equal(t, DecisionSuggest, out.Decision)

	out = s.decide([]Candidate{{Verb: "cbu.create", Score: 0.2}})
	assert.Equal(t, DecisionNoMatch, out.Decision)
}

func TestSearch_MacroFastPath(t *testing.T) {
	s := searchFixture(t)

	out, err := s.Search(context.Background(), "New Client", Options{Mode: ModeFast})
	require.NoError(t, err)
	assert.Equal(t, DecisionMatched, out.Decision)
	assert.Equal(t, "cbu.create", out.Verb)
	assert.Equal(t, 1.0, out.Score)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, []string{ChannelMacro}, out.Candidates[0].Channels)
}

func TestSearch_SemanticExactPhrase(t *testing.T) {
	s := searchFixture(t)

	out, err := s.Search(context.Background(), "onboard a new client", Options{Mode: ModeEnsemble})
	require.NoError(t, err)
	assert.Equal(t, DecisionMatched, out.Decision)
	assert.Equal(t, "cbu.create", out.Verb)
	assert.GreaterOrEqual(t, out.Score, 0.99, "identical phrase embeds to similarity 1")
}

func TestSearch_PhoneticSurvivesMisspelling(t *testing.T) {
	reg, err := vocab.Parse([]byte(searchSchema))
	require.NoError(t, err)
	ch := newPhoneticChannel(reg)

	evs, err := ch.Search(context.Background(), Query{Text: Normalize("onbord a new cleint")})
	require.NoError(t, err)
	require.NotEmpty(t, evs)
	best := evs[0]
	for _, ev := range evs {
		if ev.Score > best.Score {
			best = ev
		}
	}
	assert.Equal(t, "cbu.create", best.Verb)
	assert.GreaterOrEqual(t, best.Score, 0.65)
}

func TestSearch_FeedbackLoop(t *testing.T) {
	s := searchFixture(t)
	ctx := context.Background()

	// An unseen phrasing is weak at best before feedback.
	before, err := s.Search(ctx, "spin up the whole client package", Options{Mode: ModeEnsemble})
	require.NoError(t, err)
	assert.NotEqual(t, DecisionMatched, before.Decision)

	err = s.RecordFeedback(ctx, "spin up the whole client package", "cbu.create", "",
		before.Score, before.Candidates)
	require.NoError(t, err)

	after, err := s.Search(ctx, "Spin up the WHOLE client package", Options{Mode: ModeEnsemble})
	require.NoError(t, err)
	assert.Equal(t, DecisionMatched, after.Decision)
	assert.Equal(t, "cbu.create", after.Verb)
	assert.Equal(t, 1.0, after.Score)

	// The store keeps the score the winning candidate actually carried,
	// not a hardcoded confirmation score.
	phrases, err := s.store.LoadLearnedPhrases(ctx)
	require.NoError(t, err)
	require.Len(t, phrases, 1)
	assert.Equal(t, before.Score, phrases[0].Score)

	assert.Error(t, s.RecordFeedback(ctx, "x", "no.such-verb", "", 0, nil))
}

func TestSearch_UserScopedFeedback(t *testing.T) {
	s := searchFixture(t)
	ctx := context.Background()

	require.NoError(t, s.RecordFeedback(ctx, "do the usual intake", "entity.create-person", "u-7", 0.7, nil))

	mine, err := s.Search(ctx, "do the usual intake", Options{Mode: ModeEnsemble, UserID: "u-7"})
	require.NoError(t, err)
	assert.Equal(t, DecisionMatched, mine.Decision)
	assert.Equal(t, "entity.create-person", mine.Verb)

	theirs, err := s.Search(ctx, "do the usual intake", Options{Mode: ModeEnsemble, UserID: "u-8"})
	require.NoError(t, err)
	assert.NotEqual(t, 1.0, theirs.Score, "another user must not see the learned association")
	assert.NotEqual(t, DecisionMatched, theirs.Decision)
}

type spyChannel struct {
	name   string
	evs    []Evidence
	called bool
}

func (c *spyChannel) Name() string { return c.name }
func (c *spyChannel) Search(context.Context, Query) ([]Evidence, error) {
	c.called = true
	return c.evs, nil
}

type brokenChannel struct {
	name string
}

func (c *brokenChannel) Name() string { return c.name }
func (c *brokenChannel) Search(context.Context, Query) ([]Evidence, error) {
	return nil, errors.New("index offline")
}

func TestEnsembleNeverEarlyExits(t *testing.T) {
	s := searchFixture(t)
	strong := &spyChannel{name: "strong", evs: []Evidence{{Verb: "cbu.create", Score: 1.0, Channel: "strong"}}}
	weak := &spyChannel{name: "weak", evs: []Evidence{{Verb: "cbu.create", Score: 0.3, Channel: "weak"}}}
	s.channels = []Channel{strong, weak}

	out, err := s.Search(context.Background(), "anything at all", Options{Mode: ModeEnsemble})
	require.NoError(t, err)
	assert.True(t, strong.called)
	assert.True(t, weak.called, "a perfect hit must not skip remaining channels in ensemble mode")
	assert.Equal(t, 1.0, out.Score)
	assert.Equal(t, []string{"strong", "weak"}, out.Candidates[0].Channels)
}

func TestEnsembleSurvivesChannelFailure(t *testing.T) {
	s := searchFixture(t)
	good := &spyChannel{name: "good", evs: []Evidence{{Verb: "cbu.create", Score: 0.9, Channel: "good"}}}
	s.channels = []Channel{&brokenChannel{name: "down"}, good}

	out, err := s.Search(context.Background(), "anything at all", Options{Mode: ModeEnsemble})
	require.NoError(t, err, "a degraded channel must not fail the search")
	assert.True(t, good.called)
	assert.Equal(t, DecisionMatched, out.Decision)
	assert.Equal(t, "cbu.create", out.Verb)
	assert.Equal(t, 0.9, out.Score)
}

func TestEnsembleAllChannelsFailing(t *testing.T) {
	s := searchFixture(t)
	s.channels = []Channel{&brokenChannel{name: "a"}, &brokenChannel{name: "b"}}

	_, err := s.Search(context.Background(), "anything at all", Options{Mode: ModeEnsemble})
	assert.Error(t, err, "no surviving channel is a search error, not an empty outcome")
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(256)
	a, err := e.Embed(context.Background(), "onboard a new client")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "Onboard a NEW client")
	require.NoError(t, err)
	assert.Equal(t, a, b, "embedding is invariant under normalization")

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-6, "unit norm")

	c, err := e.Embed(context.Background(), "completely unrelated words here")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := searchFixture(t)
	out, err := s.Search(context.Background(), "   ", Options{Mode: ModeEnsemble})
	require.NoError(t, err)
	assert.Equal(t, DecisionNoMatch, out.Decision)
}

func TestSearch_DomainFilter(t *testing.T) {
	s := searchFixture(t)
	ctx := context.Background()

	out, err := s.Search(ctx, "onboard a new client", Options{Mode: ModeEnsemble, Domain: "entity"})
	require.NoError(t, err)
	assert.NotEqual(t, "cbu.create", out.Verb, "cbu verbs are filtered out")
	for _, c := range out.Candidates {
		assert.Contains(t, c.Verb, "entity.", "filtered candidates stay in-domain")
	}

	// The fast path respects the filter too: the macro hit is out of
	// domain, so the query falls through to the filtered ensemble.
	out, err = s.Search(ctx, "new client", Options{Mode: ModeFast, Domain: "entity"})
	require.NoError(t, err)
	assert.NotEqual(t, "cbu.create", out.Verb)
}

func TestSearch_LimitCapsCandidates(t *testing.T) {
	s := searchFixture(t)

	out, err := s.Search(context.Background(), "client", Options{Mode: ModeEnsemble, Limit: 1})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out.Candidates), 1)
}
