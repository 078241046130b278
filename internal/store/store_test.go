package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonfs/obdsl/internal/ast"
	"github.com/halcyonfs/obdsl/internal/binder"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEntityLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := s.Exec()

	id, err := s.CreateEntity(ctx, e, "cbu", map[string]any{"name": "Acme Fund"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	got, err := s.GetEntity(ctx, e, id)
	require.NoError(t, err)
	assert.Equal(t, "cbu", got.EntityType)
	assert.Equal(t, "Acme Fund", got.Attrs["name"])

	err = s.UpdateEntity(ctx, e, id, map[string]any{"jurisdiction": "LU"})
	require.NoError(t, err)

	got, err = s.GetEntity(ctx, e, id)
	require.NoError(t, err)
	assert.Equal(t, "Acme Fund", got.Attrs["name"], "update merges, does not replace")
	assert.Equal(t, "LU", got.Attrs["jurisdiction"])

	require.NoError(t, s.DeleteEntity(ctx, e, id))
	_, err = s.GetEntity(ctx, e, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteEntity(ctx, e, id), ErrNotFound)
}

func TestLinkEntities(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := s.Exec()

	cbu, err := s.CreateEntity(ctx, e, "cbu", nil)
	require.NoError(t, err)
	person, err := s.CreateEntity(ctx, e, "person", map[string]any{"name": "John Smith"})
	require.NoError(t, err)

	own := 25.0
	require.NoError(t, s.LinkEntities(ctx, e, Link{FromID: cbu, ToID: person, Role: "DIRECTOR"}))
	require.NoError(t, s.LinkEntities(ctx, e, Link{FromID: cbu, ToID: person, Role: "UBO", Ownership: &own}))
	// Same (from, to, role) again updates in place instead of erroring.
	own2 := 40.0
	require.NoError(t, s.LinkEntities(ctx, e, Link{FromID: cbu, ToID: person, Role: "UBO", Ownership: &own2}))

	links, err := s.ListLinks(ctx, e, cbu)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "DIRECTOR", links[0].Role)
	assert.Nil(t, links[0].Ownership)
	assert.Equal(t, "UBO", links[1].Role)
	require.NotNil(t, links[1].Ownership)
	assert.Equal(t, 40.0, *links[1].Ownership)
}

func TestExtractedValueRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	attrID := uuid.New()

	_, ok, err := s.ExtractedValue(ctx, attrID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutExtractedValue(ctx, attrID, binder.ExtractedValue{
		Value: ast.String("GB"), DocumentID: "passport-1", Page: 3, Confidence: 0.91,
	}))
	// Lower-confidence extraction from another document must not win.
	require.NoError(t, s.PutExtractedValue(ctx, attrID, binder.ExtractedValue{
		Value: ast.String("FR"), DocumentID: "utility-bill", Confidence: 0.4,
	}))

	ev, ok, err := s.ExtractedValue(ctx, attrID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ast.String("GB"), ev.Value)
	assert.Equal(t, "passport-1", ev.DocumentID)
	assert.Equal(t, 3, ev.Page)
	assert.Equal(t, 0.91, ev.Confidence)

	// Typed round-trip for the other scalar shapes.
	numAttr := uuid.New()
	require.NoError(t, s.PutExtractedValue(ctx, numAttr, binder.ExtractedValue{
		Value: ast.Number(25.5), DocumentID: "register-extract", Confidence: 0.8,
	}))
	ev, ok, err = s.ExtractedValue(ctx, numAttr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ast.Number(25.5), ev.Value)
}

func TestStoreImplementsDocumentValueReader(t *testing.T) {
	var _ binder.DocumentValueReader = (*Store)(nil)
}

func TestSourceVersioning(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v1, err := s.SaveSource(ctx, "onboard-trust", `(cbu.create :name "T1")`)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	v2, err := s.SaveSource(ctx, "onboard-trust", `(cbu.create :name "T2")`)
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	latest, err := s.GetSource(ctx, "onboard-trust", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Contains(t, latest.Source, "T2")

	pinned, err := s.GetSource(ctx, "onboard-trust", 1)
	require.NoError(t, err)
	assert.Contains(t, pinned.Source, "T1")

	_, err = s.GetSource(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.MarkCompiled(ctx, "onboard-trust", 2))
	latest, err = s.GetSource(ctx, "onboard-trust", 0)
	require.NoError(t, err)
	assert.True(t, latest.Compiled)

	_, err = s.SaveSource(ctx, "other", "()")
	require.NoError(t, err)
	all, err := s.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "onboard-trust", all[0].Name)
	assert.Equal(t, 2, all[0].Version, "list returns latest version only")
	assert.Equal(t, "other", all[1].Name)
}

func TestLearnedPhraseFeedback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lp := LearnedPhrase{
		Phrase: "onboard a new client",
		Verb:   "cbu.create",
		Score:  0.92,
		Alternatives: []Alternative{
			{Verb: "entity.create-person", Score: 0.61},
		},
	}
	require.NoError(t, s.RecordFeedback(ctx, lp))
	// Re-confirming the same pair updates score and alternatives.
	lp.Score = 0.97
	lp.Alternatives = nil
	require.NoError(t, s.RecordFeedback(ctx, lp))
	require.NoError(t, s.RecordFeedback(ctx, LearnedPhrase{
		Phrase: "onboard a new client", Verb: "cbu.create", Score: 0.8, UserID: "u-17",
	}))

	all, err := s.LoadLearnedPhrases(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "", all[0].UserID)
	assert.Equal(t, 0.97, all[0].Score)
	assert.Empty(t, all[0].Alternatives)
	assert.Equal(t, "u-17", all[1].UserID)
}

func TestPatternSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	vec := func(vals ...float32) []float32 {
		v := make([]float32, 256)
		copy(v, vals)
		return v
	}

	require.NoError(t, s.UpsertPattern(ctx, "cbu.create", "onboard a new client", vec(1, 0)))
	require.NoError(t, s.UpsertPattern(ctx, "cbu.attach-entity", "attach a director", vec(0, 1)))
	require.NoError(t, s.UpsertPattern(ctx, "entity.create-person", "register a person", vec(0.7, 0.7)))
	// Re-upserting the same phrase replaces its embedding.
	require.NoError(t, s.UpsertPattern(ctx, "cbu.create", "onboard a new client", vec(1, 0.1)))

	got, err := s.SearchPatterns(ctx, vec(1, 0), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cbu.create", got[0].Verb)
	assert.Equal(t, "entity.create-person", got[1].Verb)
	assert.Greater(t, got[0].Similarity, got[1].Similarity)
	assert.InDelta(t, 1.0, got[0].Similarity, 0.01)

	_, err = s.SearchPatterns(ctx, []float32{1, 2, 3}, 2)
	assert.Error(t, err, "dimension mismatch must be rejected")
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0.25, -1.5, 3.125, 0}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
