package dict

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonfs/obdsl/internal/ast"
)

func testDictionary(t *testing.T) *Dictionary {
	t.Helper()
	d, err := New([]Attribute{
		{Path: "attr.identity.first_name", Type: "string"},
		{Path: "attr.identity.last_name", Type: "string"},
		{Path: "attr.cbu.jurisdiction", Type: "string", Default: ast.String("US")},
	})
	require.NoError(t, err)
	return d
}

func TestRoundTripResolution(t *testing.T) {
	d := testDictionary(t)

	id, err := d.SemanticToUUID("attr.identity.first_name")
	require.NoError(t, err)
	assert.Equal(t, PathUUID("attr.identity.first_name"), id, "ids are deterministic UUIDv5")

	path, err := d.UUIDToSemantic(id)
	require.NoError(t, err)
	assert.Equal(t, "attr.identity.first_name", path)
}

func TestUnknownUUIDIsExplicitError(t *testing.T) {
	d := testDictionary(t)

	// Unknown UUIDs must fail loudly - never fall back to a placeholder
	// string like "uuid:<uuid>".
	_, err := d.UUIDToSemantic(uuid.MustParse("00000000-0000-0000-0000-00000000dead"))
	require.Error(t, err)
	assert.True(t, IsUnknownUUID(err))

	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrUnknownUUID, re.Code)
}

func TestUnknownSemanticPath(t *testing.T) {
	d := testDictionary(t)
	_, err := d.SemanticToUUID("attr.nope")
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrUnknownSemanticPath, re.Code)
}

func TestDuplicatePathRejected(t *testing.T) {
	_, err := New([]Attribute{
		{Path: "attr.x"},
		{Path: "attr.x"},
	})
	assert.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	d, err := Parse([]byte(`
attributes:
  - path: attr.identity.first_name
    type: string
    description: Given name
  - path: attr.cbu.jurisdiction
    type: string
    default: "US"
  - path: attr.cbu.ubo_threshold
    type: number
    default: 25
`))
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())

	id, err := d.SemanticToUUID("attr.cbu.jurisdiction")
	require.NoError(t, err)
	a, err := d.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, ast.String("US"), a.Default)

	id, err = d.SemanticToUUID("attr.cbu.ubo_threshold")
	require.NoError(t, err)
	a, err = d.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, ast.Number(25), a.Default)
}

func TestParseYAML_ExplicitID(t *testing.T) {
	d, err := Parse([]byte(`
attributes:
  - id: 3020d46f-472c-5437-9647-1b0682c35935
    path: attr.identity.last_name
    type: string
`))
	require.NoError(t, err)
	path, err := d.UUIDToSemantic(uuid.MustParse("3020d46f-472c-5437-9647-1b0682c35935"))
	require.NoError(t, err)
	assert.Equal(t, "attr.identity.last_name", path)
}
