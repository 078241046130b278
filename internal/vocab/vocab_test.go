package vocab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchema = `
version: "1.0"
domains:
  cbu:
    description: Client business units
    verbs:
      create:
        description: Create a client business unit
        behavior: crud
        crud: {operation: create, entity_type: cbu}
        args:
          - {name: name, type: string, required: true}
          - {name: jurisdiction, type: string, enum: [US, GB, LU, IE]}
        invocation_phrases: ["onboard a new client", "create a client"]
        macro_phrases: ["new client"]
      attach-entity:
        description: Attach an entity to a CBU in a role
        behavior: crud
        crud: {operation: link, entity_type: cbu}
        args:
          - {name: cbu-id, type: uuid, required: true}
          - {name: entity-id, type: uuid, required: true}
          - {name: role, type: string, required: true, enum: [DIRECTOR, UBO, SIGNATORY]}
  entity:
    description: Legal and natural persons
    verbs:
      create-person:
        description: Create a natural person
        behavior: crud
        crud: {operation: create, entity_type: person}
        args:
          - {name: given-name, type: string, required: true}
          - {name: family-name, type: string}
      catalog-document:
        description: Catalog a supporting document
        behavior: custom
        handler: document.catalog
        args:
          - {name: entity-id, type: uuid, required: true}
          - {name: document-type, type: string, required: true}
`

func TestParse_Registry(t *testing.T) {
	r, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []string{"cbu", "entity"}, r.Domains())

	spec, ok := r.Lookup("cbu", "create")
	require.True(t, ok)
	assert.Equal(t, BehaviorCrud, spec.Behavior)
	assert.Equal(t, "create", spec.Crud.Operation)
	assert.Equal(t, []string{"name"}, spec.RequiredArgs())

	arg, ok := spec.Arg("jurisdiction")
	require.True(t, ok)
	assert.Equal(t, []string{"US", "GB", "LU", "IE"}, arg.Enum)

	custom, ok := r.LookupFull("entity.catalog-document")
	require.True(t, ok)
	assert.Equal(t, BehaviorCustom, custom.Behavior)
	assert.Equal(t, "document.catalog", custom.HandlerID)
}

func TestParse_UnknownVerbMissing(t *testing.T) {
	r, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)
	_, ok := r.Lookup("cbu", "destroy")
	assert.False(t, ok)
}

func TestParse_CrudWithoutConfigRejected(t *testing.T) {
	_, err := Parse([]byte(`
domains:
  cbu:
    verbs:
      create:
        behavior: crud
`))
	assert.Error(t, err)
}

func TestParse_CustomWithoutHandlerRejected(t *testing.T) {
	_, err := Parse([]byte(`
domains:
  doc:
    verbs:
      catalog:
        behavior: custom
`))
	assert.Error(t, err)
}

func TestLoadDir_MergesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cbu.yaml"), []byte(`
domains:
  cbu:
    verbs:
      create:
        behavior: crud
        crud: {operation: create, entity_type: cbu}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entity.yaml"), []byte(`
domains:
  entity:
    verbs:
      create-person:
        behavior: crud
        crud: {operation: create, entity_type: person}
`), 0o644))

	r, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestLoadDir_DuplicateVerbAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	doc := []byte(`
domains:
  cbu:
    verbs:
      create:
        behavior: crud
        crud: {operation: create, entity_type: cbu}
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), doc, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), doc, 0o644))

	_, err := LoadDir(dir)
	assert.Error(t, err)
}

func TestAll_SortedByFullName(t *testing.T) {
	r, err := Parse([]byte(sampleSchema))
	require.NoError(t, err)
	all := r.All()
	require.Len(t, all, 4)
	assert.Equal(t, "cbu.attach-entity", all[0].FullName())
	assert.Equal(t, "cbu.create", all[1].FullName())
	assert.Equal(t, "entity.catalog-document", all[2].FullName())
	assert.Equal(t, "entity.create-person", all[3].FullName())
}
