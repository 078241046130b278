package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonfs/obdsl/internal/ast"
	"github.com/halcyonfs/obdsl/internal/compiler"
	"github.com/halcyonfs/obdsl/internal/dict"
	"github.com/halcyonfs/obdsl/internal/engine"
	"github.com/halcyonfs/obdsl/internal/parser"
	"github.com/halcyonfs/obdsl/internal/store"
	"github.com/halcyonfs/obdsl/internal/vocab"
)

// Harness wires a throwaway platform - temp store, registry, dictionary,
// engine - for one test's scenarios.
type Harness struct {
	Store    *store.Store
	Registry *vocab.Registry
	Dict     *dict.Dictionary
}

// New builds a harness from schema YAML. The store lives in the test's temp
// dir and is torn down with it.
func New(t *testing.T, vocabYAML, dictYAML string) *Harness {
	t.Helper()
	reg, err := vocab.Parse([]byte(vocabYAML))
	require.NoError(t, err)
	d, err := dict.Parse([]byte(dictYAML))
	require.NoError(t, err)
	st, err := store.Open(filepath.Join(t.TempDir(), "harness.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return &Harness{Store: st, Registry: reg, Dict: d}
}

// RunFile loads and runs one scenario file.
func (h *Harness) RunFile(t *testing.T, path string) *engine.SessionReport {
	t.Helper()
	sc, err := LoadScenario(path)
	require.NoError(t, err)
	return h.Run(t, sc)
}

// Run executes a scenario and checks every expectation. Returns the session
// report for additional assertions (nil for negative compile scenarios).
func (h *Harness) Run(t *testing.T, sc *Scenario) *engine.SessionReport {
	t.Helper()
	ctx := context.Background()

	prog, err := parser.Parse(sc.Program)
	require.NoError(t, err, "scenario %s: program must parse", sc.Name)

	external := make(map[string]ast.Value, len(sc.Bindings))
	keys := make([]string, 0, len(sc.Bindings))
	for k, raw := range sc.Bindings {
		keys = append(keys, k)
		if id, err := uuid.Parse(raw); err == nil {
			external[k] = ast.RawUUID(id)
		} else {
			external[k] = ast.String(raw)
		}
	}

	var copts []compiler.Option
	if len(keys) > 0 {
		copts = append(copts, compiler.WithExternalContext(keys...))
	}
	plan, cerrs := compiler.Compile(prog, h.Registry, h.Dict, copts...)

	if len(sc.CompileErrors) > 0 {
		require.NotEmpty(t, cerrs, "scenario %s: expected compile errors", sc.Name)
		codes := make([]string, len(cerrs))
		for i, ce := range cerrs {
			codes[i] = ce.Code
		}
		assert.Equal(t, sc.CompileErrors, codes, "scenario %s: compile error codes", sc.Name)
		return nil
	}
	require.Empty(t, cerrs, "scenario %s: compile errors: %v", sc.Name, cerrs)

	mode := engine.ModeBestEffort
	if sc.Mode != "" {
		mode = engine.Mode(sc.Mode)
	}
	eng := engine.New(h.Store, h.Registry, nil, engine.WithMode(mode))

	report, execErr := eng.ExecutePlan(ctx, plan, external)
	if sc.Expect.Failed == 0 {
		require.NoError(t, execErr, "scenario %s", sc.Name)
	}
	require.NotNil(t, report, "scenario %s", sc.Name)

	assert.Equal(t, sc.Expect.Stored, report.Stored, "scenario %s: stored", sc.Name)
	assert.Equal(t, sc.Expect.Failed, report.Failed, "scenario %s: failed", sc.Name)
	if sc.Expect.Resolved > 0 {
		assert.Equal(t, sc.Expect.Resolved, report.Resolved, "scenario %s: resolved", sc.Name)
	}
	for i, se := range sc.Expect.Steps {
		require.Less(t, i, len(report.Steps), "scenario %s: missing step %d", sc.Name, i)
		assert.Equal(t, se.Verb, report.Steps[i].Verb, "scenario %s: step %d verb", sc.Name, i)
		assert.Equal(t, se.Status, string(report.Steps[i].Status), "scenario %s: step %d status", sc.Name, i)
	}

	h.checkEntities(t, sc)
	if sc.Expect.Links > 0 {
		h.checkLinkCount(t, sc)
	}
	return report
}

// PlanString compiles a scenario's program and returns the plan's stable
// debug rendering, for golden comparisons.
func (h *Harness) PlanString(t *testing.T, sc *Scenario) string {
	t.Helper()
	prog, err := parser.Parse(sc.Program)
	require.NoError(t, err)
	var copts []compiler.Option
	if len(sc.Bindings) > 0 {
		keys := make([]string, 0, len(sc.Bindings))
		for k := range sc.Bindings {
			keys = append(keys, k)
		}
		copts = append(copts, compiler.WithExternalContext(keys...))
	}
	plan, cerrs := compiler.Compile(prog, h.Registry, h.Dict, copts...)
	require.Empty(t, cerrs)
	return plan.DebugString()
}

func (h *Harness) checkEntities(t *testing.T, sc *Scenario) {
	t.Helper()
	ctx := context.Background()
	for _, ee := range sc.Expect.Entities {
		rows, err := h.Store.DB().QueryContext(ctx,
			`SELECT id, attrs FROM entities WHERE entity_type = ?`, ee.Type)
		require.NoError(t, err)
		found := false
		for rows.Next() {
			var id, attrs string
			require.NoError(t, rows.Scan(&id, &attrs))
			if matchesAttrs(attrs, ee.Attrs) {
				found = true
			}
		}
		require.NoError(t, rows.Err())
		rows.Close()
		assert.True(t, found, "scenario %s: no %s entity with attrs %v", sc.Name, ee.Type, ee.Attrs)
	}
}

func (h *Harness) checkLinkCount(t *testing.T, sc *Scenario) {
	t.Helper()
	var n int
	err := h.Store.DB().QueryRow(`SELECT COUNT(*) FROM entity_links`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, sc.Expect.Links, n, "scenario %s: link count", sc.Name)
}
