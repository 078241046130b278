package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureVocab = `
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
          - name: jurisdiction
            type: string
            enum: [LU, IE, GB, US]
        invocation_phrases:
          - onboard a new client
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
`

const fixtureDict = `
attributes:
  - path: attr.cbu.jurisdiction
    type: string
    default: "US"
`

// fixture writes a self-contained workspace: config, vocab dir, dictionary,
// and a store path inside a temp dir. Returns the config path.
func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	vocabDir := filepath.Join(dir, "vocab")
	require.NoError(t, os.Mkdir(vocabDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vocabDir, "core.yaml"), []byte(fixtureVocab), 0o644))
	dictPath := filepath.Join(dir, "attributes.yaml")
	require.NoError(t, os.WriteFile(dictPath, []byte(fixtureDict), 0o644))

	cfgPath := filepath.Join(dir, "obdsl.yaml")
	cfg := fmt.Sprintf("store:\n  path: %s\nvocab:\n  dir: %s\n  dict_path: %s\nlog:\n  level: error\n",
		filepath.Join(dir, "data.db"), vocabDir, dictPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.obdsl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

// execute runs the CLI with args and returns stdout, stderr, and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "inner", errors.New("cause")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
}

func TestRootRejectsBadFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "parse", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestParseCommand(t *testing.T) {
	cfg := fixture(t)
	prog := writeProgram(t, `(cbu.create :name "Acme" :jurisdiction "LU" -> @c)`)

	out, _, err := execute(t, "--config", cfg, "parse", prog)
	require.NoError(t, err)
	assert.Contains(t, out, `(cbu.create :name "Acme" :jurisdiction "LU" -> @c)`)
}

func TestParseCommand_ReportsPosition(t *testing.T) {
	cfg := fixture(t)
	prog := writeProgram(t, `(cbu.create :name "unterminated`)

	out, _, err := execute(t, "--config", cfg, "parse", prog)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗")
}

func TestCompileCommand(t *testing.T) {
	cfg := fixture(t)
	prog := writeProgram(t, `
(cbu.create :name "Acme" :jurisdiction "LU" -> @c)
(entity.create-person :name "Jane" -> @p)
(cbu.attach-entity :cbu-id @c :entity-id @p :role "DIRECTOR")
`)

	out, _, err := execute(t, "--config", cfg, "compile", prog)
	require.NoError(t, err)
	assert.Contains(t, out, "compiled 3 step(s)")
	assert.Contains(t, out, "<- step 0")
	assert.Contains(t, out, "<- step 1")
}

func TestCompileCommand_BatchesErrors(t *testing.T) {
	cfg := fixture(t)
	prog := writeProgram(t, `
(cbu.create :jurisdiction "ZZ")
(cbu.attach-entity :cbu-id @ghost :entity-id @ghost :role "UBO")
`)

	out, _, err := execute(t, "--config", cfg, "--format", "json", "compile", prog)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.GreaterOrEqual(t, len(resp.Errors), 3, "missing required, bad enum, and undefined symbols all reported")
}

func TestCompileCommand_ExternalContext(t *testing.T) {
	cfg := fixture(t)
	prog := writeProgram(t,
		`(cbu.attach-entity :cbu-id @session-cbu :entity-id @session-person :role "UBO")`)

	_, _, err := execute(t, "--config", cfg, "compile", prog)
	require.Error(t, err, "unseeded symbols are undefined")

	_, _, err = execute(t, "--config", cfg, "compile", prog,
		"--context", "session-cbu", "--context", "session-person")
	require.NoError(t, err)
}

func TestRunCommand(t *testing.T) {
	cfg := fixture(t)
	prog := writeProgram(t, `
(cbu.create :name "Acme" :jurisdiction "LU" -> @c)
(entity.create-person :name "Jane" -> @p)
(cbu.attach-entity :cbu-id @c :entity-id @p :role "DIRECTOR")
`)

	out, _, err := execute(t, "--config", cfg, "run", prog)
	require.NoError(t, err)
	assert.Contains(t, out, "3 stored, 0 failed")
	assert.Contains(t, out, "2 injection(s) resolved")
}

func TestRunCommand_FailedStepSetsExitCode(t *testing.T) {
	cfg := fixture(t)
	prog := writeProgram(t,
		`(cbu.attach-entity :cbu-id 0e000000-0000-0000-0000-00000000000e :entity-id 0e000000-0000-0000-0000-00000000000e :role "UBO")`)

	out, _, err := execute(t, "--config", cfg, "run", prog)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "1 failed")
}

func TestRunCommand_SaveAs(t *testing.T) {
	cfg := fixture(t)
	prog := writeProgram(t, `(cbu.create :name "Acme")`)

	_, _, err := execute(t, "--config", cfg, "run", prog, "--save-as", "onboard-acme")
	require.NoError(t, err)

	out, _, err := execute(t, "--config", cfg, "sources", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "onboard-acme v1")
	assert.Contains(t, out, "✓", "successful run marks the version compiled")

	out, _, err = execute(t, "--config", cfg, "sources", "show", "onboard-acme")
	require.NoError(t, err)
	assert.Contains(t, out, `(cbu.create :name "Acme")`)
}

func TestSourcesSaveVersions(t *testing.T) {
	cfg := fixture(t)
	prog := writeProgram(t, `(cbu.create :name "V")`)

	_, _, err := execute(t, "--config", cfg, "sources", "save", "p", prog)
	require.NoError(t, err)
	out, _, err := execute(t, "--config", cfg, "sources", "save", "p", prog)
	require.NoError(t, err)
	assert.Contains(t, out, "v2")
}

func TestSearchCommand_MacroFastPath(t *testing.T) {
	cfg := fixture(t)

	_, _, err := execute(t, "--config", cfg, "warmup")
	require.NoError(t, err)

	out, _, err := execute(t, "--config", cfg, "search", "new", "client")
	require.NoError(t, err)
	assert.Contains(t, out, "cbu.create")
}

func TestSearchCommand_NoMatch(t *testing.T) {
	cfg := fixture(t)
	_, _, err := execute(t, "--config", cfg, "search", "--mode", "ensemble",
		"recalculate", "orbital", "trajectories")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestFeedbackCommand(t *testing.T) {
	cfg := fixture(t)

	_, _, err := execute(t, "--config", cfg, "feedback", "kick off the client file", "cbu.create")
	require.Error(t, err, "feedback needs a scope")

	_, _, err = execute(t, "--config", cfg, "feedback", "--global",
		"kick off the client file", "cbu.create")
	require.NoError(t, err)

	out, _, err := execute(t, "--config", cfg, "search", "--mode", "ensemble",
		"kick off the client file")
	require.NoError(t, err)
	assert.Contains(t, out, "cbu.create")
}

func TestRunCommand_JSONReport(t *testing.T) {
	cfg := fixture(t)
	prog := writeProgram(t, `(cbu.create :name "Acme" -> @c)`)

	out, _, err := execute(t, "--config", cfg, "--format", "json", "run", prog)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	payload, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), payload["stored"])
	assert.NotEmpty(t, payload["session_id"])
}

func TestParsePairs(t *testing.T) {
	got, err := parsePairs([]string{"a=1", "b=two words"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "two words"}, got)

	_, err = parsePairs([]string{"noequals"})
	assert.Error(t, err)

	got, err = parsePairs(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParseBindings_UUIDDetection(t *testing.T) {
	got, err := parseBindings([]string{
		"cbu=8f14e45f-ceea-4e7b-9d2c-1c1f1a2b3c4d",
		"note=hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "8f14e45f-ceea-4e7b-9d2c-1c1f1a2b3c4d", got["cbu"].Render())
	assert.Equal(t, `"hello"`, got["note"].Render())
	assert.False(t, strings.Contains(got["note"].Render(), "uuid"))
}
