package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obdsl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  path: /var/lib/obdsl/data.db
engine:
  mode: atomic
search:
  accept: 0.7
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/obdsl/data.db", cfg.Store.Path)
	assert.Equal(t, "atomic", cfg.Engine.Mode)
	assert.Equal(t, 0.7, cfg.Search.Accept)
	assert.Equal(t, 1000, cfg.Engine.MaxSteps, "untouched fields keep defaults")
	assert.Equal(t, 256, cfg.Store.EmbeddingDim)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad mode":       "engine:\n  mode: yolo\n",
		"zero max steps": "engine:\n  mode: atomic\n  max_steps: 0\n",
		"inverted bands": "search:\n  accept: 0.4\n  suggest_floor: 0.6\n",
		"bad yaml":       "store: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
