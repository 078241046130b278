// Package config loads the platform configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration. Zero values fall back to defaults,
// so a minimal file only names its data paths.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Vocab  VocabConfig  `yaml:"vocab"`
	Engine EngineConfig `yaml:"engine"`
	Search SearchConfig `yaml:"search"`
	Log    LogConfig    `yaml:"log"`
}

type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
	// EmbeddingDim is the semantic pattern vector dimension.
	EmbeddingDim int `yaml:"embedding_dim"`
}

type VocabConfig struct {
	// Dir holds the verb schema YAML files.
	Dir string `yaml:"dir"`
	// DictPath is the attribute dictionary YAML file.
	DictPath string `yaml:"dict_path"`
}

type EngineConfig struct {
	// Mode is "best-effort" or "atomic".
	Mode     string `yaml:"mode"`
	MaxSteps int    `yaml:"max_steps"`
}

type SearchConfig struct {
	Accept       float64 `yaml:"accept"`
	Margin       float64 `yaml:"margin"`
	SuggestFloor float64 `yaml:"suggest_floor"`
	TopK         int     `yaml:"top_k"`
}

type LogConfig struct {
	// Level is zap's level string: debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store:  StoreConfig{Path: "obdsl.db", EmbeddingDim: 256},
		Vocab:  VocabConfig{Dir: "vocab", DictPath: "attributes.yaml"},
		Engine: EngineConfig{Mode: "best-effort", MaxSteps: 1000},
		Search: SearchConfig{Accept: 0.65, Margin: 0.05, SuggestFloor: 0.55, TopK: 10},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads a YAML config file over the defaults. A missing path returns
// the defaults unchanged; a present but malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Engine.Mode {
	case "best-effort", "atomic":
	default:
		return fmt.Errorf("engine.mode must be best-effort or atomic, got %q", c.Engine.Mode)
	}
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("engine.max_steps must be positive")
	}
	if c.Store.EmbeddingDim <= 0 {
		return fmt.Errorf("store.embedding_dim must be positive")
	}
	if c.Search.Accept < c.Search.SuggestFloor {
		return fmt.Errorf("search.accept must be >= search.suggest_floor")
	}
	if c.Search.Margin < 0 || c.Search.Margin > 1 {
		return fmt.Errorf("search.margin must be in [0, 1]")
	}
	return nil
}
