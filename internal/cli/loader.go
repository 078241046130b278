package cli

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/halcyonfs/obdsl/internal/ast"
	"github.com/halcyonfs/obdsl/internal/binder"
	"github.com/halcyonfs/obdsl/internal/config"
	"github.com/halcyonfs/obdsl/internal/dict"
	"github.com/halcyonfs/obdsl/internal/engine"
	"github.com/halcyonfs/obdsl/internal/search"
	"github.com/halcyonfs/obdsl/internal/store"
	"github.com/halcyonfs/obdsl/internal/vocab"
)

// App is the wired platform: everything a command needs, built once per
// invocation from the config file.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    *store.Store
	Registry *vocab.Registry
	Dict     *dict.Dictionary
	Binder   *binder.Binder
	Engine   *engine.Engine
	Searcher *search.Searcher
}

// LoadSchema loads just the verb registry and attribute dictionary. Commands
// that never touch the store (parse, compile) use this lighter path.
func LoadSchema(opts *RootOptions) (*vocab.Registry, *dict.Dictionary, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load config", err)
	}
	reg, err := vocab.LoadDir(cfg.Vocab.Dir)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load verb schemas", err)
	}
	d, err := dict.Load(cfg.Vocab.DictPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "load attribute dictionary", err)
	}
	return reg, d, nil
}

// LoadApp wires the full platform. userInput carries per-session operator
// values for the binder, keyed by attribute semantic path.
func LoadApp(opts *RootOptions, userInput map[string]string) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	logger, err := newLogger(cfg.Log.Level, opts.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "init logger", err)
	}

	reg, err := vocab.LoadDir(cfg.Vocab.Dir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load verb schemas", err)
	}
	d, err := dict.Load(cfg.Vocab.DictPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load attribute dictionary", err)
	}

	st, err := store.Open(cfg.Store.Path, store.WithEmbeddingDim(cfg.Store.EmbeddingDim))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}

	b, err := buildBinder(logger, st, d, userInput)
	if err != nil {
		st.Close()
		return nil, err
	}

	eng := engine.New(st, reg, logger,
		engine.WithMode(engine.Mode(cfg.Engine.Mode)),
		engine.WithMaxSteps(cfg.Engine.MaxSteps),
		engine.WithBinder(b))

	srch := search.New(reg, st, search.NewHashEmbedder(cfg.Store.EmbeddingDim), logger,
		search.WithThresholds(search.Thresholds{
			Accept:       cfg.Search.Accept,
			Margin:       cfg.Search.Margin,
			SuggestFloor: cfg.Search.SuggestFloor,
		}),
		search.WithTopK(cfg.Search.TopK))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Registry: reg,
		Dict:     d,
		Binder:   b,
		Engine:   eng,
		Searcher: srch,
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// buildBinder assembles the value source chain: document extraction, then
// operator input, then dictionary defaults.
func buildBinder(logger *zap.Logger, st *store.Store, d *dict.Dictionary, userInput map[string]string) (*binder.Binder, error) {
	sources := []binder.ValueSource{
		&binder.DocumentSource{Reader: st},
		&binder.DefaultSource{Dict: d},
	}
	if len(userInput) > 0 {
		values, err := resolveUserInput(d, userInput)
		if err != nil {
			return nil, err
		}
		sources = append(sources, &binder.UserInputSource{Values: values})
	}
	return binder.New(logger, sources...), nil
}

func resolveUserInput(d *dict.Dictionary, userInput map[string]string) (map[uuid.UUID]ast.Value, error) {
	values := make(map[uuid.UUID]ast.Value, len(userInput))
	for path, raw := range userInput {
		id, err := d.SemanticToUUID(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("input attribute %q", path), err)
		}
		values[id] = ast.String(raw)
	}
	return values, nil
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	if verbose && lvl > zapcore.DebugLevel {
		lvl = zapcore.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	// CLI output owns stdout; logs go to stderr.
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
