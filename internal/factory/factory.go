// Package factory wires configuration, providers, readers, the data-source
// registry and run history into a ready-to-use Explorer.
package factory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/rferag/internal/archive"
	"github.com/ChamsBouzaiene/rferag/internal/config"
	"github.com/ChamsBouzaiene/rferag/internal/datasource"
	"github.com/ChamsBouzaiene/rferag/internal/engine"
	"github.com/ChamsBouzaiene/rferag/internal/prompts"
	"github.com/ChamsBouzaiene/rferag/internal/providers"
	"github.com/ChamsBouzaiene/rferag/internal/readers"
	"github.com/ChamsBouzaiene/rferag/internal/runstore"
)

// Options configures Build.
type Options struct {
	Config    *config.Config
	ConfigDir string // run history lives under it unless Config.DataDir is set
	Logger    *zap.Logger

	// LLM replaces the provider selected from the environment. Model must be
	// set with it unless Config.Model is.
	LLM   engine.LLMClient
	Model string

	Hooks []engine.Hook
}

// App is a built explorer together with the resources it owns.
type App struct {
	Explorer *engine.Explorer
	Registry *datasource.Registry
	Store    *runstore.Store     // nil with history disabled
	Archive  *archive.Index      // nil with history disabled
	Watcher  *datasource.Watcher // nil unless watching
	Model    string
	Logger   *zap.Logger
}

// Build creates an App from opts. The caller must Close it.
func Build(ctx context.Context, opts Options) (_ *App, err error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app := &App{Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	llm, model := opts.LLM, opts.Model
	if llm == nil {
		llm, model, err = providers.NewLLMClientFromEnv(ctx, cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	app.Model = model

	registry := prompts.DefaultRegistry()
	if cfg.PromptsDir != "" {
		registry = registry.Clone()
		loaded, err := prompts.LoadDir(registry, cfg.PromptsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompt overrides: %w", err)
		}
		logger.Debug("prompt overrides loaded", zap.Strings("ids", loaded))
	}

	app.Registry = datasource.NewRegistry(datasource.ListOptions{
		RespectGitignore: cfg.Datasources.RespectGitignore,
		Ignore:           cfg.Datasources.Ignore,
	}, logger)
	for _, p := range cfg.Datasources.Paths {
		if _, err := app.Registry.Add(p); err != nil {
			return nil, fmt.Errorf("failed to add datasource %s: %w", p, err)
		}
	}

	chatOpts := engine.ChatOptions{
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		RetryConfig:     &cfg.Retry,
	}
	table := readers.NewDefaultTable(
		readers.Agent{LLM: llm, Model: model, Registry: registry, Options: chatOpts},
		cfg.StructuredModel,
		cfg.MaxFileSize(),
		cfg.Readers.PreviewRows,
	)

	hooks := append([]engine.Hook(nil), opts.Hooks...)
	if cfg.History {
		rec, err := app.openHistory(ctx, cfg.ResolveDataDir(opts.ConfigDir))
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, rec)
	}

	app.Explorer, err = engine.NewExplorerBuilder().
		WithLLM(llm).
		WithModel(model).
		WithStructuredModel(cfg.StructuredModel).
		WithLimits(cfg.Limits).
		WithRetryConfig(cfg.Retry).
		WithTemperature(cfg.Temperature).
		WithMaxOutputTokens(cfg.MaxOutputTokens).
		WithDispatchConcurrency(cfg.DispatchConcurrency).
		WithReaders(table).
		WithCatalog(app.Registry).
		WithPromptRegistry(registry).
		WithLogger(logger).
		WithHooks(hooks...).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build explorer: %w", err)
	}

	if cfg.Datasources.Watch {
		if err := app.startWatcher(); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// OpenHistory opens the run store and archive under dataDir without building
// an explorer, for read-only history commands.
func OpenHistory(ctx context.Context, dataDir string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Logger: logger}
	if _, err := app.openHistory(ctx, dataDir); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) openHistory(ctx context.Context, dataDir string) (*runstore.Recorder, error) {
	store, err := runstore.Open(ctx, filepath.Join(dataDir, "runs.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	a.Store = store

	idx, err := archive.Open(filepath.Join(dataDir, "runs.bleve"), a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run archive: %w", err)
	}
	a.Archive = idx

	rec := runstore.NewRecorder(store, a.Logger)
	rec.OnFinished(idx.Record)
	return rec, nil
}

// AddDatasource registers dir and, when watching, starts watching it.
func (a *App) AddDatasource(dir string) (string, error) {
	root, err := a.Explorer.AddDatasource(dir)
	if err != nil {
		return "", err
	}
	if a.Watcher != nil {
		if err := a.Watcher.Watch(root); err != nil {
			a.Logger.Warn("datasource not watched", zap.String("root", root), zap.Error(err))
		}
	}
	return root, nil
}

func (a *App) startWatcher() error {
	w, err := datasource.NewWatcher(a.Registry, 0, a.Logger)
	if err != nil {
		return err
	}
	for _, root := range a.Registry.Roots() {
		if err := w.Watch(root); err != nil {
			w.Stop()
			return err
		}
	}
	w.Start()
	a.Watcher = w
	return nil
}

// Close releases the watcher, the archive and the run store.
func (a *App) Close() error {
	var errs []error
	if a.Watcher != nil {
		errs = append(errs, a.Watcher.Stop())
		a.Watcher = nil
	}
	if a.Archive != nil {
		errs = append(errs, a.Archive.Close())
		a.Archive = nil
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
		a.Store = nil
	}
	return errors.Join(errs...)
}
