// Package cmd provides the unitd CLI: a thin control surface over an
// in-process Engine, backed by the sqlite unit-definition repository.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/trly/unitd/internal/config"
	"github.com/trly/unitd/internal/engine"
	"github.com/trly/unitd/internal/engine/core"
	"github.com/trly/unitd/internal/store"
)

// App bundles the running Engine with the collaborators the CLI verbs
// need: the sqlite repository backing persisted unit definitions, and
// the logger the engine and loader both log through.
type App struct {
	Cfg     *config.Config
	Log     *slog.Logger
	Engine  *engine.Engine
	Repo    store.Repository
	Backend store.BackendFactory

	cancel context.CancelFunc
}

// NewApp connects the repository, runs migrations, boots the Engine, and
// syncs persisted unit definitions into it.
func NewApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	db, err := store.Connect(cfg.GetDBPath())
	if err != nil {
		return nil, fmt.Errorf("connect unit-definition store: %w", err)
	}
	if err := store.Migrate(cfg.GetDBPath(), log); err != nil {
		return nil, fmt.Errorf("migrate unit-definition store: %w", err)
	}

	eng := engine.New(engine.Config{
		QueueDepth:      cfg.GetQueueDepth(),
		GuardQueueDepth: cfg.GetGuardQueueDepth(),
	}, log)

	runCtx, cancel := context.WithCancel(ctx)
	go eng.Run(runCtx)

	repo := store.NewRepository(db)
	backend := newBackendFactory(cfg.IsUserMode(), log)
	loader := store.NewLoader(repo, backend)
	if err := loader.Sync(runCtx, eng); err != nil {
		cancel()
		return nil, fmt.Errorf("sync unit definitions: %w", err)
	}

	app := &App{Cfg: cfg, Log: log, Engine: eng, Repo: repo, Backend: backend, cancel: cancel}
	if err := app.syncUnitDefsDir(cfg.GetUnitDefsPath()); err != nil {
		cancel()
		return nil, fmt.Errorf("sync unit definitions directory: %w", err)
	}

	return app, nil
}

// syncUnitDefsDir loads every *.yaml/*.yml file under dir, using the
// filename stem as the unit ID, mirroring systemd's unit-directory
// convention. A missing directory is not an error: UnitDefsPath need not
// exist when every unit is managed through `unitd load` against sqlite
// directly.
func (a *App) syncUnitDefsDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		id := core.UnitID(strings.TrimSuffix(entry.Name(), ext))

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		if err := loadUnitDefInto(a, id, raw); err != nil {
			return err
		}
		a.Log.Debug("loaded unit definition from directory", "unit", id.String(), "file", entry.Name())
	}
	return nil
}

// Close stops the Engine's actor goroutines.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
}
