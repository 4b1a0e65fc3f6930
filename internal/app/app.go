package app

import (
	"context"
	"errors"

	"github.com/spf13/afero"

	"github.com/bassista/docsweep/internal/config"
	"github.com/bassista/docsweep/internal/document"
	"github.com/bassista/docsweep/internal/repository"
	"github.com/bassista/docsweep/internal/save"
	"github.com/bassista/docsweep/internal/sweeper"
)

// App is the application container (immutable dependencies + lifecycle
// context). It is not a request context; handlers use gin's request context.
type App struct {
	Config   *config.Config
	Registry *document.Registry
	Repo     repository.Repository
	Sweeper  *sweeper.Sweeper
	Executor *save.Executor
	Warnings *save.Toggles
	Fs       afero.Fs

	BaseCtx context.Context
	Cancel  context.CancelFunc
}

// New wires the application container, rejecting missing dependencies.
func New(cfg *config.Config, registry *document.Registry, repo repository.Repository, sw *sweeper.Sweeper, exec *save.Executor, warnings *save.Toggles, fs afero.Fs) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	if repo == nil {
		return nil, errors.New("repository is nil")
	}
	if sw == nil {
		return nil, errors.New("sweeper is nil")
	}
	if exec == nil {
		return nil, errors.New("executor is nil")
	}
	if warnings == nil {
		return nil, errors.New("warning toggles are nil")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:   cfg,
		Registry: registry,
		Repo:     repo,
		Sweeper:  sw,
		Executor: exec,
		Warnings: warnings,
		Fs:       fs,
		BaseCtx:  ctx,
		Cancel:   cancel,
	}, nil
}

// Shutdown cancels background work and runs one final sweep so nothing dirty
// is left behind.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
	if a.Sweeper != nil {
		a.Sweeper.Close()
	}
}

// StartWatchers launches the roster watcher, the roster persistence loop and
// the sweeper itself.
func (a *App) StartWatchers() error {
	if err := a.Repo.StartWatcher(a.BaseCtx, a.Registry); err != nil {
		return err
	}

	repository.StartPersistence(a.BaseCtx, a.Registry, a.Repo, a.Config.Sweep.RosterPersistInterval)

	a.Sweeper.Start(a.BaseCtx, a.Config.Sweep.IdleInterval)
	return nil
}
