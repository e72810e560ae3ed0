// Package app wires configuration into the running components shared by
// the HTTP server and the command-line runner.
package app

import (
	"fmt"

	"github.com/JustJay7/uyap-extractor/internal/api"
	"github.com/JustJay7/uyap-extractor/internal/browser"
	"github.com/JustJay7/uyap-extractor/internal/cache"
	"github.com/JustJay7/uyap-extractor/internal/config"
	"github.com/JustJay7/uyap-extractor/internal/database"
	"github.com/JustJay7/uyap-extractor/internal/extractor"
	"github.com/JustJay7/uyap-extractor/internal/interaction"
	"github.com/JustJay7/uyap-extractor/internal/persistence"
	"github.com/JustJay7/uyap-extractor/internal/session"
	"github.com/JustJay7/uyap-extractor/internal/sorgu"
	"github.com/JustJay7/uyap-extractor/pkg/logger"
)

// App owns the database handle and the browser sessions.
type App struct {
	api.Deps
}

// InteractionOptions maps the interaction settings onto the controller's
// defaults.
func InteractionOptions(cfg *config.Config) interaction.Options {
	opts := interaction.DefaultOptions()
	if cfg.ElementTimeout > 0 {
		opts.ElementTimeout = cfg.ElementTimeout
	}
	if cfg.ShortTimeout > 0 {
		opts.ShortTimeout = cfg.ShortTimeout
	}
	if cfg.PollInterval > 0 {
		opts.PollInterval = cfg.PollInterval
	}
	if cfg.ClickAttempts > 0 {
		opts.ClickAttempts = cfg.ClickAttempts
	}
	if cfg.ClickBackoff > 0 {
		opts.ClickBackoff = cfg.ClickBackoff
	}
	return opts
}

// LaunchConfig maps the browser settings.
func LaunchConfig(cfg *config.Config) browser.LaunchConfig {
	return browser.LaunchConfig{
		Headless:    cfg.HeadlessMode,
		UserAgent:   cfg.UserAgent,
		BrowserPath: cfg.BrowserPath,
		Devtools:    cfg.LogLevel == "debug",
	}
}

// New opens the database and builds every component. Browsers are only
// started when a session is acquired, through launcher.
func New(cfg *config.Config, log *logger.Logger, launcher session.Launcher) (*App, error) {
	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if launcher == nil {
		launcher = session.RodLauncher{Config: LaunchConfig(cfg)}
	}

	store := persistence.NewStore(db, persistence.NewBackup(cfg.BackupPath), log.With("component", "persistence"))
	registry := sorgu.DefaultRegistry(log.With("component", "sorgu"))
	sessions := session.NewManager(launcher, InteractionOptions(cfg), log.With("component", "session"))
	dispatcher := session.NewDispatcher(registry, store, session.DispatcherOptions{
		PartyInterval: cfg.PartyInterval,
	}, log.With("component", "dispatcher"))

	return &App{Deps: api.Deps{
		DB:         db,
		Store:      store,
		Cache:      cache.NewCache(cfg.CacheSize, cfg.CacheTTL),
		Sessions:   sessions,
		Dispatcher: dispatcher,
		Extractor:  extractor.New(store, extractor.Locators{}, log.With("component", "extractor")),
		Registry:   registry,
		Logger:     log,
		Config:     cfg,
	}}, nil
}

// Close ends every browser session and closes the database.
func (a *App) Close() error {
	a.Sessions.Close()
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
