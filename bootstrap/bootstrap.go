// Package bootstrap wires configuration, storage, the engine, plugins,
// webhooks, and the HTTP server into a runnable application.
package bootstrap

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/quillcms/quill/adapters/idgen"
	"github.com/quillcms/quill/adapters/metrics"
	"github.com/quillcms/quill/app"
	"github.com/quillcms/quill/config"
	"github.com/quillcms/quill/core/engine"
	"github.com/quillcms/quill/core/plugin"
	"github.com/quillcms/quill/core/schema"
	"github.com/quillcms/quill/core/storage"
	"github.com/quillcms/quill/domain/webhook"
	"github.com/quillcms/quill/ports"
	"github.com/quillcms/quill/web"
)

// App is the assembled application.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    *storage.SQLiteStore
	Registry *schema.Registry
	Engine   *engine.Engine
	Plugins  *plugin.Registry
	Fanout   *app.FanoutService
	Server   *web.Server
	Metrics  *metrics.Collector
}

// Option customizes the assembled application.
type Option func(*options)

type options struct {
	sessions ports.SessionResolver
}

// WithSessionResolver plugs in the external auth subsystem's session
// extraction.
func WithSessionResolver(r ports.SessionResolver) Option {
	return func(o *options) { o.sessions = r }
}

// New assembles the application from configuration. Hooks and plugins are
// registered on the returned App before Run.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store, err := storage.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	cols, err := schema.ParseDir(cfg.Collections.Dir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load collections: %w", err)
	}

	registry, err := schema.NewRegistry(cols)
	if err != nil {
		store.Close()
		return nil, err
	}

	ctx := context.Background()
	for _, col := range registry.All() {
		var gen ports.IDGenerator
		switch col.IDStrategyOrDefault() {
		case schema.IDUUID:
			gen = idgen.UUID{}
		case schema.IDCUID:
			gen = idgen.NewCUID()
		}
		if err := store.CreateTable(ctx, col, gen); err != nil {
			store.Close()
			return nil, err
		}
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	plugins := plugin.NewRegistry(logger)

	eng := engine.New(engine.Config{
		Store:       store,
		Registry:    registry,
		Plugins:     plugins,
		Logger:      logger,
		HookTimeout: cfg.Hooks.Timeout,
	})

	fanout := app.NewFanoutService(logger, collector)

	global := make([]webhook.Webhook, 0, len(cfg.Webhooks))
	for _, wh := range cfg.Webhooks {
		global = append(global, webhook.Webhook{
			Name:        wh.Name,
			URL:         wh.URL,
			OnOperation: wh.OnOperation,
			Headers:     wh.Headers,
			Secret:      wh.Secret,
			TimeoutMS:   wh.TimeoutMS,
		})
	}

	server := web.New(web.Options{
		Engine:         eng,
		Store:          store,
		Fanout:         fanout,
		Sessions:       o.sessions,
		Logger:         logger,
		Metrics:        collector,
		GlobalWebhooks: global,
		Addr:           cfg.Addr(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	})

	logger.Info().
		Int("collections", registry.Len()).
		Str("addr", cfg.Addr()).
		Msg("application assembled")

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Registry: registry,
		Engine:   eng,
		Plugins:  plugins,
		Fanout:   fanout,
		Server:   server,
		Metrics:  collector,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Server.Start()
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		a.Fanout.Shutdown()
		if err := a.Server.Stop(shutdownCtx); err != nil {
			return err
		}
		return a.Store.Close()
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}
