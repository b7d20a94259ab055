// Package wiring builds the runtime object graph shared by the spool
// CLI commands: configuration, the local store, backend transports, and
// the adapter in front of them.
package wiring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/adapter"
	"github.com/spoolhq/spool/pkg/backend"
	"github.com/spoolhq/spool/pkg/backend/cache"
	"github.com/spoolhq/spool/pkg/backend/httpcall"
	"github.com/spoolhq/spool/pkg/backend/inprocess"
	"github.com/spoolhq/spool/pkg/backend/stream"
	"github.com/spoolhq/spool/pkg/config"
	"github.com/spoolhq/spool/pkg/dotdir"
	"github.com/spoolhq/spool/pkg/eventstream"
	"github.com/spoolhq/spool/pkg/eventstream/kafka"
	"github.com/spoolhq/spool/pkg/eventstream/nop"
	"github.com/spoolhq/spool/pkg/fetch"
	"github.com/spoolhq/spool/pkg/intercom"
	"github.com/spoolhq/spool/pkg/store"
	"github.com/spoolhq/spool/pkg/store/inmemory"
	"github.com/spoolhq/spool/pkg/store/postgres"
	"github.com/spoolhq/spool/pkg/store/sqlite"
)

// archiveDBName is the sqlite file placed in the .spool directory when
// no explicit path is configured.
const archiveDBName = "archive.db"

// Options tune adapter construction per command invocation.
type Options struct {
	// ConfigDir overrides .spool directory discovery.
	ConfigDir string

	// Mode overrides the configured transport mode when set.
	Mode string

	// Force restricts the adapter to a single backend kind when set.
	Force string

	// OnProgress receives fetch progress updates from the in-process
	// backend. Typically wired to a CLI progress line.
	OnProgress fetch.ProgressFunc

	// Logger is the configured zap logger. Required.
	Logger *zap.Logger
}

// LoadConfig loads the persistent configuration from the .spool
// directory, falling back to defaults when no file exists.
func LoadConfig(configDir string) (*config.Config, error) {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config directory: %w", err)
	}
	return cfger.LoadConfig()
}

// EffectiveSelection resolves the transport mode and forced backend,
// applying saved CLI preferences over the config file and explicit
// flags over both.
func EffectiveSelection(cfg *config.Config, opts Options) (adapter.TransportMode, backend.Kind) {
	mode := cfg.Backend.Mode
	force := cfg.Backend.Force

	// Preferences persist `spool backend use` across invocations.
	if prefs, err := dotdir.NewManager().LoadPreferences(opts.ConfigDir); err == nil && prefs != nil {
		if prefs.Mode != "" {
			mode = prefs.Mode
		}
		if prefs.Backend != "" {
			force = prefs.Backend
		}
	}

	if opts.Mode != "" {
		mode = opts.Mode
	}
	if opts.Force != "" {
		force = opts.Force
	}

	return adapter.TransportMode(mode), backend.Kind(force)
}

// NewStore opens the local archive store selected by the configuration.
func NewStore(ctx context.Context, cfg *config.Config, configDir string) (store.Driver, error) {
	switch cfg.Storage.Driver {
	case "sqlite", "":
		path := cfg.Storage.SQLitePath
		if path == "" {
			dir, err := dotdir.NewManager().Target(configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving archive directory: %w", err)
			}
			path = dir + "/" + archiveDBName
		}
		return sqlite.NewDriver(ctx, path)

	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
		return postgres.NewDriver(ctx, cfg.Storage.PostgresDSN)

	case "memory":
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewIntercomClient builds the raw archive API client from config.
func NewIntercomClient(cfg *config.Config, logger *zap.Logger) (*intercom.Client, error) {
	return intercom.NewClient(intercom.Config{
		BaseURL: cfg.Intercom.BaseURL,
		Token:   cfg.Intercom.Token,
		Logger:  logger,
	})
}

// NewAdapter constructs the backends for the effective transport mode,
// wraps them in an initialized adapter, and returns a cleanup function
// that releases everything the adapter owns.
func NewAdapter(ctx context.Context, cfg *config.Config, opts Options) (*adapter.Adapter, func(), error) {
	logger := opts.Logger
	mode, force := EffectiveSelection(cfg, opts)

	backends := make(map[backend.Kind]backend.Backend)
	var closers []func() error

	cleanup := func() {
		for _, close := range closers {
			_ = close()
		}
	}

	build := func(kind backend.Kind) (backend.Backend, error) {
		switch kind {
		case backend.KindCache:
			st, err := NewStore(ctx, cfg, opts.ConfigDir)
			if err != nil {
				return nil, fmt.Errorf("opening archive store: %w", err)
			}
			closers = append(closers, st.Close)

			return cache.New(cache.Config{
				Store:       st,
				SyncCommand: cfg.Backend.SyncCommand,
				SyncTimeout: time.Duration(cfg.Backend.SyncTimeoutSeconds) * time.Second,
				Logger:      logger,
			})

		case backend.KindInProcess:
			return newInProcess(cfg, opts)

		case backend.KindStream:
			return stream.New(stream.Config{
				URL:    cfg.Stream.URL,
				Token:  cfg.Stream.Token,
				Logger: logger,
			})

		case backend.KindHTTP:
			return httpcall.New(httpcall.Config{
				BaseURL: cfg.External.Target,
				Token:   cfg.External.Token,
				Logger:  logger,
			})

		default:
			return nil, fmt.Errorf("unknown backend kind %q", kind)
		}
	}

	var kinds []backend.Kind
	switch mode {
	case adapter.ModeDirect:
		kinds = []backend.Kind{backend.KindCache, backend.KindInProcess}
	case adapter.ModeStream:
		kinds = []backend.Kind{backend.KindStream, backend.KindInProcess}
	case adapter.ModeExternal:
		kinds = []backend.Kind{backend.KindHTTP}
	default:
		return nil, nil, fmt.Errorf("unknown transport mode %q", mode)
	}

	// A pinned kind has no fallback, so only it is built, even when it
	// sits outside the mode's candidate set.
	if force != "" {
		kinds = []backend.Kind{force}
	}

	for _, kind := range kinds {
		b, err := build(kind)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		backends[kind] = b
	}

	a, err := adapter.New(adapter.Config{
		Mode:     mode,
		Force:    force,
		Backends: backends,
		Logger:   logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if err := a.Initialize(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	// Adapter.Close shuts down the backends; the store closes after.
	shutdown := func() {
		a.Close()
		cleanup()
	}

	return a, shutdown, nil
}

func newInProcess(cfg *config.Config, opts Options) (*inprocess.Backend, error) {
	client, err := NewIntercomClient(cfg, opts.Logger)
	if err != nil {
		return nil, err
	}

	return inprocess.New(inprocess.Config{
		Client: client,
		Fetch: fetch.Config{
			MaxTotal:      int(cfg.Fetch.MaxTotal),
			PageSize:      int(cfg.Fetch.PageSize),
			PageDelay:     time.Duration(cfg.Fetch.PageDelayMS) * time.Millisecond,
			DetailWorkers: int(cfg.Fetch.DetailWorkers),
		},
		OnProgress: opts.OnProgress,
		Logger:     opts.Logger,
	})
}

// NewPublisher builds the sync event publisher: Kafka when event
// publishing is enabled, a no-op otherwise.
func NewPublisher(cfg *config.Config, logger *zap.Logger) (eventstream.Publisher, error) {
	if !cfg.Events.Enabled {
		return nop.NewPublisher(), nil
	}

	return kafka.NewPublisher(kafka.Config{
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
		Logger:  logger,
	})
}
