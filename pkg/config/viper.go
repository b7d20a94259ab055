package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/spoolhq/spool/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the SPOOL_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (SPOOL_BACKEND_MODE, SPOOL_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: SPOOL_BACKEND_MODE, SPOOL_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("SPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Backend selection
	v.SetDefault("backend.mode", d.Backend.Mode)
	v.SetDefault("backend.force", d.Backend.Force)
	v.SetDefault("backend.sync_timeout_seconds", d.Backend.SyncTimeoutSeconds)

	// Stream transport
	v.SetDefault("stream.url", d.Stream.URL)
	v.SetDefault("stream.token", d.Stream.Token)

	// External transport
	v.SetDefault("external.target", d.External.Target)
	v.SetDefault("external.token", d.External.Token)

	// Raw archive API
	v.SetDefault("intercom.base_url", d.Intercom.BaseURL)
	v.SetDefault("intercom.token", d.Intercom.Token)

	// Fetch engine
	v.SetDefault("fetch.max_total", d.Fetch.MaxTotal)
	v.SetDefault("fetch.page_size", d.Fetch.PageSize)
	v.SetDefault("fetch.page_delay_ms", d.Fetch.PageDelayMS)
	v.SetDefault("fetch.detail_workers", d.Fetch.DetailWorkers)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Events
	v.SetDefault("events.enabled", d.Events.Enabled)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
