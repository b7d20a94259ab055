package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent spool configuration stored as config.toml
// in the .spool/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Storage  StorageConfig  `toml:"storage"`
	Backend  BackendConfig  `toml:"backend"`
	Stream   StreamConfig   `toml:"stream"`
	External ExternalConfig `toml:"external"`
	Intercom IntercomConfig `toml:"intercom"`
	Fetch    FetchConfig    `toml:"fetch"`
	API      APIConfig      `toml:"api"`
	Events   EventsConfig   `toml:"events"`
}

// StorageConfig holds the local archive store settings.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// BackendConfig selects how conversations are retrieved.
type BackendConfig struct {
	// Mode is the transport mode: "direct", "stream", or "external".
	Mode string `toml:"mode,omitempty"`

	// Force pins a single backend kind, bypassing the fallback order.
	Force string `toml:"force,omitempty"`

	// SyncCommand is the out-of-band synchronization command the caching
	// backend shells out to, as an argv list.
	SyncCommand []string `toml:"sync_command,omitempty"`

	// SyncTimeoutSeconds bounds a triggered sync run.
	SyncTimeoutSeconds uint `toml:"sync_timeout_seconds,omitempty"`
}

// StreamConfig holds persistent-stream backend settings.
type StreamConfig struct {
	URL   string `toml:"url,omitempty"`
	Token string `toml:"token,omitempty"`
}

// ExternalConfig holds the simple request/response backend settings.
type ExternalConfig struct {
	Target string `toml:"target,omitempty"`
	Token  string `toml:"token,omitempty"`
}

// IntercomConfig holds raw archive API credentials for the in-process
// backend.
type IntercomConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
	Token   string `toml:"token,omitempty"`
}

// FetchConfig tunes the paginated-fetch engine.
type FetchConfig struct {
	MaxTotal      uint `toml:"max_total,omitempty"`
	PageSize      uint `toml:"page_size,omitempty"`
	PageDelayMS   uint `toml:"page_delay_ms,omitempty"`
	DetailWorkers uint `toml:"detail_workers,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig holds the Kafka event publishing settings. Disabled by
// default; sync and fetch lifecycle events go to the nop publisher.
type EventsConfig struct {
	Enabled bool   `toml:"enabled,omitempty"`
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"backend.mode": {
		get: func(c *Config) string { return c.Backend.Mode },
		set: func(c *Config, v string) error { c.Backend.Mode = v; return nil },
	},
	"backend.force": {
		get: func(c *Config) string { return c.Backend.Force },
		set: func(c *Config, v string) error { c.Backend.Force = v; return nil },
	},
	"backend.sync_timeout_seconds": {
		get: func(c *Config) string { return uintString(c.Backend.SyncTimeoutSeconds) },
		set: func(c *Config, v string) error {
			return setUint(&c.Backend.SyncTimeoutSeconds, "backend.sync_timeout_seconds", v)
		},
	},
	"stream.url": {
		get: func(c *Config) string { return c.Stream.URL },
		set: func(c *Config, v string) error { c.Stream.URL = v; return nil },
	},
	"stream.token": {
		get: func(c *Config) string { return c.Stream.Token },
		set: func(c *Config, v string) error { c.Stream.Token = v; return nil },
	},
	"external.target": {
		get: func(c *Config) string { return c.External.Target },
		set: func(c *Config, v string) error { c.External.Target = v; return nil },
	},
	"external.token": {
		get: func(c *Config) string { return c.External.Token },
		set: func(c *Config, v string) error { c.External.Token = v; return nil },
	},
	"intercom.base_url": {
		get: func(c *Config) string { return c.Intercom.BaseURL },
		set: func(c *Config, v string) error { c.Intercom.BaseURL = v; return nil },
	},
	"intercom.token": {
		get: func(c *Config) string { return c.Intercom.Token },
		set: func(c *Config, v string) error { c.Intercom.Token = v; return nil },
	},
	"fetch.max_total": {
		get: func(c *Config) string { return uintString(c.Fetch.MaxTotal) },
		set: func(c *Config, v string) error { return setUint(&c.Fetch.MaxTotal, "fetch.max_total", v) },
	},
	"fetch.page_size": {
		get: func(c *Config) string { return uintString(c.Fetch.PageSize) },
		set: func(c *Config, v string) error { return setUint(&c.Fetch.PageSize, "fetch.page_size", v) },
	},
	"fetch.page_delay_ms": {
		get: func(c *Config) string { return uintString(c.Fetch.PageDelayMS) },
		set: func(c *Config, v string) error { return setUint(&c.Fetch.PageDelayMS, "fetch.page_delay_ms", v) },
	},
	"fetch.detail_workers": {
		get: func(c *Config) string { return uintString(c.Fetch.DetailWorkers) },
		set: func(c *Config, v string) error { return setUint(&c.Fetch.DetailWorkers, "fetch.detail_workers", v) },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"events.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Events.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for events.enabled: %w", err)
			}
			c.Events.Enabled = b
			return nil
		},
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}

func uintString(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func setUint(target *uint, key, v string) error {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*target = uint(n)
	return nil
}
