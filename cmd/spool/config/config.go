// Package configcmder provides the config command for managing persistent
// spool configuration stored in the .spool/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent spool configuration.

Configuration is stored as config.toml in the .spool/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  backend.mode, backend.force, backend.sync_timeout_seconds,
  stream.url, stream.token,
  external.target, external.token,
  intercom.base_url, intercom.token,
  fetch.max_total, fetch.page_size, fetch.page_delay_ms, fetch.detail_workers,
  api.listen,
  events.enabled, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  spool config set <key> <value>    Set a configuration value
  spool config get <key>            Get a configuration value
  spool config list                 List all configuration values
  spool config preset <name>        Reset config from a named preset

Examples:
  spool config set backend.mode stream
  spool config set stream.url http://localhost:8484/sse
  spool config get backend.mode
  spool config list`

const configShortDesc string = "Manage persistent spool configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newPresetCmd())

	return cmd
}
