// Package spoolcmder
package spoolcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/spoolhq/spool/cmd/spool/ask"
	backendcmder "github.com/spoolhq/spool/cmd/spool/backend"
	configcmder "github.com/spoolhq/spool/cmd/spool/config"
	getcmder "github.com/spoolhq/spool/cmd/spool/get"
	searchcmder "github.com/spoolhq/spool/cmd/spool/search"
	servecmder "github.com/spoolhq/spool/cmd/spool/serve"
	statuscmder "github.com/spoolhq/spool/cmd/spool/status"
	synccmder "github.com/spoolhq/spool/cmd/spool/sync"
	versioncmder "github.com/spoolhq/spool/cmd/version"
)

const spoolLongDesc string = `Spool archives support conversations and answers questions about them.

Query the archive:
  spool search         Search archived conversations
  spool get <id>       Show a single conversation
  spool ask            Answer a question about the archive
  spool status         Show the active backend and archive state

Keep the local archive current:
  spool sync           Fetch recent conversations into the local store

Run the archive as a service:
  spool serve          Run the archive API and MCP server`

const spoolShortDesc string = "Spool - conversation archive analytics"

func NewSpoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spool",
		Short: spoolShortDesc,
		Long:  spoolLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .spool config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(getcmder.NewGetCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(synccmder.NewSyncCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(backendcmder.NewBackendCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
