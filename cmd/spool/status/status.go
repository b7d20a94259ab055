// Package statuscmder provides the `spool status` CLI command.
package statuscmder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spoolhq/spool/cmd/spool/wiring"
	"github.com/spoolhq/spool/pkg/cliui"
	"github.com/spoolhq/spool/pkg/dotdir"
	"github.com/spoolhq/spool/pkg/logger"
)

type statusCommander struct {
	mode         string
	forceBackend string
	debug        bool
	configDir    string
}

const statusLongDesc string = `Show archive and backend status.

Reports which backend the adapter selected, which backends are
available, the archive's sync state, and any persisted backend
preference from 'spool backend use'.

Examples:
  spool status
  spool status --mode stream`

const statusShortDesc string = "Show archive and backend status"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.mode, "mode", "m", "", "Transport mode (direct, stream, external)")
	cmd.Flags().StringVar(&cmder.forceBackend, "force-backend", "", "Probe only this backend kind")

	return cmd
}

func (c *statusCommander) run(ctx context.Context) error {
	log := logger.NewLogger(c.debug)
	defer log.Sync()

	cfg, err := wiring.LoadConfig(c.configDir)
	if err != nil {
		return err
	}

	a, shutdown, err := wiring.NewAdapter(ctx, cfg, wiring.Options{
		ConfigDir: c.configDir,
		Mode:      c.mode,
		Force:     c.forceBackend,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("initializing backend adapter: %w", err)
	}
	defer shutdown()

	status, err := a.ServerStatus(ctx)
	if err != nil {
		return err
	}

	available := make([]string, 0, len(a.Available()))
	for _, kind := range a.Available() {
		available = append(available, string(kind))
	}

	fmt.Printf("\n  %s %s\n", cliui.KeyStyle.Render("Backend:"), cliui.ValueStyle.Render(string(a.Current())))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Available:"), cliui.DimStyle.Render(strings.Join(available, ", ")))

	prefs, err := dotdir.NewManager().LoadPreferences(c.configDir)
	if err == nil && prefs != nil {
		pinned := prefs.Mode
		if prefs.Backend != "" {
			pinned = "backend " + prefs.Backend
		}
		if pinned != "" {
			fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Pinned:"), cliui.ValueStyle.Render(pinned))
		}
	}

	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println()
	for _, k := range keys {
		fmt.Printf("  %s %s\n",
			cliui.KeyStyle.Render(k+":"),
			cliui.ValueStyle.Render(fmt.Sprintf("%v", status[k])),
		)
	}
	fmt.Println()

	return nil
}
