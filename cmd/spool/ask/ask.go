// Package askcmder provides the `spool ask` CLI command.
package askcmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spoolhq/spool/cmd/spool/wiring"
	"github.com/spoolhq/spool/pkg/analytics"
	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/cliui"
	"github.com/spoolhq/spool/pkg/logger"
)

type askCommander struct {
	query        string
	limit        int
	mode         string
	forceBackend string
	debug        bool
	configDir    string
}

const askLongDesc string = `Ask a question about the archived conversations.

Resolves the question's timeframe ("yesterday", "last week", "last 30
days"), retrieves the matching conversations through the active
backend, and answers with aggregate statistics. When the answer comes
from a cache that may be missing recent conversations, a freshness
warning is shown.

Examples:
  spool ask "how many tickets came in yesterday?"
  spool ask "what were the top tags last week?"
  spool ask "how busy were we over the last 30 days?"`

const askShortDesc string = "Ask a question about the archive"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.query = strings.Join(args, " ")

			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 0, "Cap on conversations analyzed (0 = archive default)")
	cmd.Flags().StringVarP(&cmder.mode, "mode", "m", "", "Transport mode (direct, stream, external)")
	cmd.Flags().StringVar(&cmder.forceBackend, "force-backend", "", "Probe only this backend kind")

	return cmd
}

func (c *askCommander) run(ctx context.Context) error {
	log := logger.NewLogger(c.debug)
	defer log.Sync()

	cfg, err := wiring.LoadConfig(c.configDir)
	if err != nil {
		return err
	}

	onProgress, finishProgress := cliui.ProgressPrinter(os.Stdout, "fetching")

	a, shutdown, err := wiring.NewAdapter(ctx, cfg, wiring.Options{
		ConfigDir:  c.configDir,
		Mode:       c.mode,
		Force:      c.forceBackend,
		OnProgress: onProgress,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("initializing backend adapter: %w", err)
	}
	defer shutdown()

	analyzer, err := analytics.New(analytics.Config{
		Interpreter: &analytics.TimeframeInterpreter{},
		Summarizer:  &analytics.StatsSummarizer{},
		Searcher:    a,
		Limit:       c.limit,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	result, err := analyzer.Ask(ctx, c.query)
	finishProgress()
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s %s\n",
		cliui.KeyStyle.Render("Window:"),
		cliui.DimStyle.Render(fmt.Sprintf("%s to %s",
			result.Window.Start.Format("2006-01-02 15:04"),
			result.Window.End.Format("2006-01-02 15:04"))),
	)
	fmt.Printf("  %s %s\n\n", cliui.KeyStyle.Render("Analyzed:"), cliui.ValueStyle.Render(fmt.Sprintf("%d conversations", result.Analyzed)))

	if result.Sync != nil && result.Sync.State != archive.SyncFresh {
		fmt.Printf("  %s %s\n\n",
			cliui.WarnStyle.Render("!"),
			cliui.WarnStyle.Render(fmt.Sprintf("%s data: the answer may be missing recent conversations", result.Sync.State)),
		)
	}

	fmt.Printf("  %s\n\n", cliui.ValueStyle.Render(result.Answer))
	return nil
}
