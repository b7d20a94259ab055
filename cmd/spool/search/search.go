// Package searchcmder provides the `spool search` CLI command.
package searchcmder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spoolhq/spool/cmd/spool/wiring"
	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/cliui"
	"github.com/spoolhq/spool/pkg/logger"
	"github.com/spoolhq/spool/pkg/utils"
)

type searchCommander struct {
	start         string
	end           string
	days          uint
	tags          []string
	customerEmail string
	limit         int
	mode          string
	forceBackend  string
	debug         bool
	configDir     string
}

const searchLongDesc string = `Search archived conversations.

Queries the archive through the active backend. The time window can be
given as RFC 3339 bounds or as a trailing number of days. When results
come from the local cache, a freshness warning is shown if the cache
may be missing recent conversations.

Examples:
  spool search --days 7
  spool search --start 2026-08-01T00:00:00Z --end 2026-08-08T00:00:00Z
  spool search --days 30 --tags billing,refund --limit 20`

const searchShortDesc string = "Search archived conversations"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: searchShortDesc,
		Long:  searchLongDesc,
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

	cmd.Flags().StringVar(&cmder.start, "start", "", "Window start (RFC 3339)")
	cmd.Flags().StringVar(&cmder.end, "end", "", "Window end (RFC 3339)")
	cmd.Flags().UintVar(&cmder.days, "days", 0, "Search the last N days")
	cmd.Flags().StringSliceVar(&cmder.tags, "tags", nil, "Only conversations carrying these tags")
	cmd.Flags().StringVar(&cmder.customerEmail, "email", "", "Only conversations with this customer")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 0, "Maximum conversations to return")
	cmd.Flags().StringVarP(&cmder.mode, "mode", "m", "", "Transport mode (direct, stream, external)")
	cmd.Flags().StringVar(&cmder.forceBackend, "force-backend", "", "Probe only this backend kind")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	log := logger.NewLogger(c.debug)
	defer log.Sync()

	filters, err := c.filters()
	if err != nil {
		return err
	}

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

	result, err := a.SearchConversations(ctx, filters)
	finishProgress()
	if err != nil {
		return err
	}

	printResult(result, string(a.Current()))
	return nil
}

func (c *searchCommander) filters() (archive.Filters, error) {
	var filters archive.Filters

	if c.start != "" {
		t, err := time.Parse(time.RFC3339, c.start)
		if err != nil {
			return filters, fmt.Errorf("--start must be RFC 3339: %v", err)
		}
		filters.StartTime = &t
	}
	if c.end != "" {
		t, err := time.Parse(time.RFC3339, c.end)
		if err != nil {
			return filters, fmt.Errorf("--end must be RFC 3339: %v", err)
		}
		filters.EndTime = &t
	}
	if c.days > 0 {
		if filters.StartTime != nil {
			return filters, fmt.Errorf("--days and --start are mutually exclusive")
		}
		t := time.Now().AddDate(0, 0, -int(c.days))
		filters.StartTime = &t
	}

	filters.Tags = c.tags
	filters.CustomerEmail = c.customerEmail
	filters.Limit = c.limit

	return filters, nil
}

func printResult(result archive.SearchResult, transport string) {
	fmt.Printf("\n  %s %s %s\n\n",
		cliui.KeyStyle.Render("Conversations:"),
		cliui.ValueStyle.Render(fmt.Sprintf("%d", result.Total)),
		cliui.DimStyle.Render("via "+transport),
	)

	if result.Sync != nil && result.Sync.State != archive.SyncFresh {
		msg := result.Sync.Message
		if msg == "" {
			msg = "results may be missing recent conversations"
		}
		fmt.Printf("  %s %s\n\n",
			cliui.WarnStyle.Render("!"),
			cliui.WarnStyle.Render(fmt.Sprintf("%s data: %s", result.Sync.State, msg)),
		)
	}

	for _, conv := range result.Conversations {
		preview := ""
		if len(conv.Messages) > 0 {
			preview = utils.Truncate(strings.ReplaceAll(conv.Messages[0].Body, "\n", " "), 72)
		}

		line := conv.CreatedAt.Format("2006-01-02 15:04")
		if conv.CustomerEmail != "" {
			line += "  " + conv.CustomerEmail
		}

		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render(conv.ID), cliui.DimStyle.Render(line))
		if preview != "" {
			fmt.Printf("      %s\n", cliui.ValueStyle.Render(preview))
		}
		if len(conv.Tags) > 0 {
			fmt.Printf("      %s\n", cliui.DimStyle.Render("["+strings.Join(conv.Tags, ", ")+"]"))
		}
	}

	if len(result.Conversations) > 0 {
		fmt.Println()
	}
}
