// Package synccmder provides the `spool sync` CLI command.
package synccmder

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spoolhq/spool/cmd/spool/wiring"
	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/cliui"
	"github.com/spoolhq/spool/pkg/fetch"
	"github.com/spoolhq/spool/pkg/logger"
)

type syncCommander struct {
	days      uint
	maxTotal  uint
	debug     bool
	configDir string
}

const syncLongDesc string = `Sync conversations from the archive API into the local store.

Fetches recent conversations page by page, upserts them into the
configured store, and advances the last-sync watermark. This is the
out-of-band sync process the caching backend relies on; point
backend.sync_command at 'spool sync' to let stale caches refresh
themselves.

Examples:
  spool sync
  spool sync --days 30
  spool sync --days 90 --max 2000`

const syncShortDesc string = "Sync conversations into the local store"

func NewSyncCmd() *cobra.Command {
	cmder := &syncCommander{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: syncShortDesc,
		Long:  syncLongDesc,
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

	cmd.Flags().UintVar(&cmder.days, "days", 7, "Sync conversations from the last N days")
	cmd.Flags().UintVar(&cmder.maxTotal, "max", 0, "Cap on conversations fetched (0 = configured default)")

	return cmd
}

func (c *syncCommander) run(ctx context.Context) error {
	log := logger.NewLogger(c.debug)
	defer log.Sync()

	cfg, err := wiring.LoadConfig(c.configDir)
	if err != nil {
		return err
	}

	st, err := wiring.NewStore(ctx, cfg, c.configDir)
	if err != nil {
		return fmt.Errorf("opening archive store: %w", err)
	}
	defer st.Close()

	client, err := wiring.NewIntercomClient(cfg, log)
	if err != nil {
		return err
	}

	maxTotal := int(cfg.Fetch.MaxTotal)
	if c.maxTotal > 0 {
		maxTotal = int(c.maxTotal)
	}

	fetcher, err := fetch.NewFetcher(fetch.Config{
		Client:        client,
		PageSize:      int(cfg.Fetch.PageSize),
		MaxTotal:      maxTotal,
		PageDelay:     time.Duration(cfg.Fetch.PageDelayMS) * time.Millisecond,
		DetailWorkers: int(cfg.Fetch.DetailWorkers),
		Logger:        log,
	})
	if err != nil {
		return err
	}

	publisher, err := wiring.NewPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	started := time.Now().UTC()
	start := started.AddDate(0, 0, -int(c.days))
	filters := archive.Filters{
		StartTime: &start,
		Limit:     maxTotal,
	}

	onProgress, finishProgress := cliui.ProgressPrinter(os.Stdout, "syncing")

	convs, fetchErr := fetcher.FetchConversations(ctx, filters, onProgress)
	finishProgress()

	fetchEvent := wiring.FetchEvent("cli-sync", started, len(convs), fetchErr)
	if pubErr := publisher.PublishSync(ctx, fetchEvent); pubErr != nil {
		log.Warn("publishing fetch event failed")
	}

	var syncErr error
	if fetchErr != nil {
		syncErr = fmt.Errorf("fetching conversations: %w", fetchErr)
	} else {
		syncErr = cliui.Step(os.Stdout, fmt.Sprintf("storing %d conversations", len(convs)), func() error {
			if err := st.UpsertConversations(ctx, convs); err != nil {
				return err
			}
			return st.SetLastSyncAt(ctx, started)
		})
	}

	result := map[string]any{
		"success":       syncErr == nil,
		"conversations": len(convs),
	}
	if syncErr != nil {
		result["error"] = syncErr.Error()
	}

	event := wiring.SyncEvent("cli-sync", started, result, syncErr)
	if pubErr := publisher.PublishSync(ctx, event); pubErr != nil {
		log.Warn("publishing sync event failed")
	}

	if syncErr != nil {
		return syncErr
	}

	fmt.Printf("\n  %s %s\n\n",
		cliui.KeyStyle.Render("Synced:"),
		cliui.ValueStyle.Render(fmt.Sprintf("%d conversations in %s", len(convs), cliui.FormatDuration(time.Since(started)))),
	)

	return nil
}
