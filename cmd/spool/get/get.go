// Package getcmder provides the `spool get` CLI command.
package getcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spoolhq/spool/cmd/spool/wiring"
	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/cliui"
	"github.com/spoolhq/spool/pkg/logger"
)

type getCommander struct {
	id           string
	mode         string
	forceBackend string
	debug        bool
	configDir    string
}

const getLongDesc string = `Fetch a single conversation by ID.

Prints the full message transcript of one archived conversation,
resolved through the active backend.

Examples:
  spool get 215001234567
  spool get 215001234567 --mode external`

const getShortDesc string = "Fetch a single conversation by ID"

func NewGetCmd() *cobra.Command {
	cmder := &getCommander{}

	cmd := &cobra.Command{
		Use:   "get <conversation-id>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.id = args[0]

			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.mode, "mode", "m", "", "Transport mode (direct, stream, external)")
	cmd.Flags().StringVar(&cmder.forceBackend, "force-backend", "", "Probe only this backend kind")

	return cmd
}

func (c *getCommander) run(ctx context.Context) error {
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

	conv, err := a.GetConversation(ctx, c.id)
	if err != nil {
		return err
	}

	printConversation(conv)
	return nil
}

func printConversation(conv archive.Conversation) {
	fmt.Printf("\n  %s %s\n", cliui.KeyStyle.Render("Conversation:"), cliui.ValueStyle.Render(conv.ID))
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Created:"), cliui.ValueStyle.Render(conv.CreatedAt.Format("2006-01-02 15:04:05 MST")))
	if conv.CustomerEmail != "" {
		fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Customer:"), cliui.ValueStyle.Render(conv.CustomerEmail))
	}
	if len(conv.Tags) > 0 {
		fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Tags:"), cliui.DimStyle.Render(fmt.Sprintf("%v", conv.Tags)))
	}
	fmt.Println()

	for _, msg := range conv.Messages {
		role := cliui.DimStyle.Render(string(msg.Role))
		if msg.Role == archive.RoleCustomer {
			role = cliui.KeyStyle.Render(string(msg.Role))
		}
		fmt.Printf("  %s %s\n", role, cliui.DimStyle.Render(msg.CreatedAt.Format("15:04:05")))
		fmt.Printf("  %s\n\n", msg.Body)
	}
}
