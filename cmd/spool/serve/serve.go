// Package servecmder provides the serve command that runs the archive
// API server with its MCP surface.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/api"
	"github.com/spoolhq/spool/api/mcp"
	"github.com/spoolhq/spool/cmd/spool/wiring"
	"github.com/spoolhq/spool/pkg/logger"
)

type serveCommander struct {
	listen        string
	mode          string
	forceBackend  string
	token         string
	disableMCP    bool
	debug         bool
	configDir     string
	serviceLogger *zap.Logger
}

const serveLongDesc string = `Run the spool archive API server.

Serves the conversation archive over HTTP, backed by whichever
transport the adapter selects for the configured mode. The server
exposes REST routes for searching and retrieving conversations, a
generic tool-invocation endpoint that remote spool instances can
target, and (unless disabled) an MCP endpoint at /mcp for agent
clients.

Examples:
  spool serve
  spool serve --listen :9090 --mode direct
  spool serve --mode external --force-backend http`

const serveShortDesc string = "Run the spool archive API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address for API server to listen on")
	cmd.Flags().StringVarP(&cmder.mode, "mode", "m", "", "Transport mode (direct, stream, external)")
	cmd.Flags().StringVar(&cmder.forceBackend, "force-backend", "", "Probe only this backend kind")
	cmd.Flags().StringVar(&cmder.token, "token", "", "Require this bearer token on every request")
	cmd.Flags().BoolVar(&cmder.disableMCP, "no-mcp", false, "Disable the MCP endpoint")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	c.serviceLogger = logger.NewJSONLogger(c.debug)
	defer c.serviceLogger.Sync()

	cfg, err := wiring.LoadConfig(c.configDir)
	if err != nil {
		return err
	}

	listen := cfg.API.Listen
	if c.listen != "" {
		listen = c.listen
	}

	adapter, shutdown, err := wiring.NewAdapter(ctx, cfg, wiring.Options{
		ConfigDir: c.configDir,
		Mode:      c.mode,
		Force:     c.forceBackend,
		Logger:    c.serviceLogger,
	})
	if err != nil {
		return fmt.Errorf("initializing backend adapter: %w", err)
	}
	defer shutdown()

	publisher, err := wiring.NewPublisher(cfg, c.serviceLogger)
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	archive := wiring.NewEventingArchive(adapter, publisher, c.serviceLogger)

	apiConfig := api.Config{
		ListenAddr: listen,
		Token:      c.token,
	}

	if !c.disableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Archive: archive,
			Logger:  c.serviceLogger,
		})
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}
		apiConfig.MCPHandler = mcpServer.Handler()
	}

	server, err := api.NewServer(apiConfig, archive, c.serviceLogger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	c.serviceLogger.Info("starting archive server",
		zap.String("listen", listen),
		zap.String("backend", string(adapter.Current())),
	)

	// Channel to capture the server error
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.serviceLogger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}
