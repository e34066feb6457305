package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/guiagent-mcp/internal/mcpserver"
)

const (
	serverName = "guiagent-mcp"
	// pruneInterval paces the background expiry pass while serving.
	pruneInterval = 5 * time.Minute
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the operations as MCP tools",
		Long: "Serve runs an MCP server exposing execute/continue/tap/status and the\n" +
			"listing operations as tools, on stdio by default or over HTTP/SSE with\n" +
			"--http.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			return serveMCP(cmd.Context(), a, httpAddr)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "",
		"Serve over HTTP/SSE on this address instead of stdio (e.g. localhost:8080)")
	return cmd
}

// serveMCP runs the MCP transport with a periodic session prune until the
// transport stops or a shutdown signal arrives.
func serveMCP(ctx context.Context, a *app, httpAddr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.ops.PruneSessions(ctx); err != nil {
		a.logger.Warn("prune expired sessions", "error", err)
	}

	srv := mcpserver.New(mcpserver.Config{Name: serverName, Version: version}, a.ops, a.logger)

	serveErr := make(chan error, 1)
	go func() {
		if httpAddr != "" {
			serveErr <- srv.ServeHTTP(httpAddr)
		} else {
			serveErr <- srv.Serve()
		}
	}()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := a.ops.PruneSessions(ctx); err != nil {
				a.logger.Warn("prune expired sessions", "error", err)
			}
		case err := <-serveErr:
			a.sup.Sweep()
			return err
		case <-ctx.Done():
			a.logger.Info("shutting down", "reason", ctx.Err())
			a.sup.Sweep()
			return nil
		}
	}
}
