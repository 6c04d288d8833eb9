package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/hq/internal/app"
	"github.com/spf13/cobra"
)

func (r *root) addMCP(parent *cobra.Command) {
	var listen string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the stores as MCP tools, over stdio unless --listen is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return r.runContext(ctx, cmd, func(ctx context.Context, a *app.App) error {
				logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
				server := a.MCPServer(r.build.Version)
				if listen == "" {
					logger.Info("starting stdio transport", "owner_id", a.OwnerID)
					// Run returns when stdin closes or ctx is canceled.
					if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
						return fmt.Errorf("stdio server: %w", err)
					}
					return nil
				}
				return serveHTTP(ctx, logger, server, listen)
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Serve streamable HTTP on this address instead of stdio, e.g. 127.0.0.1:8090.")
	parent.AddCommand(cmd)
}

func mcpRouter(server *sdkmcp.Server) http.Handler {
	handler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
	)
	router := chi.NewRouter()
	router.Handle("/mcp", handler)
	router.Handle("/mcp/*", handler)
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return router
}

func serveHTTP(ctx context.Context, logger *slog.Logger, server *sdkmcp.Server, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mcpRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("mcp listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("mcp http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}
