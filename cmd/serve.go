package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/coverlens/internal/handlers"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var port string
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browse and search state over HTTP for a web front end",
		Long: `Starts a local JSON API that holds one browse/search session and exposes
its actions (load more, search, find similar, filters, clear) and the
resulting view state. Cover images are relayed through the search
service's image proxy.`,
		Example: `  # Start server on default port 8888
  coverlens serve

  # Start server on custom port with a front end bundle
  coverlens serve --port 3000 --static ./web/dist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				opts.cfg.Server.Port = port
			}

			client := opts.client()
			coordinator := opts.coordinator(client, nil)
			handler := handlers.New(coordinator, opts.fetcher(client),
				handlers.WithMaxUploadBytes(opts.cfg.Images.MaxUploadBytes),
				handlers.WithStaticDir(staticDir),
			)

			// Load the first page up front so the first render has books
			go func() {
				if err := coordinator.Start(cmd.Context()); err != nil {
					slog.Warn("Initial collection load failed", "error", err)
				}
			}()

			addr := ":" + opts.cfg.Server.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(opts.cfg.Server.AllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Coverlens API available", "addr", addr, "url", "http://localhost"+addr, "backend", opts.cfg.API.BaseURL)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory with a front end bundle to serve at /")

	return cmd
}
