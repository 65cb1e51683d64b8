package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/scanfolders/internal/barcode"
	"github.com/lehigh-university-libraries/scanfolders/internal/controller"
	"github.com/lehigh-university-libraries/scanfolders/internal/handlers"
	"github.com/lehigh-university-libraries/scanfolders/internal/images"
	"github.com/lehigh-university-libraries/scanfolders/internal/settings"
	"github.com/lehigh-university-libraries/scanfolders/internal/storage"
	"github.com/lehigh-university-libraries/scanfolders/internal/upload"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		port        string
		uploadsDir  string
		staticDir   string
		concurrency int
		imageRoots  []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web server for scanning and uploading folders",
		Long: `Starts the Scanfolders web interface on the specified port.

The interface lets you scan a barcode to create a folder, add photos to it,
and upload one folder or every folder at once while watching progress live.`,
		Example: `  # Start server on default port 8888
  scanfolders serve

  # Upload into a local directory instead of Google Drive
  scanfolders serve --backend local --local-root ./remote

  # Allow images to be added by path from a mounted card
  scanfolders serve --image-root /media/sdcard/DCIM`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			authProvider, remote, err := opts.backendServices()
			if err != nil {
				return err
			}
			prefs := settings.New(settings.DefaultPath())

			repo := storage.New()
			orchestrator := upload.New(repo, authProvider, remote, images.NewOpener(), prefs, upload.Options{Concurrency: concurrency})
			ctrl := controller.New(ctx, repo, orchestrator, authProvider, barcode.NewService(), prefs)
			go ctrl.Run(ctx)

			handler := handlers.New(handlers.Config{
				Controller: ctrl,
				Auth:       authProvider,
				Remote:     remote,
				UploadsDir: uploadsDir,
				StaticDir:  staticDir,
				ImageRoots: imageRoots,
			})

			// Set up routes
			mux := http.NewServeMux()
			handler.Register(mux)

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Scanfolders interface available", "addr", addr, "url", "http://localhost"+addr, "backend", opts.backend)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-ctx.Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				// uploads run under ctx, so they are already cancelled
				ctrl.Wait()
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVar(&uploadsDir, "uploads-dir", "uploads", "Directory for images posted to the server")
	cmd.Flags().StringVar(&staticDir, "static-dir", "static", "Directory with the web interface")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum simultaneous uploads per folder (0 for no limit)")
	cmd.Flags().StringSliceVar(&imageRoots, "image-root", nil, "Directory that images added by path may come from (repeatable)")

	return cmd
}
