package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeyoulateralligator/goodreader/internal/handlers"
)

func newServeCmd() *cobra.Command {
	var port string
	var dir string
	var runsDir string
	var index string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generated map, gallery and run files",
		Long: `Starts a small web server over the output directory of a run so the map
and the cover gallery can be opened from another device. Saved runs are
listed as JSON under /api/runs.`,
		Example: `  # Serve the current directory on the default port 8888
  goodreader serve

  # Serve another directory on a custom port
  goodreader serve --dir out --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := handlers.New(dir, runsDir, index)

			mux := http.NewServeMux()
			mux.HandleFunc("/api/runs", handler.HandleRuns)
			mux.HandleFunc("/api/runs/", handler.HandleRunDetail)
			mux.HandleFunc("/", handler.HandleStatic)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Goodreader pages available", "addr", addr, "url", "http://localhost"+addr, "dir", dir)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

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
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory with the generated pages")
	cmd.Flags().StringVar(&runsDir, "runs", "runs", "Directory with saved run files")
	cmd.Flags().StringVar(&index, "index", "want_to_read_map.html", "Page served at /")

	return cmd
}
