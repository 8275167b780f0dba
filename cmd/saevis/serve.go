package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes the engine as a JSON API over HTTP, with Prometheus metrics on /metrics
and per-tree server-sent events on /trees/{id}/events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Channel to listen for interrupt or terminate signals.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			rt.StartWatcher(ctx)
		}

		port, _ := cmd.Flags().GetString("port")
		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           rt.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			rt.Logger.Info("starting saevis server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			rt.Logger.Info("start shutdown")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				rt.Logger.Warn("graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			rt.Logger.Info("server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload the metric table when its file changes")
}
