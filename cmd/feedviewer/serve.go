package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"feedviewer/internal/metrics"
	"feedviewer/internal/relay"
)

// serveCmd runs the relay endpoint.
func serveCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = a.cfg.ListenAddr
			}

			opts := relay.OptionsFromConfig(a.cfg)
			opts.Registry = metrics.NewRegistry()
			srv := relay.New(opts)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.log.Info().Str("addr", listen).Str("allowed_domain", a.cfg.AllowedDomain).Msg("relay listening")
				errCh <- srv.Listen(listen, fiber.ListenConfig{DisableStartupMessage: true})
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				a.log.Info().Msg("shutting down relay")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.ShutdownWithContext(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default from FEEDVIEWER_LISTEN_ADDR)")
	return cmd
}
