package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"supportbot/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfgPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := buildComponents(ctx, cfg, log)
			if err != nil {
				log.Error().Err(err).Msg("startup failed")
				return err
			}
			defer c.store.Close()

			srv := server.New(c.chat, server.Options{
				Addr:           cfg.Server.Addr,
				ReadTimeout:    cfg.Server.ReadTimeout(),
				WriteTimeout:   cfg.Server.WriteTimeout(),
				AllowedOrigins: cfg.Server.AllowedOrigins,
				FAQEntries:     c.index.Len(),
			}, log)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.ListenAndServe)
			g.Go(func() error {
				<-gctx.Done()
				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
