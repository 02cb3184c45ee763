package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ratewatch/internal/aggregate"
	"ratewatch/internal/cache"
	"ratewatch/internal/config"
	"ratewatch/internal/httpx"
	"ratewatch/internal/logger"
	"ratewatch/internal/provider"
	"ratewatch/internal/store"
	"ratewatch/internal/watchlist"
)

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API the chat front-end talks to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer log.Sync()

			st, err := store.Open(cfg.Postgres, true)
			if err != nil {
				return err
			}

			hc := httpx.New(cfg.Cache.FetchTimeout())
			registry := provider.Build(cfg.Providers, hc)
			log.Info("providers ready", zap.Strings("ids", registry.IDs()))

			rates := cache.New(st, registry, cfg.Cache.TTL(), cfg.Cache.FetchTimeout(), log)
			watch := watchlist.New(st, registry, log)
			agg := aggregate.New(st, rates, cfg.Aggregate.MaxConcurrent, log)

			handler := newAPIHandler(registry, watch, agg, log)
			srv := &http.Server{
				Addr:              ":" + cfg.Server.Port,
				Handler:           handler,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      time.Duration(cfg.Server.RequestTimeoutSec+5) * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			go func() {
				log.Info("server listening", zap.String("port", cfg.Server.Port))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("server", zap.Error(err))
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
