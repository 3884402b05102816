package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnverified/orbit/internal/cache"
	"github.com/vulnverified/orbit/internal/config"
	"github.com/vulnverified/orbit/internal/httpserver"
	"github.com/vulnverified/orbit/internal/httpserver/deps"
	"github.com/vulnverified/orbit/internal/logger"
	"github.com/vulnverified/orbit/internal/recon"
)

const (
	serveMaxPagesLimit    = 100
	serveConcurrencyLimit = 16
	serveRunTimeout       = 5 * time.Minute
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		rateLimit  int
	)

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Serve discovery over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.Listen = listen
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
			defer func() { _ = log.Sync() }()

			var c cache.Cache = cache.NewMemory()
			if cfg.Cache.RedisAddr != "" {
				rc, err := cache.NewRedis(ctx, cache.RedisOptions{
					Addr:     cfg.Cache.RedisAddr,
					Password: cfg.Cache.RedisPassword,
					DB:       cfg.Cache.RedisDB,
				}, log)
				if err != nil {
					return err
				}
				c = rc
			}
			defer c.Close()

			ecfg, err := cfg.EngineConfig(nil)
			if err != nil {
				return err
			}

			srv := httpserver.New(cfg.Server.Listen, log, deps.Deps{
				Logger:           log,
				StartTime:        time.Now(),
				Version:          version,
				Engine:           ecfg,
				Adapters:         recon.NewAdapters(adapterOptions(cfg, c, log)),
				MaxPagesLimit:    serveMaxPagesLimit,
				ConcurrencyLimit: serveConcurrencyLimit,
				RunTimeout:       serveRunTimeout,
				RateLimit:        deps.RateLimit{PerMinute: rateLimit, Burst: max(rateLimit, 1)},
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer stop()
			return srv.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	cmd.Flags().StringVar(&listen, "listen", config.Default().Server.Listen, "Listen address")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "Discover requests per minute per client IP (0 = unlimited)")
	return cmd
}
