package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/iwvelando/microloan/internal/repository"
	"github.com/iwvelando/microloan/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(state *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, logger := state.conf, state.logger
			if addr != "" {
				conf.Server.Address = addr
			}

			var cache repository.Cache = repository.NewMemoryCache()
			if conf.Cache.Backend == "redis" {
				redisCache, err := repository.NewRedisCache(cmd.Context(), repository.RedisOptions{
					Address:  conf.Cache.Redis.Address,
					Password: conf.Cache.Redis.Password,
					DB:       conf.Cache.Redis.DB,
					Prefix:   conf.Cache.Redis.Prefix,
				})
				if err != nil {
					return err
				}
				defer func() {
					_ = redisCache.Close()
				}()
				cache = redisCache
			}

			svc, err := server.NewServices(conf, cache, logger)
			if err != nil {
				return err
			}

			limiter := server.NewRateLimiter(conf.Server.RateLimit.Capacity, conf.Server.RateLimit.Window)
			defer limiter.Stop()

			handler := server.NewHandler(svc, logger, server.Options{Version: version, RateLimiter: limiter})
			srv := server.New(logger, conf.Server, handler)

			serverErr := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil {
					serverErr <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-serverErr:
				logger.Error("server failed", zap.String("op", "main.serve"), zap.Error(err))
				return err
			case sig := <-quit:
				logger.Info("received signal", zap.String("op", "main.serve"), zap.String("signal", sig.String()))
			}

			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("error during server shutdown", zap.String("op", "main.serve"), zap.Error(err))
				return err
			}
			logger.Info("server exited", zap.String("op", "main.serve"))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override (e.g. :8080)")
	return cmd
}
