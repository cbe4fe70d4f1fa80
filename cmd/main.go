package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"vanir/internal/bus"
	"vanir/internal/common"
	"vanir/internal/config"
	"vanir/internal/engine"
	"vanir/internal/news"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg := config.Load()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error().Err(err).Str("url", cfg.RedisURL).Msg("invalid REDIS_URL")
		os.Exit(1)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Error().Err(err).Str("url", cfg.RedisURL).Msg("unable to reach the bus")
		os.Exit(1)
	}

	// The books live for the process lifetime. They are created here and
	// only ever touched from the bus adapter's loop.
	exchange := engine.New(common.Assets...)
	service := bus.NewService(client, exchange)

	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		return service.Run(ctx)
	})
	if cfg.NewsEnabled {
		broadcaster := news.NewBroadcaster(client, cfg.NewsInterval)
		t.Go(func() error {
			return broadcaster.Run(ctx)
		})
	}

	log.Info().Str("redis", cfg.RedisURL).Msg("market engine running")

	if err := t.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("market engine died")
		os.Exit(1)
	}
	log.Info().Msg("market engine stopped")
}
