package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/example/ec-fulfillment/internal/config"
	"github.com/example/ec-fulfillment/internal/event"
	"github.com/example/ec-fulfillment/internal/infrastructure/kafka"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
	"github.com/example/ec-fulfillment/internal/projection"
)

func main() {
	rebuild := flag.Bool("rebuild", false,
		"drop the local caches and replay the full topic history under a fresh group id")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Str("service", "projector").Logger()

	cfg, err := config.LoadProjector()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer client.Close()

	cache := store.NewRedisCacheStore(client)
	projector := projection.NewProjector(cache)
	stats := projection.NewStatsProjector(cache)

	group := cfg.ConsumerGroup
	var opts []kafka.ConsumerOption
	if *rebuild {
		// A rebuild is an explicit, rare operation: wipe the caches,
		// start a fresh group at the first offset, and let the
		// idempotent handlers reconverge.
		group = fmt.Sprintf("%s-rebuild-%d", cfg.ConsumerGroup, time.Now().Unix())
		opts = append(opts, kafka.FromBeginning())
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("flush caches for rebuild")
		}
		log.Warn().Str("group", group).Msg("rebuilding projections from the beginning")
	}

	productConsumer := kafka.NewConsumer(cfg.KafkaBrokers, event.TopicProduct, group, opts...)
	userConsumer := kafka.NewConsumer(cfg.KafkaBrokers, event.TopicAuth, group, opts...)
	paymentConsumer := kafka.NewConsumer(cfg.KafkaBrokers, event.TopicPayment, group, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: promhttp.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return productConsumer.Consume(ctx, projector.Handler()) })
	g.Go(func() error { return userConsumer.Consume(ctx, projector.Handler()) })
	g.Go(func() error { return paymentConsumer.Consume(ctx, stats.Handler()) })
	g.Go(func() error {
		log.Info().Str("group", group).Int("metricsPort", cfg.MetricsPort).Msg("projector running")
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metrics.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("projector exited")
		os.Exit(1)
	}

	productConsumer.Close()
	userConsumer.Close()
	paymentConsumer.Close()
	log.Info().Msg("projector shut down")
}
