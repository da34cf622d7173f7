package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/example/ec-fulfillment/internal/api"
	"github.com/example/ec-fulfillment/internal/auth"
	"github.com/example/ec-fulfillment/internal/config"
	"github.com/example/ec-fulfillment/internal/event"
	"github.com/example/ec-fulfillment/internal/infrastructure/kafka"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
	"github.com/example/ec-fulfillment/internal/inventory"
	"github.com/example/ec-fulfillment/internal/ordering"
	"github.com/example/ec-fulfillment/internal/payment"
	"github.com/example/ec-fulfillment/internal/projection"
	"github.com/example/ec-fulfillment/internal/reconcile"
	"github.com/example/ec-fulfillment/internal/registry"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Str("service", "order").Logger()

	cfg, err := config.LoadOrder()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer db.Close()
	if err := store.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	reg, err := registry.FromConfig(cfg.Bus)
	if err != nil {
		log.Fatal().Err(err).Msg("build registry")
	}

	orders := store.NewPostgresOrderStore(db)
	cache := store.NewPostgresCacheStore(db)

	svc := ordering.NewService(reg, orders, cache,
		inventory.NewHTTPClient(), payment.NewHTTPClient())
	handlers := api.NewOrderHandlers(svc, auth.NewValidator(cfg.JWTSecret))

	// Each consumer reads its topic under this service's group id and
	// commits offsets as it goes.
	reconciler := reconcile.NewReconciler(orders)
	projector := projection.NewProjector(cache)

	settlementConsumer := kafka.NewConsumer(cfg.KafkaBrokers, event.TopicPayment, cfg.ConsumerGroup)
	productConsumer := kafka.NewConsumer(cfg.KafkaBrokers, event.TopicProduct, cfg.ConsumerGroup)
	userConsumer := kafka.NewConsumer(cfg.KafkaBrokers, event.TopicAuth, cfg.ConsumerGroup)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handlers.Router(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return settlementConsumer.Consume(ctx, reconciler.Handler()) })
	g.Go(func() error { return productConsumer.Consume(ctx, projector.Handler()) })
	g.Go(func() error { return userConsumer.Consume(ctx, projector.Handler()) })
	g.Go(func() error {
		log.Info().Int("port", cfg.Port).Msg("order service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("order service exited")
		os.Exit(1)
	}

	settlementConsumer.Close()
	productConsumer.Close()
	userConsumer.Close()
	log.Info().Msg("order service shut down")
}
