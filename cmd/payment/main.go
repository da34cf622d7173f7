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
	"github.com/example/ec-fulfillment/internal/config"
	"github.com/example/ec-fulfillment/internal/infrastructure/kafka"
	"github.com/example/ec-fulfillment/internal/payment"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Str("service", "payment").Logger()

	cfg, err := config.LoadPayment()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, "payment-service")
	defer producer.Close()

	simulator := payment.NewSimulator(producer, cfg.SettlementDelay, cfg.SuccessRate)
	handlers := api.NewPaymentHandlers(simulator)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handlers.Router(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		producer.RunFlusher(ctx, 5*time.Second)
		return nil
	})
	g.Go(func() error {
		log.Info().Int("port", cfg.Port).
			Dur("delay", cfg.SettlementDelay).Float64("successRate", cfg.SuccessRate).
			Msg("payment simulator listening")
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
		log.Error().Err(err).Msg("payment service exited")
		os.Exit(1)
	}

	// Accepted intents still owe a settlement event; publish them before
	// exiting.
	simulator.Drain()
	if err := producer.Flush(context.Background()); err != nil {
		log.Error().Err(err).Int("buffered", producer.Buffered()).
			Msg("outbox not fully flushed on shutdown")
	}
	log.Info().Msg("payment service shut down")
}
