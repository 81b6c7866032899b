package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"deskhealth/internal/config"
	"deskhealth/internal/logger"
	"deskhealth/internal/simulator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Logger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := simulator.New(cfg)

	// run simulator in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- sim.Run(ctx)
	}()

	// wait for termination signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		err = <-errCh
	case err = <-errCh:
	}

	if err != nil {
		log.Error().Err(err).Msg("simulator exited")
		cancel()
		os.Exit(1)
	}
	log.Info().Msg("exited")
}
