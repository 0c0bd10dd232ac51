package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"scriptgen/internal/infra"
	"scriptgen/internal/stubserver"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	stub := stubserver.New(stubserver.Options{
		CompleteAfter:    cfg.StubCompleteAfter,
		FailMode:         cfg.StubFailMode,
		CreditsRequired:  cfg.StubCreditsNeeded,
		CreditsAvailable: cfg.StubCreditsOwned,
		Logger:           &logger,
	})
	server := infra.NewHTTPServer(cfg, stub.Router())

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("stub service listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("stub service failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown stub service")
	}
	logger.Info().Msg("stub service stopped")
}
