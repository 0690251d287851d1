// @title           BridgeUs API
// @version         1.0
// @description     Micro-task marketplace connecting students and companies.

// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

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

	"bridgeus/internal/app"
	"bridgeus/internal/config"
	"bridgeus/internal/router"
	"bridgeus/internal/utils/appinfo"

	"go.uber.org/zap"
)

func main() {
	logger, err := app.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info("Starting BridgeUs API",
		zap.String("version", appinfo.GetVersion()),
		zap.String("environment", appinfo.GetEnvironment()),
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Provider),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := app.New(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	if err := a.Services.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupRouter(a.Services, router.DefaultOptions(cfg), logger),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			_ = a.Close(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancelShutdown()

	// websocket connections are hijacked and not tracked by Shutdown; they
	// end when the services close their streams
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := a.Close(ctx); err != nil {
		logger.Error("Service shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
