package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/primastock/inventory-service/internal/api"
	"github.com/primastock/inventory-service/internal/cache"
	"github.com/primastock/inventory-service/internal/config"
	"github.com/primastock/inventory-service/internal/events"
	"github.com/primastock/inventory-service/internal/repository/postgres"
	"github.com/primastock/inventory-service/internal/service"
	"github.com/primastock/inventory-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Stock level cache (noop when disabled)
	levelCache, err := cache.NewStockLevelCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Cache unavailable, continuing without it")
		levelCache = cache.NewNoopStockLevelCache()
	}

	// Domain event bus with the logging consumer attached
	bus := events.NewBus(0)
	busDone := events.StartLogSubscriber(bus)

	// Repositories and services
	stockRepo := postgres.NewStockRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	catalogRepo := postgres.NewCatalogRepository(db)

	stockService := service.NewStockService(stockRepo, catalogRepo, levelCache, bus, cfg.Inventory)
	orderService := service.NewOrderService(orderRepo, levelCache, bus, cfg.Inventory)

	router := api.NewRouter(&api.Services{
		StockService: stockService,
		OrderService: orderService,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Drain the event bus before exiting
	bus.Close()
	<-busDone

	logger.Log.Info().Msg("Server exiting")
}
