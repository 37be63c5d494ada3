package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/primastock/inventory-service/internal/api/handlers"
	"github.com/primastock/inventory-service/internal/api/middleware"
	"github.com/primastock/inventory-service/internal/service"
)

type Services struct {
	StockService *service.StockService
	OrderService *service.OrderService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Actor"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.StockService != nil {
			stockHandler := handlers.NewStockHandler(services.StockService)
			stockGroup := apiGroup.Group("/stock")
			{
				stockGroup.POST("/movements", stockHandler.CreateMovement)
				stockGroup.GET("/movements", stockHandler.ListMovements)
				stockGroup.POST("/transfers", stockHandler.CreateTransfer)
				stockGroup.GET("/levels", stockHandler.ListLocationStock)
				stockGroup.GET("/levels/:product_id/:location_id", stockHandler.GetStockLevel)
				stockGroup.GET("/low", stockHandler.ListLowStock)
			}
		}

		if services.OrderService != nil {
			orderHandler := handlers.NewOrderHandler(services.OrderService)
			orderGroup := apiGroup.Group("/orders")
			{
				orderGroup.POST("", orderHandler.CreateOrder)
				orderGroup.GET("", orderHandler.ListOrders)
				orderGroup.GET("/:id", orderHandler.GetOrder)
				orderGroup.PUT("/:id", orderHandler.EditOrder)
				orderGroup.POST("/:id/status", orderHandler.ChangeStatus)
				orderGroup.POST("/:id/receive", orderHandler.Receive)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
