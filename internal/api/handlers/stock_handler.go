package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/primastock/inventory-service/internal/domain"
	"github.com/primastock/inventory-service/internal/service"
)

type StockHandler struct {
	stockService *service.StockService
}

func NewStockHandler(stockService *service.StockService) *StockHandler {
	return &StockHandler{stockService: stockService}
}

type movementRequest struct {
	ProductID  int64  `json:"product_id" binding:"required"`
	LocationID int64  `json:"location_id" binding:"required"`
	Type       string `json:"type" binding:"required"`
	Quantity   int    `json:"quantity"`
	Reference  string `json:"reference"`
	Notes      string `json:"notes"`
}

// CreateMovement applies a single stock movement.
func (h *StockHandler) CreateMovement(c *gin.Context) {
	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	movementType, ok := domain.ParseMovementType(req.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be one of in, out, adjustment"})
		return
	}

	movement, err := h.stockService.ApplyMovement(c.Request.Context(), domain.MovementParams{
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		Type:       movementType,
		Quantity:   req.Quantity,
		Reference:  req.Reference,
		Notes:      req.Notes,
		Actor:      actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, movement)
}

type transferRequest struct {
	ProductID      int64  `json:"product_id" binding:"required"`
	FromLocationID int64  `json:"from_location_id" binding:"required"`
	ToLocationID   int64  `json:"to_location_id" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required"`
	Reference      string `json:"reference"`
}

// CreateTransfer moves stock between two locations.
func (h *StockHandler) CreateTransfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.stockService.Transfer(c.Request.Context(), domain.TransferParams{
		ProductID:      req.ProductID,
		FromLocationID: req.FromLocationID,
		ToLocationID:   req.ToLocationID,
		Quantity:       req.Quantity,
		Reference:      req.Reference,
		Actor:          actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetStockLevel returns the level for one (product, location) pair.
func (h *StockHandler) GetStockLevel(c *gin.Context) {
	productID, err1 := strconv.ParseInt(c.Param("product_id"), 10, 64)
	locationID, err2 := strconv.ParseInt(c.Param("location_id"), 10, 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product or location id"})
		return
	}

	level, err := h.stockService.GetStockLevel(c.Request.Context(), productID, locationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id":         level.ProductID,
		"location_id":        level.LocationID,
		"quantity":           level.Quantity,
		"reserved_quantity":  level.ReservedQuantity,
		"available_quantity": level.AvailableQuantity(),
	})
}

// ListLocationStock returns all stock levels held at a location.
func (h *StockHandler) ListLocationStock(c *gin.Context) {
	locationID, err := strconv.ParseInt(c.Query("location_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location_id is required"})
		return
	}

	levels, err := h.stockService.ListLocationStock(c.Request.Context(), locationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, levels)
}

// ListLowStock returns levels at or below the minimum threshold.
func (h *StockHandler) ListLowStock(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 50)

	levels, err := h.stockService.ListLowStock(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, levels)
}

// ListMovements returns ledger entries, newest first.
func (h *StockHandler) ListMovements(c *gin.Context) {
	filter := domain.MovementFilter{
		Limit:  parsePositiveIntWithDefault(c.Query("limit"), 50),
		Offset: parseNonNegativeInt(c.Query("offset")),
	}
	if v, err := strconv.ParseInt(c.Query("product_id"), 10, 64); err == nil {
		filter.ProductID = v
	}
	if v, err := strconv.ParseInt(c.Query("location_id"), 10, 64); err == nil {
		filter.LocationID = v
	}
	if t := c.Query("type"); t != "" {
		movementType, ok := domain.ParseMovementType(t)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type must be one of in, out, adjustment"})
			return
		}
		filter.Type = movementType
	}
	if from, err := time.Parse(time.RFC3339, c.Query("date_from")); err == nil {
		filter.DateFrom = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("date_to")); err == nil {
		filter.DateTo = &to
	}

	movements, err := h.stockService.ListMovements(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, movements)
}
