package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/primastock/inventory-service/internal/domain"
	"github.com/primastock/inventory-service/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

type orderLineRequest struct {
	ProductID int64   `json:"product_id" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required"`
	UnitPrice float64 `json:"unit_price"`
}

type createOrderRequest struct {
	SupplierID   int64              `json:"supplier_id" binding:"required"`
	OrderDate    *time.Time         `json:"order_date"`
	ExpectedDate *time.Time         `json:"expected_date"`
	TaxRate      *float64           `json:"tax_rate"`
	Notes        string             `json:"notes"`
	Lines        []orderLineRequest `json:"lines"`
}

// CreateOrder creates a new pending purchase order.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	params := domain.CreateOrderParams{
		SupplierID:   req.SupplierID,
		OrderDate:    req.OrderDate,
		ExpectedDate: req.ExpectedDate,
		Notes:        req.Notes,
		Actor:        actorFrom(c),
		Lines:        toLineInputs(req.Lines),
	}
	if req.TaxRate != nil {
		rate := decimal.NewFromFloat(*req.TaxRate)
		params.TaxRate = &rate
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

type editOrderRequest struct {
	SupplierID   *int64             `json:"supplier_id"`
	ExpectedDate *time.Time         `json:"expected_date"`
	Notes        *string            `json:"notes"`
	TaxRate      *float64           `json:"tax_rate"`
	Lines        []orderLineRequest `json:"lines"`
}

// EditOrder updates a modifiable order, replacing its lines wholesale.
func (h *OrderHandler) EditOrder(c *gin.Context) {
	orderID, ok := orderIDFrom(c)
	if !ok {
		return
	}

	var req editOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	params := domain.EditOrderParams{
		SupplierID:   req.SupplierID,
		ExpectedDate: req.ExpectedDate,
		Notes:        req.Notes,
	}
	if req.TaxRate != nil {
		rate := decimal.NewFromFloat(*req.TaxRate)
		params.TaxRate = &rate
	}
	if req.Lines != nil {
		params.Lines = toLineInputs(req.Lines)
	}

	order, err := h.orderService.EditOrder(c.Request.Context(), orderID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// ChangeStatus performs a lifecycle transition on an order.
func (h *OrderHandler) ChangeStatus(c *gin.Context) {
	orderID, ok := orderIDFrom(c)
	if !ok {
		return
	}

	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	newStatus, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + req.Status})
		return
	}

	order, err := h.orderService.ChangeStatus(c.Request.Context(), orderID, newStatus, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

type receiveLineRequest struct {
	ProductID        int64 `json:"product_id" binding:"required"`
	ReceivedQuantity int   `json:"received_quantity"`
}

type receiveRequest struct {
	LocationID int64                `json:"location_id" binding:"required"`
	Notes      string               `json:"notes"`
	Lines      []receiveLineRequest `json:"lines" binding:"required"`
}

// Receive books received quantities against a confirmed order.
func (h *OrderHandler) Receive(c *gin.Context) {
	orderID, ok := orderIDFrom(c)
	if !ok {
		return
	}

	var req receiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	lines := make([]domain.ReceiptLine, len(req.Lines))
	for i, line := range req.Lines {
		lines[i] = domain.ReceiptLine{
			ProductID:        line.ProductID,
			ReceivedQuantity: line.ReceivedQuantity,
		}
	}

	result, err := h.orderService.Receive(c.Request.Context(), orderID, lines, req.LocationID, req.Notes, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOrder returns one order with its lines.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := orderIDFrom(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListOrders returns orders matching the query filters.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	filter := domain.OrderFilter{
		Limit:  parsePositiveIntWithDefault(c.Query("limit"), 50),
		Offset: parseNonNegativeInt(c.Query("offset")),
	}
	if v, err := strconv.ParseInt(c.Query("supplier_id"), 10, 64); err == nil {
		filter.SupplierID = v
	}
	if status := c.Query("status"); status != "" {
		parsed, ok := domain.ParseOrderStatus(status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + status})
			return
		}
		filter.Status = parsed
	}
	if from, err := time.Parse(time.RFC3339, c.Query("date_from")); err == nil {
		filter.DateFrom = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("date_to")); err == nil {
		filter.DateTo = &to
	}

	orders, err := h.orderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

func toLineInputs(lines []orderLineRequest) []domain.OrderLineInput {
	inputs := make([]domain.OrderLineInput, len(lines))
	for i, line := range lines {
		inputs[i] = domain.OrderLineInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: decimal.NewFromFloat(line.UnitPrice),
		}
	}
	return inputs
}

func orderIDFrom(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return 0, false
	}
	return orderID, true
}
