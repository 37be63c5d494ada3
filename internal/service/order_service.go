package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/primastock/inventory-service/internal/cache"
	"github.com/primastock/inventory-service/internal/config"
	"github.com/primastock/inventory-service/internal/domain"
	"github.com/primastock/inventory-service/internal/events"
	"github.com/primastock/inventory-service/internal/repository"
)

const (
	maxCreateAttempts  = 3
	createRetryBackoff = 25 * time.Millisecond
)

// OrderService owns the purchase order lifecycle and the receiving
// reconciliation against the stock ledger.
type OrderService struct {
	orders repository.OrderRepository
	cache  cache.StockLevelCache
	bus    *events.Bus
	policy config.InventoryConfig
	now    func() time.Time
}

func NewOrderService(orders repository.OrderRepository, levelCache cache.StockLevelCache, bus *events.Bus, policy config.InventoryConfig) *OrderService {
	return &OrderService{
		orders: orders,
		cache:  levelCache,
		bus:    bus,
		policy: policy,
		now:    time.Now,
	}
}

// CreateOrder creates a pending purchase order with a fresh order
// number. Duplicate-number races against concurrent creations are
// retried a bounded number of times before surfacing as a concurrency
// conflict.
func (s *OrderService) CreateOrder(ctx context.Context, params domain.CreateOrderParams) (*domain.PurchaseOrder, error) {
	lines, err := buildOrderLines(params.Lines)
	if err != nil {
		return nil, err
	}

	taxRate := decimal.NewFromFloat(s.policy.DefaultTaxRate)
	if params.TaxRate != nil {
		taxRate = *params.TaxRate
	}
	subtotal, taxAmount, total := domain.ComputeOrderTotals(lines, taxRate)

	orderDate := s.now()
	if params.OrderDate != nil {
		orderDate = *params.OrderDate
	}

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		orderNumber, err := s.NextOrderNumber(ctx)
		if err != nil {
			return nil, err
		}

		order := &domain.PurchaseOrder{
			OrderNumber:  orderNumber,
			SupplierID:   params.SupplierID,
			Status:       domain.StatusPending,
			OrderDate:    orderDate,
			ExpectedDate: params.ExpectedDate,
			Subtotal:     subtotal,
			TaxRate:      taxRate,
			TaxAmount:    taxAmount,
			TotalAmount:  total,
			Notes:        params.Notes,
			CreatedBy:    params.Actor,
		}

		err = s.orders.CreateOrder(ctx, order, lines)
		if errors.Is(err, domain.ErrDuplicateOrderNumber) {
			log.Warn().
				Str("order_number", orderNumber).
				Int("attempt", attempt).
				Msg("order number collision, retrying")
			time.Sleep(time.Duration(attempt) * createRetryBackoff)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.bus.Publish(domain.NewOrderCreated(order))
		log.Info().
			Int64("order_id", order.ID).
			Str("order_number", order.OrderNumber).
			Int64("supplier_id", order.SupplierID).
			Str("actor", order.CreatedBy).
			Msg("purchase order created")
		return order, nil
	}

	return nil, fmt.Errorf("%w: could not allocate order number after %d attempts",
		domain.ErrConcurrencyConflict, maxCreateAttempts)
}

// NextOrderNumber returns the next order number for today.
func (s *OrderService) NextOrderNumber(ctx context.Context) (string, error) {
	dayPrefix := s.policy.OrderNumberPrefix + s.now().Format("20060102")
	maxExisting, err := s.orders.MaxOrderNumber(ctx, dayPrefix)
	if err != nil {
		return "", err
	}
	return formatOrderNumber(dayPrefix, nextOrderSequence(maxExisting)), nil
}

// EditOrder updates header fields and replaces the line set wholesale,
// recomputing the money totals. Only pending and confirmed orders may
// be edited.
func (s *OrderService) EditOrder(ctx context.Context, orderID int64, params domain.EditOrderParams) (*domain.PurchaseOrder, error) {
	existing, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !existing.Status.Modifiable() {
		return nil, fmt.Errorf("%w: status %s", domain.ErrOrderNotModifiable, existing.Status)
	}

	order := *existing
	if params.SupplierID != nil {
		order.SupplierID = *params.SupplierID
	}
	if params.ExpectedDate != nil {
		order.ExpectedDate = params.ExpectedDate
	}
	if params.Notes != nil {
		order.Notes = *params.Notes
	}
	if params.TaxRate != nil {
		order.TaxRate = *params.TaxRate
	}

	var lines []domain.PurchaseOrderLine
	if params.Lines != nil {
		lines, err = buildOrderLines(params.Lines)
		if err != nil {
			return nil, err
		}
	} else {
		// Keep the current lines; they still go through the wholesale
		// replacement so the totals stay consistent with the tax rate.
		inputs := make([]domain.OrderLineInput, len(existing.Lines))
		for i, line := range existing.Lines {
			inputs[i] = domain.OrderLineInput{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			}
		}
		lines, err = buildOrderLines(inputs)
		if err != nil {
			return nil, err
		}
	}

	order.Subtotal, order.TaxAmount, order.TotalAmount = domain.ComputeOrderTotals(lines, order.TaxRate)

	if err := s.orders.UpdateOrder(ctx, &order, lines); err != nil {
		return nil, err
	}

	log.Info().
		Int64("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Msg("purchase order updated")

	return s.orders.GetOrder(ctx, orderID)
}

// ChangeStatus performs a lifecycle transition. It has no quantity
// side effects; receiving is the only path that touches stock.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID int64, newStatus domain.OrderStatus, notes string) (*domain.PurchaseOrder, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, newStatus)
	}

	updated, oldStatus, err := s.orders.ChangeStatus(ctx, orderID, newStatus, notes)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(domain.NewOrderStatusChanged(updated, oldStatus, updated.Status))
	log.Info().
		Int64("order_id", updated.ID).
		Str("order_number", updated.OrderNumber).
		Str("old_status", string(oldStatus)).
		Str("new_status", string(updated.Status)).
		Msg("purchase order status changed")

	return updated, nil
}

// Receive books received quantities against a confirmed order,
// creating one inbound movement per effective line and deriving the
// new order status from the cumulative received totals.
func (s *OrderService) Receive(ctx context.Context, orderID int64, lines []domain.ReceiptLine, locationID int64, notes, actor string) (*domain.ReceiveResult, error) {
	result, order, err := s.orders.ReceiveItems(ctx, orderID, lines, locationID, notes, actor, s.policy.AllowOverReceiving)
	if err != nil {
		return nil, err
	}

	for _, detail := range result.Details {
		if err := s.cache.InvalidateLevel(ctx, detail.ProductID, locationID); err != nil {
			log.Warn().Err(err).
				Int64("product_id", detail.ProductID).
				Int64("location_id", locationID).
				Msg("stock level cache invalidation failed")
		}
	}

	if result.TotalReceived > 0 {
		s.bus.Publish(domain.NewItemsReceived(order, locationID, result))
	}
	if result.NewStatus != result.OldStatus {
		s.bus.Publish(domain.NewOrderStatusChanged(order, result.OldStatus, result.NewStatus))
	}

	log.Info().
		Int64("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Int64("location_id", locationID).
		Int("total_received", result.TotalReceived).
		Str("new_status", string(result.NewStatus)).
		Msg("purchase order items received")

	return result, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*domain.PurchaseOrder, error) {
	return s.orders.GetOrder(ctx, orderID)
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.PurchaseOrder, error) {
	return s.orders.GetOrderByNumber(ctx, orderNumber)
}

func (s *OrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.PurchaseOrder, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, filter.Status)
	}
	return s.orders.ListOrders(ctx, filter)
}

func buildOrderLines(inputs []domain.OrderLineInput) ([]domain.PurchaseOrderLine, error) {
	lines := make([]domain.PurchaseOrderLine, 0, len(inputs))
	for i, input := range inputs {
		if input.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d", domain.ErrInvalidQuantity, i+1)
		}
		if input.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("line %d: unit price cannot be negative", i+1)
		}
		lines = append(lines, domain.PurchaseOrderLine{
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
			UnitPrice: input.UnitPrice,
			LineTotal: input.UnitPrice.Mul(decimal.NewFromInt(int64(input.Quantity))),
		})
	}
	return lines, nil
}
