package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primastock/inventory-service/internal/cache"
	"github.com/primastock/inventory-service/internal/config"
	"github.com/primastock/inventory-service/internal/domain"
	"github.com/primastock/inventory-service/internal/events"
)

func newOrderFixture(t *testing.T, policy config.InventoryConfig) (*OrderService, *fakeOrderRepo, *fakeStockRepo, *events.Bus) {
	t.Helper()

	if policy.OrderNumberPrefix == "" {
		policy.OrderNumberPrefix = "PO"
	}
	if policy.DefaultTaxRate == 0 {
		policy.DefaultTaxRate = 10
	}

	stocks := newFakeStockRepo()
	orders := newFakeOrderRepo(stocks)
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	svc := NewOrderService(orders, cache.NewNoopStockLevelCache(), bus, policy)
	svc.now = func() time.Time {
		return time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	}
	return svc, orders, stocks, bus
}

func twoLineParams() domain.CreateOrderParams {
	return domain.CreateOrderParams{
		SupplierID: 7,
		Actor:      "purchasing",
		Lines: []domain.OrderLineInput{
			{ProductID: 1, Quantity: 10, UnitPrice: decimal.RequireFromString("15.00")},
			{ProductID: 2, Quantity: 4, UnitPrice: decimal.RequireFromString("25.00")},
		},
	}
}

func TestCreateOrderAssignsSequentialNumbers(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, config.InventoryConfig{})
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, twoLineParams())
	require.NoError(t, err)
	assert.Equal(t, "PO20250614-0001", first.OrderNumber)
	assert.Equal(t, domain.StatusPending, first.Status)

	second, err := svc.CreateOrder(ctx, twoLineParams())
	require.NoError(t, err)
	assert.Equal(t, "PO20250614-0002", second.OrderNumber)
}

func TestCreateOrderComputesTotals(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, config.InventoryConfig{})

	order, err := svc.CreateOrder(context.Background(), twoLineParams())
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("250.00")), "subtotal = %s", order.Subtotal)
	assert.True(t, order.TaxAmount.Equal(decimal.RequireFromString("25.00")), "taxAmount = %s", order.TaxAmount)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("275.00")), "total = %s", order.TotalAmount)
	require.Len(t, order.Lines, 2)
	assert.True(t, order.Lines[0].LineTotal.Equal(decimal.RequireFromString("150.00")))
}

func TestCreateOrderRetriesNumberCollision(t *testing.T) {
	svc, orders, _, _ := newOrderFixture(t, config.InventoryConfig{})
	orders.failCreates = 1

	order, err := svc.CreateOrder(context.Background(), twoLineParams())
	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderNumber)
}

func TestCreateOrderGivesUpAfterRepeatedCollisions(t *testing.T) {
	svc, orders, _, _ := newOrderFixture(t, config.InventoryConfig{})
	orders.failCreates = maxCreateAttempts

	_, err := svc.CreateOrder(context.Background(), twoLineParams())
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestCreateOrderRejectsBadLines(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, config.InventoryConfig{})

	params := twoLineParams()
	params.Lines[1].Quantity = 0
	_, err := svc.CreateOrder(context.Background(), params)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	params = twoLineParams()
	params.Lines[0].UnitPrice = decimal.RequireFromString("-1")
	_, err = svc.CreateOrder(context.Background(), params)
	assert.Error(t, err)
}

func TestEditOrderReplacesLinesAndRecomputesTotals(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, config.InventoryConfig{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, twoLineParams())
	require.NoError(t, err)

	updated, err := svc.EditOrder(ctx, order.ID, domain.EditOrderParams{
		Lines: []domain.OrderLineInput{
			{ProductID: 3, Quantity: 2, UnitPrice: decimal.RequireFromString("100.00")},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated.Lines, 1)
	assert.Equal(t, int64(3), updated.Lines[0].ProductID)
	assert.True(t, updated.Subtotal.Equal(decimal.RequireFromString("200.00")))
	assert.True(t, updated.TotalAmount.Equal(decimal.RequireFromString("220.00")))
}

func TestEditOrderRejectedOnceTerminal(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, config.InventoryConfig{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, twoLineParams())
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, order.ID, domain.StatusCancelled, "")
	require.NoError(t, err)

	notes := "too late"
	_, err = svc.EditOrder(ctx, order.ID, domain.EditOrderParams{Notes: &notes})
	assert.ErrorIs(t, err, domain.ErrOrderNotModifiable)
}

func TestChangeStatusEnforcesTransitions(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, config.InventoryConfig{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, twoLineParams())
	require.NoError(t, err)

	// pending cannot jump straight to received.
	_, err = svc.ChangeStatus(ctx, order.ID, domain.StatusReceived, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	confirmed, err := svc.ChangeStatus(ctx, order.ID, domain.StatusConfirmed, "supplier acknowledged")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
	assert.Contains(t, confirmed.Notes, "supplier acknowledged")

	// received and cancelled are terminal.
	cancelled, err := svc.ChangeStatus(ctx, order.ID, domain.StatusCancelled, "")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, cancelled.ID, domain.StatusConfirmed, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, config.InventoryConfig{})

	order, err := svc.CreateOrder(context.Background(), twoLineParams())
	require.NoError(t, err)

	_, err = svc.ChangeStatus(context.Background(), order.ID, "shipped", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestReceiveRequiresConfirmedOrder(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, config.InventoryConfig{})

	order, err := svc.CreateOrder(context.Background(), twoLineParams())
	require.NoError(t, err)

	_, err = svc.Receive(context.Background(), order.ID,
		[]domain.ReceiptLine{{ProductID: 1, ReceivedQuantity: 1}}, 10, "", "dock")
	assert.ErrorIs(t, err, domain.ErrOrderNotReceivable)
}

func TestReceiveAccumulatesAcrossCalls(t *testing.T) {
	svc, _, stocks, _ := newOrderFixture(t, config.InventoryConfig{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, twoLineParams())
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, order.ID, domain.StatusConfirmed, "")
	require.NoError(t, err)

	// First delivery covers part of line one and all of line two.
	result, err := svc.Receive(ctx, order.ID, []domain.ReceiptLine{
		{ProductID: 1, ReceivedQuantity: 6},
		{ProductID: 2, ReceivedQuantity: 4},
	}, 10, "first truck", "dock")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartiallyReceived, result.NewStatus)
	assert.Equal(t, 10, result.TotalReceived)

	level, _ := stocks.GetStockLevel(ctx, 1, 10)
	assert.Equal(t, 6, level.Quantity)

	// Second delivery completes line one and with it the order.
	result, err = svc.Receive(ctx, order.ID, []domain.ReceiptLine{
		{ProductID: 1, ReceivedQuantity: 4},
	}, 10, "second truck", "dock")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, result.NewStatus)
	assert.Equal(t, domain.StatusPartiallyReceived, result.OldStatus)

	level, _ = stocks.GetStockLevel(ctx, 1, 10)
	assert.Equal(t, 10, level.Quantity)

	updated, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, updated.Status)
}

func TestReceiveCompletesOrder(t *testing.T) {
	svc, _, stocks, _ := newOrderFixture(t, config.InventoryConfig{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, twoLineParams())
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, order.ID, domain.StatusConfirmed, "")
	require.NoError(t, err)

	result, err := svc.Receive(ctx, order.ID, []domain.ReceiptLine{
		{ProductID: 1, ReceivedQuantity: 10},
		{ProductID: 2, ReceivedQuantity: 4},
	}, 10, "", "dock")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, result.NewStatus)

	updated, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, updated.Status)
	for _, line := range updated.Lines {
		assert.True(t, line.IsFullyReceived())
	}

	movements, _ := stocks.ListMovements(ctx, domain.MovementFilter{})
	assert.Len(t, movements, 2, "one inbound movement per received line")
	for _, m := range movements {
		assert.Equal(t, order.OrderNumber, m.Reference)
	}
}

func TestReceiveRejectsOverReceipt(t *testing.T) {
	svc, _, stocks, _ := newOrderFixture(t, config.InventoryConfig{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, twoLineParams())
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, order.ID, domain.StatusConfirmed, "")
	require.NoError(t, err)

	_, err = svc.Receive(ctx, order.ID,
		[]domain.ReceiptLine{{ProductID: 1, ReceivedQuantity: 11}}, 10, "", "dock")
	require.ErrorIs(t, err, domain.ErrOverReceipt)

	// Cumulative totals count: 6 then another 5 still overshoots.
	_, err = svc.Receive(ctx, order.ID,
		[]domain.ReceiptLine{{ProductID: 1, ReceivedQuantity: 6}}, 10, "", "dock")
	require.NoError(t, err)
	_, err = svc.Receive(ctx, order.ID,
		[]domain.ReceiptLine{{ProductID: 1, ReceivedQuantity: 5}}, 10, "", "dock")
	require.ErrorIs(t, err, domain.ErrOverReceipt)

	level, _ := stocks.GetStockLevel(ctx, 1, 10)
	assert.Equal(t, 6, level.Quantity)
}

func TestReceiveAllowsOverReceiptWhenPolicyPermits(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, config.InventoryConfig{AllowOverReceiving: true})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, twoLineParams())
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, order.ID, domain.StatusConfirmed, "")
	require.NoError(t, err)

	result, err := svc.Receive(ctx, order.ID, []domain.ReceiptLine{
		{ProductID: 1, ReceivedQuantity: 12},
		{ProductID: 2, ReceivedQuantity: 4},
	}, 10, "", "dock")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, result.NewStatus)
}

func TestReceiveRejectsUnknownProduct(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, config.InventoryConfig{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, twoLineParams())
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, order.ID, domain.StatusConfirmed, "")
	require.NoError(t, err)

	_, err = svc.Receive(ctx, order.ID,
		[]domain.ReceiptLine{{ProductID: 99, ReceivedQuantity: 1}}, 10, "", "dock")
	assert.ErrorIs(t, err, domain.ErrLineNotInOrder)
}

func TestGetOrderByNumber(t *testing.T) {
	svc, _, _, _ := newOrderFixture(t, config.InventoryConfig{})

	order, err := svc.CreateOrder(context.Background(), twoLineParams())
	require.NoError(t, err)

	found, err := svc.GetOrderByNumber(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = svc.GetOrderByNumber(context.Background(), "PO19990101-0001")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
