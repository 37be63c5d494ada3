package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain event emitted after a mutation has committed.
// Delivery is best-effort; the ledger's correctness never depends on a
// subscriber seeing an event.
type Event interface {
	EventName() string
	EventID() string
}

type eventMeta struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newEventMeta() eventMeta {
	return eventMeta{ID: uuid.NewString(), OccurredAt: time.Now().UTC()}
}

func (m eventMeta) EventID() string { return m.ID }

// StockMovementRecorded is emitted for every committed ledger entry.
type StockMovementRecorded struct {
	eventMeta
	Movement    StockMovement `json:"movement"`
	NewQuantity int           `json:"new_quantity"`
}

func NewStockMovementRecorded(m StockMovement, newQuantity int) StockMovementRecorded {
	return StockMovementRecorded{eventMeta: newEventMeta(), Movement: m, NewQuantity: newQuantity}
}

func (StockMovementRecorded) EventName() string { return "stock.movement-recorded" }

// StockTransferred is emitted after both legs of a transfer commit.
type StockTransferred struct {
	eventMeta
	ProductID      int64  `json:"product_id"`
	FromLocationID int64  `json:"from_location_id"`
	ToLocationID   int64  `json:"to_location_id"`
	Quantity       int    `json:"quantity"`
	Reference      string `json:"reference"`
}

func NewStockTransferred(p TransferParams, reference string) StockTransferred {
	return StockTransferred{
		eventMeta:      newEventMeta(),
		ProductID:      p.ProductID,
		FromLocationID: p.FromLocationID,
		ToLocationID:   p.ToLocationID,
		Quantity:       p.Quantity,
		Reference:      reference,
	}
}

func (StockTransferred) EventName() string { return "stock.transferred" }

// LowStockDetected is emitted when a committed movement leaves a level
// at or below the product's minimum stock threshold.
type LowStockDetected struct {
	eventMeta
	ProductID  int64 `json:"product_id"`
	LocationID int64 `json:"location_id"`
	Quantity   int   `json:"quantity"`
	Threshold  int   `json:"threshold"`
}

func NewLowStockDetected(productID, locationID int64, quantity, threshold int) LowStockDetected {
	return LowStockDetected{
		eventMeta:  newEventMeta(),
		ProductID:  productID,
		LocationID: locationID,
		Quantity:   quantity,
		Threshold:  threshold,
	}
}

func (LowStockDetected) EventName() string { return "stock.low-stock-detected" }

// OrderCreated is emitted after a purchase order is created.
type OrderCreated struct {
	eventMeta
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	SupplierID  int64  `json:"supplier_id"`
}

func NewOrderCreated(o *PurchaseOrder) OrderCreated {
	return OrderCreated{
		eventMeta:   newEventMeta(),
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		SupplierID:  o.SupplierID,
	}
}

func (OrderCreated) EventName() string { return "order.created" }

// OrderStatusChanged is emitted after a committed status transition.
type OrderStatusChanged struct {
	eventMeta
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	OldStatus   OrderStatus `json:"old_status"`
	NewStatus   OrderStatus `json:"new_status"`
}

func NewOrderStatusChanged(o *PurchaseOrder, oldStatus, newStatus OrderStatus) OrderStatusChanged {
	return OrderStatusChanged{
		eventMeta:   newEventMeta(),
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
	}
}

func (OrderStatusChanged) EventName() string { return "order.status-changed" }

// ItemsReceived is emitted after a receiving call commits.
type ItemsReceived struct {
	eventMeta
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	LocationID  int64           `json:"location_id"`
	Details     []ReceiptDetail `json:"details"`
	NewStatus   OrderStatus     `json:"new_status"`
}

func NewItemsReceived(o *PurchaseOrder, locationID int64, result *ReceiveResult) ItemsReceived {
	return ItemsReceived{
		eventMeta:   newEventMeta(),
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		LocationID:  locationID,
		Details:     result.Details,
		NewStatus:   result.NewStatus,
	}
}

func (ItemsReceived) EventName() string { return "order.items-received" }
