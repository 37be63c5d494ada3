package repository

import (
	"context"

	"github.com/primastock/inventory-service/internal/domain"
)

// OrderRepository is the persistence port for purchase orders. The
// compound operations (create, edit, status change, receive) each run
// as one transaction with the order row locked for the duration of the
// check-and-write, so concurrent calls against the same order
// serialize.
type OrderRepository interface {
	// CreateOrder inserts the order header and its lines. Returns
	// domain.ErrDuplicateOrderNumber when the generated number lost a
	// race against a concurrent creation.
	CreateOrder(ctx context.Context, order *domain.PurchaseOrder, lines []domain.PurchaseOrderLine) error

	GetOrder(ctx context.Context, id int64) (*domain.PurchaseOrder, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.PurchaseOrder, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.PurchaseOrder, error)

	// UpdateOrder replaces the order's header fields and its full line
	// set. Rejected with domain.ErrOrderNotModifiable unless the order
	// is still pending or confirmed.
	UpdateOrder(ctx context.Context, order *domain.PurchaseOrder, lines []domain.PurchaseOrderLine) error

	// ChangeStatus performs the transition check-and-write atomically.
	// notes, when non-empty, is appended to the order's note history.
	// Returns the updated order and the status it transitioned from.
	ChangeStatus(ctx context.Context, orderID int64, newStatus domain.OrderStatus, notes string) (*domain.PurchaseOrder, domain.OrderStatus, error)

	// ReceiveItems books the submitted receipt lines against a
	// confirmed or partially received order: one inbound movement per
	// effective line, the
	// durable received totals updated, and the order status derived
	// from the cumulative totals, all in one transaction.
	ReceiveItems(ctx context.Context, orderID int64, lines []domain.ReceiptLine, locationID int64, notes, actor string, allowOverReceipt bool) (*domain.ReceiveResult, *domain.PurchaseOrder, error)

	// MaxOrderNumber returns the highest existing order number with
	// the given prefix, or "" when none exists.
	MaxOrderNumber(ctx context.Context, prefix string) (string, error)
}

// CatalogRepository resolves the read-only entities the ledger
// references. Product and location lifecycle is owned elsewhere.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetLocation(ctx context.Context, id int64) (*domain.Location, error)
	GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error)
}
