package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a purchasable item. The ledger only reads products; it
// never mutates them.
type Product struct {
	ID            int64           `json:"id" db:"id"`
	SKU           string          `json:"sku" db:"sku"`
	Name          string          `json:"name" db:"name"`
	CostPrice     decimal.Decimal `json:"cost_price" db:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price" db:"selling_price"`
	MinStockLevel int             `json:"min_stock_level" db:"min_stock_level"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Location is a physical storage location (warehouse, store room).
type Location struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Supplier is a vendor purchase orders are placed against.
type Supplier struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StockLevel is the current-quantity projection for one
// (product, location) pair. Rows are created lazily on first movement
// and quantity never goes negative once a movement has committed.
type StockLevel struct {
	ID               int64     `json:"id" db:"id"`
	ProductID        int64     `json:"product_id" db:"product_id"`
	LocationID       int64     `json:"location_id" db:"location_id"`
	Quantity         int       `json:"quantity" db:"quantity"`
	ReservedQuantity int       `json:"reserved_quantity" db:"reserved_quantity"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// AvailableQuantity is the on-hand quantity minus the reserved amount.
func (s StockLevel) AvailableQuantity() int {
	return s.Quantity - s.ReservedQuantity
}

// StockMovement is one immutable ledger entry. For in/out movements
// Quantity is the moved count; for adjustments it is the new absolute
// on-hand quantity.
type StockMovement struct {
	ID         int64        `json:"id" db:"id"`
	ProductID  int64        `json:"product_id" db:"product_id"`
	LocationID int64        `json:"location_id" db:"location_id"`
	Type       MovementType `json:"type" db:"type"`
	Quantity   int          `json:"quantity" db:"quantity"`
	Reference  string       `json:"reference" db:"reference"`
	Notes      string       `json:"notes" db:"notes"`
	CreatedBy  string       `json:"created_by" db:"created_by"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// PurchaseOrder is an order placed with a supplier. Money fields are
// derived from the lines and recomputed whenever the lines change.
type PurchaseOrder struct {
	ID           int64               `json:"id" db:"id"`
	OrderNumber  string              `json:"order_number" db:"order_number"`
	SupplierID   int64               `json:"supplier_id" db:"supplier_id"`
	Status       OrderStatus         `json:"status" db:"status"`
	OrderDate    time.Time           `json:"order_date" db:"order_date"`
	ExpectedDate *time.Time          `json:"expected_date,omitempty" db:"expected_date"`
	Subtotal     decimal.Decimal     `json:"subtotal" db:"subtotal"`
	TaxRate      decimal.Decimal     `json:"tax_rate" db:"tax_rate"`
	TaxAmount    decimal.Decimal     `json:"tax_amount" db:"tax_amount"`
	TotalAmount  decimal.Decimal     `json:"total_amount" db:"total_amount"`
	Notes        string              `json:"notes" db:"notes"`
	CreatedBy    string              `json:"created_by" db:"created_by"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" db:"updated_at"`
	Lines        []PurchaseOrderLine `json:"lines,omitempty" db:"-"`
}

// PurchaseOrderLine is one ordered product on a purchase order.
// ReceivedQuantity accumulates across receipts and never exceeds
// Quantity unless over-receiving is explicitly allowed.
type PurchaseOrderLine struct {
	ID               int64           `json:"id" db:"id"`
	PurchaseOrderID  int64           `json:"purchase_order_id" db:"purchase_order_id"`
	ProductID        int64           `json:"product_id" db:"product_id"`
	ProductName      string          `json:"product_name" db:"product_name"`
	Quantity         int             `json:"quantity" db:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price" db:"unit_price"`
	LineTotal        decimal.Decimal `json:"line_total" db:"line_total"`
	ReceivedQuantity int             `json:"received_quantity" db:"received_quantity"`
}

func (l PurchaseOrderLine) RemainingQuantity() int {
	return l.Quantity - l.ReceivedQuantity
}

func (l PurchaseOrderLine) IsFullyReceived() bool {
	return l.ReceivedQuantity >= l.Quantity
}

// ComputeOrderTotals derives subtotal, tax amount and total from the
// given lines. The tax rate is a percentage (10 means 10%).
func ComputeOrderTotals(lines []PurchaseOrderLine, taxRate decimal.Decimal) (subtotal, taxAmount, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal)
	}
	taxAmount = subtotal.Mul(taxRate).Div(decimal.NewFromInt(100))
	total = subtotal.Add(taxAmount)
	return subtotal, taxAmount, total
}

// DeriveReceivingStatus computes the order status after a receipt has
// been applied. lines must carry the durable cumulative received
// quantities, not just what the current call submitted.
func DeriveReceivingStatus(lines []PurchaseOrderLine, receivedNow int, current OrderStatus) OrderStatus {
	if len(lines) > 0 {
		allReceived := true
		for _, line := range lines {
			if !line.IsFullyReceived() {
				allReceived = false
				break
			}
		}
		if allReceived {
			return StatusReceived
		}
	}
	if receivedNow > 0 {
		return StatusPartiallyReceived
	}
	return current
}

// MovementFilter narrows ledger listings.
type MovementFilter struct {
	ProductID  int64        `json:"product_id"`
	LocationID int64        `json:"location_id"`
	Type       MovementType `json:"type"`
	DateFrom   *time.Time   `json:"date_from"`
	DateTo     *time.Time   `json:"date_to"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
}

// OrderFilter narrows purchase order listings.
type OrderFilter struct {
	SupplierID int64       `json:"supplier_id"`
	Status     OrderStatus `json:"status"`
	DateFrom   *time.Time  `json:"date_from"`
	DateTo     *time.Time  `json:"date_to"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// MovementParams describes a single requested stock movement.
type MovementParams struct {
	ProductID  int64
	LocationID int64
	Type       MovementType
	Quantity   int
	Reference  string
	Notes      string
	Actor      string
}

// TransferParams describes a stock transfer between two locations.
type TransferParams struct {
	ProductID      int64
	FromLocationID int64
	ToLocationID   int64
	Quantity       int
	Reference      string
	Actor          string
}

// TransferResult pairs the two ledger entries a transfer produced.
type TransferResult struct {
	Out *StockMovement `json:"out"`
	In  *StockMovement `json:"in"`
}

// OrderLineInput is a requested order line on create/edit.
type OrderLineInput struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateOrderParams describes a new purchase order request.
type CreateOrderParams struct {
	SupplierID   int64
	OrderDate    *time.Time
	ExpectedDate *time.Time
	TaxRate      *decimal.Decimal
	Notes        string
	Actor        string
	Lines        []OrderLineInput
}

// EditOrderParams describes an order edit. Nil fields are left
// unchanged; a non-nil Lines replaces the full line set.
type EditOrderParams struct {
	SupplierID   *int64
	ExpectedDate *time.Time
	Notes        *string
	TaxRate      *decimal.Decimal
	Lines        []OrderLineInput
}

// ReceiptLine is one submitted line of a receiving call.
type ReceiptLine struct {
	ProductID        int64 `json:"product_id"`
	ReceivedQuantity int   `json:"received_quantity"`
}

// ReceiptDetail records what was actually booked for one line.
type ReceiptDetail struct {
	ProductID        int64  `json:"product_id"`
	ProductName      string `json:"product_name"`
	OrderedQuantity  int    `json:"ordered_quantity"`
	ReceivedQuantity int    `json:"received_quantity"`
}

// ReceiveResult is the outcome of a receiving call.
type ReceiveResult struct {
	Details       []ReceiptDetail `json:"received_details"`
	OldStatus     OrderStatus     `json:"old_status"`
	NewStatus     OrderStatus     `json:"new_status"`
	TotalReceived int             `json:"total_received"`
}
