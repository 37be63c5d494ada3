package domain

import "errors"

// Failure kinds surfaced by the ledger and order services. All of them
// are per-call and leave no partial side effects behind; callers match
// with errors.Is.
var (
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrUnknownProduct       = errors.New("product not found")
	ErrUnknownLocation      = errors.New("location not found")
	ErrUnknownSupplier      = errors.New("supplier not found")
	ErrInvalidQuantity      = errors.New("quantity must be greater than zero")
	ErrInvalidMovementType  = errors.New("invalid movement type")
	ErrSameLocation         = errors.New("source and destination locations must differ")
	ErrOrderNotFound        = errors.New("purchase order not found")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrOrderNotModifiable   = errors.New("order can no longer be modified")
	ErrOrderNotReceivable   = errors.New("order is not in a receivable status")
	ErrLineNotInOrder       = errors.New("product is not part of this order")
	ErrOverReceipt          = errors.New("received quantity exceeds ordered quantity")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrConcurrencyConflict  = errors.New("concurrent update conflict")
)
