package domain

import "strings"

// OrderStatus is the purchase order lifecycle state.
type OrderStatus string

const (
	StatusPending           OrderStatus = "pending"
	StatusConfirmed         OrderStatus = "confirmed"
	StatusPartiallyReceived OrderStatus = "partially_received"
	StatusReceived          OrderStatus = "received"
	StatusCancelled         OrderStatus = "cancelled"
)

// orderStatusTransitions is the closed set of legal lifecycle edges.
// Anything not listed here is rejected without mutation.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:           {StatusConfirmed, StatusCancelled},
	StatusConfirmed:         {StatusReceived, StatusPartiallyReceived, StatusCancelled},
	StatusPartiallyReceived: {StatusReceived, StatusCancelled},
	StatusReceived:          {},
	StatusCancelled:         {},
}

// Valid reports whether s is a known lifecycle state.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> next is legal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return len(orderStatusTransitions[s]) == 0 && s.Valid()
}

// Modifiable reports whether the order's lines, supplier and dates may
// still be edited in this state.
func (s OrderStatus) Modifiable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// ParseOrderStatus returns the status for a label (case-insensitive).
func ParseOrderStatus(label string) (OrderStatus, bool) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(label)))
	return s, s.Valid()
}
