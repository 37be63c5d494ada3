package domain

import "strings"

// MovementType classifies a ledger entry.
type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

// ParseMovementType returns the movement type for a label
// (case-insensitive).
func ParseMovementType(label string) (MovementType, bool) {
	t := MovementType(strings.ToLower(strings.TrimSpace(label)))
	return t, t.Valid()
}

// NextQuantity computes the on-hand quantity that would result from
// applying a movement to the current level. in adds, out subtracts,
// adjustment replaces the on-hand quantity with the submitted value.
//
// Outbound movements are checked against the available quantity
// (on-hand minus reserved) so issuance can never eat into stock that
// is reserved for other commitments. Adjustments record a counted
// reality and are allowed to set the quantity below the reserved
// amount.
func NextQuantity(current, reserved int, kind MovementType, quantity int) (int, error) {
	switch kind {
	case MovementIn:
		if quantity <= 0 {
			return 0, ErrInvalidQuantity
		}
		return current + quantity, nil
	case MovementOut:
		if quantity <= 0 {
			return 0, ErrInvalidQuantity
		}
		if current-reserved-quantity < 0 {
			return 0, ErrInsufficientStock
		}
		return current - quantity, nil
	case MovementAdjustment:
		if quantity < 0 {
			return 0, ErrInvalidQuantity
		}
		return quantity, nil
	default:
		return 0, ErrInvalidMovementType
	}
}
