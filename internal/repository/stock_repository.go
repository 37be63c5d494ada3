package repository

import (
	"context"

	"github.com/primastock/inventory-service/internal/domain"
)

// StockRepository is the persistence port for the quantity store and
// the movement ledger. Every mutating method is one atomic unit: the
// ledger append and the level update commit together or not at all.
type StockRepository interface {
	// GetStockLevel returns the level for a (product, location) pair.
	// A pair with no row yet reads as a zero level, not an error.
	GetStockLevel(ctx context.Context, productID, locationID int64) (*domain.StockLevel, error)

	// ListLocationStock returns all levels held at a location.
	ListLocationStock(ctx context.Context, locationID int64) ([]domain.StockLevel, error)

	// ListLowStock returns levels at or below the product's minimum
	// stock threshold, lowest first.
	ListLowStock(ctx context.Context, limit int) ([]domain.StockLevel, error)

	// ListMovements returns ledger entries matching the filter, newest
	// first.
	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error)

	// RecordMovement applies a single movement: locks the level row,
	// recomputes the quantity, appends the ledger entry and writes the
	// new level. Returns the ledger entry and the resulting quantity.
	RecordMovement(ctx context.Context, params domain.MovementParams) (*domain.StockMovement, int, error)

	// RecordTransfer applies the out and in legs as one atomic unit.
	// If either leg fails, neither is observable.
	RecordTransfer(ctx context.Context, out, in domain.MovementParams) (*domain.TransferResult, error)

	// RebuildStockLevels replays the full ledger in commit order and
	// repairs every stock level row that drifted from it. Returns the
	// number of rows corrected.
	RebuildStockLevels(ctx context.Context) (int, error)
}
