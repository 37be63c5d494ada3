package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/primastock/inventory-service/internal/cache"
	"github.com/primastock/inventory-service/internal/config"
	"github.com/primastock/inventory-service/internal/domain"
	"github.com/primastock/inventory-service/internal/events"
	"github.com/primastock/inventory-service/internal/repository"
)

// StockService is the stock movement engine and transfer orchestrator.
// It validates requests before any I/O, delegates the atomic
// read-modify-write to the repository, and publishes domain events
// after commit.
type StockService struct {
	stocks  repository.StockRepository
	catalog repository.CatalogRepository
	cache   cache.StockLevelCache
	bus     *events.Bus
	policy  config.InventoryConfig
}

func NewStockService(stocks repository.StockRepository, catalog repository.CatalogRepository, levelCache cache.StockLevelCache, bus *events.Bus, policy config.InventoryConfig) *StockService {
	return &StockService{
		stocks:  stocks,
		catalog: catalog,
		cache:   levelCache,
		bus:     bus,
		policy:  policy,
	}
}

// ApplyMovement applies a single in/out/adjustment movement. The
// quantity shape is rejected before any I/O; everything else fails
// atomically inside the repository.
func (s *StockService) ApplyMovement(ctx context.Context, params domain.MovementParams) (*domain.StockMovement, error) {
	if !params.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMovementType, params.Type)
	}
	if err := validateQuantityShape(params.Type, params.Quantity); err != nil {
		return nil, err
	}

	movement, newQuantity, err := s.stocks.RecordMovement(ctx, params)
	if err != nil {
		return nil, err
	}

	s.invalidateLevel(ctx, params.ProductID, params.LocationID)
	s.bus.Publish(domain.NewStockMovementRecorded(*movement, newQuantity))
	s.checkLowStock(ctx, params.ProductID, params.LocationID, newQuantity)

	log.Info().
		Int64("movement_id", movement.ID).
		Int64("product_id", movement.ProductID).
		Int64("location_id", movement.LocationID).
		Str("type", string(movement.Type)).
		Int("quantity", movement.Quantity).
		Int("new_quantity", newQuantity).
		Str("actor", movement.CreatedBy).
		Msg("stock movement recorded")

	return movement, nil
}

// Transfer moves quantity between two locations as one atomic unit:
// either both ledger entries commit or neither does.
func (s *StockService) Transfer(ctx context.Context, params domain.TransferParams) (*domain.TransferResult, error) {
	if params.FromLocationID == params.ToLocationID {
		return nil, domain.ErrSameLocation
	}
	if params.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	fromLocation, err := s.catalog.GetLocation(ctx, params.FromLocationID)
	if err != nil {
		return nil, err
	}
	toLocation, err := s.catalog.GetLocation(ctx, params.ToLocationID)
	if err != nil {
		return nil, err
	}

	reference := params.Reference
	if reference == "" {
		reference = "TRF-" + uuid.NewString()[:8]
	}

	out := domain.MovementParams{
		ProductID:  params.ProductID,
		LocationID: params.FromLocationID,
		Type:       domain.MovementOut,
		Quantity:   params.Quantity,
		Reference:  reference,
		Notes:      "Transfer to " + toLocation.Name,
		Actor:      params.Actor,
	}
	in := domain.MovementParams{
		ProductID:  params.ProductID,
		LocationID: params.ToLocationID,
		Type:       domain.MovementIn,
		Quantity:   params.Quantity,
		Reference:  reference,
		Notes:      "Transfer from " + fromLocation.Name,
		Actor:      params.Actor,
	}

	result, err := s.stocks.RecordTransfer(ctx, out, in)
	if err != nil {
		return nil, err
	}

	s.invalidateLevel(ctx, params.ProductID, params.FromLocationID)
	s.invalidateLevel(ctx, params.ProductID, params.ToLocationID)
	s.bus.Publish(domain.NewStockTransferred(params, reference))

	log.Info().
		Int64("product_id", params.ProductID).
		Int64("from_location_id", params.FromLocationID).
		Int64("to_location_id", params.ToLocationID).
		Int("quantity", params.Quantity).
		Str("reference", reference).
		Msg("stock transferred")

	return result, nil
}

// GetStockLevel returns the current level for a pair, reading through
// the cache. Cache failures degrade to the database, never to an
// error.
func (s *StockService) GetStockLevel(ctx context.Context, productID, locationID int64) (*domain.StockLevel, error) {
	if cached, ok, err := s.cache.GetLevel(ctx, productID, locationID); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("stock level cache read failed")
	}

	level, err := s.stocks.GetStockLevel(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetLevel(ctx, level); err != nil {
		log.Warn().Err(err).Msg("stock level cache write failed")
	}
	return level, nil
}

func (s *StockService) ListLocationStock(ctx context.Context, locationID int64) ([]domain.StockLevel, error) {
	if _, err := s.catalog.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	return s.stocks.ListLocationStock(ctx, locationID)
}

func (s *StockService) ListLowStock(ctx context.Context, limit int) ([]domain.StockLevel, error) {
	return s.stocks.ListLowStock(ctx, limit)
}

func (s *StockService) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMovementType, filter.Type)
	}
	return s.stocks.ListMovements(ctx, filter)
}

// RebuildStockLevels replays the ledger and repairs drifted levels.
func (s *StockService) RebuildStockLevels(ctx context.Context) (int, error) {
	corrected, err := s.stocks.RebuildStockLevels(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("stock level cache invalidation failed")
	}
	return corrected, nil
}

func (s *StockService) invalidateLevel(ctx context.Context, productID, locationID int64) {
	if err := s.cache.InvalidateLevel(ctx, productID, locationID); err != nil {
		log.Warn().Err(err).
			Int64("product_id", productID).
			Int64("location_id", locationID).
			Msg("stock level cache invalidation failed")
	}
}

func (s *StockService) checkLowStock(ctx context.Context, productID, locationID int64, newQuantity int) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		log.Warn().Err(err).Int64("product_id", productID).Msg("low stock check skipped")
		return
	}
	threshold := product.MinStockLevel
	if threshold <= 0 {
		threshold = s.policy.LowStockThreshold
	}
	if newQuantity <= threshold {
		s.bus.Publish(domain.NewLowStockDetected(productID, locationID, newQuantity, threshold))
	}
}

func validateQuantityShape(kind domain.MovementType, quantity int) error {
	switch kind {
	case domain.MovementIn, domain.MovementOut:
		if quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
	case domain.MovementAdjustment:
		if quantity < 0 {
			return domain.ErrInvalidQuantity
		}
	}
	return nil
}
