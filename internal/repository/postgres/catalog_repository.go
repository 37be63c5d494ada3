package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/primastock/inventory-service/internal/domain"
)

type catalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	query := `
		SELECT id, sku, name, cost_price, selling_price, min_stock_level, is_active, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &product, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUnknownProduct
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

func (r *catalogRepository) GetLocation(ctx context.Context, id int64) (*domain.Location, error) {
	var location domain.Location
	query := `
		SELECT id, name, is_active, created_at, updated_at
		FROM locations
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &location, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUnknownLocation
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return &location, nil
}

func (r *catalogRepository) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	var supplier domain.Supplier
	query := `
		SELECT id, name, email, phone, is_active, created_at, updated_at
		FROM suppliers
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &supplier, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUnknownSupplier
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	return &supplier, nil
}
