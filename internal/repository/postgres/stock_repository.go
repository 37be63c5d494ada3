package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/primastock/inventory-service/internal/domain"
)

type stockRepository struct {
	db *DB
}

func NewStockRepository(db *DB) *stockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) GetStockLevel(ctx context.Context, productID, locationID int64) (*domain.StockLevel, error) {
	var level domain.StockLevel
	query := `
		SELECT id, product_id, location_id, quantity, reserved_quantity, updated_at
		FROM stock_levels
		WHERE product_id = $1 AND location_id = $2
	`
	err := r.db.GetContext(ctx, &level, query, productID, locationID)
	if errors.Is(err, sql.ErrNoRows) {
		// No movement has touched this pair yet; it reads as zero.
		return &domain.StockLevel{ProductID: productID, LocationID: locationID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock level: %w", err)
	}
	return &level, nil
}

func (r *stockRepository) ListLocationStock(ctx context.Context, locationID int64) ([]domain.StockLevel, error) {
	query := `
		SELECT id, product_id, location_id, quantity, reserved_quantity, updated_at
		FROM stock_levels
		WHERE location_id = $1
		ORDER BY quantity DESC
	`
	var levels []domain.StockLevel
	if err := r.db.SelectContext(ctx, &levels, query, locationID); err != nil {
		return nil, fmt.Errorf("failed to list location stock: %w", err)
	}
	return levels, nil
}

func (r *stockRepository) ListLowStock(ctx context.Context, limit int) ([]domain.StockLevel, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT s.id, s.product_id, s.location_id, s.quantity, s.reserved_quantity, s.updated_at
		FROM stock_levels s
		JOIN products p ON p.id = s.product_id
		WHERE s.quantity <= p.min_stock_level AND s.quantity > 0
		ORDER BY s.quantity ASC
		LIMIT $1
	`
	var levels []domain.StockLevel
	if err := r.db.SelectContext(ctx, &levels, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list low stock: %w", err)
	}
	return levels, nil
}

func (r *stockRepository) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	conditions := []string{}
	args := []interface{}{}
	idx := 1

	addCondition := func(clause string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(clause, idx))
		args = append(args, value)
		idx++
	}

	if filter.ProductID > 0 {
		addCondition("product_id = $%d", filter.ProductID)
	}
	if filter.LocationID > 0 {
		addCondition("location_id = $%d", filter.LocationID)
	}
	if filter.Type != "" {
		addCondition("type = $%d", filter.Type)
	}
	if filter.DateFrom != nil {
		addCondition("created_at >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		addCondition("created_at <= $%d", *filter.DateTo)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT id, product_id, location_id, type, quantity, reference, notes, created_by, created_at
		FROM stock_movements
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, idx, idx+1)
	args = append(args, limit, offset)

	var movements []domain.StockMovement
	if err := r.db.SelectContext(ctx, &movements, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return movements, nil
}

func (r *stockRepository) RecordMovement(ctx context.Context, params domain.MovementParams) (*domain.StockMovement, int, error) {
	var (
		movement    *domain.StockMovement
		newQuantity int
	)
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		movement, newQuantity, err = applyMovementTx(ctx, tx, params)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return movement, newQuantity, nil
}

func (r *stockRepository) RecordTransfer(ctx context.Context, out, in domain.MovementParams) (*domain.TransferResult, error) {
	var result domain.TransferResult
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		// Lock both level rows up front in a deterministic order so two
		// opposite transfers cannot deadlock.
		first, second := out.LocationID, in.LocationID
		if second < first {
			first, second = second, first
		}
		for _, locationID := range []int64{first, second} {
			if _, err := lockStockLevelTx(ctx, tx, out.ProductID, locationID); err != nil {
				return err
			}
		}

		outMovement, _, err := applyMovementTx(ctx, tx, out)
		if err != nil {
			return err
		}
		inMovement, _, err := applyMovementTx(ctx, tx, in)
		if err != nil {
			return err
		}

		result.Out = outMovement
		result.In = inMovement
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// applyMovementTx runs the full movement algorithm inside the caller's
// transaction: existence checks, row lock, arithmetic, ledger append,
// level update.
func applyMovementTx(ctx context.Context, tx *sqlx.Tx, params domain.MovementParams) (*domain.StockMovement, int, error) {
	if err := checkProductExistsTx(ctx, tx, params.ProductID); err != nil {
		return nil, 0, err
	}
	if err := checkLocationExistsTx(ctx, tx, params.LocationID); err != nil {
		return nil, 0, err
	}

	level, err := lockStockLevelTx(ctx, tx, params.ProductID, params.LocationID)
	if err != nil {
		return nil, 0, err
	}

	newQuantity, err := domain.NextQuantity(level.Quantity, level.ReservedQuantity, params.Type, params.Quantity)
	if err != nil {
		return nil, 0, err
	}

	movement := &domain.StockMovement{
		ProductID:  params.ProductID,
		LocationID: params.LocationID,
		Type:       params.Type,
		Quantity:   params.Quantity,
		Reference:  params.Reference,
		Notes:      params.Notes,
		CreatedBy:  params.Actor,
	}
	insert := `
		INSERT INTO stock_movements (product_id, location_id, type, quantity, reference, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`
	if err := tx.QueryRowContext(ctx, insert,
		movement.ProductID, movement.LocationID, movement.Type, movement.Quantity,
		movement.Reference, movement.Notes, movement.CreatedBy,
	).Scan(&movement.ID, &movement.CreatedAt); err != nil {
		return nil, 0, fmt.Errorf("failed to append movement: %w", err)
	}

	update := `UPDATE stock_levels SET quantity = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.ExecContext(ctx, update, newQuantity, level.ID); err != nil {
		return nil, 0, fmt.Errorf("failed to update stock level: %w", err)
	}

	return movement, newQuantity, nil
}

// lockStockLevelTx fetches the level row for update, creating it lazily
// with zero quantities on first movement. The lock is held until the
// surrounding transaction commits or rolls back.
func lockStockLevelTx(ctx context.Context, tx *sqlx.Tx, productID, locationID int64) (*domain.StockLevel, error) {
	ensure := `
		INSERT INTO stock_levels (product_id, location_id, quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, 0, 0, NOW())
		ON CONFLICT (product_id, location_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, ensure, productID, locationID); err != nil {
		return nil, fmt.Errorf("failed to ensure stock level row: %w", err)
	}

	var level domain.StockLevel
	query := `
		SELECT id, product_id, location_id, quantity, reserved_quantity, updated_at
		FROM stock_levels
		WHERE product_id = $1 AND location_id = $2
		FOR UPDATE
	`
	if err := tx.GetContext(ctx, &level, query, productID, locationID); err != nil {
		return nil, fmt.Errorf("failed to lock stock level: %w", err)
	}
	return &level, nil
}

func checkProductExistsTx(ctx context.Context, tx *sqlx.Tx, productID int64) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID); err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return domain.ErrUnknownProduct
	}
	return nil
}

func checkLocationExistsTx(ctx context.Context, tx *sqlx.Tx, locationID int64) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1)`, locationID); err != nil {
		return fmt.Errorf("failed to check location: %w", err)
	}
	if !exists {
		return domain.ErrUnknownLocation
	}
	return nil
}

// RebuildStockLevels replays every ledger entry in commit order and
// repairs level rows that drifted from the replayed quantities.
func (r *stockRepository) RebuildStockLevels(ctx context.Context) (int, error) {
	type pair struct {
		productID  int64
		locationID int64
	}

	corrected := 0
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := tx.QueryxContext(ctx, `
			SELECT product_id, location_id, type, quantity
			FROM stock_movements
			ORDER BY id ASC
		`)
		if err != nil {
			return fmt.Errorf("failed to read ledger: %w", err)
		}
		defer rows.Close()

		replayed := map[pair]int{}
		for rows.Next() {
			var (
				p    pair
				kind domain.MovementType
				qty  int
			)
			if err := rows.Scan(&p.productID, &p.locationID, &kind, &qty); err != nil {
				return fmt.Errorf("failed to scan movement: %w", err)
			}
			switch kind {
			case domain.MovementIn:
				replayed[p] += qty
			case domain.MovementOut:
				replayed[p] -= qty
			case domain.MovementAdjustment:
				replayed[p] = qty
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate ledger: %w", err)
		}

		var levels []domain.StockLevel
		if err := tx.SelectContext(ctx, &levels, `
			SELECT id, product_id, location_id, quantity, reserved_quantity, updated_at
			FROM stock_levels
			FOR UPDATE
		`); err != nil {
			return fmt.Errorf("failed to lock stock levels: %w", err)
		}

		seen := map[pair]bool{}
		for _, level := range levels {
			p := pair{level.ProductID, level.LocationID}
			seen[p] = true
			want := replayed[p]
			if level.Quantity == want {
				continue
			}
			log.Warn().
				Int64("product_id", p.productID).
				Int64("location_id", p.locationID).
				Int("stored", level.Quantity).
				Int("replayed", want).
				Msg("stock level drifted from ledger, repairing")
			if _, err := tx.ExecContext(ctx,
				`UPDATE stock_levels SET quantity = $1, updated_at = NOW() WHERE id = $2`,
				want, level.ID); err != nil {
				return fmt.Errorf("failed to repair stock level: %w", err)
			}
			corrected++
		}

		for p, want := range replayed {
			if seen[p] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO stock_levels (product_id, location_id, quantity, reserved_quantity, updated_at)
				VALUES ($1, $2, $3, 0, NOW())
			`, p.productID, p.locationID, want); err != nil {
				return fmt.Errorf("failed to recreate stock level: %w", err)
			}
			corrected++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}
	return corrected, nil
}
