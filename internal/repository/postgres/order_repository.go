package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/primastock/inventory-service/internal/domain"
)

type orderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *orderRepository {
	return &orderRepository{db: db}
}

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *domain.PurchaseOrder, lines []domain.PurchaseOrderLine) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var supplierActive bool
		err := tx.GetContext(ctx, &supplierActive,
			`SELECT is_active FROM suppliers WHERE id = $1`, order.SupplierID)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !supplierActive) {
			return domain.ErrUnknownSupplier
		}
		if err != nil {
			return fmt.Errorf("failed to check supplier: %w", err)
		}

		insert := `
			INSERT INTO purchase_orders
				(order_number, supplier_id, status, order_date, expected_date,
				 subtotal, tax_rate, tax_amount, total_amount, notes, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
			RETURNING id, created_at, updated_at
		`
		err = tx.QueryRowContext(ctx, insert,
			order.OrderNumber, order.SupplierID, order.Status, order.OrderDate, order.ExpectedDate,
			order.Subtotal, order.TaxRate, order.TaxAmount, order.TotalAmount,
			order.Notes, order.CreatedBy,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if isUniqueViolation(err) {
			return domain.ErrDuplicateOrderNumber
		}
		if err != nil {
			return fmt.Errorf("failed to insert purchase order: %w", err)
		}

		if err := insertOrderLinesTx(ctx, tx, order.ID, lines); err != nil {
			return err
		}
		order.Lines = lines
		return nil
	})
}

func insertOrderLinesTx(ctx context.Context, tx *sqlx.Tx, orderID int64, lines []domain.PurchaseOrderLine) error {
	insert := `
		INSERT INTO purchase_order_lines
			(purchase_order_id, product_id, quantity, unit_price, line_total, received_quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	for i := range lines {
		var productActive bool
		err := tx.GetContext(ctx, &productActive,
			`SELECT is_active FROM products WHERE id = $1`, lines[i].ProductID)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !productActive) {
			return fmt.Errorf("%w: product %d", domain.ErrUnknownProduct, lines[i].ProductID)
		}
		if err != nil {
			return fmt.Errorf("failed to check product: %w", err)
		}

		lines[i].PurchaseOrderID = orderID
		if err := tx.QueryRowContext(ctx, insert,
			orderID, lines[i].ProductID, lines[i].Quantity,
			lines[i].UnitPrice, lines[i].LineTotal, lines[i].ReceivedQuantity,
		).Scan(&lines[i].ID); err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) GetOrder(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	return r.getOrder(ctx, r.db, `id = $1`, id)
}

func (r *orderRepository) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.PurchaseOrder, error) {
	return r.getOrder(ctx, r.db, `order_number = $1`, orderNumber)
}

func (r *orderRepository) getOrder(ctx context.Context, q sqlx.QueryerContext, where string, arg interface{}) (*domain.PurchaseOrder, error) {
	var order domain.PurchaseOrder
	query := fmt.Sprintf(`
		SELECT id, order_number, supplier_id, status, order_date, expected_date,
		       subtotal, tax_rate, tax_amount, total_amount, notes, created_by, created_at, updated_at
		FROM purchase_orders
		WHERE %s
	`, where)
	err := sqlx.GetContext(ctx, q, &order, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}

	lines, err := loadOrderLines(ctx, q, order.ID, false)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return &order, nil
}

func loadOrderLines(ctx context.Context, q sqlx.QueryerContext, orderID int64, forUpdate bool) ([]domain.PurchaseOrderLine, error) {
	lock := ""
	if forUpdate {
		lock = "FOR UPDATE OF l"
	}
	query := fmt.Sprintf(`
		SELECT l.id, l.purchase_order_id, l.product_id, p.name AS product_name,
		       l.quantity, l.unit_price, l.line_total, l.received_quantity
		FROM purchase_order_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.purchase_order_id = $1
		ORDER BY l.id ASC
		%s
	`, lock)

	var lines []domain.PurchaseOrderLine
	if err := sqlx.SelectContext(ctx, q, &lines, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to load order lines: %w", err)
	}
	return lines, nil
}

func (r *orderRepository) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.PurchaseOrder, error) {
	conditions := []string{}
	args := []interface{}{}
	idx := 1

	addCondition := func(clause string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(clause, idx))
		args = append(args, value)
		idx++
	}

	if filter.SupplierID > 0 {
		addCondition("supplier_id = $%d", filter.SupplierID)
	}
	if filter.Status != "" {
		addCondition("status = $%d", filter.Status)
	}
	if filter.DateFrom != nil {
		addCondition("order_date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		addCondition("order_date <= $%d", *filter.DateTo)
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
		SELECT id, order_number, supplier_id, status, order_date, expected_date,
		       subtotal, tax_rate, tax_amount, total_amount, notes, created_by, created_at, updated_at
		FROM purchase_orders
		%s
		ORDER BY order_date DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, idx, idx+1)
	args = append(args, limit, offset)

	var orders []domain.PurchaseOrder
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) UpdateOrder(ctx context.Context, order *domain.PurchaseOrder, lines []domain.PurchaseOrderLine) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockOrderTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if !current.Status.Modifiable() {
			return fmt.Errorf("%w: status %s", domain.ErrOrderNotModifiable, current.Status)
		}

		update := `
			UPDATE purchase_orders
			SET supplier_id = $1, expected_date = $2, notes = $3,
			    subtotal = $4, tax_rate = $5, tax_amount = $6, total_amount = $7,
			    updated_at = NOW()
			WHERE id = $8
		`
		if _, err := tx.ExecContext(ctx, update,
			order.SupplierID, order.ExpectedDate, order.Notes,
			order.Subtotal, order.TaxRate, order.TaxAmount, order.TotalAmount,
			order.ID,
		); err != nil {
			return fmt.Errorf("failed to update purchase order: %w", err)
		}

		// Lines are replaced wholesale on edit.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM purchase_order_lines WHERE purchase_order_id = $1`, order.ID); err != nil {
			return fmt.Errorf("failed to delete order lines: %w", err)
		}
		if err := insertOrderLinesTx(ctx, tx, order.ID, lines); err != nil {
			return err
		}

		order.Status = current.Status
		order.Lines = lines
		return nil
	})
}

func (r *orderRepository) ChangeStatus(ctx context.Context, orderID int64, newStatus domain.OrderStatus, notes string) (*domain.PurchaseOrder, domain.OrderStatus, error) {
	var (
		updated   *domain.PurchaseOrder
		oldStatus domain.OrderStatus
	)
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		oldStatus = current.Status

		if !current.Status.CanTransitionTo(newStatus) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, newStatus)
		}

		orderNotes := current.Notes
		if notes != "" {
			if orderNotes != "" {
				orderNotes += "\n\n"
			}
			orderNotes += notes
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE purchase_orders SET status = $1, notes = $2, updated_at = NOW() WHERE id = $3`,
			newStatus, orderNotes, orderID); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		updated, err = r.getOrder(ctx, tx, `id = $1`, orderID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return updated, oldStatus, nil
}

func (r *orderRepository) ReceiveItems(ctx context.Context, orderID int64, receiptLines []domain.ReceiptLine, locationID int64, notes, actor string, allowOverReceipt bool) (*domain.ReceiveResult, *domain.PurchaseOrder, error) {
	var (
		result  domain.ReceiveResult
		updated *domain.PurchaseOrder
	)
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := lockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusConfirmed && order.Status != domain.StatusPartiallyReceived {
			return fmt.Errorf("%w: status %s", domain.ErrOrderNotReceivable, order.Status)
		}
		result.OldStatus = order.Status
		if err := checkLocationExistsTx(ctx, tx, locationID); err != nil {
			return err
		}

		lines, err := loadOrderLines(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		lineByProduct := make(map[int64]*domain.PurchaseOrderLine, len(lines))
		for i := range lines {
			lineByProduct[lines[i].ProductID] = &lines[i]
		}

		movementNotes := "Purchase order received"
		if notes != "" {
			movementNotes += " - " + notes
		}

		totalReceived := 0
		for _, receipt := range receiptLines {
			line, ok := lineByProduct[receipt.ProductID]
			if !ok {
				return fmt.Errorf("%w: product %d", domain.ErrLineNotInOrder, receipt.ProductID)
			}
			if receipt.ReceivedQuantity <= 0 {
				continue
			}
			if !allowOverReceipt && line.ReceivedQuantity+receipt.ReceivedQuantity > line.Quantity {
				return fmt.Errorf("%w: product %s", domain.ErrOverReceipt, line.ProductName)
			}

			if _, _, err := applyMovementTx(ctx, tx, domain.MovementParams{
				ProductID:  receipt.ProductID,
				LocationID: locationID,
				Type:       domain.MovementIn,
				Quantity:   receipt.ReceivedQuantity,
				Reference:  order.OrderNumber,
				Notes:      movementNotes,
				Actor:      actor,
			}); err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE purchase_order_lines SET received_quantity = received_quantity + $1 WHERE id = $2`,
				receipt.ReceivedQuantity, line.ID); err != nil {
				return fmt.Errorf("failed to update received quantity: %w", err)
			}
			line.ReceivedQuantity += receipt.ReceivedQuantity

			result.Details = append(result.Details, domain.ReceiptDetail{
				ProductID:        line.ProductID,
				ProductName:      line.ProductName,
				OrderedQuantity:  line.Quantity,
				ReceivedQuantity: receipt.ReceivedQuantity,
			})
			totalReceived += receipt.ReceivedQuantity
		}

		result.TotalReceived = totalReceived
		// Status derivation uses the durable cumulative totals, not the
		// quantities submitted in this one call.
		result.NewStatus = domain.DeriveReceivingStatus(lines, totalReceived, order.Status)

		if result.NewStatus != order.Status {
			if _, err := tx.ExecContext(ctx,
				`UPDATE purchase_orders SET status = $1, updated_at = NOW() WHERE id = $2`,
				result.NewStatus, orderID); err != nil {
				return fmt.Errorf("failed to update order status: %w", err)
			}
		}

		updated, err = r.getOrder(ctx, tx, `id = $1`, orderID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &result, updated, nil
}

func (r *orderRepository) MaxOrderNumber(ctx context.Context, prefix string) (string, error) {
	var orderNumber string
	query := `
		SELECT order_number
		FROM purchase_orders
		WHERE order_number LIKE $1 || '%'
		ORDER BY order_number DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &orderNumber, query, prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query max order number: %w", err)
	}
	return orderNumber, nil
}

// lockOrderTx fetches the order header with a row lock so transition
// check-and-write serializes per order.
func lockOrderTx(ctx context.Context, tx *sqlx.Tx, orderID int64) (*domain.PurchaseOrder, error) {
	var order domain.PurchaseOrder
	query := `
		SELECT id, order_number, supplier_id, status, order_date, expected_date,
		       subtotal, tax_rate, tax_amount, total_amount, notes, created_by, created_at, updated_at
		FROM purchase_orders
		WHERE id = $1
		FOR UPDATE
	`
	err := tx.GetContext(ctx, &order, query, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock purchase order: %w", err)
	}
	return &order, nil
}
