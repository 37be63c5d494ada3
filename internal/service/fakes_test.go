package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/primastock/inventory-service/internal/domain"
)

// In-memory repository doubles. They enforce the same invariants as the
// SQL implementations (atomic movements, serialized receives, duplicate
// order numbers) so the services can be exercised without a database.

type levelKey struct {
	productID  int64
	locationID int64
}

type fakeStockRepo struct {
	mu        sync.Mutex
	levels    map[levelKey]*domain.StockLevel
	movements []domain.StockMovement
	nextID    int64

	// When non-nil, movements against ids outside these sets are
	// rejected the way the SQL implementation rejects unknown rows.
	knownProducts  map[int64]bool
	knownLocations map[int64]bool
}

func newFakeStockRepo() *fakeStockRepo {
	return &fakeStockRepo{levels: map[levelKey]*domain.StockLevel{}}
}

func (f *fakeStockRepo) setLevel(productID, locationID int64, quantity, reserved int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := levelKey{productID, locationID}
	f.levels[key] = &domain.StockLevel{
		ProductID:        productID,
		LocationID:       locationID,
		Quantity:         quantity,
		ReservedQuantity: reserved,
	}
}

func (f *fakeStockRepo) GetStockLevel(ctx context.Context, productID, locationID int64) (*domain.StockLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if level, ok := f.levels[levelKey{productID, locationID}]; ok {
		copied := *level
		return &copied, nil
	}
	return &domain.StockLevel{ProductID: productID, LocationID: locationID}, nil
}

func (f *fakeStockRepo) ListLocationStock(ctx context.Context, locationID int64) ([]domain.StockLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.StockLevel
	for _, level := range f.levels {
		if level.LocationID == locationID {
			out = append(out, *level)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quantity > out[j].Quantity })
	return out, nil
}

func (f *fakeStockRepo) ListLowStock(ctx context.Context, limit int) ([]domain.StockLevel, error) {
	return nil, nil
}

func (f *fakeStockRepo) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.StockMovement
	for i := len(f.movements) - 1; i >= 0; i-- {
		m := f.movements[i]
		if filter.ProductID > 0 && m.ProductID != filter.ProductID {
			continue
		}
		if filter.LocationID > 0 && m.LocationID != filter.LocationID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStockRepo) RecordMovement(ctx context.Context, params domain.MovementParams) (*domain.StockMovement, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applyLocked(params)
}

func (f *fakeStockRepo) RecordTransfer(ctx context.Context, out, in domain.MovementParams) (*domain.TransferResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Snapshot so a failed leg leaves nothing behind.
	saved := map[levelKey]domain.StockLevel{}
	for key, level := range f.levels {
		saved[key] = *level
	}
	savedMovements := len(f.movements)

	outMovement, _, err := f.applyLocked(out)
	if err != nil {
		return nil, err
	}
	inMovement, _, err := f.applyLocked(in)
	if err != nil {
		f.levels = map[levelKey]*domain.StockLevel{}
		for key, level := range saved {
			copied := level
			f.levels[key] = &copied
		}
		f.movements = f.movements[:savedMovements]
		return nil, err
	}

	return &domain.TransferResult{Out: outMovement, In: inMovement}, nil
}

func (f *fakeStockRepo) RebuildStockLevels(ctx context.Context) (int, error) {
	return 0, nil
}

func (f *fakeStockRepo) applyLocked(params domain.MovementParams) (*domain.StockMovement, int, error) {
	if f.knownProducts != nil && !f.knownProducts[params.ProductID] {
		return nil, 0, domain.ErrUnknownProduct
	}
	if f.knownLocations != nil && !f.knownLocations[params.LocationID] {
		return nil, 0, domain.ErrUnknownLocation
	}

	key := levelKey{params.ProductID, params.LocationID}
	level, ok := f.levels[key]
	if !ok {
		level = &domain.StockLevel{ProductID: params.ProductID, LocationID: params.LocationID}
		f.levels[key] = level
	}

	newQuantity, err := domain.NextQuantity(level.Quantity, level.ReservedQuantity, params.Type, params.Quantity)
	if err != nil {
		return nil, 0, err
	}

	f.nextID++
	movement := domain.StockMovement{
		ID:         f.nextID,
		ProductID:  params.ProductID,
		LocationID: params.LocationID,
		Type:       params.Type,
		Quantity:   params.Quantity,
		Reference:  params.Reference,
		Notes:      params.Notes,
		CreatedBy:  params.Actor,
		CreatedAt:  time.Now(),
	}
	f.movements = append(f.movements, movement)
	level.Quantity = newQuantity

	return &movement, newQuantity, nil
}

type fakeCatalog struct {
	products  map[int64]*domain.Product
	locations map[int64]*domain.Location
	suppliers map[int64]*domain.Supplier
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products:  map[int64]*domain.Product{},
		locations: map[int64]*domain.Location{},
		suppliers: map[int64]*domain.Supplier{},
	}
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, domain.ErrUnknownProduct
}

func (f *fakeCatalog) GetLocation(ctx context.Context, id int64) (*domain.Location, error) {
	if l, ok := f.locations[id]; ok {
		return l, nil
	}
	return nil, domain.ErrUnknownLocation
}

func (f *fakeCatalog) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	if s, ok := f.suppliers[id]; ok {
		return s, nil
	}
	return nil, domain.ErrUnknownSupplier
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]*domain.PurchaseOrder
	stocks *fakeStockRepo
	nextID int64

	// failCreates forces the next N creates to report a duplicate
	// order number, simulating lost races.
	failCreates int
}

func newFakeOrderRepo(stocks *fakeStockRepo) *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[int64]*domain.PurchaseOrder{}, stocks: stocks}
}

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, order *domain.PurchaseOrder, lines []domain.PurchaseOrderLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreates > 0 {
		f.failCreates--
		return domain.ErrDuplicateOrderNumber
	}
	for _, existing := range f.orders {
		if existing.OrderNumber == order.OrderNumber {
			return domain.ErrDuplicateOrderNumber
		}
	}

	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	order.Lines = cloneLines(order.ID, lines)

	stored := *order
	f.orders[order.ID] = &stored
	return nil
}

func (f *fakeOrderRepo) GetOrder(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getLocked(id)
}

func (f *fakeOrderRepo) getLocked(id int64) (*domain.PurchaseOrder, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	copied := *order
	copied.Lines = append([]domain.PurchaseOrderLine(nil), order.Lines...)
	return &copied, nil
}

func (f *fakeOrderRepo) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, order := range f.orders {
		if order.OrderNumber == orderNumber {
			return f.getLocked(id)
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (f *fakeOrderRepo) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PurchaseOrder
	for _, order := range f.orders {
		if filter.SupplierID > 0 && order.SupplierID != filter.SupplierID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, *order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeOrderRepo) UpdateOrder(ctx context.Context, order *domain.PurchaseOrder, lines []domain.PurchaseOrderLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if !existing.Status.Modifiable() {
		return fmt.Errorf("%w: status %s", domain.ErrOrderNotModifiable, existing.Status)
	}

	updated := *order
	updated.Status = existing.Status
	updated.UpdatedAt = time.Now()
	updated.Lines = cloneLines(order.ID, lines)
	f.orders[order.ID] = &updated
	return nil
}

func (f *fakeOrderRepo) ChangeStatus(ctx context.Context, orderID int64, newStatus domain.OrderStatus, notes string) (*domain.PurchaseOrder, domain.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok {
		return nil, "", domain.ErrOrderNotFound
	}
	oldStatus := order.Status
	if !oldStatus.CanTransitionTo(newStatus) {
		return nil, "", fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, oldStatus, newStatus)
	}

	order.Status = newStatus
	if notes != "" {
		if order.Notes != "" {
			order.Notes += "\n\n"
		}
		order.Notes += notes
	}
	order.UpdatedAt = time.Now()

	copied, err := f.getLocked(orderID)
	return copied, oldStatus, err
}

func (f *fakeOrderRepo) ReceiveItems(ctx context.Context, orderID int64, lines []domain.ReceiptLine, locationID int64, notes, actor string, allowOverReceipt bool) (*domain.ReceiveResult, *domain.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil, domain.ErrOrderNotFound
	}
	if order.Status != domain.StatusConfirmed && order.Status != domain.StatusPartiallyReceived {
		return nil, nil, fmt.Errorf("%w: status %s", domain.ErrOrderNotReceivable, order.Status)
	}

	byProduct := map[int64]*domain.PurchaseOrderLine{}
	for i := range order.Lines {
		byProduct[order.Lines[i].ProductID] = &order.Lines[i]
	}

	result := &domain.ReceiveResult{OldStatus: order.Status}
	for _, receipt := range lines {
		line, ok := byProduct[receipt.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: product %d", domain.ErrLineNotInOrder, receipt.ProductID)
		}
		if receipt.ReceivedQuantity <= 0 {
			continue
		}
		if !allowOverReceipt && line.ReceivedQuantity+receipt.ReceivedQuantity > line.Quantity {
			return nil, nil, fmt.Errorf("%w: product %d", domain.ErrOverReceipt, receipt.ProductID)
		}

		if f.stocks != nil {
			if _, _, err := f.stocks.RecordMovement(ctx, domain.MovementParams{
				ProductID:  receipt.ProductID,
				LocationID: locationID,
				Type:       domain.MovementIn,
				Quantity:   receipt.ReceivedQuantity,
				Reference:  order.OrderNumber,
				Actor:      actor,
			}); err != nil {
				return nil, nil, err
			}
		}

		line.ReceivedQuantity += receipt.ReceivedQuantity
		result.TotalReceived += receipt.ReceivedQuantity
		result.Details = append(result.Details, domain.ReceiptDetail{
			ProductID:        receipt.ProductID,
			OrderedQuantity:  line.Quantity,
			ReceivedQuantity: receipt.ReceivedQuantity,
		})
	}

	result.NewStatus = domain.DeriveReceivingStatus(order.Lines, result.TotalReceived, order.Status)
	order.Status = result.NewStatus
	order.UpdatedAt = time.Now()

	copied, err := f.getLocked(orderID)
	return result, copied, err
}

func (f *fakeOrderRepo) MaxOrderNumber(ctx context.Context, prefix string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := ""
	for _, order := range f.orders {
		if strings.HasPrefix(order.OrderNumber, prefix) && order.OrderNumber > max {
			max = order.OrderNumber
		}
	}
	return max, nil
}

func cloneLines(orderID int64, lines []domain.PurchaseOrderLine) []domain.PurchaseOrderLine {
	out := make([]domain.PurchaseOrderLine, len(lines))
	for i, line := range lines {
		line.PurchaseOrderID = orderID
		line.ID = int64(i + 1)
		out[i] = line
	}
	return out
}
