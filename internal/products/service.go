package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/internal/ledger"
	"github.com/angelmondragon/storepos-backend/pkg/db"
	"github.com/angelmondragon/storepos-backend/pkg/db/models"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
	"github.com/angelmondragon/storepos-backend/pkg/metrics"
	"github.com/angelmondragon/storepos-backend/pkg/money"
	"github.com/angelmondragon/storepos-backend/pkg/outbox"
	"github.com/angelmondragon/storepos-backend/pkg/outbox/payloads"
)

// Service exposes catalog reads, catalog edits and the stock mutation primitive.
type Service interface {
	Get(ctx context.Context, id int64) (*ProductDTO, error)
	GetByBarcode(ctx context.Context, barcode string) (*ProductDTO, error)
	List(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	ListLowStock(ctx context.Context, limit int) ([]ProductDTO, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id int64, input UpdateProductInput) (*ProductDTO, error)
	SoftDelete(ctx context.Context, id int64) error
	AdjustStock(ctx context.Context, input AdjustStockInput) (*StockAdjustmentDTO, error)
	// ApplyStockChangeTx is the only path that writes stock_quantity. It runs in
	// the caller's transaction and appends the matching ledger entry there.
	ApplyStockChangeTx(ctx context.Context, tx *gorm.DB, change StockChange) (*StockMovement, error)
}

// CreateProductInput holds the payload to create a product.
type CreateProductInput struct {
	Name          string
	Description   *string
	Category      *string
	Barcode       *string
	Price         decimal.Decimal
	CostPrice     decimal.Decimal
	StockQuantity int
	ReorderLevel  *int
}

// UpdateProductInput holds optional descriptive and pricing changes.
type UpdateProductInput struct {
	Name         *string
	Description  *string
	Category     *string
	Barcode      *string
	Price        *decimal.Decimal
	CostPrice    *decimal.Decimal
	ReorderLevel *int
}

// AdjustStockInput is a manual stock movement. Type defaults to manual.
type AdjustStockInput struct {
	ProductID int64
	Delta     int
	Type      enums.InventoryTransactionType
	Reason    string
	Notes     *string
	ActorID   *int64
	ActorRole string
}

// StockChange is one signed movement applied through ApplyStockChangeTx.
type StockChange struct {
	ProductID int64
	Delta     int
	Type      enums.InventoryTransactionType
	Reason    string
	Notes     *string
	ActorID   *int64
	// RequireActive rejects the change for soft-deleted products.
	RequireActive bool
}

// StockMovement reports the committed-in-transaction effect of a StockChange.
type StockMovement struct {
	Product  models.Product
	Previous int
	New      int
	Entry    *models.InventoryTransaction
}

// InsufficientStockDetails is attached to INSUFFICIENT_STOCK errors.
type InsufficientStockDetails struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the product service.
type ServiceParams struct {
	Repository          *Repository
	DB                  txRunner
	Ledger              ledger.Service
	Outbox              outbox.Emitter
	Metrics             *metrics.SalesMetrics
	Logger              *logger.Logger
	DefaultReorderLevel int
}

type service struct {
	repo                *Repository
	db                  txRunner
	ledger              ledger.Service
	outbox              outbox.Emitter
	metrics             *metrics.SalesMetrics
	logg                *logger.Logger
	defaultReorderLevel int
}

const (
	adjustmentApplied = "applied"
	adjustmentInvalid = "invalid"

	defaultReorderLevel = 10
)

// NewService constructs a product service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	reorder := params.DefaultReorderLevel
	if reorder <= 0 {
		reorder = defaultReorderLevel
	}
	return &service{
		repo:                params.Repository,
		db:                  params.DB,
		ledger:              params.Ledger,
		outbox:              params.Outbox,
		metrics:             params.Metrics,
		logg:                params.Logger,
		defaultReorderLevel: reorder,
	}, nil
}

func (s *service) Get(ctx context.Context, id int64) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("product %d not found", id), "db: load product")
	}
	return NewProductDTO(product), nil
}

func (s *service) GetByBarcode(ctx context.Context, barcode string) (*ProductDTO, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "barcode is required")
	}
	product, err := s.repo.FindByBarcode(ctx, barcode)
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("no product with barcode %q", barcode), "db: load product by barcode")
	}
	return NewProductDTO(product), nil
}

func (s *service) List(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	rows, total, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, db.Classify(err, "db: list products")
	}
	page := input.Pagination.Normalize()
	return &ProductListResult{
		Products: newProductDTOs(rows),
		Total:    total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}, nil
}

func (s *service) ListLowStock(ctx context.Context, limit int) ([]ProductDTO, error) {
	rows, err := s.repo.ListLowStock(ctx, limit)
	if err != nil {
		return nil, db.Classify(err, "db: list low stock products")
	}
	return newProductDTOs(rows), nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validatePrice("price", input.Price); err != nil {
		return nil, err
	}
	if err := validatePrice("cost_price", input.CostPrice); err != nil {
		return nil, err
	}
	if input.StockQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity cannot be negative")
	}
	reorder := s.defaultReorderLevel
	if input.ReorderLevel != nil {
		if *input.ReorderLevel < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reorder_level cannot be negative")
		}
		reorder = *input.ReorderLevel
	}

	product := &models.Product{
		Name:          name,
		Description:   trimmedOrNil(input.Description),
		Category:      trimmedOrNil(input.Category),
		Barcode:       trimmedOrNil(input.Barcode),
		Price:         money.Round(input.Price),
		CostPrice:     money.Round(input.CostPrice),
		StockQuantity: input.StockQuantity,
		ReorderLevel:  reorder,
		IsActive:      true,
	}
	if _, err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, mapWriteError(err, product.Barcode, "db: insert product")
	}
	return NewProductDTO(product), nil
}

func (s *service) Update(ctx context.Context, id int64, input UpdateProductInput) (*ProductDTO, error) {
	var updated *models.Product
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		product, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, fmt.Sprintf("product %d not found", id), "db: load product")
		}
		if err := applyUpdateToProduct(product, input); err != nil {
			return err
		}
		if err := txRepo.UpdateDetails(ctx, product); err != nil {
			return mapWriteError(err, product.Barcode, "db: update product")
		}
		updated, err = txRepo.FindByID(ctx, id)
		if err != nil {
			return db.Classify(err, "db: reload product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewProductDTO(updated), nil
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) error {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		product.Name = name
	}
	if input.Description != nil {
		product.Description = trimmedOrNil(input.Description)
	}
	if input.Category != nil {
		product.Category = trimmedOrNil(input.Category)
	}
	if input.Barcode != nil {
		product.Barcode = trimmedOrNil(input.Barcode)
	}
	if input.Price != nil {
		if err := validatePrice("price", *input.Price); err != nil {
			return err
		}
		product.Price = money.Round(*input.Price)
	}
	if input.CostPrice != nil {
		if err := validatePrice("cost_price", *input.CostPrice); err != nil {
			return err
		}
		product.CostPrice = money.Round(*input.CostPrice)
	}
	if input.ReorderLevel != nil {
		if *input.ReorderLevel < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reorder_level cannot be negative")
		}
		product.ReorderLevel = *input.ReorderLevel
	}
	return nil
}

func (s *service) SoftDelete(ctx context.Context, id int64) error {
	matched, err := s.repo.SetActive(ctx, id, false)
	if err != nil {
		return db.Classify(err, "db: deactivate product")
	}
	if !matched {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d not found", id))
	}
	return nil
}

func (s *service) AdjustStock(ctx context.Context, input AdjustStockInput) (*StockAdjustmentDTO, error) {
	if input.Type == "" {
		input.Type = enums.InventoryTransactionManual
	}
	if err := validateAdjustment(input); err != nil {
		s.metrics.IncAdjustment(string(input.Type), adjustmentInvalid)
		return nil, err
	}

	var movement *StockMovement
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		movement, err = s.ApplyStockChangeTx(ctx, tx, StockChange{
			ProductID: input.ProductID,
			Delta:     input.Delta,
			Type:      input.Type,
			Reason:    input.Reason,
			Notes:     input.Notes,
			ActorID:   input.ActorID,
		})
		if err != nil {
			return err
		}
		return s.emitStockAdjusted(ctx, tx, input, movement)
	})
	if err != nil {
		s.metrics.IncAdjustment(string(input.Type), adjustmentResult(err))
		return nil, err
	}
	s.metrics.IncAdjustment(string(input.Type), adjustmentApplied)

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id":        movement.Product.ID,
			"quantity_change":   input.Delta,
			"previous_quantity": movement.Previous,
			"new_quantity":      movement.New,
			"transaction_type":  input.Type,
		})
		s.logg.Info(logCtx, "stock adjusted")
	}

	return &StockAdjustmentDTO{
		Product:       *NewProductDTO(&movement.Product),
		TransactionID: movement.Entry.ID,
		Previous:      movement.Previous,
		New:           movement.New,
		Change:        input.Delta,
	}, nil
}

func (s *service) emitStockAdjusted(ctx context.Context, tx *gorm.DB, input AdjustStockInput, movement *StockMovement) error {
	if s.outbox == nil {
		return nil
	}
	var actor *outbox.ActorRef
	if input.ActorID != nil {
		actor = &outbox.ActorRef{UserID: *input.ActorID, Role: input.ActorRole}
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventStockAdjusted,
		AggregateType: enums.AggregateProduct,
		AggregateID:   movement.Product.ID,
		Actor:         actor,
		Data: payloads.StockAdjustedEvent{
			ProductID:        movement.Product.ID,
			TransactionID:    movement.Entry.ID,
			Type:             input.Type,
			QuantityChange:   input.Delta,
			PreviousQuantity: movement.Previous,
			NewQuantity:      movement.New,
			LowStock:         movement.Product.IsLowStock(),
		},
	})
	if err != nil {
		return db.Classify(err, "outbox: emit stock_adjusted")
	}
	return nil
}

func (s *service) ApplyStockChangeTx(ctx context.Context, tx *gorm.DB, change StockChange) (*StockMovement, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock changes must run inside a transaction")
	}
	if change.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity change must be non-zero")
	}
	txRepo := s.repo.WithTx(tx)

	applied, err := txRepo.ApplyStockDelta(ctx, change.ProductID, change.Delta, change.RequireActive)
	if err != nil {
		if db.IsCheckViolation(err, "stock") {
			return nil, s.rejectChange(ctx, txRepo, change)
		}
		return nil, db.Classify(err, "db: apply stock change")
	}
	if !applied {
		return nil, s.rejectChange(ctx, txRepo, change)
	}

	// The conditional update holds the row lock until commit, so this read is exact.
	product, err := txRepo.FindByID(ctx, change.ProductID)
	if err != nil {
		return nil, db.Classify(err, "db: reload product after stock change")
	}
	previous := product.StockQuantity - change.Delta

	entry, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
		ProductID: change.ProductID,
		Delta:     change.Delta,
		Previous:  previous,
		New:       product.StockQuantity,
		Type:      change.Type,
		Reason:    change.Reason,
		Notes:     change.Notes,
		ActorID:   change.ActorID,
	})
	if err != nil {
		return nil, err
	}

	return &StockMovement{
		Product:  *product,
		Previous: previous,
		New:      product.StockQuantity,
		Entry:    entry,
	}, nil
}

// rejectChange explains why the conditional update matched no row.
func (s *service) rejectChange(ctx context.Context, txRepo *Repository, change StockChange) error {
	product, err := txRepo.FindByID(ctx, change.ProductID)
	if err != nil {
		return notFoundOr(err, fmt.Sprintf("product %d not found", change.ProductID), "db: load product")
	}
	if change.RequireActive && !product.IsActive {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %q is no longer active", product.Name)).
			WithDetails(map[string]any{"product_id": product.ID})
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s", product.Name)).
		WithDetails(InsufficientStockDetails{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   -change.Delta,
			Available:   product.StockQuantity,
		})
}

func validateAdjustment(input AdjustStockInput) error {
	if input.ProductID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Delta == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity change must be non-zero")
	}
	if !input.Type.IsAdjustment() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("transaction type %q is not allowed for adjustments", input.Type))
	}
	if strings.TrimSpace(input.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	return nil
}

func validatePrice(field string, value decimal.Decimal) error {
	if value.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s cannot be negative", field))
	}
	if !money.FitsPlaces(value) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s allows at most %d decimal places", field, money.Places))
	}
	return nil
}

func adjustmentResult(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeInsufficientStock:
		return "insufficient_stock"
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeValidation:
		return adjustmentInvalid
	case pkgerrors.CodeConflict:
		return "conflict"
	default:
		return "error"
	}
}

func mapWriteError(err error, barcode *string, message string) error {
	if db.IsUniqueViolation(err, "barcode") {
		details := map[string]any{}
		if barcode != nil {
			details["barcode"] = *barcode
		}
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "barcode already assigned to another product").WithDetails(details)
	}
	if db.IsCheckViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "product violates a catalog constraint")
	}
	return db.Classify(err, message)
}

func notFoundOr(err error, notFound, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return db.Classify(err, message)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
