package ledger

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/pkg/db"
	"github.com/angelmondragon/storepos-backend/pkg/db/models"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/pagination"
)

// Service records and reads the append-only stock ledger.
type Service interface {
	// Record appends one entry inside the caller's stock-mutating transaction.
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.InventoryTransaction, error)
	History(ctx context.Context, productID int64, limit int) ([]EntryDTO, error)
	RecentAcrossProducts(ctx context.Context, limit int) ([]EntryDTO, error)
	NetChange(ctx context.Context, productID int64) (int, error)
	// Reconcile lists products whose stock no longer matches their ledger.
	Reconcile(ctx context.Context, limit int) ([]DriftDTO, error)
}

type service struct {
	repo Repository
}

// RecordInput captures one stock movement. New must equal Previous + Delta.
type RecordInput struct {
	ProductID int64
	Delta     int
	Previous  int
	New       int
	Type      enums.InventoryTransactionType
	Reason    string
	Notes     *string
	ActorID   *int64
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.InventoryTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger entries must be written inside a transaction")
	}
	if err := validateRecord(input); err != nil {
		return nil, err
	}

	entry := &models.InventoryTransaction{
		ProductID:        input.ProductID,
		QuantityChange:   input.Delta,
		PreviousQuantity: input.Previous,
		NewQuantity:      input.New,
		TransactionType:  input.Type,
		Reason:           strings.TrimSpace(input.Reason),
		Notes:            trimmedOrNil(input.Notes),
		UserID:           input.ActorID,
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		if db.IsForeignKeyViolation(err) {
			details := map[string]any{"product_id": input.ProductID}
			if input.ActorID != nil {
				details["user_id"] = *input.ActorID
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product or user for inventory transaction not found").
				WithDetails(details)
		}
		return nil, db.Classify(err, "db: insert inventory transaction")
	}
	return entry, nil
}

func validateRecord(input RecordInput) error {
	if input.ProductID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Delta == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity change must be non-zero")
	}
	if input.Previous < 0 || input.New < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock quantities cannot be negative")
	}
	if input.New != input.Previous+input.Delta {
		return pkgerrors.New(pkgerrors.CodeValidation, "new quantity must equal previous quantity plus change").
			WithDetails(map[string]any{
				"previous_quantity": input.Previous,
				"quantity_change":   input.Delta,
				"new_quantity":      input.New,
			})
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if strings.TrimSpace(input.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	return nil
}

func (s *service) History(ctx context.Context, productID int64, limit int) ([]EntryDTO, error) {
	if productID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	rows, err := s.repo.ListByProduct(ctx, productID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, db.Classify(err, "db: list product history")
	}
	return newEntryDTOs(rows), nil
}

func (s *service) RecentAcrossProducts(ctx context.Context, limit int) ([]EntryDTO, error) {
	rows, err := s.repo.ListRecent(ctx, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, db.Classify(err, "db: list recent inventory transactions")
	}
	return newEntryDTOs(rows), nil
}

// NetChange sums every recorded movement for the product.
func (s *service) NetChange(ctx context.Context, productID int64) (int, error) {
	total, err := s.repo.SumChanges(ctx, productID)
	if err != nil {
		return 0, db.Classify(err, "db: sum inventory changes")
	}
	return total, nil
}

func (s *service) Reconcile(ctx context.Context, limit int) ([]DriftDTO, error) {
	rows, err := s.repo.ListDrift(ctx, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, db.Classify(err, "db: list stock drift")
	}
	out := make([]DriftDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, DriftDTO{
			ProductID:      row.ProductID,
			ProductName:    row.ProductName,
			StockQuantity:  row.StockQuantity,
			LedgerQuantity: row.LedgerQuantity,
			LastEntryID:    row.LastEntryID,
		})
	}
	return out, nil
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
