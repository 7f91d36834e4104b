package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	product "github.com/angelmondragon/storepos-backend/internal/products"
	"github.com/angelmondragon/storepos-backend/pkg/config"
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

// Service books carts into sales and reads them back.
type Service interface {
	BookSale(ctx context.Context, cart Cart) (*SaleDTO, error)
	GetSale(ctx context.Context, id int64) (*SaleDTO, error)
	GetSaleByInvoice(ctx context.Context, invoiceNumber string) (*SaleDTO, error)
	ListSales(ctx context.Context, input ListSalesInput) (*SaleListResult, error)
	UpdatePaymentStatus(ctx context.Context, input UpdatePaymentStatusInput) (*SaleDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockMutator interface {
	ApplyStockChangeTx(ctx context.Context, tx *gorm.DB, change product.StockChange) (*product.StockMovement, error)
}

// ServiceParams wires the sale service.
type ServiceParams struct {
	Repository *Repository
	DB         txRunner
	Stock      stockMutator
	Outbox     outbox.Emitter
	Metrics    *metrics.SalesMetrics
	Logger     *logger.Logger
	Config     config.SalesConfig
	// Now defaults to time.Now; the local date of its result scopes invoice numbers.
	Now func() time.Time
}

type service struct {
	repo        *Repository
	db          txRunner
	stock       stockMutator
	outbox      outbox.Emitter
	metrics     *metrics.SalesMetrics
	logg        *logger.Logger
	taxRate     decimal.Decimal
	maxAttempts int
	timeout     time.Duration
	now         func() time.Time
}

var maxDiscountPercent = decimal.NewFromInt(100)

// errInvoiceTaken marks a lost race for the day's next invoice number.
var errInvoiceTaken = errors.New("invoice number already taken")

// NewService constructs a sale service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("sale repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock mutator required")
	}
	attempts := params.Config.BookingMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        params.Repository,
		db:          params.DB,
		stock:       params.Stock,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
		taxRate:     params.Config.TaxRate,
		maxAttempts: attempts,
		timeout:     params.Config.BookingTimeout,
		now:         now,
	}, nil
}

// BookSale commits cart as one sale: header, lines, stock decrements and
// ledger entries land together or not at all. Lost invoice races are retried
// in a fresh transaction; every other failure is returned as is.
func (s *service) BookSale(ctx context.Context, cart Cart) (*SaleDTO, error) {
	started := time.Now()
	units := cartUnits(cart)

	if err := validateCart(cart); err != nil {
		s.metrics.ObserveBooking(metrics.OutcomeInvalid, time.Since(started), 0)
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var (
		saleID int64
		err    error
	)
	for attempt := 1; ; attempt++ {
		saleID, err = s.bookOnce(ctx, cart)
		if err == nil || attempt >= s.maxAttempts || !retryable(ctx, err) {
			break
		}
		s.metrics.IncBookingRetry()
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"attempt": attempt, "user_id": cart.UserID})
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "sale booking retried")
		}
	}
	if err != nil {
		outcome := bookingOutcome(err)
		s.metrics.ObserveBooking(outcome, time.Since(started), 0)
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": cart.UserID, "outcome": outcome})
			switch outcome {
			case metrics.OutcomeError:
				s.logg.Error(logCtx, "sale booking failed", err)
			case metrics.OutcomeInsufficientStock, metrics.OutcomeConflict:
				s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "sale booking rejected")
			}
		}
		return nil, err
	}
	s.metrics.ObserveBooking(metrics.OutcomeBooked, time.Since(started), units)

	// Hydrate outside the booking context so a nearly spent timeout cannot
	// fail a committed sale.
	sale, err := s.loadSale(context.WithoutCancel(ctx), "id", saleID)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithSale(ctx, sale.ID, sale.InvoiceNumber)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"user_id":      sale.UserID,
			"total_amount": money.Format(sale.TotalAmount),
			"item_count":   sale.ItemCount,
		})
		s.logg.Info(logCtx, "sale booked")
	}
	return sale, nil
}

func (s *service) bookOnce(ctx context.Context, cart Cart) (int64, error) {
	var saleID int64
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if err := s.ensureReferences(ctx, txRepo, cart); err != nil {
			return err
		}
		lines, err := s.priceLines(ctx, txRepo, cart.Items)
		if err != nil {
			return err
		}
		totals, err := s.computeTotals(cart, lines)
		if err != nil {
			return err
		}

		now := s.now()
		latest, err := txRepo.LatestInvoiceWithPrefix(ctx, InvoiceDayPrefix(now))
		if err != nil {
			return db.Classify(err, "db: read latest invoice")
		}
		sale := &models.Sale{
			InvoiceNumber:  NextInvoiceNumber(now, latest),
			CustomerID:     cart.CustomerID,
			UserID:         cart.UserID,
			TotalAmount:    totals.total,
			DiscountAmount: totals.discount,
			TaxAmount:      totals.tax,
			PaymentMethod:  cart.PaymentMethod,
			PaymentStatus:  cart.PaymentMethod.InitialPaymentStatus(),
			SaleDate:       now.UTC(),
		}
		if err := txRepo.CreateSale(ctx, sale); err != nil {
			if db.IsUniqueViolation(err, "invoice_number") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, fmt.Errorf("%w: %s", errInvoiceTaken, sale.InvoiceNumber), "invoice number collision")
			}
			return db.Classify(err, "db: insert sale")
		}

		reason := fmt.Sprintf("Sale #%s", sale.InvoiceNumber)
		for i, line := range lines {
			item := &models.SaleItem{
				SaleID:          sale.ID,
				ProductID:       line.ProductID,
				Position:        i + 1,
				Quantity:        line.Quantity,
				UnitPrice:       line.unitPrice,
				DiscountPercent: line.DiscountPercent,
				Subtotal:        line.subtotal,
			}
			if err := txRepo.CreateItem(ctx, item); err != nil {
				if db.IsForeignKeyViolation(err) {
					return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d not found", line.ProductID))
				}
				return db.Classify(err, "db: insert sale item")
			}
			if _, err := s.stock.ApplyStockChangeTx(ctx, tx, product.StockChange{
				ProductID:     line.ProductID,
				Delta:         -line.Quantity,
				Type:          enums.InventoryTransactionSale,
				Reason:        reason,
				ActorID:       &cart.UserID,
				RequireActive: true,
			}); err != nil {
				return err
			}
		}

		if err := s.emitSaleBooked(ctx, tx, cart, sale, lines); err != nil {
			return err
		}
		saleID = sale.ID
		return nil
	})
	if err != nil {
		return 0, db.Classify(err, "db: book sale")
	}
	return saleID, nil
}

func (s *service) ensureReferences(ctx context.Context, txRepo *Repository, cart Cart) error {
	ok, err := txRepo.UserExists(ctx, cart.UserID)
	if err != nil {
		return db.Classify(err, "db: check cashier")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %d not found", cart.UserID))
	}
	if cart.CustomerID == nil {
		return nil
	}
	ok, err = txRepo.CustomerExists(ctx, *cart.CustomerID)
	if err != nil {
		return db.Classify(err, "db: check customer")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("customer %d not found", *cart.CustomerID))
	}
	return nil
}

type pricedLine struct {
	CartItem
	unitPrice decimal.Decimal
	subtotal  decimal.Decimal
}

// priceLines snapshots the unit price of every line. Lines without a price
// take the product's current price.
func (s *service) priceLines(ctx context.Context, txRepo *Repository, items []CartItem) ([]pricedLine, error) {
	var missing []int64
	for _, item := range items {
		if item.UnitPrice == nil {
			missing = append(missing, item.ProductID)
		}
	}
	current := map[int64]decimal.Decimal{}
	if len(missing) > 0 {
		var err error
		current, err = txRepo.CurrentPrices(ctx, missing)
		if err != nil {
			return nil, db.Classify(err, "db: load product prices")
		}
	}

	lines := make([]pricedLine, 0, len(items))
	for _, item := range items {
		var price decimal.Decimal
		if item.UnitPrice != nil {
			price = *item.UnitPrice
		} else {
			var ok bool
			price, ok = current[item.ProductID]
			if !ok {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d not found", item.ProductID))
			}
		}
		price = money.Round(price)
		lines = append(lines, pricedLine{
			CartItem:  item,
			unitPrice: price,
			subtotal:  money.LineSubtotal(item.Quantity, price),
		})
	}
	return lines, nil
}

type saleTotals struct {
	subtotal decimal.Decimal
	discount decimal.Decimal
	tax      decimal.Decimal
	total    decimal.Decimal
}

func (s *service) computeTotals(cart Cart, lines []pricedLine) (saleTotals, error) {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.subtotal)
	}
	discount := money.Round(cart.DiscountAmount)
	if discount.GreaterThan(subtotal) {
		return saleTotals{}, pkgerrors.New(pkgerrors.CodeValidation, "discount_amount cannot exceed the subtotal").
			WithDetails(map[string]any{
				"discount_amount": money.Format(discount),
				"subtotal":        money.Format(subtotal),
			})
	}
	tax := money.Tax(subtotal, s.taxRate)
	if cart.TaxAmount != nil {
		tax = money.Round(*cart.TaxAmount)
	}
	return saleTotals{
		subtotal: subtotal,
		discount: discount,
		tax:      tax,
		total:    money.Total(subtotal, discount, tax),
	}, nil
}

func (s *service) emitSaleBooked(ctx context.Context, tx *gorm.DB, cart Cart, sale *models.Sale, lines []pricedLine) error {
	if s.outbox == nil {
		return nil
	}
	units := 0
	for _, line := range lines {
		units += line.Quantity
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSaleBooked,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Actor:         &outbox.ActorRef{UserID: cart.UserID, Role: cart.UserRole},
		OccurredAt:    sale.SaleDate,
		Data: payloads.SaleBookedEvent{
			SaleID:        sale.ID,
			InvoiceNumber: sale.InvoiceNumber,
			CustomerID:    sale.CustomerID,
			UserID:        sale.UserID,
			TotalAmount:   money.Format(sale.TotalAmount),
			PaymentMethod: sale.PaymentMethod,
			ItemCount:     len(lines),
			UnitsSold:     units,
			BookedAt:      sale.SaleDate,
		},
	})
	if err != nil {
		return db.Classify(err, "outbox: emit sale_booked")
	}
	return nil
}

func (s *service) GetSale(ctx context.Context, id int64) (*SaleDTO, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	return s.loadSale(ctx, "id", id)
}

func (s *service) GetSaleByInvoice(ctx context.Context, invoiceNumber string) (*SaleDTO, error) {
	if invoiceNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice number is required")
	}
	return s.loadSale(ctx, "invoice_number", invoiceNumber)
}

func (s *service) loadSale(ctx context.Context, column string, value any) (*SaleDTO, error) {
	view, err := s.repo.FindView(ctx, column, value)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("sale %v not found", value))
		}
		return nil, db.Classify(err, "db: load sale")
	}
	items, err := s.repo.ListItems(ctx, []int64{view.ID})
	if err != nil {
		return nil, db.Classify(err, "db: load sale items")
	}
	dto := newSaleDTO(*view, items)
	return &dto, nil
}

func (s *service) ListSales(ctx context.Context, input ListSalesInput) (*SaleListResult, error) {
	if input.From != nil && input.To != nil && !input.From.Before(*input.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	rows, total, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, db.Classify(err, "db: list sales")
	}
	page := input.Pagination.Normalize()
	out := make([]SaleDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, newSaleDTO(row, nil))
	}
	return &SaleListResult{Sales: out, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

func (s *service) UpdatePaymentStatus(ctx context.Context, input UpdatePaymentStatusInput) (*SaleDTO, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", input.Status))
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		sale, err := txRepo.FindByID(ctx, input.SaleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("sale %d not found", input.SaleID))
			}
			return db.Classify(err, "db: load sale")
		}
		from := sale.PaymentStatus
		if !from.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move payment status from %s to %s", from, input.Status)).
				WithDetails(map[string]any{"from": from, "to": input.Status})
		}
		moved, err := txRepo.UpdatePaymentStatus(ctx, sale.ID, from, input.Status)
		if err != nil {
			return db.Classify(err, "db: update payment status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment status changed concurrently")
		}
		if s.outbox == nil {
			return nil
		}
		var actor *outbox.ActorRef
		if input.ActorID > 0 {
			actor = &outbox.ActorRef{UserID: input.ActorID, Role: input.ActorRole}
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSalePaymentChanged,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Actor:         actor,
			Data: payloads.SalePaymentStatusChangedEvent{
				SaleID:        sale.ID,
				InvoiceNumber: sale.InvoiceNumber,
				From:          from,
				To:            input.Status,
			},
		}); err != nil {
			return db.Classify(err, "outbox: emit payment status change")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithSale(ctx, input.SaleID, "")
		s.logg.Info(s.logg.WithField(logCtx, "payment_status", string(input.Status)), "sale payment status updated")
	}
	return s.loadSale(ctx, "id", input.SaleID)
}

func validateCart(cart Cart) error {
	if cart.UserID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(cart.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").
			WithDetails(map[string]any{"reason": "empty_cart"})
	}
	if !cart.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", cart.PaymentMethod))
	}
	if cart.CustomerID != nil && *cart.CustomerID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id must be positive")
	}
	if err := validateAmount("discount_amount", cart.DiscountAmount); err != nil {
		return err
	}
	if cart.TaxAmount != nil {
		if err := validateAmount("tax_amount", *cart.TaxAmount); err != nil {
			return err
		}
	}
	for i, item := range cart.Items {
		line := i + 1
		if item.ProductID <= 0 {
			return lineError(line, "product id is required")
		}
		if item.Quantity <= 0 {
			return lineError(line, "quantity must be greater than zero")
		}
		if item.UnitPrice != nil {
			if item.UnitPrice.IsNegative() || !money.FitsPlaces(*item.UnitPrice) {
				return lineError(line, "unit price must be a non-negative amount with at most two decimals")
			}
		}
		if item.DiscountPercent.IsNegative() || item.DiscountPercent.GreaterThan(maxDiscountPercent) {
			return lineError(line, "discount percent must be between 0 and 100")
		}
	}
	return nil
}

func validateAmount(field string, value decimal.Decimal) error {
	if value.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s cannot be negative", field))
	}
	if !money.FitsPlaces(value) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s allows at most %d decimal places", field, money.Places))
	}
	return nil
}

func lineError(line int, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: %s", line, message)).
		WithDetails(map[string]any{"line": line})
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return pkgerrors.IsCode(err, pkgerrors.CodeConflict)
}

func bookingOutcome(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeInsufficientStock:
		return metrics.OutcomeInsufficientStock
	case pkgerrors.CodeConflict:
		return metrics.OutcomeConflict
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound:
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

func cartUnits(cart Cart) int {
	units := 0
	for _, item := range cart.Items {
		units += item.Quantity
	}
	return units
}

func newSaleDTO(view SaleView, items []SaleItemView) SaleDTO {
	dto := SaleDTO{
		ID:             view.ID,
		InvoiceNumber:  view.InvoiceNumber,
		CustomerID:     view.CustomerID,
		CustomerName:   view.CustomerName,
		UserID:         view.UserID,
		TotalAmount:    money.Round(view.TotalAmount),
		DiscountAmount: money.Round(view.DiscountAmount),
		TaxAmount:      money.Round(view.TaxAmount),
		PaymentMethod:  view.PaymentMethod,
		PaymentStatus:  view.PaymentStatus,
		SaleDate:       view.SaleDate,
		ItemCount:      view.ItemCount,
	}
	if view.CashierName != nil {
		dto.CashierName = *view.CashierName
	}
	// total = subtotal - discount + tax, so the header alone recovers the subtotal.
	dto.Subtotal = money.Round(dto.TotalAmount.Add(dto.DiscountAmount).Sub(dto.TaxAmount))
	if items == nil {
		return dto
	}
	dto.Items = make([]SaleItemDTO, 0, len(items))
	for _, item := range items {
		dto.Items = append(dto.Items, SaleItemDTO{
			ID:              item.ID,
			Position:        item.Position,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			UnitPrice:       money.Round(item.UnitPrice),
			DiscountPercent: item.DiscountPercent.Round(2),
			Subtotal:        money.Round(item.Subtotal),
		})
	}
	return dto
}
