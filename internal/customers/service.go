package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/pkg/db"
	"github.com/angelmondragon/storepos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/pagination"
)

// Service manages customer records and loyalty balances.
type Service interface {
	Create(ctx context.Context, input CreateCustomerInput) (*CustomerDTO, error)
	Get(ctx context.Context, id int64) (*CustomerDTO, error)
	Update(ctx context.Context, id int64, input UpdateCustomerInput) (*CustomerDTO, error)
	Search(ctx context.Context, term string, page pagination.Params) (*CustomerListResult, error)
	// AccrueLoyaltyTx credits points for a booked sale inside tx. A sale is
	// credited at most once; repeats report Applied=false.
	AccrueLoyaltyTx(ctx context.Context, tx *gorm.DB, input AccrualInput) (*AccrualResult, error)
}

// CustomerDTO is the API shape of a customer.
type CustomerDTO struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Phone         *string   `json:"phone,omitempty"`
	Email         *string   `json:"email,omitempty"`
	Address       *string   `json:"address,omitempty"`
	LoyaltyPoints int       `json:"loyalty_points"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CustomerListResult struct {
	Customers []CustomerDTO `json:"customers"`
	Total     int64         `json:"total"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
}

type CreateCustomerInput struct {
	Name    string
	Phone   *string
	Email   *string
	Address *string
}

// UpdateCustomerInput replaces only the non-nil fields.
type UpdateCustomerInput struct {
	Name    *string
	Phone   *string
	Email   *string
	Address *string
}

type AccrualInput struct {
	SaleID      int64
	CustomerID  int64
	TotalAmount decimal.Decimal
}

type AccrualResult struct {
	Points  int
	Applied bool
}

type service struct {
	repo          *Repository
	db            txRunner
	pointsPerUnit decimal.Decimal
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// NewService builds the customer service. pointsPerUnit is the loyalty credit
// per whole currency unit of a sale total.
func NewService(repo *Repository, dbClient txRunner, pointsPerUnit decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if pointsPerUnit.IsNegative() {
		return nil, fmt.Errorf("points per unit must not be negative")
	}
	return &service{repo: repo, db: dbClient, pointsPerUnit: pointsPerUnit}, nil
}

func (s *service) Create(ctx context.Context, input CreateCustomerInput) (*CustomerDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	customer := &models.Customer{
		Name:    name,
		Phone:   trimmedOrNil(input.Phone),
		Email:   trimmedOrNil(input.Email),
		Address: trimmedOrNil(input.Address),
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, mapWriteError(err, customer.Phone, "db: insert customer")
	}
	return newCustomerDTO(customer), nil
}

func (s *service) Get(ctx context.Context, id int64) (*CustomerDTO, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, id)
	}
	return newCustomerDTO(customer), nil
}

func (s *service) Update(ctx context.Context, id int64, input UpdateCustomerInput) (*CustomerDTO, error) {
	var updated *models.Customer
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		customer, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, id)
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			customer.Name = name
		}
		if input.Phone != nil {
			customer.Phone = trimmedOrNil(input.Phone)
		}
		if input.Email != nil {
			customer.Email = trimmedOrNil(input.Email)
		}
		if input.Address != nil {
			customer.Address = trimmedOrNil(input.Address)
		}
		if err := txRepo.UpdateDetails(ctx, customer); err != nil {
			return mapWriteError(err, customer.Phone, "db: update customer")
		}
		updated, err = txRepo.FindByID(ctx, id)
		return db.Classify(err, "db: reload customer")
	})
	if err != nil {
		return nil, err
	}
	return newCustomerDTO(updated), nil
}

func (s *service) Search(ctx context.Context, term string, page pagination.Params) (*CustomerListResult, error) {
	rows, total, err := s.repo.Search(ctx, term, page)
	if err != nil {
		return nil, db.Classify(err, "db: search customers")
	}
	page = page.Normalize()
	out := make([]CustomerDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *newCustomerDTO(&rows[i]))
	}
	return &CustomerListResult{Customers: out, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

func (s *service) AccrueLoyaltyTx(ctx context.Context, tx *gorm.DB, input AccrualInput) (*AccrualResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "loyalty accrual requires a transaction")
	}
	if input.SaleID <= 0 || input.CustomerID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id and customer id are required")
	}
	if input.TotalAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale total cannot be negative")
	}

	points := LoyaltyPoints(input.TotalAmount, s.pointsPerUnit)
	txRepo := s.repo.WithTx(tx)
	inserted, err := txRepo.InsertAccrual(ctx, &models.LoyaltyAccrual{
		SaleID:     input.SaleID,
		CustomerID: input.CustomerID,
		Points:     points,
	})
	if err != nil {
		return nil, db.Classify(err, "db: insert loyalty accrual")
	}
	if !inserted {
		return &AccrualResult{Points: points, Applied: false}, nil
	}
	if points > 0 {
		found, err := txRepo.AddPoints(ctx, input.CustomerID, points)
		if err != nil {
			return nil, db.Classify(err, "db: credit loyalty points")
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("customer %d not found", input.CustomerID))
		}
	}
	return &AccrualResult{Points: points, Applied: true}, nil
}

// LoyaltyPoints is floor(total × pointsPerUnit).
func LoyaltyPoints(total, pointsPerUnit decimal.Decimal) int {
	return int(total.Mul(pointsPerUnit).Floor().IntPart())
}

func newCustomerDTO(c *models.Customer) *CustomerDTO {
	return &CustomerDTO{
		ID:            c.ID,
		Name:          c.Name,
		Phone:         c.Phone,
		Email:         c.Email,
		Address:       c.Address,
		LoyaltyPoints: c.LoyaltyPoints,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func mapWriteError(err error, phone *string, message string) error {
	if db.IsUniqueViolation(err, "phone") {
		details := map[string]any{}
		if phone != nil {
			details["phone"] = *phone
		}
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "phone already registered to another customer").WithDetails(details)
	}
	return db.Classify(err, message)
}

func notFoundOr(err error, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("customer %d not found", id))
	}
	return db.Classify(err, "db: load customer")
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
