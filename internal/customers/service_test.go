package customers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/pkg/db"
	"github.com/angelmondragon/storepos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storepos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *db.Client, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t)
	svc, err := NewService(NewRepository(conn), client, decimal.NewFromInt(1))
	require.NoError(t, err)
	return svc, client, conn
}

func strPtr(v string) *string { return &v }

func TestCreateAndGetCustomer(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateCustomerInput{Name: " "})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	created, err := svc.Create(context.Background(), CreateCustomerInput{
		Name:  " Dana Reyes ",
		Phone: strPtr("555-0101"),
		Email: strPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", created.Name)
	assert.Nil(t, created.Email)
	assert.Zero(t, created.LoyaltyPoints)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.NotNil(t, got.Phone)
	assert.Equal(t, "555-0101", *got.Phone)

	_, err = svc.Get(context.Background(), created.ID+1)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestDuplicatePhoneConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateCustomerInput{Name: "A", Phone: strPtr("555-0101")})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateCustomerInput{Name: "B", Phone: strPtr("555-0101")})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestUpdateCustomer(t *testing.T) {
	svc, _, _ := newTestService(t)
	created, err := svc.Create(context.Background(), CreateCustomerInput{Name: "Dana", Phone: strPtr("555-0101")})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, UpdateCustomerInput{
		Email: strPtr("dana@example.com"),
		Phone: strPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "Dana", updated.Name)
	assert.Nil(t, updated.Phone)
	require.NotNil(t, updated.Email)
	assert.Equal(t, "dana@example.com", *updated.Email)

	_, err = svc.Update(context.Background(), created.ID, UpdateCustomerInput{Name: strPtr(" ")})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Update(context.Background(), 999, UpdateCustomerInput{Name: strPtr("X")})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestSearchCustomers(t *testing.T) {
	svc, _, _ := newTestService(t)
	for _, in := range []CreateCustomerInput{
		{Name: "Dana Reyes", Phone: strPtr("555-0101")},
		{Name: "Ari Stone", Email: strPtr("ari@shop.test")},
		{Name: "Bo Daniels"},
	} {
		_, err := svc.Create(context.Background(), in)
		require.NoError(t, err)
	}

	res, err := svc.Search(context.Background(), "dan", pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	require.Len(t, res.Customers, 2)
	assert.Equal(t, "Bo Daniels", res.Customers[0].Name)

	res, err = svc.Search(context.Background(), "SHOP.TEST", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, res.Customers, 1)
	assert.Equal(t, "Ari Stone", res.Customers[0].Name)

	res, err = svc.Search(context.Background(), "", pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Len(t, res.Customers, 2)
}

func TestAccrueLoyaltyOncePerSale(t *testing.T) {
	svc, client, conn := newTestService(t)
	customer, err := svc.Create(context.Background(), CreateCustomerInput{Name: "Dana"})
	require.NoError(t, err)

	accrue := func() *AccrualResult {
		var result *AccrualResult
		require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
			var err error
			result, err = svc.AccrueLoyaltyTx(context.Background(), tx, AccrualInput{
				SaleID:      7,
				CustomerID:  customer.ID,
				TotalAmount: decimal.RequireFromString("21.95"),
			})
			return err
		}))
		return result
	}

	first := accrue()
	assert.True(t, first.Applied)
	assert.Equal(t, 21, first.Points)
	second := accrue()
	assert.False(t, second.Applied)

	got, err := svc.Get(context.Background(), customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 21, got.LoyaltyPoints)

	var accruals int64
	require.NoError(t, conn.Model(&models.LoyaltyAccrual{}).Count(&accruals).Error)
	assert.Equal(t, int64(1), accruals)
}

func TestAccrueLoyaltyValidation(t *testing.T) {
	svc, client, _ := newTestService(t)

	_, err := svc.AccrueLoyaltyTx(context.Background(), nil, AccrualInput{SaleID: 1, CustomerID: 1})
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))

	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := svc.AccrueLoyaltyTx(context.Background(), tx, AccrualInput{SaleID: 1, CustomerID: 404, TotalAmount: decimal.NewFromInt(5)})
		return err
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestLoyaltyPoints(t *testing.T) {
	assert.Equal(t, 21, LoyaltyPoints(decimal.RequireFromString("21.95"), decimal.NewFromInt(1)))
	assert.Equal(t, 43, LoyaltyPoints(decimal.RequireFromString("21.95"), decimal.NewFromInt(2)))
	assert.Equal(t, 2, LoyaltyPoints(decimal.RequireFromString("21.95"), decimal.RequireFromString("0.1")))
	assert.Equal(t, 0, LoyaltyPoints(decimal.RequireFromString("0.99"), decimal.NewFromInt(1)))
}
