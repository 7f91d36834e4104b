package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/gorm"

	product "github.com/angelmondragon/storepos-backend/internal/products"
	"github.com/angelmondragon/storepos-backend/pkg/config"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
)

type stubProductService struct {
	adjust  *product.AdjustStockInput
	create  *product.CreateProductInput
	list    *product.ListProductsInput
	deleted int64
	err     error
}

func (s *stubProductService) Get(ctx context.Context, id int64) (*product.ProductDTO, error) {
	return &product.ProductDTO{ID: id}, s.err
}

func (s *stubProductService) GetByBarcode(ctx context.Context, barcode string) (*product.ProductDTO, error) {
	if barcode != "5000112637922" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &product.ProductDTO{ID: 1, Barcode: &barcode}, nil
}

func (s *stubProductService) List(ctx context.Context, input product.ListProductsInput) (*product.ProductListResult, error) {
	s.list = &input
	return &product.ProductListResult{Products: []product.ProductDTO{}, Limit: input.Pagination.Limit}, s.err
}

func (s *stubProductService) ListLowStock(ctx context.Context, limit int) ([]product.ProductDTO, error) {
	return []product.ProductDTO{}, s.err
}

func (s *stubProductService) Create(ctx context.Context, input product.CreateProductInput) (*product.ProductDTO, error) {
	s.create = &input
	return &product.ProductDTO{ID: 5, Name: input.Name}, s.err
}

func (s *stubProductService) Update(ctx context.Context, id int64, input product.UpdateProductInput) (*product.ProductDTO, error) {
	return &product.ProductDTO{ID: id}, s.err
}

func (s *stubProductService) SoftDelete(ctx context.Context, id int64) error {
	s.deleted = id
	return s.err
}

func (s *stubProductService) AdjustStock(ctx context.Context, input product.AdjustStockInput) (*product.StockAdjustmentDTO, error) {
	s.adjust = &input
	if s.err != nil {
		return nil, s.err
	}
	return &product.StockAdjustmentDTO{Previous: 10, New: 10 + input.Delta, Change: input.Delta}, nil
}

func (s *stubProductService) ApplyStockChangeTx(ctx context.Context, tx *gorm.DB, change product.StockChange) (*product.StockMovement, error) {
	return nil, errors.New("not used")
}

func TestCreateProduct(t *testing.T) {
	svc := &stubProductService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":" Cola 330ml ","price":"1.50","cost_price":"0.80","stock_quantity":24,"barcode":"5000112637922"}`))
	rec := httptest.NewRecorder()
	CreateProduct(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.create == nil || svc.create.Name != "Cola 330ml" || svc.create.StockQuantity != 24 {
		t.Fatalf("unexpected input %+v", svc.create)
	}
	if svc.create.Price.String() != "1.5" || svc.create.CostPrice.String() != "0.8" {
		t.Fatalf("unexpected prices %s / %s", svc.create.Price, svc.create.CostPrice)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"Cola","price":"1.50","stock_quantity":-1}`))
	rec = httptest.NewRecorder()
	CreateProduct(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative stock got %d", rec.Code)
	}
}

func TestUpdateProductRejectsStockField(t *testing.T) {
	svc := &stubProductService{}
	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/5", strings.NewReader(`{"stock_quantity":100}`))
	req = req.WithContext(withRouteParam(req.Context(), "productId", "5"))
	rec := httptest.NewRecorder()
	UpdateProduct(svc, testLogger()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdjustProductStock(t *testing.T) {
	logg := testLogger()

	t.Run("records actor and type", func(t *testing.T) {
		svc := &stubProductService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products/9/stock-adjustments", strings.NewReader(`{"quantity_change":-3,"transaction_type":"correction","reason":"Cycle count"}`))
		req = req.WithContext(withRouteParam(withCashier(req.Context()), "productId", "9"))
		rec := httptest.NewRecorder()
		AdjustProductStock(svc, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
		}
		in := svc.adjust
		if in.ProductID != 9 || in.Delta != -3 || in.Type != enums.InventoryTransactionCorrection || in.Reason != "Cycle count" {
			t.Fatalf("unexpected input %+v", in)
		}
		if in.ActorID == nil || *in.ActorID != 7 {
			t.Fatalf("expected actor 7")
		}
	})

	t.Run("zero change rejected", func(t *testing.T) {
		svc := &stubProductService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products/9/stock-adjustments", strings.NewReader(`{"quantity_change":0,"reason":"noop"}`))
		req = req.WithContext(withRouteParam(withCashier(req.Context()), "productId", "9"))
		rec := httptest.NewRecorder()
		AdjustProductStock(svc, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
		if svc.adjust != nil {
			t.Fatalf("service should not be called")
		}
	})

	t.Run("sale type is not an adjustment", func(t *testing.T) {
		svc := &stubProductService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products/9/stock-adjustments", strings.NewReader(`{"quantity_change":5,"transaction_type":"sale","reason":"sneaky"}`))
		req = req.WithContext(withRouteParam(withCashier(req.Context()), "productId", "9"))
		rec := httptest.NewRecorder()
		AdjustProductStock(svc, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 got %d", rec.Code)
		}
	})

	t.Run("insufficient stock is a conflict", func(t *testing.T) {
		svc := &stubProductService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products/9/stock-adjustments", strings.NewReader(`{"quantity_change":-50,"reason":"Damaged"}`))
		req = req.WithContext(withRouteParam(withCashier(req.Context()), "productId", "9"))
		rec := httptest.NewRecorder()
		AdjustProductStock(svc, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409 got %d", rec.Code)
		}
	})
}

func TestProductLookups(t *testing.T) {
	svc := &stubProductService{}
	logg := testLogger()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/barcode/0000", nil)
	req = req.WithContext(withRouteParam(req.Context(), "barcode", "0000"))
	rec := httptest.NewRecorder()
	GetProductByBarcode(svc, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/products?search=cola&category=Drinks&include_inactive=true&limit=5", nil)
	rec = httptest.NewRecorder()
	ListProducts(svc, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.list.Search != "cola" || svc.list.Category == nil || *svc.list.Category != "Drinks" || !svc.list.IncludeInactive || svc.list.Pagination.Limit != 5 {
		t.Fatalf("unexpected list input %+v", svc.list)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/products/4", nil)
	req = req.WithContext(withRouteParam(req.Context(), "productId", "4"))
	rec = httptest.NewRecorder()
	DeleteProduct(svc, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || svc.deleted != 4 {
		t.Fatalf("expected soft delete of 4, got %d / %d", rec.Code, svc.deleted)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	logg := testLogger()

	rec := httptest.NewRecorder()
	HealthReady(cfg, logg, map[string]Pinger{"db": stubPinger{}, "redis": nil}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	HealthReady(cfg, logg, map[string]Pinger{"db": stubPinger{err: errors.New("down")}}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	if got := rec.Header().Get("X-StorePOS-Env"); got != "test" {
		t.Fatalf("unexpected env header %q", got)
	}
}
