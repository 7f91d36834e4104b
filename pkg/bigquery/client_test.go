package bigquery

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/storepos-backend/pkg/config"
)

func TestConfiguredTables(t *testing.T) {
	tables := configuredTables(config.BigQueryConfig{SalesTable: " sale_facts ", StockTable: ""})
	if len(tables) != 1 || tables[0] != "sale_facts" {
		t.Fatalf("unexpected tables %v", tables)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "pos"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{}, nil); err != errDatasetRequired {
		t.Fatalf("expected dataset error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "pos"}, nil); err != errTableNameRequired {
		t.Fatalf("expected table error, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})) {
		t.Fatal("expected wrapped 404 to be not found")
	}
	if isNotFound(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Fatal("403 is not a missing table")
	}
}

func TestNilClientInsert(t *testing.T) {
	var c *Client
	if err := c.InsertRows(context.Background(), "sale_facts", []any{1}); err != errClientNotInitialized {
		t.Fatalf("expected not initialized, got %v", err)
	}
}

func TestIsAlreadyExists(t *testing.T) {
	if !isAlreadyExists(&googleapi.Error{Code: http.StatusConflict}) {
		t.Fatal("expected 409 to mean the table exists")
	}
	if isAlreadyExists(&googleapi.Error{Code: http.StatusNotFound}) {
		t.Fatal("404 is not a create race")
	}
}

func TestNilClientEnsureTables(t *testing.T) {
	var c *Client
	if _, err := c.EnsureTables(context.Background(), []TableSpec{{Name: "sale_facts"}}); err != errClientNotInitialized {
		t.Fatalf("expected not initialized, got %v", err)
	}
}
