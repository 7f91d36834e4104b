package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/storepos-backend/pkg/config"
	"github.com/angelmondragon/storepos-backend/pkg/gcp"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	tables  []string
}

// TableSpec describes a fact table the client may create. Tables are
// partitioned by day on PartitionField when it is set.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
}

// NewClient creates a BigQuery client and verifies the dataset and fact
// tables exist. Tables named in create are created first when missing.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, create ...TableSpec) (*Client, error) {
	projectID := strings.TrimSpace(gcpCfg.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	tables := configuredTables(cfg)
	if len(tables) == 0 {
		return nil, errTableNameRequired
	}

	bqClient, err := bigquery.NewClient(ctx, projectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	client := &Client{
		client:  bqClient,
		dataset: bqClient.Dataset(datasetID),
		tables:  tables,
	}
	if len(create) > 0 {
		created, err := client.EnsureTables(ctx, create)
		if err != nil {
			_ = bqClient.Close()
			return nil, err
		}
		if logg != nil && len(created) > 0 {
			logg.Info(logg.WithField(ctx, "tables", created), "bigquery fact tables created")
		}
	}
	if err := client.Ping(ctx); err != nil {
		_ = bqClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": datasetID, "tables": tables}), "bigquery client initialized")
	}
	return client, nil
}

func configuredTables(cfg config.BigQueryConfig) []string {
	tables := []string{}
	for _, name := range []string{cfg.SalesTable, cfg.StockTable} {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			tables = append(tables, trimmed)
		}
	}
	return tables
}

// Ping verifies the dataset and tables are accessible.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}
	for _, name := range c.tables {
		if _, err := c.dataset.Table(name).Metadata(ctx); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("table %q does not exist", name)
			}
			return fmt.Errorf("checking table %q: %w", name, err)
		}
	}
	return nil
}

// EnsureTables creates each table in specs that does not exist yet and
// returns the names it created. Existing tables are left untouched.
func (c *Client) EnsureTables(ctx context.Context, specs []TableSpec) ([]string, error) {
	if c == nil || c.dataset == nil {
		return nil, errClientNotInitialized
	}
	var created []string
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return created, errTableNameRequired
		}
		table := c.dataset.Table(name)
		if _, err := table.Metadata(ctx); err == nil {
			continue
		} else if !isNotFound(err) {
			return created, fmt.Errorf("checking table %q: %w", name, err)
		}
		meta := &bigquery.TableMetadata{Schema: spec.Schema}
		if spec.PartitionField != "" {
			meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: spec.PartitionField}
		}
		if err := table.Create(ctx, meta); err != nil && !isAlreadyExists(err) {
			return created, fmt.Errorf("creating table %q: %w", name, err)
		}
		created = append(created, name)
	}
	return created, nil
}

// InsertRows streams rows into table. Rows are structs with bigquery tags.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// isAlreadyExists covers two workers racing to create the same table.
func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
