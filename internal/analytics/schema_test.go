package analytics

import (
	"reflect"
	"testing"

	bq "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func columnTags(t *testing.T, row any) []string {
	t.Helper()
	typ := reflect.TypeOf(row)
	tags := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		tags = append(tags, typ.Field(i).Tag.Get("bigquery"))
	}
	return tags
}

func schemaNames(schema bq.Schema) []string {
	names := make([]string, 0, len(schema))
	for _, field := range schema {
		names = append(names, field.Name)
	}
	return names
}

func TestSchemasMatchRows(t *testing.T) {
	assert.Equal(t, columnTags(t, SaleFactRow{}), schemaNames(saleFactSchema))
	assert.Equal(t, columnTags(t, StockMovementRow{}), schemaNames(stockMovementSchema))
}

func TestTableSpecsPartitioning(t *testing.T) {
	specs := TableSpecs("sale_facts", "stock_movement_facts")
	require.Len(t, specs, 2)
	assert.Equal(t, "sale_facts", specs[0].Name)
	assert.Equal(t, "booked_at", specs[0].PartitionField)
	assert.Equal(t, "occurred_at", specs[1].PartitionField)
}
