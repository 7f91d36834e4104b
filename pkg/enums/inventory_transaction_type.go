package enums

import "fmt"

// InventoryTransactionType classifies a ledger entry.
type InventoryTransactionType string

const (
	InventoryTransactionSale       InventoryTransactionType = "sale"
	InventoryTransactionManual     InventoryTransactionType = "manual"
	InventoryTransactionCorrection InventoryTransactionType = "correction"
	InventoryTransactionReturn     InventoryTransactionType = "return"
)

var validInventoryTransactionTypes = []InventoryTransactionType{
	InventoryTransactionSale,
	InventoryTransactionManual,
	InventoryTransactionCorrection,
	InventoryTransactionReturn,
}

// String implements fmt.Stringer.
func (t InventoryTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known InventoryTransactionType.
func (t InventoryTransactionType) IsValid() bool {
	for _, candidate := range validInventoryTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsAdjustment reports whether the type may be used by a stock adjustment.
// Sale entries are written only by sale booking.
func (t InventoryTransactionType) IsAdjustment() bool {
	return t.IsValid() && t != InventoryTransactionSale
}

// ParseInventoryTransactionType converts raw input into an InventoryTransactionType.
func ParseInventoryTransactionType(value string) (InventoryTransactionType, error) {
	for _, candidate := range validInventoryTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory transaction type %q", value)
}
