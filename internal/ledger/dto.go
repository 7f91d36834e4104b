package ledger

import (
	"time"

	"github.com/angelmondragon/storepos-backend/pkg/enums"
)

// SystemActor is shown when an entry has no acting user.
const SystemActor = "System"

// EntryDTO is the ledger row returned to clients.
type EntryDTO struct {
	ID               int64                          `json:"id"`
	ProductID        int64                          `json:"product_id"`
	ProductName      string                         `json:"product_name"`
	QuantityChange   int                            `json:"quantity_change"`
	PreviousQuantity int                            `json:"previous_quantity"`
	NewQuantity      int                            `json:"new_quantity"`
	TransactionType  enums.InventoryTransactionType `json:"transaction_type"`
	Reason           string                         `json:"reason"`
	Notes            *string                        `json:"notes,omitempty"`
	UserID           *int64                         `json:"user_id,omitempty"`
	Username         string                         `json:"username"`
	CreatedAt        time.Time                      `json:"created_at"`
}

// DriftDTO reports a product whose stock disagrees with its ledger.
type DriftDTO struct {
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	StockQuantity  int    `json:"stock_quantity"`
	LedgerQuantity int    `json:"ledger_quantity"`
	LastEntryID    int64  `json:"last_entry_id"`
}

func newEntryDTO(entry Entry) EntryDTO {
	username := SystemActor
	if entry.ActorUsername != nil && *entry.ActorUsername != "" {
		username = *entry.ActorUsername
	}
	return EntryDTO{
		ID:               entry.ID,
		ProductID:        entry.ProductID,
		ProductName:      entry.ProductName,
		QuantityChange:   entry.QuantityChange,
		PreviousQuantity: entry.PreviousQuantity,
		NewQuantity:      entry.NewQuantity,
		TransactionType:  entry.TransactionType,
		Reason:           entry.Reason,
		Notes:            entry.Notes,
		UserID:           entry.UserID,
		Username:         username,
		CreatedAt:        entry.CreatedAt,
	}
}

func newEntryDTOs(entries []Entry) []EntryDTO {
	out := make([]EntryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, newEntryDTO(entry))
	}
	return out
}
