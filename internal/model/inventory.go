package model

import (
	"time"

	"github.com/uptrace/bun"
)

// InventoryItem is one stock-keeping unit of a branch.
//
// At rest total = borrowed + unserviceable + available. borrowed_quantity is
// authoritative and only moves through the stock primitives; available is
// always derived from the other three.
type InventoryItem struct {
	bun.BaseModel `bun:"table:inventory_items,alias:ii"`

	ID                    string    `bun:"id,pk" json:"id"`
	BranchID              string    `bun:"branch_id,notnull,unique:inventory_branch_barcode" json:"branch_id"`
	Barcode               string    `bun:"barcode,notnull,unique:inventory_branch_barcode" json:"barcode"`
	ItemName              string    `bun:"item_name,notnull" json:"item_name"`
	Metadata              Metadata  `bun:"metadata,type:text" json:"metadata"`
	TotalQuantity         int       `bun:"total_quantity,notnull" json:"total_quantity"`
	BorrowedQuantity      int       `bun:"borrowed_quantity,notnull" json:"borrowed_quantity"`
	UnserviceableQuantity int       `bun:"unserviceable_quantity,notnull" json:"unserviceable_quantity"`
	AvailableQuantity     int       `bun:"available_quantity,notnull" json:"available_quantity"`
	IsLocked              bool      `bun:"is_locked,notnull" json:"is_locked"`
	CreatedAt             time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt             time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// DeriveAvailable returns max(total - borrowed - unserviceable, 0).
func DeriveAvailable(total, borrowed, unserviceable int) int {
	if v := total - borrowed - unserviceable; v > 0 {
		return v
	}
	return 0
}

// Standardize recomputes AvailableQuantity from the other quantities.
func (i *InventoryItem) Standardize() {
	if i.BorrowedQuantity < 0 {
		i.BorrowedQuantity = 0
	}
	if i.UnserviceableQuantity < 0 {
		i.UnserviceableQuantity = 0
	}
	i.AvailableQuantity = DeriveAvailable(i.TotalQuantity, i.BorrowedQuantity, i.UnserviceableQuantity)
}

// Balanced reports whether the quantity invariant holds.
func (i *InventoryItem) Balanced() bool {
	if i.TotalQuantity < 0 || i.BorrowedQuantity < 0 || i.UnserviceableQuantity < 0 || i.AvailableQuantity < 0 {
		return false
	}
	return i.TotalQuantity == i.BorrowedQuantity+i.UnserviceableQuantity+i.AvailableQuantity
}

// Snapshot returns the post-mutation state recorded in audit entries.
func (i *InventoryItem) Snapshot() map[string]any {
	return map[string]any{
		"item_id":                i.ID,
		"barcode":                i.Barcode,
		"item_name":              i.ItemName,
		"total_quantity":         i.TotalQuantity,
		"borrowed_quantity":      i.BorrowedQuantity,
		"unserviceable_quantity": i.UnserviceableQuantity,
		"available_quantity":     i.AvailableQuantity,
		"metadata":               i.Metadata,
	}
}

// StockAction classifies a ledger movement.
type StockAction string

const (
	StockIssue  StockAction = "ISSUE"
	StockBorrow StockAction = "BORROW"
	StockReturn StockAction = "RETURN"
)

// InventoryTransaction is an append-only record of one stock movement.
type InventoryTransaction struct {
	bun.BaseModel `bun:"table:inventory_transactions,alias:it"`

	ID              string      `bun:"id,pk" json:"id"`
	InventoryID     string      `bun:"inventory_id,notnull" json:"inventory_id"`
	BorrowRequestID *string     `bun:"borrow_request_id" json:"borrow_request_id,omitempty"`
	Action          StockAction `bun:"action,notnull" json:"action"`
	Quantity        int         `bun:"quantity,notnull" json:"quantity"`
	ActorID         *string     `bun:"actor_id" json:"actor_id,omitempty"`
	ClientEventID   *string     `bun:"client_event_id" json:"client_event_id,omitempty"`
	CreatedAt       time.Time   `bun:"created_at,notnull" json:"created_at"`
}
