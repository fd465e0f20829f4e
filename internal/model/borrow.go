package model

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// BorrowStatus is the lifecycle state of a borrow request.
type BorrowStatus string

const (
	StatusPending  BorrowStatus = "PENDING"
	StatusApproved BorrowStatus = "APPROVED"
	StatusIssued   BorrowStatus = "ISSUED"
	StatusReturned BorrowStatus = "RETURNED"
	StatusDenied   BorrowStatus = "DENIED"
)

var transitions = map[BorrowStatus][]BorrowStatus{
	StatusPending:  {StatusApproved, StatusDenied},
	StatusApproved: {StatusIssued, StatusDenied},
	StatusIssued:   {StatusReturned},
	StatusReturned: nil,
	StatusDenied:   nil,
}

// AllStatuses lists every lifecycle state.
var AllStatuses = []BorrowStatus{StatusPending, StatusApproved, StatusIssued, StatusReturned, StatusDenied}

// ParseBorrowStatus upper-cases s and reports whether it is a known state.
func ParseBorrowStatus(s string) (BorrowStatus, bool) {
	st := BorrowStatus(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := transitions[st]
	return st, ok
}

// CanTransitionTo reports whether s -> next is a legal move.
func (s BorrowStatus) CanTransitionTo(next BorrowStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s BorrowStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// BorrowItem is one line of a borrow request.
type BorrowItem struct {
	ItemID           string `json:"item_id"`
	Quantity         int    `json:"quantity"`
	ReturnedQuantity int    `json:"returned_quantity"`
}

// Remaining returns the quantity still owed back.
func (b BorrowItem) Remaining() int {
	if r := b.Quantity - b.ReturnedQuantity; r > 0 {
		return r
	}
	return 0
}

// BorrowItems is the ordered line list stored as JSON.
type BorrowItems []BorrowItem

// FullyReturned reports whether every line has been returned in full.
func (items BorrowItems) FullyReturned() bool {
	for _, it := range items {
		if it.ReturnedQuantity < it.Quantity {
			return false
		}
	}
	return true
}

// Index returns the position of the line for itemID, or -1.
func (items BorrowItems) Index(itemID string) int {
	for i, it := range items {
		if it.ItemID == itemID {
			return i
		}
	}
	return -1
}

// BorrowRequest is a request to borrow one or more items of a branch.
type BorrowRequest struct {
	bun.BaseModel `bun:"table:borrow_requests,alias:br"`

	ID            string       `bun:"id,pk" json:"id"`
	BranchID      string       `bun:"branch_id,notnull" json:"branch_id"`
	KioskID       *string      `bun:"kiosk_id" json:"kiosk_id"`
	RequesterName string       `bun:"requester_name,notnull" json:"requester_name"`
	RequesterID   *string      `bun:"requester_id" json:"requester_id"`
	Items         BorrowItems  `bun:"items,type:text,notnull" json:"items"`
	Note          string       `bun:"note,type:text" json:"note"`
	Status        BorrowStatus `bun:"status,notnull" json:"status"`
	AdminID       *string      `bun:"admin_id" json:"admin_id"`
	ApprovedAt    *time.Time   `bun:"approved_at" json:"approved_at"`
	ApprovedBy    *string      `bun:"approved_by" json:"approved_by"`
	IssuedAt      *time.Time   `bun:"issued_at" json:"issued_at"`
	IssuedBy      *string      `bun:"issued_by" json:"issued_by"`
	ReturnedAt    *time.Time   `bun:"returned_at" json:"returned_at"`
	ReturnedBy    *string      `bun:"returned_by" json:"returned_by"`
	CreatedAt     time.Time    `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time    `bun:"updated_at,notnull" json:"updated_at"`
}

// Snapshot returns the state recorded in lifecycle audit entries.
func (r *BorrowRequest) Snapshot() map[string]any {
	return map[string]any{
		"borrow_request_id": r.ID,
		"status":            r.Status,
		"requester_name":    r.RequesterName,
		"items":             r.Items,
		"note":              r.Note,
	}
}

// BorrowItemView is a request line enriched with current ledger data.
type BorrowItemView struct {
	BorrowItem
	ItemName  string         `json:"item_name"`
	Barcode   string         `json:"barcode,omitempty"`
	Inventory *InventoryMeta `json:"inventory_meta,omitempty"`
}

// InventoryMeta carries the current quantities of a referenced item.
type InventoryMeta struct {
	TotalQuantity         int `json:"total_quantity"`
	BorrowedQuantity      int `json:"borrowed_quantity"`
	UnserviceableQuantity int `json:"unserviceable_quantity"`
	AvailableQuantity     int `json:"available_quantity"`
}

// BorrowRequestView is a request with enriched lines.
type BorrowRequestView struct {
	*BorrowRequest
	Items []BorrowItemView `json:"items"`
}

// IssuedLine is one outstanding line of an issued request.
type IssuedLine struct {
	BorrowRequestID   string     `json:"borrow_request_id"`
	RequesterName     string     `json:"requester_name"`
	RequesterID       *string    `json:"requester_id"`
	ItemID            string     `json:"item_id"`
	ItemName          string     `json:"item_name"`
	Barcode           string     `json:"barcode"`
	Quantity          int        `json:"quantity"`
	ReturnedQuantity  int        `json:"returned_quantity"`
	RemainingQuantity int        `json:"remaining_quantity"`
	IssuedAt          *time.Time `json:"issued_at"`
}
