package model

import "time"

// ReportItem is one line of a report row.
type ReportItem struct {
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
	Barcode  string `json:"barcode,omitempty"`
}

// ReportRow summarizes one borrow request for reporting.
type ReportRow struct {
	ID            string       `json:"id"`
	RequesterName string       `json:"requester_name"`
	RequesterID   *string      `json:"requester_id"`
	Status        BorrowStatus `json:"status"`
	RequestedAt   time.Time    `json:"requested_at"`
	ApprovedAt    *time.Time   `json:"approved_at"`
	IssuedAt      *time.Time   `json:"issued_at"`
	ReturnedAt    *time.Time   `json:"returned_at"`
	Items         []ReportItem `json:"items"`
}

// Dashboard is the admin landing summary of a branch.
type Dashboard struct {
	Activities         []AuditLog      `json:"activities"`
	LatestItem         *InventoryItem  `json:"latestItem"`
	PendingBorrowCount int             `json:"pendingBorrowCount"`
	PendingBorrows     []BorrowRequest `json:"pendingBorrows"`
	CurrentUser        Principal       `json:"current_user"`
}
