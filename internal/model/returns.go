package model

import (
	"time"

	"github.com/uptrace/bun"
)

// ReturnEvent records one applied return. client_event_id is the primary
// key, which makes replaying the same event a no-op.
type ReturnEvent struct {
	bun.BaseModel `bun:"table:return_events,alias:re"`

	ClientEventID   string    `bun:"client_event_id,pk" json:"client_event_id"`
	BorrowRequestID string    `bun:"borrow_request_id,notnull" json:"borrow_request_id"`
	ItemID          string    `bun:"item_id,notnull" json:"item_id"`
	Quantity        int       `bun:"quantity,notnull" json:"quantity"`
	ReturnedAt      time.Time `bun:"returned_at,notnull" json:"returned_at"`
	ProcessedBy     string    `bun:"processed_by,notnull" json:"processed_by"`
	ProcessedAt     time.Time `bun:"processed_at,notnull" json:"processed_at"`
}

// ReturnOption is an issued request line that still owes the scanned item.
type ReturnOption struct {
	BorrowRequestID   string       `json:"borrow_request_id"`
	RequesterName     string       `json:"requester_name"`
	RequesterID       *string      `json:"requester_id"`
	ItemID            string       `json:"item_id"`
	IssuedQuantity    int          `json:"issued_quantity"`
	RemainingQuantity int          `json:"remaining_quantity"`
	RequestStatus     BorrowStatus `json:"request_status"`
	RequestedAt       time.Time    `json:"requested_at"`
	IssuedAt          *time.Time   `json:"issued_at"`
}

// ReturnOutcome reports what a return submission did.
type ReturnOutcome string

const (
	ReturnProcessed        ReturnOutcome = "processed"
	ReturnAlreadyProcessed ReturnOutcome = "already_processed"
)
