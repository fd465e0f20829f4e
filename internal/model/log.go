package model

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditAction classifies an audit entry.
type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
	AuditBorrow AuditAction = "BORROW"
	AuditReturn AuditAction = "RETURN"
)

// AuditLog is an append-only record of a mutating action.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID              string         `bun:"id,pk" json:"id"`
	BranchID        string         `bun:"branch_id,notnull" json:"branch_id"`
	InventoryID     *string        `bun:"inventory_id" json:"inventory_id"`
	BorrowRequestID *string        `bun:"borrow_request_id" json:"borrow_request_id"`
	ActorID         *string        `bun:"actor_id" json:"actor_id"`
	ActorRole       Role           `bun:"actor_role" json:"actor_role,omitempty"`
	Action          AuditAction    `bun:"action,notnull" json:"action"`
	Snapshot        map[string]any `bun:"snapshot,type:text" json:"snapshot"`
	CreatedAt       time.Time      `bun:"created_at,notnull" json:"created_at"`
}
