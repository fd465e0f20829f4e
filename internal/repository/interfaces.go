package repository

import (
	"context"
	"fmt"
	"time"

	"invencea-api/internal/model"
)

// BranchRepository defines branch data access methods.
type BranchRepository interface {
	// GetByID returns ErrNotFound when the branch does not exist.
	GetByID(ctx context.Context, id string) (*model.Branch, error)

	// GetByCode looks a branch up by its code.
	GetByCode(ctx context.Context, code model.BranchCode) (*model.Branch, error)

	// List returns every branch ordered by code.
	List(ctx context.Context) ([]model.Branch, error)

	// EnsureDefaults creates any missing branch from model.BranchCodes.
	EnsureDefaults(ctx context.Context) ([]model.Branch, error)
}

// UserRepository defines account data access methods.
type UserRepository interface {
	// GetByID loads a user together with its branch.
	GetByID(ctx context.Context, id string) (*model.User, error)

	// GetByEmail loads a user by case-insensitive email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// Upsert inserts the user or replaces the mutable fields of an existing
	// account with the same email.
	Upsert(ctx context.Context, u *model.User) error
}

// SessionRepository defines active session data access methods.
type SessionRepository interface {
	// Get returns the session of userID, expired or not.
	Get(ctx context.Context, userID string) (*model.ActiveSession, error)

	// Insert adds s only if the user has no row; ErrConflict otherwise.
	Insert(ctx context.Context, s *model.ActiveSession) error

	// DeleteExpiredForUser removes the user's session if it expired before now.
	DeleteExpiredForUser(ctx context.Context, userID string, now time.Time) (int64, error)

	// DeleteByToken removes the session holding token and returns it.
	DeleteByToken(ctx context.Context, token string) ([]model.ActiveSession, error)

	// DeleteByUser removes the session of userID and returns it.
	DeleteByUser(ctx context.Context, userID string) ([]model.ActiveSession, error)

	// DeleteExpired purges every session that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// InventoryRepository defines inventory ledger data access methods.
type InventoryRepository interface {
	// List returns every item of a branch.
	List(ctx context.Context, branchID string) ([]model.InventoryItem, error)

	// Get returns ErrNotFound when the item does not exist.
	Get(ctx context.Context, id string) (*model.InventoryItem, error)

	// GetMany returns the found items keyed by id.
	GetMany(ctx context.Context, ids []string) (map[string]*model.InventoryItem, error)

	// FindByBarcode matches barcode exactly within the branch, then falls
	// back to a case-insensitive substring match.
	FindByBarcode(ctx context.Context, branchID, barcode string) (*model.InventoryItem, error)

	// Latest returns the most recently created item of a branch.
	Latest(ctx context.Context, branchID string) (*model.InventoryItem, error)

	// Create inserts a new item; ErrConflict when the barcode is taken.
	Create(ctx context.Context, item *model.InventoryItem) error

	// Update writes descriptive fields and total/unserviceable/available,
	// provided borrowed_quantity still equals expectedBorrowed.
	Update(ctx context.Context, item *model.InventoryItem, expectedBorrowed int) error

	// Delete removes the item only while nothing is borrowed.
	Delete(ctx context.Context, id string) error

	// Adjust applies a direct borrow or return movement atomically and
	// returns the item after the change.
	Adjust(ctx context.Context, id string, action model.StockAction, quantity int, ref LedgerRef) (*model.InventoryItem, error)
}

// StockLedger is the transaction-bound view of inventory quantities used by
// lifecycle and return operations. Every movement is a single conditional
// update, so concurrent callers cannot oversell.
type StockLedger interface {
	// Item loads the current row inside the transaction.
	Item(ctx context.Context, id string) (*model.InventoryItem, error)

	// Issue moves quantity from available to borrowed.
	Issue(ctx context.Context, itemID string, quantity int, ref LedgerRef) (*model.InventoryItem, error)

	// Release moves quantity from borrowed back to available.
	Release(ctx context.Context, itemID string, quantity int, ref LedgerRef) (*model.InventoryItem, error)
}

// LedgerRef ties a stock movement to its cause.
type LedgerRef struct {
	BorrowRequestID string
	ActorID         string
	ClientEventID   string
}

// InsufficientStockError reports a movement that needed more than was available.
type InsufficientStockError struct {
	ItemID    string
	ItemName  string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

// UnderflowError reports a release of more than is currently borrowed.
type UnderflowError struct {
	ItemID   string
	Released int
	Borrowed int
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("cannot release %d of %s: only %d borrowed", e.Released, e.ItemID, e.Borrowed)
}

// MutateFunc changes a locked borrow request in place. Returning an error
// rolls back the request and every ledger movement made through ledger.
type MutateFunc func(ctx context.Context, req *model.BorrowRequest, ledger StockLedger) error

// ListFilter selects borrow requests for the admin listing.
type ListFilter struct {
	BranchID string
	Status   model.BorrowStatus
	From     *time.Time
	To       *time.Time
	Search   string
	Limit    int
	Offset   int
}

// MineFilter selects the requests that belong to a kiosk or faculty member.
// Exactly one of KioskID or RequesterID/RequesterName is set.
type MineFilter struct {
	BranchID      string
	KioskID       string
	RequesterID   string
	RequesterName string
}

// ReportFilter selects borrow requests for reporting and bulk purge.
type ReportFilter struct {
	BranchID string
	AdminID  string
	From     *time.Time
	To       *time.Time
}

// BorrowRepository defines borrow request data access methods.
type BorrowRepository interface {
	// Create inserts a new request.
	Create(ctx context.Context, req *model.BorrowRequest) error

	// Get returns ErrNotFound when the request does not exist.
	Get(ctx context.Context, id string) (*model.BorrowRequest, error)

	// ListMine returns the caller's own requests, newest first.
	ListMine(ctx context.Context, f MineFilter) ([]model.BorrowRequest, error)

	// List returns a page of requests and the total match count.
	List(ctx context.Context, f ListFilter) ([]model.BorrowRequest, int, error)

	// CountByStatus counts requests of a branch in status.
	CountByStatus(ctx context.Context, branchID string, status model.BorrowStatus) (int, error)

	// ListIssued returns ISSUED requests of a branch, oldest issue first.
	ListIssued(ctx context.Context, branchID string) ([]model.BorrowRequest, error)

	// Mutate locks the request, applies fn and persists the result in one
	// transaction.
	Mutate(ctx context.Context, id string, fn MutateFunc) (*model.BorrowRequest, error)

	// ApplyReturn records ev and applies fn in one transaction. When the
	// event id was already recorded nothing changes and applied is false.
	ApplyReturn(ctx context.Context, ev *model.ReturnEvent, fn MutateFunc) (applied bool, err error)

	// ReturnEvent returns a recorded return event by its client event id.
	ReturnEvent(ctx context.Context, clientEventID string) (*model.ReturnEvent, error)

	// ListForReport returns requests approved by f.AdminID or not yet
	// approved, newest first.
	ListForReport(ctx context.Context, f ReportFilter) ([]model.BorrowRequest, error)

	// DeleteForReport purges the requests ListForReport would return,
	// except those still holding stock.
	DeleteForReport(ctx context.Context, f ReportFilter) (int64, error)
}

// AuditRepository defines audit trail data access methods.
type AuditRepository interface {
	// Insert appends an entry.
	Insert(ctx context.Context, entry *model.AuditLog) error

	// ListByInventory returns entries of one item, newest first.
	ListByInventory(ctx context.Context, itemID string) ([]model.AuditLog, error)

	// ListByBranch returns the newest entries of a branch; limit <= 0 means all.
	ListByBranch(ctx context.Context, branchID string, limit int) ([]model.AuditLog, error)
}
