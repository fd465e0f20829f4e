package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"invencea-api/internal/model"
	"invencea-api/pkg/uid"
)

// txLedger binds stock movements to one transaction.
type txLedger struct {
	tx bun.Tx
}

var _ StockLedger = (*txLedger)(nil)

func (l *txLedger) Item(ctx context.Context, id string) (*model.InventoryItem, error) {
	return loadItem(ctx, l.tx, id, true)
}

func (l *txLedger) Issue(ctx context.Context, itemID string, quantity int, ref LedgerRef) (*model.InventoryItem, error) {
	return takeStock(ctx, l.tx, itemID, quantity, model.StockIssue, ref)
}

func (l *txLedger) Release(ctx context.Context, itemID string, quantity int, ref LedgerRef) (*model.InventoryItem, error) {
	return releaseStock(ctx, l.tx, itemID, quantity, model.StockReturn, ref)
}

func loadItem(ctx context.Context, db bun.IDB, id string, lock bool) (*model.InventoryItem, error) {
	item := new(model.InventoryItem)
	q := db.NewSelect().Model(item).Where("id = ?", id).Limit(1)
	if lock {
		q = lockForUpdate(q)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

// takeStock moves quantity from available to borrowed. The availability
// check is part of the UPDATE itself, so two concurrent callers can never
// both pass it against the same units.
func takeStock(ctx context.Context, db bun.IDB, itemID string, quantity int, action model.StockAction, ref LedgerRef) (*model.InventoryItem, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("stock movement quantity must be positive, got %d", quantity)
	}

	res, err := db.NewUpdate().
		Model((*model.InventoryItem)(nil)).
		Set("borrowed_quantity = borrowed_quantity + ?", quantity).
		Set("available_quantity = available_quantity - ?", quantity).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", itemID).
		Where("available_quantity >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("take stock %s: %w", itemID, err)
	}
	n, err := affected(res)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		item, err := loadItem(ctx, db, itemID, false)
		if err != nil {
			return nil, err
		}
		return nil, &InsufficientStockError{
			ItemID:    item.ID,
			ItemName:  item.ItemName,
			Requested: quantity,
			Available: item.AvailableQuantity,
		}
	}

	if err := recordMovement(ctx, db, itemID, quantity, action, ref); err != nil {
		return nil, err
	}
	return loadItem(ctx, db, itemID, false)
}

// releaseStock moves quantity from borrowed back to available.
func releaseStock(ctx context.Context, db bun.IDB, itemID string, quantity int, action model.StockAction, ref LedgerRef) (*model.InventoryItem, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("stock movement quantity must be positive, got %d", quantity)
	}

	res, err := db.NewUpdate().
		Model((*model.InventoryItem)(nil)).
		Set("borrowed_quantity = borrowed_quantity - ?", quantity).
		Set("available_quantity = available_quantity + ?", quantity).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", itemID).
		Where("borrowed_quantity >= ?", quantity).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("release stock %s: %w", itemID, err)
	}
	n, err := affected(res)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		item, err := loadItem(ctx, db, itemID, false)
		if err != nil {
			return nil, err
		}
		return nil, &UnderflowError{ItemID: item.ID, Released: quantity, Borrowed: item.BorrowedQuantity}
	}

	if err := recordMovement(ctx, db, itemID, quantity, action, ref); err != nil {
		return nil, err
	}
	return loadItem(ctx, db, itemID, false)
}

func recordMovement(ctx context.Context, db bun.IDB, itemID string, quantity int, action model.StockAction, ref LedgerRef) error {
	tx := &model.InventoryTransaction{
		ID:              uid.New(),
		InventoryID:     itemID,
		BorrowRequestID: optional(ref.BorrowRequestID),
		Action:          action,
		Quantity:        quantity,
		ActorID:         optional(ref.ActorID),
		ClientEventID:   optional(ref.ClientEventID),
		CreatedAt:       time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(tx).Exec(ctx); err != nil {
		return fmt.Errorf("record stock movement: %w", err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
