package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"invencea-api/internal/model"
)

// InventoryStore implements InventoryRepository.
type InventoryStore struct {
	db *DB
}

// NewInventoryStore creates a new inventory repository.
func NewInventoryStore(db *DB) *InventoryStore {
	return &InventoryStore{db: db}
}

var _ InventoryRepository = (*InventoryStore)(nil)

func (s *InventoryStore) List(ctx context.Context, branchID string) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	err := s.db.NewSelect().
		Model(&items).
		Where("branch_id = ?", branchID).
		Order("item_name ASC", "created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

func (s *InventoryStore) Get(ctx context.Context, id string) (*model.InventoryItem, error) {
	return loadItem(ctx, s.db, id, false)
}

func (s *InventoryStore) GetMany(ctx context.Context, ids []string) (map[string]*model.InventoryItem, error) {
	out := make(map[string]*model.InventoryItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []model.InventoryItem
	if err := s.db.NewSelect().Model(&items).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("load inventory items: %w", err)
	}
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

func (s *InventoryStore) FindByBarcode(ctx context.Context, branchID, barcode string) (*model.InventoryItem, error) {
	item := new(model.InventoryItem)
	err := s.db.NewSelect().
		Model(item).
		Where("branch_id = ?", branchID).
		Where("barcode = ?", barcode).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return item, nil
	}
	if err = notFound(err); !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	item = new(model.InventoryItem)
	err = s.db.NewSelect().
		Model(item).
		Where("branch_id = ?", branchID).
		Where("LOWER(barcode) LIKE ? ESCAPE '!'", containsPattern(barcode)).
		Order("barcode ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

func (s *InventoryStore) Latest(ctx context.Context, branchID string) (*model.InventoryItem, error) {
	item := new(model.InventoryItem)
	err := s.db.NewSelect().
		Model(item).
		Where("branch_id = ?", branchID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

func (s *InventoryStore) Create(ctx context.Context, item *model.InventoryItem) error {
	res, err := s.db.NewInsert().Model(item).Ignore().Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *InventoryStore) Update(ctx context.Context, item *model.InventoryItem, expectedBorrowed int) error {
	item.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model(item).
		Column("item_name", "metadata", "total_quantity", "unserviceable_quantity", "available_quantity", "updated_at").
		WherePK().
		Where("borrowed_quantity = ?", expectedBorrowed).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.Get(ctx, item.ID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (s *InventoryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().
		Model((*model.InventoryItem)(nil)).
		Where("id = ?", id).
		Where("borrowed_quantity = 0").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete inventory item: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (s *InventoryStore) Adjust(ctx context.Context, id string, action model.StockAction, quantity int, ref LedgerRef) (*model.InventoryItem, error) {
	var out *model.InventoryItem
	err := s.db.WithTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		switch action {
		case model.StockBorrow, model.StockIssue:
			out, err = takeStock(ctx, tx, id, quantity, action, ref)
		case model.StockReturn:
			out, err = releaseStock(ctx, tx, id, quantity, action, ref)
		default:
			err = fmt.Errorf("unknown stock action %q", action)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
