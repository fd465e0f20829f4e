package repository

import (
	"context"
	"fmt"

	"invencea-api/internal/model"
)

// AuditStore implements AuditRepository.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates a new audit trail repository.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

var _ AuditRepository = (*AuditStore)(nil)

func (s *AuditStore) Insert(ctx context.Context, entry *model.AuditLog) error {
	if _, err := s.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *AuditStore) ListByInventory(ctx context.Context, itemID string) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := s.db.NewSelect().
		Model(&logs).
		Where("inventory_id = ?", itemID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list item history: %w", err)
	}
	return logs, nil
}

func (s *AuditStore) ListByBranch(ctx context.Context, branchID string, limit int) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	q := s.db.NewSelect().
		Model(&logs).
		Where("branch_id = ?", branchID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
