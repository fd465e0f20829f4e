package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"invencea-api/internal/model"
)

var tables = []interface{}{
	(*model.Branch)(nil),
	(*model.User)(nil),
	(*model.ActiveSession)(nil),
	(*model.InventoryItem)(nil),
	(*model.InventoryTransaction)(nil),
	(*model.BorrowRequest)(nil),
	(*model.ReturnEvent)(nil),
	(*model.AuditLog)(nil),
}

type index struct {
	model   interface{}
	name    string
	columns []string
}

var indexes = []index{
	{(*model.ActiveSession)(nil), "idx_active_sessions_expires_at", []string{"expires_at"}},
	{(*model.BorrowRequest)(nil), "idx_borrow_requests_branch_status", []string{"branch_id", "status"}},
	{(*model.BorrowRequest)(nil), "idx_borrow_requests_created_at", []string{"created_at"}},
	{(*model.InventoryTransaction)(nil), "idx_inventory_transactions_inventory", []string{"inventory_id"}},
	{(*model.AuditLog)(nil), "idx_audit_logs_branch_created", []string{"branch_id", "created_at"}},
	{(*model.AuditLog)(nil), "idx_audit_logs_inventory", []string{"inventory_id"}},
}

// Migrate creates missing tables and indexes, then reconciles legacy rows.
// It is idempotent and runs on every startup.
func Migrate(ctx context.Context, db *DB) error {
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", m, err)
		}
	}

	for _, idx := range indexes {
		q := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...)
		if db.Dialect().Name() != dialect.MySQL {
			q = q.IfNotExists()
		}
		if _, err := q.Exec(ctx); err != nil {
			// MySQL has no IF NOT EXISTS for indexes.
			if strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}

	n, err := backfillBorrowed(ctx, db.DB)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("backfilled borrowed quantities", "component", "repository", "rows", n)
	}
	return nil
}

// backfillBorrowed derives borrowed_quantity for rows written before it was
// tracked, after which the stored column is authoritative.
func backfillBorrowed(ctx context.Context, db bun.IDB) (int64, error) {
	res, err := db.NewUpdate().
		Model((*model.InventoryItem)(nil)).
		Set("borrowed_quantity = total_quantity - available_quantity - unserviceable_quantity").
		Where("borrowed_quantity = 0").
		Where("total_quantity - available_quantity - unserviceable_quantity > 0").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("backfill borrowed quantity: %w", err)
	}
	return affected(res)
}
