package service

import (
	"context"
	"log/slog"
	"time"

	"invencea-api/internal/model"
	"invencea-api/internal/repository"
	"invencea-api/pkg/uid"
)

// AuditService appends and reads the audit trail.
//
// Entries are written after the change they describe has committed. A failed
// write is logged and never fails the caller.
type AuditService struct {
	repo repository.AuditRepository
	log  *slog.Logger
}

// NewAuditService creates a new audit service.
func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo, log: slog.With("component", "audit")}
}

// Record appends entry, filling its id and timestamp.
func (s *AuditService) Record(ctx context.Context, entry model.AuditLog) {
	entry.ID = uid.New()
	entry.CreatedAt = time.Now().UTC()

	// The change is already committed; a client hang-up must not drop its trail.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.repo.Insert(ctx, &entry); err != nil {
		s.log.Error("audit write failed",
			"action", entry.Action,
			"branch_id", entry.BranchID,
			"inventory_id", deref(entry.InventoryID),
			"borrow_request_id", deref(entry.BorrowRequestID),
			"error", err,
		)
	}
}

// List returns the newest entries of the actor's branch.
func (s *AuditService) List(ctx context.Context, actor model.Principal, limit int) ([]model.AuditLog, error) {
	switch {
	case limit <= 0:
		limit = 100
	case limit > 500:
		limit = 500
	}
	logs, err := s.repo.ListByBranch(ctx, actor.BranchID, limit)
	if err != nil {
		return nil, storageFailure(s.log, "list audit logs", err)
	}
	return nonNil(logs), nil
}

// ItemHistory returns the entries of one item, newest first.
func (s *AuditService) ItemHistory(ctx context.Context, itemID string) ([]model.AuditLog, error) {
	logs, err := s.repo.ListByInventory(ctx, itemID)
	if err != nil {
		return nil, storageFailure(s.log, "item history", err)
	}
	return nonNil(logs), nil
}

func itemAudit(actor model.Principal, action model.AuditAction, item *model.InventoryItem) model.AuditLog {
	return model.AuditLog{
		BranchID:    item.BranchID,
		InventoryID: ptr(item.ID),
		ActorID:     ptr(actor.ID),
		ActorRole:   actor.Role,
		Action:      action,
		Snapshot:    item.Snapshot(),
	}
}

func requestAudit(actor model.Principal, action model.AuditAction, req *model.BorrowRequest) model.AuditLog {
	return model.AuditLog{
		BranchID:        req.BranchID,
		BorrowRequestID: ptr(req.ID),
		ActorID:         ptr(actor.ID),
		ActorRole:       actor.Role,
		Action:          action,
		Snapshot:        req.Snapshot(),
	}
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
