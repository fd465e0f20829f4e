package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"invencea-api/internal/model"
	"invencea-api/internal/repository"
)

const (
	dashboardActivities = 5
	dashboardPending    = 6
)

// DashboardService assembles the admin landing summary.
type DashboardService struct {
	audit    repository.AuditRepository
	items    repository.InventoryRepository
	requests repository.BorrowRepository
	log      *slog.Logger
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(audit repository.AuditRepository, items repository.InventoryRepository, requests repository.BorrowRepository) *DashboardService {
	return &DashboardService{
		audit:    audit,
		items:    items,
		requests: requests,
		log:      slog.With("component", "dashboard"),
	}
}

// Build loads the independent dashboard sections concurrently.
func (s *DashboardService) Build(ctx context.Context, actor model.Principal) (*model.Dashboard, error) {
	d := &model.Dashboard{CurrentUser: actor}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logs, err := s.audit.ListByBranch(ctx, actor.BranchID, dashboardActivities)
		d.Activities = nonNil(logs)
		return err
	})
	g.Go(func() error {
		item, err := s.items.Latest(ctx, actor.BranchID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if item != nil {
			item.Standardize()
		}
		d.LatestItem = item
		return err
	})
	g.Go(func() error {
		n, err := s.requests.CountByStatus(ctx, actor.BranchID, model.StatusPending)
		d.PendingBorrowCount = n
		return err
	})
	g.Go(func() error {
		rows, _, err := s.requests.List(ctx, repository.ListFilter{
			BranchID: actor.BranchID,
			Status:   model.StatusPending,
			Limit:    dashboardPending,
		})
		d.PendingBorrows = nonNil(rows)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, storageFailure(s.log, "build dashboard", err)
	}
	return d, nil
}
