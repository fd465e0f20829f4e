package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"invencea-api/internal/export"
	"invencea-api/internal/model"
	"invencea-api/internal/repository"
	"invencea-api/pkg/apierror"
)

// ReportService builds the admin borrow reports.
type ReportService struct {
	requests repository.BorrowRepository
	items    repository.InventoryRepository
	loc      *time.Location
	log      *slog.Logger
	now      func() time.Time
}

// NewReportService creates a report service whose day boundaries follow
// the named IANA timezone.
func NewReportService(requests repository.BorrowRepository, items repository.InventoryRepository, timezone string) (*ReportService, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load report timezone %q: %w", timezone, err)
	}
	return &ReportService{
		requests: requests,
		items:    items,
		loc:      loc,
		log:      slog.With("component", "reports"),
		now:      time.Now,
	}, nil
}

// ReportRange is an inclusive calendar-day range, each bound optional,
// formatted as YYYY-MM-DD.
type ReportRange struct {
	From string
	To   string
}

// bounds converts the range to instants: From at 00:00 and To at the last
// instant of its day, both in the report timezone.
func (s *ReportService) bounds(r ReportRange) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if v := strings.TrimSpace(r.From); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, s.loc)
		if err != nil {
			return nil, nil, apierror.BadRequest("from must be a date like 2025-01-31")
		}
		from = &d
	}
	if v := strings.TrimSpace(r.To); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, s.loc)
		if err != nil {
			return nil, nil, apierror.BadRequest("to must be a date like 2025-01-31")
		}
		end := d.AddDate(0, 0, 1).Add(-time.Microsecond)
		to = &end
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, apierror.BadRequest("from must not be after to")
	}
	return from, to, nil
}

func (s *ReportService) filter(actor model.Principal, r ReportRange) (repository.ReportFilter, error) {
	from, to, err := s.bounds(r)
	if err != nil {
		return repository.ReportFilter{}, err
	}
	return repository.ReportFilter{BranchID: actor.BranchID, AdminID: actor.ID, From: from, To: to}, nil
}

// Rows returns the report rows for the actor: requests they approved plus
// those nobody has approved yet.
func (s *ReportService) Rows(ctx context.Context, actor model.Principal, r ReportRange) ([]model.ReportRow, error) {
	f, err := s.filter(actor, r)
	if err != nil {
		return nil, err
	}

	reqs, err := s.requests.ListForReport(ctx, f)
	if err != nil {
		return nil, storageFailure(s.log, "list report requests", err)
	}
	items, err := s.items.GetMany(ctx, itemIDs(reqs))
	if err != nil {
		return nil, storageFailure(s.log, "load report items", err)
	}

	rows := make([]model.ReportRow, 0, len(reqs))
	for _, req := range reqs {
		row := model.ReportRow{
			ID:            req.ID,
			RequesterName: req.RequesterName,
			RequesterID:   req.RequesterID,
			Status:        req.Status,
			RequestedAt:   req.CreatedAt,
			ApprovedAt:    req.ApprovedAt,
			IssuedAt:      req.IssuedAt,
			ReturnedAt:    req.ReturnedAt,
			Items:         make([]model.ReportItem, 0, len(req.Items)),
		}
		for _, line := range req.Items {
			ri := model.ReportItem{ItemName: "Unknown item", Quantity: line.Quantity}
			if it, ok := items[line.ItemID]; ok {
				ri.ItemName = it.ItemName
				ri.Barcode = it.Barcode
			}
			row.Items = append(row.Items, ri)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Export renders the report as "xlsx" or "pdf" and returns the file name.
func (s *ReportService) Export(ctx context.Context, actor model.Principal, r ReportRange, format string) ([]byte, string, error) {
	rows, err := s.Rows(ctx, actor, r)
	if err != nil {
		return nil, "", err
	}

	meta := export.ReportMeta{
		Branch:      string(actor.BranchCode),
		From:        r.From,
		To:          r.To,
		GeneratedAt: s.now().In(s.loc),
		Location:    s.loc,
	}

	var data []byte
	switch format {
	case "xlsx":
		data, err = export.ReportExcel(rows, meta)
	case "pdf":
		data, err = export.ReportPDF(rows, meta)
	default:
		return nil, "", apierror.BadRequest("Unsupported export format " + format)
	}
	if err != nil {
		s.log.Error("render report failed", "format", format, "error", err)
		return nil, "", apierror.InternalError("")
	}
	return data, export.Filename(meta, format), nil
}

// Delete purges the actor's report rows in range. At least one bound is
// required. ISSUED requests are kept because their stock is still out.
func (s *ReportService) Delete(ctx context.Context, actor model.Principal, r ReportRange) (int64, error) {
	if strings.TrimSpace(r.From) == "" && strings.TrimSpace(r.To) == "" {
		return 0, apierror.BadRequest("from or to is required")
	}
	f, err := s.filter(actor, r)
	if err != nil {
		return 0, err
	}

	n, err := s.requests.DeleteForReport(ctx, f)
	if err != nil {
		return 0, storageFailure(s.log, "delete report requests", err)
	}
	s.log.Info("report rows deleted", "actor_id", actor.ID, "from", r.From, "to", r.To, "count", n)
	return n, nil
}
