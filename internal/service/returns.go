package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"invencea-api/internal/model"
	"invencea-api/internal/repository"
	"invencea-api/pkg/apierror"
	"invencea-api/pkg/uid"
)

// ReturnService matches scanned items to the loans that owe them and
// applies returns exactly once per client event id.
type ReturnService struct {
	requests repository.BorrowRepository
	items    repository.InventoryRepository
	audit    *AuditService
	log      *slog.Logger
	now      func() time.Time
}

// NewReturnService creates a new return service.
func NewReturnService(requests repository.BorrowRepository, items repository.InventoryRepository, audit *AuditService) *ReturnService {
	return &ReturnService{
		requests: requests,
		items:    items,
		audit:    audit,
		log:      slog.With("component", "returns"),
		now:      time.Now,
	}
}

// ReturnInput is one scanned return.
type ReturnInput struct {
	Barcode         string
	Quantity        int
	BorrowRequestID string
	ClientEventID   string
	ReturnedAt      *time.Time
}

// ReturnResult reports the outcome of ReturnByBarcode.
type ReturnResult struct {
	Status        model.ReturnOutcome  `json:"status"`
	Message       string               `json:"message"`
	ProcessedAt   time.Time            `json:"processed_at"`
	ClientEventID string               `json:"client_event_id"`
	Request       *model.BorrowRequest `json:"request"`
}

// ReturnOptions is the scan resolution shown before a return is confirmed.
type ReturnOptions struct {
	Item    *model.InventoryItem `json:"item"`
	Options []model.ReturnOption `json:"options"`
}

// CleanBarcode strips scanner noise: line breaks, padding and a
// "barcode:" or "barcode=" prefix.
func CleanBarcode(raw string) string {
	s := strings.NewReplacer("\r", "", "\n", "").Replace(raw)
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"barcode:", "barcode="} {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	return s
}

// FindReturnOptions resolves barcode to an item of the actor's branch and
// lists every issued line still owing it, oldest issue first.
func (s *ReturnService) FindReturnOptions(ctx context.Context, actor model.Principal, barcode string) (*ReturnOptions, error) {
	code := CleanBarcode(barcode)
	if code == "" {
		return nil, apierror.BadRequest("barcode is required")
	}

	item, err := s.items.FindByBarcode(ctx, actor.BranchID, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NotFound("No item matches this barcode").WithField("barcode", code)
	}
	if err != nil {
		return nil, storageFailure(s.log, "resolve barcode", err)
	}
	item.Standardize()

	issued, err := s.requests.ListIssued(ctx, actor.BranchID)
	if err != nil {
		return nil, storageFailure(s.log, "list issued requests", err)
	}

	var options []model.ReturnOption
	for _, r := range issued {
		idx := r.Items.Index(item.ID)
		if idx < 0 {
			continue
		}
		line := r.Items[idx]
		if line.Remaining() == 0 {
			continue
		}
		options = append(options, model.ReturnOption{
			BorrowRequestID:   r.ID,
			RequesterName:     r.RequesterName,
			RequesterID:       r.RequesterID,
			ItemID:            item.ID,
			IssuedQuantity:    line.Quantity,
			RemainingQuantity: line.Remaining(),
			RequestStatus:     r.Status,
			RequestedAt:       r.CreatedAt,
			IssuedAt:          r.IssuedAt,
		})
	}
	if len(options) == 0 {
		return nil, apierror.NotFound("No outstanding borrow for this item").WithField("item_id", item.ID)
	}

	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i].IssuedAt, options[j].IssuedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
	return &ReturnOptions{Item: item, Options: options}, nil
}

// ReturnByBarcode returns quantity units of the scanned item against one
// issued line. A replayed client event id changes nothing.
func (s *ReturnService) ReturnByBarcode(ctx context.Context, actor model.Principal, in ReturnInput) (*ReturnResult, error) {
	if in.Quantity < 1 {
		return nil, apierror.BadRequest("quantity must be a positive integer")
	}

	eventID := strings.TrimSpace(in.ClientEventID)
	if eventID != "" {
		if res, err := s.replay(ctx, actor, eventID); res != nil || err != nil {
			return res, err
		}
	} else {
		eventID = uid.New()
	}

	found, err := s.FindReturnOptions(ctx, actor, in.Barcode)
	if err != nil {
		return nil, err
	}

	chosen := &found.Options[0]
	if in.BorrowRequestID != "" {
		chosen = nil
		for i := range found.Options {
			if found.Options[i].BorrowRequestID == in.BorrowRequestID {
				chosen = &found.Options[i]
				break
			}
		}
		if chosen == nil {
			return nil, apierror.NotFound("Borrow request has no outstanding line for this item").
				WithField("borrow_request_id", in.BorrowRequestID)
		}
	}
	if in.Quantity > chosen.RemainingQuantity {
		return nil, apierror.BadRequest("quantity exceeds remaining borrowed quantity").
			WithField("remaining_quantity", chosen.RemainingQuantity)
	}

	now := s.now().UTC()
	returnedAt := now
	if in.ReturnedAt != nil && !in.ReturnedAt.IsZero() {
		returnedAt = in.ReturnedAt.UTC()
	}

	ev := &model.ReturnEvent{
		ClientEventID:   eventID,
		BorrowRequestID: chosen.BorrowRequestID,
		ItemID:          chosen.ItemID,
		Quantity:        in.Quantity,
		ReturnedAt:      returnedAt,
		ProcessedBy:     actor.ID,
		ProcessedAt:     now,
	}

	applied, err := s.requests.ApplyReturn(ctx, ev, func(ctx context.Context, req *model.BorrowRequest, ledger repository.StockLedger) error {
		if req.Status != model.StatusIssued {
			return apierror.InvalidState("Borrow request is not issued").WithField("status", req.Status)
		}
		idx := req.Items.Index(ev.ItemID)
		if idx < 0 {
			return apierror.NotFound("Item is not part of this borrow request")
		}
		if ev.Quantity > req.Items[idx].Remaining() {
			return apierror.BadRequest("quantity exceeds remaining borrowed quantity").
				WithField("remaining_quantity", req.Items[idx].Remaining())
		}

		ref := repository.LedgerRef{BorrowRequestID: req.ID, ActorID: actor.ID, ClientEventID: ev.ClientEventID}
		if _, err := ledger.Release(ctx, ev.ItemID, ev.Quantity, ref); err != nil {
			return err
		}
		req.Items[idx].ReturnedQuantity += ev.Quantity

		if req.Items.FullyReturned() {
			req.Status = model.StatusReturned
			req.ReturnedAt = &returnedAt
			req.ReturnedBy = ptr(actor.ID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound("Borrow request not found")
		}
		return nil, ledgerError(s.log, "apply return", err)
	}

	if !applied {
		// A concurrent submission of the same event won.
		res, err := s.replay(ctx, actor, eventID)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}

	req, err := s.requests.Get(ctx, ev.BorrowRequestID)
	if err != nil {
		return nil, storageFailure(s.log, "reload request", err)
	}

	entry := requestAudit(actor, model.AuditReturn, req)
	entry.InventoryID = ptr(ev.ItemID)
	entry.Snapshot["item_id"] = ev.ItemID
	entry.Snapshot["quantity"] = ev.Quantity
	entry.Snapshot["client_event_id"] = ev.ClientEventID
	s.audit.Record(ctx, entry)

	s.log.Info("return processed", "borrow_request_id", req.ID, "item_id", ev.ItemID, "quantity", ev.Quantity, "client_event_id", eventID)
	return &ReturnResult{
		Status:        model.ReturnProcessed,
		Message:       "Return processed",
		ProcessedAt:   now,
		ClientEventID: eventID,
		Request:       req,
	}, nil
}

// replay answers for an event id that was already applied. It returns nil
// and no error when the id is new. Events recorded in another branch read
// as not found.
func (s *ReturnService) replay(ctx context.Context, actor model.Principal, eventID string) (*ReturnResult, error) {
	ev, err := s.requests.ReturnEvent(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageFailure(s.log, "load return event", err)
	}

	req, err := s.requests.Get(ctx, ev.BorrowRequestID)
	switch {
	case err == nil:
		if req.BranchID != actor.BranchID {
			return nil, apierror.NotFound("Return event not found")
		}
	case errors.Is(err, repository.ErrNotFound):
		// The request was purged; the item still tells which branch owns the event.
		item, ierr := s.items.Get(ctx, ev.ItemID)
		if ierr != nil && !errors.Is(ierr, repository.ErrNotFound) {
			return nil, storageFailure(s.log, "load item", ierr)
		}
		if ierr != nil || item.BranchID != actor.BranchID {
			return nil, apierror.NotFound("Return event not found")
		}
		req = nil
	default:
		return nil, storageFailure(s.log, "load request", err)
	}

	return &ReturnResult{
		Status:        model.ReturnAlreadyProcessed,
		Message:       "Return already processed",
		ProcessedAt:   ev.ProcessedAt,
		ClientEventID: eventID,
		Request:       req,
	}, nil
}
