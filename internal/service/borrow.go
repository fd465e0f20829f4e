package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"invencea-api/internal/model"
	"invencea-api/internal/repository"
	"invencea-api/pkg/apierror"
	"invencea-api/pkg/uid"
)

var schoolIDPattern = regexp.MustCompile(`^\d{4}-\d{5,6}$`)

const (
	defaultListLimit = 200
	maxListLimit     = 2000
)

// BorrowService drives borrow requests through their lifecycle.
type BorrowService struct {
	requests repository.BorrowRepository
	items    repository.InventoryRepository
	branches repository.BranchRepository
	audit    *AuditService
	log      *slog.Logger
	now      func() time.Time
}

// NewBorrowService creates a new borrow service.
func NewBorrowService(
	requests repository.BorrowRepository,
	items repository.InventoryRepository,
	branches repository.BranchRepository,
	audit *AuditService,
) *BorrowService {
	return &BorrowService{
		requests: requests,
		items:    items,
		branches: branches,
		audit:    audit,
		log:      slog.With("component", "borrow"),
		now:      time.Now,
	}
}

// CreateRequestInput is a new borrow request.
type CreateRequestInput struct {
	BranchID      string
	RequesterName string
	RequesterID   string
	Note          string
	Items         []model.BorrowItem
}

// ListInput filters the admin listing.
type ListInput struct {
	Status string
	From   *time.Time
	To     *time.Time
	Search string
	Limit  int
	Offset int
}

// Create files a new PENDING request.
func (s *BorrowService) Create(ctx context.Context, actor model.Principal, in CreateRequestInput) (*model.BorrowRequest, error) {
	name := strings.TrimSpace(in.RequesterName)
	if name == "" {
		return nil, apierror.BadRequest("requester_name is required")
	}
	if len(in.Items) == 0 {
		return nil, apierror.BadRequest("At least one item is required")
	}

	lines, details := mergeLines(in.Items)
	if len(details) > 0 {
		return nil, apierror.ValidationError("Invalid items", details...)
	}

	branchRef := in.BranchID
	if actor.Role == model.RoleKiosk {
		branchRef = actor.BranchID
	}
	branch, err := lookupBranch(ctx, s.log, s.branches, actor, branchRef)
	if err != nil {
		return nil, err
	}
	if branch.ID != actor.BranchID && actor.Role != model.RoleFaculty {
		return nil, apierror.Forbidden("Cannot file requests for another branch")
	}

	requesterID := strings.TrimSpace(in.RequesterID)
	if actor.Role.RequiresSchoolID() && !schoolIDPattern.MatchString(requesterID) {
		return nil, apierror.ValidationError("requester_id must be a school ID like 2021-12345",
			apierror.FieldError{Field: "requester_id", Message: "expected 4 digits, a hyphen, then 5 or 6 digits"})
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ItemID
	}
	found, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return nil, storageFailure(s.log, "load requested items", err)
	}
	for i, l := range lines {
		if it, ok := found[l.ItemID]; !ok || it.BranchID != branch.ID {
			details = append(details, apierror.FieldError{
				Field:   fmt.Sprintf("items[%d].item_id", i),
				Message: "item does not exist in this branch",
			})
		}
	}
	if len(details) > 0 {
		return nil, apierror.ValidationError("Unknown items", details...)
	}

	now := s.now().UTC()
	req := &model.BorrowRequest{
		ID:            uid.New(),
		BranchID:      branch.ID,
		RequesterName: name,
		RequesterID:   ptr(requesterID),
		Items:         lines,
		Note:          strings.TrimSpace(in.Note),
		Status:        model.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if actor.Role == model.RoleKiosk {
		req.KioskID = ptr(actor.ID)
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, storageFailure(s.log, "create borrow request", err)
	}

	s.audit.Record(ctx, requestAudit(actor, model.AuditBorrow, req))
	return req, nil
}

// mergeLines validates request lines and folds repeated item ids together,
// keeping first-seen order.
func mergeLines(items []model.BorrowItem) (model.BorrowItems, []apierror.FieldError) {
	var (
		out     model.BorrowItems
		details []apierror.FieldError
	)
	for i, it := range items {
		id := strings.TrimSpace(it.ItemID)
		if id == "" {
			details = append(details, apierror.FieldError{Field: fmt.Sprintf("items[%d].item_id", i), Message: "item_id is required"})
			continue
		}
		if it.Quantity < 1 {
			details = append(details, apierror.FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "quantity must be a positive integer"})
			continue
		}
		if idx := out.Index(id); idx >= 0 {
			out[idx].Quantity += it.Quantity
			continue
		}
		out = append(out, model.BorrowItem{ItemID: id, Quantity: it.Quantity})
	}
	return out, details
}

// ListMine returns the requests filed by a kiosk or a faculty member.
func (s *BorrowService) ListMine(ctx context.Context, actor model.Principal, branchID string) ([]model.BorrowRequestView, error) {
	f := repository.MineFilter{BranchID: actor.BranchID}
	switch actor.Role {
	case model.RoleKiosk:
		f.KioskID = actor.ID
	case model.RoleFaculty:
		f.RequesterID = actor.ID
		f.RequesterName = actor.FullName
		if branchID != "" {
			branch, err := lookupBranch(ctx, s.log, s.branches, actor, branchID)
			if err != nil {
				return nil, err
			}
			f.BranchID = branch.ID
		}
	default:
		return nil, apierror.RoleNotAllowed(string(model.RoleKiosk), string(model.RoleFaculty))
	}

	rows, err := s.requests.ListMine(ctx, f)
	if err != nil {
		return nil, storageFailure(s.log, "list own requests", err)
	}
	return s.enrich(ctx, rows)
}

// ListAll returns a page of the branch's requests and the total match count.
func (s *BorrowService) ListAll(ctx context.Context, actor model.Principal, in ListInput) ([]model.BorrowRequestView, int, error) {
	f := repository.ListFilter{
		BranchID: actor.BranchID,
		From:     in.From,
		To:       in.To,
		Search:   in.Search,
		Limit:    in.Limit,
		Offset:   in.Offset,
	}
	if in.Status != "" {
		st, ok := model.ParseBorrowStatus(in.Status)
		if !ok {
			return nil, 0, apierror.BadRequest("Unknown status " + in.Status)
		}
		f.Status = st
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	rows, total, err := s.requests.List(ctx, f)
	if err != nil {
		return nil, 0, storageFailure(s.log, "list requests", err)
	}
	views, err := s.enrich(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// Get returns one request of the actor's branch.
func (s *BorrowService) Get(ctx context.Context, actor model.Principal, id string) (*model.BorrowRequestView, error) {
	req, err := s.requests.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NotFound("Borrow request not found")
	}
	if err != nil {
		return nil, storageFailure(s.log, "load request", err)
	}

	ownFaculty := actor.Role == model.RoleFaculty && req.RequesterID != nil && *req.RequesterID == actor.ID
	if req.BranchID != actor.BranchID && !ownFaculty {
		return nil, apierror.Forbidden("Borrow request belongs to another branch")
	}

	views, err := s.enrich(ctx, []model.BorrowRequest{*req})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Transition moves a request to next. Checks, every ledger movement and the
// status write commit together or not at all.
func (s *BorrowService) Transition(ctx context.Context, actor model.Principal, id, next string) (*model.BorrowRequestView, error) {
	target, ok := model.ParseBorrowStatus(next)
	if !ok || target == model.StatusPending {
		return nil, apierror.BadRequest("status must be one of APPROVED, DENIED, ISSUED, RETURNED")
	}

	req, err := s.requests.Mutate(ctx, id, func(ctx context.Context, req *model.BorrowRequest, ledger repository.StockLedger) error {
		if req.BranchID != actor.BranchID {
			return apierror.Forbidden("Borrow request belongs to another branch")
		}
		if !req.Status.CanTransitionTo(target) {
			return apierror.InvalidTransition(string(req.Status), string(target))
		}
		return s.apply(ctx, actor, req, target, ledger)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NotFound("Borrow request not found")
	}
	if err != nil {
		return nil, ledgerError(s.log, "transition request", err)
	}

	action := model.AuditUpdate
	if target == model.StatusIssued {
		action = model.AuditBorrow
	}
	s.audit.Record(ctx, requestAudit(actor, action, req))

	s.log.Info("request transitioned", "borrow_request_id", req.ID, "status", req.Status, "actor_id", actor.ID)
	views, err := s.enrich(ctx, []model.BorrowRequest{*req})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *BorrowService) apply(ctx context.Context, actor model.Principal, req *model.BorrowRequest, target model.BorrowStatus, ledger repository.StockLedger) error {
	now := s.now().UTC()
	ref := repository.LedgerRef{BorrowRequestID: req.ID, ActorID: actor.ID}

	switch target {
	case model.StatusApproved:
		for _, line := range req.Items {
			item, err := ledger.Item(ctx, line.ItemID)
			if errors.Is(err, repository.ErrNotFound) {
				return apierror.NotFound("Requested item no longer exists").WithField("item_id", line.ItemID)
			}
			if err != nil {
				return err
			}
			item.Standardize()
			if line.Quantity > item.AvailableQuantity {
				return apierror.InsufficientStock(item.ID, item.ItemName, line.Quantity, item.AvailableQuantity)
			}
		}
		if req.ApprovedAt == nil {
			req.ApprovedAt = &now
			req.ApprovedBy = ptr(actor.ID)
		}

	case model.StatusIssued:
		for _, line := range req.Items {
			if _, err := ledger.Issue(ctx, line.ItemID, line.Quantity, ref); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apierror.NotFound("Requested item no longer exists").WithField("item_id", line.ItemID)
				}
				return err
			}
		}
		req.IssuedAt = &now
		req.IssuedBy = ptr(actor.ID)

	case model.StatusReturned:
		// Whatever is still out goes back to the shelf.
		for i, line := range req.Items {
			if rem := line.Remaining(); rem > 0 {
				if _, err := ledger.Release(ctx, line.ItemID, rem, ref); err != nil {
					return err
				}
				req.Items[i].ReturnedQuantity = line.Quantity
			}
		}
		req.ReturnedAt = &now
		req.ReturnedBy = ptr(actor.ID)

	case model.StatusDenied:
	}

	req.Status = target
	req.AdminID = ptr(actor.ID)
	return nil
}

// ListIssued returns every outstanding issued line of the branch, oldest
// issue first.
func (s *BorrowService) ListIssued(ctx context.Context, actor model.Principal) ([]model.IssuedLine, error) {
	rows, err := s.requests.ListIssued(ctx, actor.BranchID)
	if err != nil {
		return nil, storageFailure(s.log, "list issued requests", err)
	}
	items, err := s.items.GetMany(ctx, itemIDs(rows))
	if err != nil {
		return nil, storageFailure(s.log, "load issued items", err)
	}

	out := []model.IssuedLine{}
	for _, r := range rows {
		for _, line := range r.Items {
			if line.Remaining() == 0 {
				continue
			}
			il := model.IssuedLine{
				BorrowRequestID:   r.ID,
				RequesterName:     r.RequesterName,
				RequesterID:       r.RequesterID,
				ItemID:            line.ItemID,
				Quantity:          line.Quantity,
				ReturnedQuantity:  line.ReturnedQuantity,
				RemainingQuantity: line.Remaining(),
				IssuedAt:          r.IssuedAt,
			}
			if it, ok := items[line.ItemID]; ok {
				il.ItemName = it.ItemName
				il.Barcode = it.Barcode
			}
			out = append(out, il)
		}
	}
	return out, nil
}

// enrich attaches current item names and quantities to every line.
func (s *BorrowService) enrich(ctx context.Context, rows []model.BorrowRequest) ([]model.BorrowRequestView, error) {
	items, err := s.items.GetMany(ctx, itemIDs(rows))
	if err != nil {
		return nil, storageFailure(s.log, "enrich requests", err)
	}

	views := make([]model.BorrowRequestView, len(rows))
	for i := range rows {
		r := &rows[i]
		lines := make([]model.BorrowItemView, len(r.Items))
		for j, line := range r.Items {
			v := model.BorrowItemView{BorrowItem: line, ItemName: "Unknown item"}
			if it, ok := items[line.ItemID]; ok {
				it.Standardize()
				v.ItemName = it.ItemName
				v.Barcode = it.Barcode
				v.Inventory = &model.InventoryMeta{
					TotalQuantity:         it.TotalQuantity,
					BorrowedQuantity:      it.BorrowedQuantity,
					UnserviceableQuantity: it.UnserviceableQuantity,
					AvailableQuantity:     it.AvailableQuantity,
				}
			}
			lines[j] = v
		}
		views[i] = model.BorrowRequestView{BorrowRequest: r, Items: lines}
	}
	return views, nil
}

func itemIDs(rows []model.BorrowRequest) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range rows {
		for _, line := range r.Items {
			if _, ok := seen[line.ItemID]; !ok {
				seen[line.ItemID] = struct{}{}
				ids = append(ids, line.ItemID)
			}
		}
	}
	return ids
}
