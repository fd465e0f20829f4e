package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"invencea-api/internal/export"
	"invencea-api/internal/model"
	"invencea-api/internal/repository"
	"invencea-api/pkg/apierror"
	"invencea-api/pkg/uid"
)

// InventoryService handles the per-branch stock ledger.
type InventoryService struct {
	items    repository.InventoryRepository
	branches repository.BranchRepository
	audit    *AuditService
	strict   bool
	log      *slog.Logger
}

// NewInventoryService creates a new inventory service. strictMetadata
// enables the extended ECEIS equipment fields.
func NewInventoryService(
	items repository.InventoryRepository,
	branches repository.BranchRepository,
	audit *AuditService,
	strictMetadata bool,
) *InventoryService {
	return &InventoryService{
		items:    items,
		branches: branches,
		audit:    audit,
		strict:   strictMetadata,
		log:      slog.With("component", "inventory"),
	}
}

// CreateItemInput is the payload of a new inventory item.
type CreateItemInput struct {
	BranchID              string
	Barcode               string
	TotalQuantity         int
	UnserviceableQuantity int
	Metadata              model.Metadata
}

// UpdateItemInput changes an item. Nil fields are left as they are.
type UpdateItemInput struct {
	Metadata              model.Metadata
	TotalQuantity         *int
	UnserviceableQuantity *int
}

// List returns the items of a branch with freshly derived availability.
func (s *InventoryService) List(ctx context.Context, actor model.Principal, branchID, search string) ([]model.InventoryItem, error) {
	branch, err := s.resolveBranch(ctx, actor, branchID, true)
	if err != nil {
		return nil, err
	}

	items, err := s.items.List(ctx, branch.ID)
	if err != nil {
		return nil, storageFailure(s.log, "list inventory", err)
	}
	for i := range items {
		items[i].Standardize()
	}

	items = filterItems(branch.Code, items, search)
	if branch.Code.PublicationLike() {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Metadata.Year() > items[j].Metadata.Year()
		})
	}
	return nonNil(items), nil
}

func filterItems(code model.BranchCode, items []model.InventoryItem, search string) []model.InventoryItem {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return items
	}

	matches := func(it *model.InventoryItem) bool {
		if code.PublicationLike() {
			for _, f := range []string{"authors", "year"} {
				if strings.Contains(strings.ToLower(it.Metadata.String(f)), term) {
					return true
				}
			}
			return strings.Contains(strings.ToLower(it.Metadata.Title()), term)
		}
		return strings.Contains(strings.ToLower(it.ItemName), term)
	}

	out := items[:0]
	for i := range items {
		if matches(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}

// Get returns one item.
func (s *InventoryService) Get(ctx context.Context, actor model.Principal, id string) (*model.InventoryItem, error) {
	item, err := s.load(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	item.Standardize()
	return item, nil
}

// Create registers a new item in the actor's branch.
func (s *InventoryService) Create(ctx context.Context, actor model.Principal, in CreateItemInput) (*model.InventoryItem, error) {
	branch, err := s.resolveBranch(ctx, actor, in.BranchID, false)
	if err != nil {
		return nil, err
	}

	barcode := strings.TrimSpace(in.Barcode)
	var details []apierror.FieldError
	if barcode == "" {
		details = append(details, apierror.FieldError{Field: "barcode", Message: "barcode is required"})
	}
	if in.TotalQuantity < 1 {
		details = append(details, apierror.FieldError{Field: "total_quantity", Message: "total_quantity must be at least 1"})
	}
	if in.UnserviceableQuantity < 0 || in.UnserviceableQuantity > in.TotalQuantity {
		details = append(details, apierror.FieldError{Field: "unserviceable_quantity", Message: "unserviceable_quantity must be between 0 and total_quantity"})
	}
	details = append(details, metadataIssues(branch.Code, in.Metadata, s.strict)...)
	if len(details) > 0 {
		return nil, apierror.ValidationError("Invalid inventory item", details...)
	}

	now := time.Now().UTC()
	item := &model.InventoryItem{
		ID:                    uid.New(),
		BranchID:              branch.ID,
		Barcode:               barcode,
		ItemName:              in.Metadata.Title(),
		Metadata:              in.Metadata,
		TotalQuantity:         in.TotalQuantity,
		UnserviceableQuantity: in.UnserviceableQuantity,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	item.Standardize()

	if err := s.items.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apierror.Conflict("An item with this barcode already exists in the branch").WithField("barcode", barcode)
		}
		return nil, storageFailure(s.log, "create inventory item", err)
	}

	s.audit.Record(ctx, itemAudit(actor, model.AuditCreate, item))
	return item, nil
}

// Update edits metadata and the total/unserviceable counts. Borrowed stock
// is carried through untouched.
func (s *InventoryService) Update(ctx context.Context, actor model.Principal, id string, in UpdateItemInput) (*model.InventoryItem, error) {
	item, err := s.load(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	borrowed := item.BorrowedQuantity

	if in.Metadata != nil {
		branch, err := s.branches.GetByID(ctx, item.BranchID)
		if err != nil {
			return nil, storageFailure(s.log, "load item branch", err)
		}
		if details := metadataIssues(branch.Code, in.Metadata, s.strict); len(details) > 0 {
			return nil, apierror.ValidationError("Invalid metadata", details...)
		}
		item.Metadata = in.Metadata
		item.ItemName = in.Metadata.Title()
	}
	if in.TotalQuantity != nil {
		if *in.TotalQuantity < 0 {
			return nil, apierror.ValidationError("total_quantity must not be negative")
		}
		item.TotalQuantity = *in.TotalQuantity
	}
	if in.UnserviceableQuantity != nil {
		if *in.UnserviceableQuantity < 0 {
			return nil, apierror.ValidationError("unserviceable_quantity must not be negative")
		}
		item.UnserviceableQuantity = *in.UnserviceableQuantity
	}

	if item.TotalQuantity < borrowed+item.UnserviceableQuantity {
		return nil, apierror.InvalidState("total_quantity cannot be less than borrowed plus unserviceable quantity").
			WithField("total_quantity", item.TotalQuantity).
			WithField("borrowed_quantity", borrowed).
			WithField("unserviceable_quantity", item.UnserviceableQuantity)
	}
	item.Standardize()

	if err := s.items.Update(ctx, item, borrowed); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apierror.NotFound("Item not found")
		case errors.Is(err, repository.ErrConflict):
			return nil, apierror.Conflict("Item stock changed while editing, retry")
		}
		return nil, storageFailure(s.log, "update inventory item", err)
	}

	s.audit.Record(ctx, itemAudit(actor, model.AuditUpdate, item))
	return item, nil
}

// Delete removes an item that has nothing out on loan.
func (s *InventoryService) Delete(ctx context.Context, actor model.Principal, id string) error {
	item, err := s.load(ctx, actor, id, false)
	if err != nil {
		return err
	}
	if item.BorrowedQuantity > 0 {
		return apierror.Conflict("Cannot delete while items are out").WithField("borrowed_quantity", item.BorrowedQuantity)
	}

	if err := s.items.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return apierror.NotFound("Item not found")
		case errors.Is(err, repository.ErrConflict):
			return apierror.Conflict("Cannot delete while items are out")
		}
		return storageFailure(s.log, "delete inventory item", err)
	}

	item.BorrowedQuantity = 0
	item.Standardize()
	s.audit.Record(ctx, itemAudit(actor, model.AuditDelete, item))
	return nil
}

// History returns the audit trail of one item, newest first.
func (s *InventoryService) History(ctx context.Context, actor model.Principal, id string) ([]model.AuditLog, error) {
	if _, err := s.load(ctx, actor, id, true); err != nil {
		return nil, err
	}
	return s.audit.ItemHistory(ctx, id)
}

// Borrow takes quantity units out directly, outside the request lifecycle.
func (s *InventoryService) Borrow(ctx context.Context, actor model.Principal, id string, quantity int) (*model.InventoryItem, error) {
	return s.adjust(ctx, actor, id, model.StockBorrow, quantity)
}

// Return puts quantity units back directly, outside the request lifecycle.
func (s *InventoryService) Return(ctx context.Context, actor model.Principal, id string, quantity int) (*model.InventoryItem, error) {
	return s.adjust(ctx, actor, id, model.StockReturn, quantity)
}

func (s *InventoryService) adjust(ctx context.Context, actor model.Principal, id string, action model.StockAction, quantity int) (*model.InventoryItem, error) {
	if quantity < 1 {
		return nil, apierror.BadRequest("quantity must be a positive integer")
	}
	if _, err := s.load(ctx, actor, id, false); err != nil {
		return nil, err
	}

	item, err := s.items.Adjust(ctx, id, action, quantity, repository.LedgerRef{ActorID: actor.ID})
	if err != nil {
		return nil, ledgerError(s.log, "adjust stock", err)
	}

	auditAction := model.AuditBorrow
	if action == model.StockReturn {
		auditAction = model.AuditReturn
	}
	entry := itemAudit(actor, auditAction, item)
	entry.Snapshot["quantity"] = quantity
	s.audit.Record(ctx, entry)
	return item, nil
}

// Label renders a printable barcode label for an item.
func (s *InventoryService) Label(ctx context.Context, actor model.Principal, id string) ([]byte, error) {
	item, err := s.load(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	branch, err := s.branches.GetByID(ctx, item.BranchID)
	if err != nil {
		return nil, storageFailure(s.log, "load item branch", err)
	}

	pdf, err := export.ItemLabel(export.Label{
		ItemName: item.ItemName,
		Barcode:  item.Barcode,
		Branch:   string(branch.Code),
	})
	if err != nil {
		if errors.Is(err, export.ErrUnencodable) {
			return nil, apierror.BadRequest("Barcode cannot be printed as Code128")
		}
		return nil, storageFailure(s.log, "render label", err)
	}
	return pdf, nil
}

// load fetches an item the actor may see. Items of another branch read as
// missing. crossBranch lets faculty read other branches.
func (s *InventoryService) load(ctx context.Context, actor model.Principal, id string, crossBranch bool) (*model.InventoryItem, error) {
	item, err := s.items.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NotFound("Item not found")
	}
	if err != nil {
		return nil, storageFailure(s.log, "load inventory item", err)
	}
	if item.BranchID != actor.BranchID && !(crossBranch && actor.Role == model.RoleFaculty) {
		return nil, apierror.NotFound("Item not found")
	}
	return item, nil
}

// resolveBranch turns a branch id or code into a branch the actor may use.
// An empty reference means the actor's own branch.
func (s *InventoryService) resolveBranch(ctx context.Context, actor model.Principal, ref string, crossBranch bool) (*model.Branch, error) {
	branch, err := lookupBranch(ctx, s.log, s.branches, actor, ref)
	if err != nil {
		return nil, err
	}
	if branch.ID != actor.BranchID && !(crossBranch && actor.Role == model.RoleFaculty) {
		return nil, apierror.Forbidden("Cannot access another branch")
	}
	return branch, nil
}

func lookupBranch(ctx context.Context, log *slog.Logger, branches repository.BranchRepository, actor model.Principal, ref string) (*model.Branch, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = actor.BranchID
	}
	if ref == "" {
		return nil, apierror.BadRequest("branch_id is required")
	}

	var (
		branch *model.Branch
		err    error
	)
	if code, ok := model.ParseBranchCode(ref); ok {
		branch, err = branches.GetByCode(ctx, code)
	} else {
		branch, err = branches.GetByID(ctx, ref)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.InvalidBranch(ref)
	}
	if err != nil {
		return nil, storageFailure(log, "resolve branch", err)
	}
	return branch, nil
}

func metadataIssues(code model.BranchCode, md model.Metadata, strict bool) []apierror.FieldError {
	issues := model.ValidateMetadata(code, md, strict)
	out := make([]apierror.FieldError, 0, len(issues))
	for _, is := range issues {
		out = append(out, apierror.FieldError{Field: "metadata." + is.Field, Message: is.Message})
	}
	return out
}
