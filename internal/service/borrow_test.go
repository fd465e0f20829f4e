package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invencea-api/internal/model"
	"invencea-api/pkg/apierror"
)

func TestTransitionGrid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Breadboard", 100)

	paths := map[model.BorrowStatus][]model.BorrowStatus{
		model.StatusPending:  nil,
		model.StatusApproved: {model.StatusApproved},
		model.StatusIssued:   {model.StatusApproved, model.StatusIssued},
		model.StatusReturned: {model.StatusApproved, model.StatusIssued, model.StatusReturned},
		model.StatusDenied:   {model.StatusDenied},
	}
	require.Len(t, paths, len(model.AllStatuses))

	for _, from := range model.AllStatuses {
		path := paths[from]
		for _, to := range model.AllStatuses {
			if to == model.StatusPending {
				continue // rejected as a bad target, see below
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				req := h.newRequest(t, line(item.ID, 1))
				h.advance(t, req.ID, path...)

				view, err := h.borrow.Transition(ctx, h.admin, req.ID, string(to))
				if from.CanTransitionTo(to) {
					require.False(t, from.Terminal())
					require.NoError(t, err)
					assert.Equal(t, to, view.Status)
					assert.Equal(t, h.admin.ID, *view.AdminID)
					return
				}
				assert.True(t, errors.Is(err, apierror.InvalidTransition("", "")), "got %v", err)

				got, gerr := h.requests.Get(ctx, req.ID)
				require.NoError(t, gerr)
				assert.Equal(t, from, got.Status)
			})
		}
	}

	h.stock(t, item.ID)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t)
	item := h.addItem(t, "Breadboard", 1)
	req := h.newRequest(t, line(item.ID, 1))

	_, err := h.borrow.Transition(context.Background(), h.admin, req.ID, "LOST")
	requireCode(t, err, "BAD_REQUEST")

	_, err = h.borrow.Transition(context.Background(), h.admin, req.ID, "pending")
	requireCode(t, err, "BAD_REQUEST")
}

func TestTransitionNotFoundAndOtherBranch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.borrow.Transition(ctx, h.admin, "missing", "APPROVED")
	requireCode(t, err, "NOT_FOUND")

	item := h.addItem(t, "Breadboard", 1)
	req := h.newRequest(t, line(item.ID, 1))
	other := h.addUser(t, "admin@eceis.test", model.RoleAdmin, model.BranchECEIS, "Other Admin")

	_, err = h.borrow.Transition(ctx, other, req.ID, "APPROVED")
	requireCode(t, err, "FORBIDDEN")

	_, err = h.borrow.Get(ctx, other, req.ID)
	requireCode(t, err, "FORBIDDEN")
}

func TestApproveInsufficientStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Soldering Iron", 2)
	req := h.newRequest(t, line(item.ID, 5))

	_, err := h.borrow.Transition(ctx, h.admin, req.ID, "APPROVED")
	apiErr := requireCode(t, err, "INSUFFICIENT_STOCK")
	assert.Equal(t, 5, apiErr.Fields["requested"])
	assert.Equal(t, 2, apiErr.Fields["available"])
	assert.Equal(t, "Soldering Iron", apiErr.Fields["item_name"])

	got, err := h.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Nil(t, got.ApprovedAt)
}

func TestIssueIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.addItem(t, "Multimeter", 5)
	b := h.addItem(t, "Probe Set", 2)

	req := h.newRequest(t, line(a.ID, 3), line(b.ID, 2))
	h.advance(t, req.ID, model.StatusApproved)

	// Someone takes a probe set out directly between approval and issue.
	_, err := h.inventory.Borrow(ctx, h.admin, b.ID, 1)
	require.NoError(t, err)

	_, err = h.borrow.Transition(ctx, h.admin, req.ID, "ISSUED")
	requireCode(t, err, "INSUFFICIENT_STOCK")

	first := h.stock(t, a.ID)
	assert.Equal(t, 0, first.BorrowedQuantity)
	assert.Equal(t, 5, first.AvailableQuantity)

	second := h.stock(t, b.ID)
	assert.Equal(t, 1, second.BorrowedQuantity)

	got, err := h.requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	assert.Nil(t, got.IssuedAt)
}

func TestManualReturnReleasesRemainder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Function Generator", 4)

	req := h.newRequest(t, line(item.ID, 3))
	h.advance(t, req.ID, model.StatusApproved, model.StatusIssued)
	assert.Equal(t, 3, h.stock(t, item.ID).BorrowedQuantity)

	_, err := h.returns.ReturnByBarcode(ctx, h.admin, ReturnInput{Barcode: item.Barcode, Quantity: 1})
	require.NoError(t, err)

	view, err := h.borrow.Transition(ctx, h.admin, req.ID, "RETURNED")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReturned, view.Status)
	assert.NotNil(t, view.ReturnedAt)
	assert.Equal(t, 3, view.Items[0].ReturnedQuantity)

	after := h.stock(t, item.ID)
	assert.Equal(t, 0, after.BorrowedQuantity)
	assert.Equal(t, 4, after.AvailableQuantity)
}

func TestApprovalStampsOnce(t *testing.T) {
	h := newHarness(t)
	item := h.addItem(t, "Oscilloscope", 2)
	req := h.newRequest(t, line(item.ID, 1))

	h.advance(t, req.ID, model.StatusApproved, model.StatusIssued)

	got, err := h.requests.Get(context.Background(), req.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ApprovedAt)
	require.NotNil(t, got.IssuedAt)
	assert.Equal(t, h.admin.ID, *got.ApprovedBy)
	assert.Equal(t, h.admin.ID, *got.IssuedBy)
	assert.False(t, got.IssuedAt.Before(*got.ApprovedAt))
}

func TestCreateRequestValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Oscilloscope", 2)

	t.Run("requester name", func(t *testing.T) {
		_, err := h.borrow.Create(ctx, h.kiosk, CreateRequestInput{RequesterID: "2021-12345", Items: []model.BorrowItem{line(item.ID, 1)}})
		requireCode(t, err, "BAD_REQUEST")
	})

	t.Run("no items", func(t *testing.T) {
		_, err := h.borrow.Create(ctx, h.kiosk, CreateRequestInput{RequesterName: "A", RequesterID: "2021-12345"})
		requireCode(t, err, "BAD_REQUEST")
	})

	t.Run("zero quantity", func(t *testing.T) {
		_, err := h.borrow.Create(ctx, h.kiosk, CreateRequestInput{RequesterName: "A", RequesterID: "2021-12345", Items: []model.BorrowItem{line(item.ID, 0)}})
		requireCode(t, err, "VALIDATION_ERROR")
	})

	t.Run("kiosk school id", func(t *testing.T) {
		for _, id := range []string{"", "21-12345", "2021-1234", "2021-1234567", "abcd-12345"} {
			_, err := h.borrow.Create(ctx, h.kiosk, CreateRequestInput{RequesterName: "A", RequesterID: id, Items: []model.BorrowItem{line(item.ID, 1)}})
			requireCode(t, err, "VALIDATION_ERROR")
		}
	})

	t.Run("faculty free requester id", func(t *testing.T) {
		req, err := h.borrow.Create(ctx, h.faculty, CreateRequestInput{RequesterName: "Prof Reyes", Items: []model.BorrowItem{line(item.ID, 1)}})
		require.NoError(t, err)
		assert.Nil(t, req.RequesterID)
		assert.Nil(t, req.KioskID)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := h.borrow.Create(ctx, h.kiosk, CreateRequestInput{RequesterName: "A", RequesterID: "2021-12345", Items: []model.BorrowItem{line("nope", 1)}})
		apiErr := requireCode(t, err, "VALIDATION_ERROR")
		require.Len(t, apiErr.Details, 1)
		assert.Equal(t, "items[0].item_id", apiErr.Details[0].Field)
	})

	t.Run("unknown branch", func(t *testing.T) {
		_, err := h.borrow.Create(ctx, h.faculty, CreateRequestInput{BranchID: "no-such-branch", RequesterName: "A", Items: []model.BorrowItem{line(item.ID, 1)}})
		requireCode(t, err, "INVALID_BRANCH")
	})

	t.Run("admin cannot file for another branch", func(t *testing.T) {
		_, err := h.borrow.Create(ctx, h.admin, CreateRequestInput{BranchID: "ECEIS", RequesterName: "A", RequesterID: "2021-12345", Items: []model.BorrowItem{line(item.ID, 1)}})
		requireCode(t, err, "FORBIDDEN")
	})
}

func TestCreateRequestMergesDuplicateLines(t *testing.T) {
	h := newHarness(t)
	a := h.addItem(t, "Resistor Kit", 10)
	b := h.addItem(t, "Capacitor Kit", 10)

	req := h.newRequest(t, line(a.ID, 1), line(b.ID, 2), line(a.ID, 3))
	require.Len(t, req.Items, 2)
	assert.Equal(t, a.ID, req.Items[0].ItemID)
	assert.Equal(t, 4, req.Items[0].Quantity)
	assert.Equal(t, 2, req.Items[1].Quantity)
	assert.Equal(t, model.StatusPending, req.Status)
	require.NotNil(t, req.KioskID)
	assert.Equal(t, h.kiosk.ID, *req.KioskID)
}

func TestListMine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Logic Probe", 10)

	h.newRequest(t, line(item.ID, 1))
	_, err := h.borrow.Create(ctx, h.faculty, CreateRequestInput{RequesterName: "Prof Reyes", Items: []model.BorrowItem{line(item.ID, 1)}})
	require.NoError(t, err)

	mine, err := h.borrow.ListMine(ctx, h.kiosk, "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	mine, err = h.borrow.ListMine(ctx, h.faculty, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Logic Probe", mine[0].Items[0].ItemName)

	_, err = h.borrow.ListMine(ctx, h.admin, "")
	requireCode(t, err, "ROLE_NOT_ALLOWED")
}

func TestListAllFiltersAndEnriches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Logic Analyzer", 10)

	first := h.newRequest(t, line(item.ID, 1))
	h.newRequest(t, line(item.ID, 2))
	h.advance(t, first.ID, model.StatusApproved)

	rows, total, err := h.borrow.ListAll(ctx, h.admin, ListInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rows, 2)

	rows, total, err = h.borrow.ListAll(ctx, h.admin, ListInput{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)
	require.NotNil(t, rows[0].Items[0].Inventory)
	assert.Equal(t, 10, rows[0].Items[0].Inventory.AvailableQuantity)

	_, _, err = h.borrow.ListAll(ctx, h.admin, ListInput{Status: "LOST"})
	requireCode(t, err, "BAD_REQUEST")

	rows, _, err = h.borrow.ListAll(ctx, h.admin, ListInput{Search: "2021-123"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestListIssued(t *testing.T) {
	h := newHarness(t)
	item := h.addItem(t, "Power Supply", 5)

	req := h.newRequest(t, line(item.ID, 2))
	h.newRequest(t, line(item.ID, 1))
	h.advance(t, req.ID, model.StatusApproved, model.StatusIssued)

	lines, err := h.borrow.ListIssued(context.Background(), h.admin)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, req.ID, lines[0].BorrowRequestID)
	assert.Equal(t, "Power Supply", lines[0].ItemName)
	assert.Equal(t, 2, lines[0].RemainingQuantity)
}
