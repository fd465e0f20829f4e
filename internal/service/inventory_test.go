package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invencea-api/internal/model"
)

func TestCreateItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	item, err := h.inventory.Create(ctx, h.admin, CreateItemInput{
		Barcode:               " ACE-001 ",
		TotalQuantity:         5,
		UnserviceableQuantity: 1,
		Metadata:              model.Metadata{"item_name": "Arduino Uno", "item_type": "board"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ACE-001", item.Barcode)
	assert.Equal(t, "Arduino Uno", item.ItemName)
	assert.Equal(t, 4, item.AvailableQuantity)
	assert.Equal(t, 0, item.BorrowedQuantity)
	assert.True(t, item.Balanced())

	_, err = h.inventory.Create(ctx, h.admin, CreateItemInput{
		Barcode:       "ACE-001",
		TotalQuantity: 1,
		Metadata:      model.Metadata{"item_name": "Dup", "item_type": "board"},
	})
	requireCode(t, err, "CONFLICT")

	history, err := h.inventory.History(ctx, h.admin, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.AuditCreate, history[0].Action)
}

func TestCreateItemValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.inventory.Create(ctx, h.admin, CreateItemInput{
		Barcode:               "",
		TotalQuantity:         0,
		UnserviceableQuantity: 2,
		Metadata:              model.Metadata{"item_name": "Thing"},
	})
	apiErr := requireCode(t, err, "VALIDATION_ERROR")
	fields := make([]string, 0, len(apiErr.Details))
	for _, d := range apiErr.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"barcode", "total_quantity", "unserviceable_quantity", "metadata.item_type"}, fields)

	_, err = h.inventory.Create(ctx, h.admin, CreateItemInput{BranchID: "CPEIS", Barcode: "X", TotalQuantity: 1, Metadata: model.Metadata{"item_name": "x", "item_type": "y"}})
	requireCode(t, err, "FORBIDDEN")

	_, err = h.inventory.Create(ctx, h.admin, CreateItemInput{BranchID: "nowhere", Barcode: "X", TotalQuantity: 1})
	requireCode(t, err, "INVALID_BRANCH")
}

func TestCPEISMetadataAndOrdering(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	librarian := h.addUser(t, "admin@cpeis.test", model.RoleAdmin, model.BranchCPEIS, "Lib Admin")

	_, err := h.inventory.Create(ctx, librarian, CreateItemInput{
		Barcode: "TH-1", TotalQuantity: 1,
		Metadata: model.Metadata{"thesis_title": "Solar Dryers", "authors": "Santos", "year": "21"},
	})
	requireCode(t, err, "VALIDATION_ERROR")

	for i, md := range []model.Metadata{
		{"thesis_title": "Solar Dryers", "authors": "Santos", "year": "2019"},
		{"thesis_title": "Mesh Networks", "authors": "Garcia", "year": "2023"},
		{"item_name": "Rice Sorter", "authors": "Lim, Santos", "year": "2021"},
	} {
		_, err := h.inventory.Create(ctx, librarian, CreateItemInput{Barcode: "TH-" + string(rune('A'+i)), TotalQuantity: 1, Metadata: md})
		require.NoError(t, err)
	}

	items, err := h.inventory.List(ctx, librarian, "", "")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Mesh Networks", items[0].ItemName)
	assert.Equal(t, "Rice Sorter", items[1].ItemName)
	assert.Equal(t, "Solar Dryers", items[2].ItemName)

	items, err = h.inventory.List(ctx, librarian, "", "santos")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = h.inventory.List(ctx, librarian, "", "2023")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestListItemsBranchScope(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addItem(t, "Zener Kit", 1)
	h.addItem(t, "Anvil", 1)

	items, err := h.inventory.List(ctx, h.admin, "", "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Anvil", items[0].ItemName)

	items, err = h.inventory.List(ctx, h.admin, "", "ZENER")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = h.inventory.List(ctx, h.admin, "ECEIS", "")
	requireCode(t, err, "FORBIDDEN")

	// Faculty may browse another branch.
	outsider := h.addUser(t, "prof@eceis.test", model.RoleFaculty, model.BranchECEIS, "Prof Cruz")
	items, err = h.inventory.List(ctx, outsider, "ACEIS", "")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	otherAdmin := h.addUser(t, "admin@eceis.test", model.RoleAdmin, model.BranchECEIS, "Other")
	_, err = h.inventory.Get(ctx, otherAdmin, items[0].ID)
	requireCode(t, err, "NOT_FOUND")
}

func TestUpdateItemKeepsBorrowed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Oscilloscope", 5)

	req := h.newRequest(t, line(item.ID, 3))
	h.advance(t, req.ID, model.StatusApproved, model.StatusIssued)

	total, unserviceable := 3, 1
	_, err := h.inventory.Update(ctx, h.admin, item.ID, UpdateItemInput{TotalQuantity: &total, UnserviceableQuantity: &unserviceable})
	requireCode(t, err, "INVALID_STATE")

	total = 6
	updated, err := h.inventory.Update(ctx, h.admin, item.ID, UpdateItemInput{
		TotalQuantity:         &total,
		UnserviceableQuantity: &unserviceable,
		Metadata:              model.Metadata{"item_name": "Digital Oscilloscope", "item_type": "equipment"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.BorrowedQuantity)
	assert.Equal(t, 2, updated.AvailableQuantity)
	assert.Equal(t, "Digital Oscilloscope", updated.ItemName)

	stored := h.stock(t, item.ID)
	assert.Equal(t, 6, stored.TotalQuantity)
	assert.Equal(t, 3, stored.BorrowedQuantity)

	_, err = h.inventory.Update(ctx, h.admin, item.ID, UpdateItemInput{Metadata: model.Metadata{"item_name": "no type"}})
	requireCode(t, err, "VALIDATION_ERROR")
}

func TestDeleteItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Oscilloscope", 2)

	_, err := h.inventory.Borrow(ctx, h.admin, item.ID, 1)
	require.NoError(t, err)

	err = h.inventory.Delete(ctx, h.admin, item.ID)
	requireCode(t, err, "CONFLICT")

	_, err = h.inventory.Return(ctx, h.admin, item.ID, 1)
	require.NoError(t, err)

	require.NoError(t, h.inventory.Delete(ctx, h.admin, item.ID))

	_, err = h.inventory.Get(ctx, h.admin, item.ID)
	requireCode(t, err, "NOT_FOUND")
}

func TestDirectBorrowReturn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.addItem(t, "Crimper", 2)

	_, err := h.inventory.Borrow(ctx, h.kiosk, item.ID, 3)
	requireCode(t, err, "INSUFFICIENT_STOCK")

	out, err := h.inventory.Borrow(ctx, h.kiosk, item.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, out.BorrowedQuantity)
	assert.Equal(t, 0, out.AvailableQuantity)

	_, err = h.inventory.Return(ctx, h.kiosk, item.ID, 3)
	requireCode(t, err, "INVALID_STATE")

	_, err = h.inventory.Borrow(ctx, h.kiosk, item.ID, 0)
	requireCode(t, err, "BAD_REQUEST")

	back, err := h.inventory.Return(ctx, h.kiosk, item.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, back.AvailableQuantity)
	assert.True(t, back.Balanced())
}

func TestStrictECEISMetadata(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	eceAdmin := h.addUser(t, "admin@eceis.test", model.RoleAdmin, model.BranchECEIS, "ECE Admin")
	strict := NewInventoryService(h.items, h.branches, h.audit, true)

	md := model.Metadata{"item_name": "Function Generator", "item_type": "equipment"}
	_, err := strict.Create(ctx, eceAdmin, CreateItemInput{Barcode: "ECE-1", TotalQuantity: 1, Metadata: md})
	requireCode(t, err, "VALIDATION_ERROR")

	md["serial_number"] = "SN-1"
	md["analog_digital"] = "Digital"
	md["condition"] = "good"
	_, err = strict.Create(ctx, eceAdmin, CreateItemInput{Barcode: "ECE-1", TotalQuantity: 1, Metadata: md})
	require.NoError(t, err)

	_, err = h.inventory.Create(ctx, eceAdmin, CreateItemInput{
		Barcode: "ECE-2", TotalQuantity: 1,
		Metadata: model.Metadata{"item_name": "Breadboard", "item_type": "consumable"},
	})
	require.NoError(t, err)
}

func TestItemLabel(t *testing.T) {
	h := newHarness(t)
	item := h.addItem(t, "Oscilloscope", 1)

	pdf, err := h.inventory.Label(context.Background(), h.admin, item.ID)
	require.NoError(t, err)
	assert.True(t, len(pdf) > 4 && string(pdf[:4]) == "%PDF")
}
