package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"invencea-api/internal/model"
	"invencea-api/internal/service"
	"invencea-api/pkg/apierror"
	"invencea-api/pkg/response"
)

// InventoryHandler handles inventory-related HTTP requests.
type InventoryHandler struct {
	inventoryService *service.InventoryService
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(inventoryService *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
	}
}

// CreateItemRequest is the body of POST /inventory.
type CreateItemRequest struct {
	BranchID              string         `json:"branch_id"`
	Barcode               string         `json:"barcode" validate:"max=128"`
	TotalQuantity         int            `json:"total_quantity"`
	UnserviceableQuantity int            `json:"unserviceable_quantity"`
	Metadata              model.Metadata `json:"metadata"`
}

// UpdateItemRequest is the body of PUT /inventory/{id}. Absent fields are kept.
type UpdateItemRequest struct {
	Metadata              model.Metadata `json:"metadata"`
	TotalQuantity         *int           `json:"total_quantity"`
	UnserviceableQuantity *int           `json:"unserviceable_quantity"`
}

// QuantityRequest is the body of the direct borrow and return endpoints.
type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

// List handles GET /api/inventory?branch_id=&search=
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	q := r.URL.Query()
	items, err := h.inventoryService.List(r.Context(), p, q.Get("branch_id"), q.Get("search"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, items)
}

// Get handles GET /api/inventory/{id}
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.inventoryService.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}

// Create handles POST /api/inventory
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	var req CreateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.inventoryService.Create(r.Context(), p, service.CreateItemInput{
		BranchID:              req.BranchID,
		Barcode:               req.Barcode,
		TotalQuantity:         req.TotalQuantity,
		UnserviceableQuantity: req.UnserviceableQuantity,
		Metadata:              req.Metadata,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, item)
}

// Update handles PUT /api/inventory/{id}
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	var req UpdateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	item, err := h.inventoryService.Update(r.Context(), p, chi.URLParam(r, "id"), service.UpdateItemInput{
		Metadata:              req.Metadata,
		TotalQuantity:         req.TotalQuantity,
		UnserviceableQuantity: req.UnserviceableQuantity,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}

// Delete handles DELETE /api/inventory/{id}
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	if err := h.inventoryService.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMessage(w, http.StatusOK, "Item deleted", nil)
}

// History handles GET /api/inventory/{id}/history
func (h *InventoryHandler) History(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	logs, err := h.inventoryService.History(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, logs)
}

// Label handles GET /api/inventory/{id}/label
func (h *InventoryHandler) Label(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	pdf, err := h.inventoryService.Label(r.Context(), p, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Attachment(w, "label-"+id+".pdf", "application/pdf", pdf)
}

// Borrow handles POST /api/inventory/{id}/borrow
func (h *InventoryHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, model.StockBorrow)
}

// Return handles POST /api/inventory/{id}/return
func (h *InventoryHandler) Return(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, model.StockReturn)
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request, action model.StockAction) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	var req QuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.Quantity < 1 {
		response.Error(w, apierror.BadRequest("quantity must be a positive integer"))
		return
	}

	id := chi.URLParam(r, "id")
	var item *model.InventoryItem
	if action == model.StockReturn {
		item, err = h.inventoryService.Return(r.Context(), p, id, req.Quantity)
	} else {
		item, err = h.inventoryService.Borrow(r.Context(), p, id, req.Quantity)
	}
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, item)
}
