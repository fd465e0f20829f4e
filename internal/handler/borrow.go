package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"invencea-api/internal/model"
	"invencea-api/internal/service"
	"invencea-api/pkg/response"
)

// BorrowHandler handles borrow request and return HTTP requests.
type BorrowHandler struct {
	borrowService *service.BorrowService
	returnService *service.ReturnService
}

// NewBorrowHandler creates a new borrow handler.
func NewBorrowHandler(borrowService *service.BorrowService, returnService *service.ReturnService) *BorrowHandler {
	return &BorrowHandler{
		borrowService: borrowService,
		returnService: returnService,
	}
}

// BorrowLineRequest is one requested item.
type BorrowLineRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity"`
}

// CreateBorrowRequest is the body of POST /borrow-requests.
type CreateBorrowRequest struct {
	BranchID      string              `json:"branch_id"`
	RequesterName string              `json:"requester_name" validate:"max=200"`
	RequesterID   string              `json:"requester_id" validate:"max=64"`
	Note          string              `json:"note" validate:"max=2000"`
	Items         []BorrowLineRequest `json:"items" validate:"dive"`
}

// StatusRequest is the body of POST /borrow-requests/{id}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ReturnRequest is the body of POST /borrow-requests/return-by-barcode.
type ReturnRequest struct {
	Barcode          string     `json:"barcode" validate:"required"`
	Quantity         int        `json:"quantity"`
	BorrowRequestID  string     `json:"borrow_request_id"`
	ClientEventID    string     `json:"client_event_id" validate:"max=128"`
	ReturnedAt       *time.Time `json:"returned_at"`
	ClientReturnedAt *time.Time `json:"client_returned_at"`
}

// Create handles POST /api/borrow-requests
func (h *BorrowHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	var req CreateBorrowRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	lines := make([]model.BorrowItem, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, model.BorrowItem{ItemID: it.ItemID, Quantity: it.Quantity})
	}

	created, err := h.borrowService.Create(r.Context(), p, service.CreateRequestInput{
		BranchID:      req.BranchID,
		RequesterName: req.RequesterName,
		RequesterID:   req.RequesterID,
		Note:          req.Note,
		Items:         lines,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, created)
}

// Mine handles GET /api/borrow-requests/mine
func (h *BorrowHandler) Mine(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	rows, err := h.borrowService.ListMine(r.Context(), p, r.URL.Query().Get("branch_id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, rows)
}

// List handles GET /api/borrow-requests?status=&from=&to=&search=&limit=&offset=
func (h *BorrowHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	in, err := listInput(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	rows, total, err := h.borrowService.ListAll(r.Context(), p, in)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, rows, in.Limit, in.Offset, int64(total))
}

func listInput(r *http.Request) (service.ListInput, error) {
	q := r.URL.Query()
	in := service.ListInput{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}

	var err error
	if in.From, err = queryTime(r, "from", false); err != nil {
		return in, err
	}
	if in.To, err = queryTime(r, "to", true); err != nil {
		return in, err
	}
	if in.Limit, err = queryInt(r, "limit", 200); err != nil {
		return in, err
	}
	if in.Limit < 1 {
		in.Limit = 200
	}
	if in.Limit > 2000 {
		in.Limit = 2000
	}
	if in.Offset, err = queryInt(r, "offset", 0); err != nil {
		return in, err
	}
	if in.Offset < 0 {
		in.Offset = 0
	}
	return in, nil
}

// Issued handles GET /api/borrow-requests/issued
func (h *BorrowHandler) Issued(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	lines, err := h.borrowService.ListIssued(r.Context(), p)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, lines)
}

// Get handles GET /api/borrow-requests/{id}
func (h *BorrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	view, err := h.borrowService.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, view)
}

// UpdateStatus handles POST /api/borrow-requests/{id}/status
func (h *BorrowHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	view, err := h.borrowService.Transition(r.Context(), p, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMessage(w, http.StatusOK, "Status updated to "+string(view.Status), view)
}

// ReturnOptions handles GET /api/borrow-requests/return-options?barcode=
func (h *BorrowHandler) ReturnOptions(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	opts, err := h.returnService.FindReturnOptions(r.Context(), p, r.URL.Query().Get("barcode"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, opts)
}

// ReturnByBarcode handles POST /api/borrow-requests/return-by-barcode
func (h *BorrowHandler) ReturnByBarcode(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	var req ReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	returnedAt := req.ReturnedAt
	if returnedAt == nil {
		returnedAt = req.ClientReturnedAt
	}

	result, err := h.returnService.ReturnByBarcode(r.Context(), p, service.ReturnInput{
		Barcode:         req.Barcode,
		Quantity:        req.Quantity,
		BorrowRequestID: req.BorrowRequestID,
		ClientEventID:   req.ClientEventID,
		ReturnedAt:      returnedAt,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMessage(w, http.StatusOK, result.Message, result)
}
