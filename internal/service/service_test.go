package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invencea-api/internal/cache"
	"invencea-api/internal/model"
	"invencea-api/internal/repository"
	"invencea-api/pkg/apierror"
	"invencea-api/pkg/argon"
	"invencea-api/pkg/uid"
)

const testPassword = "correct horse battery staple"

// cheap hashing keeps the login tests fast
var testArgon = &argon.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type harness struct {
	db       *repository.DB
	branches *repository.BranchStore
	users    *repository.UserStore
	sessions *repository.SessionStore
	items    *repository.InventoryStore
	requests *repository.BorrowStore
	audits   *repository.AuditStore

	auth      *AuthService
	audit     *AuditService
	inventory *InventoryService
	borrow    *BorrowService
	returns   *ReturnService
	reports   *ReportService

	branch  map[model.BranchCode]model.Branch
	admin   model.Principal
	kiosk   model.Principal
	faculty model.Principal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.Options{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "service.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		db:       db,
		branches: repository.NewBranchStore(db),
		users:    repository.NewUserStore(db),
		sessions: repository.NewSessionStore(db),
		items:    repository.NewInventoryStore(db),
		requests: repository.NewBorrowStore(db),
		audits:   repository.NewAuditStore(db),
		branch:   make(map[model.BranchCode]model.Branch),
	}

	all, err := h.branches.EnsureDefaults(ctx)
	require.NoError(t, err)
	for _, b := range all {
		h.branch[b.Code] = b
	}

	mem := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = mem.Close() })

	tokens := NewTokenIssuer("test-secret", time.Hour, "invencea-test")
	h.auth = NewAuthService(h.users, h.sessions, tokens, mem, NewPasswordVerifier(h.users), AuthConfig{ScanSecret: "kiosk-secret"})
	h.audit = NewAuditService(h.audits)
	h.inventory = NewInventoryService(h.items, h.branches, h.audit, false)
	h.borrow = NewBorrowService(h.requests, h.items, h.branches, h.audit)
	h.returns = NewReturnService(h.requests, h.items, h.audit)
	h.reports, err = NewReportService(h.requests, h.items, "Asia/Manila")
	require.NoError(t, err)

	h.admin = h.addUser(t, "admin@aceis.test", model.RoleAdmin, model.BranchACEIS, "Ada Admin")
	h.kiosk = h.addUser(t, "kiosk@aceis.test", model.RoleKiosk, model.BranchACEIS, "Front Kiosk")
	h.faculty = h.addUser(t, "prof@aceis.test", model.RoleFaculty, model.BranchACEIS, "Prof Reyes")
	return h
}

func (h *harness) addUser(t *testing.T, email string, role model.Role, code model.BranchCode, name string) model.Principal {
	t.Helper()
	hash, err := argon.CreateHash(testPassword, testArgon)
	require.NoError(t, err)

	u := &model.User{
		ID:           uid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		BranchID:     h.branch[code].ID,
		FullName:     name,
	}
	require.NoError(t, h.users.Upsert(context.Background(), u))
	u.Branch = &model.Branch{Code: code}
	return u.Principal()
}

func (h *harness) addItem(t *testing.T, name string, total int) *model.InventoryItem {
	t.Helper()
	item, err := h.inventory.Create(context.Background(), h.admin, CreateItemInput{
		Barcode:       "BC-" + uid.New()[:8],
		TotalQuantity: total,
		Metadata:      model.Metadata{"item_name": name, "item_type": "equipment"},
	})
	require.NoError(t, err)
	return item
}

func (h *harness) newRequest(t *testing.T, lines ...model.BorrowItem) *model.BorrowRequest {
	t.Helper()
	req, err := h.borrow.Create(context.Background(), h.kiosk, CreateRequestInput{
		RequesterName: "Juan Dela Cruz",
		RequesterID:   "2021-12345",
		Items:         lines,
	})
	require.NoError(t, err)
	return req
}

// advance drives a fresh request through the given statuses.
func (h *harness) advance(t *testing.T, id string, statuses ...model.BorrowStatus) {
	t.Helper()
	for _, st := range statuses {
		_, err := h.borrow.Transition(context.Background(), h.admin, id, string(st))
		require.NoError(t, err, "transition to %s", st)
	}
}

func (h *harness) stock(t *testing.T, id string) *model.InventoryItem {
	t.Helper()
	item, err := h.items.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, item.Balanced(), "ledger out of balance: %+v", item)
	return item
}

func requireCode(t *testing.T, err error, code string) *apierror.Error {
	t.Helper()
	require.Error(t, err)
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, code, apiErr.Code, apiErr.Message)
	return apiErr
}

func line(itemID string, qty int) model.BorrowItem {
	return model.BorrowItem{ItemID: itemID, Quantity: qty}
}
