package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"invencea-api/internal/cache"
	"invencea-api/internal/model"
	"invencea-api/internal/repository"
)

func TestPasswordLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.auth.Login(ctx, LoginInput{Email: "  ADMIN@aceis.test ", Password: testPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, h.admin.ID, res.User.ID)
	assert.Equal(t, model.BranchACEIS, res.User.BranchCode)

	p, err := h.auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, h.admin.ID, p.ID)
	assert.Equal(t, model.RoleAdmin, p.Role)
}

func TestLoginRequiresEmail(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Login(context.Background(), LoginInput{Password: testPassword})
	requireCode(t, err, "BAD_REQUEST")
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auth.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: "nope"})
	requireCode(t, err, "INVALID_CREDENTIALS")

	_, err = h.auth.Login(ctx, LoginInput{Email: "ghost@aceis.test", Password: "nope"})
	requireCode(t, err, "INVALID_CREDENTIALS")
}

func TestSecondLoginConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auth.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: testPassword})
	require.NoError(t, err)

	_, err = h.auth.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: testPassword})
	apiErr := requireCode(t, err, "CONFLICT")
	assert.Equal(t, "Ada Admin", apiErr.Fields["active_user_name"])
	assert.Equal(t, "admin@aceis.test", apiErr.Fields["active_user_email"])
}

func TestConcurrentLoginOneWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	errs := make([]error, 2)
	var g errgroup.Group
	for i := range errs {
		g.Go(func() error {
			_, errs[i] = h.auth.Login(ctx, LoginInput{Email: "prof@aceis.test", Password: testPassword})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, conflicts int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		requireCode(t, err, "CONFLICT")
		conflicts++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestExpiredSessionIsPurgedOnLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := h.auth.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: testPassword})
	require.NoError(t, err)

	h.auth.now = time.Now
	_, err = h.auth.Authenticate(ctx, stale.Token)
	requireCode(t, err, "UNAUTHORIZED")

	_, err = h.auth.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: testPassword})
	require.NoError(t, err)
}

func TestScanLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("wrong secret", func(t *testing.T) {
		_, err := h.auth.Login(ctx, LoginInput{Email: "kiosk@aceis.test", ScanSecret: "guess"})
		requireCode(t, err, "FORBIDDEN")
	})

	t.Run("admin cannot scan in", func(t *testing.T) {
		_, err := h.auth.Login(ctx, LoginInput{Email: "admin@aceis.test", ScanSecret: "kiosk-secret"})
		apiErr := requireCode(t, err, "ROLE_NOT_ALLOWED")
		assert.Equal(t, "kiosk or faculty only", apiErr.Message)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := h.auth.Login(ctx, LoginInput{Email: "nobody@aceis.test", ScanSecret: "kiosk-secret"})
		requireCode(t, err, "NOT_FOUND")
	})

	t.Run("kiosk", func(t *testing.T) {
		res, err := h.auth.Login(ctx, LoginInput{Email: "kiosk@aceis.test", ScanSecret: "kiosk-secret"})
		require.NoError(t, err)
		assert.Equal(t, model.RoleKiosk, res.User.Role)
	})
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.auth.Logout(ctx, "", "")
	requireCode(t, err, "BAD_REQUEST")

	res, err := h.auth.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: testPassword})
	require.NoError(t, err)

	require.NoError(t, h.auth.Logout(ctx, res.Token, ""))
	// Idempotent.
	require.NoError(t, h.auth.Logout(ctx, res.Token, ""))
	require.NoError(t, h.auth.Logout(ctx, "", h.admin.ID))

	_, err = h.auth.Authenticate(ctx, res.Token)
	requireCode(t, err, "UNAUTHORIZED")

	_, err = h.auth.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: testPassword})
	require.NoError(t, err)
}

func TestLogoutByUserIDRevokesToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.auth.Login(ctx, LoginInput{Email: "prof@aceis.test", Password: testPassword})
	require.NoError(t, err)

	require.NoError(t, h.auth.Logout(ctx, "", h.faculty.ID))

	_, err = h.auth.Authenticate(ctx, res.Token)
	requireCode(t, err, "UNAUTHORIZED")
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Authenticate(context.Background(), "")
	requireCode(t, err, "UNAUTHORIZED")

	_, err = h.auth.Authenticate(context.Background(), "abc.def.ghi")
	requireCode(t, err, "UNAUTHORIZED")
}

func TestSessionSweeperRunNow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.auth.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	_, err := h.auth.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: testPassword})
	require.NoError(t, err)
	h.auth.now = time.Now
	_, err = h.auth.Login(ctx, LoginInput{Email: "prof@aceis.test", Password: testPassword})
	require.NoError(t, err)

	n, err := NewSessionSweeper(h.sessions, time.Hour).RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = h.sessions.Get(ctx, h.faculty.ID)
	assert.NoError(t, err)
}

// restart simulates a process restart: same store, empty cache.
func (h *harness) restart(t *testing.T, users repository.UserRepository, c cache.Cache) *AuthService {
	t.Helper()
	if c == nil {
		mem := cache.NewMemoryCache(0)
		t.Cleanup(func() { _ = mem.Close() })
		c = mem
	}
	tokens := NewTokenIssuer("test-secret", time.Hour, "invencea-test")
	return NewAuthService(users, h.sessions, tokens, c, NewPasswordVerifier(users), AuthConfig{ScanSecret: "kiosk-secret"})
}

func TestLogoutSurvivesCacheLoss(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	old, err := h.auth.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: testPassword})
	require.NoError(t, err)
	require.NoError(t, h.auth.Logout(ctx, old.Token, ""))

	fresh := h.restart(t, h.users, nil)
	_, err = fresh.Authenticate(ctx, old.Token)
	requireCode(t, err, "UNAUTHORIZED")

	cur, err := fresh.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: testPassword})
	require.NoError(t, err)

	_, err = fresh.Authenticate(ctx, old.Token)
	requireCode(t, err, "UNAUTHORIZED")
	p, err := fresh.Authenticate(ctx, cur.Token)
	require.NoError(t, err)
	assert.Equal(t, h.admin.ID, p.ID)
}

func TestAuthenticateRequiresSessionRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.auth.Login(ctx, LoginInput{Email: "prof@aceis.test", Password: testPassword})
	require.NoError(t, err)
	_, err = h.auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)

	// Row removed behind the service's back, e.g. by another instance.
	_, err = h.sessions.DeleteByUser(ctx, h.faculty.ID)
	require.NoError(t, err)

	_, err = h.restart(t, h.users, nil).Authenticate(ctx, res.Token)
	requireCode(t, err, "UNAUTHORIZED")
}

type brokenUsers struct {
	repository.UserRepository
}

func (brokenUsers) GetByID(context.Context, string) (*model.User, error) {
	return nil, errors.New("connection reset")
}

func TestAuthenticateProfileFailureIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.auth.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: testPassword})
	require.NoError(t, err)

	_, err = h.restart(t, brokenUsers{h.users}, nil).Authenticate(ctx, res.Token)
	requireCode(t, err, "UNAUTHORIZED")
}

type revocationCounter struct {
	cache.Cache
	revoked int
}

func (c *revocationCounter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if strings.HasPrefix(key, cache.RevokedKey("")) {
		c.revoked++
	}
	return c.Cache.Set(ctx, key, value, ttl)
}

func TestLogoutRevokesTokenOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	mem := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = mem.Close() })
	counter := &revocationCounter{Cache: mem}
	auth := h.restart(t, h.users, counter)

	res, err := auth.Login(ctx, LoginInput{Email: "admin@aceis.test", Password: testPassword})
	require.NoError(t, err)
	require.NoError(t, auth.Logout(ctx, res.Token, ""))

	assert.Equal(t, 1, counter.revoked)
}
