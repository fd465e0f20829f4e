package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invencea-api/internal/model"
	"invencea-api/pkg/apierror"
)

type stubAuthenticator struct {
	principal model.Principal
	err       error
	gotToken  string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (model.Principal, error) {
	s.gotToken = token
	return s.principal, s.err
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func decodeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	mw := NewAuthMiddleware(AuthConfig{Authenticator: &stubAuthenticator{}})
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeCode(t, rec))
}

func TestAuthMiddlewarePropagatesAuthenticatorError(t *testing.T) {
	auth := &stubAuthenticator{err: apierror.Unauthorized("Session revoked")}
	mw := NewAuthMiddleware(AuthConfig{Authenticator: auth})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "abc.def", auth.gotToken)
}

func TestAuthMiddlewareUnknownErrorIs500(t *testing.T) {
	mw := NewAuthMiddleware(AuthConfig{Authenticator: &stubAuthenticator{err: errors.New("boom")}})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthMiddlewareAttachesPrincipal(t *testing.T) {
	want := model.Principal{ID: "u1", Role: model.RoleAdmin, BranchID: "b1"}
	mw := NewAuthMiddleware(AuthConfig{Authenticator: &stubAuthenticator{principal: want}})

	var got model.Principal
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer   tok ")
	rec := httptest.NewRecorder()
	mw(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, want, got)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"Bearer":       "",
		"Basic abc":    "",
		"Bearer abc":   "abc",
		"BEARER  abc ": "abc",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, BearerToken(req), "header %q", header)
	}
}

func TestRequireRoles(t *testing.T) {
	guard := RequireRoles(model.RoleKiosk, model.RoleFaculty)(http.HandlerFunc(okHandler))

	t.Run("no principal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), model.Principal{Role: model.RoleAdmin}))
		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "ROLE_NOT_ALLOWED", decodeCode(t, rec))
	})

	t.Run("allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), model.Principal{Role: model.RoleFaculty}))
		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRequestIDKeepsValidIncomingID(t *testing.T) {
	const incoming = "6f1c2a3e-0b5d-4c8f-9a7e-2d4b6c8e0f12"

	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", incoming)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, incoming, seen)
	assert.Equal(t, incoming, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDReplacesGarbage(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEqual(t, "<script>", seen)
	assert.Len(t, seen, 36)
}

func TestRecoveryReturns500(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeCode(t, rec))
}

func TestLoggingCapturesStatus(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
