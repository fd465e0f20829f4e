package handler

import (
	"net/http"

	"invencea-api/internal/middleware"
	"invencea-api/internal/service"
	"invencea-api/pkg/response"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// LoginRequest is the body of POST /auth/login. An empty password selects
// the kiosk scan flow.
type LoginRequest struct {
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=1024"`
}

// LogoutRequest is the optional body of POST /auth/logout.
type LogoutRequest struct {
	UserID string `json:"user_id"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		ScanSecret: r.Header.Get("x-scan-secret"),
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	response.JSONWithMessage(w, http.StatusOK, "Login successful", result)
}

// Logout handles POST /api/auth/logout. The session is found by bearer
// token, by body user_id, or both.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	if err := h.authService.Logout(r.Context(), middleware.BearerToken(r), req.UserID); err != nil {
		response.Error(w, err)
		return
	}

	response.JSONWithMessage(w, http.StatusOK, "Logged out", nil)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, p)
}
