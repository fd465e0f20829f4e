package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"invencea-api/internal/cache"
	"invencea-api/internal/model"
	"invencea-api/internal/repository"
	"invencea-api/pkg/apierror"
	"invencea-api/pkg/argon"
)

// ErrInvalidCredentials is returned by a CredentialVerifier that rejects
// the supplied email and password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// sessionCheckTTL bounds how long a confirmed session row is trusted from cache.
const sessionCheckTTL = 30 * time.Second

// CredentialVerifier checks an email/password pair and returns the user id.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (string, error)
}

// PasswordVerifier verifies credentials against the stored argon2id hash.
type PasswordVerifier struct {
	users repository.UserRepository
}

// NewPasswordVerifier creates a verifier backed by users.
func NewPasswordVerifier(users repository.UserRepository) *PasswordVerifier {
	return &PasswordVerifier{users: users}
}

func (v *PasswordVerifier) Verify(ctx context.Context, email, password string) (string, error) {
	u, err := v.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	ok, err := argon.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidCredentials
	}
	return u.ID, nil
}

// AuthConfig holds session settings for AuthService.
type AuthConfig struct {
	ScanSecret string
	ProfileTTL time.Duration
}

// LoginInput is a login attempt. An empty Password selects scan mode.
type LoginInput struct {
	Email      string
	Password   string
	ScanSecret string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      model.Principal `json:"user"`
}

// AuthService owns sessions: it issues them, enforces a single live session
// per user and resolves bearer tokens to principals.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	tokens   *TokenIssuer
	cache    cache.Cache
	verifier CredentialVerifier
	cfg      AuthConfig
	log      *slog.Logger
	now      func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *TokenIssuer,
	c cache.Cache,
	verifier CredentialVerifier,
	cfg AuthConfig,
) *AuthService {
	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = 5 * time.Minute
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		cache:    c,
		verifier: verifier,
		cfg:      cfg,
		log:      slog.With("component", "auth"),
		now:      time.Now,
	}
}

// Login authenticates in password or scan mode and opens the user's session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, apierror.BadRequest("email is required")
	}

	var (
		user *model.User
		err  error
	)
	if in.Password != "" {
		user, err = s.passwordLogin(ctx, email, in.Password)
	} else {
		user, err = s.scanLogin(ctx, email, in.ScanSecret)
	}
	if err != nil {
		return nil, err
	}

	return s.openSession(ctx, user)
}

func (s *AuthService) passwordLogin(ctx context.Context, email, password string) (*model.User, error) {
	userID, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			s.log.Warn("credential check failed", "email", email, "error", err)
		}
		return nil, apierror.InvalidCredentials()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.log.Warn("profile load after credential check failed", "user_id", userID, "error", err)
		return nil, apierror.InvalidCredentials()
	}
	return user, nil
}

func (s *AuthService) scanLogin(ctx context.Context, email, secret string) (*model.User, error) {
	if s.cfg.ScanSecret != "" && subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.ScanSecret)) != 1 {
		return nil, apierror.Forbidden("Invalid scan secret")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NotFound("User not found")
	}
	if err != nil {
		return nil, storageFailure(s.log, "scan login lookup", err)
	}

	if !user.Role.CanScanLogin() {
		return nil, apierror.RoleNotAllowed(string(model.RoleKiosk), string(model.RoleFaculty))
	}
	return user, nil
}

func (s *AuthService) openSession(ctx context.Context, user *model.User) (*LoginResult, error) {
	now := s.now().UTC()

	if _, err := s.sessions.DeleteExpiredForUser(ctx, user.ID, now); err != nil {
		return nil, storageFailure(s.log, "purge expired session", err)
	}

	_, err := s.sessions.Get(ctx, user.ID)
	switch {
	case err == nil:
		return nil, sessionConflict(user)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storageFailure(s.log, "load session", err)
	}

	token, data, err := s.tokens.Issue(user, now)
	if err != nil {
		return nil, storageFailure(s.log, "issue token", err)
	}

	err = s.sessions.Insert(ctx, &model.ActiveSession{
		UserID:    user.ID,
		Token:     token,
		TokenID:   data.TokenID,
		CreatedAt: now,
		ExpiresAt: data.ExpiresAt,
	})
	switch {
	case errors.Is(err, repository.ErrConflict):
		// A concurrent login won the insert.
		return nil, sessionConflict(user)
	case err != nil:
		s.log.Warn("session insert failed, token still issued", "user_id", user.ID, "error", err)
	}

	principal := user.Principal()
	s.cacheProfile(ctx, principal)

	s.log.Info("login", "user_id", user.ID, "role", user.Role, "expires_at", data.ExpiresAt)
	return &LoginResult{Token: token, ExpiresAt: data.ExpiresAt, User: principal}, nil
}

func sessionConflict(user *model.User) *apierror.Error {
	return apierror.Conflict("User is already logged in on another device").
		WithField("active_user_name", user.FullName).
		WithField("active_user_email", user.Email)
}

// Logout ends the session identified by token and/or userID. Deleting
// nothing is still a success.
func (s *AuthService) Logout(ctx context.Context, token, userID string) error {
	token = strings.TrimSpace(token)
	userID = strings.TrimSpace(userID)
	if token == "" && userID == "" {
		return apierror.BadRequest("token or user_id is required")
	}

	var removed []model.ActiveSession
	if token != "" {
		rows, err := s.sessions.DeleteByToken(ctx, token)
		if err != nil {
			return storageFailure(s.log, "delete session by token", err)
		}
		removed = append(removed, rows...)

		// A token whose row was never written still has to stop working.
		if data, err := s.tokens.Parse(token); err == nil && !hasToken(rows, data.TokenID) {
			removed = append(removed, model.ActiveSession{UserID: data.UserID, TokenID: data.TokenID, ExpiresAt: data.ExpiresAt})
		}
	}
	if userID != "" {
		rows, err := s.sessions.DeleteByUser(ctx, userID)
		if err != nil {
			return storageFailure(s.log, "delete session by user", err)
		}
		removed = append(removed, rows...)
	}

	now := s.now()
	for _, sess := range removed {
		s.revoke(ctx, sess.TokenID, sess.ExpiresAt.Sub(now))
		if err := s.cache.Delete(ctx, cache.ProfileKey(sess.UserID)); err != nil {
			s.log.Warn("drop cached profile failed", "user_id", sess.UserID, "error", err)
		}
	}

	s.log.Info("logout", "user_id", userID, "sessions", len(removed))
	return nil
}

func hasToken(sessions []model.ActiveSession, tokenID string) bool {
	for _, sess := range sessions {
		if sess.TokenID == tokenID {
			return true
		}
	}
	return false
}

func (s *AuthService) revoke(ctx context.Context, tokenID string, ttl time.Duration) {
	if tokenID == "" {
		return
	}
	if err := s.cache.Delete(ctx, cache.ActiveKey(tokenID)); err != nil {
		s.log.Warn("drop session check failed", "token_id", tokenID, "error", err)
	}
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, cache.RevokedKey(tokenID), []byte{1}, ttl); err != nil {
		s.log.Warn("token revocation not cached", "token_id", tokenID, "error", err)
	}
}

// Authenticate resolves a bearer token to the caller's principal.
func (s *AuthService) Authenticate(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, apierror.Unauthorized("Missing authentication token")
	}

	data, err := s.tokens.Parse(token)
	if err != nil {
		return model.Principal{}, apierror.Unauthorized("Invalid or expired token")
	}

	if err := s.checkSession(ctx, data); err != nil {
		return model.Principal{}, err
	}

	p, err := s.profile(ctx, data.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Principal{}, apierror.Unauthorized("User no longer exists")
	}
	if err != nil {
		s.log.Error("profile lookup failed", "user_id", data.UserID, "error", err)
		return model.Principal{}, apierror.Unauthorized("Unable to load user profile")
	}
	return p, nil
}

// checkSession accepts a token only while it is the user's live session.
// The session row is the authority; the cache holds revocations and recent
// positive checks so most requests skip the store.
func (s *AuthService) checkSession(ctx context.Context, data *model.TokenData) error {
	revoked, err := s.cache.Exists(ctx, cache.RevokedKey(data.TokenID))
	if err != nil {
		s.log.Warn("revocation lookup failed, checking session row", "error", err)
	}
	if revoked {
		return apierror.Unauthorized("Session has ended")
	}

	if ok, err := s.cache.Exists(ctx, cache.ActiveKey(data.TokenID)); err == nil && ok {
		return nil
	}

	now := s.now()
	sess, err := s.sessions.Get(ctx, data.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apierror.Unauthorized("Session has ended")
	case err != nil:
		s.log.Error("session lookup failed", "user_id", data.UserID, "error", err)
		return apierror.Unauthorized("Unable to verify session")
	case sess.TokenID != data.TokenID || sess.Expired(now):
		return apierror.Unauthorized("Session has ended")
	}

	ttl := sess.ExpiresAt.Sub(now)
	if ttl > sessionCheckTTL {
		ttl = sessionCheckTTL
	}
	if err := s.cache.Set(ctx, cache.ActiveKey(data.TokenID), []byte{1}, ttl); err != nil {
		s.log.Warn("session check not cached", "token_id", data.TokenID, "error", err)
	}
	return nil
}

// profile is a cache-aside read of the user's principal.
func (s *AuthService) profile(ctx context.Context, userID string) (model.Principal, error) {
	var p model.Principal
	if err := cache.GetJSON(ctx, s.cache, cache.ProfileKey(userID), &p); err == nil {
		return p, nil
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.Principal{}, err
	}
	p = u.Principal()
	s.cacheProfile(ctx, p)
	return p, nil
}

func (s *AuthService) cacheProfile(ctx context.Context, p model.Principal) {
	if err := cache.SetJSON(ctx, s.cache, cache.ProfileKey(p.ID), p, s.cfg.ProfileTTL); err != nil {
		s.log.Warn("profile not cached", "user_id", p.ID, "error", err)
	}
}
