package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"invencea-api/internal/model"
	"invencea-api/pkg/uid"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid or expired token")

type sessionClaims struct {
	Role     model.Role `json:"role"`
	BranchID string     `json:"branch_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenIssuer creates an issuer whose tokens live for ttl.
func NewTokenIssuer(secret string, ttl time.Duration, issuer string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, issuer: issuer}
}

// TTL returns the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a new token for u with a fresh token id.
func (t *TokenIssuer) Issue(u *model.User, now time.Time) (string, model.TokenData, error) {
	data := model.TokenData{
		TokenID:   uid.New(),
		UserID:    u.ID,
		Role:      u.Role,
		BranchID:  u.BranchID,
		IssuedAt:  now.UTC().Truncate(time.Second),
		ExpiresAt: now.UTC().Add(t.ttl).Truncate(time.Second),
	}

	claims := sessionClaims{
		Role:     data.Role,
		BranchID: data.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        data.TokenID,
			Subject:   data.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(data.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(data.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", model.TokenData{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, data, nil
}

// Parse verifies signature and expiry and returns the token content.
func (t *TokenIssuer) Parse(token string) (*model.TokenData, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(t.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	data := &model.TokenData{
		TokenID:  claims.ID,
		UserID:   claims.Subject,
		Role:     claims.Role,
		BranchID: claims.BranchID,
	}
	if claims.IssuedAt != nil {
		data.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	data.ExpiresAt = claims.ExpiresAt.Time.UTC()
	return data, nil
}
