package model

import (
	"time"

	"github.com/uptrace/bun"
)

// ActiveSession is the single live login of a user. user_id is the primary
// key so the store rejects a second concurrent session.
type ActiveSession struct {
	bun.BaseModel `bun:"table:active_sessions,alias:s"`

	UserID    string    `bun:"user_id,pk" json:"user_id"`
	Token     string    `bun:"token,type:varchar(1024),notnull" json:"-"`
	TokenID   string    `bun:"token_id,unique,notnull" json:"token_id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *ActiveSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TokenData is the verified content of a session token.
type TokenData struct {
	TokenID   string    `json:"jti"`
	UserID    string    `json:"sub"`
	Role      Role      `json:"role"`
	BranchID  string    `json:"branch_id"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}
