package model

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Role is the fixed authorization class of an account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleKiosk   Role = "kiosk"
)

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleFaculty, RoleKiosk:
		return r, true
	default:
		return "", false
	}
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, allowed := range roles {
		if r == allowed {
			return true
		}
	}
	return false
}

// CanScanLogin reports whether the role may use the password-less kiosk login.
func (r Role) CanScanLogin() bool {
	switch r {
	case RoleKiosk, RoleFaculty:
		return true
	case RoleAdmin:
		return false
	default:
		return false
	}
}

// RequiresSchoolID reports whether borrow requests filed by this role must carry a school ID.
func (r Role) RequiresSchoolID() bool {
	switch r {
	case RoleKiosk, RoleAdmin:
		return true
	case RoleFaculty:
		return false
	default:
		return true
	}
}

// User is an account able to sign in. Accounts are provisioned by the seed tool.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string    `bun:"id,pk" json:"id"`
	Email        string    `bun:"email,unique,notnull" json:"email"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Role         Role      `bun:"role,notnull" json:"role"`
	BranchID     string    `bun:"branch_id,notnull" json:"branch_id"`
	FullName     string    `bun:"full_name,notnull" json:"full_name"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,notnull" json:"updated_at"`

	Branch *Branch `bun:"rel:belongs-to,join:branch_id=id" json:"branch,omitempty"`
}

// Principal returns the request-scoped identity for u.
func (u *User) Principal() Principal {
	p := Principal{
		ID:       u.ID,
		Email:    u.Email,
		Role:     u.Role,
		BranchID: u.BranchID,
		FullName: u.FullName,
	}
	if u.Branch != nil {
		p.BranchCode = u.Branch.Code
	}
	return p
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	BranchID   string     `json:"branch_id"`
	BranchCode BranchCode `json:"branch,omitempty"`
	FullName   string     `json:"full_name"`
}
