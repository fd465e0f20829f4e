package model

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// BranchCode identifies one of the departmental branches.
type BranchCode string

const (
	BranchACEIS BranchCode = "ACEIS"
	BranchECEIS BranchCode = "ECEIS"
	BranchCPEIS BranchCode = "CPEIS"
)

// BranchCodes lists every known branch in display order.
var BranchCodes = []BranchCode{BranchACEIS, BranchECEIS, BranchCPEIS}

// ParseBranchCode normalizes s and reports whether it is a known branch.
func ParseBranchCode(s string) (BranchCode, bool) {
	c := BranchCode(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range BranchCodes {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// PublicationLike reports whether the branch stores thesis-style records
// that are ordered and searched by authors and year.
func (c BranchCode) PublicationLike() bool {
	return c == BranchCPEIS
}

// Branch scopes every inventory item and borrow request.
type Branch struct {
	bun.BaseModel `bun:"table:branches,alias:b"`

	ID        string     `bun:"id,pk" json:"id"`
	Code      BranchCode `bun:"code,unique,notnull" json:"code"`
	Name      string     `bun:"name,notnull" json:"name"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
}
