package model

import (
	"strings"
	"time"
)

// EntityRef is a selectable entity (clinic).
type EntityRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	TaxID string `json:"tax_id"`
}

// LimitDecision is one append-only audit record. A nil ApprovedLimit is a
// revocation.
type LimitDecision struct {
	ApprovedLimit *float64  `json:"approved_limit"`
	Note          *string   `json:"note"`
	ApprovedBy    string    `json:"approved_by"`
	ApprovedAt    time.Time `json:"approved_at"`
}

// IsRevocation reports whether the record withdrew the limit.
func (d LimitDecision) IsRevocation() bool { return d.ApprovedLimit == nil }

// RoleAdmin is the role allowed to decide limits.
const RoleAdmin = "admin"

// Identity is the operator supplied by the session provider.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the operator may approve or revoke limits.
func (i Identity) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(i.Role), RoleAdmin)
}

// DisplayName is the audit author: name, then email, then "admin".
func (i Identity) DisplayName() string {
	if n := strings.TrimSpace(i.Name); n != "" {
		return n
	}
	if e := strings.TrimSpace(i.Email); e != "" {
		return e
	}
	return "admin"
}
