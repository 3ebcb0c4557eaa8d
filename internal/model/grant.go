package model

import "time"

// AccessLevel is the coarse disclosure tier applied on the read path.
type AccessLevel string

const (
	AccessFull       AccessLevel = "full_access"
	AccessPartial    AccessLevel = "partial_access"
	AccessMaskedOnly AccessLevel = "masked_only"
)

// Valid reports whether the level is one of the three known tiers.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessFull, AccessPartial, AccessMaskedOnly:
		return true
	}
	return false
}

// Grant is one row of the externally managed pii_access_grants table.
// The approval workflow owns its lifecycle; this process only reads it.
type Grant struct {
	UserEmail        string      `json:"user_email"`
	UserGroup        string      `json:"user_group"`
	AccessLevel      AccessLevel `json:"access_level"`
	GrantedBy        string      `json:"granted_by"`
	GrantedAt        time.Time   `json:"granted_at"`
	ExpiresAt        *time.Time  `json:"expires_at,omitempty"`
	IsActive         bool        `json:"is_active"`
	Reason           string      `json:"reason,omitempty"`
	ApprovalTicketID string      `json:"approval_ticket_id,omitempty"`
}

// EffectiveAt reports whether the grant applies at the given instant.
func (g Grant) EffectiveAt(at time.Time) bool {
	if !g.IsActive {
		return false
	}
	return g.ExpiresAt == nil || g.ExpiresAt.After(at)
}
