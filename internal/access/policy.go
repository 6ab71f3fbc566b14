// Package access decides who may perform privileged mutations.
package access

import (
	"context"
	"strings"

	"github.com/sakif/college-forum/internal/model"
)

// ProfileReader loads the profile that may carry role claims.
type ProfileReader interface {
	Get(ctx context.Context, id string) (*model.Profile, error)
}

// Policy recognises administrative principals in two ways: the configured
// operator email, and an "admin" entry in the principal's profile roles.
// Services consult it before every mutation that is not owner-only.
type Policy struct {
	adminEmail string
	profiles   ProfileReader
}

// NewPolicy builds a policy. An empty adminEmail disables the email rule;
// a nil profiles reader disables the role rule.
func NewPolicy(adminEmail string, profiles ProfileReader) *Policy {
	return &Policy{
		adminEmail: strings.TrimSpace(adminEmail),
		profiles:   profiles,
	}
}

// IsAdmin reports whether p is an administrative principal. A failed
// profile read counts as "no role claim".
func (pol *Policy) IsAdmin(ctx context.Context, p model.Principal) bool {
	if p.ID == "" {
		return false
	}
	if pol.adminEmail != "" && strings.EqualFold(strings.TrimSpace(p.Email), pol.adminEmail) {
		return true
	}
	if pol.profiles == nil {
		return false
	}
	profile, err := pol.profiles.Get(ctx, p.ID)
	if err != nil {
		return false
	}
	return profile.HasRole(model.RoleAdmin)
}

// CanModify reports whether p may change or delete something owned by
// ownerID: the owner always can, and so can an administrator.
func (pol *Policy) CanModify(ctx context.Context, p model.Principal, ownerID string) bool {
	if p.ID == "" {
		return false
	}
	return p.ID == ownerID || pol.IsAdmin(ctx, p)
}
