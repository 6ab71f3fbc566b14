// Package model defines the data structures used throughout the application.
package model

import (
	"slices"
	"time"
)

// RoleAdmin marks an administrative principal in Profile.Roles.
const RoleAdmin = "admin"

// Principal is the authenticated identity as asserted by the identity provider.
//
// The provider owns it; we only mirror it into a Profile on first sign-in.
// ID is the provider's stable subject (Google "sub"), never our own id.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Email       string `json:"email"`
}

// Profile is the user document stored at users/{principalID}.
//
// WHY MERGE-ONLY?
// A profile is created with defaults the first time a principal signs in,
// and afterwards only the owner edits it. Signing in again must never reset
// bio/skills/interests, so every write is a merge of named fields.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	PhotoURL    string    `json:"photoURL"`
	Department  string    `json:"department"`
	Year        string    `json:"year"`
	Bio         string    `json:"bio"`
	Skills      []string  `json:"skills"`
	Interests   []string  `json:"interests"`
	Premium     bool      `json:"premium"`
	Roles       []string  `json:"roles,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// HasRole reports whether the profile carries the given role claim.
func (p *Profile) HasRole(role string) bool {
	return p != nil && slices.Contains(p.Roles, role)
}
