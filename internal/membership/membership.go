// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package membership stores groups and actors' relationships to them:
// member roles, bans, invitations and membership requests.
//
// Store is the in-memory implementation; package postgres provides the same
// surface over host-owned tables. Both answer the condition evaluator's
// relationship questions and load groups for the gate.
package membership

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/capgate/internal/status"
)

// Error codes returned by stores.
const (
	CodeGroupNotFound      = "GROUP_NOT_FOUND"
	CodeInvalidGroup       = "GROUP_INVALID"
	CodeInvalidRole        = "MEMBER_ROLE_INVALID"
	CodeInvitationExists   = "INVITATION_EXISTS"
	CodeInvalidInvitation  = "INVITATION_INVALID"
	CodeMembershipNotFound = "MEMBERSHIP_NOT_FOUND"
)

// Role is a member's standing within one group. Roles are ordered:
// an admin is also a mod, and a mod is also a member.
type Role string

// Member roles.
const (
	RoleMember Role = "member"
	RoleMod    Role = "mod"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.rank() > 0
}

func (r Role) rank() int {
	switch r {
	case RoleMember:
		return 1
	case RoleMod:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r is min or higher.
func (r Role) AtLeast(minimum Role) bool {
	return r.Valid() && r.rank() >= minimum.rank()
}

// InvitationType distinguishes invitations sent by members from requests
// made by the prospective member.
type InvitationType string

// Invitation types.
const (
	TypeInvite  InvitationType = "invite"
	TypeRequest InvitationType = "request"
)

// Valid reports whether t is a known type.
func (t InvitationType) Valid() bool {
	return t == TypeInvite || t == TypeRequest
}

// Group is a stored group. Status names a registered status; Overrides are
// merged over it when the group is loaded.
type Group struct {
	ID        string              `yaml:"id"`
	Name      string              `yaml:"name"`
	Status    string              `yaml:"status"`
	Overrides status.Capabilities `yaml:"overrides,omitempty"`
}

// Invitation is a pending invitation or membership request. For a request,
// InviterID is empty.
type Invitation struct {
	ID        ulid.ULID
	GroupID   string
	UserID    string
	InviterID string
	Type      InvitationType
	Message   string
	CreatedAt time.Time
}

// InvitationFilter selects invitations; empty fields match everything.
type InvitationFilter struct {
	GroupID   string
	UserID    string
	InviterID string
	Type      InvitationType
}

// Matches reports whether inv satisfies f.
func (f InvitationFilter) Matches(inv Invitation) bool {
	return (f.GroupID == "" || f.GroupID == inv.GroupID) &&
		(f.UserID == "" || f.UserID == inv.UserID) &&
		(f.InviterID == "" || f.InviterID == inv.InviterID) &&
		(f.Type == "" || f.Type == inv.Type)
}
