// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package membership

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/capgate/internal/resolve"
)

// Store is an in-memory membership store. It is safe for concurrent use.
type Store struct {
	resolver *resolve.Resolver

	mu            sync.RWMutex
	groups        map[string]Group
	roles         map[string]map[string]Role // groupID → actorID → role
	bans          map[string]map[string]bool // groupID → actorID
	invitations   map[ulid.ULID]Invitation
	authenticated map[string]bool
	now           func() time.Time
}

// NewStore creates an empty store. Loaded groups are materialized with
// resolver.
func NewStore(resolver *resolve.Resolver) *Store {
	return &Store{
		resolver:      resolver,
		groups:        make(map[string]Group),
		roles:         make(map[string]map[string]Role),
		bans:          make(map[string]map[string]bool),
		invitations:   make(map[ulid.ULID]Invitation),
		authenticated: make(map[string]bool),
		now:           time.Now,
	}
}

// PutGroup creates or replaces a group.
func (s *Store) PutGroup(_ context.Context, g Group) error {
	if strings.TrimSpace(g.ID) == "" {
		return oops.In("membership").Code(CodeInvalidGroup).Errorf("group id cannot be empty")
	}
	if g.Status == "" {
		return oops.In("membership").Code(CodeInvalidGroup).
			With("group", g.ID).
			Errorf("group status cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g.Overrides = g.Overrides.Clone()
	s.groups[g.ID] = g
	return nil
}

// GetGroup returns a stored group.
func (s *Store) GetGroup(_ context.Context, id string) (Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return Group{}, groupNotFound(id)
	}
	g.Overrides = g.Overrides.Clone()
	return g, nil
}

// DeleteGroup removes a group with its memberships, bans and invitations.
func (s *Store) DeleteGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return groupNotFound(id)
	}
	delete(s.groups, id)
	delete(s.roles, id)
	delete(s.bans, id)
	for key, inv := range s.invitations {
		if inv.GroupID == id {
			delete(s.invitations, key)
		}
	}
	return nil
}

// LoadResource returns the group as a resource with its capabilities
// materialized. A group whose status is not registered fails to load.
func (s *Store) LoadResource(ctx context.Context, id string) (*resolve.Resource, error) {
	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &resolve.Resource{ID: g.ID, Status: g.Status, Overrides: g.Overrides}
	if err := s.resolver.Materialize(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Authenticate marks an actor as logged in.
func (s *Store) Authenticate(actorID string) {
	if actorID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated[actorID] = true
}

// SetRole makes actorID a member of groupID with role.
func (s *Store) SetRole(_ context.Context, groupID, actorID string, role Role) error {
	if !role.Valid() {
		return oops.In("membership").Code(CodeInvalidRole).
			With("role", string(role)).
			Errorf("unknown member role %q", role)
	}
	if actorID == "" {
		return oops.In("membership").Code(CodeInvalidRole).Errorf("actor cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return groupNotFound(groupID)
	}
	if s.roles[groupID] == nil {
		s.roles[groupID] = make(map[string]Role)
	}
	s.roles[groupID][actorID] = role
	s.authenticated[actorID] = true
	slog.Debug("member role set", "group", groupID, "actor", actorID, "role", role)
	return nil
}

// AddMember makes actorID a plain member unless they already hold a role.
func (s *Store) AddMember(ctx context.Context, groupID, actorID string) error {
	if role, _ := s.Role(ctx, groupID, actorID); role.Valid() {
		return nil
	}
	return s.SetRole(ctx, groupID, actorID, RoleMember)
}

// RemoveMember drops actorID's membership.
func (s *Store) RemoveMember(_ context.Context, groupID, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[groupID][actorID]; !ok {
		return oops.In("membership").Code(CodeMembershipNotFound).
			With("group", groupID).
			With("actor", actorID).
			Errorf("actor is not a member")
	}
	delete(s.roles[groupID], actorID)
	return nil
}

// Role returns actorID's role in groupID, or "" if not a member.
func (s *Store) Role(_ context.Context, groupID, actorID string) (Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles[groupID][actorID], nil
}

// Members returns the actor IDs holding at least minimum in groupID, sorted.
func (s *Store) Members(_ context.Context, groupID string, minimum Role) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for actor, role := range s.roles[groupID] {
		if role.AtLeast(minimum) {
			out = append(out, actor)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Ban bans actorID from groupID and removes any membership.
func (s *Store) Ban(_ context.Context, groupID, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return groupNotFound(groupID)
	}
	if s.bans[groupID] == nil {
		s.bans[groupID] = make(map[string]bool)
	}
	s.bans[groupID][actorID] = true
	delete(s.roles[groupID], actorID)
	return nil
}

// Unban lifts a ban.
func (s *Store) Unban(_ context.Context, groupID, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bans[groupID], actorID)
	return nil
}

// AddInvitation stores inv, assigning an ID and timestamp. An identical
// pending invitation (same group, user, inviter and type) is rejected.
func (s *Store) AddInvitation(_ context.Context, inv Invitation) (Invitation, error) {
	if err := validateInvitation(inv); err != nil {
		return Invitation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[inv.GroupID]; !ok {
		return Invitation{}, groupNotFound(inv.GroupID)
	}
	dup := InvitationFilter{GroupID: inv.GroupID, UserID: inv.UserID, InviterID: inv.InviterID, Type: inv.Type}
	for _, existing := range s.invitations {
		if dup.Matches(existing) && existing.InviterID == inv.InviterID {
			return Invitation{}, invitationExists(inv)
		}
	}

	inv.ID = ulid.Make()
	inv.CreatedAt = s.now().UTC()
	s.invitations[inv.ID] = inv
	return inv, nil
}

// ListInvitations returns invitations matching f, oldest first.
func (s *Store) ListInvitations(_ context.Context, f InvitationFilter) ([]Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Invitation
	for _, inv := range s.invitations {
		if f.Matches(inv) {
			out = append(out, inv)
		}
	}
	slices.SortFunc(out, func(a, b Invitation) int { return a.ID.Compare(b.ID) })
	return out, nil
}

// DeleteInvitations removes invitations matching f and returns how many.
func (s *Store) DeleteInvitations(_ context.Context, f InvitationFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, inv := range s.invitations {
		if f.Matches(inv) {
			delete(s.invitations, key)
			n++
		}
	}
	return n, nil
}

// IsMember implements condition.RelationshipOracle.
func (s *Store) IsMember(ctx context.Context, actorID, groupID string) (bool, error) {
	return s.hasRole(ctx, groupID, actorID, RoleMember)
}

// IsModerator implements condition.RelationshipOracle.
func (s *Store) IsModerator(ctx context.Context, actorID, groupID string) (bool, error) {
	return s.hasRole(ctx, groupID, actorID, RoleMod)
}

// IsAdmin implements condition.RelationshipOracle.
func (s *Store) IsAdmin(ctx context.Context, actorID, groupID string) (bool, error) {
	return s.hasRole(ctx, groupID, actorID, RoleAdmin)
}

func (s *Store) hasRole(ctx context.Context, groupID, actorID string, minimum Role) (bool, error) {
	role, err := s.Role(ctx, groupID, actorID)
	if err != nil {
		return false, err
	}
	return role.AtLeast(minimum), nil
}

// HasPendingInvitation implements condition.RelationshipOracle.
func (s *Store) HasPendingInvitation(ctx context.Context, actorID, groupID string) (bool, error) {
	return s.hasInvitation(ctx, InvitationFilter{GroupID: groupID, UserID: actorID, Type: TypeInvite})
}

// HasMembershipRequest implements gate.MembershipOracle.
func (s *Store) HasMembershipRequest(ctx context.Context, actorID, groupID string) (bool, error) {
	return s.hasInvitation(ctx, InvitationFilter{GroupID: groupID, UserID: actorID, Type: TypeRequest})
}

func (s *Store) hasInvitation(_ context.Context, f InvitationFilter) (bool, error) {
	if f.UserID == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invitations {
		if f.Matches(inv) {
			return true, nil
		}
	}
	return false, nil
}

// IsBanned implements gate.MembershipOracle.
func (s *Store) IsBanned(_ context.Context, actorID, groupID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bans[groupID][actorID], nil
}

// IsAuthenticated implements condition.RelationshipOracle.
func (s *Store) IsAuthenticated(_ context.Context, actorID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated[actorID], nil
}

func validateInvitation(inv Invitation) error {
	switch {
	case !inv.Type.Valid():
		return oops.In("membership").Code(CodeInvalidInvitation).
			With("type", string(inv.Type)).
			Errorf("unknown invitation type %q", inv.Type)
	case inv.UserID == "":
		return oops.In("membership").Code(CodeInvalidInvitation).Errorf("invitation user cannot be empty")
	case inv.Type == TypeInvite && inv.InviterID == "":
		return oops.In("membership").Code(CodeInvalidInvitation).Errorf("invitation inviter cannot be empty")
	}
	return nil
}

func groupNotFound(id string) error {
	return oops.In("membership").Code(CodeGroupNotFound).
		With("group", id).
		Errorf("group %q not found", id)
}

func invitationExists(inv Invitation) error {
	return oops.In("membership").Code(CodeInvitationExists).
		With("group", inv.GroupID).
		With("user", inv.UserID).
		With("inviter", inv.InviterID).
		Errorf("%s already pending", inv.Type)
}
