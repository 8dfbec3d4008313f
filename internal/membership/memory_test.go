// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package membership_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/capgate/internal/condition"
	"github.com/holomush/capgate/internal/gate"
	"github.com/holomush/capgate/internal/membership"
	"github.com/holomush/capgate/internal/resolve"
	"github.com/holomush/capgate/internal/status"
	"github.com/holomush/capgate/pkg/errutil"
)

var (
	_ condition.RelationshipOracle = (*membership.Store)(nil)
	_ gate.MembershipOracle        = (*membership.Store)(nil)
	_ gate.Loader                  = (*membership.Store)(nil)
)

func newStore(t *testing.T) *membership.Store {
	t.Helper()
	s := membership.NewStore(resolve.New(status.NewDefaultRegistry()))
	ctx := context.Background()
	require.NoError(t, s.PutGroup(ctx, membership.Group{ID: "g1", Name: "Chess Club", Status: status.Private}))
	return s
}

func TestStore_Roles(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetRole(ctx, "g1", "alice", membership.RoleAdmin))
	require.NoError(t, s.SetRole(ctx, "g1", "bob", membership.RoleMod))
	require.NoError(t, s.AddMember(ctx, "g1", "carol"))

	tests := []struct {
		actor                 string
		member, mod, admin    bool
		authenticatedExpected bool
	}{
		{"alice", true, true, true, true},
		{"bob", true, true, false, true},
		{"carol", true, false, false, true},
		{"dave", false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.actor, func(t *testing.T) {
			got, err := s.IsMember(ctx, tt.actor, "g1")
			require.NoError(t, err)
			assert.Equal(t, tt.member, got)
			got, err = s.IsModerator(ctx, tt.actor, "g1")
			require.NoError(t, err)
			assert.Equal(t, tt.mod, got)
			got, err = s.IsAdmin(ctx, tt.actor, "g1")
			require.NoError(t, err)
			assert.Equal(t, tt.admin, got)
			got, err = s.IsAuthenticated(ctx, tt.actor)
			require.NoError(t, err)
			assert.Equal(t, tt.authenticatedExpected, got)
		})
	}

	members, err := s.Members(ctx, "g1", membership.RoleMod)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, members)
}

func TestStore_AddMemberKeepsHigherRole(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetRole(ctx, "g1", "alice", membership.RoleAdmin))
	require.NoError(t, s.AddMember(ctx, "g1", "alice"))

	role, err := s.Role(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.Equal(t, membership.RoleAdmin, role)
}

func TestStore_SetRoleErrors(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	errutil.AssertErrorCode(t, s.SetRole(ctx, "g1", "alice", "owner"), membership.CodeInvalidRole)
	errutil.AssertErrorCode(t, s.SetRole(ctx, "nope", "alice", membership.RoleMember), membership.CodeGroupNotFound)
	errutil.AssertErrorCode(t, s.RemoveMember(ctx, "g1", "alice"), membership.CodeMembershipNotFound)
}

func TestStore_BanRemovesMembership(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddMember(ctx, "g1", "mallory"))
	require.NoError(t, s.Ban(ctx, "g1", "mallory"))

	banned, err := s.IsBanned(ctx, "mallory", "g1")
	require.NoError(t, err)
	assert.True(t, banned)
	member, err := s.IsMember(ctx, "mallory", "g1")
	require.NoError(t, err)
	assert.False(t, member)

	require.NoError(t, s.Unban(ctx, "g1", "mallory"))
	banned, err = s.IsBanned(ctx, "mallory", "g1")
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestStore_Invitations(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	inv, err := s.AddInvitation(ctx, membership.Invitation{GroupID: "g1", UserID: "dave", InviterID: "alice", Type: membership.TypeInvite})
	require.NoError(t, err)
	assert.NotZero(t, inv.ID)
	assert.False(t, inv.CreatedAt.IsZero())

	_, err = s.AddInvitation(ctx, membership.Invitation{GroupID: "g1", UserID: "dave", InviterID: "alice", Type: membership.TypeInvite})
	errutil.AssertErrorCode(t, err, membership.CodeInvitationExists)

	_, err = s.AddInvitation(ctx, membership.Invitation{GroupID: "g1", UserID: "dave", InviterID: "bob", Type: membership.TypeInvite})
	require.NoError(t, err, "a second inviter may invite the same user")

	_, err = s.AddInvitation(ctx, membership.Invitation{GroupID: "g1", UserID: "erin", Type: membership.TypeRequest})
	require.NoError(t, err)

	invited, err := s.HasPendingInvitation(ctx, "dave", "g1")
	require.NoError(t, err)
	assert.True(t, invited)
	requested, err := s.HasMembershipRequest(ctx, "erin", "g1")
	require.NoError(t, err)
	assert.True(t, requested)
	requested, err = s.HasMembershipRequest(ctx, "dave", "g1")
	require.NoError(t, err)
	assert.False(t, requested)

	list, err := s.ListInvitations(ctx, membership.InvitationFilter{UserID: "dave"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].InviterID)
	assert.Equal(t, "bob", list[1].InviterID)

	n, err := s.DeleteInvitations(ctx, membership.InvitationFilter{GroupID: "g1", UserID: "dave"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	invited, err = s.HasPendingInvitation(ctx, "dave", "g1")
	require.NoError(t, err)
	assert.False(t, invited)
}

func TestStore_AddInvitationValidation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		inv  membership.Invitation
		code string
	}{
		{"bad type", membership.Invitation{GroupID: "g1", UserID: "dave", Type: "poke"}, membership.CodeInvalidInvitation},
		{"no user", membership.Invitation{GroupID: "g1", InviterID: "alice", Type: membership.TypeInvite}, membership.CodeInvalidInvitation},
		{"invite without inviter", membership.Invitation{GroupID: "g1", UserID: "dave", Type: membership.TypeInvite}, membership.CodeInvalidInvitation},
		{"unknown group", membership.Invitation{GroupID: "nope", UserID: "dave", Type: membership.TypeRequest}, membership.CodeGroupNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddInvitation(ctx, tt.inv)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestStore_LoadResource(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutGroup(ctx, membership.Group{
		ID:        "g2",
		Status:    status.Public,
		Overrides: status.Capabilities{status.AccessGroup: status.String("member")},
	}))
	require.NoError(t, s.PutGroup(ctx, membership.Group{ID: "g3", Status: "retired"}))

	res, err := s.LoadResource(ctx, "g2")
	require.NoError(t, err)
	require.True(t, res.Materialized())

	r := resolve.New(status.NewDefaultRegistry())
	v, ok := r.ResourceHasCapability(res, status.AccessGroup)
	require.True(t, ok)
	assert.Equal(t, "member", v.String())
	v, ok = r.ResourceHasCapability(res, status.JoinMethod)
	require.True(t, ok)
	assert.Equal(t, status.AnyoneCanJoin, v.String())

	_, err = s.LoadResource(ctx, "missing")
	errutil.AssertErrorCode(t, err, membership.CodeGroupNotFound)

	_, err = s.LoadResource(ctx, "g3")
	errutil.AssertErrorCode(t, err, resolve.CodeUnknownStatus)
}

func TestStore_PutGroupValidation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	errutil.AssertErrorCode(t, s.PutGroup(ctx, membership.Group{Status: status.Public}), membership.CodeInvalidGroup)
	errutil.AssertErrorCode(t, s.PutGroup(ctx, membership.Group{ID: "g9"}), membership.CodeInvalidGroup)
}

func TestStore_DeleteGroupCascades(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddMember(ctx, "g1", "alice"))
	_, err := s.AddInvitation(ctx, membership.Invitation{GroupID: "g1", UserID: "dave", InviterID: "alice", Type: membership.TypeInvite})
	require.NoError(t, err)

	require.NoError(t, s.DeleteGroup(ctx, "g1"))

	member, err := s.IsMember(ctx, "alice", "g1")
	require.NoError(t, err)
	assert.False(t, member)
	list, err := s.ListInvitations(ctx, membership.InvitationFilter{GroupID: "g1"})
	require.NoError(t, err)
	assert.Empty(t, list)
	errutil.AssertErrorCode(t, s.DeleteGroup(ctx, "g1"), membership.CodeGroupNotFound)
}

func TestFixtures(t *testing.T) {
	src := `
actors: [erin]
site_roles: {root: administrator}
groups:
  - id: g1
    name: Chess Club
    status: hidden
    overrides:
      post_in_forum: member
    members: {alice: admin, bob: member}
    banned: [mallory]
    invitations:
      - {user: carol, inviter: alice}
      - {user: dave, type: request}
`
	f, err := membership.DecodeFixtures(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"root": "administrator"}, f.SiteRoles)

	s := membership.NewStore(resolve.New(status.NewDefaultRegistry()))
	ctx := context.Background()
	require.NoError(t, f.Apply(ctx, s))

	checks := []struct {
		name string
		fn   func() (bool, error)
	}{
		{"erin authenticated", func() (bool, error) { return s.IsAuthenticated(ctx, "erin") }},
		{"alice admin", func() (bool, error) { return s.IsAdmin(ctx, "alice", "g1") }},
		{"bob member", func() (bool, error) { return s.IsMember(ctx, "bob", "g1") }},
		{"mallory banned", func() (bool, error) { return s.IsBanned(ctx, "mallory", "g1") }},
		{"carol invited", func() (bool, error) { return s.HasPendingInvitation(ctx, "carol", "g1") }},
		{"dave requested", func() (bool, error) { return s.HasMembershipRequest(ctx, "dave", "g1") }},
	}
	for _, c := range checks {
		got, err := c.fn()
		require.NoError(t, err, c.name)
		assert.True(t, got, c.name)
	}

	g, err := s.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Chess Club", g.Name)
	assert.Equal(t, "member", g.Overrides[status.PostInForum].String())
}

func TestDecodeFixtures_UnknownField(t *testing.T) {
	_, err := membership.DecodeFixtures(strings.NewReader("groupz: []\n"))
	errutil.AssertErrorCode(t, err, "FIXTURES_INVALID")
}

func TestRole_AtLeast(t *testing.T) {
	assert.True(t, membership.RoleAdmin.AtLeast(membership.RoleMember))
	assert.True(t, membership.RoleMod.AtLeast(membership.RoleMod))
	assert.False(t, membership.RoleMember.AtLeast(membership.RoleMod))
	assert.False(t, membership.Role("").AtLeast(membership.RoleMember))
}
