// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"context"
	"log/slog"

	"github.com/holomush/capgate/internal/condition"
	"github.com/holomush/capgate/internal/resolve"
	"github.com/holomush/capgate/internal/status"
)

// Gate capabilities understood by GroupStrategy.
const (
	JoinGroup               = "groups_join_group"
	RequestMembership       = "groups_request_membership"
	SendInvitation          = "groups_send_invitation"
	ReceiveInvitation       = "groups_receive_invitation"
	AccessGroup             = "groups_access_group"
	SeeGroup                = "groups_see_group"
	PostInForum             = "groups_post_in_forum"
	PostInActivityStream    = "groups_post_in_activity_stream"
	groupStrategyName       = "group"
	reasonUnknownResource   = "resource unavailable"
	reasonAnonymous         = "anonymous actor"
	reasonConditionsMet     = "access condition met"
	reasonConditionsNotMet  = "no access condition met"
	reasonRelationshipError = "relationship lookup failed"
)

// conditionCapabilities maps gate capabilities to the group capability whose
// value is evaluated as a condition list.
var conditionCapabilities = map[string]status.Capability{
	AccessGroup:          status.AccessGroup,
	SeeGroup:             status.ShowGroup,
	PostInForum:          status.PostInForum,
	PostInActivityStream: status.PostInActivityStream,
}

// Recognized reports whether the built-in group strategy decides capability.
func Recognized(capability string) bool {
	switch capability {
	case JoinGroup, RequestMembership, SendInvitation, ReceiveInvitation:
		return true
	}
	_, ok := conditionCapabilities[capability]
	return ok
}

// GroupStrategy decides the groups_* capabilities from the group's
// materialized capabilities and the actor's relationship to it.
type GroupStrategy struct {
	resolver   *resolve.Resolver
	loader     Loader
	relations  condition.RelationshipOracle
	membership MembershipOracle
	evaluator  *condition.Evaluator
}

// Name implements Strategy.
func (s *GroupStrategy) Name() string { return groupStrategyName }

// Decide implements Strategy.
func (s *GroupStrategy) Decide(ctx context.Context, req Request, prev Decision) Decision {
	if !Recognized(req.Capability) {
		return prev
	}

	res, ok := s.load(ctx, req.ResourceID)
	if !ok {
		return s.deny(req, reasonUnknownResource)
	}

	switch req.Capability {
	case JoinGroup:
		return s.join(ctx, req, res, status.AnyoneCanJoin, false)
	case RequestMembership:
		return s.join(ctx, req, res, status.AcceptsMembershipRequests, true)
	case SendInvitation:
		return s.sendInvitation(ctx, req, res)
	case ReceiveInvitation:
		return s.receiveInvitation(ctx, req, res)
	default:
		return s.conditions(ctx, req, res, conditionCapabilities[req.Capability])
	}
}

func (s *GroupStrategy) load(ctx context.Context, resourceID string) (*resolve.Resource, bool) {
	if resourceID == "" {
		return nil, false
	}
	res, err := s.loader.LoadResource(ctx, resourceID)
	if err != nil {
		slog.WarnContext(ctx, "failed to load resource for permission check",
			"resource", resourceID,
			"error", err)
		return nil, false
	}
	if !res.Materialized() {
		slog.WarnContext(ctx, "resource capabilities not materialized",
			"resource", resourceID)
		return nil, false
	}
	return res, true
}

// join decides joining (or requesting to join) a group whose join_method
// must equal method. The actor must not already be a member or be banned;
// a request additionally must not be pending.
func (s *GroupStrategy) join(ctx context.Context, req Request, res *resolve.Resource, method string, request bool) Decision {
	if req.ActorID == "" {
		return s.deny(req, reasonAnonymous)
	}
	if got := s.stringCapability(res, status.JoinMethod); got != method {
		return s.deny(req, "join method is "+quoteOrNone(got))
	}

	member, err := s.relations.IsMember(ctx, req.ActorID, res.ID)
	if err != nil {
		return s.lookupFailed(ctx, req, err)
	}
	if member {
		return s.deny(req, "already a member")
	}

	banned, err := s.membership.IsBanned(ctx, req.ActorID, res.ID)
	if err != nil {
		return s.lookupFailed(ctx, req, err)
	}
	if banned {
		return s.deny(req, "banned from group")
	}

	if request {
		pending, err := s.membership.HasMembershipRequest(ctx, req.ActorID, res.ID)
		if err != nil {
			return s.lookupFailed(ctx, req, err)
		}
		if pending {
			return s.deny(req, "membership request already pending")
		}
	}

	return s.allow(req, "join method is "+method)
}

func (s *GroupStrategy) sendInvitation(ctx context.Context, req Request, res *resolve.Resource) Decision {
	if req.ActorID == "" {
		return s.deny(req, reasonAnonymous)
	}
	if s.evaluator.HasOverride(ctx, req.ActorID) {
		return s.override(req)
	}

	var conds []condition.Condition
	inviteStatus := s.stringCapability(res, status.InviteStatus)
	switch inviteStatus {
	case status.InviteAdmins:
		conds = []condition.Condition{condition.Admin}
	case status.InviteMods:
		conds = []condition.Condition{condition.Mod, condition.Admin}
	case status.InviteMembers:
		conds = []condition.Condition{condition.Member}
	default:
		return s.deny(req, "invite status is "+quoteOrNone(inviteStatus))
	}

	if s.evaluator.MeetsAny(ctx, conds, res.ID, req.ActorID) {
		return s.allow(req, "invite status is "+inviteStatus)
	}
	return s.deny(req, "invite status is "+inviteStatus)
}

// receiveInvitation allows invitations into groups that cannot be joined
// freely, for actors who are neither members nor banned.
func (s *GroupStrategy) receiveInvitation(ctx context.Context, req Request, res *resolve.Resource) Decision {
	if req.ActorID == "" {
		return s.deny(req, reasonAnonymous)
	}
	method := s.stringCapability(res, status.JoinMethod)
	if method == "" || method == status.AnyoneCanJoin {
		return s.deny(req, "join method is "+quoteOrNone(method))
	}

	member, err := s.relations.IsMember(ctx, req.ActorID, res.ID)
	if err != nil {
		return s.lookupFailed(ctx, req, err)
	}
	if member {
		return s.deny(req, "already a member")
	}
	banned, err := s.membership.IsBanned(ctx, req.ActorID, res.ID)
	if err != nil {
		return s.lookupFailed(ctx, req, err)
	}
	if banned {
		return s.deny(req, "banned from group")
	}
	return s.allow(req, "join method is "+method)
}

// conditions evaluates a condition-list capability. The site-wide override
// is checked before the capability is read, so it holds even when the
// status leaves the capability unset or false.
func (s *GroupStrategy) conditions(ctx context.Context, req Request, res *resolve.Resource, capability status.Capability) Decision {
	if s.evaluator.HasOverride(ctx, req.ActorID) {
		return s.override(req)
	}
	v, ok := s.resolver.ResourceHasCapability(res, capability)
	if !ok {
		return s.deny(req, string(capability)+" is not set")
	}
	if s.evaluator.MeetsAny(ctx, condition.Parse(v), res.ID, req.ActorID) {
		return s.allow(req, reasonConditionsMet)
	}
	return s.deny(req, reasonConditionsNotMet)
}

func (s *GroupStrategy) stringCapability(res *resolve.Resource, capability status.Capability) string {
	v, ok := s.resolver.ResourceHasCapability(res, capability)
	if !ok {
		return ""
	}
	str, _ := v.AsString()
	return str
}

func (s *GroupStrategy) lookupFailed(ctx context.Context, req Request, err error) Decision {
	slog.WarnContext(ctx, "membership lookup failed",
		"capability", req.Capability,
		"actor", req.ActorID,
		"resource", req.ResourceID,
		"error", err)
	return s.deny(req, reasonRelationshipError)
}

func (s *GroupStrategy) allow(req Request, reason string) Decision {
	return Decision{Allowed: true, Capability: req.Capability, Reason: reason, Strategy: groupStrategyName}
}

func (s *GroupStrategy) override(req Request) Decision {
	d := s.allow(req, "site-wide override")
	d.Override = true
	return d
}

func (s *GroupStrategy) deny(req Request, reason string) Decision {
	return Decision{Allowed: false, Capability: req.Capability, Reason: reason, Strategy: groupStrategyName}
}

func quoteOrNone(s string) string {
	if s == "" {
		return "unset"
	}
	return s
}
