// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package invite runs the invitation and membership-request workflow.
// Every step is checked against the permission gate before the store is
// touched.
package invite

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/capgate/internal/gate"
	"github.com/holomush/capgate/internal/membership"
	"github.com/holomush/capgate/pkg/errutil"
)

// Error codes returned by Service.
const (
	CodeInviteNotAllowed   = "INVITE_NOT_ALLOWED"
	CodeRequestNotAllowed  = "REQUEST_NOT_ALLOWED"
	CodeInvitationNotFound = "INVITATION_NOT_FOUND"
	CodeInvitationExists   = membership.CodeInvitationExists
)

// Repository is the store surface the workflow needs. Both membership
// stores implement it.
type Repository interface {
	AddInvitation(ctx context.Context, inv membership.Invitation) (membership.Invitation, error)
	ListInvitations(ctx context.Context, f membership.InvitationFilter) ([]membership.Invitation, error)
	DeleteInvitations(ctx context.Context, f membership.InvitationFilter) (int, error)
	AddMember(ctx context.Context, groupID, actorID string) error
	IsMember(ctx context.Context, actorID, groupID string) (bool, error)
}

// Decider answers gate questions.
type Decider interface {
	Decide(ctx context.Context, req gate.Request) gate.Decision
}

// Service implements the workflow.
type Service struct {
	repo Repository
	gate Decider
}

// NewService creates a Service.
func NewService(repo Repository, g Decider) *Service {
	return &Service{repo: repo, gate: g}
}

// Invite records an invitation from inviterID to inviteeID. The inviter
// needs groups_send_invitation, the invitee groups_receive_invitation, and
// the inviter must not already have invited them.
func (s *Service) Invite(ctx context.Context, inviterID, inviteeID, groupID, message string) (membership.Invitation, error) {
	send := s.gate.Decide(ctx, gate.Request{ActorID: inviterID, Capability: gate.SendInvitation, ResourceID: groupID})
	if !send.Allowed {
		return membership.Invitation{}, oops.In("invite").Code(CodeInviteNotAllowed).
			With("inviter", inviterID).
			With("group", groupID).
			With("reason", send.Reason).
			Errorf("inviter may not send invitations for this group")
	}

	receive := s.gate.Decide(ctx, gate.Request{ActorID: inviteeID, Capability: gate.ReceiveInvitation, ResourceID: groupID})
	if !receive.Allowed {
		return membership.Invitation{}, oops.In("invite").Code(CodeInviteNotAllowed).
			With("invitee", inviteeID).
			With("group", groupID).
			With("reason", receive.Reason).
			Errorf("invitee may not receive invitations for this group")
	}

	inv, err := s.repo.AddInvitation(ctx, membership.Invitation{
		GroupID:   groupID,
		UserID:    inviteeID,
		InviterID: inviterID,
		Type:      membership.TypeInvite,
		Message:   message,
	})
	if err != nil {
		return membership.Invitation{}, err
	}
	slog.InfoContext(ctx, "invitation sent",
		"group", groupID,
		"inviter", inviterID,
		"invitee", inviteeID,
		"invitation", inv.ID.String())
	return inv, nil
}

// Request records a membership request by actorID.
func (s *Service) Request(ctx context.Context, actorID, groupID, message string) (membership.Invitation, error) {
	d := s.gate.Decide(ctx, gate.Request{ActorID: actorID, Capability: gate.RequestMembership, ResourceID: groupID})
	if !d.Allowed {
		return membership.Invitation{}, oops.In("invite").Code(CodeRequestNotAllowed).
			With("actor", actorID).
			With("group", groupID).
			With("reason", d.Reason).
			Errorf("membership request not allowed")
	}

	inv, err := s.repo.AddInvitation(ctx, membership.Invitation{
		GroupID: groupID,
		UserID:  actorID,
		Type:    membership.TypeRequest,
		Message: message,
	})
	if err != nil {
		return membership.Invitation{}, err
	}
	slog.InfoContext(ctx, "membership requested", "group", groupID, "actor", actorID)
	return inv, nil
}

// Accept turns a pending invitation or request of type typ into membership.
// Accepting while already a member succeeds. Either way every invitation and
// request for (actorID, groupID) is removed.
func (s *Service) Accept(ctx context.Context, actorID, groupID string, typ membership.InvitationType) error {
	member, err := s.repo.IsMember(ctx, actorID, groupID)
	if err != nil {
		return err
	}

	if !member {
		pending, err := s.repo.ListInvitations(ctx, membership.InvitationFilter{GroupID: groupID, UserID: actorID, Type: typ})
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return oops.In("invite").Code(CodeInvitationNotFound).
				With("actor", actorID).
				With("group", groupID).
				With("type", string(typ)).
				Errorf("no pending %s", typ)
		}
		if err := s.repo.AddMember(ctx, groupID, actorID); err != nil {
			return err
		}
	}

	n, err := s.repo.DeleteInvitations(ctx, membership.InvitationFilter{GroupID: groupID, UserID: actorID})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "invitation accepted",
		"group", groupID,
		"actor", actorID,
		"type", typ,
		"cleared", n)
	return nil
}

// Reject deletes actorID's pending invitations to groupID.
func (s *Service) Reject(ctx context.Context, actorID, groupID string) error {
	n, err := s.repo.DeleteInvitations(ctx, membership.InvitationFilter{GroupID: groupID, UserID: actorID, Type: membership.TypeInvite})
	if err != nil {
		return err
	}
	if n == 0 {
		return oops.In("invite").Code(CodeInvitationNotFound).
			With("actor", actorID).
			With("group", groupID).
			Errorf("no pending invitation")
	}
	return nil
}

// Pending lists actorID's pending invitations and requests in groupID.
func (s *Service) Pending(ctx context.Context, actorID, groupID string) ([]membership.Invitation, error) {
	return s.repo.ListInvitations(ctx, membership.InvitationFilter{GroupID: groupID, UserID: actorID})
}

// IsNotAllowed reports whether err is a gate refusal.
func IsNotAllowed(err error) bool {
	return errutil.HasCode(err, CodeInviteNotAllowed) || errutil.HasCode(err, CodeRequestNotAllowed)
}
