// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package condition

import (
	"context"
	"log/slog"
)

// RelationshipOracle answers how an actor relates to a group. Implementations
// are backed by membership storage.
type RelationshipOracle interface {
	IsMember(ctx context.Context, actorID, resourceID string) (bool, error)
	IsModerator(ctx context.Context, actorID, resourceID string) (bool, error)
	IsAdmin(ctx context.Context, actorID, resourceID string) (bool, error)
	HasPendingInvitation(ctx context.Context, actorID, resourceID string) (bool, error)
	IsAuthenticated(ctx context.Context, actorID string) (bool, error)
}

// PrivilegeOracle answers whether an actor holds the site-wide moderation
// privilege that bypasses every condition.
type PrivilegeOracle interface {
	HasSiteWideOverride(ctx context.Context, actorID string) (bool, error)
}

// NoPrivileges is a PrivilegeOracle that never grants the override.
type NoPrivileges struct{}

// HasSiteWideOverride always returns false.
func (NoPrivileges) HasSiteWideOverride(_ context.Context, _ string) (bool, error) {
	return false, nil
}

// Evaluator checks conditions. Errors from the oracles deny (fail closed).
type Evaluator struct {
	relations  RelationshipOracle
	privileges PrivilegeOracle
}

// NewEvaluator creates an Evaluator. If privileges is nil, NoPrivileges is used.
func NewEvaluator(relations RelationshipOracle, privileges PrivilegeOracle) *Evaluator {
	if privileges == nil {
		privileges = NoPrivileges{}
	}
	return &Evaluator{relations: relations, privileges: privileges}
}

// HasOverride reports whether actorID holds the site-wide override.
// The anonymous actor never does.
func (e *Evaluator) HasOverride(ctx context.Context, actorID string) bool {
	if actorID == "" {
		return false
	}
	ok, err := e.privileges.HasSiteWideOverride(ctx, actorID)
	if err != nil {
		slog.WarnContext(ctx, "site-wide privilege lookup failed",
			"actor", actorID,
			"error", err)
		return false
	}
	return ok
}

// Meets reports whether actorID satisfies cond for resourceID. An empty
// resourceID never matches. Actors with the site-wide override match every
// condition, including noone. Unrecognized conditions behave like anyone.
func (e *Evaluator) Meets(ctx context.Context, cond Condition, resourceID, actorID string) bool {
	if resourceID == "" {
		return false
	}
	if e.HasOverride(ctx, actorID) {
		return true
	}

	switch cond {
	case Admin:
		return e.ask(ctx, cond, actorID, resourceID, e.relations.IsAdmin)
	case Mod:
		return e.ask(ctx, cond, actorID, resourceID, e.relations.IsModerator)
	case Member:
		return e.ask(ctx, cond, actorID, resourceID, e.relations.IsMember)
	case Invited:
		return e.ask(ctx, cond, actorID, resourceID, e.relations.HasPendingInvitation)
	case LoggedIn:
		if actorID == "" {
			return false
		}
		ok, err := e.relations.IsAuthenticated(ctx, actorID)
		if err != nil {
			slog.WarnContext(ctx, "authentication lookup failed",
				"actor", actorID,
				"error", err)
			return false
		}
		return ok
	case Noone:
		return false
	default:
		return true
	}
}

// MeetsAny reports whether any condition is met. An empty list is not met.
func (e *Evaluator) MeetsAny(ctx context.Context, conds []Condition, resourceID, actorID string) bool {
	for _, c := range conds {
		if e.Meets(ctx, c, resourceID, actorID) {
			return true
		}
	}
	return false
}

type relationQuery func(ctx context.Context, actorID, resourceID string) (bool, error)

func (e *Evaluator) ask(ctx context.Context, cond Condition, actorID, resourceID string, q relationQuery) bool {
	if actorID == "" {
		return false
	}
	ok, err := q(ctx, actorID, resourceID)
	if err != nil {
		slog.WarnContext(ctx, "relationship lookup failed",
			"condition", string(cond),
			"actor", actorID,
			"resource", resourceID,
			"error", err)
		return false
	}
	return ok
}
