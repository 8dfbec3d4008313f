// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package access holds site-wide roles: the privileges an actor has across
// every group, independent of any one group's membership.
//
// Requests are matched as "action:resource" against glob patterns that use
// ':' as the separator, e.g. "moderate:groups" or "read:group:*".
package access

import (
	"context"
)

// SystemActor is always allowed.
const SystemActor = "system"

// Site actions and resources checked by capgate.
const (
	ActionModerate = "moderate"
	ResourceGroups = "groups"
)

// AccessControl checks site-wide permissions.
//
//nolint:revive // AccessControl reads better at call sites than Control
type AccessControl interface {
	// Check returns true if actor is allowed to perform action on resource.
	// Unknown actors are denied.
	Check(ctx context.Context, actor, action, resource string) bool
}

// SiteOverride reports site-wide group moderators. It is the privilege
// oracle used by the condition evaluator and the gate.
type SiteOverride struct {
	ac AccessControl
}

// NewSiteOverride wraps ac.
func NewSiteOverride(ac AccessControl) *SiteOverride {
	return &SiteOverride{ac: ac}
}

// HasSiteWideOverride returns true if actorID may moderate all groups.
func (s *SiteOverride) HasSiteWideOverride(ctx context.Context, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	return s.ac.Check(ctx, actorID, ActionModerate, ResourceGroups), nil
}
