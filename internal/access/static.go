// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// StaticAccessControl implements AccessControl with static role definitions.
//
// roles is immutable after construction; actors is guarded by mu.
type StaticAccessControl struct {
	roles  map[string][]compiledPermission
	actors map[string]string // actorID → role
	mu     sync.RWMutex
}

type compiledPermission struct {
	pattern string
	glob    glob.Glob
}

// NewStaticAccessControl creates an access controller with DefaultRoles.
// Panics if the default patterns fail to compile.
func NewStaticAccessControl() *StaticAccessControl {
	ac, err := NewStaticAccessControlWithRoles(DefaultRoles())
	if err != nil {
		panic("invalid permission pattern in DefaultRoles: " + err.Error())
	}
	return ac
}

// NewStaticAccessControlWithRoles creates an access controller with custom
// roles. It fails if any pattern is not a valid glob.
func NewStaticAccessControlWithRoles(roles map[string][]string) (*StaticAccessControl, error) {
	compiledRoles := make(map[string][]compiledPermission, len(roles))
	for role, perms := range roles {
		compiled := make([]compiledPermission, 0, len(perms))
		for _, p := range perms {
			g, err := glob.Compile(p, ':')
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_PERMISSION_PATTERN").
					With("role", role).
					With("pattern", p).
					Wrap(err)
			}
			compiled = append(compiled, compiledPermission{pattern: p, glob: g})
		}
		compiledRoles[role] = compiled
	}

	return &StaticAccessControl{
		roles:  compiledRoles,
		actors: make(map[string]string),
	}, nil
}

// Check implements AccessControl.
func (s *StaticAccessControl) Check(ctx context.Context, actor, action, resource string) bool {
	if actor == SystemActor || IsSystemContext(ctx) {
		return true
	}
	if actor == "" {
		return false
	}

	s.mu.RLock()
	role := s.actors[actor]
	s.mu.RUnlock()

	permissions := s.roles[role]
	if len(permissions) == 0 {
		return false
	}

	requested := action + ":" + resource
	for _, perm := range permissions {
		if !strings.Contains(perm.pattern, "$self") {
			if perm.glob.Match(requested) {
				return true
			}
			continue
		}

		resolved := strings.ReplaceAll(perm.pattern, "$self", actor)
		g, err := glob.Compile(resolved, ':')
		if err != nil {
			slog.WarnContext(ctx, "failed to compile resolved permission pattern",
				"actor", actor,
				"action", action,
				"pattern", perm.pattern,
				"resolved", resolved,
				"error", err)
			continue
		}
		if g.Match(requested) {
			return true
		}
	}

	return false
}

// AssignRole sets the role for an actor.
func (s *StaticAccessControl) AssignRole(actor, role string) error {
	if actor == "" {
		return oops.In("access").Code("INVALID_ACTOR").New("actor cannot be empty")
	}
	if role == "" {
		return oops.In("access").Code("INVALID_ROLE").New("role cannot be empty")
	}
	if _, ok := s.roles[role]; !ok {
		return oops.In("access").Code("UNKNOWN_ROLE").With("role", role).New("unknown role")
	}

	s.mu.Lock()
	s.actors[actor] = role
	s.mu.Unlock()

	slog.Debug("site role assigned", "actor", actor, "role", role)
	return nil
}

// RevokeRole removes an actor's role assignment.
func (s *StaticAccessControl) RevokeRole(actor string) error {
	if actor == "" {
		return oops.In("access").Code("INVALID_ACTOR").New("actor cannot be empty")
	}

	s.mu.Lock()
	delete(s.actors, actor)
	s.mu.Unlock()

	return nil
}

// GetRole returns the role assigned to an actor, or "" if none.
func (s *StaticAccessControl) GetRole(actor string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actors[actor]
}

// Roles returns the configured role names, sorted.
func (s *StaticAccessControl) Roles() []string {
	names := make([]string, 0, len(s.roles))
	for name := range s.roles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
