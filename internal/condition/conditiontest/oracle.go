// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package conditiontest provides test doubles for condition oracles.
package conditiontest

import (
	"context"

	"github.com/holomush/capgate/internal/condition"
)

// Relation is an actor's standing in one group.
type Relation struct {
	Member  bool
	Mod     bool
	Admin   bool
	Invited bool
}

// Oracle is a RelationshipOracle and PrivilegeOracle backed by maps.
// The zero value knows no one.
type Oracle struct {
	Relations     map[string]map[string]Relation // resourceID → actorID → relation
	Authenticated map[string]bool
	Overrides     map[string]bool
	Err           error
}

// Set records rel for actor in resource, creating maps as needed.
func (o *Oracle) Set(resourceID, actorID string, rel Relation) {
	if o.Relations == nil {
		o.Relations = make(map[string]map[string]Relation)
	}
	if o.Relations[resourceID] == nil {
		o.Relations[resourceID] = make(map[string]Relation)
	}
	o.Relations[resourceID][actorID] = rel
}

func (o *Oracle) rel(resourceID, actorID string) Relation {
	return o.Relations[resourceID][actorID]
}

// IsMember implements condition.RelationshipOracle.
func (o *Oracle) IsMember(_ context.Context, actorID, resourceID string) (bool, error) {
	return o.rel(resourceID, actorID).Member, o.Err
}

// IsModerator implements condition.RelationshipOracle.
func (o *Oracle) IsModerator(_ context.Context, actorID, resourceID string) (bool, error) {
	return o.rel(resourceID, actorID).Mod, o.Err
}

// IsAdmin implements condition.RelationshipOracle.
func (o *Oracle) IsAdmin(_ context.Context, actorID, resourceID string) (bool, error) {
	return o.rel(resourceID, actorID).Admin, o.Err
}

// HasPendingInvitation implements condition.RelationshipOracle.
func (o *Oracle) HasPendingInvitation(_ context.Context, actorID, resourceID string) (bool, error) {
	return o.rel(resourceID, actorID).Invited, o.Err
}

// IsAuthenticated implements condition.RelationshipOracle.
func (o *Oracle) IsAuthenticated(_ context.Context, actorID string) (bool, error) {
	return o.Authenticated[actorID], o.Err
}

// HasSiteWideOverride implements condition.PrivilegeOracle.
func (o *Oracle) HasSiteWideOverride(_ context.Context, actorID string) (bool, error) {
	return o.Overrides[actorID], o.Err
}

var (
	_ condition.RelationshipOracle = (*Oracle)(nil)
	_ condition.PrivilegeOracle    = (*Oracle)(nil)
)
