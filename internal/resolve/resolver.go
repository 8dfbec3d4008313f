// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package resolve answers "what is the value of this capability" for a
// status in general and for one specific group.
//
// Status lookups and group lookups are separate entry points: once a group's
// capabilities are materialized they are total, and a group lookup never
// falls back to the status table.
package resolve

import (
	"github.com/samber/oops"

	"github.com/holomush/capgate/internal/status"
	"github.com/holomush/capgate/pkg/errutil"
)

// Error codes returned by this package.
const (
	CodeNotMaterialized = "RESOURCE_NOT_MATERIALIZED"
	CodeUnknownStatus   = "RESOURCE_STATUS_UNKNOWN"
)

// Resource is a group with an assigned status and optional overrides.
type Resource struct {
	ID        string
	Status    string
	Overrides status.Capabilities

	capabilities status.Capabilities
}

// Materialized reports whether the resource's capability map has been computed.
func (r *Resource) Materialized() bool {
	return r != nil && r.capabilities != nil
}

// SetCapabilities installs an already-merged capability map. Loaders that
// compute the map themselves use this instead of Resolver.Materialize.
func (r *Resource) SetCapabilities(caps status.Capabilities) {
	r.capabilities = caps.Clone()
}

// StatusOverride may rewrite the capabilities of a status before a status
// lookup reads them. It must not modify caps in place.
type StatusOverride func(statusName string, capability status.Capability, caps status.Capabilities) status.Capabilities

// Resolver looks up capability values.
type Resolver struct {
	registry  *status.Registry
	overrides []StatusOverride
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStatusOverride appends an override; overrides run in the order given.
func WithStatusOverride(o StatusOverride) Option {
	return func(r *Resolver) {
		r.overrides = append(r.overrides, o)
	}
}

// New creates a Resolver over registry.
func New(registry *status.Registry, opts ...Option) *Resolver {
	r := &Resolver{registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the status registry the resolver reads.
func (r *Resolver) Registry() *status.Registry {
	return r.registry
}

// StatusHasCapability returns the effective value of capability for the named
// status. It returns false if the status is unknown or the value is falsey.
func (r *Resolver) StatusHasCapability(statusName string, capability status.Capability) (status.Value, bool) {
	s, ok := r.registry.Get(statusName)
	if !ok || s.Capabilities == nil {
		return status.Value{}, false
	}

	caps := s.Capabilities
	for _, o := range r.overrides {
		caps = o(statusName, capability, caps)
	}

	v, ok := caps[capability]
	if !ok || !v.Truthy() {
		return status.Value{}, false
	}
	return v, true
}

// ResourceHasCapability returns the group-level value of capability. A group
// that has not been materialized yields false.
func (r *Resolver) ResourceHasCapability(res *Resource, capability status.Capability) (status.Value, bool) {
	if !res.Materialized() {
		return status.Value{}, false
	}
	v, ok := res.capabilities[capability]
	if !ok || !v.Truthy() {
		return status.Value{}, false
	}
	return v, true
}

// ResourceCapabilities returns a copy of the group's materialized capabilities.
func (r *Resolver) ResourceCapabilities(res *Resource) (status.Capabilities, error) {
	if !res.Materialized() {
		id := ""
		if res != nil {
			id = res.ID
		}
		return nil, oops.In("resolve").
			Code(CodeNotMaterialized).
			With("resource", id).
			Errorf("resource capabilities have not been materialized")
	}
	return res.capabilities.Clone(), nil
}

// Materialize computes the group's capabilities: the status's effective map
// with the group's overrides on top. If the status is unknown the group is
// left unmaterialized.
func (r *Resolver) Materialize(res *Resource) error {
	if res == nil {
		return oops.In("resolve").Code(CodeUnknownStatus).Errorf("resource is nil")
	}
	s, ok := r.registry.Get(res.Status)
	if !ok {
		res.capabilities = nil
		return oops.In("resolve").
			Code(CodeUnknownStatus).
			With("resource", res.ID).
			With("status", res.Status).
			Errorf("resource status %q is not registered", res.Status)
	}
	res.capabilities = status.Merge(s.Capabilities, res.Overrides)
	return nil
}

// IsNotMaterialized reports whether err is a PreconditionFailed error.
func IsNotMaterialized(err error) bool {
	return errutil.HasCode(err, CodeNotMaterialized)
}
