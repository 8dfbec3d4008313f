// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package gate combines capability resolution and access conditions into a
// single allow/deny decision for a named action on a group.
//
// A decision starts as the caller's default and passes through an ordered
// list of strategies. The built-in group strategy runs first; strategies
// added with WithStrategies run after it and may override its result.
// Capabilities that no strategy recognizes keep the caller's default.
package gate

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/capgate/internal/condition"
	"github.com/holomush/capgate/internal/gate/audit"
	"github.com/holomush/capgate/internal/resolve"
)

const tracerName = "github.com/holomush/capgate/internal/gate"

// Request asks whether an actor may exercise a capability on a group.
type Request struct {
	ActorID    string // "" is the anonymous visitor
	Capability string // e.g. "groups_join_group"
	ResourceID string
	// Default is returned when no strategy recognizes Capability.
	Default bool
}

// Decision is the outcome of a Request.
type Decision struct {
	Allowed    bool
	Capability string
	Reason     string
	// Strategy names the strategy that produced the decision; empty means
	// the caller's default was kept.
	Strategy string
	// Override is set when a site-wide privilege decided the outcome.
	Override bool
}

// Strategy is one link of the decision chain. It receives the decision so
// far and returns it unchanged or replaced.
type Strategy interface {
	Name() string
	Decide(ctx context.Context, req Request, prev Decision) Decision
}

type funcStrategy struct {
	name string
	fn   func(ctx context.Context, req Request, prev Decision) Decision
}

func (f funcStrategy) Name() string { return f.name }

func (f funcStrategy) Decide(ctx context.Context, req Request, prev Decision) Decision {
	return f.fn(ctx, req, prev)
}

// StrategyFunc adapts a function to a Strategy.
func StrategyFunc(name string, fn func(ctx context.Context, req Request, prev Decision) Decision) Strategy {
	return funcStrategy{name: name, fn: fn}
}

// Loader fetches a group with materialized capabilities.
type Loader interface {
	LoadResource(ctx context.Context, resourceID string) (*resolve.Resource, error)
}

// MembershipOracle answers the membership questions that are not access
// conditions.
type MembershipOracle interface {
	IsBanned(ctx context.Context, actorID, resourceID string) (bool, error)
	HasMembershipRequest(ctx context.Context, actorID, resourceID string) (bool, error)
}

// Auditor records decisions.
type Auditor interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// Gate evaluates Requests.
type Gate struct {
	strategies []Strategy
	auditor    Auditor
	tracer     trace.Tracer
}

type options struct {
	privileges condition.PrivilegeOracle
	membership MembershipOracle
	extra      []Strategy
	auditor    Auditor
	tracer     trace.Tracer
}

// Option configures a Gate.
type Option func(*options)

// WithPrivileges sets the site-wide privilege oracle.
func WithPrivileges(p condition.PrivilegeOracle) Option {
	return func(o *options) { o.privileges = p }
}

// WithMembership sets the ban/request oracle. Without it no actor is banned
// and no request is pending.
func WithMembership(m MembershipOracle) Option {
	return func(o *options) { o.membership = m }
}

// WithStrategies appends strategies that run after the group strategy.
func WithStrategies(s ...Strategy) Option {
	return func(o *options) { o.extra = append(o.extra, s...) }
}

// WithAuditor records every decision.
func WithAuditor(a Auditor) Option {
	return func(o *options) { o.auditor = a }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// New creates a Gate. resolver, loader and relations are required.
func New(resolver *resolve.Resolver, loader Loader, relations condition.RelationshipOracle, opts ...Option) *Gate {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.membership == nil {
		o.membership = noMembership{}
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	group := &GroupStrategy{
		resolver:   resolver,
		loader:     loader,
		relations:  relations,
		membership: o.membership,
		evaluator:  condition.NewEvaluator(relations, o.privileges),
	}

	strategies := make([]Strategy, 0, 1+len(o.extra))
	strategies = append(strategies, group)
	strategies = append(strategies, o.extra...)

	return &Gate{
		strategies: strategies,
		auditor:    o.auditor,
		tracer:     o.tracer,
	}
}

// UserCan reports whether actorID may exercise capability on resourceID.
// def is returned for capabilities the gate does not recognize.
func (g *Gate) UserCan(ctx context.Context, actorID, capability, resourceID string, def bool) bool {
	return g.Decide(ctx, Request{
		ActorID:    actorID,
		Capability: capability,
		ResourceID: resourceID,
		Default:    def,
	}).Allowed
}

// Decide runs req through the strategy chain.
func (g *Gate) Decide(ctx context.Context, req Request) Decision {
	start := time.Now()

	ctx, span := g.tracer.Start(ctx, "gate.Decide", trace.WithAttributes(
		attribute.String("capgate.capability", req.Capability),
		attribute.String("capgate.resource", req.ResourceID),
	))
	defer span.End()

	decision := Decision{
		Allowed:    req.Default,
		Capability: req.Capability,
		Reason:     "caller default",
	}
	for _, s := range g.strategies {
		decision = s.Decide(ctx, req, decision)
	}

	span.SetAttributes(
		attribute.Bool("capgate.allowed", decision.Allowed),
		attribute.String("capgate.strategy", decision.Strategy),
	)

	elapsed := time.Since(start)
	recordDecision(decision, elapsed)

	if g.auditor != nil {
		entry := audit.Entry{
			Actor:      req.ActorID,
			Capability: req.Capability,
			Resource:   req.ResourceID,
			Allowed:    decision.Allowed,
			Override:   decision.Override,
			Strategy:   decision.Strategy,
			Reason:     decision.Reason,
			DurationUS: elapsed.Microseconds(),
			Timestamp:  time.Now(),
		}
		if err := g.auditor.Log(ctx, entry); err != nil {
			slog.WarnContext(ctx, "audit log failed", "error", err)
		}
	}

	return decision
}

type noMembership struct{}

func (noMembership) IsBanned(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (noMembership) HasMembershipRequest(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}
