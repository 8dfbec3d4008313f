// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/holomush/capgate/internal/access"
	"github.com/holomush/capgate/internal/condition"
	"github.com/holomush/capgate/internal/config"
	"github.com/holomush/capgate/internal/gate"
	"github.com/holomush/capgate/internal/gate/audit"
	"github.com/holomush/capgate/internal/invite"
	"github.com/holomush/capgate/internal/membership"
	"github.com/holomush/capgate/internal/membership/postgres"
	"github.com/holomush/capgate/internal/resolve"
	"github.com/holomush/capgate/internal/status"
)

// connectRetries bounds database connection attempts.
const connectRetries = 5

// backend is what a membership store must provide to the CLI. Both the
// in-memory and the PostgreSQL stores satisfy it.
type backend interface {
	gate.Loader
	gate.MembershipOracle
	condition.RelationshipOracle
	invite.Repository
}

// sourceOptions selects where group relationships come from.
type sourceOptions struct {
	fixtures  string
	siteRoles map[string]string
}

// environment is a fully wired gate with its backing store.
type environment struct {
	registry *status.Registry
	store    backend
	gate     *gate.Gate
	auditLog *audit.Logger
	pool     *pgxpool.Pool
}

func loadRegistry(cfg config.Config) (*status.Registry, error) {
	m, err := cfg.ReadManifest()
	if err != nil {
		return nil, err
	}
	return config.NewRegistry(m)
}

// newEnvironment wires registry, store, site access, audit and gate from
// cfg. Fixtures load an in-memory store; otherwise database_url is used.
func newEnvironment(ctx context.Context, cfg config.Config, src sourceOptions) (*environment, error) {
	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	resolver := resolve.New(registry)

	env := &environment{registry: registry}
	siteRoles := map[string]string{}

	switch {
	case src.fixtures != "":
		f, err := os.Open(src.fixtures)
		if err != nil {
			return nil, oops.In("cli").With("path", src.fixtures).Wrapf(err, "open fixtures")
		}
		defer f.Close()

		fixtures, err := membership.DecodeFixtures(f)
		if err != nil {
			return nil, err
		}
		store := membership.NewStore(resolver)
		if err := fixtures.Apply(ctx, store); err != nil {
			return nil, err
		}
		for actor, role := range fixtures.SiteRoles {
			siteRoles[actor] = role
		}
		env.store = store
	case cfg.DatabaseURL != "":
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, connectRetries)
		if err != nil {
			return nil, err
		}
		env.pool = pool
		env.store = postgres.New(pool, resolver)
	default:
		return nil, oops.In("cli").Code("NO_SOURCE").
			Errorf("either --fixtures or database_url is required")
	}

	for actor, role := range src.siteRoles {
		siteRoles[actor] = role
	}
	ac := access.NewStaticAccessControl()
	for actor, role := range siteRoles {
		if err := ac.AssignRole(actor, role); err != nil {
			env.Close()
			return nil, err
		}
	}

	mode, err := audit.ParseMode(cfg.Audit.Mode)
	if err != nil {
		env.Close()
		return nil, err
	}
	var writer audit.Writer = audit.NewSlogWriter(slog.Default())
	if env.pool != nil {
		writer = audit.NewPostgresWriter(env.pool)
	}
	env.auditLog = audit.NewLogger(mode, writer, cfg.Audit.WALPath)
	if _, err := env.auditLog.ReplayWAL(ctx); err != nil {
		slog.WarnContext(ctx, "audit WAL replay failed", "error", err)
	}

	env.gate = gate.New(resolver, env.store, env.store,
		gate.WithPrivileges(access.NewSiteOverride(ac)),
		gate.WithMembership(env.store),
		gate.WithAuditor(env.auditLog),
	)
	return env, nil
}

// Close flushes the audit log and releases the database pool.
func (e *environment) Close() {
	if e.auditLog != nil {
		if err := e.auditLog.Close(); err != nil {
			slog.Warn("closing audit log", "error", err)
		}
	}
	if e.pool != nil {
		e.pool.Close()
	}
}
