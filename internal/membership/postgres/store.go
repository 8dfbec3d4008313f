// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres stores groups and memberships in PostgreSQL.
//
// The host owns the schema; the tables are documented in schema.sql, which
// integration tests apply to a fresh database.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/capgate/internal/membership"
	"github.com/holomush/capgate/internal/resolve"
	"github.com/holomush/capgate/internal/status"
)

// Schema is the DDL the store expects, for hosts and tests to apply.
//
//go:embed schema.sql
var Schema string

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements the membership store over PostgreSQL.
type Store struct {
	db       DB
	resolver *resolve.Resolver
	now      func() time.Time
}

// New creates a Store over db. Loaded groups are materialized with resolver.
func New(db DB, resolver *resolve.Resolver) *Store {
	return &Store{db: db, resolver: resolver, now: time.Now}
}

// Connect opens a pool for dsn and pings it, retrying with exponential
// backoff while the database is unreachable.
func Connect(ctx context.Context, dsn string, maxRetries uint64) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.In("membership").Code("DB_CONFIG_INVALID").Wrapf(err, "parse database url")
	}

	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(100*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			slog.WarnContext(ctx, "database not reachable, retrying", "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.In("membership").Code("DB_UNREACHABLE").Wrapf(err, "connect to database")
	}
	return pool, nil
}

// PutGroup creates or replaces a group.
func (s *Store) PutGroup(ctx context.Context, g membership.Group) error {
	if strings.TrimSpace(g.ID) == "" || g.Status == "" {
		return oops.In("membership").Code(membership.CodeInvalidGroup).
			With("group", g.ID).
			Errorf("group id and status are required")
	}
	overrides, err := json.Marshal(g.Overrides)
	if err != nil {
		return oops.In("membership").With("group", g.ID).Wrap(err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO groups (id, name, status, overrides)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, status = EXCLUDED.status, overrides = EXCLUDED.overrides`,
		g.ID, g.Name, g.Status, overrides)
	if err != nil {
		return oops.In("membership").With("group", g.ID).Wrapf(err, "put group")
	}
	return nil
}

// GetGroup returns a stored group.
func (s *Store) GetGroup(ctx context.Context, id string) (membership.Group, error) {
	var (
		g         membership.Group
		overrides []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, name, status, overrides FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.Status, &overrides)
	if errors.Is(err, pgx.ErrNoRows) {
		return membership.Group{}, oops.In("membership").Code(membership.CodeGroupNotFound).
			With("group", id).
			Errorf("group %q not found", id)
	}
	if err != nil {
		return membership.Group{}, oops.In("membership").With("group", id).Wrapf(err, "get group")
	}
	if len(overrides) > 0 {
		var caps status.Capabilities
		if err := json.Unmarshal(overrides, &caps); err != nil {
			return membership.Group{}, oops.In("membership").With("group", id).Wrapf(err, "decode overrides")
		}
		g.Overrides = caps
	}
	return g, nil
}

// LoadResource returns the group with its capabilities materialized.
func (s *Store) LoadResource(ctx context.Context, id string) (*resolve.Resource, error) {
	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &resolve.Resource{ID: g.ID, Status: g.Status, Overrides: g.Overrides}
	if err := s.resolver.Materialize(res); err != nil {
		return nil, err
	}
	return res, nil
}

// SetRole makes actorID a member of groupID with role.
func (s *Store) SetRole(ctx context.Context, groupID, actorID string, role membership.Role) error {
	if !role.Valid() {
		return oops.In("membership").Code(membership.CodeInvalidRole).
			With("role", string(role)).
			Errorf("unknown member role %q", role)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO group_members (group_id, actor_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, actor_id) DO UPDATE SET role = EXCLUDED.role`,
		groupID, actorID, string(role))
	if err != nil {
		return classify(err, "set role", groupID, actorID)
	}
	return nil
}

// AddMember makes actorID a plain member unless they already hold a role.
func (s *Store) AddMember(ctx context.Context, groupID, actorID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO group_members (group_id, actor_id, role)
		VALUES ($1, $2, 'member')
		ON CONFLICT (group_id, actor_id) DO NOTHING`,
		groupID, actorID)
	if err != nil {
		return classify(err, "add member", groupID, actorID)
	}
	return nil
}

// Role returns actorID's role in groupID, or "" if not a member.
func (s *Store) Role(ctx context.Context, groupID, actorID string) (membership.Role, error) {
	var role string
	err := s.db.QueryRow(ctx,
		`SELECT role FROM group_members WHERE group_id = $1 AND actor_id = $2`,
		groupID, actorID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", oops.In("membership").
			With("group", groupID).
			With("actor", actorID).
			Wrapf(err, "get role")
	}
	return membership.Role(role), nil
}

// Ban bans actorID from groupID and removes any membership.
func (s *Store) Ban(ctx context.Context, groupID, actorID string) error {
	_, err := s.db.Exec(ctx, `
		WITH removed AS (
			DELETE FROM group_members WHERE group_id = $1 AND actor_id = $2
		)
		INSERT INTO group_bans (group_id, actor_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		groupID, actorID)
	if err != nil {
		return classify(err, "ban", groupID, actorID)
	}
	return nil
}

// AddInvitation stores inv with a new ID. A duplicate pending invitation
// fails with membership.CodeInvitationExists.
func (s *Store) AddInvitation(ctx context.Context, inv membership.Invitation) (membership.Invitation, error) {
	if !inv.Type.Valid() || inv.UserID == "" {
		return membership.Invitation{}, oops.In("membership").Code(membership.CodeInvalidInvitation).
			With("type", string(inv.Type)).
			Errorf("invalid invitation")
	}
	inv.ID = ulid.Make()
	inv.CreatedAt = s.now().UTC()

	_, err := s.db.Exec(ctx, `
		INSERT INTO group_invitations (id, group_id, user_id, inviter_id, type, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.ID.String(), inv.GroupID, inv.UserID, inv.InviterID, string(inv.Type), inv.Message, inv.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return membership.Invitation{}, oops.In("membership").Code(membership.CodeInvitationExists).
				With("group", inv.GroupID).
				With("user", inv.UserID).
				With("inviter", inv.InviterID).
				Errorf("%s already pending", inv.Type)
		}
		return membership.Invitation{}, classify(err, "add invitation", inv.GroupID, inv.UserID)
	}
	return inv, nil
}

// filterClause renders f as a WHERE clause with positional arguments.
func filterClause(f membership.InvitationFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}
	add("group_id", f.GroupID)
	add("user_id", f.UserID)
	add("inviter_id", f.InviterID)
	add("type", string(f.Type))
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListInvitations returns invitations matching f, oldest first.
func (s *Store) ListInvitations(ctx context.Context, f membership.InvitationFilter) ([]membership.Invitation, error) {
	where, args := filterClause(f)
	rows, err := s.db.Query(ctx, `
		SELECT id, group_id, user_id, inviter_id, type, message, created_at
		FROM group_invitations`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, oops.In("membership").Wrapf(err, "list invitations")
	}
	defer rows.Close()

	var out []membership.Invitation
	for rows.Next() {
		var (
			inv membership.Invitation
			id  string
			typ string
		)
		if err := rows.Scan(&id, &inv.GroupID, &inv.UserID, &inv.InviterID, &typ, &inv.Message, &inv.CreatedAt); err != nil {
			return nil, oops.In("membership").Wrapf(err, "scan invitation")
		}
		parsed, err := ulid.Parse(id)
		if err != nil {
			return nil, oops.In("membership").With("id", id).Wrapf(err, "parse invitation id")
		}
		inv.ID = parsed
		inv.Type = membership.InvitationType(typ)
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("membership").Wrapf(err, "iterate invitations")
	}
	return out, nil
}

// DeleteInvitations removes invitations matching f and returns how many.
func (s *Store) DeleteInvitations(ctx context.Context, f membership.InvitationFilter) (int, error) {
	where, args := filterClause(f)
	if where == "" {
		return 0, oops.In("membership").Code(membership.CodeInvalidInvitation).
			Errorf("refusing to delete invitations without a filter")
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM group_invitations`+where, args...)
	if err != nil {
		return 0, oops.In("membership").Wrapf(err, "delete invitations")
	}
	return int(tag.RowsAffected()), nil
}

// IsMember implements condition.RelationshipOracle.
func (s *Store) IsMember(ctx context.Context, actorID, groupID string) (bool, error) {
	return s.hasRole(ctx, groupID, actorID, membership.RoleMember)
}

// IsModerator implements condition.RelationshipOracle.
func (s *Store) IsModerator(ctx context.Context, actorID, groupID string) (bool, error) {
	return s.hasRole(ctx, groupID, actorID, membership.RoleMod)
}

// IsAdmin implements condition.RelationshipOracle.
func (s *Store) IsAdmin(ctx context.Context, actorID, groupID string) (bool, error) {
	return s.hasRole(ctx, groupID, actorID, membership.RoleAdmin)
}

func (s *Store) hasRole(ctx context.Context, groupID, actorID string, minimum membership.Role) (bool, error) {
	role, err := s.Role(ctx, groupID, actorID)
	if err != nil {
		return false, err
	}
	return role.AtLeast(minimum), nil
}

// HasPendingInvitation implements condition.RelationshipOracle.
func (s *Store) HasPendingInvitation(ctx context.Context, actorID, groupID string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (
		SELECT 1 FROM group_invitations
		WHERE group_id = $1 AND user_id = $2 AND type = 'invite')`, groupID, actorID)
}

// HasMembershipRequest implements gate.MembershipOracle.
func (s *Store) HasMembershipRequest(ctx context.Context, actorID, groupID string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (
		SELECT 1 FROM group_invitations
		WHERE group_id = $1 AND user_id = $2 AND type = 'request')`, groupID, actorID)
}

// IsBanned implements gate.MembershipOracle.
func (s *Store) IsBanned(ctx context.Context, actorID, groupID string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (
		SELECT 1 FROM group_bans WHERE group_id = $1 AND actor_id = $2)`, groupID, actorID)
}

// IsAuthenticated implements condition.RelationshipOracle. Actors are
// authenticated when the host has recorded them in the actors table.
func (s *Store) IsAuthenticated(ctx context.Context, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	var ok bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM actors WHERE id = $1)`, actorID).Scan(&ok); err != nil {
		return false, oops.In("membership").With("actor", actorID).Wrapf(err, "check actor")
	}
	return ok, nil
}

func (s *Store) exists(ctx context.Context, query, groupID, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	var ok bool
	if err := s.db.QueryRow(ctx, query, groupID, actorID).Scan(&ok); err != nil {
		return false, oops.In("membership").
			With("group", groupID).
			With("actor", actorID).
			Wrap(err)
	}
	return ok, nil
}

// classify maps foreign-key violations to GroupNotFound.
func classify(err error, op, groupID, actorID string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return oops.In("membership").Code(membership.CodeGroupNotFound).
			With("group", groupID).
			With("actor", actorID).
			Wrapf(err, "%s", op)
	}
	return oops.In("membership").
		With("group", groupID).
		With("actor", actorID).
		Wrapf(err, "%s", op)
}
