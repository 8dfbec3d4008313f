// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package membership

import (
	"context"
	"io"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Fixtures describe a store's contents in YAML:
//
//	actors: [alice, bob]
//	site_roles: {root: administrator}
//	groups:
//	  - id: g1
//	    status: private
//	    members: {alice: admin, bob: member}
//	    banned: [mallory]
//	    invitations:
//	      - {user: carol, inviter: alice}
//	      - {user: dave, type: request}
type Fixtures struct {
	Actors    []string          `yaml:"actors"`
	SiteRoles map[string]string `yaml:"site_roles"`
	Groups    []GroupFixture    `yaml:"groups"`
}

// GroupFixture is one group with its relationships.
type GroupFixture struct {
	Group       `yaml:",inline"`
	Members     map[string]Role     `yaml:"members"`
	Banned      []string            `yaml:"banned"`
	Invitations []InvitationFixture `yaml:"invitations"`
}

// InvitationFixture is an invitation or request within a GroupFixture.
type InvitationFixture struct {
	User    string         `yaml:"user"`
	Inviter string         `yaml:"inviter"`
	Type    InvitationType `yaml:"type"`
	Message string         `yaml:"message"`
}

// DecodeFixtures reads fixtures from YAML.
func DecodeFixtures(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, oops.In("membership").Code("FIXTURES_INVALID").Wrapf(err, "decode fixtures")
	}
	return &f, nil
}

// Apply loads the fixtures into s. Site roles are not applied; they belong
// to the site access controller.
func (f *Fixtures) Apply(ctx context.Context, s *Store) error {
	for _, a := range f.Actors {
		s.Authenticate(a)
	}
	for _, g := range f.Groups {
		if err := s.PutGroup(ctx, g.Group); err != nil {
			return err
		}
		for actor, role := range g.Members {
			if err := s.SetRole(ctx, g.ID, actor, role); err != nil {
				return oops.In("membership").With("group", g.ID).Wrap(err)
			}
		}
		for _, actor := range g.Banned {
			if err := s.Ban(ctx, g.ID, actor); err != nil {
				return err
			}
		}
		for _, inv := range g.Invitations {
			typ := inv.Type
			if typ == "" {
				typ = TypeInvite
			}
			if _, err := s.AddInvitation(ctx, Invitation{
				GroupID:   g.ID,
				UserID:    inv.User,
				InviterID: inv.Inviter,
				Type:      typ,
				Message:   inv.Message,
			}); err != nil {
				return oops.In("membership").With("group", g.ID).Wrap(err)
			}
		}
	}
	return nil
}
