// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/capgate/internal/config"
	"github.com/holomush/capgate/internal/status"
	"github.com/holomush/capgate/pkg/errutil"
)

const clubManifest = `
version: 1.0.0
statuses:
  - name: club
    display_name: Members' Club
    fallback: private
    priority: 60
    capabilities:
      access_group: [member, invited]
      invite_status: mods
      has_forum: true
`

func TestParseManifest(t *testing.T) {
	m, err := config.ParseManifest([]byte(clubManifest))
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", m.Version)
	assert.True(t, m.WantsBaseStatuses())
	require.Len(t, m.Statuses, 1)
	club := m.Statuses[0]
	assert.Equal(t, "club", club.Name)
	assert.Equal(t, 60, club.Priority)
	assert.Equal(t, status.List("member", "invited"), club.Capabilities["access_group"])
	assert.Equal(t, status.Bool(true), club.Capabilities["has_forum"])
}

func TestParseManifest_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantCode string
	}{
		{name: "empty", data: "", wantCode: config.CodeManifestSchema},
		{name: "not yaml", data: "version: [", wantCode: config.CodeManifestSchema},
		{name: "missing version", data: "statuses: []\n", wantCode: config.CodeManifestSchema},
		{name: "unknown field", data: "version: 1.0.0\ncolour: blue\n", wantCode: config.CodeManifestSchema},
		{name: "status without name", data: "version: 1.0.0\nstatuses:\n  - priority: 3\n", wantCode: config.CodeManifestSchema},
		{name: "numeric capability", data: "version: 1.0.0\nstatuses:\n  - name: x\n    capabilities:\n      access_group: 3\n", wantCode: config.CodeManifestSchema},
		{name: "list of numbers", data: "version: 1.0.0\nstatuses:\n  - name: x\n    capabilities:\n      access_group: [1, 2]\n", wantCode: config.CodeManifestSchema},
		{name: "not semver", data: "version: latest\n", wantCode: config.CodeManifestVer},
		{name: "major two", data: "version: 2.0.0\n", wantCode: config.CodeManifestVer},
		{name: "major zero", data: "version: 0.9.0\n", wantCode: config.CodeManifestVer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseManifest([]byte(tt.data))
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestNewRegistry(t *testing.T) {
	m, err := config.ParseManifest([]byte(clubManifest))
	require.NoError(t, err)

	r, err := config.NewRegistry(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"public", "private", "club", "hidden"}, r.Names(status.Filter{}))

	club, ok := r.Get("club")
	require.True(t, ok)
	assert.Equal(t, "Members' Club", club.DisplayName)
	v, ok := club.Has(status.JoinMethod)
	require.True(t, ok, "inherited from private")
	assert.Equal(t, status.String(status.AcceptsMembershipRequests), v)
	v, ok = club.Has(status.InviteStatus)
	require.True(t, ok)
	assert.Equal(t, status.String(status.InviteMods), v)
}

func TestNewRegistry_OmittedFallbackInheritsPublic(t *testing.T) {
	m, err := config.ParseManifest([]byte(`
version: 1.0.0
statuses:
  - name: Lounge
    capabilities:
      access_group: loggedin
`))
	require.NoError(t, err)

	r, err := config.NewRegistry(m)
	require.NoError(t, err)

	lounge, ok := r.Get("Lounge")
	require.True(t, ok)
	assert.Equal(t, status.Public, lounge.Fallback)
	v, ok := lounge.Has(status.JoinMethod)
	require.True(t, ok, "inherited from public")
	assert.Equal(t, status.String(status.AnyoneCanJoin), v)
}

func TestNewRegistry_NilManifest(t *testing.T) {
	r, err := config.NewRegistry(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"public", "private", "hidden"}, r.Names(status.Filter{}))
}

func TestNewRegistry_WithoutBaseStatuses(t *testing.T) {
	m, err := config.ParseManifest([]byte(`
version: 1.4.2
base_statuses: false
statuses:
  - name: open
    capabilities:
      join_method: anyone_can_join
`))
	require.NoError(t, err)
	assert.False(t, m.WantsBaseStatuses())

	r, err := config.NewRegistry(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"open"}, r.Names(status.Filter{}))
}

func TestNewRegistry_DuplicateStatus(t *testing.T) {
	m, err := config.ParseManifest([]byte("version: 1.0.0\nstatuses:\n  - name: public\n"))
	require.NoError(t, err)

	_, err = config.NewRegistry(m)
	require.Error(t, err)
	assert.True(t, status.IsDuplicate(err))
	errutil.AssertErrorContext(t, err, "status", "public")
}

func TestGenerateSchema(t *testing.T) {
	data, err := config.GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, config.SchemaID, doc["$id"])
	assert.Contains(t, doc["required"], "version")

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "statuses")
	assert.Contains(t, props, "base_statuses")
}
