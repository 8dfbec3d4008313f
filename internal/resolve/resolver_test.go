// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/capgate/internal/resolve"
	"github.com/holomush/capgate/internal/status"
	"github.com/holomush/capgate/pkg/errutil"
)

func newExampleRegistry(t *testing.T) *status.Registry {
	t.Helper()
	r := status.NewRegistry()
	_, err := r.Register(status.Definition{
		Name: "public",
		Capabilities: status.Capabilities{
			status.JoinMethod:  status.String(status.AnyoneCanJoin),
			status.AccessGroup: status.String("anyone"),
		},
	})
	require.NoError(t, err)
	_, err = r.Register(status.Definition{
		Name:         "private",
		Capabilities: status.Capabilities{status.AccessGroup: status.String("member")},
		Fallback:     "public",
	})
	require.NoError(t, err)
	return r
}

func TestResolver_StatusHasCapability(t *testing.T) {
	r := resolve.New(newExampleRegistry(t))

	v, ok := r.StatusHasCapability("private", status.JoinMethod)
	require.True(t, ok)
	assert.Equal(t, status.String(status.AnyoneCanJoin), v, "inherited from public")

	v, ok = r.StatusHasCapability("private", status.AccessGroup)
	require.True(t, ok)
	assert.Equal(t, status.String("member"), v, "overridden")

	_, ok = r.StatusHasCapability("missing", status.AccessGroup)
	assert.False(t, ok)

	_, ok = r.StatusHasCapability("private", status.ShowGroup)
	assert.False(t, ok)
}

func TestResolver_StatusHasCapability_Falsey(t *testing.T) {
	reg := newExampleRegistry(t)
	require.True(t, reg.AddCapability("public", "disabled", status.Bool(false)))
	r := resolve.New(reg)

	_, ok := r.StatusHasCapability("public", "disabled")
	assert.False(t, ok)
}

func TestResolver_StatusOverride(t *testing.T) {
	reg := newExampleRegistry(t)
	r := resolve.New(reg, resolve.WithStatusOverride(
		func(name string, _ status.Capability, caps status.Capabilities) status.Capabilities {
			if name != "public" {
				return caps
			}
			return status.Merge(caps, status.Capabilities{status.AccessGroup: status.String("loggedin")})
		},
	))

	v, ok := r.StatusHasCapability("public", status.AccessGroup)
	require.True(t, ok)
	assert.Equal(t, status.String("loggedin"), v)

	s, _ := reg.Get("public")
	assert.Equal(t, status.String("anyone"), s.Capabilities[status.AccessGroup], "registry untouched")
}

func TestResolver_ResourceHasCapability_RequiresMaterialization(t *testing.T) {
	r := resolve.New(newExampleRegistry(t))
	res := &resolve.Resource{ID: "g1", Status: "public"}

	_, ok := r.ResourceHasCapability(res, status.JoinMethod)
	assert.False(t, ok, "fails closed before materialization")

	_, err := r.ResourceCapabilities(res)
	require.Error(t, err)
	assert.True(t, resolve.IsNotMaterialized(err))
	errutil.AssertErrorContext(t, err, "resource", "g1")

	_, ok = r.ResourceHasCapability(nil, status.JoinMethod)
	assert.False(t, ok)
}

func TestResolver_Materialize(t *testing.T) {
	r := resolve.New(newExampleRegistry(t))
	res := &resolve.Resource{
		ID:        "g1",
		Status:    "private",
		Overrides: status.Capabilities{status.ShowGroup: status.List("member", "invited")},
	}

	require.NoError(t, r.Materialize(res))
	assert.True(t, res.Materialized())

	v, ok := r.ResourceHasCapability(res, status.ShowGroup)
	require.True(t, ok)
	assert.Equal(t, status.List("member", "invited"), v)

	v, ok = r.ResourceHasCapability(res, status.JoinMethod)
	require.True(t, ok)
	assert.Equal(t, status.String(status.AnyoneCanJoin), v)

	caps, err := r.ResourceCapabilities(res)
	require.NoError(t, err)
	assert.Len(t, caps, 3)
}

func TestResolver_Materialize_OverrideCanRevoke(t *testing.T) {
	r := resolve.New(newExampleRegistry(t))
	res := &resolve.Resource{
		ID:        "g1",
		Status:    "public",
		Overrides: status.Capabilities{status.JoinMethod: status.Bool(false)},
	}
	require.NoError(t, r.Materialize(res))

	_, ok := r.ResourceHasCapability(res, status.JoinMethod)
	assert.False(t, ok)
}

func TestResolver_ResourceLookupIgnoresLaterStatusEdits(t *testing.T) {
	reg := newExampleRegistry(t)
	r := resolve.New(reg)
	res := &resolve.Resource{ID: "g1", Status: "public"}
	require.NoError(t, r.Materialize(res))

	require.True(t, reg.AddCapability("public", status.PostInForum, status.String("member")))

	_, ok := r.ResourceHasCapability(res, status.PostInForum)
	assert.False(t, ok, "resource map is total once materialized")
}

func TestResolver_Materialize_UnknownStatus(t *testing.T) {
	r := resolve.New(newExampleRegistry(t))
	res := &resolve.Resource{ID: "g1", Status: "deleted"}

	err := r.Materialize(res)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, resolve.CodeUnknownStatus)
	assert.False(t, res.Materialized())
}

func TestResource_SetCapabilities(t *testing.T) {
	r := resolve.New(status.NewRegistry())
	res := &resolve.Resource{ID: "g1"}
	res.SetCapabilities(status.Capabilities{status.AccessGroup: status.String("member")})

	v, ok := r.ResourceHasCapability(res, status.AccessGroup)
	require.True(t, ok)
	assert.Equal(t, status.String("member"), v)
}
