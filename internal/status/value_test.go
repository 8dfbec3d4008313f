// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package status

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValue_Truthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{name: "unset", v: Value{}, want: false},
		{name: "true", v: Bool(true), want: true},
		{name: "false", v: Bool(false), want: false},
		{name: "string", v: String("member"), want: true},
		{name: "empty string", v: String(""), want: false},
		{name: "zero string", v: String("0"), want: false},
		{name: "list", v: List("member"), want: true},
		{name: "empty list", v: List(), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Truthy())
		})
	}
}

func TestValue_ListIsCopied(t *testing.T) {
	items := []string{"member", "invited"}
	v := List(items...)
	items[0] = "admin"

	got := v.Items()
	assert.Equal(t, []string{"member", "invited"}, got)
	got[1] = "noone"
	assert.Equal(t, []string{"member", "invited"}, v.Items())
}

func TestValue_UnmarshalYAML(t *testing.T) {
	var caps map[string]Value
	err := yaml.Unmarshal([]byte(`
join_method: invitation_only
show_group: [member, invited]
moderated: true
`), &caps)
	require.NoError(t, err)

	assert.Equal(t, String(InvitationOnly), caps["join_method"])
	assert.Equal(t, List("member", "invited"), caps["show_group"])
	assert.Equal(t, Bool(true), caps["moderated"])
}

func TestValue_UnmarshalYAML_RejectsNumbers(t *testing.T) {
	var caps map[string]Value
	err := yaml.Unmarshal([]byte("limit: 12\n"), &caps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported capability value type")
}

func TestValue_JSON(t *testing.T) {
	data, err := json.Marshal(Capabilities{ShowGroup: List("member", "invited")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"show_group":["member","invited"]}`, string(data))

	var back Capabilities
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back[ShowGroup].Equal(List("member", "invited")))
}

func TestValueOf(t *testing.T) {
	v, err := ValueOf([]any{"member", 3})
	require.Error(t, err)
	assert.False(t, v.IsSet())

	v, err = ValueOf(nil)
	require.NoError(t, err)
	assert.False(t, v.IsSet())
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("a").Equal(List("a")))
	assert.False(t, Bool(true).Equal(Bool(false)))
	assert.True(t, Value{}.Equal(Value{}))
}

func TestMerge(t *testing.T) {
	base := Capabilities{JoinMethod: String(AnyoneCanJoin), AccessGroup: String("anyone")}
	over := Capabilities{AccessGroup: String("member")}

	merged := Merge(base, over)
	assert.Equal(t, String(AnyoneCanJoin), merged[JoinMethod])
	assert.Equal(t, String("member"), merged[AccessGroup])
	assert.Equal(t, String("anyone"), base[AccessGroup], "inputs are not modified")
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "join_method", SanitizeKey("Join_Method"))
	assert.Equal(t, "post-in-wiki", SanitizeKey("post-in-wiki!"))
	assert.Empty(t, SanitizeKey("   "))
}
