// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

// Role names.
const (
	RoleSubscriber    = "subscriber"
	RoleModerator     = "moderator"
	RoleAdministrator = "administrator"
)

// Permission groups define reusable sets of permissions.
// Roles compose these groups rather than inheriting.

var subscriberPowers = []string{
	"read:group:*",
	"create:group",
	"write:user:$self",
}

var moderatorPowers = []string{
	"moderate:groups",
	"moderate:group:*",
	"write:group:*",
}

var administratorPowers = []string{
	"**",
}

// DefaultRoles returns the default role definitions.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		RoleSubscriber:    subscriberPowers,
		RoleModerator:     compose(subscriberPowers, moderatorPowers),
		RoleAdministrator: compose(subscriberPowers, moderatorPowers, administratorPowers),
	}
}

func compose(groups ...[]string) []string {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	result := make([]string, 0, total)
	for _, g := range groups {
		result = append(result, g...)
	}
	return result
}
