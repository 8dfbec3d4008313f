// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package status

import (
	"maps"
	"strings"

	"github.com/samber/oops"
)

// Capability names a policy attribute of a status.
type Capability string

// Known capabilities. Custom capabilities are any other sanitized key.
const (
	JoinMethod           Capability = "join_method"
	ShowGroup            Capability = "show_group"
	AccessGroup          Capability = "access_group"
	PostInForum          Capability = "post_in_forum"
	PostInActivityStream Capability = "post_in_activity_stream"
	InviteStatus         Capability = "invite_status"
)

// KnownCapabilities lists the capabilities the engine interprets itself.
func KnownCapabilities() []Capability {
	return []Capability{JoinMethod, ShowGroup, AccessGroup, PostInForum, PostInActivityStream, InviteStatus}
}

// IsKnown reports whether c is one of KnownCapabilities.
func (c Capability) IsKnown() bool {
	switch c {
	case JoinMethod, ShowGroup, AccessGroup, PostInForum, PostInActivityStream, InviteStatus:
		return true
	default:
		return false
	}
}

// Values of the join_method capability.
const (
	AnyoneCanJoin             = "anyone_can_join"
	AcceptsMembershipRequests = "accepts_membership_requests"
	InvitationOnly            = "invitation_only"
)

// Values of the invite_status capability.
const (
	InviteAdmins  = "admins"
	InviteMods    = "mods"
	InviteMembers = "members"
)

// SanitizeKey lowercases s and strips everything outside [a-z0-9_-].
func SanitizeKey(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseCapability sanitizes name and rejects keys that sanitize to nothing.
func ParseCapability(name string) (Capability, error) {
	key := SanitizeKey(name)
	if key == "" {
		return "", oops.In("status").
			Code(CodeInvalidCapability).
			With("capability", name).
			Errorf("capability name %q is empty after sanitizing", name)
	}
	return Capability(key), nil
}

// Capabilities maps capability names to values.
type Capabilities map[Capability]Value

// Clone returns a shallow copy; Values are immutable so this is a full copy.
func (c Capabilities) Clone() Capabilities {
	if c == nil {
		return Capabilities{}
	}
	return maps.Clone(c)
}

// Merge returns base with every entry of over written on top.
// Neither input is modified.
func Merge(base, over Capabilities) Capabilities {
	out := base.Clone()
	maps.Copy(out, over)
	return out
}

// Get returns the value stored for cap, and whether it is present.
func (c Capabilities) Get(capability Capability) (Value, bool) {
	v, ok := c[capability]
	return v, ok
}

// normalize sanitizes keys and validates values, returning a new map.
func (c Capabilities) normalize() (Capabilities, error) {
	out := make(Capabilities, len(c))
	for name, v := range c {
		key, err := ParseCapability(string(name))
		if err != nil {
			return nil, err
		}
		if err := v.Validate(); err != nil {
			return nil, oops.In("status").
				Code(CodeInvalidCapability).
				With("capability", string(key)).
				Wrap(err)
		}
		out[key] = v
	}
	return out, nil
}
