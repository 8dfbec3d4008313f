// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package status

import "slices"

// Describe returns the settings-screen text for a capability value.
// Custom capabilities are described by the registry's Describer, if any.
func (r *Registry) Describe(capability Capability, v Value) string {
	s, _ := v.AsString()

	switch capability {
	case JoinMethod:
		switch s {
		case AnyoneCanJoin:
			return "Any site member can join this group."
		case AcceptsMembershipRequests:
			return "Only users who request membership and are accepted can join the group."
		case InvitationOnly:
			return "Only users who are invited can join the group."
		}
		return ""
	case ShowGroup:
		if s == "anyone" {
			return "This group will be listed in the groups directory and in search results."
		}
		return "This group will not be listed in the groups directory or search results."
	case AccessGroup:
		switch s {
		case "anyone":
			return "Group content and activity will be visible to any visitor to the site."
		case "loggedin":
			return "Group content and activity will be visible to any site member."
		}
		return "Group content and activity will only be visible to members of the group."
	case InviteStatus:
		switch s {
		case InviteAdmins:
			return "Only group admins can invite others to the group."
		case InviteMods:
			return "Group admins and moderators can invite others to the group."
		case InviteMembers:
			return "All group members can invite others to the group."
		}
		return ""
	}

	r.mu.RLock()
	d := r.describer
	r.mu.RUnlock()
	if d == nil {
		return ""
	}
	return d(capability, v)
}

// Description is one described capability of a status.
type Description struct {
	Capability Capability
	Value      Value
	Text       string
}

// DescribeStatus describes every capability of the named status, known
// capabilities first in KnownCapabilities order, then custom ones by name.
func (r *Registry) DescribeStatus(name string) ([]Description, bool) {
	s, ok := r.Get(name)
	if !ok {
		return nil, false
	}

	out := make([]Description, 0, len(s.Capabilities))
	for _, c := range KnownCapabilities() {
		if v, present := s.Capabilities[c]; present {
			out = append(out, Description{Capability: c, Value: v, Text: r.Describe(c, v)})
		}
	}

	custom := make([]Capability, 0)
	for c := range s.Capabilities {
		if !c.IsKnown() {
			custom = append(custom, c)
		}
	}
	slices.Sort(custom)
	for _, c := range custom {
		v := s.Capabilities[c]
		out = append(out, Description{Capability: c, Value: v, Text: r.Describe(c, v)})
	}
	return out, true
}
