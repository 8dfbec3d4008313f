// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package status

// Base status names.
const (
	Public  = "public"
	Private = "private"
	Hidden  = "hidden"
)

// BaseDefinitions returns the three stock statuses. Hidden groups list
// invitees in show_group so that an invitation can be seen before joining.
func BaseDefinitions() []Definition {
	return []Definition{
		{
			Name:        Public,
			DisplayName: "Public",
			Capabilities: Capabilities{
				JoinMethod:           String(AnyoneCanJoin),
				ShowGroup:            String("anyone"),
				AccessGroup:          String("anyone"),
				PostInActivityStream: String("member"),
				PostInForum:          String("member"),
				InviteStatus:         String(InviteMembers),
			},
			Fallback: NoFallback,
			Priority: 10,
		},
		{
			Name:        Private,
			DisplayName: "Private",
			Capabilities: Capabilities{
				JoinMethod:           String(AcceptsMembershipRequests),
				ShowGroup:            String("anyone"),
				AccessGroup:          String("member"),
				PostInActivityStream: String("member"),
				PostInForum:          String("member"),
				InviteStatus:         String(InviteMembers),
			},
			Fallback: NoFallback,
			Priority: 50,
		},
		{
			Name:        Hidden,
			DisplayName: "Hidden",
			Capabilities: Capabilities{
				JoinMethod:           String(InvitationOnly),
				ShowGroup:            List("member", "invited"),
				AccessGroup:          String("member"),
				PostInActivityStream: String("member"),
				PostInForum:          String("member"),
				InviteStatus:         String(InviteMembers),
			},
			Fallback: NoFallback,
			Priority: 90,
		},
	}
}

// RegisterBaseStatuses registers public, private and hidden on r.
func RegisterBaseStatuses(r *Registry) error {
	for _, def := range BaseDefinitions() {
		if _, err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// NewDefaultRegistry returns a registry holding the base statuses.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range BaseDefinitions() {
		r.MustRegister(def)
	}
	return r
}
