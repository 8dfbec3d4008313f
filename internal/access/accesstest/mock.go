// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package accesstest provides test helpers for access control.
package accesstest

import (
	"context"

	"github.com/holomush/capgate/internal/access"
)

// AllowAll is an AccessControl that allows everything.
type AllowAll struct{}

// Check always returns true.
func (AllowAll) Check(_ context.Context, _, _, _ string) bool {
	return true
}

// DenyAll is an AccessControl that denies everything.
type DenyAll struct{}

// Check always returns false.
func (DenyAll) Check(_ context.Context, _, _, _ string) bool {
	return false
}

// MockAccessControl is an AccessControl for testing with selective grants.
type MockAccessControl struct {
	grants map[string]map[string]bool // actor -> "action:resource" -> allowed
}

// NewMockAccessControl creates a new MockAccessControl.
func NewMockAccessControl() *MockAccessControl {
	return &MockAccessControl{
		grants: make(map[string]map[string]bool),
	}
}

// Grant allows an actor to perform an action on a resource.
func (m *MockAccessControl) Grant(actor, action, resource string) {
	if m.grants[actor] == nil {
		m.grants[actor] = make(map[string]bool)
	}
	m.grants[actor][action+":"+resource] = true
}

// GrantOverride grants the site-wide group moderation permission.
func (m *MockAccessControl) GrantOverride(actor string) {
	m.Grant(actor, access.ActionModerate, access.ResourceGroups)
}

// Check implements AccessControl.
func (m *MockAccessControl) Check(_ context.Context, actor, action, resource string) bool {
	return m.grants[actor][action+":"+resource]
}

var (
	_ access.AccessControl = AllowAll{}
	_ access.AccessControl = DenyAll{}
	_ access.AccessControl = (*MockAccessControl)(nil)
)
