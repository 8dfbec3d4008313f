// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package condition evaluates access conditions (member, admin, invited, ...)
// for an actor against a group.
package condition

import (
	"strings"
	"unicode"

	"github.com/holomush/capgate/internal/status"
)

// Condition is a relationship predicate.
type Condition string

// Access conditions.
const (
	Anyone   Condition = "anyone"
	LoggedIn Condition = "loggedin"
	Member   Condition = "member"
	Mod      Condition = "mod"
	Admin    Condition = "admin"
	Invited  Condition = "invited"
	Noone    Condition = "noone"
)

// All lists every known condition.
func All() []Condition {
	return []Condition{Anyone, LoggedIn, Member, Mod, Admin, Invited, Noone}
}

// IsKnown reports whether c is one of All.
func (c Condition) IsKnown() bool {
	switch c {
	case Anyone, LoggedIn, Member, Mod, Admin, Invited, Noone:
		return true
	default:
		return false
	}
}

// ParseString splits a condition string on whitespace and commas.
// "member, invited" yields [member invited].
func ParseString(s string) []Condition {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	out := make([]Condition, 0, len(fields))
	for _, f := range fields {
		out = append(out, Condition(f))
	}
	return out
}

// Parse interprets a capability value as a condition list. Lists are taken
// item by item, strings are split by ParseString, anything else is empty.
func Parse(v status.Value) []Condition {
	if v.IsList() {
		items := v.Items()
		out := make([]Condition, 0, len(items))
		for _, item := range items {
			out = append(out, Condition(strings.TrimSpace(item)))
		}
		return out
	}
	if s, ok := v.AsString(); ok {
		return ParseString(s)
	}
	return nil
}
