// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package status

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type valueKind uint8

const (
	kindUnset valueKind = iota
	kindBool
	kindString
	kindList
)

// Value is the value of a capability: a bool, a string or a list of strings.
// The zero Value is unset and falsey.
type Value struct {
	kind valueKind
	b    bool
	s    string
	list []string
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{kind: kindBool, b: b}
}

// String returns a string Value.
func String(s string) Value {
	return Value{kind: kindString, s: s}
}

// List returns a list Value. The items are copied.
func List(items ...string) Value {
	return Value{kind: kindList, list: slices.Clone(items)}
}

// IsSet reports whether v holds anything.
func (v Value) IsSet() bool {
	return v.kind != kindUnset
}

// Truthy reports whether v counts as granted. False, "", "0", an empty list
// and the unset Value are falsey.
func (v Value) Truthy() bool {
	switch v.kind {
	case kindBool:
		return v.b
	case kindString:
		return v.s != "" && v.s != "0"
	case kindList:
		return len(v.list) > 0
	default:
		return false
	}
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == kindBool
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == kindString
}

// Items returns the list held by v as a copy, or nil if v is not a list.
func (v Value) Items() []string {
	if v.kind != kindList {
		return nil
	}
	return slices.Clone(v.list)
}

// IsList reports whether v holds a list.
func (v Value) IsList() bool {
	return v.kind == kindList
}

// Equal reports whether two values hold the same data.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case kindBool:
		return v.b == o.b
	case kindString:
		return v.s == o.s
	case kindList:
		return slices.Equal(v.list, o.list)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case kindBool:
		return strconv.FormatBool(v.b)
	case kindString:
		return v.s
	case kindList:
		return strings.Join(v.list, ",")
	default:
		return ""
	}
}

// Validate rejects list values holding empty items.
func (v Value) Validate() error {
	if v.kind != kindList {
		return nil
	}
	for i, item := range v.list {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("list item %d is empty", i)
		}
	}
	return nil
}

// Any converts v to its plain Go form (bool, string, []string or nil).
func (v Value) Any() any {
	switch v.kind {
	case kindBool:
		return v.b
	case kindString:
		return v.s
	case kindList:
		return v.Items()
	default:
		return nil
	}
}

// ValueOf converts a plain Go value as produced by YAML or JSON decoding.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case []string:
		return List(x...), nil
	case []any:
		items := make([]string, 0, len(x))
		for i, item := range x {
			s, ok := item.(string)
			if !ok {
				return Value{}, fmt.Errorf("list item %d: expected string, got %T", i, item)
			}
			items = append(items, s)
		}
		return List(items...), nil
	default:
		return Value{}, fmt.Errorf("unsupported capability value type %T", raw)
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.Any(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}
