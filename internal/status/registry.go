// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package status holds the group status registry: named capability bundles
// such as public, private and hidden.
package status

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/samber/oops"
)

// ReservedName is the pseudo-status meaning "any status". It cannot be registered.
const ReservedName = "any"

// NoFallback disables capability inheritance when used as a fallback name.
const NoFallback = "none"

// DefaultFallback is inherited from when a Definition leaves Fallback empty.
const DefaultFallback = Public

// Status is a registered capability bundle.
//
// Capabilities already include everything inherited from the fallback at
// registration time. The registry hands out the live object: capability
// edits through the registry are visible to every holder of the pointer.
type Status struct {
	Name         string
	DisplayName  string
	Capabilities Capabilities
	Fallback     string
	Priority     int

	seq uint64
}

// Has returns the capability value if it is set and truthy.
func (s *Status) Has(capability Capability) (Value, bool) {
	v, ok := s.Capabilities[capability]
	if !ok || !v.Truthy() {
		return Value{}, false
	}
	return v, true
}

// Definition describes a status to register.
type Definition struct {
	Name         string
	DisplayName  string
	Capabilities Capabilities
	// Fallback names the status whose capabilities fill in unset keys.
	// Empty means DefaultFallback; NoFallback disables inheritance.
	Fallback string
	Priority int
}

// Describer describes a custom capability value for display.
type Describer func(capability Capability, v Value) string

// Registry manages statuses. Registration is expected to happen once at
// startup; concurrent Register calls are not supported even though the
// table itself is guarded.
type Registry struct {
	mu        sync.RWMutex
	statuses  map[string]*Status
	next      uint64
	describer Describer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{statuses: make(map[string]*Status)}
}

// Register adds a status.
//
// Returns IllegalName for empty or reserved names, DuplicateStatus when the
// name is taken and InvalidCapability for malformed capability keys or values.
// On error the registry is unchanged.
func (r *Registry) Register(def Definition) (*Status, error) {
	name := SanitizeKey(def.Name)
	if name == "" {
		return nil, oops.In("status").
			Code(CodeIllegalName).
			With("status", def.Name).
			Errorf("status name cannot be empty")
	}
	if name == ReservedName {
		return nil, oops.In("status").
			Code(CodeIllegalName).
			With("status", name).
			Errorf("status name %q is reserved", name)
	}

	explicit, err := def.Capabilities.normalize()
	if err != nil {
		return nil, oops.In("status").With("status", name).Wrap(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.statuses == nil {
		r.statuses = make(map[string]*Status)
	}
	if _, exists := r.statuses[name]; exists {
		return nil, oops.In("status").
			Code(CodeDuplicateStatus).
			With("status", name).
			Errorf("status %q already registered", name)
	}

	caps := explicit
	fallback := r.inherit(name, def.Fallback)
	if fallback != "" {
		caps = Merge(r.statuses[fallback].Capabilities, explicit)
	}

	displayName := def.DisplayName
	if displayName == "" {
		displayName = titleCase(name)
	}

	r.next++
	s := &Status{
		Name:         name,
		DisplayName:  displayName,
		Capabilities: caps,
		Fallback:     fallback,
		Priority:     def.Priority,
		seq:          r.next,
	}
	r.statuses[name] = s

	slog.Debug("group status registered",
		"status", name,
		"fallback", fallback,
		"priority", def.Priority,
		"capabilities", len(caps))

	return s, nil
}

// inherit resolves the fallback for a status being registered and returns
// the registered name to copy from, or "" when nothing is inherited. An
// empty fallback defaults to DefaultFallback and is dropped silently when
// that status is absent. Callers hold r.mu.
func (r *Registry) inherit(name, fallback string) string {
	implicit := fallback == ""
	key := DefaultFallback
	if !implicit {
		key = SanitizeKey(fallback)
	}
	if key == NoFallback {
		return ""
	}
	if _, ok := r.statuses[key]; ok {
		return key
	}
	if !implicit {
		slog.Warn("fallback status not registered, capabilities not inherited",
			"status", name,
			"fallback", fallback)
	}
	return ""
}

// MustRegister registers def, panicking on error.
// This is intended for startup wiring of hardcoded statuses only.
func (r *Registry) MustRegister(def Definition) *Status {
	s, err := r.Register(def)
	if err != nil {
		panic(err)
	}
	return s
}

// Deregister removes a status and returns it. Groups still referencing the
// status are left alone; their lookups fail closed.
func (r *Registry) Deregister(name string) (*Status, error) {
	name = SanitizeKey(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.statuses[name]
	if !ok {
		return nil, oops.In("status").
			Code(CodeNotFound).
			With("status", name).
			Errorf("status %q does not exist", name)
	}
	delete(r.statuses, name)

	slog.Debug("group status deregistered", "status", name)
	return s, nil
}

// Get returns the live status registered under name. name is sanitized the
// same way Register sanitizes it.
func (r *Registry) Get(name string) (*Status, bool) {
	key := SanitizeKey(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.statuses[key]
	return s, ok
}

// IsStatus reports whether name is registered.
func (r *Registry) IsStatus(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Len returns the number of registered statuses.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.statuses)
}

// Operator combines Filter.Match clauses.
type Operator int

// Filter operators.
const (
	OperatorAnd Operator = iota
	OperatorOr
)

// SortOrder orders List results by priority.
type SortOrder int

// Sort orders.
const (
	Ascending SortOrder = iota
	Descending
)

// Filter selects statuses for List. The zero Filter selects everything in
// ascending priority order.
type Filter struct {
	// Names restricts results to these status names.
	Names []string
	// Match requires capability values equal to the given ones.
	Match    Capabilities
	Operator Operator
	Order    SortOrder
}

func (f Filter) matches(s *Status) bool {
	if len(f.Names) > 0 && !slices.Contains(f.Names, s.Name) {
		return false
	}
	if len(f.Match) == 0 {
		return true
	}
	hits := 0
	for capability, want := range f.Match {
		if got, ok := s.Capabilities[capability]; ok && got.Equal(want) {
			hits++
		}
	}
	if f.Operator == OperatorOr {
		return hits > 0
	}
	return hits == len(f.Match)
}

// List returns the statuses selected by f, sorted by priority. Ties keep
// registration order regardless of f.Order.
func (r *Registry) List(f Filter) []*Status {
	r.mu.RLock()
	out := make([]*Status, 0, len(r.statuses))
	for _, s := range r.statuses {
		if f.matches(s) {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b *Status) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			if f.Order == Descending {
				return -c
			}
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return out
}

// Names returns the names of the statuses selected by f, in List order.
func (r *Registry) Names(f Filter) []string {
	statuses := r.List(f)
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = s.Name
	}
	return names
}

// AddCapability sets cap on the named status, creating or replacing it.
// Returns false if the status is unknown or the capability name is invalid.
func (r *Registry) AddCapability(name string, capability Capability, v Value) bool {
	key, err := ParseCapability(string(capability))
	if err != nil || v.Validate() != nil {
		return false
	}
	s, ok := r.Get(name)
	if !ok {
		return false
	}
	if s.Capabilities == nil {
		s.Capabilities = Capabilities{}
	}
	s.Capabilities[key] = v
	slog.Debug("group status capability added", "status", s.Name, "capability", string(key))
	return true
}

// GrantCapability is AddCapability with the value true.
func (r *Registry) GrantCapability(name string, capability Capability) bool {
	return r.AddCapability(name, capability, Bool(true))
}

// EditCapability changes an existing capability value. Returns false if the
// status is unknown or the capability is not already present.
func (r *Registry) EditCapability(name string, capability Capability, v Value) bool {
	key, err := ParseCapability(string(capability))
	if err != nil || v.Validate() != nil {
		return false
	}
	s, ok := r.Get(name)
	if !ok {
		return false
	}
	if _, present := s.Capabilities[key]; !present {
		return false
	}
	s.Capabilities[key] = v
	slog.Debug("group status capability edited", "status", s.Name, "capability", string(key))
	return true
}

// RemoveCapability deletes a capability from the named status.
func (r *Registry) RemoveCapability(name string, capability Capability) bool {
	key, err := ParseCapability(string(capability))
	if err != nil {
		return false
	}
	s, ok := r.Get(name)
	if !ok {
		return false
	}
	if _, present := s.Capabilities[key]; !present {
		return false
	}
	delete(s.Capabilities, key)
	slog.Debug("group status capability removed", "status", s.Name, "capability", string(key))
	return true
}

// SetDescriber installs the description callback for custom capabilities.
func (r *Registry) SetDescriber(d Describer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.describer = d
}

func titleCase(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(first)) + strings.ReplaceAll(s[size:], "_", " ")
}
