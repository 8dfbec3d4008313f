// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"bytes"
	"log/slog"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/capgate/internal/status"
)

// SupportedVersions is the manifest version range this build reads.
const SupportedVersions = "^1"

// Manifest is a status manifest file. It declares statuses to register in
// addition to (or instead of) the base statuses.
type Manifest struct {
	Version string `yaml:"version" json:"version" jsonschema:"required,minLength=1,description=Manifest format version (semver)"`
	// BaseStatuses controls registration of public, private and hidden.
	// Unset means true.
	BaseStatuses *bool         `yaml:"base_statuses,omitempty" json:"base_statuses,omitempty" jsonschema:"description=Register the public/private/hidden statuses (default true)"`
	Statuses     []StatusEntry `yaml:"statuses,omitempty" json:"statuses,omitempty"`
}

// StatusEntry declares one status.
type StatusEntry struct {
	Name         string                  `yaml:"name" json:"name" jsonschema:"required,minLength=1"`
	DisplayName  string                  `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Fallback     string                  `yaml:"fallback,omitempty" json:"fallback,omitempty" jsonschema:"description=Status to inherit unset capabilities from; none disables inheritance,default=public"`
	Priority     int                     `yaml:"priority,omitempty" json:"priority,omitempty"`
	Capabilities map[string]status.Value `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
}

// ParseManifest validates data against the manifest schema, decodes it and
// checks the version.
func ParseManifest(data []byte) (*Manifest, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, oops.In("config").Code(CodeManifestSchema).Wrapf(err, "decode manifest")
	}
	if err := m.checkVersion(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) checkVersion() error {
	v, err := semver.StrictNewVersion(m.Version)
	if err != nil {
		return oops.In("config").Code(CodeManifestVer).
			With("version", m.Version).
			Wrapf(err, "manifest version is not semver")
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return oops.In("config").Code(CodeManifestVer).Wrapf(err, "bad supported version range")
	}
	if !c.Check(v) {
		return oops.In("config").Code(CodeManifestVer).
			With("version", m.Version).
			With("supported", SupportedVersions).
			Errorf("manifest version %s is not supported", m.Version)
	}
	return nil
}

// WantsBaseStatuses reports whether the base statuses should be registered.
func (m *Manifest) WantsBaseStatuses() bool {
	return m == nil || m.BaseStatuses == nil || *m.BaseStatuses
}

// Definitions converts the declared statuses to registry definitions.
func (m *Manifest) Definitions() []status.Definition {
	if m == nil {
		return nil
	}
	defs := make([]status.Definition, 0, len(m.Statuses))
	for _, e := range m.Statuses {
		caps := make(status.Capabilities, len(e.Capabilities))
		for k, v := range e.Capabilities {
			caps[status.Capability(k)] = v
		}
		defs = append(defs, status.Definition{
			Name:         e.Name,
			DisplayName:  e.DisplayName,
			Capabilities: caps,
			Fallback:     e.Fallback,
			Priority:     e.Priority,
		})
	}
	return defs
}

// NewRegistry builds a registry from m. A nil manifest yields the base
// statuses only. Statuses register in file order, so a fallback must be
// declared before the statuses that use it.
func NewRegistry(m *Manifest) (*status.Registry, error) {
	r := status.NewRegistry()
	if m.WantsBaseStatuses() {
		if err := status.RegisterBaseStatuses(r); err != nil {
			return nil, oops.In("config").Code(CodeManifestApply).Wrapf(err, "register base statuses")
		}
	}
	for _, def := range m.Definitions() {
		if _, err := r.Register(def); err != nil {
			return nil, oops.In("config").Code(CodeManifestApply).
				With("status", def.Name).
				Wrapf(err, "register status %q", def.Name)
		}
		slog.Debug("registered manifest status", "status", def.Name)
	}
	return r, nil
}
