// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads capgate settings and status manifests.
//
// Settings are layered: built-in defaults, then the YAML config file, then
// command-line flags that were explicitly set.
package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/capgate/internal/gate/audit"
	"github.com/holomush/capgate/internal/logging"
)

// Error codes.
const (
	CodeConfigInvalid  = "CONFIG_INVALID"
	CodeConfigLoad     = "CONFIG_LOAD_FAILED"
	CodeManifestRead   = "MANIFEST_READ_FAILED"
	CodeManifestSchema = "MANIFEST_SCHEMA_INVALID"
	CodeManifestVer    = "MANIFEST_VERSION_UNSUPPORTED"
	CodeManifestApply  = "MANIFEST_APPLY_FAILED"
)

// Config is the resolved capgate configuration.
type Config struct {
	Log         LogConfig   `koanf:"log"`
	Manifest    string      `koanf:"manifest"`
	Audit       AuditConfig `koanf:"audit"`
	DatabaseURL string      `koanf:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// AuditConfig configures the decision audit log.
type AuditConfig struct {
	Mode    string `koanf:"mode"`
	WALPath string `koanf:"wal_path"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Log:   LogConfig{Format: "text", Level: "info"},
		Audit: AuditConfig{Mode: string(audit.ModeMinimal)},
	}
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"manifest":     "manifest",
	"audit-mode":   "audit.mode",
	"audit-wal":    "audit.wal_path",
	"database-url": "database_url",
}

// RegisterFlags adds the configuration flags to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("log-format", d.Log.Format, "log format (text or json)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("manifest", d.Manifest, "status manifest file")
	flags.String("audit-mode", d.Audit.Mode, "decision audit mode (off, minimal, denials_only, all)")
	flags.String("audit-wal", d.Audit.WALPath, "audit write-ahead log path")
	flags.String("database-url", d.DatabaseURL, "PostgreSQL connection string")
}

// Load builds a Config from path and flags. An empty path or a
// missing file at the default location is not an error; a missing file that
// was asked for explicitly is. flags may be nil.
func Load(path string, explicit bool, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, oops.In("config").Code(CodeConfigLoad).
					With("path", path).
					Wrapf(err, "load config file")
			}
		}
	}

	if flags != nil {
		err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return Config{}, oops.In("config").Code(CodeConfigLoad).Wrapf(err, "load flags")
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.In("config").Code(CodeConfigInvalid).Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that enumerated settings hold known values.
func (c Config) Validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return oops.In("config").Code(CodeConfigInvalid).
			With("log.format", c.Log.Format).
			Errorf("log.format must be text or json")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.In("config").Code(CodeConfigInvalid).
			With("log.level", c.Log.Level).
			Errorf("invalid log.level: %v", err)
	}
	if _, err := audit.ParseMode(c.Audit.Mode); err != nil {
		return oops.In("config").Code(CodeConfigInvalid).
			With("audit.mode", c.Audit.Mode).
			Errorf("invalid audit.mode: %v", err)
	}
	return nil
}

// LogOptions converts the log settings for logging.Setup.
func (c Config) LogOptions() logging.Options {
	return logging.Options{Format: c.Log.Format, Level: c.Log.Level}
}

// ReadManifest reads the configured manifest, or returns nil when none is set.
func (c Config) ReadManifest() (*Manifest, error) {
	if c.Manifest == "" {
		return nil, nil //nolint:nilnil // no manifest configured
	}
	data, err := os.ReadFile(c.Manifest)
	if err != nil {
		return nil, oops.In("config").Code(CodeManifestRead).
			With("path", c.Manifest).
			Wrapf(err, "read manifest")
	}
	return ParseManifest(data)
}
