package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/treefs/internal/util"
	"gopkg.in/yaml.v3"
)

// CLI verbosity levels as accepted by ConfigOverride.LogLvl
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	DefaultFsName = "treefs"
	DefaultName   = "treefs"

	// DefaultRootPerms are the permission bits of the root directory
	DefaultRootPerms = 0o755

	// DefaultMaxFileSize caps the size of a single file or symlink in bytes
	DefaultMaxFileSize = 1 << 30

	// DefaultMaxWrite is the maximum write size per FUSE request
	DefaultMaxWrite = 128 * 1024

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultNegativeTimeout is the cache timeout for failed lookups in seconds
	DefaultNegativeTimeout = 0.0
)

// Config contains runtime configuration values for the filesystem.
type Config struct {
	MountOptions
	LogLvl      util.LogLevel `validate:"gte=0,lte=4"` // Internal log level (Default info)
	RootPerms   uint32        `validate:"lte=4095"`    // Permission bits of the root directory (Default 0755)
	MaxFileSize int64         `validate:"gt=0"`        // Largest size a file may grow to in bytes (Default 1GiB)
	// MetricsAddr is the listen address of the Prometheus endpoint; empty disables metrics
	MetricsAddr string `validate:"omitempty,hostname_port"`
	// NOTE: Low-level FUSE config (strongly recommend defaults unless you really know what you're doing):

	MaxWrite        int     `validate:"gt=0"`  // Maximum write size per FUSE request (Default 128KB)
	AttrTimeout     float64 `validate:"gte=0"` // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout    float64 `validate:"gte=0"` // Directory entry cache timeout in seconds (Default 1.0)
	NegativeTimeout float64 `validate:"gte=0"` // Failed lookup cache timeout in seconds (Default 0)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl is the CLI verbosity between 1 (error) and 5 (trace); values
	// outside are clamped
	LogLvl          *int     `yaml:"log_lvl,omitempty" json:"log_lvl,omitempty"`
	FsName          *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name            *string  `yaml:"name,omitempty" json:"name,omitempty"`
	Debug           *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	AllowOther      *bool    `yaml:"allow_other,omitempty" json:"allow_other,omitempty"`
	RootPerms       *uint32  `yaml:"root_perms,omitempty" json:"root_perms,omitempty"`
	MaxFileSize     *int64   `yaml:"max_file_size,omitempty" json:"max_file_size,omitempty"`
	MetricsAddr     *string  `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`
	MaxWrite        *int     `yaml:"max_write,omitempty" json:"max_write,omitempty"`
	AttrTimeout     *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout    *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	NegativeTimeout *float64 `yaml:"negative_timeout,omitempty" json:"negative_timeout,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:          DefaultLogLvl,
		RootPerms:       DefaultRootPerms,
		MaxFileSize:     DefaultMaxFileSize,
		MaxWrite:        DefaultMaxWrite,
		AttrTimeout:     DefaultAttrTimeout,
		EntryTimeout:    DefaultEntryTimeout,
		NegativeTimeout: DefaultNegativeTimeout,
	}
}

// NewConfig returns the defaults with override applied. A nil override
// yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// VerbosityToLogLvl maps CLI verbosity 1 (error) .. 5 (trace) onto a
// util.LogLevel, clamping out of range values
func VerbosityToLogLvl(verbose int) util.LogLevel {
	verbose = max(ErrorVerbose, min(verbose, TraceVerbose))
	logLvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return logLvls[verbose-1]
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerbosityToLogLvl(*override.LogLvl)
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.AllowOther != nil {
		c.AllowOther = *override.AllowOther
	}
	if override.RootPerms != nil {
		c.RootPerms = *override.RootPerms
	}
	if override.MaxFileSize != nil {
		c.MaxFileSize = *override.MaxFileSize
	}
	if override.MetricsAddr != nil {
		c.MetricsAddr = *override.MetricsAddr
	}
	if override.MaxWrite != nil {
		c.MaxWrite = *override.MaxWrite
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.NegativeTimeout != nil {
		c.NegativeTimeout = *override.NegativeTimeout
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
